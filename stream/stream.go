// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-archivestream.
//
// go-archivestream is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-archivestream is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-archivestream.  If not, see <https://www.gnu.org/licenses/>.

// Package stream is the generic byte stream layer. Streams are opened by
// address through a protocol Registry and expose partial reads, absolute
// seeks, skips and size queries on top of a protocol Backend.
//
// A Stream is single-owner: callers must serialize access to it.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// skipChunk is the buffer size used when skipping forward by reading.
const skipChunk = 4096

// Backend is the contract a protocol implements to back a Stream.
type Backend interface {
	// Fill reads up to len(p) bytes into p. Returning io.EOF, or zero bytes
	// with a nil error, signals that the stream is exhausted.
	Fill(p []byte) (int, error)

	// Close releases the backend. It is called once.
	Close() error
}

// Seeker is implemented by backends that can reposition. cur is the current
// logical position of the Stream; Seek returns the position actually reached,
// which becomes the new logical position even when err is non-nil.
type Seeker interface {
	Seek(cur, target int64) (int64, error)
}

// Sizer is implemented by backends that may know their total byte length.
// Size returns ErrUnsupported when the length is unknown.
type Sizer interface {
	Size() (int64, error)
}

// BaseURLer is implemented by backends that wrap another stream and can
// report that stream's address.
type BaseURLer interface {
	BaseURL() (string, error)
}

// Stream is an opened byte stream.
type Stream struct {
	ctx     context.Context //nolint:containedctx // cancellation token carried for the stream's lifetime
	global  *Global
	backend Backend
	url     string
	pending error
	pos     int64
	eof     bool
	closed  bool
}

// New wraps backend in a Stream addressed by url. A nil global selects
// DefaultGlobal.
func New(ctx context.Context, url string, backend Backend, global *Global) *Stream {
	if global == nil {
		global = DefaultGlobal()
	}
	return &Stream{
		ctx:     ctx,
		global:  global,
		backend: backend,
		url:     url,
	}
}

// URL returns the address the stream was opened with.
func (s *Stream) URL() string { return s.url }

// Context returns the cancellation token of the stream.
func (s *Stream) Context() context.Context { return s.ctx }

// Global returns the shared registry and logger the stream was opened with.
func (s *Stream) Global() *Global { return s.global }

// Logger returns the stream's logger.
func (s *Stream) Logger() *slog.Logger { return s.global.logger() }

// Seekable reports whether the backend supports repositioning.
func (s *Stream) Seekable() bool {
	_, ok := s.backend.(Seeker)
	return ok
}

// Tell returns the current logical position.
func (s *Stream) Tell() int64 { return s.pos }

// EOF reports whether the last read hit the end of the stream.
func (s *Stream) EOF() bool { return s.eof }

// ReadPartial reads at most len(p) bytes with a single backend fill. It
// returns zero bytes and a nil error at the end of the stream. Fewer bytes
// than requested is not an error.
func (s *Stream) ReadPartial(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := s.pending; err != nil {
		s.pending = nil
		return 0, err
	}
	if err := s.ctx.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", s.url, err)
	}
	if s.eof {
		return 0, nil
	}

	n, err := s.backend.Fill(p)
	if n < 0 {
		n = 0
	}
	s.pos += int64(n)

	switch {
	case errors.Is(err, io.EOF):
		s.eof = n == 0
		return n, nil
	case err != nil:
		err = fmt.Errorf("read %s: %w", s.url, err)
		if n > 0 {
			// report the data now, the failure on the next call
			s.pending = err
			return n, nil
		}
		return 0, err
	case n == 0:
		s.eof = true
	}
	return n, nil
}

// Read implements io.Reader on top of ReadPartial.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.ReadPartial(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

// Seek moves to the absolute position pos. Unseekable streams can only move
// forward, which is done by reading and discarding.
func (s *Stream) Seek(pos int64) error {
	if s.closed {
		return ErrClosed
	}
	if pos < 0 {
		return fmt.Errorf("seek %s to %d: %w", s.url, pos, ErrInvalidPosition)
	}
	if pos == s.pos {
		return nil
	}
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("seek %s: %w", s.url, err)
	}

	seeker, ok := s.backend.(Seeker)
	if !ok {
		if pos < s.pos {
			return fmt.Errorf("seek %s backwards to %d: %w", s.url, pos, ErrNotSeekable)
		}
		if err := s.discard(pos - s.pos); err != nil {
			return err
		}
		if s.pos != pos {
			return fmt.Errorf("seek %s to %d: %w", s.url, pos, io.ErrUnexpectedEOF)
		}
		return nil
	}

	reached, err := seeker.Seek(s.pos, pos)
	s.pos = reached
	s.eof = false
	s.pending = nil
	if err != nil {
		return fmt.Errorf("seek %s to %d: %w", s.url, pos, err)
	}
	return nil
}

// Skip advances the stream by n bytes. At the end of the stream it stops
// early without error; callers compare Tell before and after to learn how
// far it actually moved.
func (s *Stream) Skip(n int64) error {
	if s.closed {
		return ErrClosed
	}
	if n < 0 {
		return fmt.Errorf("skip %s by %d: %w", s.url, n, ErrInvalidPosition)
	}
	if n == 0 {
		return nil
	}

	if s.Seekable() {
		if size, err := s.Size(); err == nil {
			target := min(s.pos+n, max(size, s.pos))
			return s.Seek(target)
		}
	}
	return s.discard(n)
}

func (s *Stream) discard(n int64) error {
	buf := make([]byte, min(n, skipChunk))
	for n > 0 {
		chunk := buf[:min(n, int64(len(buf)))]
		got, err := s.ReadPartial(chunk)
		if err != nil {
			return err
		}
		if got == 0 {
			return nil
		}
		n -= int64(got)
	}
	return nil
}

// Size returns the total byte length of the stream, or ErrUnsupported.
func (s *Stream) Size() (int64, error) {
	sizer, ok := s.backend.(Sizer)
	if !ok {
		return 0, ErrUnsupported
	}
	return sizer.Size() //nolint:wrapcheck // ErrUnsupported must stay comparable
}

// BaseURL returns the address of the stream the backend wraps, or
// ErrUnsupported.
func (s *Stream) BaseURL() (string, error) {
	b, ok := s.backend.(BaseURLer)
	if !ok {
		return "", ErrUnsupported
	}
	return b.BaseURL() //nolint:wrapcheck // ErrUnsupported must stay comparable
}

// Close closes the backend. Closing twice is a no-op.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.url, err)
	}
	return nil
}
