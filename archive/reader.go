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

package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

type readerState int

const (
	stateNew readerState = iota
	stateOpen
	stateClosed
)

// peeker is a reader whose upcoming bytes can be inspected.
type peeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for decoding diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.log = logger
		}
	}
}

// Reader is one decoding session. It is not safe for concurrent use.
type Reader struct {
	log        *slog.Logger
	formats    map[Format]bool
	filters    map[Filter]bool
	format     formatReader
	open       opener
	data       io.Reader
	dataCloser io.Closer
	volumes    []Volume
	closers    []io.Closer
	detected   Format
	state      readerState
	seek       bool
}

// NewReader creates a session with no formats, filters or volumes.
func NewReader(opts ...Option) *Reader {
	r := &Reader{
		log:     slog.New(slog.DiscardHandler),
		formats: make(map[Format]bool),
		filters: make(map[Filter]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SupportFormat enables recognition of f.
func (r *Reader) SupportFormat(f Format) { r.formats[f] = true }

// SupportFilter enables unwrapping of f.
func (r *Reader) SupportFilter(f Filter) { r.filters[f] = true }

// SupportAllFormats enables every container format.
func (r *Reader) SupportAllFormats() {
	for f := FormatZIP; f <= FormatTar; f++ {
		r.SupportFormat(f)
	}
}

// SupportAllFilters enables every filter.
func (r *Reader) SupportAllFilters() {
	for f := FilterGzip; f <= FilterLz4; f++ {
		r.SupportFilter(f)
	}
}

// EnableSeek lets the session call Volume.Seek. ZIP, 7z and ISO 9660
// archives can only be read with it.
func (r *Reader) EnableSeek() { r.seek = true }

// AppendVolume attaches the next volume. Volumes can only be added before
// Open; once attached, a volume is closed by Close.
func (r *Reader) AppendVolume(v Volume) error {
	if r.state != stateNew {
		return fmt.Errorf("append volume %s: %w", v.Name(), ErrState)
	}
	r.volumes = append(r.volumes, v)
	return nil
}

// Volumes returns the number of attached volumes.
func (r *Reader) Volumes() int { return len(r.volumes) }

// Format returns the detected container format after a successful Open.
func (r *Reader) Format() Format { return r.detected }

// Open detects the container format and prepares entry iteration.
func (r *Reader) Open() error {
	if r.state != stateNew {
		return fmt.Errorf("open: %w", ErrState)
	}
	r.state = stateOpen
	if len(r.volumes) == 0 {
		return fatal("open", ErrNoVolumes)
	}

	format, err := r.negotiate()
	if err != nil {
		return fatal("open", err)
	}
	r.format = format
	r.log.Debug("opened archive",
		slog.String("format", r.detected.String()),
		slog.Int("volumes", len(r.volumes)),
		slog.Bool("seekable", r.seek))
	return nil
}

func (r *Reader) allowFormat(f Format) error {
	if !r.formats[f] {
		return FormatError{Format: f.String(), Reason: "format not enabled"}
	}
	r.detected = f
	return nil
}

// negotiate picks a format reader. With seeking enabled, formats needing
// random access read through a volumeReaderAt; everything else is read as
// one sequential chain of volumes.
func (r *Reader) negotiate() (formatReader, error) {
	if r.seek {
		format, ok, err := r.negotiateRandom()
		if ok || err != nil {
			return format, err
		}
		if _, err := r.volumes[0].Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind volume %s: %w", r.volumes[0].Name(), err)
		}
	}
	return r.negotiateSequential(newVolumeChain(r.volumes), 0)
}

func (r *Reader) negotiateRandom() (formatReader, bool, error) {
	ra, err := newVolumeReaderAt(r.volumes)
	if err != nil {
		r.log.Debug("random access unavailable", slog.Any("error", err))
		return nil, false, nil
	}

	head := make([]byte, headSize)
	n, err := ra.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, false, fmt.Errorf("read archive header: %w", err)
	}

	format, ok := detectRandomFormat(head[:n], ra)
	if !ok {
		return nil, false, nil
	}

	switch format {
	case FormatZIP:
		if err := r.allowFormat(format); err != nil {
			return nil, false, err
		}
		fr, err := newZIPFormat(ra, ra.Size())
		return fr, true, err
	case Format7Zip:
		if err := r.allowFormat(format); err != nil {
			return nil, false, err
		}
		fr, err := newSevenZipFormat(ra, ra.Size())
		return fr, true, err
	case FormatISO9660:
		if err := r.allowFormat(format); err != nil {
			return nil, false, err
		}
		fr, err := newISOFormat(ra, ra.Size())
		return fr, true, err
	case FormatRAR:
		if err := r.allowFormat(format); err != nil {
			return nil, false, err
		}
		fr, err := newRARFormat(newVolumeFS(r.volumes, nil, true))
		return fr, true, err
	default:
		// tar is read sequentially
		return nil, false, nil
	}
}

func (r *Reader) negotiateSequential(src peeker, depth int) (formatReader, error) {
	head, err := src.Peek(headSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read archive header: %w", err)
	}

	if filter, ok := detectFilter(head); ok {
		if !r.filters[filter] {
			return nil, FormatError{Format: filter.String(), Reason: "filter not enabled"}
		}
		if depth >= maxFilters {
			return nil, FormatError{Format: filter.String(), Reason: "too many nested filters"}
		}
		dec, closer, err := newFilterReader(filter, src)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			r.closers = append(r.closers, closer)
		}
		r.log.Debug("unwrapping filter", slog.String("filter", filter.String()))
		return r.negotiateSequential(bufio.NewReaderSize(dec, headSize), depth+1)
	}

	format, ok := detectFormat(head)
	if !ok {
		return nil, FormatError{Format: "unknown", Reason: "unrecognized data"}
	}
	if err := r.allowFormat(format); err != nil {
		return nil, err
	}

	switch format {
	case FormatTar:
		return newTarFormat(src), nil
	case FormatRAR:
		chain, ok := src.(*volumeChain)
		if !ok {
			return nil, FormatError{Format: format.String(), Reason: "compressed RAR input"}
		}
		head, _ := chain.detach()
		return newRARFormat(newVolumeFS(r.volumes, head, false))
	default:
		return nil, fmt.Errorf("%s: %w", format, ErrSeekRequired)
	}
}

// Next advances to the next entry. It returns io.EOF after the last entry.
// A warning-severity *Error comes with a usable entry.
func (r *Reader) Next() (*Entry, error) {
	if r.state != stateOpen || r.format == nil {
		return nil, fmt.Errorf("next entry: %w", ErrState)
	}
	r.closeData()

	entry, open, err := r.format.next()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		if IsWarning(err) && entry != nil {
			r.open = open
			return entry, err
		}
		var ae *Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, fatal("next entry", err)
	}
	r.open = open
	return entry, nil
}

func (r *Reader) current() error {
	if r.state != stateOpen || r.open == nil {
		return ErrState
	}
	if r.data != nil {
		return nil
	}
	data, closer, err := r.open()
	if err != nil {
		return &Error{Err: err, Op: "open entry data", Severity: SeverityFailed}
	}
	r.data, r.dataCloser = data, closer
	return nil
}

// ReadData reads the current entry's data. It returns io.EOF at the end of
// the entry.
func (r *Reader) ReadData(p []byte) (int, error) {
	if err := r.current(); err != nil {
		return 0, fmt.Errorf("read data: %w", err)
	}
	n, err := r.data.Read(p)
	if err == nil || errors.Is(err, io.EOF) {
		return n, err //nolint:wrapcheck // io.EOF must stay comparable
	}
	return n, fatal("read data", err)
}

// SeekData repositions within the current entry's data. It returns
// ErrUnsupported unless the format stores the entry as a plain byte range
// and the session can seek.
func (r *Reader) SeekData(offset int64, whence int) (int64, error) {
	if err := r.current(); err != nil {
		return 0, fmt.Errorf("seek data: %w", err)
	}
	seeker, ok := r.data.(io.Seeker)
	if !r.seek || !ok {
		return 0, ErrUnsupported
	}
	pos, err := seeker.Seek(offset, whence)
	if err != nil {
		return 0, &Error{Err: err, Op: "seek data", Severity: SeverityFailed}
	}
	return pos, nil
}

func (r *Reader) closeData() {
	if r.dataCloser != nil {
		if err := r.dataCloser.Close(); err != nil {
			r.log.Debug("close entry data", slog.Any("error", err))
		}
	}
	r.open, r.data, r.dataCloser = nil, nil, nil
}

// Close finishes the session and closes every attached volume once, in
// attachment order. Closing twice is a no-op.
func (r *Reader) Close() error {
	if r.state == stateClosed {
		return nil
	}
	r.state = stateClosed
	r.closeData()

	var errs []error
	if r.format != nil {
		if err := r.format.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s reader: %w", r.detected, err))
		}
		r.format = nil
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close filter: %w", err))
		}
	}
	r.closers = nil
	for _, v := range r.volumes {
		if err := v.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close volume %s: %w", v.Name(), err))
		}
	}
	r.volumes = nil
	return errors.Join(errs...)
}
