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

package archivestream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ZaparooProject/go-archivestream/archive"
	"github.com/ZaparooProject/go-archivestream/stream"
)

const (
	// seekChunk is how much entry data a forward seek discards per read.
	seekChunk = 4096

	maxEmptyReads = 100
)

// SyntheticName is the name given to the n-th (0-based) regular entry of an
// archive when the archive records no name for it.
func SyntheticName(n int) string {
	return fmt.Sprintf("unknown#%d", n)
}

// entryStream serves one regular file inside an archive. archive is nil once
// the stream is dead.
type entryStream struct {
	archive *Archive
	src     *stream.Stream
	log     *slog.Logger
	name    string
	size    int64 // -1 when unknown
	flags   Flags
}

// seekableEntryStream is used when the primary stream can seek, which is
// what reopening the archive relies on.
type seekableEntryStream struct {
	*entryStream
}

func openEntry(ctx context.Context, req *stream.Request, flags Flags) (stream.Backend, error) {
	archiveURL, name, err := ParseAddress(req.Path)
	if err != nil {
		return nil, err
	}

	src, err := stream.Open(ctx, archiveURL, stream.FlagRead|stream.FlagSafeOnly, req.Global)
	if err != nil {
		return nil, fmt.Errorf("open archive stream: %w", err)
	}

	es := &entryStream{
		src:   src,
		log:   src.Logger(),
		name:  name,
		size:  -1,
		flags: flags | FlagUnsafe,
	}
	if err := es.reopen(); err != nil {
		_ = es.Close()
		return nil, err
	}

	if src.Seekable() {
		return &seekableEntryStream{entryStream: es}, nil
	}
	return es, nil
}

// reopen replaces the archive with a fresh one over the same primary stream
// and scans it for the entry. On failure the stream is left dead.
func (es *entryStream) reopen() error {
	if err := es.archive.Close(); err != nil {
		es.log.Debug("close archive before reopen", slog.Any("error", err))
	}
	es.archive = nil

	a, err := NewArchive(es.src, es.flags)
	if err != nil {
		es.log.Error("could not open archive",
			slog.String("url", es.src.URL()),
			slog.Any("error", err))
		return err
	}

	if err := es.scan(a.Reader()); err != nil {
		_ = a.Close()
		return err
	}
	es.archive = a
	return nil
}

func (es *entryStream) scan(r *archive.Reader) error {
	regular := 0
	for {
		entry, err := r.Next()
		if errors.Is(err, io.EOF) {
			es.log.Error("archive entry not found", slog.String("entry", es.name))
			return EntryNotFoundError{Archive: es.src.URL(), Entry: es.name}
		}
		if err != nil {
			if !archive.IsWarning(err) {
				es.log.Error("could not read archive", slog.Any("error", err))
				return fmt.Errorf("scan archive %s: %w", es.src.URL(), err)
			}
			es.log.Warn("archive warning", slog.Any("error", err))
		}
		if entry == nil || entry.Type != archive.TypeRegular {
			continue
		}

		name, ok := entry.Pathname()
		if !ok {
			name = SyntheticName(regular)
		}
		if name == es.name {
			es.size = -1
			if size, ok := entry.Size(); ok {
				es.size = size
			}
			return nil
		}
		regular++
	}
}

// Fill reads entry data. A dead stream reports end of data.
func (es *entryStream) Fill(p []byte) (int, error) {
	if es.archive == nil {
		return 0, io.EOF
	}
	n, err := es.archive.Reader().ReadData(p)
	if err != nil && !errors.Is(err, io.EOF) {
		es.log.Error("read archive entry", slog.String("entry", es.name), slog.Any("error", err))
	}
	return n, err //nolint:wrapcheck // Stream wraps backend errors
}

// Size returns the entry's length when the archive records it.
func (es *entryStream) Size() (int64, error) {
	if es.size < 0 {
		return 0, stream.ErrUnsupported
	}
	return es.size, nil
}

// BaseURL returns the address of the archive holding the entry.
func (es *entryStream) BaseURL() (string, error) {
	return es.src.URL(), nil
}

func (es *entryStream) Close() error {
	errArchive := es.archive.Close()
	es.archive = nil
	return errors.Join(errArchive, es.src.Close())
}

// Seek moves to target. Formats that store the entry as a plain byte range
// seek natively; otherwise a backward seek reopens the archive and rescans
// it, and any forward distance is read and discarded.
func (ses *seekableEntryStream) Seek(cur, target int64) (int64, error) {
	es := ses.entryStream
	if es.archive == nil {
		return cur, ErrDead
	}

	pos, err := es.archive.Reader().SeekData(target, io.SeekStart)
	if err == nil {
		return pos, nil
	}
	if !errors.Is(err, archive.ErrUnsupported) {
		es.log.Debug("native entry seek failed", slog.Any("error", err))
	}

	if target < cur {
		es.log.Debug("reopening archive to seek backwards",
			slog.String("entry", es.name),
			slog.Int64("from", cur),
			slog.Int64("to", target))
		if err := es.reopen(); err != nil {
			return cur, fmt.Errorf("reopen for backward seek: %w", err)
		}
		cur = 0
	}
	return es.discard(cur, target)
}

// discard reads forward from cur to target and returns the position it got
// to.
func (es *entryStream) discard(cur, target int64) (int64, error) {
	buf := make([]byte, seekChunk)
	empty := 0
	for cur < target {
		n, err := es.archive.Reader().ReadData(buf[:min(target-cur, seekChunk)])
		cur += int64(n)
		switch {
		case errors.Is(err, io.EOF):
			if cur < target {
				return cur, fmt.Errorf("seek past end of entry: %w", io.ErrUnexpectedEOF)
			}
		case err != nil:
			es.log.Error("read archive entry", slog.String("entry", es.name), slog.Any("error", err))
			return cur, fmt.Errorf("seek in entry: %w", err)
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return cur, io.ErrNoProgress
			}
		default:
			empty = 0
		}
	}
	return cur, nil
}
