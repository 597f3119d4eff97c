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
	"fmt"
	"log/slog"

	"github.com/ZaparooProject/go-archivestream/archive"
	"github.com/ZaparooProject/go-archivestream/stream"
)

// Flags control how an Archive is opened.
type Flags int

const (
	// FlagUnsafe also enables tar, whose entries may carry hostile paths or
	// links. Only trusted reopen paths set it.
	FlagUnsafe Flags = 1 << iota

	// FlagClampReadErrors makes volumes report failed underlying reads as
	// the end of the volume.
	FlagClampReadErrors
)

var (
	safeFormats = []archive.Format{
		archive.Format7Zip,
		archive.FormatISO9660,
		archive.FormatRAR,
		archive.FormatZIP,
	}
	filters = []archive.Filter{
		archive.FilterBzip2,
		archive.FilterGzip,
		archive.FilterXz,
		archive.FilterZstd,
		archive.FilterLz4,
	}
)

// Archive owns one decoding session and the volumes attached to it.
type Archive struct {
	reader  *archive.Reader
	log     *slog.Logger
	volumes []*Volume
	buf     []byte
}

// NewArchive opens a decoding session over src and any sibling volumes found
// by name pattern. src stays owned by the caller and must outlive the
// Archive. On failure nothing is left open except src.
func NewArchive(src *stream.Stream, flags Flags) (*Archive, error) {
	log := src.Logger()
	a := &Archive{
		reader: archive.NewReader(archive.WithLogger(log)),
		log:    log,
		buf:    make([]byte, ReadSize),
	}

	// first volume is the primary stream
	if err := a.addVolume(src, false, flags); err != nil {
		_ = a.Close()
		return nil, err
	}

	if pattern := FindVolumePattern(src.URL()); pattern != nil {
		for url := range pattern.Volumes(src.URL()) {
			sibling, err := stream.Open(src.Context(), url, stream.FlagRead, src.Global())
			if err != nil {
				log.Debug("no more volumes", slog.String("url", url), slog.Any("error", err))
				break
			}
			if err := a.addVolume(sibling, true, flags); err != nil {
				_ = sibling.Close()
				_ = a.Close()
				return nil, err
			}
		}
	}

	for _, f := range safeFormats {
		a.reader.SupportFormat(f)
	}
	if flags&FlagUnsafe != 0 {
		a.reader.SupportFormat(archive.FormatTar)
	}
	for _, f := range filters {
		a.reader.SupportFilter(f)
	}
	if src.Seekable() {
		a.reader.EnableSeek()
	}

	if err := a.reader.Open(); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open archive %s: %w", src.URL(), err)
	}
	return a, nil
}

func (a *Archive) addVolume(s *stream.Stream, own bool, flags Flags) error {
	if err := s.Seek(0); err != nil {
		a.log.Debug("rewind volume", slog.String("url", s.URL()), slog.Any("error", err))
	}
	vol := newVolume(s, a.buf, own, flags&FlagClampReadErrors != 0)
	if err := a.reader.AppendVolume(vol); err != nil {
		return fmt.Errorf("attach volume %s: %w", s.URL(), err)
	}
	a.volumes = append(a.volumes, vol)
	return nil
}

// Reader returns the decoding session.
func (a *Archive) Reader() *archive.Reader { return a.reader }

// Volumes returns the attached volumes, primary first.
func (a *Archive) Volumes() []*Volume { return a.volumes }

// Close ends the session, which closes every volume once in attachment
// order. It is safe on a nil Archive and when called more than once.
func (a *Archive) Close() error {
	if a == nil || a.reader == nil {
		return nil
	}
	err := a.reader.Close()
	a.reader = nil
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}
