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

// Package archive is a pull-based archive decoding engine. A Reader session
// pulls its input through an ordered list of Volumes and supports ZIP, 7z,
// RAR, ISO 9660 and tar containers, optionally wrapped in gzip, bzip2, xz,
// zstd or lz4 compression.
//
// Formats and filters are opt-in: a session only recognizes what was
// registered with SupportFormat and SupportFilter.
//
// ZIP, 7z and ISO 9660 are read through random access, so they open only
// when EnableSeek was called and every volume can seek. Pipes and other
// unseekable inputs can carry tar and RAR, and filtered tar, but not ZIP or
// 7z (Open fails with ErrSeekRequired) nor ISO 9660 images.
package archive

import "io"

// Volume is one underlying byte source of a session. Multi-part archives
// attach one Volume per part, in order.
type Volume interface {
	// Name is the address of the volume. RAR sessions match continuation
	// volumes by its base name.
	Name() string

	// Read returns the next chunk of the volume. An empty chunk means the
	// volume is exhausted. The chunk is only valid until the next call.
	Read() ([]byte, error)

	// Seek repositions the volume like io.Seeker. Sessions only call it
	// after EnableSeek.
	Seek(offset int64, whence int) (int64, error)

	// Skip advances by up to n bytes and reports how far it moved.
	Skip(n int64) (int64, error)

	// Switch is called on a volume when the session moves on to it from the
	// previous one. It must rewind the volume to its start.
	Switch() error

	// Close releases the volume. Sessions call it exactly once.
	Close() error
}

// Format is a container format.
type Format int

// Supported container formats.
const (
	FormatZIP Format = iota + 1
	Format7Zip
	FormatRAR
	FormatISO9660
	FormatTar
)

func (f Format) String() string {
	switch f {
	case FormatZIP:
		return "zip"
	case Format7Zip:
		return "7z"
	case FormatRAR:
		return "rar"
	case FormatISO9660:
		return "iso9660"
	case FormatTar:
		return "tar"
	default:
		return "unknown"
	}
}

// Filter is a whole-stream compression wrapper.
type Filter int

// Supported filters.
const (
	FilterGzip Filter = iota + 1
	FilterBzip2
	FilterXz
	FilterZstd
	FilterLz4
)

func (f Filter) String() string {
	switch f {
	case FilterGzip:
		return "gzip"
	case FilterBzip2:
		return "bzip2"
	case FilterXz:
		return "xz"
	case FilterZstd:
		return "zstd"
	case FilterLz4:
		return "lz4"
	default:
		return "unknown"
	}
}

// opener lazily opens the data of the current entry. The returned closer may
// be nil.
type opener func() (io.Reader, io.Closer, error)

// formatReader iterates the entries of one container format.
type formatReader interface {
	next() (*Entry, opener, error)
	close() error
}

// onlyReader hides every method of a reader except Read, so that data
// readers never advertise seeking they do not support.
type onlyReader struct {
	r io.Reader
}

func (or onlyReader) Read(p []byte) (int, error) {
	return or.r.Read(p) //nolint:wrapcheck // Read error passthrough is intentional
}
