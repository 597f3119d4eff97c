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
	"fmt"
	"io"
	"io/fs"

	"github.com/ZaparooProject/go-archivestream/iso9660"
)

// isoFormat walks the directory tree of an ISO 9660 image.
type isoFormat struct {
	image   *iso9660.Image
	entries []iso9660.FileEntry
	idx     int
}

func newISOFormat(ra io.ReaderAt, size int64) (*isoFormat, error) {
	image, err := iso9660.Open(ra, size)
	if err != nil {
		return nil, fmt.Errorf("open ISO 9660 image: %w", err)
	}
	entries, err := image.Walk()
	if err != nil {
		return nil, fmt.Errorf("walk ISO 9660 image: %w", err)
	}
	return &isoFormat{image: image, entries: entries}, nil
}

func (ia *isoFormat) next() (*Entry, opener, error) {
	if ia.idx >= len(ia.entries) {
		return nil, nil, io.EOF
	}
	file := ia.entries[ia.idx]
	ia.idx++

	mode, size := fs.FileMode(0o444), int64(file.Size)
	if file.IsDir {
		mode, size = fs.ModeDir|0o555, 0
	}
	entry := newEntry(file.Path, mode, size, true)
	open := func() (io.Reader, io.Closer, error) {
		return ia.image.Section(file), nil, nil
	}
	return entry, open, nil
}

func (*isoFormat) close() error { return nil }
