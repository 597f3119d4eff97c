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

//nolint:dupl // Format readers are intentionally similar but use different types
package archive

import (
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// sevenZipFormat iterates the files of a 7z archive.
type sevenZipFormat struct {
	reader *sevenzip.Reader
	idx    int
}

func newSevenZipFormat(ra io.ReaderAt, size int64) (*sevenZipFormat, error) {
	reader, err := sevenzip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("open 7z archive: %w", err)
	}
	return &sevenZipFormat{reader: reader}, nil
}

func (sza *sevenZipFormat) next() (*Entry, opener, error) {
	if sza.idx >= len(sza.reader.File) {
		return nil, nil, io.EOF
	}
	file := sza.reader.File[sza.idx]
	sza.idx++

	//nolint:gosec // Safe: file sizes don't exceed int64
	entry := newEntry(file.Name, file.Mode(), int64(file.UncompressedSize), true)
	open := func() (io.Reader, io.Closer, error) {
		reader, err := file.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open file in 7z: %w", err)
		}
		return onlyReader{r: reader}, reader, nil
	}
	return entry, open, nil
}

func (*sevenZipFormat) close() error { return nil }
