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

	"github.com/klauspost/compress/zip"
)

// zip general purpose flag bit marking an encrypted entry
const zipFlagEncrypted = 0x1

// zipFormat iterates the central directory of a ZIP archive.
type zipFormat struct {
	reader *zip.Reader
	ra     io.ReaderAt
	idx    int
}

func newZIPFormat(ra io.ReaderAt, size int64) (*zipFormat, error) {
	reader, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("open ZIP archive: %w", err)
	}
	return &zipFormat{reader: reader, ra: ra}, nil
}

func (za *zipFormat) next() (*Entry, opener, error) {
	if za.idx >= len(za.reader.File) {
		return nil, nil, io.EOF
	}
	file := za.reader.File[za.idx]
	za.idx++

	//nolint:gosec // Safe: file sizes don't exceed int64
	size := int64(file.UncompressedSize64)
	entry := newEntry(file.Name, file.Mode(), size, true)
	open := func() (io.Reader, io.Closer, error) { return za.open(file) }

	switch {
	case file.Flags&zipFlagEncrypted != 0:
		return entry, open, warning("zip", fmt.Errorf("entry %q is encrypted", file.Name))
	case file.Method != zip.Store && file.Method != zip.Deflate:
		return entry, open, warning("zip",
			fmt.Errorf("entry %q uses unsupported compression method %d", file.Name, file.Method))
	}
	return entry, open, nil
}

// open returns stored entries as a section of the archive so they can be
// repositioned; everything else goes through the decompressor.
func (za *zipFormat) open(file *zip.File) (io.Reader, io.Closer, error) {
	if file.Method == zip.Store && file.CompressedSize64 == file.UncompressedSize64 &&
		file.Flags&zipFlagEncrypted == 0 {
		offset, err := file.DataOffset()
		if err != nil {
			return nil, nil, fmt.Errorf("locate file in ZIP: %w", err)
		}
		//nolint:gosec // Safe: file sizes don't exceed int64
		return io.NewSectionReader(za.ra, offset, int64(file.UncompressedSize64)), nil, nil
	}

	reader, err := file.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open file in ZIP: %w", err)
	}
	return onlyReader{r: reader}, reader, nil
}

func (*zipFormat) close() error { return nil }
