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
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// maxFilters bounds how many compression layers are unwrapped.
const maxFilters = 3

var filterMagic = []struct {
	magic  []byte
	filter Filter
}{
	{magic: []byte{0x1f, 0x8b}, filter: FilterGzip},
	{magic: []byte("BZh"), filter: FilterBzip2},
	{magic: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, filter: FilterXz},
	{magic: []byte{0x28, 0xb5, 0x2f, 0xfd}, filter: FilterZstd},
	{magic: []byte{0x04, 0x22, 0x4d, 0x18}, filter: FilterLz4},
}

// detectFilter recognizes a compression wrapper by its leading bytes.
func detectFilter(head []byte) (Filter, bool) {
	for _, fm := range filterMagic {
		if bytes.HasPrefix(head, fm.magic) {
			return fm.filter, true
		}
	}
	return 0, false
}

// newFilterReader wraps r in the decompressor for f. The closer may be nil.
func newFilterReader(f Filter, r io.Reader) (io.Reader, io.Closer, error) {
	switch f {
	case FilterGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, zr, nil
	case FilterBzip2:
		return bzip2.NewReader(r), nil, nil
	case FilterXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open xz stream: %w", err)
		}
		return xr, nil, nil
	case FilterZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open zstd stream: %w", err)
		}
		rc := dec.IOReadCloser()
		return rc, rc, nil
	case FilterLz4:
		return lz4.NewReader(r), nil, nil
	default:
		return nil, nil, FormatError{Format: f.String(), Reason: "unknown filter"}
	}
}
