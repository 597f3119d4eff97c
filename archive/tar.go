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
	"archive/tar"
	"errors"
	"fmt"
	"io"
)

// tarFormat reads tar archives sequentially.
type tarFormat struct {
	reader *tar.Reader
}

func newTarFormat(r io.Reader) *tarFormat {
	return &tarFormat{reader: tar.NewReader(r)}
}

func (ta *tarFormat) next() (*Entry, opener, error) {
	header, err := ta.reader.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil, io.EOF
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read tar header: %w", err)
	}

	entry := newEntry(header.Name, header.FileInfo().Mode(), header.Size, true)
	open := func() (io.Reader, io.Closer, error) {
		return onlyReader{r: ta.reader}, nil, nil
	}

	switch header.Typeflag {
	case tar.TypeReg, tar.TypeDir, tar.TypeSymlink,
		tar.TypeChar, tar.TypeBlock, tar.TypeFifo, tar.TypeGNUSparse:
		return entry, open, nil
	case tar.TypeLink:
		// hard links carry no data of their own
		entry.Type = TypeOther
		return entry, open, nil
	default:
		entry.Type = TypeOther
		return entry, open, warning("tar",
			fmt.Errorf("entry %q has unknown type %q", header.Name, header.Typeflag))
	}
}

func (*tarFormat) close() error { return nil }
