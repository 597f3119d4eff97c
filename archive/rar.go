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
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// rarFormat reads RAR archives, including multi-volume ones. rardecode
// requests continuation volumes by name from a volumeFS.
type rarFormat struct {
	reader *rardecode.ReadCloser
}

func newRARFormat(fsys *volumeFS) (*rarFormat, error) {
	reader, err := rardecode.OpenReader(fsys.primary(), rardecode.FileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("create RAR reader: %w", err)
	}
	return &rarFormat{reader: reader}, nil
}

func (ra *rarFormat) next() (*Entry, opener, error) {
	header, err := ra.reader.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil, io.EOF
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read RAR header: %w", err)
	}

	entry := newEntry(header.Name, header.Mode(), header.UnPackedSize, !header.UnKnownSize)
	if header.IsDir {
		entry.Type = TypeDirectory
	}

	// the entry's data is whatever the reader returns until the next header
	open := func() (io.Reader, io.Closer, error) {
		return onlyReader{r: ra.reader}, nil, nil
	}

	if header.Encrypted {
		return entry, open, warning("rar", fmt.Errorf("entry %q is encrypted", header.Name))
	}
	return entry, open, nil
}

func (ra *rarFormat) close() error {
	return ra.reader.Close() //nolint:wrapcheck // Close error passthrough is intentional
}
