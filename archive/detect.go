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
	"io"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-archivestream/iso9660"
)

// headSize is how many leading bytes format detection looks at.
const headSize = 512

var formatMagic = []struct {
	magic  []byte
	format Format
}{
	{magic: []byte("PK\x03\x04"), format: FormatZIP},
	{magic: []byte("PK\x05\x06"), format: FormatZIP},
	{magic: []byte("PK\x07\x08"), format: FormatZIP},
	{magic: []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}, format: Format7Zip},
	{magic: []byte("Rar!\x1a\x07"), format: FormatRAR},
}

// detectFormat recognizes a container format from its leading bytes.
func detectFormat(head []byte) (Format, bool) {
	for _, fm := range formatMagic {
		if bytes.HasPrefix(head, fm.magic) {
			return fm.format, true
		}
	}
	if isTarHeader(head) {
		return FormatTar, true
	}
	return 0, false
}

// detectRandomFormat also recognizes formats whose signature is not at the
// start of the input.
func detectRandomFormat(head []byte, ra io.ReaderAt) (Format, bool) {
	if f, ok := detectFormat(head); ok {
		return f, true
	}
	if _, ok := iso9660.Detect(ra); ok {
		return FormatISO9660, true
	}
	return 0, false
}

// isTarHeader validates the header checksum of a tar block, which also
// accepts pre-POSIX archives without the "ustar" magic.
func isTarHeader(head []byte) bool {
	if len(head) < headSize {
		return false
	}
	if bytes.Equal(head[257:262], []byte("ustar")) {
		return true
	}

	field := strings.TrimRight(strings.TrimSpace(string(head[148:156])), "\x00")
	field = strings.TrimSpace(field)
	if field == "" {
		return false
	}
	want, err := strconv.ParseUint(field, 8, 32)
	if err != nil {
		return false
	}

	var sum uint64
	for i, b := range head[:headSize] {
		if i >= 148 && i < 156 {
			b = ' '
		}
		sum += uint64(b)
	}
	return sum == want
}
