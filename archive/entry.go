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

import "io/fs"

// FileType classifies an archive entry.
type FileType int

// Entry types.
const (
	TypeRegular FileType = iota + 1
	TypeDirectory
	TypeSymlink
	TypeOther
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Entry describes one member of an archive.
type Entry struct {
	name    string
	size    int64
	Type    FileType
	hasName bool
	hasSize bool
}

func newEntry(name string, mode fs.FileMode, size int64, sizeKnown bool) *Entry {
	return &Entry{
		name:    name,
		size:    size,
		Type:    typeFromMode(mode),
		hasName: name != "",
		hasSize: sizeKnown && size >= 0,
	}
}

func typeFromMode(mode fs.FileMode) FileType {
	switch {
	case mode.IsRegular():
		return TypeRegular
	case mode.IsDir():
		return TypeDirectory
	case mode&fs.ModeSymlink != 0:
		return TypeSymlink
	default:
		return TypeOther
	}
}

// Pathname returns the entry's path inside the archive. ok is false when the
// archive does not record one.
func (e *Entry) Pathname() (name string, ok bool) {
	return e.name, e.hasName
}

// Size returns the uncompressed byte length. ok is false when the archive
// does not record it.
func (e *Entry) Size() (size int64, ok bool) {
	return e.size, e.hasSize
}
