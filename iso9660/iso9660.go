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

// Package iso9660 reads the directory tree of ISO 9660 disc images, both
// plain 2048-byte images and raw 2352-byte sector dumps.
package iso9660

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Common errors
var (
	ErrInvalidISO  = errors.New("invalid ISO9660 image")
	ErrPVDNotFound = errors.New("primary volume descriptor not found")
)

const (
	// LogicalSectorSize is the size of one user-data sector.
	LogicalSectorSize = 2048
	// RawSectorSize is the size of a raw CD sector including sync, header
	// and error correction.
	RawSectorSize = 2352

	pvdSector     = 16
	minRecordSize = 34
	maxDepth      = 64
)

// PVD magic word: 0x01 followed by "CD001"
var pvdMagicWord = []byte{0x01, 'C', 'D', '0', '0', '1'}

// layout describes where user data sits inside each physical sector.
type layout struct {
	sectorSize int64
	dataOffset int64
}

var layouts = []layout{
	{sectorSize: LogicalSectorSize, dataOffset: 0},
	{sectorSize: RawSectorSize, dataOffset: 16}, // mode 1
	{sectorSize: RawSectorSize, dataOffset: 24}, // mode 2 form 1
}

func detectLayout(ra io.ReaderAt) (layout, bool) {
	buf := make([]byte, len(pvdMagicWord))
	for _, l := range layouts {
		off := pvdSector*l.sectorSize + l.dataOffset
		if n, _ := ra.ReadAt(buf, off); n < len(buf) {
			continue
		}
		if bytes.Equal(buf, pvdMagicWord) {
			return l, true
		}
	}
	return layout{}, false
}

// Detect reports whether ra holds an ISO 9660 image and the physical
// sector size it uses.
func Detect(ra io.ReaderAt) (int, bool) {
	l, ok := detectLayout(ra)
	return int(l.sectorSize), ok
}

// FileEntry is one file or directory of the image. Path has no leading
// slash and no ";1" version suffix.
type FileEntry struct {
	Path  string
	LBA   uint32 // Logical Block Address
	Size  uint32
	IsDir bool
}

// Image is an opened ISO 9660 image.
type Image struct {
	ra         io.ReaderAt // logical sectors
	systemID   string
	volumeID   string
	size       int64
	sectorSize int
	rootLBA    uint32
	rootSize   uint32
}

// Open parses the primary volume descriptor of the image in ra.
func Open(ra io.ReaderAt, size int64) (*Image, error) {
	l, ok := detectLayout(ra)
	if !ok {
		return nil, ErrPVDNotFound
	}

	img := &Image{ra: ra, size: size, sectorSize: int(l.sectorSize)}
	if l.sectorSize != LogicalSectorSize {
		img.ra = &sectorReader{ra: ra, layout: l}
		img.size = size / l.sectorSize * LogicalSectorSize
	}

	pvd := make([]byte, LogicalSectorSize)
	if _, err := img.ra.ReadAt(pvd, pvdSector*LogicalSectorSize); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read PVD: %w", err)
	}

	img.systemID = strings.TrimRight(string(pvd[8:40]), " \x00")
	img.volumeID = strings.TrimRight(string(pvd[40:72]), " \x00")

	// Root directory record at offset 156
	root := pvd[156 : 156+minRecordSize]
	img.rootLBA = binary.LittleEndian.Uint32(root[2:6])
	img.rootSize = binary.LittleEndian.Uint32(root[10:14])
	if root[25]&0x02 == 0 {
		return nil, fmt.Errorf("%w: root record is not a directory", ErrInvalidISO)
	}
	return img, nil
}

// SystemID returns the system identifier from the PVD.
func (img *Image) SystemID() string { return img.systemID }

// VolumeID returns the volume identifier from the PVD.
func (img *Image) VolumeID() string { return img.volumeID }

// SectorSize returns the physical sector size of the image.
func (img *Image) SectorSize() int { return img.sectorSize }

// Walk lists every file and directory reachable from the root directory,
// parents before their children.
func (img *Image) Walk() ([]FileEntry, error) {
	w := &walker{img: img, visited: make(map[uint32]bool)}
	if err := w.dir(img.rootLBA, img.rootSize, "", 0); err != nil {
		return nil, err
	}
	return w.entries, nil
}

type walker struct {
	img     *Image
	visited map[uint32]bool
	entries []FileEntry
}

func (w *walker) dir(lba, size uint32, prefix string, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: directories nested too deep", ErrInvalidISO)
	}
	if w.visited[lba] {
		return nil
	}
	w.visited[lba] = true

	start := int64(lba) * LogicalSectorSize
	if start+int64(size) > w.img.size {
		return fmt.Errorf("%w: directory %q extends past the image", ErrInvalidISO, prefix)
	}
	data := make([]byte, size)
	if _, err := w.img.ra.ReadAt(data, start); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read directory %q: %w", prefix, err)
	}

	for off := 0; off < len(data); {
		recLen := int(data[off])
		if recLen == 0 {
			// records never span sectors; the rest of this one is padding
			off = (off/LogicalSectorSize + 1) * LogicalSectorSize
			continue
		}
		if recLen < minRecordSize || off+recLen > len(data) {
			return fmt.Errorf("%w: bad directory record in %q", ErrInvalidISO, prefix)
		}
		rec := data[off : off+recLen]
		off += recLen

		nameLen := int(rec[32])
		if 33+nameLen > recLen {
			return fmt.Errorf("%w: bad file identifier in %q", ErrInvalidISO, prefix)
		}
		ident := rec[33 : 33+nameLen]
		if nameLen == 1 && (ident[0] == 0x00 || ident[0] == 0x01) {
			continue // . and ..
		}

		name := cleanName(string(ident))
		if name == "" {
			continue
		}
		entry := FileEntry{
			Path:  path.Join(prefix, name),
			LBA:   binary.LittleEndian.Uint32(rec[2:6]),
			Size:  binary.LittleEndian.Uint32(rec[10:14]),
			IsDir: rec[25]&0x02 != 0,
		}
		w.entries = append(w.entries, entry)
		if entry.IsDir {
			if err := w.dir(entry.LBA, entry.Size, entry.Path, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// cleanName strips the version suffix and the trailing dot of names
// without an extension.
func cleanName(name string) string {
	if i := strings.IndexByte(name, ';'); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSuffix(name, ".")
}

// Section returns the data of a file entry.
func (img *Image) Section(entry FileEntry) *io.SectionReader {
	return io.NewSectionReader(img.ra, int64(entry.LBA)*LogicalSectorSize, int64(entry.Size))
}

// sectorReader maps logical 2048-byte sector offsets onto raw sectors.
type sectorReader struct {
	ra     io.ReaderAt
	layout layout
}

func (sr *sectorReader) ReadAt(p []byte, off int64) (int, error) {
	read := 0
	for read < len(p) {
		sector, within := off/LogicalSectorSize, off%LogicalSectorSize
		phys := sector*sr.layout.sectorSize + sr.layout.dataOffset + within
		chunk := p[read:min(len(p), read+int(LogicalSectorSize-within))]

		n, err := sr.ra.ReadAt(chunk, phys)
		read += n
		off += int64(n)
		if err != nil {
			return read, err //nolint:wrapcheck // io.EOF must stay comparable
		}
	}
	return read, nil
}
