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

// Package fixture builds small archives and disc images for tests.
package fixture

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// File is one member of a fixture archive.
type File struct {
	Name    string
	Link    string // symlink target, tar only
	Data    []byte
	Dir     bool
	Deflate bool // zip only; members are stored otherwise
}

// Zip builds a ZIP archive.
func Zip(tb testing.TB, files ...File) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		header := &zip.FileHeader{Name: f.Name, Method: zip.Store}
		if f.Deflate {
			header.Method = zip.Deflate
		}
		if f.Dir {
			header.Name = strings.TrimSuffix(f.Name, "/") + "/"
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			tb.Fatalf("create zip entry %s: %v", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			tb.Fatalf("write zip entry %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// Tar builds a tar archive.
func Tar(tb testing.TB, files ...File) []byte {
	tb.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		header := &tar.Header{Name: f.Name, Mode: 0o644, Size: int64(len(f.Data)), Typeflag: tar.TypeReg}
		switch {
		case f.Dir:
			header = &tar.Header{Name: strings.TrimSuffix(f.Name, "/") + "/", Mode: 0o755, Typeflag: tar.TypeDir}
		case f.Link != "":
			header = &tar.Header{Name: f.Name, Linkname: f.Link, Mode: 0o777, Typeflag: tar.TypeSymlink}
		}
		if err := tw.WriteHeader(header); err != nil {
			tb.Fatalf("write tar header %s: %v", f.Name, err)
		}
		if header.Typeflag == tar.TypeReg {
			if _, err := tw.Write(f.Data); err != nil {
				tb.Fatalf("write tar entry %s: %v", f.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		tb.Fatalf("close tar: %v", err)
	}
	return buf.Bytes()
}

// Gzip compresses data with gzip.
func Gzip(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		tb.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("gzip: %v", err)
	}
	return buf.Bytes()
}

// Xz compresses data with xz.
func Xz(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		tb.Fatalf("xz: %v", err)
	}
	if _, err := xw.Write(data); err != nil {
		tb.Fatalf("xz: %v", err)
	}
	if err := xw.Close(); err != nil {
		tb.Fatalf("xz: %v", err)
	}
	return buf.Bytes()
}

// Zstd compresses data with zstd.
func Zstd(tb testing.TB, data []byte) []byte {
	tb.Helper()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		tb.Fatalf("zstd: %v", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil)
}

// Lz4 compresses data with the lz4 frame format.
func Lz4(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	lw := lz4.NewWriter(&buf)
	if _, err := lw.Write(data); err != nil {
		tb.Fatalf("lz4: %v", err)
	}
	if err := lw.Close(); err != nil {
		tb.Fatalf("lz4: %v", err)
	}
	return buf.Bytes()
}

// Split cuts data into n consecutive parts of nearly equal size.
func Split(data []byte, n int) [][]byte {
	parts := make([][]byte, 0, n)
	size := (len(data) + n - 1) / n
	for i := range n {
		start := min(i*size, len(data))
		end := min(start+size, len(data))
		parts = append(parts, data[start:end])
	}
	return parts
}

// WriteFiles writes each part under dir with the matching name and returns
// the path of the first one.
func WriteFiles(tb testing.TB, dir string, names []string, parts [][]byte) string {
	tb.Helper()

	if len(names) != len(parts) {
		tb.Fatalf("%d names for %d parts", len(names), len(parts))
	}
	for i, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), parts[i], 0o600); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}
	return filepath.Join(dir, names[0])
}

const sectorSize = 2048

type isoNode struct {
	parent   *isoNode
	name     string
	data     []byte
	children []*isoNode
	lba      uint32
	size     uint32
	dir      bool
}

func (n *isoNode) child(name string, dir bool) *isoNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &isoNode{parent: n, name: name, dir: dir}
	n.children = append(n.children, c)
	sort.Slice(n.children, func(i, j int) bool { return n.children[i].name < n.children[j].name })
	return c
}

type isoRecord struct {
	node  *isoNode
	ident string
}

func (n *isoNode) records() []isoRecord {
	recs := []isoRecord{{node: n, ident: "\x00"}, {node: n.parent, ident: "\x01"}}
	for _, c := range n.children {
		ident := c.name
		if !c.dir {
			ident += ";1"
		}
		recs = append(recs, isoRecord{node: c, ident: ident})
	}
	return recs
}

func recordLen(ident string) int {
	n := 33 + len(ident)
	return n + n%2
}

// layoutRecords calls place with the sector and offset of every record of
// the directory. Records never cross a sector boundary.
func (n *isoNode) layoutRecords(place func(rec isoRecord, sector, off int)) int {
	sector, off := 0, 0
	for _, rec := range n.records() {
		size := recordLen(rec.ident)
		if off+size > sectorSize {
			sector, off = sector+1, 0
		}
		place(rec, sector, off)
		off += size
	}
	return sector + 1
}

func putBoth32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
	binary.BigEndian.PutUint32(b[4:], v)
}

func putBoth16(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
	binary.BigEndian.PutUint16(b[2:], v)
}

func putRecord(b []byte, rec isoRecord) {
	size := recordLen(rec.ident)
	b[0] = byte(size)
	putBoth32(b[2:], rec.node.lba)
	putBoth32(b[10:], rec.node.size)
	if rec.node.dir {
		b[25] = 0x02
	}
	putBoth16(b[28:], 1) // volume sequence number
	b[32] = byte(len(rec.ident))
	copy(b[33:], rec.ident)
}

// ISO builds a 2048-byte-sector ISO 9660 image. Names may contain slashes;
// intermediate directories are created as needed.
func ISO(tb testing.TB, volumeID string, files ...File) []byte {
	tb.Helper()

	root := &isoNode{dir: true}
	root.parent = root
	for _, f := range files {
		parts := strings.Split(strings.Trim(f.Name, "/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			tb.Fatalf("bad ISO file name %q", f.Name)
		}
		dir := root
		for _, p := range parts[:len(parts)-1] {
			dir = dir.child(p, true)
		}
		leaf := dir.child(parts[len(parts)-1], f.Dir)
		leaf.data = f.Data
	}

	var dirs, regular []*isoNode
	var collect func(n *isoNode)
	collect = func(n *isoNode) {
		dirs = append(dirs, n)
		for _, c := range n.children {
			if c.dir {
				collect(c)
			}
		}
	}
	collect(root)

	next := uint32(18) // after the PVD and the set terminator
	for _, d := range dirs {
		sectors := uint32(d.layoutRecords(func(isoRecord, int, int) {}))
		d.lba, d.size = next, sectors*sectorSize
		next += sectors
		for _, c := range d.children {
			if !c.dir {
				regular = append(regular, c)
			}
		}
	}
	for _, f := range regular {
		f.lba, f.size = next, uint32(len(f.data))
		next += uint32((len(f.data) + sectorSize - 1) / sectorSize)
	}

	img := make([]byte, int(next)*sectorSize)

	pvd := img[16*sectorSize:]
	pvd[0] = 0x01
	copy(pvd[1:], "CD001")
	pvd[6] = 0x01
	copy(pvd[8:40], padRight("ARCHIVESTREAM", 32))
	copy(pvd[40:72], padRight(volumeID, 32))
	putBoth32(pvd[80:], next)
	putBoth16(pvd[120:], 1)
	putBoth16(pvd[124:], 1)
	putBoth16(pvd[128:], sectorSize)
	putRecord(pvd[156:], isoRecord{node: root, ident: "\x00"})

	term := img[17*sectorSize:]
	term[0] = 0xff
	copy(term[1:], "CD001")
	term[6] = 0x01

	for _, d := range dirs {
		base := int(d.lba) * sectorSize
		d.layoutRecords(func(rec isoRecord, sector, off int) {
			putRecord(img[base+sector*sectorSize+off:], rec)
		})
	}
	for _, f := range regular {
		copy(img[int(f.lba)*sectorSize:], f.data)
	}
	return img
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// RawSectors converts a 2048-byte-sector image into mode 1 raw 2352-byte
// sectors. Error correction fields are left zero.
func RawSectors(img []byte) []byte {
	const rawSize = 2352
	count := len(img) / sectorSize
	raw := make([]byte, count*rawSize)
	for i := range count {
		sector := raw[i*rawSize:]
		sector[0] = 0x00
		for j := 1; j <= 10; j++ {
			sector[j] = 0xff
		}
		sector[11] = 0x00
		sector[15] = 0x01 // mode 1
		copy(sector[16:16+sectorSize], img[i*sectorSize:])
	}
	return raw
}
