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

package iso9660

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ZaparooProject/go-archivestream/internal/fixture"
)

func testImage(t *testing.T) []byte {
	t.Helper()
	return fixture.ISO(t, "TESTVOL",
		fixture.File{Name: "README.TXT", Data: []byte("hello iso")},
		fixture.File{Name: "DATA/GAME.BIN", Data: bytes.Repeat([]byte("0123456789"), 500)},
		fixture.File{Name: "DATA/SUB/DEEP.DAT", Data: []byte("deep")},
		fixture.File{Name: "EMPTY", Dir: true},
	)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	img := testImage(t)

	sector, ok := Detect(bytes.NewReader(img))
	if !ok || sector != LogicalSectorSize {
		t.Errorf("Detect() = %d, %v, want %d, true", sector, ok, LogicalSectorSize)
	}

	sector, ok = Detect(bytes.NewReader(fixture.RawSectors(img)))
	if !ok || sector != RawSectorSize {
		t.Errorf("Detect(raw) = %d, %v, want %d, true", sector, ok, RawSectorSize)
	}

	if _, ok := Detect(bytes.NewReader(make([]byte, 20*LogicalSectorSize))); ok {
		t.Error("Detect() should reject an image without a PVD")
	}
	if _, ok := Detect(bytes.NewReader([]byte("short"))); ok {
		t.Error("Detect() should reject short input")
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	img := testImage(t)
	iso, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if iso.VolumeID() != "TESTVOL" {
		t.Errorf("VolumeID() = %q, want %q", iso.VolumeID(), "TESTVOL")
	}
	if iso.SystemID() != "ARCHIVESTREAM" {
		t.Errorf("SystemID() = %q, want %q", iso.SystemID(), "ARCHIVESTREAM")
	}
	if iso.SectorSize() != LogicalSectorSize {
		t.Errorf("SectorSize() = %d, want %d", iso.SectorSize(), LogicalSectorSize)
	}
}

func TestOpen_NoPVD(t *testing.T) {
	t.Parallel()

	data := make([]byte, 20*LogicalSectorSize)
	_, err := Open(bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrPVDNotFound) {
		t.Errorf("Open() error = %v, want %v", err, ErrPVDNotFound)
	}
}

func checkWalk(t *testing.T, iso *Image) {
	t.Helper()

	entries, err := iso.Walk()
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []struct {
		path  string
		isDir bool
	}{
		{"DATA", true},
		{"DATA/GAME.BIN", false},
		{"DATA/SUB", true},
		{"DATA/SUB/DEEP.DAT", false},
		{"EMPTY", true},
		{"README.TXT", false},
	}
	if len(entries) != len(want) {
		t.Fatalf("Walk() returned %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		if entries[i].Path != w.path || entries[i].IsDir != w.isDir {
			t.Errorf("entry %d = %q (dir %v), want %q (dir %v)",
				i, entries[i].Path, entries[i].IsDir, w.path, w.isDir)
		}
	}

	data, err := io.ReadAll(iso.Section(entries[1]))
	if err != nil {
		t.Fatalf("read GAME.BIN: %v", err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte("0123456789"), 500)) {
		t.Errorf("GAME.BIN content mismatch (%d bytes)", len(data))
	}

	data, err = io.ReadAll(iso.Section(entries[5]))
	if err != nil {
		t.Fatalf("read README.TXT: %v", err)
	}
	if string(data) != "hello iso" {
		t.Errorf("README.TXT = %q, want %q", data, "hello iso")
	}
}

func TestWalk(t *testing.T) {
	t.Parallel()

	img := testImage(t)
	iso, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	checkWalk(t, iso)
}

func TestWalk_RawSectors(t *testing.T) {
	t.Parallel()

	raw := fixture.RawSectors(testImage(t))
	iso, err := Open(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if iso.SectorSize() != RawSectorSize {
		t.Errorf("SectorSize() = %d, want %d", iso.SectorSize(), RawSectorSize)
	}
	checkWalk(t, iso)
}

func TestWalk_RecordsSpanSectors(t *testing.T) {
	t.Parallel()

	// enough long names to push the directory past one sector
	var files []fixture.File
	for i := range 80 {
		name := "DIR/" + strings.Repeat("X", 20) + string(rune('A'+i/26)) + string(rune('A'+i%26)) + ".BIN"
		files = append(files, fixture.File{Name: name, Data: []byte{byte(i)}})
	}
	img := fixture.ISO(t, "SPAN", files...)

	iso, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	entries, err := iso.Walk()
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(entries) != 81 {
		t.Fatalf("Walk() returned %d entries, want 81", len(entries))
	}
	if entries[0].Size <= LogicalSectorSize {
		t.Errorf("directory size = %d, want more than one sector", entries[0].Size)
	}
}

func TestWalk_DirectoryLoop(t *testing.T) {
	t.Parallel()

	img := testImage(t)
	iso, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// point DATA/SUB back at the root directory
	entries, err := iso.Walk()
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	var data FileEntry
	for _, e := range entries {
		if e.Path == "DATA" {
			data = e
		}
	}
	patchDirectory(t, img, data.LBA, "SUB", iso.rootLBA)

	looped, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	entries, err = looped.Walk()
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("Walk() returned %d entries, want 5: %+v", len(entries), entries)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Path, "DATA/SUB/") {
			t.Errorf("walk followed a directory loop: %q", e.Path)
		}
	}
}

// patchDirectory rewrites the extent location of the record named name in
// the directory at lba.
func patchDirectory(t *testing.T, img []byte, lba uint32, name string, target uint32) {
	t.Helper()

	dir := img[int(lba)*LogicalSectorSize : int(lba+1)*LogicalSectorSize]
	for off := 0; off < len(dir) && dir[off] != 0; off += int(dir[off]) {
		rec := dir[off : off+int(dir[off])]
		if string(rec[33:33+int(rec[32])]) == name {
			rec[2], rec[3], rec[4], rec[5] = byte(target), byte(target>>8), byte(target>>16), byte(target>>24)
			return
		}
	}
	t.Fatalf("record %q not found", name)
}

func TestWalk_TruncatedDirectory(t *testing.T) {
	t.Parallel()

	img := testImage(t)
	// cut the image inside the root directory's extent
	iso, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cut := img[:int(iso.rootLBA)*LogicalSectorSize+100]

	iso, err = Open(bytes.NewReader(cut), int64(len(cut)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := iso.Walk(); !errors.Is(err, ErrInvalidISO) {
		t.Errorf("Walk() error = %v, want %v", err, ErrInvalidISO)
	}
}

func TestCleanName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"GAME.BIN;1", "GAME.BIN"},
		{"README.;1", "README"},
		{"DIR", "DIR"},
		{"NOVERSION.TXT", "NOVERSION.TXT"},
	}
	for _, tt := range tests {
		if got := cleanName(tt.in); got != tt.want {
			t.Errorf("cleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
