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
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"time"
)

// volumeFS serves the attached volumes to rardecode, which asks for
// continuation volumes by file name.
type volumeFS struct {
	byName  map[string]int
	volumes []Volume
	head    *volumeChain // unread look-ahead of volume 0, if any
	seek    bool
}

func newVolumeFS(volumes []Volume, head *volumeChain, seek bool) *volumeFS {
	byName := make(map[string]int, len(volumes))
	for i, v := range volumes {
		name := volumeBaseName(v)
		if _, dup := byName[name]; !dup {
			byName[name] = i
		}
	}
	return &volumeFS{byName: byName, volumes: volumes, head: head, seek: seek}
}

func volumeBaseName(v Volume) string {
	return path.Base(filepath.ToSlash(v.Name()))
}

// primary is the name rardecode is asked to open first.
func (vfs *volumeFS) primary() string {
	return volumeBaseName(vfs.volumes[0])
}

func (vfs *volumeFS) Open(name string) (fs.File, error) {
	base := path.Base(filepath.ToSlash(name))
	idx, ok := vfs.byName[base]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	vol := vfs.volumes[idx]

	var chain *volumeChain
	if idx == 0 && vfs.head != nil {
		chain = vfs.head
		vfs.head = nil
	} else {
		if err := vol.Switch(); err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		chain = newVolumeChain([]Volume{vol})
	}

	file := &volumeFile{name: base, chain: chain}
	if !vfs.seek {
		return file, nil
	}

	size, err := vol.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = vol.Seek(0, io.SeekStart)
	}
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	file.size = size
	return &seekableVolumeFile{volumeFile: file}, nil
}

// volumeFile reads a single volume. Close is a no-op: the session closes
// volumes on teardown.
type volumeFile struct {
	chain *volumeChain
	name  string
	size  int64
}

func (vf *volumeFile) Read(p []byte) (int, error) {
	return vf.chain.Read(p)
}

func (vf *volumeFile) Stat() (fs.FileInfo, error) {
	return volumeFileInfo{name: vf.name, size: vf.size}, nil
}

func (*volumeFile) Close() error { return nil }

// seekableVolumeFile exposes the volume's own Seek, which rardecode uses to
// jump over packed data.
type seekableVolumeFile struct {
	*volumeFile
}

func (sf *seekableVolumeFile) Seek(offset int64, whence int) (int64, error) {
	c := sf.chain
	if whence == io.SeekCurrent {
		offset -= int64(len(c.look))
	}
	pos, err := c.volumes[0].Seek(offset, whence)
	if err != nil {
		return 0, fmt.Errorf("seek volume %s: %w", sf.name, err)
	}
	c.look = nil
	c.pos = pos
	return pos, nil
}

type volumeFileInfo struct {
	name string
	size int64
}

func (fi volumeFileInfo) Name() string    { return fi.name }
func (fi volumeFileInfo) Size() int64     { return fi.size }
func (volumeFileInfo) Mode() fs.FileMode  { return 0o444 }
func (volumeFileInfo) ModTime() time.Time { return time.Time{} }
func (volumeFileInfo) IsDir() bool        { return false }
func (volumeFileInfo) Sys() any           { return nil }
