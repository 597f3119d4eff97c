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
	"sort"
	"sync"
)

// volumeChain reads a list of volumes as one sequential stream, switching to
// the next volume whenever the current one is exhausted.
type volumeChain struct {
	volumes []Volume
	look    []byte // read but not yet consumed
	idx     int
	pos     int64
}

func newVolumeChain(volumes []Volume) *volumeChain {
	return &volumeChain{volumes: volumes}
}

// fillCurrent appends one chunk of the current volume to the look-ahead. It
// returns io.EOF when the current volume is exhausted.
func (c *volumeChain) fillCurrent() error {
	chunk, err := c.volumes[c.idx].Read()
	if err != nil {
		return fmt.Errorf("read volume %s: %w", c.volumes[c.idx].Name(), err)
	}
	if len(chunk) == 0 {
		return io.EOF
	}
	c.look = append(c.look, chunk...)
	return nil
}

// advance switches to the next volume. It returns io.EOF after the last one.
func (c *volumeChain) advance() error {
	if c.idx+1 >= len(c.volumes) {
		return io.EOF
	}
	next := c.volumes[c.idx+1]
	if err := next.Switch(); err != nil {
		return fmt.Errorf("switch to volume %s: %w", next.Name(), err)
	}
	c.idx++
	return nil
}

// fill appends at least one byte to the look-ahead, crossing volumes.
func (c *volumeChain) fill() error {
	for {
		err := c.fillCurrent()
		if !errors.Is(err, io.EOF) {
			return err
		}
		if err := c.advance(); err != nil {
			return err
		}
	}
}

func (c *volumeChain) consume(p []byte) int {
	n := copy(p, c.look)
	c.look = c.look[n:]
	if len(c.look) == 0 {
		c.look = nil
	}
	c.pos += int64(n)
	return n
}

func (c *volumeChain) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(c.look) == 0 {
		if err := c.fill(); err != nil {
			return 0, err
		}
	}
	return c.consume(p), nil
}

// Peek returns the next n bytes without consuming them. Near the end of the
// input it returns fewer bytes together with io.EOF.
func (c *volumeChain) Peek(n int) ([]byte, error) {
	for len(c.look) < n {
		if err := c.fill(); err != nil {
			return c.look, err
		}
	}
	return c.look[:n], nil
}

// Seek supports only forward moves relative to the current position, which
// are turned into volume skips. archive/tar uses it to step over entry data.
func (c *volumeChain) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekCurrent || offset < 0 {
		return c.pos, ErrUnsupported
	}

	buffered := min(offset, int64(len(c.look)))
	c.look = c.look[buffered:]
	c.pos += buffered
	offset -= buffered

	for offset > 0 {
		moved, err := c.volumes[c.idx].Skip(offset)
		c.pos += moved
		offset -= moved
		if err != nil {
			return c.pos, fmt.Errorf("skip volume %s: %w", c.volumes[c.idx].Name(), err)
		}
		if moved == 0 {
			if err := c.advance(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return c.pos, err
			}
		}
	}
	return c.pos, nil
}

// detach hands the unread look-ahead of the first volume to a new chain over
// that volume alone. It reports false when reading already moved past the
// first volume.
func (c *volumeChain) detach() (*volumeChain, bool) {
	if c.idx != 0 {
		return nil, false
	}
	return &volumeChain{volumes: c.volumes[:1], look: c.look, pos: c.pos}, true
}

// volumeReaderAt gives random access across volumes through their Seek and
// Read capabilities.
type volumeReaderAt struct {
	volumes []Volume
	starts  []int64 // logical offset of each volume's first byte
	sizes   []int64
	size    int64
	mu      sync.Mutex
}

func newVolumeReaderAt(volumes []Volume) (*volumeReaderAt, error) {
	ra := &volumeReaderAt{
		volumes: volumes,
		starts:  make([]int64, len(volumes)),
		sizes:   make([]int64, len(volumes)),
	}
	for i, v := range volumes {
		size, err := v.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("size of volume %s: %w", v.Name(), err)
		}
		ra.starts[i] = ra.size
		ra.sizes[i] = size
		ra.size += size
	}
	return ra, nil
}

func (ra *volumeReaderAt) Size() int64 { return ra.size }

func (ra *volumeReaderAt) ReadAt(p []byte, off int64) (int, error) {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	if off < 0 {
		return 0, fmt.Errorf("negative offset: %d", off)
	}

	read := 0
	for read < len(p) && off < ra.size {
		idx := sort.Search(len(ra.starts), func(i int) bool {
			return ra.starts[i]+ra.sizes[i] > off
		})
		vol := ra.volumes[idx]
		local := off - ra.starts[idx]

		if _, err := vol.Seek(local, io.SeekStart); err != nil {
			return read, fmt.Errorf("seek volume %s: %w", vol.Name(), err)
		}
		chunk, err := vol.Read()
		if err != nil {
			return read, fmt.Errorf("read volume %s: %w", vol.Name(), err)
		}
		if len(chunk) == 0 {
			return read, io.ErrUnexpectedEOF
		}

		chunk = chunk[:min(int64(len(chunk)), ra.sizes[idx]-local)]
		n := copy(p[read:], chunk)
		read += n
		off += int64(n)
	}

	if read < len(p) {
		return read, io.EOF
	}
	return read, nil
}
