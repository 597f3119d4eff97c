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

package archivestream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ZaparooProject/go-archivestream/stream"
)

// ReadSize is the capacity of the read buffer a handle shares between its
// volumes.
const ReadSize = 4096

var errWhence = errors.New("invalid whence")

// Volume binds one underlying stream to the decoding engine. It implements
// archive.Volume.
type Volume struct {
	src    *stream.Stream
	log    *slog.Logger
	buf    []byte
	own    bool // close src along with the volume
	clamp  bool // report read failures as end of volume
	closed bool
}

func newVolume(src *stream.Stream, buf []byte, own, clamp bool) *Volume {
	return &Volume{src: src, log: src.Logger(), buf: buf, own: own, clamp: clamp}
}

// Name returns the address of the volume's stream.
func (v *Volume) Name() string { return v.src.URL() }

// Stream returns the underlying stream.
func (v *Volume) Stream() *stream.Stream { return v.src }

// Owned reports whether closing the volume closes its stream.
func (v *Volume) Owned() bool { return v.own }

// Read does one partial read of up to ReadSize bytes. The returned chunk
// aliases the shared buffer.
func (v *Volume) Read() ([]byte, error) {
	n, err := v.src.ReadPartial(v.buf)
	if err != nil {
		if v.clamp {
			v.log.Debug("volume read failed, treating as end of volume",
				slog.String("volume", v.src.URL()),
				slog.Any("error", err))
			return nil, nil
		}
		return nil, &VolumeReadError{URL: v.src.URL(), Err: err}
	}
	return v.buf[:n], nil
}

// Seek converts offset and whence into an absolute stream position. Seeking
// relative to the end needs a known stream size.
func (v *Volume) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += v.src.Tell()
	case io.SeekEnd:
		size, err := v.src.Size()
		if err != nil {
			return 0, fmt.Errorf("size of %s: %w", v.src.URL(), err)
		}
		offset += size
	default:
		return 0, fmt.Errorf("seek %s: %w %d", v.src.URL(), errWhence, whence)
	}

	if err := v.src.Seek(offset); err != nil {
		return 0, err //nolint:wrapcheck // stream errors already name the address
	}
	return v.src.Tell(), nil
}

// Skip advances the stream and reports how far it actually moved, which is
// less than n at the end of the stream.
func (v *Volume) Skip(n int64) (int64, error) {
	old := v.src.Tell()
	err := v.src.Skip(n)
	return v.src.Tell() - old, err //nolint:wrapcheck // stream errors already name the address
}

// Switch rewinds the volume when decoding moves on to it.
func (v *Volume) Switch() error {
	if err := v.src.Seek(0); err != nil {
		return fmt.Errorf("switch to volume: %w", err)
	}
	return nil
}

// Close closes the stream if the volume owns it.
func (v *Volume) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	v.buf = nil
	if !v.own {
		return nil
	}
	return v.src.Close() //nolint:wrapcheck // stream errors already name the address
}
