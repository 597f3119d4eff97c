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

// Package archivestream exposes a single regular file inside an archive as
// a stream. Addresses look like
//
//	archive://<escaped-archive-address>|<entry-name>
//
// The archive may be zip, 7z, RAR, ISO 9660 or tar, optionally wrapped in
// gzip, bzip2, xz, zstd or lz4, and may be split across sibling volume files
// named like name.part1.rar, name.part2.rar or name.rar, name.r00.
//
// Entry streams seek when the archive's own stream can. Backward seeks
// reopen the archive and replay the entry from its start, so they cost as
// much as reading up to the target.
package archivestream

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-archivestream/stream"
)

// Scheme is the address scheme served by the archive protocol.
const Scheme = "archive"

// ParseAddress splits the part of an archive address after "archive://"
// into the unescaped archive address and the literal entry name. It does no
// I/O.
func ParseAddress(path string) (archiveURL, entry string, err error) {
	idx := strings.IndexByte(path, '|')
	if idx < 0 {
		return "", "", AddressError{URL: path, Reason: "missing '|' between archive and entry"}
	}
	return stream.Unescape(path[:idx]), path[idx+1:], nil
}

// EntryURL builds the address of entry inside the archive at archiveURL.
func EntryURL(archiveURL, entry string) string {
	return Scheme + "://" + stream.Escape(archiveURL) + "|" + entry
}

// Protocol returns the archive protocol. It is not marked safe, so an
// archive address cannot name another archive address as its archive.
func Protocol(opts ...Option) *stream.Protocol {
	c := newConfig(opts)
	return &stream.Protocol{
		Name:    Scheme,
		Schemes: []string{Scheme},
		Open: func(ctx context.Context, req *stream.Request) (stream.Backend, error) {
			return openEntry(ctx, req, c.flags)
		},
	}
}

// Register adds the archive protocol to registry.
func Register(registry *stream.Registry, opts ...Option) {
	registry.Register(Protocol(opts...))
}

// Open opens url, which is usually an archive:// address, for reading.
func Open(ctx context.Context, url string, opts ...Option) (*stream.Stream, error) {
	c := newConfig(opts)
	registry := c.registry
	if registry == nil {
		registry = stream.NewDefaultRegistry()
	}
	Register(registry, opts...)

	s, err := stream.Open(ctx, url, stream.FlagRead, stream.NewGlobal(registry, c.logger))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	return s, nil
}
