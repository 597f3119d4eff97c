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

package stream

import "errors"

var (
	// ErrUnsupported is returned by queries a stream cannot answer, such as
	// the size of a stream whose length is unknown.
	ErrUnsupported = errors.New("unsupported")

	// ErrNotSeekable is returned when seeking backwards on an unseekable stream.
	ErrNotSeekable = errors.New("stream is not seekable")

	// ErrInvalidPosition is returned for negative seek targets and skip counts.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("stream is closed")

	// ErrNoProtocol is returned when no protocol handles an address.
	ErrNoProtocol = errors.New("no protocol for address")

	// ErrUnsafe is returned when FlagSafeOnly rejects a protocol.
	ErrUnsafe = errors.New("protocol not allowed in restricted mode")

	// ErrMode is returned when a stream is opened without FlagRead.
	ErrMode = errors.New("only read mode is supported")
)
