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
)

// ErrDead is returned when seeking an entry stream whose archive could not
// be reopened. Reads on such a stream report end of data.
var ErrDead = errors.New("archive entry stream is dead")

// AddressError indicates a malformed archive:// address.
type AddressError struct {
	URL    string
	Reason string
}

func (e AddressError) Error() string {
	return fmt.Sprintf("invalid archive address %q: %s", e.URL, e.Reason)
}

// EntryNotFoundError indicates that scanning the whole archive found no
// regular file with the requested name.
type EntryNotFoundError struct {
	Archive string
	Entry   string
}

func (e EntryNotFoundError) Error() string {
	return fmt.Sprintf("archive entry %q not found in %q", e.Entry, e.Archive)
}

// VolumeReadError wraps a failed read of a volume's underlying stream.
type VolumeReadError struct {
	Err error
	URL string
}

func (e *VolumeReadError) Error() string {
	return fmt.Sprintf("read volume %q: %v", e.URL, e.Err)
}

func (e *VolumeReadError) Unwrap() error { return e.Err }
