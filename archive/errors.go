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
)

var (
	// ErrUnsupported is returned by SeekData for entries whose data cannot
	// be repositioned natively.
	ErrUnsupported = errors.New("operation not supported for this entry")

	// ErrSeekRequired is returned for formats that need random access when
	// the session was not given a seekable input.
	ErrSeekRequired = errors.New("format requires seekable input")

	// ErrState is returned when Reader methods are called out of order.
	ErrState = errors.New("invalid reader state")

	// ErrNoVolumes is returned by Open when no volume was appended.
	ErrNoVolumes = errors.New("no volumes attached")
)

// FormatError indicates an unrecognized or disabled archive format.
type FormatError struct {
	Format string
	Reason string
}

func (e FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported archive format %s: %s", e.Format, e.Reason)
	}
	return fmt.Sprintf("unsupported archive format: %s", e.Format)
}

// Severity grades decoding problems.
type Severity int

// Severities, from least to most severe.
const (
	// SeverityWarn marks a problem that leaves the entry usable.
	SeverityWarn Severity = iota + 1

	// SeverityFailed marks a failed operation; the session may continue.
	SeverityFailed

	// SeverityFatal marks a session that can no longer be used.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warning"
	case SeverityFailed:
		return "failed"
	default:
		return "fatal"
	}
}

// Error is a decoding problem with a severity.
type Error struct {
	Err      error
	Op       string
	Severity Severity
}

func (e *Error) Error() string {
	if e.Severity == SeverityWarn {
		return fmt.Sprintf("%s: warning: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsWarning reports whether err is a warning-severity Error.
func IsWarning(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Severity == SeverityWarn
}

func warning(op string, err error) *Error {
	return &Error{Err: err, Op: op, Severity: SeverityWarn}
}

func fatal(op string, err error) *Error {
	return &Error{Err: err, Op: op, Severity: SeverityFatal}
}
