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
	"log/slog"

	"github.com/ZaparooProject/go-archivestream/stream"
)

type config struct {
	logger   *slog.Logger
	registry *stream.Registry
	flags    Flags
}

// Option configures the archive protocol and Open.
type Option func(*config)

// WithLogger sets the logger for streams opened by Open.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRegistry makes Open resolve addresses through registry. The archive
// protocol is registered into it.
func WithRegistry(registry *stream.Registry) Option {
	return func(c *config) { c.registry = registry }
}

// WithClampReadErrors reports failed volume reads as the end of the volume
// instead of as errors.
func WithClampReadErrors() Option {
	return func(c *config) { c.flags |= FlagClampReadErrors }
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
