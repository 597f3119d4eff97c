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

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Flags control how a stream is opened.
type Flags int

const (
	// FlagRead opens the stream for reading. It is currently the only mode.
	FlagRead Flags = 1 << iota

	// FlagSafeOnly restricts opening to protocols marked Safe. It is used
	// when the address comes from a less trusted source, such as the inside
	// of another stream's address.
	FlagSafeOnly
)

// OpenFunc opens a protocol backend for req.
type OpenFunc func(ctx context.Context, req *Request) (Backend, error)

// Protocol describes one address scheme family.
type Protocol struct {
	Name    string
	Schemes []string
	Open    OpenFunc

	// Safe marks local or equivalent-trust protocols that may be opened
	// with FlagSafeOnly.
	Safe bool
}

// Request is what a protocol receives when asked to open an address.
type Request struct {
	Global *Global
	URL    string // the address as given
	Scheme string // lowercase scheme, "file" for bare paths
	Path   string // everything after "scheme://", or the bare path
	Flags  Flags
}

// Registry maps schemes to protocols.
type Registry struct {
	byScheme map[string]*Protocol
	mu       sync.RWMutex
}

// NewRegistry creates a registry holding protocols.
func NewRegistry(protocols ...*Protocol) *Registry {
	r := &Registry{byScheme: make(map[string]*Protocol)}
	for _, p := range protocols {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any protocol previously registered for one of
// its schemes.
func (r *Registry) Register(p *Protocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, scheme := range p.Schemes {
		r.byScheme[strings.ToLower(scheme)] = p
	}
}

// Lookup returns the protocol registered for scheme.
func (r *Registry) Lookup(scheme string) (*Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byScheme[strings.ToLower(scheme)]
	return p, ok
}

// NewDefaultRegistry returns a registry with the built-in file and http
// protocols.
func NewDefaultRegistry() *Registry {
	return NewRegistry(FileProtocol(), HTTPProtocol(nil))
}

// Global is the context shared by a stream and every stream opened on its
// behalf, such as the sibling volumes of a split archive.
type Global struct {
	Registry *Registry
	Logger   *slog.Logger
}

// NewGlobal returns a Global. A nil registry selects NewDefaultRegistry and a
// nil logger discards output.
func NewGlobal(registry *Registry, logger *slog.Logger) *Global {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Global{Registry: registry, Logger: logger}
}

var (
	defaultGlobal     *Global
	defaultGlobalOnce sync.Once
)

// DefaultGlobal returns the process-wide Global used when none is given.
func DefaultGlobal() *Global {
	defaultGlobalOnce.Do(func() {
		defaultGlobal = NewGlobal(nil, nil)
	})
	return defaultGlobal
}

func (g *Global) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.Logger
}

func (g *Global) registry() *Registry {
	if g.Registry == nil {
		return DefaultGlobal().Registry
	}
	return g.Registry
}

// SplitURL splits an address into its lowercase scheme and the remainder.
// Addresses without a "scheme://" prefix are bare file paths.
func SplitURL(url string) (scheme, rest string) {
	idx := strings.Index(url, "://")
	if idx <= 0 || !validScheme(url[:idx]) {
		return "file", url
	}
	return strings.ToLower(url[:idx]), url[idx+3:]
}

func validScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// Open opens the stream at url through global's registry. A nil global
// selects DefaultGlobal.
func Open(ctx context.Context, url string, flags Flags, global *Global) (*Stream, error) {
	if global == nil {
		global = DefaultGlobal()
	}
	if flags&FlagRead == 0 {
		return nil, fmt.Errorf("open %s: %w", url, ErrMode)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}

	scheme, rest := SplitURL(url)
	proto, ok := global.registry().Lookup(scheme)
	if !ok {
		return nil, fmt.Errorf("open %s: %w: %s", url, ErrNoProtocol, scheme)
	}
	if flags&FlagSafeOnly != 0 && !proto.Safe {
		return nil, fmt.Errorf("open %s: %w: %s", url, ErrUnsafe, proto.Name)
	}

	backend, err := proto.Open(ctx, &Request{
		Global: global,
		URL:    url,
		Scheme: scheme,
		Path:   rest,
		Flags:  flags,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}

	global.logger().Debug("opened stream",
		slog.String("url", url),
		slog.String("protocol", proto.Name))

	return New(ctx, url, backend, global), nil
}
