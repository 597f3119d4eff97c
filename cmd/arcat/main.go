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

// Command arcat prints a file stored inside an archive, or lists the files
// of an archive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	archivestream "github.com/ZaparooProject/go-archivestream"
	"github.com/ZaparooProject/go-archivestream/archive"
	"github.com/ZaparooProject/go-archivestream/stream"
)

const appVersion = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	archive string
	entry   string
	url     string
	offset  int64
	length  int64
	list    bool
	clamp   bool
	verbose bool
	version bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("arcat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.archive, "a", "", "archive path or URL")
	fs.StringVar(&opts.entry, "e", "", "entry to print")
	fs.StringVar(&opts.url, "u", "", "full archive:// address (instead of -a and -e)")
	fs.Int64Var(&opts.offset, "offset", 0, "start printing at this byte offset")
	fs.Int64Var(&opts.length, "n", -1, "print at most this many bytes")
	fs.BoolVar(&opts.list, "l", false, "list the regular files of the archive")
	fs.BoolVar(&opts.clamp, "clamp", false, "treat volume read errors as end of volume")
	fs.BoolVar(&opts.verbose, "v", false, "log decoding details to stderr")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: arcat -a <archive> -e <entry> [options]\n")
		fmt.Fprintf(stderr, "       arcat -u 'archive://<archive>|<entry>' [options]\n")
		fmt.Fprintf(stderr, "       arcat -a <archive> -l\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "arcat version %s\n", appVersion)
		return 0
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	switch {
	case opts.list && opts.archive != "":
		err = listEntries(ctx, stdout, opts.archive, logger)
	case opts.url != "":
		err = copyEntry(ctx, stdout, opts.url, opts, logger)
	case opts.archive != "" && opts.entry != "":
		err = copyEntry(ctx, stdout, archivestream.EntryURL(opts.archive, opts.entry), opts, logger)
	default:
		fmt.Fprintf(stderr, "Error: an archive and an entry are required (-a and -e, or -u)\n")
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func copyEntry(ctx context.Context, w io.Writer, url string, opts *options, logger *slog.Logger) error {
	streamOpts := []archivestream.Option{archivestream.WithLogger(logger)}
	if opts.clamp {
		streamOpts = append(streamOpts, archivestream.WithClampReadErrors())
	}

	s, err := archivestream.Open(ctx, url, streamOpts...)
	if err != nil {
		return err //nolint:wrapcheck // already names the address
	}
	defer func() { _ = s.Close() }()

	if opts.offset > 0 {
		if err := s.Seek(opts.offset); err != nil {
			return fmt.Errorf("seek to %d: %w", opts.offset, err)
		}
	}

	var r io.Reader = s
	if opts.length >= 0 {
		r = io.LimitReader(s, opts.length)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copy entry: %w", err)
	}
	return nil
}

func listEntries(ctx context.Context, w io.Writer, url string, logger *slog.Logger) error {
	src, err := stream.Open(ctx, url, stream.FlagRead, stream.NewGlobal(nil, logger))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = src.Close() }()

	a, err := archivestream.NewArchive(src, archivestream.FlagUnsafe)
	if err != nil {
		return err //nolint:wrapcheck // already names the address
	}
	defer func() { _ = a.Close() }()

	regular := 0
	for {
		entry, err := a.Reader().Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !archive.IsWarning(err) {
			return fmt.Errorf("list entries: %w", err)
		}
		if err != nil {
			logger.Warn("archive warning", slog.Any("error", err))
		}
		if entry == nil || entry.Type != archive.TypeRegular {
			continue
		}

		name, ok := entry.Pathname()
		if !ok {
			name = archivestream.SyntheticName(regular)
		}
		size := "-"
		if n, ok := entry.Size(); ok {
			size = fmt.Sprint(n)
		}
		fmt.Fprintf(w, "%s\t%s\n", size, name)
		regular++
	}
}
