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
	"io"
	"os"
)

// FileProtocol opens local files, either as bare paths or file:// URLs.
func FileProtocol() *Protocol {
	return &Protocol{
		Name:    "file",
		Schemes: []string{"file"},
		Safe:    true,
		Open:    openFile,
	}
}

func openFile(_ context.Context, req *Request) (Backend, error) {
	path := req.Path
	if req.Scheme == "file" && req.Path != req.URL {
		path = Unescape(path)
	}

	file, err := os.Open(path) //nolint:gosec // Caller-provided path is expected
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("open file %s: is a directory", path)
	}

	fb := &fileBackend{file: file}
	if info.Mode().IsRegular() {
		return &seekableFile{fileBackend: fb}, nil
	}
	return fb, nil
}

// fileBackend reads pipes, devices and other unseekable files.
type fileBackend struct {
	file *os.File
}

func (fb *fileBackend) Fill(p []byte) (int, error) {
	return fb.file.Read(p) //nolint:wrapcheck // Stream wraps backend errors
}

func (fb *fileBackend) Close() error {
	return fb.file.Close() //nolint:wrapcheck // Stream wraps backend errors
}

// seekableFile is a regular file.
type seekableFile struct {
	*fileBackend
}

func (sf *seekableFile) Seek(cur, target int64) (int64, error) {
	pos, err := sf.file.Seek(target, io.SeekStart)
	if err != nil {
		return cur, err //nolint:wrapcheck // Stream wraps backend errors
	}
	return pos, nil
}

func (sf *seekableFile) Size() (int64, error) {
	info, err := sf.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	return info.Size(), nil
}
