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

package archivestream_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	archivestream "github.com/ZaparooProject/go-archivestream"
	"github.com/ZaparooProject/go-archivestream/archive"
	"github.com/ZaparooProject/go-archivestream/internal/fixture"
	"github.com/ZaparooProject/go-archivestream/stream"
)

// pattern returns n bytes that differ at most positions.
func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + i/251)
	}
	return out
}

// writeSplit splits data over files with the given names in a fresh temp
// directory and returns the primary volume's path.
func writeSplit(t *testing.T, data []byte, names ...string) string {
	t.Helper()
	return fixture.WriteFiles(t, t.TempDir(), names, fixture.Split(data, len(names)))
}

func openEntry(t *testing.T, archiveURL, entry string, opts ...archivestream.Option) *stream.Stream {
	t.Helper()

	s, err := archivestream.Open(context.Background(), archivestream.EntryURL(archiveURL, entry), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// readChunked reads s to the end with a rotating set of read sizes.
func readChunked(t *testing.T, s *stream.Stream) []byte {
	t.Helper()

	sizes := []int{1, 7, 512, 4096, 10000}
	var out []byte
	for i := 0; ; i++ {
		buf := make([]byte, sizes[i%len(sizes)])
		n, err := s.ReadPartial(buf)
		require.NoError(t, err)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

var tarMembers = []fixture.File{
	{Name: "docs", Dir: true},
	{Name: "docs/readme.md", Data: []byte("# readme\n")},
	{Name: "big.bin", Data: pattern(20000)},
	{Name: "link", Link: "big.bin"},
}

func TestOpen_MultiVolumeTar(t *testing.T) {
	t.Parallel()

	path := writeSplit(t, fixture.Tar(t, tarMembers...), "x.rar", "x.r00", "x.r01")
	s := openEntry(t, path, "big.bin")

	assert.True(t, s.Seekable())
	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(20000), size)

	base, err := s.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, path, base)

	assert.Equal(t, pattern(20000), readChunked(t, s))
}

func TestOpen_SplitZip(t *testing.T) {
	t.Parallel()

	stored := pattern(30000)
	packed := bytes.Repeat([]byte("compressible text "), 2000)
	data := fixture.Zip(t,
		fixture.File{Name: "stored.bin", Data: stored},
		fixture.File{Name: "dir/packed.txt", Data: packed, Deflate: true},
	)
	path := writeSplit(t, data, "x.part1.rar", "x.part2.rar", "x.part3.rar")

	assert.Equal(t, stored, readChunked(t, openEntry(t, path, "stored.bin")))
	assert.Equal(t, packed, readChunked(t, openEntry(t, path, "dir/packed.txt")))
}

func TestOpen_SeekEquivalence(t *testing.T) {
	t.Parallel()

	stored := pattern(30000)
	packed := bytes.Repeat([]byte("0123456789abcdef"), 2000)
	zipPath := writeSplit(t, fixture.Zip(t,
		fixture.File{Name: "stored.bin", Data: stored},
		fixture.File{Name: "packed.bin", Data: packed, Deflate: true},
	), "x.part1.rar", "x.part2.rar")
	tarPath := writeSplit(t, fixture.Tar(t, tarMembers...), "y.rar", "y.r00")

	cases := []struct {
		name    string
		archive string
		entry   string
		data    []byte
	}{
		{"stored zip", zipPath, "stored.bin", stored},
		{"deflated zip", zipPath, "packed.bin", packed},
		{"multi-volume tar", tarPath, "big.bin", tarMembers[2].Data},
	}
	targets := []int64{15000, 100, 0, 19999, 5000, 5001, 4999}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := openEntry(t, tc.archive, tc.entry)
			for _, target := range targets {
				require.NoError(t, s.Seek(target), "seek to %d", target)
				assert.Equal(t, target, s.Tell())

				got, err := io.ReadAll(io.LimitReader(s, 64))
				require.NoError(t, err)
				end := min(target+64, int64(len(tc.data)))
				assert.Equal(t, tc.data[target:end], got, "data at %d", target)
			}
		})
	}
}

func TestOpen_SeekPastEnd(t *testing.T) {
	t.Parallel()

	path := writeSplit(t, fixture.Tar(t, tarMembers...), "x.tar")
	s := openEntry(t, path, "docs/readme.md")

	err := s.Seek(1000)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(len("# readme\n")), s.Tell())
}

func TestOpen_EntryNotFound(t *testing.T) {
	t.Parallel()

	path := writeSplit(t, fixture.Tar(t, tarMembers...), "x.tar")

	for _, entry := range []string{"missing.txt", "docs/", "docs", "link", "BIG.BIN"} {
		_, err := archivestream.Open(context.Background(), archivestream.EntryURL(path, entry))
		var nf archivestream.EntryNotFoundError
		require.ErrorAs(t, err, &nf, entry)
		assert.Equal(t, entry, nf.Entry)
		assert.Equal(t, path, nf.Archive)
	}
}

func TestOpen_SyntheticName(t *testing.T) {
	t.Parallel()

	path := writeSplit(t, fixture.Tar(t,
		fixture.File{Name: "named.txt", Data: []byte("named")},
		fixture.File{Name: "", Data: []byte("anonymous")},
	), "x.tar")

	s := openEntry(t, path, archivestream.SyntheticName(1))
	assert.Equal(t, []byte("anonymous"), readChunked(t, s))
	assert.Equal(t, "unknown#1", archivestream.SyntheticName(1))
}

func TestOpen_EscapedArchivePath(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "odd | dir 100%")
	require.NoError(t, os.Mkdir(dir, 0o700))
	path := fixture.WriteFiles(t, dir, []string{"a.zip"},
		[][]byte{fixture.Zip(t, fixture.File{Name: "a|b.txt", Data: []byte("pipe")})})

	url := archivestream.EntryURL(path, "a|b.txt")
	s, err := archivestream.Open(context.Background(), url)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, []byte("pipe"), readChunked(t, s))
	base, err := s.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, path, base)
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	archiveURL, entry, err := archivestream.ParseAddress("/a%7Cb/x.zip|dir/file|name")
	require.NoError(t, err)
	assert.Equal(t, "/a|b/x.zip", archiveURL)
	assert.Equal(t, "dir/file|name", entry)

	_, _, err = archivestream.ParseAddress("/x.zip")
	var ae archivestream.AddressError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "/x.zip", ae.URL)
}

// memProtocol serves named in-memory files and records opens and closes.
type memProtocol struct {
	files  map[string][]byte
	err    error // returned by fills once the data runs out
	opened map[string]int
	closed map[string]int
	seek   bool
}

func newMemProtocol(files map[string][]byte) *memProtocol {
	return &memProtocol{files: files, opened: map[string]int{}, closed: map[string]int{}, seek: true}
}

func (mp *memProtocol) protocol() *stream.Protocol {
	return &stream.Protocol{
		Name:    "mem",
		Schemes: []string{"mem"},
		Safe:    true,
		Open: func(_ context.Context, req *stream.Request) (stream.Backend, error) {
			data, ok := mp.files[req.Path]
			if !ok {
				return nil, os.ErrNotExist
			}
			mp.opened[req.Path]++
			b := &memBackend{proto: mp, name: req.Path, r: bytes.NewReader(data)}
			if mp.seek {
				return &seekableMemBackend{b}, nil
			}
			return b, nil
		},
	}
}

func (mp *memProtocol) registry() *stream.Registry {
	return stream.NewRegistry(mp.protocol())
}

type memBackend struct {
	proto *memProtocol
	r     *bytes.Reader
	name  string
}

func (mb *memBackend) Fill(p []byte) (int, error) {
	n, err := mb.r.Read(p)
	if errors.Is(err, io.EOF) && mb.proto.err != nil {
		return n, mb.proto.err
	}
	return n, err
}

func (mb *memBackend) Close() error {
	mb.proto.closed[mb.name]++
	return nil
}

type seekableMemBackend struct {
	*memBackend
}

func (sb *seekableMemBackend) Seek(_, target int64) (int64, error) {
	return sb.r.Seek(target, io.SeekStart)
}

func (sb *seekableMemBackend) Size() (int64, error) { return sb.r.Size(), nil }

func TestOpen_MalformedAddressDoesNoIO(t *testing.T) {
	t.Parallel()

	mp := newMemProtocol(map[string][]byte{"x.zip": fixture.Zip(t)})
	_, err := archivestream.Open(context.Background(), "archive://mem://x.zip",
		archivestream.WithRegistry(mp.registry()))

	var ae archivestream.AddressError
	require.ErrorAs(t, err, &ae)
	assert.Empty(t, mp.opened)
}

func TestOpen_Unseekable(t *testing.T) {
	t.Parallel()

	data := pattern(20000)
	mp := newMemProtocol(map[string][]byte{"x.tar": fixture.Tar(t, fixture.File{Name: "big.bin", Data: data})})
	mp.seek = false

	s := openEntry(t, "mem://x.tar", "big.bin", archivestream.WithRegistry(mp.registry()))
	assert.False(t, s.Seekable())

	buf := make([]byte, 100)
	_, err := io.ReadFull(s, buf)
	require.NoError(t, err)

	require.ErrorIs(t, s.Seek(50), stream.ErrNotSeekable)

	require.NoError(t, s.Seek(5000), "unseekable streams still move forward")
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, data[5000:5100], buf)
}

func TestOpen_VolumeReadErrors(t *testing.T) {
	t.Parallel()

	errFlaky := errors.New("flaky medium")
	data := fixture.Tar(t, fixture.File{Name: "big.bin", Data: pattern(3000)})

	newProto := func() *memProtocol {
		mp := newMemProtocol(map[string][]byte{"x.tar": data[:1024]})
		mp.seek = false
		mp.err = errFlaky
		return mp
	}

	s := openEntry(t, "mem://x.tar", "big.bin", archivestream.WithRegistry(newProto().registry()))
	_, err := io.ReadAll(s)
	var vre *archivestream.VolumeReadError
	require.ErrorAs(t, err, &vre)
	require.ErrorIs(t, err, errFlaky)

	s = openEntry(t, "mem://x.tar", "big.bin",
		archivestream.WithRegistry(newProto().registry()),
		archivestream.WithClampReadErrors())
	_, err = io.ReadAll(s)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF, "a clamped failure reads as a truncated volume")
	assert.False(t, errors.As(err, &vre))
}

func TestOpen_DeadStream(t *testing.T) {
	t.Parallel()

	path := writeSplit(t, fixture.Tar(t, tarMembers...), "x.tar")
	s := openEntry(t, path, "big.bin")

	_, err := io.ReadFull(s, make([]byte, 10000))
	require.NoError(t, err)

	// the backward seek has to reopen the archive, which is now empty
	require.NoError(t, os.Truncate(path, 0))
	err = s.Seek(10)
	require.Error(t, err)

	n, err := s.Read(make([]byte, 16))
	assert.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)

	require.ErrorIs(t, s.Seek(20), archivestream.ErrDead)
	require.NoError(t, s.Close())
}

func TestOpen_NestedArchiveRefused(t *testing.T) {
	t.Parallel()

	inner := fixture.Tar(t, fixture.File{Name: "a.txt", Data: []byte("inner")})
	path := writeSplit(t, fixture.Tar(t, fixture.File{Name: "inner.tar", Data: inner}), "outer.tar")

	innerURL := archivestream.EntryURL(path, "inner.tar")
	_, err := archivestream.Open(context.Background(), archivestream.EntryURL(innerURL, "a.txt"))
	require.ErrorIs(t, err, stream.ErrUnsafe)

	// the inner archive itself is still reachable as an entry
	s := openEntry(t, path, "inner.tar")
	assert.Equal(t, inner, readChunked(t, s))
}

func TestNewArchive_Volumes(t *testing.T) {
	t.Parallel()

	parts := fixture.Split(fixture.Tar(t, tarMembers...), 3)
	mp := newMemProtocol(map[string][]byte{"g.rar": parts[0], "g.r00": parts[1], "g.r01": parts[2]})
	global := stream.NewGlobal(mp.registry(), nil)

	src, err := stream.Open(context.Background(), "mem://g.rar", stream.FlagRead, global)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	a, err := archivestream.NewArchive(src, archivestream.FlagUnsafe)
	require.NoError(t, err)

	vols := a.Volumes()
	require.Len(t, vols, 3)
	assert.Equal(t, "mem://g.rar", vols[0].Name())
	assert.False(t, vols[0].Owned())
	assert.Equal(t, "mem://g.r01", vols[2].Name())
	assert.True(t, vols[2].Owned())
	assert.Equal(t, archive.FormatTar, a.Reader().Format())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, mp.closed["g.r00"])
	assert.Equal(t, 1, mp.closed["g.r01"])
	assert.Zero(t, mp.closed["g.rar"], "the primary stream belongs to the caller")
}

func TestNewArchive_TarNeedsUnsafe(t *testing.T) {
	t.Parallel()

	mp := newMemProtocol(map[string][]byte{"t.tar": fixture.Tar(t, tarMembers...)})
	src, err := stream.Open(context.Background(), "mem://t.tar", stream.FlagRead, stream.NewGlobal(mp.registry(), nil))
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	_, err = archivestream.NewArchive(src, 0)
	var fe archive.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "tar", fe.Format)
}

func TestNewArchive_FailureClosesSiblings(t *testing.T) {
	t.Parallel()

	mp := newMemProtocol(map[string][]byte{
		"g.rar": []byte("this is not an archive"),
		"g.r00": []byte("nor is this"),
	})
	src, err := stream.Open(context.Background(), "mem://g.rar", stream.FlagRead, stream.NewGlobal(mp.registry(), nil))
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	_, err = archivestream.NewArchive(src, archivestream.FlagUnsafe)
	require.Error(t, err)
	assert.Equal(t, 1, mp.opened["g.r00"])
	assert.Equal(t, 1, mp.closed["g.r00"])
	assert.Zero(t, mp.closed["g.rar"])
	assert.Zero(t, mp.opened["g.r01"], "probing stops at the first missing volume")
}

func TestOpen_ConcurrentStreams(t *testing.T) {
	t.Parallel()

	path := writeSplit(t, fixture.Tar(t, tarMembers...), "x.rar", "x.r00")

	done := make(chan error, 4)
	for i := range 4 {
		go func() {
			s, err := archivestream.Open(context.Background(), archivestream.EntryURL(path, "big.bin"))
			if err != nil {
				done <- err
				return
			}
			defer func() { _ = s.Close() }()
			if err := s.Seek(int64(i * 1000)); err != nil {
				done <- err
				return
			}
			got, err := io.ReadAll(s)
			if err == nil && !bytes.Equal(got, tarMembers[2].Data[i*1000:]) {
				err = fmt.Errorf("stream %d read wrong data", i)
			}
			done <- err
		}()
	}
	for range 4 {
		require.NoError(t, <-done)
	}
}

func testdataPath(name string) string {
	return filepath.Join("testdata", "archive", name)
}

// seekAndCompare seeks s to each target in turn, forward and backward, and
// checks the bytes found there.
func seekAndCompare(t *testing.T, s *stream.Stream, data []byte, targets ...int64) {
	t.Helper()

	for _, target := range targets {
		require.NoError(t, s.Seek(target), "seek to %d", target)
		got, err := io.ReadAll(io.LimitReader(s, 64))
		require.NoError(t, err)
		end := min(target+64, int64(len(data)))
		assert.Equal(t, data[target:end], got, "data at %d", target)
	}
}

func TestOpen_RAR(t *testing.T) {
	t.Parallel()

	for _, primary := range []string{"single.rar", "multi.rar", "split.part1.rar"} {
		t.Run(primary, func(t *testing.T) {
			t.Parallel()

			path := testdataPath(primary)
			assert.Equal(t, []byte("hello from rar\n"), readChunked(t, openEntry(t, path, "readme.txt")))

			s := openEntry(t, path, "dir/big.bin")
			size, err := s.Size()
			require.NoError(t, err)
			assert.Equal(t, int64(20000), size)
			assert.Equal(t, pattern(20000), readChunked(t, s))

			seekAndCompare(t, s, pattern(20000), 15000, 100, 0, 19999, 6999, 7000, 9001, 5000)

			_, err = archivestream.Open(context.Background(), archivestream.EntryURL(path, "dir"))
			var nf archivestream.EntryNotFoundError
			require.ErrorAs(t, err, &nf, "directories are not entries")
		})
	}
}

func TestOpen_SevenZip(t *testing.T) {
	t.Parallel()

	path := testdataPath("sample.7z")
	assert.Equal(t, []byte("hello from 7z\n"), readChunked(t, openEntry(t, path, "readme.txt")))

	s := openEntry(t, path, "dir/big.bin")
	assert.Equal(t, pattern(20000), readChunked(t, s))
	seekAndCompare(t, s, pattern(20000), 12000, 10, 19990, 0)
}

// testdataProtocol serves testdata archives under other names.
func testdataProtocol(t *testing.T, files map[string]string) *memProtocol {
	t.Helper()

	contents := make(map[string][]byte, len(files))
	for name, file := range files {
		data, err := os.ReadFile(testdataPath(file))
		require.NoError(t, err)
		contents[name] = data
	}
	return newMemProtocol(contents)
}

func TestOpen_RARUnseekable(t *testing.T) {
	t.Parallel()

	sets := map[string]map[string]string{
		"mem://m.rar":       {"m.rar": "multi.rar", "m.r00": "multi.r00", "m.r01": "multi.r01"},
		"mem://p.part1.rar": {"p.part1.rar": "split.part1.rar", "p.part2.rar": "split.part2.rar"},
	}
	for primary, files := range sets {
		t.Run(primary, func(t *testing.T) {
			t.Parallel()

			mp := testdataProtocol(t, files)
			mp.seek = false

			s := openEntry(t, primary, "dir/big.bin", archivestream.WithRegistry(mp.registry()))
			assert.False(t, s.Seekable())

			data := pattern(20000)
			require.NoError(t, s.Seek(100))
			got, err := io.ReadAll(io.LimitReader(s, 64))
			require.NoError(t, err)
			assert.Equal(t, data[100:164], got)

			require.NoError(t, s.Seek(8000), "forward seeks cross volumes")
			rest, err := io.ReadAll(s)
			require.NoError(t, err)
			assert.Equal(t, data[8000:], rest)

			require.ErrorIs(t, s.Seek(0), stream.ErrNotSeekable)
			for name := range files {
				assert.Equal(t, 1, mp.opened[name], name)
			}
		})
	}
}

func TestOpen_SevenZipUnseekable(t *testing.T) {
	t.Parallel()

	mp := testdataProtocol(t, map[string]string{"s.7z": "sample.7z"})
	mp.seek = false

	_, err := archivestream.Open(context.Background(), archivestream.EntryURL("mem://s.7z", "readme.txt"),
		archivestream.WithRegistry(mp.registry()))
	require.ErrorIs(t, err, archive.ErrSeekRequired)
}
