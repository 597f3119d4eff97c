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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

var errHTTPStatus = errors.New("unexpected HTTP status")

// HTTPProtocol opens http and https URLs with client, or
// http.DefaultClient when client is nil. Servers that advertise byte ranges
// and a content length yield seekable streams.
func HTTPProtocol(client *http.Client) *Protocol {
	if client == nil {
		client = http.DefaultClient
	}
	return &Protocol{
		Name:    "http",
		Schemes: []string{"http", "https"},
		Safe:    true,
		Open: func(ctx context.Context, req *Request) (Backend, error) {
			return openHTTP(ctx, client, req.URL)
		},
	}
}

func openHTTP(ctx context.Context, client *http.Client, url string) (Backend, error) {
	hb := &httpBackend{ctx: ctx, client: client, url: url, size: -1}
	resp, err := hb.get(0)
	if err != nil {
		return nil, err
	}
	hb.body = resp.Body
	hb.size = resp.ContentLength

	if resp.Header.Get("Accept-Ranges") == "bytes" && hb.size >= 0 {
		return &seekableHTTP{httpBackend: hb}, nil
	}
	return hb, nil
}

// httpBackend streams a response body.
type httpBackend struct {
	ctx    context.Context //nolint:containedctx // requests are reissued on seek
	client *http.Client
	body   io.ReadCloser
	url    string
	size   int64
}

func (hb *httpBackend) get(offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(hb.ctx, http.MethodGet, hb.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := hb.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", hb.url, err)
	}

	want := http.StatusOK
	if offset > 0 {
		want = http.StatusPartialContent
	}
	if resp.StatusCode != want {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", errHTTPStatus, resp.Status)
	}
	return resp, nil
}

func (hb *httpBackend) Fill(p []byte) (int, error) {
	return hb.body.Read(p) //nolint:wrapcheck // Stream wraps backend errors
}

func (hb *httpBackend) Close() error {
	if hb.body == nil {
		return nil
	}
	err := hb.body.Close()
	hb.body = nil
	return err //nolint:wrapcheck // Stream wraps backend errors
}

func (hb *httpBackend) Size() (int64, error) {
	if hb.size < 0 {
		return 0, ErrUnsupported
	}
	return hb.size, nil
}

// seekableHTTP reissues a range request on every seek.
type seekableHTTP struct {
	*httpBackend
}

func (sh *seekableHTTP) Seek(cur, target int64) (int64, error) {
	if target >= sh.size {
		// nothing left to request; further reads see EOF
		_ = sh.httpBackend.Close()
		sh.body = http.NoBody
		return target, nil
	}

	resp, err := sh.get(target)
	if err != nil {
		return cur, err
	}
	_ = sh.httpBackend.Close()
	sh.body = resp.Body
	return target, nil
}
