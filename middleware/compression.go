// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/brrtrouter/brrtrouter/dispatch"
)

// CompressionOption configures a CompressionMiddleware.
type CompressionOption func(*compressionConfig)

type compressionConfig struct {
	level        int
	excludePaths map[string]bool
}

func defaultCompressionConfig() *compressionConfig {
	return &compressionConfig{level: gzip.DefaultCompression, excludePaths: make(map[string]bool)}
}

// WithCompressionLevel sets the gzip level (0-9, or gzip.DefaultCompression).
func WithCompressionLevel(level int) CompressionOption {
	return func(c *compressionConfig) { c.level = level }
}

// WithExcludePaths names route paths (matched by template, not
// expanded path) that are never compressed — typically streaming
// routes, which never reach this middleware's After with a JSON body
// anyway, but named explicitly for clarity.
func WithExcludePaths(paths []string) CompressionOption {
	return func(c *compressionConfig) {
		for _, p := range paths {
			c.excludePaths[p] = true
		}
	}
}

// CompressionMiddleware gzip-encodes a JSON response body when the
// client advertises gzip support. Rather than wrapping a streaming
// http.ResponseWriter, it operates on the already-materialized
// dispatch.Response in After, since the dispatcher's Response is a
// single value rather than a byte stream.
type CompressionMiddleware struct {
	cfg  *compressionConfig
	pool *sync.Pool
}

// NewCompression builds a CompressionMiddleware with its own gzip
// writer pool at the configured level.
func NewCompression(opts ...CompressionOption) *CompressionMiddleware {
	cfg := defaultCompressionConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	level := cfg.level
	pool := &sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, level)
			return w
		},
	}
	return &CompressionMiddleware{cfg: cfg, pool: pool}
}

func (m *CompressionMiddleware) Name() string { return "compression" }

func (m *CompressionMiddleware) Before(_ context.Context, _ *dispatch.Request) (*dispatch.Response, error) {
	return nil, nil
}

// After gzip-encodes resp.Body in place and sets Content-Encoding,
// leaving resp.Body as raw compressed bytes for the service's writer
// to pass through unmarshaled.
func (m *CompressionMiddleware) After(_ context.Context, req *dispatch.Request, resp *dispatch.Response, _ time.Duration) {
	if resp == nil || resp.Body == nil {
		return
	}
	if m.cfg.excludePaths[req.Path] {
		return
	}
	if !strings.Contains(firstHeader(req.Headers, "Accept-Encoding"), "gzip") {
		return
	}

	data, err := marshalBody(resp.Body)
	if err != nil {
		return
	}

	var buf bytes.Buffer
	gz := m.pool.Get().(*gzip.Writer)
	gz.Reset(&buf)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		m.pool.Put(gz)
		return
	}
	if err := gz.Close(); err != nil {
		m.pool.Put(gz)
		return
	}
	m.pool.Put(gz)

	resp.Body = buf.Bytes()
	if resp.Headers == nil {
		resp.Headers = make(map[string]string, 2)
	}
	resp.Headers["Content-Encoding"] = "gzip"
	if _, ok := resp.Headers["Content-Type"]; !ok {
		resp.Headers["Content-Type"] = "application/json"
	}
}

// marshalBody mirrors package sse's encode helper: strings/[]byte pass
// through, everything else is JSON-marshaled.
func marshalBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(body)
	}
}
