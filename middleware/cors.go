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
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brrtrouter/brrtrouter/dispatch"
)

// CORSOption configures a CORSMiddleware.
type CORSOption func(*corsConfig)

type corsConfig struct {
	allowedOrigins   []string
	allowAllOrigins  bool
	allowOriginFunc  func(origin string) bool
	allowedMethods   []string
	allowedHeaders   []string
	exposedHeaders   []string
	allowCredentials bool
	maxAge           int
}

func defaultCORSConfig() *corsConfig {
	return &corsConfig{
		allowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		allowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		maxAge:         3600,
	}
}

// WithAllowedOrigins sets the exact origins CORS requests may come
// from.
func WithAllowedOrigins(origins []string) CORSOption {
	return func(c *corsConfig) { c.allowedOrigins = origins; c.allowAllOrigins = false }
}

// WithAllowAllOrigins allows any origin (Access-Control-Allow-Origin: *).
func WithAllowAllOrigins(allow bool) CORSOption {
	return func(c *corsConfig) { c.allowAllOrigins = allow }
}

// WithAllowOriginFunc validates origins dynamically.
func WithAllowOriginFunc(fn func(origin string) bool) CORSOption {
	return func(c *corsConfig) { c.allowOriginFunc = fn }
}

// WithAllowedMethods sets the preflight Access-Control-Allow-Methods value.
func WithAllowedMethods(methods []string) CORSOption {
	return func(c *corsConfig) { c.allowedMethods = methods }
}

// WithAllowedHeaders sets the preflight Access-Control-Allow-Headers value.
func WithAllowedHeaders(headers []string) CORSOption {
	return func(c *corsConfig) { c.allowedHeaders = headers }
}

// WithExposedHeaders sets Access-Control-Expose-Headers on actual responses.
func WithExposedHeaders(headers []string) CORSOption {
	return func(c *corsConfig) { c.exposedHeaders = headers }
}

// WithAllowCredentials enables Access-Control-Allow-Credentials.
func WithAllowCredentials(allow bool) CORSOption {
	return func(c *corsConfig) { c.allowCredentials = allow }
}

// WithMaxAge sets the preflight cache duration in seconds.
func WithMaxAge(seconds int) CORSOption {
	return func(c *corsConfig) { c.maxAge = seconds }
}

// CORSMiddleware implements Cross-Origin Resource Sharing. Preflight
// OPTIONS requests are short-circuited from Before; actual requests
// get their CORS headers attached in After once the real response is
// known, since Before has no response to annotate yet.
type CORSMiddleware struct {
	cfg                  *corsConfig
	allowedMethodsHeader string
	allowedHeadersHeader string
	exposedHeadersHeader string
	maxAgeHeader         string
}

// NewCORS builds a CORSMiddleware. The default configuration allows
// no origins.
func NewCORS(opts ...CORSOption) *CORSMiddleware {
	cfg := defaultCORSConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &CORSMiddleware{
		cfg:                  cfg,
		allowedMethodsHeader: strings.Join(cfg.allowedMethods, ", "),
		allowedHeadersHeader: strings.Join(cfg.allowedHeaders, ", "),
		exposedHeadersHeader: strings.Join(cfg.exposedHeaders, ", "),
		maxAgeHeader:         strconv.Itoa(cfg.maxAge),
	}
}

func (m *CORSMiddleware) Name() string { return "cors" }

func (m *CORSMiddleware) resolveOrigin(origin string) string {
	switch {
	case m.cfg.allowAllOrigins:
		return "*"
	case m.cfg.allowOriginFunc != nil:
		if m.cfg.allowOriginFunc(origin) {
			return origin
		}
	default:
		for _, allowed := range m.cfg.allowedOrigins {
			if origin == allowed {
				return origin
			}
		}
	}
	return ""
}

// Before short-circuits a CORS preflight request with a 204 response
// carrying the full set of preflight headers.
func (m *CORSMiddleware) Before(_ context.Context, req *dispatch.Request) (*dispatch.Response, error) {
	origin := firstHeader(req.Headers, "Origin")
	if origin == "" || req.Method != http.MethodOptions {
		return nil, nil
	}
	allowed := m.resolveOrigin(origin)
	if allowed == "" {
		return nil, nil
	}

	headers := map[string]string{
		"Access-Control-Allow-Origin":  allowed,
		"Access-Control-Allow-Methods": m.allowedMethodsHeader,
		"Access-Control-Allow-Headers": m.allowedHeadersHeader,
		"Access-Control-Max-Age":       m.maxAgeHeader,
	}
	if m.cfg.allowCredentials {
		headers["Access-Control-Allow-Credentials"] = "true"
	}
	return &dispatch.Response{Status: http.StatusNoContent, Headers: headers}, nil
}

// After attaches CORS headers to a non-preflight response whose
// request carried an Origin header.
func (m *CORSMiddleware) After(_ context.Context, req *dispatch.Request, resp *dispatch.Response, _ time.Duration) {
	if resp == nil {
		return
	}
	origin := firstHeader(req.Headers, "Origin")
	if origin == "" {
		return
	}
	allowed := m.resolveOrigin(origin)
	if allowed == "" {
		return
	}
	if resp.Headers == nil {
		resp.Headers = make(map[string]string, 2)
	}
	resp.Headers["Access-Control-Allow-Origin"] = allowed
	if m.cfg.allowCredentials {
		resp.Headers["Access-Control-Allow-Credentials"] = "true"
	}
	if m.exposedHeadersHeader != "" {
		resp.Headers["Access-Control-Expose-Headers"] = m.exposedHeadersHeader
	}
}

func firstHeader(headers map[string][]string, name string) string {
	if headers == nil {
		return ""
	}
	if vals, ok := headers[name]; ok && len(vals) > 0 {
		return vals[0]
	}
	// dispatch.Request canonicalizes header keys; also accept the
	// canonical textproto form if the caller stored it that way.
	if vals, ok := headers[http.CanonicalHeaderKey(name)]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}
