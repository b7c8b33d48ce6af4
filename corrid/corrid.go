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

// Package corrid implements the request-ID / correlation-ID shim:
// every request is tagged with a ULID, the ID is echoed on the
// response, and it is available to structured logging but never used
// as a metrics label.
package corrid

import (
	"context"
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Header is the canonical request-ID header name.
const Header = "X-Request-ID"

type contextKey struct{}

// entropy is a process-wide, time-monotonic entropy source shared by all
// generated IDs. Guarded by mu since ulid.MonotonicReader is not safe for
// concurrent use.
var (
	entropy = ulid.Monotonic(rand.Reader, 0)
	mu      sync.Mutex
)

// New generates a fresh ULID correlation ID.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Valid reports whether s is a syntactically valid ULID (26-character
// Crockford base-32).
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// FromRequest returns the client-supplied request ID if it is a
// syntactically valid ULID, otherwise a freshly generated one. It never
// returns an empty string.
func FromRequest(r *http.Request) string {
	if id := r.Header.Get(Header); id != "" && Valid(id) {
		return id
	}
	return New()
}

// WithContext attaches id to ctx so downstream logging/handlers can
// retrieve it via FromContext.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext retrieves the correlation ID previously attached with
// WithContext. Returns "" if none was attached.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
