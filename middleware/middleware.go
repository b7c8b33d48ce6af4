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

// Package middleware implements the before/after hook chain: each
// Middleware's Before may short-circuit dispatch by
// returning a non-nil Response, and After may mutate the final
// Response. Invocation order is Before in registration order, After in
// reverse registration order — the conventional "wrap" order of
// net/http middleware chains, expressed as an explicit before/after
// hook pair since the dispatcher's request/response types are not
// http.Request/http.ResponseWriter.
package middleware

import (
	"context"
	"time"

	"github.com/brrtrouter/brrtrouter/dispatch"
)

// Middleware is one entry in the chain.
type Middleware interface {
	// Name identifies the middleware for diagnostics; never used as a
	// metrics label value beyond a fixed small set of known names.
	Name() string
	// Before runs ahead of dispatch. Returning a non-nil Response
	// short-circuits dispatch; the returned error is used only when
	// Before itself fails unexpectedly (rare; treated as a 500 by
	// package service).
	Before(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error)
	// After runs once the response is known, whether it came from a
	// handler or from an earlier middleware's Before short-circuit. It
	// may mutate resp in place.
	After(ctx context.Context, req *dispatch.Request, resp *dispatch.Response, elapsed time.Duration)
}

// Chain is an ordered, immutable sequence of Middleware.
type Chain struct {
	items []Middleware
}

// NewChain builds a Chain from items in registration order.
func NewChain(items ...Middleware) *Chain {
	return &Chain{items: append([]Middleware(nil), items...)}
}

// RunBefore invokes each middleware's Before in registration order,
// stopping at (and returning) the first non-nil Response or error.
func (c *Chain) RunBefore(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
	for _, m := range c.items {
		resp, err := m.Before(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// RunAfter invokes every middleware's After in reverse registration
// order (the conventional "unwind the stack" order), regardless of
// where RunBefore stopped.
func (c *Chain) RunAfter(ctx context.Context, req *dispatch.Request, resp *dispatch.Response, elapsed time.Duration) {
	for i := len(c.items) - 1; i >= 0; i-- {
		c.items[i].After(ctx, req, resp, elapsed)
	}
}

// Len reports the number of registered middleware.
func (c *Chain) Len() int { return len(c.items) }
