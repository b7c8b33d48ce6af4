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

// Package spec defines the stable interface between this runtime core
// and its two external collaborators: the OpenAPI parser, which
// produces a RouteSpec from a parsed document, and the code generator,
// which emits handler stubs registered against dispatch.HandlerFunc.
// Neither the parser nor the generator is implemented in this module;
// RouteSpec is the contract they plug into.
package spec

import (
	"fmt"

	"github.com/brrtrouter/brrtrouter/route"
)

// RouteSpec is the parser's output: every route this service will
// serve, plus the schema documents needed by the validator cache.
type RouteSpec struct {
	// Routes is the flat list of operations, already resolved to the
	// route package's metadata shape (method, path template, handler
	// name, parameters, security, extensions).
	Routes []*route.Meta
	// Schemas maps a schema pointer (as referenced by route.Meta's
	// RequestBodySchema/Responses fields) to its raw JSON Schema
	// document, for the validator cache to compile on first use.
	Schemas map[string][]byte
}

// BuildIndex constructs a fresh, immutable route.Index from every
// route in the spec, at startup and again on each successful hot
// reload. A build-time error (ambiguous or
// duplicate route) aborts the whole build; the caller must not adopt a
// partially-built index.
func (s *RouteSpec) BuildIndex() (*route.Index, error) {
	idx := route.NewIndex()
	for _, meta := range s.Routes {
		if err := idx.Add(meta); err != nil {
			return nil, fmt.Errorf("spec: building route index: %w", err)
		}
	}
	return idx.Build()
}

// HandlerNames returns the distinct handler names referenced by the
// spec's routes, in first-seen order — used by the service's readiness
// check (GET /health?ready=1) to report any named handler without a
// registered dispatch.Dispatcher worker pool.
func (s *RouteSpec) HandlerNames() []string {
	seen := make(map[string]bool, len(s.Routes))
	names := make([]string, 0, len(s.Routes))
	for _, r := range s.Routes {
		if !seen[r.HandlerName] {
			seen[r.HandlerName] = true
			names = append(names, r.HandlerName)
		}
	}
	return names
}
