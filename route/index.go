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

package route

import (
	"slices"
	"sort"
)

// edge is a per-segment literal child (router/radix.go's edge shape:
// linear scan over a small slice beats map hashing for typical route
// fan-out).
type edge struct {
	label string
	node  *node
}

// param is the single parameterized child of a node. A radix tree node
// has at most one param child; two routes disagreeing on the param
// name at the same position is a build-time ambiguity.
type param struct {
	key  string
	node *node
}

// node is one segment position in the route tree.
type node struct {
	edges   []edge
	param   *param
	methods map[string]*Meta // non-nil only at a registered leaf
}

func (n *node) findChild(segment string) *node {
	for i := range n.edges {
		if n.edges[i].label == segment {
			return n.edges[i].node
		}
	}
	return nil
}

func (n *node) findOrCreateChild(segment string) *node {
	if child := n.findChild(segment); child != nil {
		return child
	}
	child := &node{}
	n.edges = append(n.edges, edge{label: segment, node: child})
	return child
}

// Index is the route index: a radix tree of method+path
// templates built once (or rebuilt wholesale on hot reload, see package
// reload) and then looked up read-only, concurrently, with no locking —
// the tree is never mutated after Build returns successfully.
type Index struct {
	root *node
}

// NewIndex creates an empty, unbuilt route index. Call Add for each
// route, then Build once before serving traffic.
func NewIndex() *Index {
	return &Index{root: &node{}}
}

// Add inserts a route's metadata into the tree. Add must only be
// called before Build; the tree is not safe for concurrent mutation.
// Returns ErrDuplicateRoute if (meta.Method, meta.Path) was already
// registered, or ErrAmbiguousRoute if a parameter segment collides with
// a differently-named parameter already registered at the same tree
// position.
func (idx *Index) Add(meta *Meta) error {
	segments := splitSegments(meta.Path)
	current := idx.root

	for _, segment := range segments {
		if name, ok := isParamSegment(segment); ok {
			if current.param != nil && current.param.key != name {
				return &ErrAmbiguousRoute{
					Path:   meta.Path,
					Reason: "parameter name \"" + current.param.key + "\" conflicts with \"" + name + "\" at the same position",
				}
			}
			if current.param == nil {
				current.param = &param{key: name, node: &node{}}
			}
			current = current.param.node
			continue
		}
		current = current.findOrCreateChild(segment)
	}

	if current.methods == nil {
		current.methods = make(map[string]*Meta, 1)
	}
	if _, exists := current.methods[meta.Method]; exists {
		return &ErrDuplicateRoute{Method: meta.Method, Path: meta.Path}
	}
	current.methods[meta.Method] = meta
	return nil
}

// Build validates the tree (currently a no-op beyond what Add already
// enforces incrementally) and returns the index ready for concurrent
// lookups. Build exists so callers have a single, explicit "freeze"
// point to pair with hot-reload's atomic swap (package reload).
func (idx *Index) Build() (*Index, error) {
	return idx, nil
}

// Lookup performs a method+path match. It never panics: an unmatched
// path/method yields a typed error the caller (package service) maps to
// an HTTP status. Parameter extraction allocates at most one map per
// successful match.
func (idx *Index) Lookup(method, path string) (*Match, error) {
	segments := splitSegments(path)
	current := idx.root

	var params map[string]string
	for _, segment := range segments {
		if child := current.findChild(segment); child != nil {
			current = child
			continue
		}
		if current.param != nil {
			if params == nil {
				params = make(map[string]string, len(segments))
			}
			params[current.param.key] = segment
			current = current.param.node
			continue
		}
		return nil, &ErrNotFound{Path: path}
	}

	if current.methods == nil {
		return nil, &ErrNotFound{Path: path}
	}
	meta, ok := current.methods[method]
	if !ok {
		return nil, &ErrMethodNotAllowed{Path: path, Allowed: allowedMethods(current.methods)}
	}
	if params == nil {
		params = map[string]string{}
	}
	return &Match{Route: meta, Params: params}, nil
}

// RouteCount returns the number of registered (method, path) routes in
// the index, used by the reload controller to log a post-swap summary.
func (idx *Index) RouteCount() int {
	return countRoutes(idx.root)
}

func countRoutes(n *node) int {
	if n == nil {
		return 0
	}
	count := len(n.methods)
	for _, e := range n.edges {
		count += countRoutes(e.node)
	}
	if n.param != nil {
		count += countRoutes(n.param.node)
	}
	return count
}

func allowedMethods(methods map[string]*Meta) []string {
	allowed := make([]string, 0, len(methods))
	for m := range methods {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	return slices.Clip(allowed)
}
