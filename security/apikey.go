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

package security

import (
	"context"
	"crypto/subtle"
)

// APIKey validates a credential in a declared location (header, query,
// or cookie) against a configured key set.
type APIKey struct {
	Location ParamLocation
	Name     string
	Keys     map[string]struct{}
}

// ParamLocation mirrors route.ParamLocation without importing package
// route, keeping security provider-agnostic of the route index.
type ParamLocation string

// Recognized credential locations.
const (
	LocationHeader ParamLocation = "header"
	LocationQuery  ParamLocation = "query"
	LocationCookie ParamLocation = "cookie"
)

// NewAPIKey builds an APIKey provider accepting any of keys, read from
// location/name.
func NewAPIKey(location ParamLocation, name string, keys ...string) *APIKey {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &APIKey{Location: location, Name: name, Keys: set}
}

// Validate implements Provider. APIKey has no concept of scopes:
// requiredScopes must be empty or validation fails closed.
func (p *APIKey) Validate(_ context.Context, requiredScopes []string, view View) (Outcome, error) {
	if len(requiredScopes) > 0 {
		return Outcome{Allowed: false, Reason: "apiKey scheme does not support scopes", ScopeInsufficient: true}, nil
	}

	credential := p.extract(view)
	if credential == "" {
		return Outcome{Allowed: false, Reason: "missing api key"}, nil
	}

	for key := range p.Keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(credential)) == 1 {
			return Outcome{Allowed: true}, nil
		}
	}
	return Outcome{Allowed: false, Reason: "invalid api key"}, nil
}

func (p *APIKey) extract(view View) string {
	switch p.Location {
	case LocationQuery:
		return view.Query(p.Name)
	case LocationCookie:
		return view.Cookie(p.Name)
	default:
		return view.Header(p.Name)
	}
}
