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

// Package security implements the security provider registry: a
// scheme-name -> verifier map enforcing per-route `security`
// requirements (OR across alternatives, AND within an alternative).
//
// Every verifier implements the same capability — a single Validate
// method — with distinct concrete types for API key, bearer JWT,
// JWKS, OAuth2, and remote verification.
package security

import (
	"context"
	"fmt"
	"sync"
)

// View is a read-only view of the parts of a request a Provider may
// need: headers, query parameters, and cookies. Implementations must
// not mutate or retain anything derived from View beyond the call.
type View interface {
	Header(name string) string
	Query(name string) string
	Cookie(name string) string
}

// Outcome is the result of a single provider's validation.
type Outcome struct {
	// Allowed reports whether the credential satisfied the scheme and
	// every required scope.
	Allowed bool
	// Reason is a short, non-sensitive description of why validation
	// failed. Empty when Allowed is true.
	Reason string
	// ScopeInsufficient is true when the identity was valid but lacked
	// a required scope — the service prefers 403 over 401 in that case.
	ScopeInsufficient bool
}

// Provider is the capability every security-scheme verifier
// implements: validate a credential, extracted from view per the
// scheme's declared location, against requiredScopes.
//
// All errors (network, parse, timeout) are reported as a non-nil error
// here only for truly exceptional conditions (e.g. a misconfigured
// provider); ordinary auth failures are expressed via Outcome.Allowed
// == false, never an error, so the registry's fail-closed rule always
// has a concrete Outcome to act on.
type Provider interface {
	Validate(ctx context.Context, requiredScopes []string, view View) (Outcome, error)
}

// Requirement is one (schemeName, requiredScopes) pair.
type Requirement struct {
	SchemeName     string
	RequiredScopes []string
}

// Alternative is a set of requirements that must all hold (AND).
type Alternative []Requirement

// ErrProviderMissing indicates a route names a security scheme with no
// registered provider — a configuration bug, mapped to 500 rather
// than an auth failure.
type ErrProviderMissing struct {
	SchemeName string
}

func (e *ErrProviderMissing) Error() string {
	return fmt.Sprintf("security: no provider registered for scheme %q", e.SchemeName)
}

// ErrUnauthorized means every alternative failed and none failed only
// due to insufficient scope.
type ErrUnauthorized struct{ Reasons []string }

func (e *ErrUnauthorized) Error() string { return "security: unauthorized" }

// ErrForbidden means every alternative failed and at least one failed
// due to insufficient scope on an otherwise-valid identity (maps to
// 403).
type ErrForbidden struct{ Reasons []string }

func (e *ErrForbidden) Error() string { return "security: forbidden" }

// Registry maps scheme name to Provider. Registration happens once at
// startup; after that the map is read-only. Reads take the read lock,
// so a provider (re-)registered after startup, e.g. in tests, is safe
// alongside concurrent lookups.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register inserts provider under name, keyed by the exact scheme name
// declared in the spec.
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Get returns the provider registered under name, if any.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Enforce evaluates the route's security requirements: if alternatives is empty the
// request continues unauthenticated. Otherwise each alternative is
// evaluated in order; the first alternative in which every requirement
// passes authorizes the request. If all alternatives fail, Enforce
// returns *ErrForbidden when any failure was scope-insufficiency on an
// otherwise-valid identity, else *ErrUnauthorized. A route naming a
// scheme with no registered provider is a configuration bug, not an
// auth failure: Enforce returns *ErrProviderMissing immediately,
// distinct from the OR/AND outcome of the other alternatives, so the
// caller maps it to 500 rather than 401/403.
func (r *Registry) Enforce(ctx context.Context, alternatives []Alternative, view View) error {
	if len(alternatives) == 0 {
		return nil
	}

	for _, alt := range alternatives {
		for _, req := range alt {
			if _, found := r.Get(req.SchemeName); !found {
				return &ErrProviderMissing{SchemeName: req.SchemeName}
			}
		}
	}

	var reasons []string
	scopeInsufficientSeen := false

	for _, alt := range alternatives {
		ok, scopeFail, altReasons := r.evaluateAlternative(ctx, alt, view)
		if ok {
			return nil
		}
		if scopeFail {
			scopeInsufficientSeen = true
		}
		reasons = append(reasons, altReasons...)
	}

	if scopeInsufficientSeen {
		return &ErrForbidden{Reasons: reasons}
	}
	return &ErrUnauthorized{Reasons: reasons}
}

func (r *Registry) evaluateAlternative(ctx context.Context, alt Alternative, view View) (ok, scopeInsufficient bool, reasons []string) {
	for _, req := range alt {
		provider, found := r.Get(req.SchemeName)
		if !found {
			// Already checked in Enforce; unreachable in practice.
			reasons = append(reasons, (&ErrProviderMissing{SchemeName: req.SchemeName}).Error())
			return false, false, reasons
		}

		outcome, err := provider.Validate(ctx, req.RequiredScopes, view)
		if err != nil {
			// Fail-closed: any provider error is a negative outcome.
			reasons = append(reasons, err.Error())
			return false, false, reasons
		}
		if !outcome.Allowed {
			reasons = append(reasons, outcome.Reason)
			if outcome.ScopeInsufficient {
				scopeInsufficient = true
			}
			return false, scopeInsufficient, reasons
		}
	}
	return true, false, nil
}
