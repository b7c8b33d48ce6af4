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
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwk is one entry of a JSON Web Key Set, restricted to the RSA and
// HMAC-oct fields this provider understands.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
	K   string `json:"k"` // oct (HMAC) key material, base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// keyEntry is a cached decoding key plus when it was fetched.
type keyEntry struct {
	key     any
	fetchAt time.Time
	hardTTL time.Time
}

// JWKSBearer validates a JWT whose signing key is resolved at runtime
// from a JWKS endpoint by key ID.
// Keys are cached by kid with a soft TTL (triggers a refresh) and a
// hard TTL (stale keys are served until this expires, even if refresh
// fails) — the "keep stale keys until an absolute hard TTL" rule.
type JWKSBearer struct {
	JWKSURL    string
	Issuer     string // optional; empty disables the check
	Audience   string // optional; empty disables the check
	Leeway     time.Duration
	CacheTTL   time.Duration
	HardTTL    time.Duration
	MaxRefresh int // not consulted: refresh allows one JWKS fetch in flight at a time

	client *http.Client

	mu       sync.Mutex
	keys     map[string]keyEntry
	inflight map[string]chan struct{}
}

// NewJWKSBearer builds a JWKSBearer provider. hardTTL should exceed
// cacheTTL; stale keys outlive cacheTTL but never hardTTL.
func NewJWKSBearer(jwksURL, issuer, audience string, leeway, cacheTTL, hardTTL time.Duration) *JWKSBearer {
	if hardTTL < cacheTTL {
		hardTTL = cacheTTL
	}
	return &JWKSBearer{
		JWKSURL:  jwksURL,
		Issuer:   issuer,
		Audience: audience,
		Leeway:   leeway,
		CacheTTL: cacheTTL,
		HardTTL:  hardTTL,
		client:   &http.Client{Timeout: 5 * time.Second},
		keys:     make(map[string]keyEntry),
		inflight: make(map[string]chan struct{}),
	}
}

// Validate implements Provider.
func (p *JWKSBearer) Validate(ctx context.Context, requiredScopes []string, view View) (Outcome, error) {
	token := extractBearerToken(view, "")
	if token == "" {
		return Outcome{Allowed: false, Reason: "missing bearer token"}, nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "HS256", "HS384", "HS512"}),
		jwt.WithLeeway(p.Leeway),
	}
	if p.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.Audience))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return p.resolveKey(ctx, kid)
	}, opts...)
	if err != nil || !parsed.Valid {
		return Outcome{Allowed: false, Reason: "invalid bearer token"}, nil
	}

	granted := claimScopes(claims)
	if !hasAllScopes(requiredScopes, granted) {
		return Outcome{Allowed: false, Reason: "insufficient scope", ScopeInsufficient: true}, nil
	}
	return Outcome{Allowed: true}, nil
}

// resolveKey returns the decoding key for kid, refreshing the JWKS
// document on a cache miss or soft-TTL expiry. At most one refresh is
// in flight per provider at a time; concurrent callers for the same
// refresh wait on it rather than issuing duplicate fetches.
func (p *JWKSBearer) resolveKey(ctx context.Context, kid string) (any, error) {
	p.mu.Lock()
	if entry, ok := p.keys[kid]; ok && time.Since(entry.fetchAt) < p.CacheTTL {
		p.mu.Unlock()
		return entry.key, nil
	}
	p.mu.Unlock()

	if err := p.refresh(ctx); err != nil {
		// Refresh failed: fall back to a stale key if it hasn't hit its
		// hard TTL yet.
		p.mu.Lock()
		defer p.mu.Unlock()
		if entry, ok := p.keys[kid]; ok && time.Now().Before(entry.hardTTL) {
			return entry.key, nil
		}
		return nil, fmt.Errorf("security: jwks refresh failed and no usable cached key for kid %q: %w", kid, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.keys[kid]
	if !ok || !time.Now().Before(entry.hardTTL) {
		return nil, fmt.Errorf("security: jwks: unknown key id %q", kid)
	}
	return entry.key, nil
}

func (p *JWKSBearer) refresh(ctx context.Context) error {
	p.mu.Lock()
	if wait, inflight := p.inflight[p.JWKSURL]; inflight {
		p.mu.Unlock()
		select {
		case <-wait:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	p.inflight[p.JWKSURL] = done
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inflight, p.JWKSURL)
		p.mu.Unlock()
		close(done)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.JWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("security: jwks endpoint returned %d", resp.StatusCode)
	}

	var doc jwks
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("security: jwks: invalid response body: %w", err)
	}

	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range doc.Keys {
		decoded, err := decodeJWK(k)
		if err != nil {
			continue
		}
		p.keys[k.Kid] = keyEntry{key: decoded, fetchAt: now, hardTTL: now.Add(p.HardTTL)}
	}
	return nil
}

func decodeJWK(k jwk) (any, error) {
	switch k.Kty {
	case "RSA":
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		n := new(big.Int).SetBytes(nBytes)
		e := new(big.Int).SetBytes(eBytes)
		return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
	case "oct":
		return base64.RawURLEncoding.DecodeString(k.K)
	default:
		return nil, fmt.Errorf("security: jwks: unsupported key type %q", k.Kty)
	}
}
