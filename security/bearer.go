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
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// extractBearerToken pulls the raw JWT out of an Authorization header,
// or falls back to cookieName if set and the header is absent — the
// OAuth2 cookie-fallback path.
func extractBearerToken(view View, cookieName string) string {
	if auth := view.Header("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimPrefix(auth, bearerPrefix)
	}
	if cookieName != "" {
		return view.Cookie(cookieName)
	}
	return ""
}

// claimScopes extracts a space-separated "scope" claim into a slice.
func claimScopes(claims jwt.MapClaims) []string {
	raw, _ := claims["scope"].(string)
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

func hasAllScopes(required, granted []string) bool {
	for _, want := range required {
		if !slices.Contains(granted, want) {
			return false
		}
	}
	return true
}

// BearerSharedSecret validates a JWT signed with a shared HMAC
// secret. Development-only: the secret is a single configured value
// rather than a rotated key.
type BearerSharedSecret struct {
	Secret     []byte
	CookieName string // optional fallback, per OAuth2 delegation
	Leeway     time.Duration
}

// NewBearerSharedSecret builds a BearerSharedSecret provider.
func NewBearerSharedSecret(secret []byte, cookieName string, leeway time.Duration) *BearerSharedSecret {
	return &BearerSharedSecret{Secret: secret, CookieName: cookieName, Leeway: leeway}
}

// Validate implements Provider.
func (p *BearerSharedSecret) Validate(_ context.Context, requiredScopes []string, view View) (Outcome, error) {
	token := extractBearerToken(view, p.CookieName)
	if token == "" {
		return Outcome{Allowed: false, Reason: "missing bearer token"}, nil
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithLeeway(p.Leeway))
	if err != nil || !parsed.Valid {
		return Outcome{Allowed: false, Reason: "invalid bearer token"}, nil
	}

	granted := claimScopes(claims)
	if !hasAllScopes(requiredScopes, granted) {
		return Outcome{Allowed: false, Reason: "insufficient scope", ScopeInsufficient: true}, nil
	}
	return Outcome{Allowed: true}, nil
}
