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

import "context"

// OAuth2 delegates validation to either a shared-secret or a JWKS
// bearer verifier. Exactly one of Shared or JWKS should be set; OAuth2
// does not itself parse tokens.
type OAuth2 struct {
	Shared *BearerSharedSecret
	JWKS   *JWKSBearer
}

// NewOAuth2Shared builds an OAuth2 provider backed by a shared-secret
// bearer verifier.
func NewOAuth2Shared(delegate *BearerSharedSecret) *OAuth2 {
	return &OAuth2{Shared: delegate}
}

// NewOAuth2JWKS builds an OAuth2 provider backed by a JWKS bearer
// verifier.
func NewOAuth2JWKS(delegate *JWKSBearer) *OAuth2 {
	return &OAuth2{JWKS: delegate}
}

// Validate implements Provider by forwarding to whichever delegate is
// configured.
func (p *OAuth2) Validate(ctx context.Context, requiredScopes []string, view View) (Outcome, error) {
	switch {
	case p.Shared != nil:
		return p.Shared.Validate(ctx, requiredScopes, view)
	case p.JWKS != nil:
		return p.JWKS.Validate(ctx, requiredScopes, view)
	default:
		return Outcome{Allowed: false, Reason: "oauth2 provider has no delegate configured"}, nil
	}
}
