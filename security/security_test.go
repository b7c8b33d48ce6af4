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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct{ headers map[string]string }

func (v fakeView) Header(name string) string { return v.headers[name] }
func (v fakeView) Query(string) string       { return "" }
func (v fakeView) Cookie(string) string      { return "" }

type fakeProvider struct {
	outcome Outcome
	err     error
}

func (p fakeProvider) Validate(context.Context, []string, View) (Outcome, error) {
	return p.outcome, p.err
}

func TestEnforceEmptyAlternativesAllowsRequest(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	err := reg.Enforce(context.Background(), nil, fakeView{})
	assert.NoError(t, err)
}

func TestEnforceMissingProviderReturnsDistinctError(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	err := reg.Enforce(context.Background(), []Alternative{
		{{SchemeName: "apiKey"}},
	}, fakeView{})

	require.Error(t, err)
	var missing *ErrProviderMissing
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "apiKey", missing.SchemeName)
}

func TestEnforceMissingProviderCheckedBeforeOtherAlternatives(t *testing.T) {
	t.Parallel()

	// A first alternative that would pass must not mask a later
	// alternative's missing-provider configuration bug: Enforce
	// validates every alternative's providers exist before evaluating
	// any of them.
	reg := NewRegistry()
	reg.Register("apiKey", fakeProvider{outcome: Outcome{Allowed: true}})

	err := reg.Enforce(context.Background(), []Alternative{
		{{SchemeName: "apiKey"}},
		{{SchemeName: "ghost"}},
	}, fakeView{})

	require.Error(t, err)
	var missing *ErrProviderMissing
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ghost", missing.SchemeName)
}

func TestEnforceFirstPassingAlternativeAuthorizes(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("bad", fakeProvider{outcome: Outcome{Allowed: false, Reason: "nope"}})
	reg.Register("good", fakeProvider{outcome: Outcome{Allowed: true}})

	err := reg.Enforce(context.Background(), []Alternative{
		{{SchemeName: "bad"}},
		{{SchemeName: "good"}},
	}, fakeView{})

	assert.NoError(t, err)
}

func TestEnforceAllFailUnauthorizedWithoutScopeIssue(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("apiKey", fakeProvider{outcome: Outcome{Allowed: false, Reason: "bad key"}})

	err := reg.Enforce(context.Background(), []Alternative{
		{{SchemeName: "apiKey"}},
	}, fakeView{})

	require.Error(t, err)
	var unauth *ErrUnauthorized
	require.ErrorAs(t, err, &unauth)
	assert.Contains(t, unauth.Reasons, "bad key")
}

func TestEnforceScopeInsufficientPrefers403(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("bearer", fakeProvider{outcome: Outcome{
		Allowed: false, Reason: "missing scope", ScopeInsufficient: true,
	}})

	err := reg.Enforce(context.Background(), []Alternative{
		{{SchemeName: "bearer", RequiredScopes: []string{"admin"}}},
	}, fakeView{})

	require.Error(t, err)
	var forbidden *ErrForbidden
	require.ErrorAs(t, err, &forbidden)
}

func TestEnforceAndWithinAlternativeRequiresAll(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("first", fakeProvider{outcome: Outcome{Allowed: true}})
	reg.Register("second", fakeProvider{outcome: Outcome{Allowed: false, Reason: "second failed"}})

	err := reg.Enforce(context.Background(), []Alternative{
		{{SchemeName: "first"}, {SchemeName: "second"}},
	}, fakeView{})

	require.Error(t, err)
	var unauth *ErrUnauthorized
	require.ErrorAs(t, err, &unauth)
}

func TestEnforceProviderErrorFailsClosed(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("apiKey", fakeProvider{err: errors.New("upstream unreachable")})

	err := reg.Enforce(context.Background(), []Alternative{
		{{SchemeName: "apiKey"}},
	}, fakeView{})

	require.Error(t, err)
	var unauth *ErrUnauthorized
	require.ErrorAs(t, err, &unauth)
}

func TestRegistryGetReportsPresence(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, ok := reg.Get("missing")
	assert.False(t, ok)

	reg.Register("present", fakeProvider{outcome: Outcome{Allowed: true}})
	p, ok := reg.Get("present")
	assert.True(t, ok)
	assert.NotNil(t, p)
}
