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

package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brrtrouter/brrtrouter/dispatch"
)

func TestCORSBeforeShortCircuitsAllowedPreflight(t *testing.T) {
	t.Parallel()

	m := NewCORS(WithAllowedOrigins([]string{"https://app.example"}))
	req := &dispatch.Request{
		Method:  http.MethodOptions,
		Headers: map[string][]string{"Origin": {"https://app.example"}},
	}

	resp, err := m.Before(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Equal(t, "https://app.example", resp.Headers["Access-Control-Allow-Origin"])
}

func TestCORSBeforeIgnoresDisallowedOrigin(t *testing.T) {
	t.Parallel()

	m := NewCORS(WithAllowedOrigins([]string{"https://app.example"}))
	req := &dispatch.Request{
		Method:  http.MethodOptions,
		Headers: map[string][]string{"Origin": {"https://evil.example"}},
	}

	resp, err := m.Before(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestCORSBeforeIgnoresNonPreflightRequests(t *testing.T) {
	t.Parallel()

	m := NewCORS(WithAllowAllOrigins(true))
	req := &dispatch.Request{
		Method:  http.MethodGet,
		Headers: map[string][]string{"Origin": {"https://app.example"}},
	}

	resp, err := m.Before(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestCORSAfterAttachesHeadersToRealResponse(t *testing.T) {
	t.Parallel()

	m := NewCORS(WithAllowAllOrigins(true), WithAllowCredentials(true))
	req := &dispatch.Request{Headers: map[string][]string{"Origin": {"https://app.example"}}}
	resp := &dispatch.Response{Status: 200}

	m.After(context.Background(), req, resp, time.Millisecond)

	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "true", resp.Headers["Access-Control-Allow-Credentials"])
}

func TestCORSAfterNoOriginLeavesResponseUntouched(t *testing.T) {
	t.Parallel()

	m := NewCORS(WithAllowAllOrigins(true))
	req := &dispatch.Request{}
	resp := &dispatch.Response{Status: 200}

	m.After(context.Background(), req, resp, time.Millisecond)
	assert.Nil(t, resp.Headers)
}
