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

package corrid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesValidULID(t *testing.T) {
	t.Parallel()

	id := New()
	assert.True(t, Valid(id))
	assert.Len(t, id, 26)
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Valid(New()))
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
	assert.False(t, Valid("01ARZ3NDEKTSV4RRFFQ69G5FA")) // 25 chars, too short
}

func TestFromRequestAcceptsValidClientID(t *testing.T) {
	t.Parallel()

	client := New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, client)

	assert.Equal(t, client, FromRequest(req))
}

func TestFromRequestRejectsInvalidClientID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "bogus")

	id := FromRequest(req)
	require.NotEqual(t, "bogus", id)
	assert.True(t, Valid(id))
}

func TestFromRequestGeneratesWhenAbsent(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, Valid(FromRequest(req)))
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithContext(t.Context(), "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", FromContext(ctx))
	assert.Equal(t, "", FromContext(t.Context()))
}
