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

package svcerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brrtrouter/brrtrouter/dispatch"
	"github.com/brrtrouter/brrtrouter/route"
	"github.com/brrtrouter/brrtrouter/security"
	"github.com/brrtrouter/brrtrouter/validator"
)

func TestResolveMapsTypedCoreErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &route.ErrNotFound{Path: "/x"}, http.StatusNotFound},
		{"method not allowed", &route.ErrMethodNotAllowed{Path: "/x"}, http.StatusMethodNotAllowed},
		{"unauthorized", &security.ErrUnauthorized{}, http.StatusUnauthorized},
		{"forbidden", &security.ErrForbidden{}, http.StatusForbidden},
		{"provider missing", &security.ErrProviderMissing{SchemeName: "apiKey"}, http.StatusInternalServerError},
		{"validation", &validator.ValidationError{}, http.StatusBadRequest},
		{"payload too large", &http.MaxBytesError{Limit: 1024}, http.StatusRequestEntityTooLarge},
		{"unknown handler", dispatch.ErrUnknownHandler, http.StatusNotImplemented},
		{"inbox full", dispatch.ErrInboxFull, http.StatusServiceUnavailable},
		{"deadline exceeded", dispatch.ErrDeadlineExceeded, http.StatusGatewayTimeout},
		{"unrecognized", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Resolve(tc.err))
		})
	}
}

func TestNewFormatterWiresResolveAsStatusResolver(t *testing.T) {
	t.Parallel()

	req, _ := http.NewRequest(http.MethodGet, "/pets/1", nil)

	for _, format := range []Format{FormatSimple, FormatRFC9457, FormatJSONAPI} {
		f := NewFormatter(format, "https://errors.example")
		resp := f.Format(req, &route.ErrNotFound{Path: "/pets/1"})
		assert.Equal(t, http.StatusNotFound, resp.Status, "format %s", format)
	}
}
