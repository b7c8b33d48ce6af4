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

// Package svcerr maps the core's typed internal errors (route,
// security, validator, dispatch) to HTTP status codes, and adapts
// rivaas.dev/errors' formatters to a stable error body shape:
// { error, details? } by default, with RFC 9457 problem-details and
// JSON:API bodies selectable per service.Config.ErrorFormat without a
// code change.
package svcerr

import (
	"errors"
	"net/http"

	"github.com/brrtrouter/brrtrouter/dispatch"
	"github.com/brrtrouter/brrtrouter/route"
	"github.com/brrtrouter/brrtrouter/security"
	"github.com/brrtrouter/brrtrouter/validator"
	"github.com/google/uuid"
	brrerrors "rivaas.dev/errors"
)

// Format is the selectable error body shape.
type Format string

// Recognized formats.
const (
	FormatSimple  Format = "simple"
	FormatRFC9457 Format = "rfc9457"
	FormatJSONAPI Format = "jsonapi"
)

// NewFormatter returns the rivaas.dev/errors formatter for format,
// wired with Resolve as its status resolver (Simple and RFC9457
// support a resolver hook; JSON:API derives status from ErrorType the
// same way). baseURL is only used by RFC9457 (problem "type" URIs).
func NewFormatter(format Format, baseURL string) brrerrors.Formatter {
	switch format {
	case FormatRFC9457:
		f := brrerrors.NewRFC9457(baseURL)
		f.StatusResolver = Resolve
		f.ErrorIDGenerator = uuid.NewString
		return f
	case FormatJSONAPI:
		f := brrerrors.NewJSONAPI()
		f.StatusResolver = Resolve
		return f
	default:
		f := brrerrors.NewSimple()
		f.StatusResolver = Resolve
		return f
	}
}

// Resolve maps a typed core error to an HTTP status code.
// Unrecognized errors default to 500.
func Resolve(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch err.(type) {
	case *route.ErrNotFound:
		return http.StatusNotFound
	case *route.ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case *security.ErrUnauthorized:
		return http.StatusUnauthorized
	case *security.ErrForbidden:
		return http.StatusForbidden
	case *security.ErrProviderMissing:
		return http.StatusInternalServerError
	case *validator.ValidationError:
		return http.StatusBadRequest
	}
	switch err {
	case dispatch.ErrUnknownHandler:
		return http.StatusNotImplemented
	case dispatch.ErrInboxFull:
		return http.StatusServiceUnavailable
	case dispatch.ErrDeadlineExceeded:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
