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

package service

import "net/http"

// requestView adapts an *http.Request to security.View, read-only and
// cheap to construct per request.
type requestView struct {
	r *http.Request
}

func (v requestView) Header(name string) string { return v.r.Header.Get(name) }
func (v requestView) Query(name string) string  { return v.r.URL.Query().Get(name) }

func (v requestView) Cookie(name string) string {
	c, err := v.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
