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
	"io"
	"net/http"
	"sync"
	"time"
)

// remoteOutcome is a cached (timestamp, valid) pair.
type remoteOutcome struct {
	insertedAt time.Time
	valid      bool
}

// RemoteAPIKey forwards the credential to a remote verifier with a
// bounded timeout, caching both positive and negative outcomes. On
// timeout or any transport error it fails closed.
type RemoteAPIKey struct {
	Location   ParamLocation
	Name       string
	VerifyURL  string
	HeaderName string // header used to forward the credential to VerifyURL
	Timeout    time.Duration
	CacheTTL   time.Duration

	client *http.Client

	mu    sync.Mutex
	cache map[string]remoteOutcome
}

// NewRemoteAPIKey builds a RemoteAPIKey provider. timeout bounds the
// verification call; cacheTTL bounds how long a cached outcome (either
// polarity) is trusted before re-verification.
func NewRemoteAPIKey(location ParamLocation, name, verifyURL, headerName string, timeout, cacheTTL time.Duration) *RemoteAPIKey {
	return &RemoteAPIKey{
		Location:   location,
		Name:       name,
		VerifyURL:  verifyURL,
		HeaderName: headerName,
		Timeout:    timeout,
		CacheTTL:   cacheTTL,
		client:     &http.Client{Timeout: timeout},
		cache:      make(map[string]remoteOutcome),
	}
}

// Validate implements Provider.
func (p *RemoteAPIKey) Validate(ctx context.Context, requiredScopes []string, view View) (Outcome, error) {
	if len(requiredScopes) > 0 {
		return Outcome{Allowed: false, Reason: "remoteApiKey scheme does not support scopes", ScopeInsufficient: true}, nil
	}

	credential := p.extract(view)
	if credential == "" {
		return Outcome{Allowed: false, Reason: "missing api key"}, nil
	}

	// Lazy eviction on read: a stale entry is simply treated as a miss.
	p.mu.Lock()
	cached, ok := p.cache[credential]
	if ok && time.Since(cached.insertedAt) > p.CacheTTL {
		delete(p.cache, credential)
		ok = false
	}
	p.mu.Unlock()

	if ok {
		if cached.valid {
			return Outcome{Allowed: true}, nil
		}
		return Outcome{Allowed: false, Reason: "invalid api key (cached)"}, nil
	}

	valid := p.verifyRemote(ctx, credential)

	p.mu.Lock()
	p.cache[credential] = remoteOutcome{insertedAt: time.Now(), valid: valid}
	p.mu.Unlock()

	if !valid {
		return Outcome{Allowed: false, Reason: "remote verification failed"}, nil
	}
	return Outcome{Allowed: true}, nil
}

// verifyRemote calls VerifyURL with the credential and reports whether
// it was accepted. Any network error, non-2xx status, or timeout is
// fail-closed (returns false), never propagated as an error, so a flaky
// verifier cannot accidentally authorize a request.
func (p *RemoteAPIKey) verifyRemote(ctx context.Context, credential string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.VerifyURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set(p.HeaderName, credential)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *RemoteAPIKey) extract(view View) string {
	switch p.Location {
	case LocationQuery:
		return view.Query(p.Name)
	case LocationCookie:
		return view.Cookie(p.Name)
	default:
		return view.Header(p.Name)
	}
}
