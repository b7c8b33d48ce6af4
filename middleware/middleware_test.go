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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brrtrouter/brrtrouter/dispatch"
)

type recordingMiddleware struct {
	name      string
	before    *dispatch.Response
	beforeErr error
	calls     *[]string
}

func (m recordingMiddleware) Name() string { return m.name }

func (m recordingMiddleware) Before(context.Context, *dispatch.Request) (*dispatch.Response, error) {
	*m.calls = append(*m.calls, m.name+":before")
	return m.before, m.beforeErr
}

func (m recordingMiddleware) After(context.Context, *dispatch.Request, *dispatch.Response, time.Duration) {
	*m.calls = append(*m.calls, m.name+":after")
}

func TestChainRunBeforeStopsAtFirstShortCircuit(t *testing.T) {
	t.Parallel()

	var calls []string
	short := &dispatch.Response{Status: 204}
	chain := NewChain(
		recordingMiddleware{name: "a", calls: &calls},
		recordingMiddleware{name: "b", before: short, calls: &calls},
		recordingMiddleware{name: "c", calls: &calls},
	)

	resp, err := chain.RunBefore(context.Background(), &dispatch.Request{})
	require.NoError(t, err)
	assert.Same(t, short, resp)
	assert.Equal(t, []string{"a:before", "b:before"}, calls)
}

func TestChainRunAfterRunsInReverseOrderRegardlessOfBefore(t *testing.T) {
	t.Parallel()

	var calls []string
	chain := NewChain(
		recordingMiddleware{name: "a", calls: &calls},
		recordingMiddleware{name: "b", calls: &calls},
		recordingMiddleware{name: "c", calls: &calls},
	)

	chain.RunBefore(context.Background(), &dispatch.Request{})
	calls = nil

	chain.RunAfter(context.Background(), &dispatch.Request{}, &dispatch.Response{}, time.Millisecond)
	assert.Equal(t, []string{"c:after", "b:after", "a:after"}, calls)
}

func TestChainLenReportsRegisteredCount(t *testing.T) {
	t.Parallel()

	chain := NewChain(recordingMiddleware{name: "a", calls: &[]string{}})
	assert.Equal(t, 1, chain.Len())

	empty := NewChain()
	assert.Equal(t, 0, empty.Len())
}
