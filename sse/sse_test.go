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

package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nonFlushingWriter struct{ http.ResponseWriter }

func TestNewSinkRejectsNonFlushingWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	_, err := NewSink(context.Background(), nonFlushingWriter{rec})
	assert.Error(t, err)
}

func TestNewSinkWritesStreamHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	_, err := NewSink(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendWritesEventAndData(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sink, err := NewSink(context.Background(), rec)
	require.NoError(t, err)

	require.NoError(t, sink.Send("tick", map[string]int{"n": 1}))
	assert.Equal(t, "event: tick\ndata: {\"n\":1}\n\n", rec.Body.String())
}

func TestSendWithoutEventNameOmitsEventLine(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sink, err := NewSink(context.Background(), rec)
	require.NoError(t, err)

	require.NoError(t, sink.Send("", "plain"))
	assert.Equal(t, "data: plain\n\n", rec.Body.String())
}

func TestSendReportsClosedAfterContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	sink, err := NewSink(ctx, rec)
	require.NoError(t, err)

	cancel()
	assert.ErrorIs(t, sink.Send("tick", "x"), ErrClosed)
}

func TestSendMarshalsByteSlicePayloadVerbatim(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sink, err := NewSink(context.Background(), rec)
	require.NoError(t, err)

	require.NoError(t, sink.Send("raw", []byte("already-encoded")))
	assert.Equal(t, "event: raw\ndata: already-encoded\n\n", rec.Body.String())
}
