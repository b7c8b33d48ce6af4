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

// Package sse implements the Server-Sent Events surface: a single-use
// event sink handed to a streaming handler, writing
// text/event-stream chunks and flushing per event, and reporting
// closed once the client disconnects.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrClosed is returned by Send once the client has disconnected or
// the writer has otherwise stopped accepting events. A handler must
// stop producing once Send errors.
var ErrClosed = errors.New("sse: sink closed")

// Sink writes Server-Sent Events to an http.ResponseWriter, flushing
// after every event. Not safe for concurrent Send calls; a handler
// emits its event sequence from a single goroutine.
type Sink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
}

// NewSink prepares w for event-stream output: sets the
// Content-Type/Cache-Control headers and writes the status header
// immediately, so the client begins receiving bytes before the first
// event. Returns an error if w does not support flushing.
func NewSink(ctx context.Context, w http.ResponseWriter) (*Sink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("sse: response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Sink{w: w, flusher: flusher, ctx: ctx}, nil
}

// Send implements dispatch.EventSink. payload is marshaled as JSON
// unless it is already a string or []byte. Send reports ErrClosed on
// the first write after ctx is done, i.e. once the client has
// disconnected.
func (s *Sink) Send(event string, payload any) error {
	if err := s.ctx.Err(); err != nil {
		return ErrClosed
	}

	data, err := encode(payload)
	if err != nil {
		return err
	}

	if event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
			return ErrClosed
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return ErrClosed
	}
	s.flusher.Flush()

	// A write can succeed into OS buffers even after the peer has gone
	// away; re-check ctx so the handler's next Send observes the closed
	// sink within one event of the disconnect.
	if err := s.ctx.Err(); err != nil {
		return ErrClosed
	}
	return nil
}

func encode(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
