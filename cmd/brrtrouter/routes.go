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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brrtrouter/brrtrouter/dispatch"
	"github.com/brrtrouter/brrtrouter/route"
	"github.com/brrtrouter/brrtrouter/service"
	"github.com/brrtrouter/brrtrouter/spec"
	"github.com/brrtrouter/brrtrouter/stacksize"
)

// demoRouteSpec stands in for the generator-produced spec.RouteSpec an
// OpenAPI document would normally yield (the generator itself lives
// outside this module). It registers a handful of
// routes that exercise every pipeline stage: a public echo, a
// scoped-bearer route, and a streaming route.
func demoRouteSpec() *spec.RouteSpec {
	return &spec.RouteSpec{
		Routes: []*route.Meta{
			{
				Method:      "GET",
				Path:        "/echo/{name}",
				HandlerName: "echo",
				Params: []route.Param{
					{Name: "name", In: route.InPath, Required: true, Style: route.StyleSimple},
				},
			},
			{
				Method:      "POST",
				Path:        "/messages",
				HandlerName: "createMessage",
				Security: []route.SecurityAlternative{
					{{SchemeName: "bearer", RequiredScopes: []string{"messages:write"}}},
				},
			},
			{
				Method:      "GET",
				Path:        "/events",
				HandlerName: "events",
				Streaming:   true,
			},
		},
		Schemas: map[string][]byte{},
	}
}

// registerDemoHandlers wires each demo route's HandlerFunc into disp
// the way a generated registration file would: worker pool size from
// stacksize.WorkerCount, inbox capacity and backpressure from dcfg, and
// the stack-size advisory from stacksize.Resolve.
func registerDemoHandlers(disp *dispatch.Dispatcher, rs *spec.RouteSpec, dcfg service.DispatcherConfig) {
	for _, meta := range rs.Routes {
		workers := stacksize.WorkerCount(meta.WorkerCount, dcfg.DefaultWorkerCount)
		stackBytes := stacksize.Resolve(meta.HandlerName, meta.StackBytes, stacksize.Compute(stacksize.Params{Streaming: meta.Streaming}))

		opts := []dispatch.Option{
			dispatch.WithWorkerCount(workers),
			dispatch.WithInboxCapacity(dcfg.DefaultInboxCap),
			dispatch.WithBlockOnFull(dcfg.BlockOnFull),
			dispatch.WithStackBytes(stackBytes),
		}

		switch meta.HandlerName {
		case "echo":
			disp.Register(meta.HandlerName, echoHandler, opts...)
		case "createMessage":
			disp.Register(meta.HandlerName, createMessageHandler, opts...)
		case "events":
			disp.Register(meta.HandlerName, eventsHandler, opts...)
		}
	}
}

func echoHandler(_ context.Context, req *dispatch.Request, _ dispatch.EventSink) (*dispatch.Response, error) {
	name := req.PathParams["name"]
	return &dispatch.Response{
		Status: 200,
		Body:   map[string]any{"echo": name},
	}, nil
}

func createMessageHandler(_ context.Context, req *dispatch.Request, _ dispatch.EventSink) (*dispatch.Response, error) {
	return &dispatch.Response{
		Status: 201,
		Body:   map[string]any{"accepted": true, "body": req.Body},
	}, nil
}

func eventsHandler(ctx context.Context, _ *dispatch.Request, sink dispatch.EventSink) (*dispatch.Response, error) {
	if sink == nil {
		return &dispatch.Response{Status: 200, Body: map[string]any{"streaming": false}}, nil
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
			n++
			if err := sink.Send("tick", map[string]any{"n": n}); err != nil {
				return nil, fmt.Errorf("events: sending tick: %w", err)
			}
			if n >= 3 {
				return nil, nil
			}
		}
	}
}
