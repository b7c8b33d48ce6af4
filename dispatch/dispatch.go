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

// Package dispatch implements the coroutine dispatcher: a
// message-passing scheduler between the HTTP service and user handler
// logic. Each handler name owns a bounded inbox channel (MPSC) served
// by one or more worker goroutines, which the Go runtime multiplexes
// over GOMAXPROCS OS threads.
//
// A handler panic is recovered at the worker boundary and converted to
// a 500 Response; the worker goroutine is never terminated by a panic
// and continues serving its inbox.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Request is the normalized, immutable view of an HTTP request handed
// to a handler.
type Request struct {
	Method      string
	Path        string // matched path template
	HandlerName string

	PathParams  map[string]string
	QueryParams map[string][]string
	Headers     map[string][]string // canonical (textproto) keys
	Cookies     map[string]string
	Body        any // decoded JSON body, nil if absent

	CorrelationID string
}

// EventSink is a single-use SSE event writer handed to a streaming
// handler in place of a JSON body. Implemented by package
// sse; declared here to keep dispatch free of an import cycle.
type EventSink interface {
	// Send writes one named event. Returns an error (typically
	// context.Canceled) once the client has disconnected; the handler
	// must stop producing once Send errors.
	Send(event string, payload any) error
}

// Response is the result of a successful handler invocation.
type Response struct {
	Status  int
	Headers map[string]string
	Body    any // marshaled to JSON by the service, nil for streaming
}

// HandlerFunc is the stable calling contract opaque user code
// implements. For a streaming route (Request came from a route with
// Streaming=true) the dispatcher passes a non-nil sink and ignores the
// returned Response body; for a non-streaming route sink is nil.
type HandlerFunc func(ctx context.Context, req *Request, sink EventSink) (*Response, error)

// envelope carries one request plus its single-use reply channel
// through a handler's inbox.
type envelope struct {
	ctx   context.Context
	req   *Request
	sink  EventSink
	reply chan replyMsg
}

type replyMsg struct {
	resp *Response
	err  error
}

// Errors returned by Dispatch, mapped to HTTP status by package
// service.
var (
	// ErrUnknownHandler means no worker pool is registered for the
	// route's handler name, as happens when a hot reload adds a route
	// before its handler exists → 501.
	ErrUnknownHandler = fmt.Errorf("dispatch: unknown handler")
	// ErrInboxFull means the handler's bounded inbox had no room and
	// the configured backpressure policy is to reject → 503.
	ErrInboxFull = fmt.Errorf("dispatch: inbox full")
	// ErrDeadlineExceeded means the worker did not reply before the
	// per-request deadline → 504.
	ErrDeadlineExceeded = fmt.Errorf("dispatch: deadline exceeded")
)

// handlerPool is the registered state for one handler name: its inbox
// and the cancel function that stops its workers on Shutdown.
type handlerPool struct {
	inbox      chan envelope
	cancel     context.CancelFunc
	workerDone sync.WaitGroup
	blocking   bool // Register's BlockOnFull option: block instead of 503
	stackBytes int  // advisory, see WithStackBytes
}

// Dispatcher routes matched requests to the correct handler worker
// pool and awaits a reply on a single-use channel.
// Registration happens at startup (and, for hot-reload-added handlers,
// append-only thereafter); the handler table is otherwise read-only
// for the dispatcher's lifetime.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]*handlerPool
	logger   *slog.Logger
}

// New returns an empty Dispatcher. logger may be nil, in which case
// slog.Default() is used for panic/backpressure diagnostics.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handlers: make(map[string]*handlerPool), logger: logger}
}

// Option configures a handler's registration.
type Option func(*registerConfig)

type registerConfig struct {
	workerCount int
	inboxCap    int
	blockOnFull bool
	stackBytes  int // advisory; see package stacksize
}

// WithWorkerCount sets the number of worker goroutines serving the
// handler's inbox. Default 1.
func WithWorkerCount(n int) Option {
	return func(c *registerConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithInboxCapacity sets the bound on the handler's inbox channel.
// Default 1.
func WithInboxCapacity(n int) Option {
	return func(c *registerConfig) {
		if n > 0 {
			c.inboxCap = n
		}
	}
}

// WithBlockOnFull makes Dispatch block (rather than return
// ErrInboxFull) when the inbox is at capacity — the blocking
// backpressure alternative to answering 503.
func WithBlockOnFull(block bool) Option {
	return func(c *registerConfig) { c.blockOnFull = block }
}

// WithStackBytes records the resolved stack-size advisory (package
// stacksize) for this handler. Go goroutine stacks grow on their own,
// so the value is advisory: it is surfaced in the registration log and
// via StackBytes for operators tuning per-handler memory expectations.
func WithStackBytes(n int) Option {
	return func(c *registerConfig) { c.stackBytes = n }
}

// Register prepares an inbox for name and spawns its workers, each
// running fn. Calling Register twice for the same name replaces the
// prior pool and cancels its workers; requests still queued in the
// prior pool's inbox are not served. Registering a new name leaves
// every other handler's pool untouched.
func (d *Dispatcher) Register(name string, fn HandlerFunc, opts ...Option) {
	cfg := registerConfig{workerCount: 1, inboxCap: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &handlerPool{
		inbox:      make(chan envelope, cfg.inboxCap),
		cancel:     cancel,
		blocking:   cfg.blockOnFull,
		stackBytes: cfg.stackBytes,
	}

	for i := 0; i < cfg.workerCount; i++ {
		pool.workerDone.Add(1)
		go d.runWorker(ctx, name, pool, fn, &pool.workerDone)
	}

	d.mu.Lock()
	if old, exists := d.handlers[name]; exists {
		old.cancel()
	}
	d.handlers[name] = pool
	d.mu.Unlock()

	d.logger.Debug("dispatch: handler registered",
		slog.String("handler", name),
		slog.Int("workers", cfg.workerCount),
		slog.Int("inbox_capacity", cfg.inboxCap),
		slog.Int("stack_bytes", cfg.stackBytes),
	)
}

// StackBytes returns the stack-size advisory recorded for name at
// registration, or 0 if the handler is unknown or none was set.
func (d *Dispatcher) StackBytes(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if pool, ok := d.handlers[name]; ok {
		return pool.stackBytes
	}
	return 0
}

// runWorker reads envelopes from pool.inbox in FIFO order and invokes
// fn for each, recovering any panic into a 500 Response so a worker
// never dies mid-reply.
func (d *Dispatcher) runWorker(ctx context.Context, name string, pool *handlerPool, fn HandlerFunc, done *sync.WaitGroup) {
	defer done.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-pool.inbox:
			if !ok {
				return
			}
			d.serveOne(name, fn, env)
		}
	}
}

func (d *Dispatcher) serveOne(name string, fn HandlerFunc, env envelope) {
	var (
		resp *Response
		err  error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("dispatch: handler panic",
					slog.String("handler", name),
					slog.Any("panic", r),
				)
				resp = &Response{Status: 500, Body: map[string]string{"error": "internal_error"}}
				err = nil
			}
		}()
		resp, err = fn(env.ctx, env.req, env.sink)
	}()

	// Non-blocking send: if the deadline already fired, Dispatch closed
	// the reply channel wait and stopped reading — this discard keeps
	// the worker from leaking; the late reply is simply discarded.
	select {
	case env.reply <- replyMsg{resp: resp, err: err}:
	default:
	}
}

// Dispatch sends req to the worker pool registered for
// req.HandlerName and waits for a reply, honoring ctx's deadline.
// sink is non-nil only for streaming routes.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, sink EventSink) (*Response, error) {
	d.mu.RLock()
	pool, ok := d.handlers[req.HandlerName]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownHandler
	}

	env := envelope{ctx: ctx, req: req, sink: sink, reply: make(chan replyMsg, 1)}

	if pool.blocking {
		select {
		case pool.inbox <- env:
		case <-ctx.Done():
			return nil, ErrDeadlineExceeded
		}
	} else {
		select {
		case pool.inbox <- env:
		default:
			return nil, ErrInboxFull
		}
	}

	select {
	case msg := <-env.reply:
		return msg.resp, msg.err
	case <-ctx.Done():
		return nil, ErrDeadlineExceeded
	}
}

// Shutdown cancels every handler's workers and waits up to grace for
// them to drain in-flight work.
func (d *Dispatcher) Shutdown(grace time.Duration) {
	d.mu.RLock()
	pools := make([]*handlerPool, 0, len(d.handlers))
	for _, p := range d.handlers {
		pools = append(pools, p)
	}
	d.mu.RUnlock()

	for _, p := range pools {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		for _, p := range pools {
			p.workerDone.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
	}
}

// Registered reports whether name has an active worker pool — used by
// the service's readiness check to detect routes naming a handler that
// isn't registered yet (such requests answer 501 until a binary that
// registers the handler is deployed).
func (d *Dispatcher) Registered(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}
