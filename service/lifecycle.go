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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	figure "github.com/common-nighthawk/go-figure"

	"github.com/brrtrouter/brrtrouter/reload"
)

// hooks is the lifecycle registration set: OnStart runs sequentially
// before the listener opens, OnReady fires asynchronously once it has,
// OnShutdown runs LIFO during graceful shutdown, OnStop runs
// best-effort afterward.
type hooks struct {
	mu         sync.Mutex
	onStart    []func(context.Context) error
	onReady    []func()
	onShutdown []func(context.Context)
	onStop     []func()
}

func newHooks() *hooks { return &hooks{} }

// OnStart registers a hook run sequentially before the server starts
// listening; the first error aborts Run.
func (s *Service) OnStart(fn func(context.Context) error) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onStart = append(s.hooks.onStart, fn)
}

// OnReady registers a hook run asynchronously once the server is
// listening.
func (s *Service) OnReady(fn func()) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onReady = append(s.hooks.onReady, fn)
}

// OnShutdown registers a hook run in reverse registration order during
// graceful shutdown, before the listener is closed.
func (s *Service) OnShutdown(fn func(context.Context)) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onShutdown = append(s.hooks.onShutdown, fn)
}

// OnStop registers a best-effort hook run after the server has fully
// stopped.
func (s *Service) OnStop(fn func()) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onStop = append(s.hooks.onStop, fn)
}

func (s *Service) runStartHooks(ctx context.Context) error {
	s.hooks.mu.Lock()
	fns := make([]func(context.Context) error, len(s.hooks.onStart))
	copy(fns, s.hooks.onStart)
	s.hooks.mu.Unlock()
	for i, fn := range fns {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("service: OnStart hook %d failed: %w", i, err)
		}
	}
	return nil
}

func (s *Service) runReadyHooks() {
	s.hooks.mu.Lock()
	fns := make([]func(), len(s.hooks.onReady))
	copy(fns, s.hooks.onReady)
	s.hooks.mu.Unlock()
	for _, fn := range fns {
		go func(fn func()) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("service: OnReady hook panic", slog.Any("panic", r))
				}
			}()
			fn()
		}(fn)
	}
}

func (s *Service) runShutdownHooks(ctx context.Context) {
	s.hooks.mu.Lock()
	fns := make([]func(context.Context), len(s.hooks.onShutdown))
	copy(fns, s.hooks.onShutdown)
	s.hooks.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i](ctx)
	}
}

func (s *Service) runStopHooks() {
	s.hooks.mu.Lock()
	fns := make([]func(), len(s.hooks.onStop))
	copy(fns, s.hooks.onStop)
	s.hooks.mu.Unlock()
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Warn("service: OnStop hook panic", slog.Any("panic", r))
				}
			}()
			fn()
		}()
	}
}

// EnableHotReload starts ctrl (already built around s.RoutePointer())
// and registers its Stop as an OnShutdown hook.
func (s *Service) EnableHotReload(ctrl *reload.Controller) error {
	if err := ctrl.Start(); err != nil {
		return err
	}
	s.reload = ctrl
	s.OnShutdown(func(context.Context) { ctrl.Stop() })
	return nil
}

// serveHealth implements GET /health, with a readiness check folded in
// behind ?ready=1: the liveness branch
// always answers 200 once the process is running, while the readiness
// branch requires every route's handler to be registered with the
// dispatcher and the service to have been explicitly marked ready via
// SetReady.
func (s *Service) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if r.URL.Query().Get("ready") != "1" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}

	if !s.isReady() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	missing := s.missingHandlers()
	if len(missing) > 0 {
		http.Error(w, "handlers not registered: "+strings.Join(missing, ", "), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// missingHandlers lists handler names the route spec declared that the
// dispatcher has no worker pool for yet — the same condition that
// makes a freshly hot-reloaded route 501 until the generator-produced
// binary registers it.
func (s *Service) missingHandlers() []string {
	var missing []string
	for _, name := range s.handlerNames {
		if !s.dispatcher.Registered(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Run starts listening on cfg.HTTP.Addr, prints the startup banner,
// fires OnReady hooks, and blocks until ctx is canceled, at which point
// it drains the dispatcher and performs a graceful net/http shutdown.
func (s *Service) Run(ctx context.Context) error {
	if err := s.runStartHooks(ctx); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:           s.cfg.HTTP.Addr,
		Handler:        s,
		ReadTimeout:    s.cfg.HTTP.ReadTimeout,
		WriteTimeout:   s.cfg.HTTP.WriteTimeout,
		IdleTimeout:    s.cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: s.cfg.HTTP.MaxHeaderBytes,
	}
	s.httpServer.SetKeepAlivesEnabled(s.cfg.HTTP.KeepAlive)

	errCh := make(chan error, 1)
	go func() {
		s.printBanner()
		errCh <- s.httpServer.ListenAndServe()
	}()

	// Give the listener a moment to come up before declaring readiness;
	// a failed bind surfaces on errCh instead.
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-time.After(50 * time.Millisecond):
	}

	s.SetReady(true)
	s.runReadyHooks()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	return s.Shutdown(context.Background())
}

// Shutdown drains the dispatcher and stops the HTTP listener within
// cfg.HTTP.ShutdownTimeout, running OnShutdown then OnStop hooks.
func (s *Service) Shutdown(parent context.Context) error {
	s.SetReady(false)

	timeout := s.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	s.runShutdownHooks(ctx)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	if s.dispatcher != nil {
		s.dispatcher.Shutdown(timeout)
	}

	s.runStopHooks()
	return err
}

// printBanner prints the startup banner: service name rendered with
// go-figure plus the core addresses. No colorized routes table — a
// route set that can change under hot reload has nothing stable to
// print once at startup.
func (s *Service) printBanner() {
	art := figure.NewFigure(s.cfg.Service.Name, "", false)
	for _, line := range art.Slicify() {
		fmt.Println(line)
	}
	fmt.Printf("  version:     %s\n", s.cfg.Service.Version)
	fmt.Printf("  environment: %s\n", s.cfg.Service.Environment)
	fmt.Printf("  address:     http://%s\n", displayAddr(s.cfg.HTTP.Addr))
	if s.recorder != nil {
		fmt.Printf("  metrics:     http://%s%s\n", displayAddr(s.cfg.Metrics.Port), s.cfg.Metrics.Path)
	}
	fmt.Println()
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "0.0.0.0" + addr
	}
	return addr
}
