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

// Package reload implements the hot-reload controller: a background
// watcher on the spec artifact that rebuilds route metadata and
// atomically swaps the active route.Index, never exposing a
// partially-built index.
package reload

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/brrtrouter/brrtrouter/route"
)

// Builder produces a fresh route.Index from the current contents of
// the watched spec file. The OpenAPI parser that implements Builder is
// an external collaborator out of scope for this module.
type Builder func(specPath string) (*route.Index, error)

// Controller watches specPath and, on change, calls Builder to rebuild
// the route index and atomically swaps Current. Controller never
// exposes a partially built index: on a Builder error, the prior index
// is retained and the error is logged.
type Controller struct {
	specPath string
	build    Builder
	debounce time.Duration
	logger   *slog.Logger

	current *atomic.Pointer[route.Index]

	watcher *fsnotify.Watcher
	done    chan struct{}

	// onReload, if set, is called after every successful swap with the
	// new index's route count.
	onReload func(routeCount int)
}

// New builds a Controller around current (typically the same pointer
// service.Service serves reads from). debounce coalesces rapid
// successive file events into one rebuild (default 250ms if zero).
func New(specPath string, build Builder, current *atomic.Pointer[route.Index], debounce time.Duration, logger *slog.Logger) *Controller {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		specPath: specPath,
		build:    build,
		debounce: debounce,
		logger:   logger,
		current:  current,
	}
}

// OnReload registers a callback invoked after every successful reload.
func (c *Controller) OnReload(fn func(routeCount int)) { c.onReload = fn }

// Start begins watching specPath. The watch and debounce loop run in a
// background goroutine; Start returns once the watcher is established.
func (c *Controller) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(c.specPath); err != nil {
		_ = watcher.Close()
		return err
	}

	c.watcher = watcher
	c.done = make(chan struct{})
	go c.loop()
	return nil
}

// Stop stops the watcher. In-flight requests holding an already-read
// snapshot of the route index are unaffected.
func (c *Controller) Stop() {
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
	if c.done != nil {
		close(c.done)
	}
}

func (c *Controller) loop() {
	var timer *time.Timer
	for {
		select {
		case <-c.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(c.debounce, c.reload)
			} else {
				timer.Reset(c.debounce)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("reload: watcher error", slog.Any("error", err))
		}
	}
}

// reload rebuilds the index and swaps it in on success. It is safe to
// call directly (e.g. from tests) without a running watcher.
func (c *Controller) reload() {
	idx, err := c.build(c.specPath)
	if err != nil {
		c.logger.Error("reload: spec rebuild failed, keeping prior index",
			slog.String("path", c.specPath), slog.Any("error", err))
		return
	}

	c.current.Store(idx)

	count := idx.RouteCount()
	c.logger.Info("reload: route index swapped", slog.Int("routes", count))
	if c.onReload != nil {
		c.onReload(count)
	}
}
