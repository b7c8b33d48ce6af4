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

// Package service implements the HTTP service: it composes the route
// index, security registry, validator cache, dispatcher, and
// middleware chain behind a single http.Handler and runs every
// request through one fixed pipeline — parse, reserved-endpoint
// short-circuit, correlation header, route lookup, security
// enforcement, request validation, middleware before, dispatch,
// response validation, middleware after, write. The correlation header
// is set before route lookup so error responses carry it too.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brrtrouter/brrtrouter/corrid"
	"github.com/brrtrouter/brrtrouter/dispatch"
	"github.com/brrtrouter/brrtrouter/internal/svcerr"
	"github.com/brrtrouter/brrtrouter/middleware"
	"github.com/brrtrouter/brrtrouter/reload"
	"github.com/brrtrouter/brrtrouter/route"
	"github.com/brrtrouter/brrtrouter/security"
	"github.com/brrtrouter/brrtrouter/spec"
	"github.com/brrtrouter/brrtrouter/sse"
	"github.com/brrtrouter/brrtrouter/static"
	"github.com/brrtrouter/brrtrouter/validator"
	"go.opentelemetry.io/otel/trace"
	brrerrors "rivaas.dev/errors"
	"rivaas.dev/metrics"
	"rivaas.dev/tracing"
)

// Built-in endpoints that are always present. serveReserved matches
// them before the route index is consulted, so hot reload can never
// shadow them.
const (
	pathHealth   = "/health"
	pathMetrics  = "/metrics"
	pathOpenAPIY = "/openapi.yaml"
	pathOpenAPIJ = "/openapi.json"
	pathDocs     = "/docs"
)

// Service implements http.Handler over a spec.RouteSpec-built route
// index, re-read on every request through an atomic pointer so a hot
// reload (package reload) never blocks in-flight requests.
type Service struct {
	routes     atomic.Pointer[route.Index]
	dispatcher *dispatch.Dispatcher
	security   *security.Registry
	validators *validator.Cache
	chain      *middleware.Chain
	cfg        *Config
	logger     *slog.Logger
	recorder   *metrics.Recorder
	tracer     *tracing.Tracer
	errFmt     brrerrors.Formatter
	schemas    map[string][]byte
	staticRoot *static.Root
	reload     *reload.Controller

	hooks *hooks

	readyMu sync.RWMutex
	ready   bool

	openapiYAML []byte
	openapiJSON []byte
	docsHTML    []byte

	handlerNames []string

	httpServer *http.Server
}

// New builds a Service from a built route spec and its collaborators.
// disp, sec, and chain must already be fully configured (handlers
// registered, providers registered, middleware ordered) — Service only
// orchestrates them, it does not own their lifecycle beyond Shutdown.
func New(cfg *Config, rs *spec.RouteSpec, disp *dispatch.Dispatcher, sec *security.Registry, chain *middleware.Chain, logger *slog.Logger, recorder *metrics.Recorder, tracer *tracing.Tracer) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if chain == nil {
		chain = middleware.NewChain()
	}

	idx, err := rs.BuildIndex()
	if err != nil {
		return nil, err
	}

	svc := &Service{
		dispatcher:   disp,
		security:     sec,
		validators:   validator.NewCache(),
		chain:        chain,
		cfg:          cfg,
		logger:       logger,
		recorder:     recorder,
		tracer:       tracer,
		errFmt:       svcerr.NewFormatter(svcerr.Format(cfg.ErrorFormat), ""),
		schemas:      rs.Schemas,
		hooks:        newHooks(),
		handlerNames: rs.HandlerNames(),
	}
	svc.routes.Store(idx)

	if cfg.Static.Enabled {
		svc.staticRoot = static.NewRoot(cfg.Static.Dir, cfg.Static.URLPrefix)
		if len(cfg.Static.Templates) > 0 {
			svc.staticRoot.TemplateVars = cfg.Static.Templates
			svc.staticRoot.TemplateExt = map[string]bool{".html": true, ".htm": true}
		}
	}

	return svc, nil
}

// RoutePointer exposes the atomic route index pointer so package
// reload can swap it in place.
func (s *Service) RoutePointer() *atomic.Pointer[route.Index] { return &s.routes }

// SetOpenAPIDocument registers the raw bytes served at
// /openapi.yaml and /openapi.json. Either may be nil if unavailable.
func (s *Service) SetOpenAPIDocument(yamlDoc, jsonDoc []byte) {
	s.openapiYAML = yamlDoc
	s.openapiJSON = jsonDoc
}

// SetDocsHTML overrides the page served at /docs. If never called, a
// minimal embedded page linking to /openapi.json is served instead.
func (s *Service) SetDocsHTML(html []byte) { s.docsHTML = html }

// SetReady flips the readiness gate consulted by GET /health?ready=1.
func (s *Service) SetReady(ready bool) {
	s.readyMu.Lock()
	s.ready = ready
	s.readyMu.Unlock()
}

func (s *Service) isReady() bool {
	s.readyMu.RLock()
	defer s.readyMu.RUnlock()
	return s.ready
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if handled := s.serveReserved(w, r); handled {
		return
	}
	s.serveRoute(w, r)
}

func (s *Service) serveReserved(w http.ResponseWriter, r *http.Request) bool {
	switch r.URL.Path {
	case pathHealth:
		s.serveHealth(w, r)
		return true
	case pathMetrics:
		s.serveMetrics(w, r)
		return true
	case pathOpenAPIY:
		s.serveOpenAPI(w, s.openapiYAML, "application/yaml")
		return true
	case pathOpenAPIJ:
		s.serveOpenAPI(w, s.openapiJSON, "application/json")
		return true
	case pathDocs:
		s.serveDocs(w)
		return true
	}
	if s.staticRoot != nil && strings.HasPrefix(r.URL.Path, s.staticRoot.URLPrefix+"/") {
		s.staticRoot.ServeHTTP(w, r)
		return true
	}
	return false
}

func (s *Service) serveMetrics(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		http.Error(w, "metrics disabled", http.StatusNotFound)
		return
	}
	h, err := s.recorder.Handler()
	if err != nil || h == nil {
		http.Error(w, "metrics unavailable", http.StatusNotFound)
		return
	}
	h.ServeHTTP(w, r)
}

func (s *Service) serveOpenAPI(w http.ResponseWriter, doc []byte, contentType string) {
	if doc == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(doc)
}

func (s *Service) serveDocs(w http.ResponseWriter) {
	if s.docsHTML != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(s.docsHTML)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, defaultDocsHTML)
}

const defaultDocsHTML = `<!DOCTYPE html>
<html><head><title>API Docs</title></head>
<body><h1>API</h1><p>See <a href="/openapi.json">/openapi.json</a>.</p></body>
</html>`

// serveRoute runs the full matched-route pipeline.
func (s *Service) serveRoute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := corrid.FromRequest(r)
	w.Header().Set(corrid.Header, id)
	ctx := corrid.WithContext(r.Context(), id)

	status := http.StatusInternalServerError
	routePattern := r.URL.Path
	if s.recorder != nil {
		if rm := s.recorder.BeginRequest(ctx); rm != nil {
			defer func() { s.recorder.Finish(ctx, rm, status, 0, routePattern) }()
		}
	}

	idx := s.routes.Load()
	match, err := idx.Lookup(r.Method, r.URL.Path)
	if err != nil {
		status = s.writeError(ctx, w, r, err)
		return
	}
	meta := match.Route
	routePattern = meta.Path

	if s.tracer != nil && s.tracer.IsEnabled() {
		var span trace.Span
		ctx, span = s.tracer.StartRequestSpan(ctx, r, meta.Path, false)
		defer func() { s.tracer.FinishRequestSpan(span, status) }()
	}

	if err := s.security.Enforce(ctx, toSecurityAlternatives(meta.Security), requestView{r}); err != nil {
		if s.recorder != nil {
			s.recorder.IncrementCounter(ctx, "auth_failures_total")
		}
		status = s.writeError(ctx, w, r, err)
		return
	}

	body, err := decodeBody(w, r, s.cfg.HTTP.MaxRequestSizeBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = s.writeError(ctx, w, r, tooLarge)
			return
		}
		status = s.writeError(ctx, w, r, &validator.ValidationError{Fields: []validator.FieldError{
			{Field: "", Message: err.Error(), Constraint: "invalid_json"},
		}})
		return
	}
	if meta.RequestBodySchema != "" {
		level := validator.Level(s.cfg.Validation)
		if schemaJSON, ok := s.schemas[meta.RequestBodySchema]; ok {
			if verr := s.validators.Validate(level, meta.RequestBodySchema, schemaJSON, body); verr != nil {
				if level == validator.LevelStrict {
					status = s.writeError(ctx, w, r, verr)
					return
				}
				s.logger.Warn("request validation failed", slog.String("path", meta.Path), slog.Any("error", verr))
			}
		}
	}

	req := &dispatch.Request{
		Method:        r.Method,
		Path:          meta.Path,
		HandlerName:   meta.HandlerName,
		PathParams:    match.Params,
		QueryParams:   map[string][]string(r.URL.Query()),
		Headers:       map[string][]string(r.Header),
		Cookies:       cookieMap(r),
		Body:          body,
		CorrelationID: id,
	}

	resp, mwErr := s.chain.RunBefore(ctx, req)
	if mwErr != nil {
		status = s.writeError(ctx, w, r, mwErr)
		return
	}

	if resp == nil {
		var sink dispatch.EventSink
		if meta.Streaming {
			sseSink, sErr := sse.NewSink(ctx, w)
			if sErr != nil {
				status = s.writeError(ctx, w, r, sErr)
				return
			}
			sink = sseSink
		}

		deadline := s.cfg.Dispatcher.RequestDeadline
		dctx := ctx
		var cancel context.CancelFunc
		if deadline > 0 {
			dctx, cancel = context.WithTimeout(ctx, deadline)
			defer cancel()
		}

		resp, err = s.dispatcher.Dispatch(dctx, req, sink)
		if err != nil {
			if meta.Streaming {
				// headers are already committed once the SSE sink was
				// opened; nothing left to do but log.
				s.logger.Error("streaming dispatch failed", slog.String("handler", meta.HandlerName), slog.Any("error", err))
				return
			}
			status = s.writeError(ctx, w, r, err)
			return
		}
		if meta.Streaming {
			status = http.StatusOK
			return
		}
	}

	if resp != nil && s.cfg.Validation != string(validator.LevelOff) {
		if schemaPointer, ok := meta.Responses[resp.Status]; ok {
			if schemaJSON, ok := s.schemas[schemaPointer]; ok {
				level := validator.Level(s.cfg.Validation)
				if verr := s.validators.Validate(level, schemaPointer, schemaJSON, resp.Body); verr != nil {
					s.logger.Error("response validation failed",
						slog.String("path", meta.Path), slog.Int("status", resp.Status), slog.Any("error", verr))
					if level == validator.LevelStrict {
						status = s.writeError(ctx, w, r, errors.New("service: response failed schema validation"))
						return
					}
				}
			}
		}
	}

	s.chain.RunAfter(ctx, req, resp, time.Since(start))
	s.writeResponse(w, resp)

	status = http.StatusNoContent
	if resp != nil {
		status = resp.Status
	}
}

func (s *Service) writeResponse(w http.ResponseWriter, resp *dispatch.Response) {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}

	switch body := resp.Body.(type) {
	case nil:
		w.WriteHeader(resp.Status)
	case []byte:
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(body)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(data)
	}
}

func (s *Service) writeError(_ context.Context, w http.ResponseWriter, r *http.Request, err error) int {
	if mna, ok := err.(*route.ErrMethodNotAllowed); ok {
		w.Header().Set("Allow", strings.Join(mna.Allowed, ", "))
	}
	resp := s.errFmt.Format(r, err)
	for k, vals := range resp.Headers {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
	return resp.Status
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64) (any, error) {
	if r.ContentLength == 0 || (r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch) {
		return nil, nil
	}
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, body, maxBytes)
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// toSecurityAlternatives adapts route.Meta's security shape to the
// security package's, two distinct named types describing the same
// OR-of-ANDs structure so package route has no dependency on package
// security.
func toSecurityAlternatives(alts []route.SecurityAlternative) []security.Alternative {
	if alts == nil {
		return nil
	}
	out := make([]security.Alternative, len(alts))
	for i, alt := range alts {
		reqs := make(security.Alternative, len(alt))
		for j, r := range alt {
			reqs[j] = security.Requirement{SchemeName: r.SchemeName, RequiredScopes: r.RequiredScopes}
		}
		out[i] = reqs
	}
	return out
}

func cookieMap(r *http.Request) map[string]string {
	cookies := r.Cookies()
	if len(cookies) == 0 {
		return nil
	}
	m := make(map[string]string, len(cookies))
	for _, c := range cookies {
		m[c.Name] = c.Value
	}
	return m
}
