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

// Command brrtrouter is the composition root: it loads configuration,
// builds the security registry, dispatcher, middleware chain, and
// metrics recorder, and runs the HTTP service until interrupted.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brrtrouter/brrtrouter/dispatch"
	"github.com/brrtrouter/brrtrouter/middleware"
	"github.com/brrtrouter/brrtrouter/reload"
	"github.com/brrtrouter/brrtrouter/route"
	"github.com/brrtrouter/brrtrouter/security"
	"github.com/brrtrouter/brrtrouter/service"
	"rivaas.dev/config"
	"rivaas.dev/logging"
	"rivaas.dev/metrics"
	"rivaas.dev/tracing"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("brrtrouter: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg, err := logging.New(
		logging.WithServiceName(cfg.Service.Name),
		logging.WithServiceVersion(cfg.Service.Version),
		logging.WithEnvironment(cfg.Service.Environment),
		logging.WithConsoleHandler(),
	)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	logger := logCfg.Logger()

	sec, err := buildSecurity(cfg.Security)
	if err != nil {
		return fmt.Errorf("building security registry: %w", err)
	}

	disp := dispatch.New(logger)
	rs := demoRouteSpec()
	registerDemoHandlers(disp, rs, cfg.Dispatcher)

	chain := buildChain(cfg)

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder, err = metrics.New(
			metrics.WithServiceName(cfg.Service.Name),
			metrics.WithServiceVersion(cfg.Service.Version),
			metrics.WithPrometheus(cfg.Metrics.Port, cfg.Metrics.Path),
		)
		if err != nil {
			return fmt.Errorf("building metrics recorder: %w", err)
		}
	}

	var tracer *tracing.Tracer
	if cfg.Tracing.Enabled {
		tracingOpts := []tracing.Option{
			tracing.WithServiceName(cfg.Service.Name),
			tracing.WithServiceVersion(cfg.Service.Version),
			tracing.WithLogger(logger),
		}
		switch cfg.Tracing.Provider {
		case "otlp":
			tracingOpts = append(tracingOpts, tracing.WithOTLP(cfg.Tracing.Endpoint))
		case "otlphttp":
			tracingOpts = append(tracingOpts, tracing.WithOTLPHTTP(cfg.Tracing.Endpoint))
		case "noop":
			tracingOpts = append(tracingOpts, tracing.WithNoop())
		default:
			tracingOpts = append(tracingOpts, tracing.WithStdout())
		}
		tracer, err = tracing.New(tracingOpts...)
		if err != nil {
			return fmt.Errorf("building tracer: %w", err)
		}
	}

	svc, err := service.New(cfg, rs, disp, sec, chain, logger, recorder, tracer)
	if err != nil {
		return fmt.Errorf("building service: %w", err)
	}

	if cfg.HotReload.Enabled {
		ctrl := reload.New(cfg.HotReload.SpecPath, func(string) (*route.Index, error) {
			return rs.BuildIndex()
		}, svc.RoutePointer(), cfg.HotReload.Debounce, logger)
		ctrl.OnReload(func(n int) {
			logger.Info("route index reloaded", slog.Int("routes", n))
		})
		if err := svc.EnableHotReload(ctrl); err != nil {
			return fmt.Errorf("starting hot reload: %w", err)
		}
	}

	svc.OnStart(func(context.Context) error {
		logger.Info("starting brrtrouter", slog.String("addr", cfg.HTTP.Addr))
		return nil
	})
	svc.OnShutdown(func(shutdownCtx context.Context) {
		logger.Info("shutting down brrtrouter")
		if tracer != nil {
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Error("tracer shutdown failed", slog.Any("error", err))
			}
		}
	})

	return svc.Run(ctx)
}

// loadConfig binds file (if BRRTROUTER_CONFIG is set) and environment
// sources into a service.Config, applying struct-tag defaults for
// anything neither source sets.
func loadConfig(ctx context.Context) (*service.Config, error) {
	var cfg service.Config

	opts := []config.Option{config.WithEnv("BRRTROUTER"), config.WithBinding(&cfg)}
	if path := os.Getenv("BRRTROUTER_CONFIG"); path != "" {
		opts = append([]config.Option{config.WithFile(path)}, opts...)
	}

	loader, err := config.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildSecurity constructs and registers every provider named in cfg,
// keyed by SchemeName. OAuth2 entries are resolved after the bearer and
// JWKS entries since they delegate to an already-registered one.
func buildSecurity(cfg service.SecurityConfig) (*security.Registry, error) {
	reg := security.NewRegistry()

	for _, ak := range cfg.APIKeys {
		reg.Register(ak.SchemeName, security.NewAPIKey(security.ParamLocation(ak.Location), ak.Name, ak.Keys...))
	}

	bearers := make(map[string]*security.BearerSharedSecret, len(cfg.Bearer))
	for _, b := range cfg.Bearer {
		p := security.NewBearerSharedSecret([]byte(b.Secret), b.CookieName, b.Leeway)
		bearers[b.SchemeName] = p
		reg.Register(b.SchemeName, p)
	}

	jwksProviders := make(map[string]*security.JWKSBearer, len(cfg.JWKS))
	for _, j := range cfg.JWKS {
		p := security.NewJWKSBearer(j.JWKSURL, j.Issuer, j.Audience, j.Leeway, j.CacheTTL, j.HardTTL)
		jwksProviders[j.SchemeName] = p
		reg.Register(j.SchemeName, p)
	}

	for _, o := range cfg.OAuth2 {
		switch {
		case o.BearerScheme != "":
			delegate, ok := bearers[o.BearerScheme]
			if !ok {
				return nil, fmt.Errorf("security: oauth2 scheme %q references unknown bearer scheme %q", o.SchemeName, o.BearerScheme)
			}
			reg.Register(o.SchemeName, security.NewOAuth2Shared(delegate))
		case o.JWKSScheme != "":
			delegate, ok := jwksProviders[o.JWKSScheme]
			if !ok {
				return nil, fmt.Errorf("security: oauth2 scheme %q references unknown jwks scheme %q", o.SchemeName, o.JWKSScheme)
			}
			reg.Register(o.SchemeName, security.NewOAuth2JWKS(delegate))
		default:
			return nil, fmt.Errorf("security: oauth2 scheme %q names neither a bearer nor jwks delegate", o.SchemeName)
		}
	}

	for _, rak := range cfg.RemoteAPIKeys {
		reg.Register(rak.SchemeName, security.NewRemoteAPIKey(
			security.ParamLocation(rak.Location), rak.Name, rak.VerifyURL, rak.HeaderName, rak.Timeout, rak.CacheTTL))
	}

	return reg, nil
}

// buildChain assembles the before/after middleware chain from cfg.
func buildChain(cfg *service.Config) *middleware.Chain {
	var items []middleware.Middleware

	if cfg.HTTP.CORS.Enabled {
		corsOpts := []middleware.CORSOption{
			middleware.WithAllowedMethods(cfg.HTTP.CORS.AllowedMethods),
			middleware.WithAllowedHeaders(cfg.HTTP.CORS.AllowedHeaders),
			middleware.WithExposedHeaders(cfg.HTTP.CORS.ExposedHeaders),
			middleware.WithAllowCredentials(cfg.HTTP.CORS.AllowCredentials),
			middleware.WithMaxAge(cfg.HTTP.CORS.MaxAgeSeconds),
		}
		if cfg.HTTP.CORS.AllowAllOrigins {
			corsOpts = append(corsOpts, middleware.WithAllowAllOrigins(true))
		} else {
			corsOpts = append(corsOpts, middleware.WithAllowedOrigins(cfg.HTTP.CORS.AllowedOrigins))
		}
		items = append(items, middleware.NewCORS(corsOpts...))
	}

	if cfg.HTTP.Compression {
		items = append(items, middleware.NewCompression())
	}

	return middleware.NewChain(items...)
}
