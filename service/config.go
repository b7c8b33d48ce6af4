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

import "time"

// Config is the domain-specific configuration shape. Pass a *Config
// to config.WithBinding before
// calling Load so the generic engine decodes file/env/consul sources
// straight into these fields.
type Config struct {
	HTTP        HTTPConfig       `config:"http"`
	Dispatcher  DispatcherConfig `config:"dispatcher"`
	Validation  string           `config:"validation" default:"strict"`
	ErrorFormat string           `config:"error_format" default:"simple"`
	Static      StaticConfig     `config:"static"`
	HotReload   HotReloadConfig  `config:"hot_reload"`
	Security    SecurityConfig   `config:"security"`
	Logging     LoggingConfig    `config:"logging"`
	Metrics     MetricsConfig    `config:"metrics"`
	Tracing     TracingConfig    `config:"tracing"`
	Service     ServiceIdentity  `config:"service"`
}

// ServiceIdentity names the running service for logging, metrics, and
// the startup banner.
type ServiceIdentity struct {
	Name        string `config:"name" default:"brrtrouter"`
	Version     string `config:"version" default:"0.0.0"`
	Environment string `config:"environment" default:"development"`
}

// HTTPConfig controls the outer net/http server.
type HTTPConfig struct {
	Addr            string        `config:"addr" default:":8080"`
	KeepAlive       bool          `config:"keep_alive" default:"true"`
	ReadTimeout     time.Duration `config:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `config:"write_timeout" default:"60s"`
	IdleTimeout     time.Duration `config:"idle_timeout" default:"120s"`
	ShutdownTimeout time.Duration `config:"shutdown_timeout" default:"10s"`
	// MaxHeaderBytes bounds total request header size; net/http answers
	// 431 when exceeded. Go's server has no header-count limit, so the
	// byte bound is what this key controls.
	MaxHeaderBytes      int        `config:"max_request_headers"`
	MaxRequestSizeBytes int64      `config:"max_request_size_bytes"`
	CORS                CORSConfig `config:"cors"`
	Compression         bool       `config:"compression" default:"true"`
}

// CORSConfig configures the CORS middleware (package middleware).
type CORSConfig struct {
	Enabled          bool     `config:"enabled"`
	AllowedOrigins   []string `config:"allowed_origins"`
	AllowAllOrigins  bool     `config:"allow_all_origins"`
	AllowedMethods   []string `config:"allowed_methods"`
	AllowedHeaders   []string `config:"allowed_headers"`
	ExposedHeaders   []string `config:"exposed_headers"`
	AllowCredentials bool     `config:"allow_credentials"`
	MaxAgeSeconds    int      `config:"max_age_seconds" default:"3600"`
}

// DispatcherConfig controls the default worker pool shape
// (`dispatcher.*` keys); per-handler overrides come from route.Meta
// instead.
type DispatcherConfig struct {
	DefaultWorkerCount  int           `config:"default_worker_count" default:"1"`
	DefaultInboxCap     int           `config:"default_inbox_capacity" default:"1"`
	BlockOnFull         bool          `config:"block_on_full"`
	RequestDeadline     time.Duration `config:"request_deadline" default:"30s"`
	ShutdownGracePeriod time.Duration `config:"shutdown_grace_period" default:"10s"`
}

// StaticConfig controls the read-only static file surface (`static.*`
// keys).
type StaticConfig struct {
	Enabled   bool              `config:"enabled"`
	Dir       string            `config:"dir"`
	URLPrefix string            `config:"url_prefix" default:"/static"`
	Templates map[string]string `config:"templates"`
}

// HotReloadConfig controls the fsnotify-driven reload controller
// (`hot_reload.*` keys).
type HotReloadConfig struct {
	Enabled  bool          `config:"enabled"`
	SpecPath string        `config:"spec_path"`
	Debounce time.Duration `config:"debounce" default:"250ms"`
}

// SecurityConfig groups the provider-specific settings (`security.*`
// keys). Each field is nil/zero-valued unless the scheme is
// configured; package main (or a bootstrap package) decides which
// providers to construct and register.
type SecurityConfig struct {
	APIKeys       []APIKeyConfig       `config:"api_keys"`
	Bearer        []BearerConfig       `config:"bearer"`
	JWKS          []JWKSConfig         `config:"jwks"`
	OAuth2        []OAuth2Config       `config:"oauth2"`
	RemoteAPIKeys []RemoteAPIKeyConfig `config:"remote_api_keys"`
}

// APIKeyConfig configures one security.APIKey provider.
type APIKeyConfig struct {
	SchemeName string   `config:"scheme_name"`
	Location   string   `config:"location" default:"header"`
	Name       string   `config:"name" default:"X-API-Key"`
	Keys       []string `config:"keys"`
}

// BearerConfig configures one security.BearerSharedSecret provider.
type BearerConfig struct {
	SchemeName string        `config:"scheme_name"`
	Secret     string        `config:"secret"`
	CookieName string        `config:"cookie_name"`
	Leeway     time.Duration `config:"leeway" default:"5s"`
}

// JWKSConfig configures one security.JWKSBearer provider.
type JWKSConfig struct {
	SchemeName string        `config:"scheme_name"`
	JWKSURL    string        `config:"jwks_url"`
	Issuer     string        `config:"issuer"`
	Audience   string        `config:"audience"`
	Leeway     time.Duration `config:"leeway" default:"5s"`
	CacheTTL   time.Duration `config:"cache_ttl" default:"5m"`
	HardTTL    time.Duration `config:"hard_ttl" default:"30m"`
}

// OAuth2Config configures one security.OAuth2 provider, delegating to
// either a shared-secret or JWKS verifier by name.
type OAuth2Config struct {
	SchemeName   string `config:"scheme_name"`
	BearerScheme string `config:"bearer_scheme"`
	JWKSScheme   string `config:"jwks_scheme"`
}

// RemoteAPIKeyConfig configures one security.RemoteAPIKey provider.
type RemoteAPIKeyConfig struct {
	SchemeName string        `config:"scheme_name"`
	Location   string        `config:"location" default:"header"`
	Name       string        `config:"name" default:"X-API-Key"`
	VerifyURL  string        `config:"verify_url"`
	HeaderName string        `config:"header_name" default:"X-API-Key"`
	Timeout    time.Duration `config:"timeout" default:"2s"`
	CacheTTL   time.Duration `config:"cache_ttl" default:"30s"`
}

// LoggingConfig mirrors logging.Config's common knobs.
type LoggingConfig struct {
	Level   string `config:"level" default:"info"`
	Handler string `config:"handler" default:"json"`
}

// MetricsConfig mirrors metrics.Recorder's common knobs.
type MetricsConfig struct {
	Enabled  bool   `config:"enabled" default:"true"`
	Provider string `config:"provider" default:"prometheus"`
	Port     string `config:"port" default:":9090"`
	Path     string `config:"path" default:"/metrics"`
}

// TracingConfig mirrors tracing's common knobs.
type TracingConfig struct {
	Enabled  bool   `config:"enabled"`
	Provider string `config:"provider" default:"stdout"`
	Endpoint string `config:"endpoint"`
}
