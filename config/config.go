// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads a TOML description of an httppipe.Client.
//
// A minimal file looks like this:
//
//	[retry]
//	max_retries = 2
//	base_delay = "100ms"
//
//	[timeout]
//	attempt = "2s"
//	escalate = ["10s"]
//
//	[log]
//	level = "debug"
//	format = "console"
//
// Every section is optional. Load fills unset values with defaults,
// and NewClient turns the result into a ready to use client.
package config

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gogama/httppipe"
	"github.com/gogama/httppipe/auth"
	"github.com/gogama/httppipe/cache"
	"github.com/gogama/httppipe/metrics"
	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/redirect"
	"github.com/gogama/httppipe/retry"
	"github.com/gogama/httppipe/timeout"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// configSearchPaths lists paths checked in order when no explicit
// config is given.
var configSearchPaths = []string{
	"/etc/httppipe/config.toml",
	"httppipe.toml",
}

// Defaults applied by setDefaults.
const (
	DefaultBaseDelay  = 50 * time.Millisecond
	DefaultMaxDelay   = 2 * time.Second
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 28
)

// CLI holds the command-line arguments of the httppipe binary, parsed
// by Kong.
type CLI struct {
	Config    string   `kong:"short='c',help='Path to TOML config file.',env='HTTPPIPE_CONFIG'"`
	Method    string   `kong:"short='X',help='Request method. Defaults to GET, or POST when --data is given.'"`
	Data      string   `kong:"short='d',help='Request body. Use @file to read the body from a file.'"`
	Header    []string `kong:"short='H',help='Extra request header as name:value. Repeatable.'"`
	UserAgent string   `kong:"short='A',help='User-Agent (overrides config).'"`
	LogLevel  string   `kong:"help='Log level: debug|info|warn|error (overrides config).',env='HTTPPIPE_LOG_LEVEL'"`
	Include   bool     `kong:"short='i',help='Print the response status line and headers.'"`
	URL       string   `kong:"arg,help='Target URL.'"`
}

// Config is the top-level configuration of a client.
type Config struct {
	Client   ClientConfig   `toml:"client"`
	Retry    RetryConfig    `toml:"retry"`
	Redirect RedirectConfig `toml:"redirect"`
	Auth     AuthConfig     `toml:"auth"`
	Timeout  TimeoutConfig  `toml:"timeout"`
	Rate     RateConfig     `toml:"rate"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string
}

// ClientConfig holds settings applied to every request.
type ClientConfig struct {
	UserAgent string            `toml:"user_agent"`
	Headers   map[string]string `toml:"headers"`
	// MaxConcurrency bounds the goroutines running asynchronous sends.
	// Zero means unbounded.
	MaxConcurrency int64 `toml:"max_concurrency"`
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	// MaxRetries is a pointer so that an explicit 0 can disable
	// retries. Unset means retry.DefaultTimes.
	MaxRetries       *int     `toml:"max_retries"`
	BaseDelay        Duration `toml:"base_delay"`
	MaxDelay         Duration `toml:"max_delay"`
	FixedDelay       Duration `toml:"fixed_delay"`
	StatusCodes      []int    `toml:"status_codes"`
	IgnoreRetryAfter bool     `toml:"ignore_retry_after"`
}

// RedirectConfig configures the redirect policy.
type RedirectConfig struct {
	// MaxHops of -1 disables redirect following.
	MaxHops            int      `toml:"max_hops"`
	LocationHeader     string   `toml:"location_header"`
	StatusCodes        []int    `toml:"status_codes"`
	AllowedMethods     []string `toml:"allowed_methods"`
	StripAuthorization string   `toml:"strip_authorization"`
}

// AuthConfig configures request authorization. At most one of a key
// and a bearer token may be set.
type AuthConfig struct {
	KeyHeader   string   `toml:"key_header"`
	Key         string   `toml:"key"`
	BearerToken string   `toml:"bearer_token"`
	Scopes      []string `toml:"scopes"`
	AllowHTTP   bool     `toml:"allow_http"`
}

// TimeoutConfig configures per-attempt timeouts.
type TimeoutConfig struct {
	Attempt  Duration   `toml:"attempt"`
	Escalate []Duration `toml:"escalate"`
	Infinite bool       `toml:"infinite"`
}

// RateConfig configures client-side rate limiting.
type RateConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled        bool     `toml:"enabled"`
	TTL            Duration `toml:"ttl"`
	MaxTTL         Duration `toml:"max_ttl"`
	MaxBodyBytes   int      `toml:"max_body_bytes"`
	HardMaxSizeMiB int      `toml:"hard_max_size_mib"`
}

// LogConfig holds logging settings. If File is set, logs go to a
// rotated file instead of standard error.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Attempts   bool   `toml:"attempts"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// A Duration is a time.Duration written in TOML as a string such as
// "250ms" or "1m30s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads the TOML config file and applies CLI overrides. When no
// explicit path is given it searches configSearchPaths, and if no
// file is found it uses the defaults.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// Parse decodes a TOML document, validates it and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FilePath returns the file the config was loaded from, if any.
func (c *Config) FilePath() string {
	return c.filePath
}

func (c *Config) applyCLI(cli *CLI) {
	if cli.UserAgent != "" {
		c.Client.UserAgent = cli.UserAgent
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Client.MaxConcurrency < 0 {
		return fmt.Errorf("client.max_concurrency must be non-negative; got %d", c.Client.MaxConcurrency)
	}
	if n := c.Retry.MaxRetries; n != nil && *n < 0 {
		return fmt.Errorf("retry.max_retries must be non-negative; got %d", *n)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 || c.Retry.FixedDelay < 0 {
		return fmt.Errorf("retry delays must be non-negative")
	}
	if c.Retry.BaseDelay > 0 && c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%s) must be at least retry.base_delay (%s)",
			c.Retry.MaxDelay.Std(), c.Retry.BaseDelay.Std())
	}
	if err := validStatusCodes("retry.status_codes", c.Retry.StatusCodes); err != nil {
		return err
	}

	if c.Redirect.MaxHops < -1 {
		return fmt.Errorf("redirect.max_hops must be -1 or more; got %d", c.Redirect.MaxHops)
	}
	if err := validStatusCodes("redirect.status_codes", c.Redirect.StatusCodes); err != nil {
		return err
	}
	switch strings.ToLower(c.Redirect.StripAuthorization) {
	case "", "cross-host", "always":
	default:
		return fmt.Errorf("redirect.strip_authorization must be one of: cross-host, always; got %q", c.Redirect.StripAuthorization)
	}

	if c.Auth.Key != "" && c.Auth.BearerToken != "" {
		return fmt.Errorf("auth.key and auth.bearer_token are mutually exclusive")
	}
	if c.Auth.KeyHeader != "" && c.Auth.Key == "" {
		return fmt.Errorf("auth.key_header is set but auth.key is empty")
	}

	if c.Timeout.Attempt < 0 {
		return fmt.Errorf("timeout.attempt must be non-negative; got %s", c.Timeout.Attempt.Std())
	}
	for _, d := range c.Timeout.Escalate {
		if d <= 0 {
			return fmt.Errorf("timeout.escalate values must be positive; got %s", d.Std())
		}
	}
	if c.Timeout.Infinite && (c.Timeout.Attempt != 0 || len(c.Timeout.Escalate) > 0) {
		return fmt.Errorf("timeout.infinite excludes timeout.attempt and timeout.escalate")
	}

	if c.Rate.RequestsPerSecond < 0 {
		return fmt.Errorf("rate.requests_per_second must be non-negative; got %v", c.Rate.RequestsPerSecond)
	}
	if c.Rate.Burst < 0 {
		return fmt.Errorf("rate.burst must be non-negative; got %d", c.Rate.Burst)
	}

	if c.Cache.TTL < 0 || c.Cache.MaxTTL < 0 || c.Cache.MaxBodyBytes < 0 || c.Cache.HardMaxSizeMiB < 0 {
		return fmt.Errorf("cache values must be non-negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("log.format must be one of: json, console; got %q", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation values must be non-negative")
	}

	return nil
}

func validStatusCodes(name string, codes []int) error {
	for _, code := range codes {
		if code < 100 || code > 999 {
			return fmt.Errorf("%s must hold three-digit status codes; got %d", name, code)
		}
	}
	return nil
}

// setDefaults fills zero-valued fields with defaults. For integer
// fields zero means "unset" because TOML cannot tell an explicit 0
// from an omitted key.
func (c *Config) setDefaults() {
	if c.Retry.MaxRetries == nil {
		n := retry.DefaultTimes
		c.Retry.MaxRetries = &n
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = Duration(DefaultBaseDelay)
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = Duration(DefaultMaxDelay)
		if c.Retry.MaxDelay < c.Retry.BaseDelay {
			c.Retry.MaxDelay = c.Retry.BaseDelay
		}
	}
	if c.Retry.StatusCodes == nil {
		c.Retry.StatusCodes = retry.DefaultStatusCodes
	}
	if c.Auth.Key != "" && c.Auth.KeyHeader == "" {
		c.Auth.KeyHeader = "X-Api-Key"
	}
	if c.Rate.RequestsPerSecond > 0 && c.Rate.Burst == 0 {
		c.Rate.Burst = int(math.Ceil(c.Rate.RequestsPerSecond))
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultMaxAgeDays
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = metrics.DefaultNamespace
	}
}

// findConfig returns the first config path that exists, or empty
// string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// RetryPolicy builds the configured retry policy.
func (c *Config) RetryPolicy() *retry.Policy {
	r := c.Retry
	decider := retry.Times(*r.MaxRetries).And(retry.StatusCode(r.StatusCodes...).Or(retry.RetriableErr))
	var waiter retry.Waiter
	if r.FixedDelay > 0 {
		waiter = retry.NewFixedWaiter(r.FixedDelay.Std())
	} else {
		waiter = retry.NewExpWaiter(r.BaseDelay.Std(), r.MaxDelay.Std(), retry.FullJitter)
	}
	return retry.NewPolicy(retry.Options{
		Decider:          decider,
		Waiter:           waiter,
		IgnoreRetryAfter: r.IgnoreRetryAfter,
	})
}

// RedirectPolicy builds the configured redirect policy.
func (c *Config) RedirectPolicy() *redirect.Policy {
	r := c.Redirect
	opts := redirect.Options{
		MaxHops:        r.MaxHops,
		LocationHeader: r.LocationHeader,
		StatusCodes:    r.StatusCodes,
		AllowedMethods: r.AllowedMethods,
	}
	if strings.EqualFold(r.StripAuthorization, "always") {
		opts.StripAuthorization = redirect.StripAlways
	}
	return redirect.NewPolicy(opts)
}

// TimeoutPolicy builds the configured timeout policy, or nil for the
// client default.
func (c *Config) TimeoutPolicy() timeout.Policy {
	t := c.Timeout
	switch {
	case t.Infinite:
		return timeout.Infinite
	case t.Attempt == 0:
		return nil
	case len(t.Escalate) == 0:
		return timeout.Fixed(t.Attempt.Std())
	}
	after := make([]time.Duration, len(t.Escalate))
	for i, d := range t.Escalate {
		after[i] = d.Std()
	}
	return timeout.Escalating(t.Attempt.Std(), after...)
}

// RateLimiter builds the configured limiter, or nil if rate limiting
// is off.
func (c *Config) RateLimiter() *rate.Limiter {
	if c.Rate.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.Rate.RequestsPerSecond), c.Rate.Burst)
}

// NewClient builds a client from the config. The logger receives one
// entry per attempt if Log.Attempts is set, and reg receives the
// client's metrics if Metrics.Enabled is set. Either may be nil.
//
// The caller should Close the returned client's Cache, if any, when
// done with the client.
func (c *Config) NewClient(logger *zap.Logger, reg prometheus.Registerer) (*httppipe.Client, error) {
	cl := &httppipe.Client{
		Retry:       c.RetryPolicy(),
		Redirect:    c.RedirectPolicy(),
		Timeout:     c.TimeoutPolicy(),
		RateLimiter: c.RateLimiter(),
		UserAgent:   c.Client.UserAgent,
	}

	if c.Client.MaxConcurrency > 0 {
		cl.Scheduler = pipeline.NewBoundedScheduler(c.Client.MaxConcurrency)
	}

	if len(c.Client.Headers) > 0 {
		h := make(http.Header, len(c.Client.Headers))
		for k, v := range c.Client.Headers {
			h.Set(k, v)
		}
		cl.Header = h
	}

	if c.Auth.Key != "" {
		cl.Policies = append(cl.Policies, auth.NewKeyPolicy(c.Auth.KeyHeader, c.Auth.Key))
	}
	if c.Auth.BearerToken != "" {
		cl.Credential = staticCredential(c.Auth.BearerToken)
		cl.Scopes = c.Auth.Scopes
		cl.AllowHTTP = c.Auth.AllowHTTP
	}

	if c.Log.Attempts && logger != nil {
		cl.Logger = logger
	}

	if c.Metrics.Enabled && reg != nil {
		cl.Metrics = metrics.New(metrics.Options{
			Registerer: reg,
			Namespace:  c.Metrics.Namespace,
		})
	}

	if c.Cache.Enabled {
		opts := cache.Options{
			TTL:              c.Cache.TTL.Std(),
			MaxTTL:           c.Cache.MaxTTL.Std(),
			MaxBodySize:      c.Cache.MaxBodyBytes,
			HardMaxCacheSize: c.Cache.HardMaxSizeMiB,
		}
		if cl.Metrics != nil {
			opts.Recorder = cl.Metrics
		}
		p, err := cache.New(opts)
		if err != nil {
			return nil, fmt.Errorf("config: cache: %w", err)
		}
		cl.Cache = p
	}

	return cl, nil
}

// staticCredential hands out the same token, refreshed hourly so the
// token cache never treats it as expired.
func staticCredential(token string) auth.TokenCredential {
	return auth.CredentialFunc(func(_ context.Context, _ auth.TokenRequest) (auth.Token, error) {
		return auth.Token{Token: token, ExpiresOn: time.Now().Add(time.Hour)}, nil
	})
}
