// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command httppipe sends one HTTP request through an httppipe.Client
// configured from a TOML file, and prints the response body.
//
//	httppipe [--config f.toml] [-X METHOD] [-d data] [-H name:value]... URL
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/gogama/httppipe"
	"github.com/gogama/httppipe/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("httppipe"),
		kong.Description("Send an HTTP request with retries, redirects and authorization."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.NopLogger,
		fx.Provide(
			func() *config.CLI { return &cli },
			func() io.Writer { return os.Stdout },
			config.Load,
			newLogger,
			newRegistry,
			newClient,
		),
		fx.Invoke(warnConfigPermissions, runRequest),
	).Run()
}

func newRegistry() prometheus.Registerer {
	return prometheus.NewRegistry()
}

func newClient(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*httppipe.Client, error) {
	cl, err := cfg.NewClient(logger, reg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			cl.CloseIdleConnections()
			if cl.Cache != nil {
				return cl.Cache.Close()
			}
			return nil
		},
	})
	return cl, nil
}

func warnConfigPermissions(cfg *config.Config, logger *zap.Logger) {
	path := cfg.FilePath()
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 && (cfg.Auth.Key != "" || cfg.Auth.BearerToken != "") {
		logger.Warn("config file holding credentials is readable by group/others; consider chmod 600",
			zap.String("path", path),
			zap.String("mode", fmt.Sprintf("%04o", perm)),
		)
	}
}

// runRequest sends the request once the application has started, then
// shuts the application down with an exit code reflecting the outcome.
func runRequest(lc fx.Lifecycle, sd fx.Shutdowner, cli *config.CLI, cl *httppipe.Client, logger *zap.Logger, w io.Writer) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			call, err := buildCall(ctx, cli)
			if err != nil {
				return err
			}
			go func() {
				defer close(done)
				code := 0
				if err := send(cl, call, cli.Include, w); err != nil {
					logger.Error("request failed", zap.Error(err))
					code = 1
				}
				_ = sd.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
