// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gogama/httppipe"
	"github.com/gogama/httppipe/config"
	"github.com/gogama/httppipe/request"
)

const formContentType = "application/x-www-form-urlencoded"

// buildCall turns the command line into a call bound to ctx.
func buildCall(ctx context.Context, cli *config.CLI) (*request.Call, error) {
	if cli.URL == "" {
		return nil, fmt.Errorf("httppipe: missing URL")
	}

	var body interface{}
	if cli.Data != "" {
		if strings.HasPrefix(cli.Data, "@") {
			b, err := os.ReadFile(cli.Data[1:])
			if err != nil {
				return nil, fmt.Errorf("httppipe: read body: %w", err)
			}
			body = b
		} else {
			body = cli.Data
		}
	}

	method := strings.ToUpper(cli.Method)
	if method == "" {
		method = "GET"
		if body != nil {
			method = "POST"
		}
	}

	req, err := request.NewRequest(method, cli.URL, body)
	if err != nil {
		return nil, err
	}
	for _, kv := range cli.Header {
		name, value, ok := strings.Cut(kv, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("httppipe: header %q is not name:value", kv)
		}
		req.Header.Add(name, strings.TrimSpace(value))
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", formContentType)
	}

	return request.NewCall(ctx, req), nil
}

// send executes the call and copies the response to w, preceded by the
// status line and headers if include is set.
func send(cl *httppipe.Client, call *request.Call, include bool, w io.Writer) error {
	resp, err := cl.Do(call)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Close() }()

	if include {
		if err := writeHead(w, resp); err != nil {
			return err
		}
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func writeHead(w io.Writer, resp *request.Response) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\n", resp.StatusCode)
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range resp.Header[name] {
			fmt.Fprintf(&sb, "%s: %s\n", name, v)
		}
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}
