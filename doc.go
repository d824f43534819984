// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package httppipe provides a robust HTTP client built on a pipeline of
composable policies, within a simple and familiar interface.

Create a Client to begin making requests.

	client := &httppipe.Client{}
	resp, err := client.Get("https://www.example.com")
	...
	resp, err := client.Post("https://www.example.com/upload",
		"application/json", &buf)
	...
	resp, err := client.PostForm("http://example.com/form",
		url.Values{"key": {"Value"}, "id": {"123"}})

Unlike the standard library client, every response is streamed: close
its body, or read it to the end, when done with it.

For control over how the client sends HTTP requests and receives HTTP
responses, wrap a Go standard HTTP client in a transport. Redirects are
handled by the client's redirect policy, so the standard client should
not follow them itself:

	doer := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		..., // See package "net/http" for detailed documentation
	}
	client := &httppipe.Client{
		Transport: &pipeline.HTTPTransport{Doer: doer},
	}

For control over the client's retry decisions and timing, create a
custom retry policy using components from package retry:

	client := &httppipe.Client{
		Retry: retry.NewPolicy(retry.Options{
			Decider: retry.Times(5).And(retry.TransientErr),
			Waiter:  retry.NewExpWaiter(250*time.Millisecond, 5*time.Second, retry.FullJitter),
		}),
	}

For control over the client's individual attempt timeouts, set a custom
timeout policy using package timeout:

	client := &httppipe.Client{
		Timeout: timeout.Fixed(10*time.Second),
	}

To authorize requests with bearer tokens, give the client a credential:

	client := &httppipe.Client{
		Credential: cred,
		Scopes:     []string{"https://example.com/.default"},
	}

To hook into the fine-grained details of the client's request execution
logic, install a handler into the appropriate handler chain:

	handlers := &httppipe.HandlerGroup{}
	handlers.PushBack(httppipe.BeforeAttempt, httppipe.HandlerFunc(
		func(_ httppipe.Event, x *httppipe.Execution) {
			log.Printf("Attempt %d to %s", x.Attempt, x.Request.URL)
		}),
	)
	client := &httppipe.Client{
		Handlers: handlers,
	}

Policies of your own go in the Policies field, or build a pipeline
directly with package pipeline for full control over its layout. Package
config builds a Client from a TOML file.

Package httppipe provides basic interfaces for each method of the
client (Doer, Getter, Header, Poster, FormPoster, and IdleCloser); a
combined interface that composes all the basic methods (Executor); and
utility functions for working with a Doer (Inflate, Get, Head, Post,
and PostForm).
*/
package httppipe
