// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httppipe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/gogama/httppipe/auth"
	"github.com/gogama/httppipe/cache"
	"github.com/gogama/httppipe/headers"
	"github.com/gogama/httppipe/internal/pipetest"
	"github.com/gogama/httppipe/metrics"
	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
	"github.com/gogama/httppipe/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClient(t *testing.T) {
	t.Run("happy path", testClientHappyPath)
	t.Run("zero value", testClientZeroValue)
	t.Run("headers", testClientHeaders)
	t.Run("retry", testClientRetry)
	t.Run("error", testClientError)
	t.Run("credential", testClientCredential)
	t.Run("attempt errors", testClientAttemptErrors)
	t.Run("cache", testClientCache)
	t.Run("policies", testClientPolicies)
	t.Run("observability", testClientObservability)
	t.Run("async", testClientAsync)
	t.Run("close idle connections", testClientCloseIdleConnections)
}

func TestURLErrorOp(t *testing.T) {
	assert.Equal(t, "Get", urlErrorOp(""))
	assert.Equal(t, "Get", urlErrorOp("GET"))
	assert.Equal(t, "G", urlErrorOp("G"))
	assert.Equal(t, "X", urlErrorOp("X"))
	assert.Equal(t, "Xyz", urlErrorOp("XYZ"))
	assert.Equal(t, "Put", urlErrorOp("PUT"))
}

func testClientHappyPath(t *testing.T) {
	testCases := []struct {
		name   string
		method string
		body   string
		fn     func(cl *Client, u string) (*request.Response, error)
	}{
		{"Get", "GET", "", func(cl *Client, u string) (*request.Response, error) {
			return cl.Get(u)
		}},
		{"Head", "HEAD", "", func(cl *Client, u string) (*request.Response, error) {
			return cl.Head(u)
		}},
		{"Post", "POST", "ham", func(cl *Client, u string) (*request.Response, error) {
			return cl.Post(u, "text/plain", "ham")
		}},
		{"PostForm", "POST", "a=1", func(cl *Client, u string) (*request.Response, error) {
			return cl.PostForm(u, url.Values{"a": []string{"1"}})
		}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			trans := pipetest.NewTransport(t)
			trans.On("Send", mock.Anything).Return(pipetest.Status(200), nil).Once()
			cl := &Client{Transport: trans}

			resp, err := testCase.fn(cl, "http://example.com/path")

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, 200, resp.StatusCode)
			b, err := resp.ReadAll()
			require.NoError(t, err)
			assert.Equal(t, "status 200", string(b))
			sent := trans.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, testCase.method, sent[0].Method)
			assert.Equal(t, "http://example.com/path", sent[0].URL)
			assert.Equal(t, testCase.body, string(sent[0].Body))
			trans.AssertExpectations(t)
			trans.AssertReleased(t, nil)
		})
	}
}

func testClientZeroValue(t *testing.T) {
	cl := &Client{}
	i := &serverInstruction{StatusCode: 200, Body: []bodyChunk{{Data: []byte("ok")}}}
	resp, err := cl.Do(i.toCall(context.Background(), "POST", httpServer))
	require.NoError(t, err)
	b, err := resp.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ok", string(b))
	assert.Same(t, cl.Pipeline(), cl.Pipeline())
}

func testClientHeaders(t *testing.T) {
	trans := pipetest.NewTransport(t)
	trans.On("Send", mock.Anything).Return(pipetest.Status(503), nil).Once()
	trans.On("Send", mock.Anything).Return(pipetest.Status(200), nil).Once()
	cl := &Client{
		Transport: trans,
		UserAgent: "httppipe-test/1.0",
		Retry:     retry.NewPolicy(retry.Options{Waiter: retry.NewFixedWaiter(time.Millisecond)}),
	}

	resp, err := cl.Get("http://example.com/")

	require.NoError(t, err)
	require.NoError(t, resp.Close())
	sent := trans.Sent()
	require.Len(t, sent, 2)
	id := sent[0].Header.Get(headers.DefaultRequestIDHeader)
	assert.NotEmpty(t, id)
	for _, s := range sent {
		assert.Equal(t, "httppipe-test/1.0", s.Header.Get("User-Agent"))
		assert.Equal(t, id, s.Header.Get(headers.DefaultRequestIDHeader))
	}
}

func testClientRetry(t *testing.T) {
	trans := pipetest.NewTransport(t)
	trans.On("Send", mock.Anything).Return(pipetest.Status(503), nil).Once()
	trans.On("Send", mock.Anything).Return(pipetest.Status(500), nil).Once()
	trans.On("Send", mock.Anything).Return(pipetest.Status(200), nil).Once()
	var evts []string
	g := &HandlerGroup{}
	for _, evt := range Events() {
		g.PushBack(evt, HandlerFunc(func(evt Event, x *Execution) {
			evts = append(evts, fmt.Sprintf("%s:%d:%d", evt, x.Attempt, x.StatusCode()))
		}))
	}
	var final *Execution
	g.PushBack(AfterExecutionEnd, HandlerFunc(func(_ Event, x *Execution) {
		final = x
	}))
	cl := &Client{
		Transport: trans,
		Retry:     retry.NewPolicy(retry.Options{Waiter: retry.NewFixedWaiter(time.Millisecond)}),
		Handlers:  g,
	}

	resp, err := cl.Get("http://example.com/")

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []string{
		"BeforeExecutionStart:0:0",
		"BeforeAttempt:0:0",
		"AfterAttempt:0:503",
		"BeforeAttempt:1:0",
		"AfterAttempt:1:500",
		"BeforeAttempt:2:0",
		"AfterAttempt:2:200",
		"AfterExecutionEnd:2:200",
	}, evts)
	require.NotNil(t, final)
	assert.Same(t, resp, final.Response)
	assert.NoError(t, final.Err)
	assert.False(t, final.End.Before(final.Start))
	trans.AssertReleased(t, resp)
	require.NoError(t, resp.Close())
}

func testClientError(t *testing.T) {
	errBoom := errors.New("boom")
	trans := pipetest.NewTransport(t)
	trans.On("Send", mock.Anything).Return(nil, errBoom).Once()
	var endErr error
	g := &HandlerGroup{}
	g.PushBack(AfterExecutionEnd, HandlerFunc(func(_ Event, x *Execution) {
		endErr = x.Err
	}))
	cl := &Client{
		Transport: trans,
		Retry:     retry.NewPolicy(retry.Options{Decider: retry.Never}),
		Handlers:  g,
	}

	resp, err := cl.Post("http://example.com/widgets", "text/plain", "w")

	assert.Nil(t, resp)
	var ue *url.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Post", ue.Op)
	assert.Equal(t, "http://example.com/widgets", ue.URL)
	assert.ErrorIs(t, err, errBoom)
	assert.Same(t, err, endErr)
}

func testClientCredential(t *testing.T) {
	var calls int
	var lock sync.Mutex
	cred := auth.CredentialFunc(func(_ context.Context, req auth.TokenRequest) (auth.Token, error) {
		lock.Lock()
		defer lock.Unlock()
		calls++
		assert.Equal(t, []string{"api"}, req.Scopes)
		return auth.Token{Token: fmt.Sprintf("t%d", calls), ExpiresOn: time.Now().Add(time.Hour)}, nil
	})
	trans := pipetest.NewTransport(t)
	trans.On("Send", mock.Anything).Return(pipetest.Status(401, "WWW-Authenticate", `Bearer realm="r"`), nil).Once()
	trans.On("Send", mock.Anything).Return(pipetest.Status(200), nil).Once()
	cl := &Client{
		Transport:  trans,
		Credential: cred,
		Scopes:     []string{"api"},
	}

	resp, err := cl.Get("https://example.com/")

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	sent := trans.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Bearer t1", sent[0].Header.Get("Authorization"))
	assert.Equal(t, "Bearer t2", sent[1].Header.Get("Authorization"))
	trans.AssertReleased(t, resp)
	require.NoError(t, resp.Close())

	t.Run("insecure", func(t *testing.T) {
		resp, err := cl.Get("http://example.com/")
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, auth.ErrInsecure)
	})
}

func testClientAttemptErrors(t *testing.T) {
	modes := []struct {
		name string
		do   func(cl *Client, c *request.Call) (*request.Response, error)
	}{
		{"Do", func(cl *Client, c *request.Call) (*request.Response, error) {
			return cl.Do(c)
		}},
		{"DoAsync", func(cl *Client, c *request.Call) (*request.Response, error) {
			return cl.DoAsync(c).Result()
		}},
	}
	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			trans := pipetest.NewTransport(t)
			trans.On("Send", mock.Anything).Return(nil, syscall.ECONNRESET).Once()
			trans.On("Send", mock.Anything).Return(pipetest.Status(200), nil).Once()
			cl := &Client{
				Transport: trans,
				Retry:     retry.NewPolicy(retry.Options{Waiter: retry.NewFixedWaiter(0)}),
				Credential: auth.CredentialFunc(func(context.Context, auth.TokenRequest) (auth.Token, error) {
					return auth.Token{Token: "t", ExpiresOn: time.Now().Add(time.Hour)}, nil
				}),
			}
			c := newCall(t, "GET", "https://example.com/")

			resp, err := mode.do(cl, c)

			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
			assert.Equal(t, 2, retry.Attempts(c))
			assert.Equal(t, []error{syscall.ECONNRESET}, retry.AttemptErrors(c))
			trans.AssertExpectations(t)
			trans.AssertReleased(t, resp)
			require.NoError(t, resp.Close())
		})
	}
}

func testClientCache(t *testing.T) {
	c, err := cache.New(cache.Options{})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	trans := pipetest.NewTransport(t)
	trans.On("Send", mock.Anything).Return(pipetest.Status(200, "Cache-Control", "max-age=60"), nil).Once()
	cl := &Client{Transport: trans, Cache: c}

	for i := 0; i < 3; i++ {
		resp, err := cl.Get("http://example.com/cached")
		require.NoError(t, err)
		b, err := resp.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, "status 200", string(b))
	}
	trans.AssertNumberOfCalls(t, "Send", 1)
}

func testClientPolicies(t *testing.T) {
	trans := pipetest.NewTransport(t)
	trans.On("Send", mock.Anything).Return(pipetest.Status(200), nil).Once()
	var order []string
	tag := func(name string) pipeline.Policy {
		return pipeline.SyncFunc(func(c *request.Call, next pipeline.Next) (*request.Response, error) {
			order = append(order, name)
			c.Request.Header.Add("X-Policy", name)
			return next.ProcessSync(c)
		})
	}
	cl := &Client{Transport: trans, Policies: []pipeline.Policy{tag("a"), tag("b")}}

	resp, err := cl.Get("http://example.com/")

	require.NoError(t, err)
	require.NoError(t, resp.Close())
	assert.Equal(t, []string{"a", "b"}, order)
	sent := trans.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"a", "b"}, sent[0].Header.Values("X-Policy"))
}

func testClientObservability(t *testing.T) {
	trans := pipetest.NewTransport(t)
	trans.On("Send", mock.Anything).Return(pipetest.Status(502), nil).Once()
	trans.On("Send", mock.Anything).Return(pipetest.Status(200), nil).Once()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	cl := &Client{
		Transport: trans,
		Retry:     retry.NewPolicy(retry.Options{Waiter: retry.NewFixedWaiter(time.Millisecond)}),
		Logger:    zap.New(core),
		Metrics:   metrics.New(metrics.Options{Registerer: reg}),
	}

	resp, err := cl.Get("http://example.com/")

	require.NoError(t, err)
	require.NoError(t, resp.Close())
	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	n, err := testutil.GatherAndCount(reg, "httppipe_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testClientAsync(t *testing.T) {
	trans := pipetest.NewTransport(t)
	trans.On("Send", mock.Anything).Return(nil, errors.New("refused")).Once()
	trans.On("Send", mock.Anything).Return(pipetest.Status(201), nil).Once()
	var evts []Event
	var lock sync.Mutex
	g := &HandlerGroup{}
	for _, evt := range Events() {
		g.PushBack(evt, HandlerFunc(func(evt Event, _ *Execution) {
			lock.Lock()
			defer lock.Unlock()
			evts = append(evts, evt)
		}))
	}
	cl := &Client{
		Transport: trans,
		Retry:     retry.NewPolicy(retry.Options{Waiter: retry.NewFixedWaiter(time.Millisecond)}),
		Handlers:  g,
	}
	req, err := request.NewRequest("PUT", "http://example.com/things/1", []byte("thing"))
	require.NoError(t, err)

	resp, err := cl.DoAsync(request.NewCall(context.Background(), req)).Result()

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	require.NoError(t, resp.Close())
	lock.Lock()
	defer lock.Unlock()
	assert.Equal(t, []Event{
		BeforeExecutionStart,
		BeforeAttempt, AfterAttempt,
		BeforeAttempt, AfterAttempt,
		AfterExecutionEnd,
	}, evts)
	for _, s := range trans.Sent() {
		assert.Equal(t, "thing", string(s.Body))
	}

	t.Run("error", func(t *testing.T) {
		trans := pipetest.NewTransport(t)
		trans.On("Send", mock.Anything).Return(nil, context.Canceled).Maybe()
		cl := &Client{Transport: trans}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := cl.DoAsync(request.NewCall(ctx, req)).Result()
		var ue *url.Error
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "Put", ue.Op)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func testClientCloseIdleConnections(t *testing.T) {
	t.Run("default transport", func(t *testing.T) {
		assert.NotPanics(t, (&Client{}).CloseIdleConnections)
	})
	t.Run("transport does not implement IdleCloser", func(t *testing.T) {
		trans := pipetest.NewTransport(t)
		cl := &Client{Transport: trans}
		cl.CloseIdleConnections()
		trans.AssertNotCalled(t, "CloseIdleConnections")
	})
	t.Run("transport implements IdleCloser", func(t *testing.T) {
		trans := idleTransport{pipetest.NewTransport(t)}
		trans.On("CloseIdleConnections").Once()
		cl := &Client{Transport: trans}
		cl.CloseIdleConnections()
		trans.AssertExpectations(t)
	})
}

type idleTransport struct {
	*pipetest.Transport
}

func (t idleTransport) CloseIdleConnections() {
	t.Called()
}
