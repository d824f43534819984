// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"sync"

	"github.com/gogama/httppipe/request"
)

// A Future is the eventual result of a suspension-capable send: either
// a response or an error.
//
// A Future completes exactly once. The first call to Complete wins and
// every later call is ignored. Futures are safe for concurrent use.
type Future struct {
	lock      sync.Mutex
	done      chan struct{}
	completed bool
	resp      *request.Response
	err       error
	callbacks []func(*request.Response, error)
}

// NewFuture returns a new incomplete Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a Future that is already complete with the given
// response and error.
func Completed(resp *request.Response, err error) *Future {
	f := NewFuture()
	f.Complete(resp, err)
	return f
}

// Complete completes f with the given response and error and runs any
// registered callbacks on the calling goroutine.
//
// Complete reports whether it completed f. If f was already complete,
// Complete returns false and the caller still owns resp, so it must
// close it.
func (f *Future) Complete(resp *request.Response, err error) bool {
	f.lock.Lock()
	if f.completed {
		f.lock.Unlock()
		return false
	}
	f.completed = true
	f.resp, f.err = resp, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.lock.Unlock()
	for _, fn := range callbacks {
		fn(resp, err)
	}
	return true
}

// Done returns a channel that is closed when f completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until f completes and returns its result.
func (f *Future) Result() (*request.Response, error) {
	<-f.done
	return f.resp, f.err
}

// Await waits until f completes or ctx is done, whichever happens
// first.
//
// If ctx is done first, Await returns ctx's error and gives up
// ownership of the eventual result: a response that arrives later is
// closed without anyone seeing it.
func (f *Future) Await(ctx context.Context) (*request.Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
	}
	select {
	case <-f.done:
		return f.resp, f.err
	default:
	}
	f.OnComplete(func(resp *request.Response, _ error) {
		_ = resp.Close()
	})
	return nil, ctx.Err()
}

// OnComplete registers fn to run when f completes. If f is already
// complete, fn runs immediately on the calling goroutine; otherwise it
// runs on the goroutine that completes f.
func (f *Future) OnComplete(fn func(*request.Response, error)) {
	f.lock.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.lock.Unlock()
		return
	}
	f.lock.Unlock()
	fn(f.resp, f.err)
}

// Then returns a Future for the result of calling fn on f's result,
// once f completes. Parameter fn must return a non-nil Future.
func (f *Future) Then(fn func(*request.Response, error) *Future) *Future {
	g := NewFuture()
	f.OnComplete(func(resp *request.Response, err error) {
		defer recoverInto(g)
		fn(resp, err).OnComplete(forward(g))
	})
	return g
}

func forward(g *Future) func(*request.Response, error) {
	return func(resp *request.Response, err error) {
		if !g.Complete(resp, err) {
			_ = resp.Close()
		}
	}
}
