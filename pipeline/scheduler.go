// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/gogama/httppipe/request"
	"golang.org/x/sync/semaphore"
)

// A Scheduler runs the work of suspension-capable sends: blocking
// policies and transports bridged into the async chain, and delay
// timers.
//
// Implementations of Scheduler must be safe for concurrent use by
// multiple goroutines.
type Scheduler interface {
	// Go runs fn asynchronously.
	Go(fn func())

	// Delay returns a Future that completes with a nil response and
	// nil error after d has elapsed, or with ctx's error as soon as
	// ctx is done, whichever happens first. The timer is released on
	// cancellation.
	Delay(ctx context.Context, d time.Duration) *Future
}

// DefaultScheduler runs each piece of work on its own goroutine and
// realizes delays with runtime timers.
var DefaultScheduler Scheduler = goScheduler{}

type goScheduler struct{}

func (goScheduler) Go(fn func()) {
	go fn()
}

func (goScheduler) Delay(ctx context.Context, d time.Duration) *Future {
	return delay(ctx, d)
}

// NewBoundedScheduler returns a Scheduler that runs at most n pieces
// of work at the same time. Work submitted beyond the limit waits for
// a slot. Delays do not occupy a slot.
func NewBoundedScheduler(n int64) Scheduler {
	if n < 1 {
		panic(fmt.Sprintf("httppipe/pipeline: invalid scheduler bound %d", n))
	}
	return &boundedScheduler{sem: semaphore.NewWeighted(n)}
}

type boundedScheduler struct {
	sem *semaphore.Weighted
}

func (s *boundedScheduler) Go(fn func()) {
	go func() {
		_ = s.sem.Acquire(context.Background(), 1)
		defer s.sem.Release(1)
		fn()
	}()
}

func (s *boundedScheduler) Delay(ctx context.Context, d time.Duration) *Future {
	return delay(ctx, d)
}

func delay(ctx context.Context, d time.Duration) *Future {
	f := NewFuture()
	if err := ctx.Err(); err != nil {
		f.Complete(nil, err)
		return f
	}
	if d <= 0 {
		f.Complete(nil, nil)
		return f
	}
	t := time.AfterFunc(d, func() {
		f.Complete(nil, nil)
	})
	stop := context.AfterFunc(ctx, func() {
		t.Stop()
		f.Complete(nil, ctx.Err())
	})
	f.OnComplete(func(*request.Response, error) {
		stop()
	})
	return f
}

// Sleep blocks for d, or until ctx is done. It returns ctx's error if
// ctx ended the sleep and nil otherwise.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Spawn runs fn on s and returns a Future for the result of the Future
// that fn returns. A panic in fn completes the returned Future with an
// error.
func Spawn(s Scheduler, fn func() *Future) *Future {
	f := NewFuture()
	s.Go(func() {
		defer recoverInto(f)
		fn().OnComplete(forward(f))
	})
	return f
}
