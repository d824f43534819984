// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestScheduler_Delay(t *testing.T) {
	schedulers := map[string]Scheduler{
		"default": DefaultScheduler,
		"bounded": NewBoundedScheduler(1),
	}
	for name, s := range schedulers {
		t.Run(name, func(t *testing.T) {
			t.Run("elapses", func(t *testing.T) {
				start := time.Now()
				resp, err := s.Delay(context.Background(), 20*time.Millisecond).Result()
				assert.Nil(t, resp)
				assert.NoError(t, err)
				assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
			})
			t.Run("zero", func(t *testing.T) {
				f := s.Delay(context.Background(), 0)
				select {
				case <-f.Done():
				default:
					t.Fatal("zero delay not complete")
				}
			})
			t.Run("already cancelled", func(t *testing.T) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				_, err := s.Delay(ctx, time.Hour).Result()
				assert.Same(t, context.Canceled, err)
			})
			t.Run("cancelled while waiting", func(t *testing.T) {
				ctx, cancel := context.WithCancel(context.Background())
				f := s.Delay(ctx, time.Hour)
				time.AfterFunc(10*time.Millisecond, cancel)
				start := time.Now()
				_, err := f.Result()
				assert.Same(t, context.Canceled, err)
				assert.Less(t, time.Since(start), time.Minute)
			})
		})
	}
}

func TestNewBoundedScheduler(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		assert.PanicsWithValue(t, "httppipe/pipeline: invalid scheduler bound 0", func() {
			NewBoundedScheduler(0)
		})
	})
	t.Run("bound respected", func(t *testing.T) {
		s := NewBoundedScheduler(2)
		var running, peak int32
		var g errgroup.Group
		for i := 0; i < 10; i++ {
			done := make(chan struct{})
			s.Go(func() {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				close(done)
			})
			g.Go(func() error {
				<-done
				return nil
			})
		}
		assert.NoError(t, g.Wait())
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
		assert.Greater(t, atomic.LoadInt32(&peak), int32(0))
	})
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.Same(t, context.DeadlineExceeded, Sleep(ctx, time.Hour))
	assert.Same(t, context.DeadlineExceeded, Sleep(ctx, time.Hour))
}

func TestSpawn(t *testing.T) {
	t.Run("forwards result", func(t *testing.T) {
		r := newResponse(200)
		resp, err := Spawn(DefaultScheduler, func() *Future {
			return Completed(r, nil)
		}).Result()
		assert.NoError(t, err)
		assert.Same(t, r, resp)
	})
	t.Run("panic", func(t *testing.T) {
		_, err := Spawn(NewBoundedScheduler(1), func() *Future {
			panic("boom")
		}).Result()
		assert.EqualError(t, err, "httppipe/pipeline: panic: boom")
	})
}
