// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"math"
	"testing"
	"time"

	"github.com/gogama/httppipe/request"
	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	a := DefaultPolicy.Timeout(&request.Call{})
	assert.Equal(t, 5*time.Second, a)
	b := DefaultPolicy.Timeout(&request.Call{Attempt: 3})
	assert.Equal(t, 5*time.Second, b)
}

func TestInfinite(t *testing.T) {
	a := Infinite.Timeout(&request.Call{})
	assert.Equal(t, time.Duration(math.MaxInt64), a)
	b := Infinite.Timeout(&request.Call{Attempt: 10})
	assert.Equal(t, time.Duration(math.MaxInt64), b)
}

func TestFixed(t *testing.T) {
	p := Fixed(33 * time.Hour)
	a := p.Timeout(&request.Call{})
	assert.Equal(t, 33*time.Hour, a)
	b := p.Timeout(&request.Call{Attempt: 1})
	assert.Equal(t, 33*time.Hour, b)
	c := p.Timeout(&request.Call{Attempt: 2})
	assert.Equal(t, 33*time.Hour, c)
}

func TestEscalating(t *testing.T) {
	p := Escalating(5*time.Millisecond, 10*time.Millisecond, 100*time.Millisecond)
	c := &request.Call{}
	assert.Equal(t, 5*time.Millisecond, p.Timeout(c))
	c.Attempt = 1
	assert.Equal(t, 10*time.Millisecond, p.Timeout(c))
	c.Attempt = 2
	assert.Equal(t, 100*time.Millisecond, p.Timeout(c))
	c.Attempt = 7
	assert.Equal(t, 100*time.Millisecond, p.Timeout(c))
	c.Attempt = -1
	assert.Equal(t, 5*time.Millisecond, p.Timeout(c))

	assert.Equal(t, Fixed(time.Second), Escalating(time.Second))
}
