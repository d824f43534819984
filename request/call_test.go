// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callKey int

func TestNewCall(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		assert.PanicsWithValue(t, nilCtxMsg, func() {
			//lint:ignore SA1012 testing nil context
			NewCall(nil, &Request{}) //nolint:staticcheck
		})
	})
	t.Run("zero value context", func(t *testing.T) {
		var c Call
		assert.Same(t, context.Background(), c.Context())
	})
	t.Run("context kept", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c := NewCall(ctx, &Request{})
		assert.Same(t, ctx, c.Context())
		assert.Equal(t, 0, c.Attempt)
	})
}

func TestCall_WithContext(t *testing.T) {
	c := NewCall(context.Background(), &Request{Method: "GET"})
	c.Put(callKey(1), "one")
	t.Run("nil context", func(t *testing.T) {
		assert.PanicsWithValue(t, nilCtxMsg, func() {
			//lint:ignore SA1012 testing nil context
			c.WithContext(nil) //nolint:staticcheck
		})
	})
	t.Run("shallow copy", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c2 := c.WithContext(ctx)
		assert.NotSame(t, c, c2)
		assert.Same(t, ctx, c2.Context())
		assert.Same(t, context.Background(), c.Context())
		assert.Same(t, c.Request, c2.Request)
		assert.Equal(t, "one", c2.Value(callKey(1)))
	})
}

func TestCall_Clone(t *testing.T) {
	r, err := NewRequest("GET", "http://foo.com/path", nil)
	require.NoError(t, err)
	c := NewCall(context.Background(), r)
	c.Put(callKey(1), "parent")

	c2 := c.Clone()
	require.NotSame(t, c.Request, c2.Request)
	c2.Request.Header.Set("X-Attempt", "2")
	c2.Put(callKey(1), "child")
	c2.Attempt = 1

	assert.Empty(t, c.Request.Header.Get("X-Attempt"))
	assert.Equal(t, "parent", c.Value(callKey(1)))
	assert.Equal(t, "child", c2.Value(callKey(1)))
	assert.Equal(t, 0, c.Attempt)

	t.Run("nil request", func(t *testing.T) {
		var c Call
		assert.Nil(t, c.Clone().Request)
	})
}

func TestCall_PutValue(t *testing.T) {
	var c Call
	assert.Nil(t, c.Value(callKey(0)))
	c.Put(callKey(0), 1)
	c.Put(callKey(0), 2)
	assert.Equal(t, 2, c.Value(callKey(0)))
	assert.Equal(t, 2, c.Data.Len())
}
