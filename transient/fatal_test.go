// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatal(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, Fatal(nil))
		assert.False(t, IsFatal(nil))
	})
	t.Run("plain", func(t *testing.T) {
		err := errors.New("foo")
		assert.False(t, IsFatal(err))
		f := Fatal(err)
		assert.True(t, IsFatal(f))
		assert.EqualError(t, f, "foo")
		assert.True(t, errors.Is(f, err))
		assert.Same(t, f, Fatal(f))
	})
	t.Run("wrapped", func(t *testing.T) {
		f := Fatal(syscall.ECONNRESET)
		w := fmt.Errorf("outer: %w", f)
		assert.True(t, IsFatal(w))
		assert.True(t, IsFatal(wrapper{w}))
		assert.Equal(t, ConnReset, Categorize(w))
	})
	t.Run("method", func(t *testing.T) {
		assert.True(t, IsFatal(fatalMethod(true)))
		assert.False(t, IsFatal(fatalMethod(false)))
	})
}

type fatalMethod bool

func (err fatalMethod) Error() string {
	return "fatalMethod"
}

func (err fatalMethod) Fatal() bool {
	return bool(err)
}
