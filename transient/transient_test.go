// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	testCases := []struct {
		err      error
		expected Category
	}{
		{nil, Not},
		{errors.New("foo"), Not},
		{wrapper{}, Not},
		{wrapper{errors.New("bar")}, Not},
		{context.Canceled, Not},
		{io.EOF, Not},
		{syscall.ETIMEDOUT, Timeout},
		{context.DeadlineExceeded, Timeout},
		{&url.Error{Op: "Get", Err: context.DeadlineExceeded}, Timeout},
		{wrapper{&url.Error{Err: syscall.ETIMEDOUT}}, Timeout},
		{timeoutWrapper{true, syscall.ECONNRESET}, Timeout},
		{syscall.ECONNREFUSED, ConnRefused},
		{&url.Error{Err: wrapper{timeoutWrapper{false, syscall.ECONNREFUSED}}}, ConnRefused},
		{syscall.ECONNRESET, ConnReset},
		{fmt.Errorf("read: %w", syscall.ECONNRESET), ConnReset},
		{syscall.ECONNABORTED, ConnAborted},
		{wrapper{syscall.EPIPE}, ConnAborted},
		{io.ErrUnexpectedEOF, UnexpectedEOF},
		{&url.Error{Op: "Post", Err: io.ErrUnexpectedEOF}, UnexpectedEOF},
		{Fatal(syscall.ECONNRESET), Not},
		{wrapper{Fatal(context.DeadlineExceeded)}, Not},
	}
	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("%v", testCase.err), func(t *testing.T) {
			assert.Equal(t, testCase.expected, Categorize(testCase.err))
		})
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "Not", Not.String())
	assert.Equal(t, "ConnReset", ConnReset.String())
	assert.Equal(t, "UnexpectedEOF", UnexpectedEOF.String())
	assert.Equal(t, "Category(?)", Category(99).String())
	assert.Equal(t, "Category(?)", Category(-1).String())
}

type wrapper struct {
	wrappedError error
}

func (err wrapper) Error() string {
	return fmt.Sprintf("wrapper - wraps %v", err.wrappedError)
}

func (err wrapper) Unwrap() error {
	return err.wrappedError
}

type timeoutWrapper struct {
	timeout      bool
	wrappedError error
}

func (err timeoutWrapper) Error() string {
	return fmt.Sprintf("timeoutWrapper - timeout %t, wraps %v", err.timeout, err.wrappedError)
}

func (err timeoutWrapper) Timeout() bool {
	return err.timeout
}

func (err timeoutWrapper) Unwrap() error {
	return err.wrappedError
}
