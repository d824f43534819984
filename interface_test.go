// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httppipe

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/gogama/httppipe/request"

	"github.com/stretchr/testify/assert"

	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/mock"
)

func TestGet(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		expected := &request.Response{}
		m := newMockDoer(t)
		m.On("Do", mock.MatchedBy(func(c *request.Call) bool {
			return c.Request.Method == "GET" && c.Request.URL.String() == "foo" &&
				c.Context() == context.Background()
		})).Return(expected, nil).Once()
		resp, err := Get(m, "foo")
		assert.Same(t, expected, resp)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("error invalid URL", func(t *testing.T) {
		m := newMockDoer(t)
		resp, err := Get(m, ":::")
		assert.Nil(t, resp)
		assert.Error(t, err)
		m.AssertNotCalled(t, "Do", mock.Anything)
	})
}

func TestHead(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		expected := &request.Response{}
		m := newMockDoer(t)
		m.On("Do", mock.MatchedBy(func(c *request.Call) bool {
			return c.Request.Method == "HEAD" && c.Request.URL.String() == "bar"
		})).Return(expected, nil).Once()
		resp, err := Head(m, "bar")
		assert.Same(t, expected, resp)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("error invalid URL", func(t *testing.T) {
		m := newMockDoer(t)
		resp, err := Head(m, ":::")
		assert.Nil(t, resp)
		assert.Error(t, err)
		m.AssertNotCalled(t, "Do", mock.Anything)
	})
}

func TestPost(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		expected := &request.Response{}
		m := newMockDoer(t)
		m.On("Do", mock.MatchedBy(func(c *request.Call) bool {
			return c.Request.Method == "POST" && c.Request.URL.String() == "baz" &&
				c.Request.Header.Get("Content-Type") == "ham" &&
				bodyString(c) == "eggs"
		})).Return(expected, nil).Once()
		resp, err := Post(m, "baz", "ham", "eggs")
		assert.Same(t, expected, resp)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("error invalid URL", func(t *testing.T) {
		m := newMockDoer(t)
		resp, err := Post(m, ":::", "text/plain", []byte{'a', 'b', 'c'})
		assert.Nil(t, resp)
		assert.Error(t, err)
		m.AssertNotCalled(t, "Do", mock.Anything)
	})
	t.Run("error invalid body", func(t *testing.T) {
		m := newMockDoer(t)
		resp, err := Post(m, "http://example.com", "text/plain", 123)
		assert.Nil(t, resp)
		assert.EqualError(t, err, "httppipe/request: invalid type (for body use nil, *Body, string, []byte or io.Reader)")
		m.AssertNotCalled(t, "Do", mock.Anything)
	})
}

func TestPostForm(t *testing.T) {
	expected := &request.Response{}
	m := newMockDoer(t)
	m.On("Do", mock.MatchedBy(func(c *request.Call) bool {
		return c.Request.Method == "POST" && c.Request.URL.String() == "poster%20boy" &&
			c.Request.Header.Get("Content-Type") == "application/x-www-form-urlencoded" &&
			bodyString(c) == ""
	})).Return(expected, nil).Once()
	resp, err := PostForm(m, "poster boy", url.Values{})
	assert.Same(t, expected, resp)
	assert.NoError(t, err)
	m.AssertExpectations(t)
}

func TestInflate(t *testing.T) {
	t.Run("Inflate", func(t *testing.T) {
		t.Run("nil doer", func(t *testing.T) {
			assert.PanicsWithValue(t, "httppipe: nil doer", func() {
				Inflate(nil)
			})
		})
		t.Run("already an Executor", func(t *testing.T) {
			cl := &Client{}
			x := Inflate(cl)
			assert.Same(t, cl, x)
		})
		t.Run("not yet an Executor", func(t *testing.T) {
			m := newMockDoer(t)
			x := Inflate(m)
			assert.NotSame(t, m, x)
		})
	})
	expected := &request.Response{}
	t.Run("Do", func(t *testing.T) {
		req, err := request.NewRequest("PUT", "http://www.randomcollections.com/widgets/1", "foo")
		require.NotNil(t, req)
		require.NoError(t, err)
		c := request.NewCall(context.Background(), req)
		errDo := errors.New("do failed")
		m := newMockDoer(t)
		same := mock.MatchedBy(func(got *request.Call) bool { return got == c })
		m.On("Do", same).Return(expected, nil).Once()
		m.On("Do", same).Return(nil, errDo).Once()
		x := Inflate(m)
		_, isExecutor := interface{}(m).(Executor)
		require.False(t, isExecutor)
		resp, err := x.Do(c)
		assert.Same(t, expected, resp)
		assert.NoError(t, err)
		resp, err = x.Do(c)
		assert.Nil(t, resp)
		assert.Same(t, errDo, err)
		m.AssertExpectations(t)
	})
	t.Run("Get", func(t *testing.T) {
		m := newMockDoer(t)
		m.On("Do", mock.MatchedBy(func(c *request.Call) bool {
			return c.Request.Method == "GET" && c.Request.URL.String() == "bar"
		})).Return(expected, nil).Once()
		x := Inflate(m)
		resp, err := x.Get("bar")
		assert.Same(t, expected, resp)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("Head", func(t *testing.T) {
		m := newMockDoer(t)
		m.On("Do", mock.MatchedBy(func(c *request.Call) bool {
			return c.Request.Method == "HEAD" && c.Request.URL.String() == "baz"
		})).Return(expected, nil).Once()
		x := Inflate(m)
		resp, err := x.Head("baz")
		assert.Same(t, expected, resp)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("Post", func(t *testing.T) {
		m := newMockDoer(t)
		m.On("Do", mock.MatchedBy(func(c *request.Call) bool {
			return c.Request.Method == "POST" && c.Request.URL.String() == "ham" &&
				c.Request.Header.Get("Content-Type") == "eggs" &&
				c.Request.Body == nil
		})).Return(expected, nil).Once()
		x := Inflate(m)
		resp, err := x.Post("ham", "eggs", nil)
		assert.Same(t, expected, resp)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("PostForm", func(t *testing.T) {
		m := newMockDoer(t)
		m.On("Do", mock.MatchedBy(func(c *request.Call) bool {
			return c.Request.Method == "POST" && c.Request.URL.String() == "form" &&
				c.Request.Header.Get("Content-Type") == "application/x-www-form-urlencoded" &&
				bodyString(c) == "x=y"
		})).Return(expected, nil).Once()
		x := Inflate(m)
		resp, err := x.PostForm("form", url.Values{"x": []string{"y"}})
		assert.Same(t, expected, resp)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("CloseIdleConnections", func(t *testing.T) {
		t.Run("Doer does not implement IdleCloser", func(t *testing.T) {
			m := newMockDoer(t)
			x := Inflate(m)
			x.CloseIdleConnections()
			m.AssertNotCalled(t, "CloseIdleConnections")
		})
		t.Run("Doer implements IdleCloser", func(t *testing.T) {
			m := newMockDoerWithCloseIdleConnections(t)
			m.On("CloseIdleConnections").Once()
			x := Inflate(m)
			x.CloseIdleConnections()
			m.AssertExpectations(t)
		})
	})
}

func bodyString(c *request.Call) string {
	b, _ := c.Request.Body.Bytes()
	return string(b)
}

type mockDoer struct {
	mock.Mock
}

func newMockDoer(t *testing.T) *mockDoer {
	m := &mockDoer{}
	m.Test(t)
	return m
}

func (m *mockDoer) Do(c *request.Call) (*request.Response, error) {
	args := m.Called(c)
	resp := args.Get(0)
	err := args.Error(1)
	if resp == nil {
		return nil, err
	}
	return resp.(*request.Response), err
}

type mockDoerWithCloseIdleConnections struct {
	mockDoer
}

func newMockDoerWithCloseIdleConnections(t *testing.T) *mockDoerWithCloseIdleConnections {
	m := &mockDoerWithCloseIdleConnections{}
	m.Test(t)
	return m
}

func (m *mockDoerWithCloseIdleConnections) CloseIdleConnections() {
	m.Called()
}
