// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"io"
	"syscall"
)

// A Category says how likely another attempt is to get past an error
// that ended an attempt. Categorize assigns it.
//
// Not means a retry would most likely fail the same way. Every other
// category names a failure of the connection or of the clock, which a
// later attempt may well not meet.
type Category int

const (
	// Not is the category of nil errors, errors marked with Fatal, and
	// every error the categories below do not cover.
	Not Category = iota
	// Timeout is a client-side timeout, including an attempt deadline
	// set by a timeout policy. The error, or one it wraps, has a
	// Timeout method that reports true.
	Timeout
	// ConnRefused is syscall.ECONNREFUSED. The remote service may be
	// starting or restarting and not yet listening.
	ConnRefused
	// ConnReset is syscall.ECONNRESET: the peer sent RST on a live
	// connection, typically a load balancer or a service going down
	// mid-response.
	ConnReset
	// ConnAborted is syscall.ECONNABORTED or syscall.EPIPE: the local
	// stack gave up on the connection, or wrote to one the peer had
	// already closed.
	ConnAborted
	// UnexpectedEOF is io.ErrUnexpectedEOF: the server closed a reused
	// keep-alive connection before or while answering.
	UnexpectedEOF
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"ConnRefused",
	"ConnReset",
	"ConnAborted",
	"UnexpectedEOF",
}

// String returns the name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Category(?)"
	}
	return categoryNames[c]
}

// Categorize returns the category of err, looking through wrapped
// errors. Timeout wins over the connection categories when an error
// chain matches both. Temporary methods are ignored.
func Categorize(err error) Category {
	if err == nil || IsFatal(err) {
		return Not
	}

	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return ConnRefused
		case syscall.ECONNRESET:
			return ConnReset
		case syscall.ECONNABORTED, syscall.EPIPE:
			return ConnAborted
		}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return UnexpectedEOF
	}

	return Not
}
