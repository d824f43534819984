// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import "errors"

// ErrInsecure is returned by a bearer policy asked to send a token over
// plain HTTP without Options.AllowHTTP.
var ErrInsecure = errors.New("httppipe/auth: bearer tokens require https")

// An Error reports a failure to acquire a token. It is fatal: retry
// policies do not retry it.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "httppipe/auth: credential failed: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal always returns true.
func (e *Error) Fatal() bool {
	return true
}
