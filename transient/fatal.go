// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import "errors"

// Fatal marks err as irrecoverable, so that retry policies will not
// retry an attempt that failed with it. A nil err yields nil.
//
// The returned error wraps err, so errors.Is and errors.As see through
// it, and its message is the same as err's.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	if IsFatal(err) {
		return err
	}
	return &fatalError{err}
}

// IsFatal reports whether err, or any error it wraps, was marked with
// Fatal or has a Fatal method that reports true.
func IsFatal(err error) bool {
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}

type fatalError struct {
	error
}

func (err *fatalError) Fatal() bool {
	return true
}

func (err *fatalError) Unwrap() error {
	return err.error
}
