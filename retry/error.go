// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"fmt"
	"sync"

	"github.com/gogama/httppipe/calldata"
	"github.com/gogama/httppipe/request"
)

// An Error is the failure of a call whose last attempt failed after one
// or more earlier attempts also failed.
//
// Err is the last attempt's error. Suppressed holds the errors of the
// earlier failed attempts, oldest first. Unwrap exposes all of them, so
// errors.Is and errors.As match any attempt's cause.
type Error struct {
	Err        error
	Suppressed []error
	Attempts   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("httppipe/retry: %d attempts failed, last error: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error followed by the suppressed
// ones.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 1+len(e.Suppressed))
	errs = append(errs, e.Err)
	return append(errs, e.Suppressed...)
}

type recordKey struct{}

// A record collects the attempts of every retry run a call, or any copy
// of it, goes through.
type record struct {
	mu   sync.Mutex
	n    int
	errs []error
}

func (rec *record) add(n int, errs []error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.n += n
	rec.errs = append(rec.errs, errs...)
}

func (rec *record) snapshot() (int, []error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) == 0 {
		return rec.n, nil
	}
	return rec.n, append([]error(nil), rec.errs...)
}

// Track prepares c so that Attempts and AttemptErrors also count the
// attempts of retry policies that work on copies of c, for example
// behind a redirect or authorization policy. Tracking c more than once
// has no effect. Client tracks every call it sends.
func Track(c *request.Call) {
	track(c)
}

func track(c *request.Call) *record {
	if rec, ok := calldata.Lookup[*record](c.Data, recordKey{}); ok {
		return rec
	}
	rec := &record{}
	c.Put(recordKey{}, rec)
	return rec
}

// AttemptErrors returns the errors of every failed attempt the retry
// policy made for c, oldest first. It returns nil if no attempt failed
// or if c did not pass through a retry policy.
//
// Use AttemptErrors to see earlier failures when the call finally
// ended with a response, which is returned with a nil error.
func AttemptErrors(c *request.Call) []error {
	rec, ok := calldata.Lookup[*record](c.Data, recordKey{})
	if !ok {
		return nil
	}
	_, errs := rec.snapshot()
	return errs
}

// Attempts returns the number of attempts retry policies made for c,
// or zero if c did not pass through a retry policy. If c was sent
// through several retry runs, for example one per redirect hop, the
// attempts of all runs are counted.
func Attempts(c *request.Call) int {
	rec, ok := calldata.Lookup[*record](c.Data, recordKey{})
	if !ok {
		return 0
	}
	n, _ := rec.snapshot()
	return n
}
