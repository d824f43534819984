// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import "fmt"

// A LocationError reports a redirect response whose target could not
// be resolved. It is fatal: retry policies do not retry it.
type LocationError struct {
	Location string
	Err      error
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("httppipe/redirect: invalid location %q: %v", e.Location, e.Err)
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

// Fatal always returns true.
func (e *LocationError) Fatal() bool {
	return true
}
