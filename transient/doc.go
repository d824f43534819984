// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors from HTTP request attempts as
// transient or non-transient. This is handy for writing retry policies,
// and for other purposes such as bucketing error metrics.
//
// Categorize reports the transience category of an error. Fatal marks
// an error as irrecoverable, and IsFatal detects the mark, so that a
// policy deep in a pipeline can tell a retry policy further up not to
// bother. Malformed redirect targets and credential failures are
// marked this way.
//
// Package transient depends only on the standard library, so it
// brings no dependencies when imported as a standalone package.
package transient
