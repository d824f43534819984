// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package calldata provides Data, the immutable key/value bag that
// travels with each call through a pipeline.
//
// Policies annotate a call by putting pairs into its Data, which
// returns a new handle and leaves every previously handed-out handle
// unchanged:
//
//	type skipKey struct{}
//	d := calldata.Of(skipKey{}, true)
//	d2 := d.Put(skipKey{}, false) // d still reports true
package calldata
