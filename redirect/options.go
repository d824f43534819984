// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import "net/http"

// DefaultMaxHops is the number of redirects followed when
// Options.MaxHops is zero.
const DefaultMaxHops = 3

// DefaultStatusCodes are the status codes followed when
// Options.StatusCodes is empty.
var DefaultStatusCodes = []int{
	http.StatusMovedPermanently,
	http.StatusFound,
	http.StatusTemporaryRedirect,
	http.StatusPermanentRedirect,
}

// DefaultAllowedMethods are the methods that keep their method across
// any redirect when Options.AllowedMethods is empty.
var DefaultAllowedMethods = []string{http.MethodGet, http.MethodHead}

// A StripMode says when the Authorization header is removed from a
// redirected request.
type StripMode int

const (
	// StripCrossHost removes Authorization when the redirect target's
	// host or port differs from the redirecting request's.
	StripCrossHost StripMode = iota
	// StripAlways removes Authorization on every redirect.
	StripAlways
)

// Options configure a redirect Policy. The zero value is a valid
// configuration.
type Options struct {
	// MaxHops is the maximum number of redirects followed for one
	// call. Zero means DefaultMaxHops and a negative value disables
	// redirect following.
	MaxHops int

	// LocationHeader names the response header holding the redirect
	// target. If empty, "Location" is used.
	LocationHeader string

	// StatusCodes lists the response status codes that are followed.
	// If empty, DefaultStatusCodes is used.
	StatusCodes []int

	// AllowedMethods lists the methods that are kept on any followed
	// redirect. Other methods are kept, with their body, only on 307
	// and 308 responses; on any other status they become GET and the
	// body is dropped. If empty, DefaultAllowedMethods is used.
	AllowedMethods []string

	// StripAuthorization says when the Authorization header is
	// removed before following a redirect.
	StripAuthorization StripMode
}
