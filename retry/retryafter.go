// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response headers through which a server can say how long to wait
// before retrying.
const (
	// HeaderRetryAfterMS carries a delay in milliseconds.
	HeaderRetryAfterMS = "Retry-After-Ms"
	// HeaderXMSRetryAfterMS is a legacy alias of HeaderRetryAfterMS.
	HeaderXMSRetryAfterMS = "X-Ms-Retry-After-Ms"
	// HeaderRetryAfter is the standard header, carrying either a delay
	// in seconds or an HTTP date.
	HeaderRetryAfter = "Retry-After"
)

// RetryAfter returns the retry delay a response header asks for,
// relative to now.
//
// The headers are consulted in the order HeaderRetryAfterMS,
// HeaderXMSRetryAfterMS, HeaderRetryAfter, and the first one that holds
// a usable value wins; values are never combined. The millisecond
// headers must hold a non-negative integer. The standard header may
// hold a non-negative number of seconds or an HTTP date in the future.
// Negative, past, or unparseable values are ignored as if absent.
//
// The second return value is false if no header holds a usable value,
// in which case the policy's Waiter decides the delay.
func RetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	if d, ok := parseMillis(h.Get(HeaderRetryAfterMS)); ok {
		return d, true
	}
	if d, ok := parseMillis(h.Get(HeaderXMSRetryAfterMS)); ok {
		return d, true
	}
	v := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if v == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n < 0 || n > maxSeconds {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d >= 0 {
			return d, true
		}
	}
	return 0, false
}

const (
	maxSeconds = int64(1<<63-1) / int64(time.Second)
	maxMillis  = int64(1<<63-1) / int64(time.Millisecond)
)

func parseMillis(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 || n > maxMillis {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
