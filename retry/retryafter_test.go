// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryAfter(t *testing.T) {
	now := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		name   string
		header http.Header
		d      time.Duration
		ok     bool
	}{
		{
			name: "none",
		},
		{
			name:   "ms header wins over standard",
			header: http.Header{"Retry-After-Ms": {"64"}, "Retry-After": {"10"}},
			d:      64 * time.Millisecond,
			ok:     true,
		},
		{
			name:   "ms header wins over legacy alias",
			header: http.Header{"Retry-After-Ms": {"64"}, "X-Ms-Retry-After-Ms": {"128"}},
			d:      64 * time.Millisecond,
			ok:     true,
		},
		{
			name:   "legacy alias",
			header: http.Header{"X-Ms-Retry-After-Ms": {"128"}, "Retry-After": {"10"}},
			d:      128 * time.Millisecond,
			ok:     true,
		},
		{
			name:   "zero ms",
			header: http.Header{"Retry-After-Ms": {"0"}, "Retry-After": {"10"}},
			ok:     true,
		},
		{
			name:   "negative ms falls through",
			header: http.Header{"Retry-After-Ms": {"-5"}, "X-Ms-Retry-After-Ms": {"7"}},
			d:      7 * time.Millisecond,
			ok:     true,
		},
		{
			name:   "malformed ms falls through",
			header: http.Header{"Retry-After-Ms": {"soon"}, "Retry-After": {"3"}},
			d:      3 * time.Second,
			ok:     true,
		},
		{
			name:   "seconds",
			header: http.Header{"Retry-After": {"10"}},
			d:      10 * time.Second,
			ok:     true,
		},
		{
			name:   "seconds with spaces",
			header: http.Header{"Retry-After": {" 2 "}},
			d:      2 * time.Second,
			ok:     true,
		},
		{
			name:   "negative seconds",
			header: http.Header{"Retry-After": {"-1"}},
		},
		{
			name:   "http date",
			header: http.Header{"Retry-After": {now.Add(30 * time.Second).Format(http.TimeFormat)}},
			d:      30 * time.Second,
			ok:     true,
		},
		{
			name:   "http date in the past",
			header: http.Header{"Retry-After": {now.Add(-30 * time.Second).Format(http.TimeFormat)}},
		},
		{
			name:   "malformed",
			header: http.Header{"Retry-After": {"ten"}},
		},
		{
			name:   "overflow",
			header: http.Header{"Retry-After-Ms": {"99999999999999999999"}},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			h := testCase.header
			if h == nil {
				h = http.Header{}
			}
			d, ok := RetryAfter(h, now)
			assert.Equal(t, testCase.ok, ok)
			assert.Equal(t, testCase.d, d)
		})
	}
	t.Run("case insensitive", func(t *testing.T) {
		h := http.Header{}
		h.Set("retry-after-ms", "64")
		d, ok := RetryAfter(h, now)
		assert.True(t, ok)
		assert.Equal(t, 64*time.Millisecond, d)
	})
	t.Run("http date against wall clock", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", time.Now().Add(30*time.Second).UTC().Format(http.TimeFormat))
		d, ok := RetryAfter(h, time.Now())
		assert.True(t, ok)
		assert.InDelta(t, float64(30*time.Second), float64(d), float64(time.Second+100*time.Millisecond))
	})
}
