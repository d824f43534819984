// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChallenges(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		expected []Challenge
	}{
		{
			name:  "empty",
			value: "",
		},
		{
			name:     "scheme only",
			value:    "Negotiate",
			expected: []Challenge{{Scheme: "Negotiate", Params: map[string]string{}}},
		},
		{
			name:  "bearer",
			value: `Bearer realm="example", scope="read write", error=invalid_token`,
			expected: []Challenge{{
				Scheme: "Bearer",
				Params: map[string]string{"realm": "example", "scope": "read write", "error": "invalid_token"},
			}},
		},
		{
			name:  "several",
			value: `Basic realm="a", Bearer Claims="e30=" , PoP nonce=x`,
			expected: []Challenge{
				{Scheme: "Basic", Params: map[string]string{"realm": "a"}},
				{Scheme: "Bearer", Params: map[string]string{"claims": "e30="}},
				{Scheme: "PoP", Params: map[string]string{"nonce": "x"}},
			},
		},
		{
			name:  "escaped quote",
			value: `Bearer error_description="say \"hi\""`,
			expected: []Challenge{{
				Scheme: "Bearer",
				Params: map[string]string{"error_description": `say "hi"`},
			}},
		},
		{
			name:  "unterminated quote",
			value: `Bearer realm="abc`,
			expected: []Challenge{{
				Scheme: "Bearer",
				Params: map[string]string{"realm": "abc"},
			}},
		},
		{
			name:  "junk skipped",
			value: `;; Bearer realm=r`,
			expected: []Challenge{{
				Scheme: "Bearer",
				Params: map[string]string{"realm": "r"},
			}},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, ParseChallenges(testCase.value))
		})
	}
}

func TestFind(t *testing.T) {
	cs := ParseChallenges(`Basic realm=a, bearer scope=s`)

	c, ok := Find(cs, "Bearer")
	assert.True(t, ok)
	assert.Equal(t, "s", c.Params["scope"])

	_, ok = Find(cs, "Digest")
	assert.False(t, ok)
}
