// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httppipe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvents(t *testing.T) {
	events := Events()
	assert.Len(t, eventNames, numEvents)
	assert.Len(t, events, numEvents)
	for i, evt := range events {
		assert.Equal(t, Event(i), evt, "events must be listed in firing order")
	}
}

func TestEventNames(t *testing.T) {
	testCases := []struct {
		evt  Event
		name string
	}{
		{BeforeExecutionStart, "BeforeExecutionStart"},
		{BeforeAttempt, "BeforeAttempt"},
		{AfterAttempt, "AfterAttempt"},
		{AfterExecutionEnd, "AfterExecutionEnd"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.name, testCase.evt.Name())
		assert.Equal(t, testCase.name, testCase.evt.String())
		assert.Equal(t, testCase.name, fmt.Sprint(testCase.evt))
	}
}
