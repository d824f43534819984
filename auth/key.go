// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
)

// A KeyPolicy is a pipeline policy that attaches a static API key to
// every request.
type KeyPolicy struct {
	// Header names the header carrying the key. If empty,
	// "Authorization" is used.
	Header string

	// Prefix, if not empty, is written before the key, separated by a
	// space.
	Prefix string

	// Key is the API key.
	Key string
}

// NewKeyPolicy returns a KeyPolicy sending key in header.
func NewKeyPolicy(header, key string) *KeyPolicy {
	return &KeyPolicy{Header: header, Key: key}
}

// ProcessSync implements the blocking form of the policy.
func (p *KeyPolicy) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	return next.ProcessSync(p.apply(c))
}

// Process implements the suspension-capable form of the policy.
func (p *KeyPolicy) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	return next.Process(p.apply(c))
}

func (p *KeyPolicy) apply(c *request.Call) *request.Call {
	header := p.Header
	if header == "" {
		header = "Authorization"
	}
	value := p.Key
	if p.Prefix != "" {
		value = p.Prefix + " " + value
	}
	ac := c.Clone()
	ac.Request.Header.Set(header, value)
	return ac
}
