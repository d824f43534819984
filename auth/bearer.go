// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gogama/httppipe/pipeline"
	"github.com/gogama/httppipe/request"
	"github.com/gogama/httppipe/transient"
)

// Options configure a BearerPolicy.
type Options struct {
	// Credential supplies tokens. It is required.
	Credential TokenCredential

	// Scopes are requested for every token unless a challenge names
	// others.
	Scopes []string

	// Scheme prefixes the token in the Authorization header. If empty,
	// "Bearer" is used.
	Scheme string

	// AuthorizeOnChallenge makes the policy answer a 401 response by
	// refreshing the token and sending the request once more. A
	// challenge for Scheme in the response may name the scope and
	// claims of the new token. If false, 401 responses are returned as
	// they are.
	AuthorizeOnChallenge bool

	// ChallengeHeader names the response header holding challenges. If
	// empty, "WWW-Authenticate" is used.
	ChallengeHeader string

	// RefreshBefore is how long before expiry tokens are refreshed. If
	// zero, DefaultRefreshBefore is used.
	RefreshBefore time.Duration

	// AllowHTTP permits sending tokens over plain HTTP.
	AllowHTTP bool
}

// A BearerPolicy is a pipeline policy that authorizes each request with
// a token from a TokenCredential.
//
// Tokens are cached per scope set and refreshed ahead of expiry, with
// concurrent refreshes collapsed into one credential call. When
// AuthorizeOnChallenge is set, a 401 response is closed and the request
// is sent exactly once more with a fresh token, using the scope and
// claims of the challenge if it names any.
//
// BearerPolicy is safe for concurrent use by multiple goroutines.
type BearerPolicy struct {
	cache     *TokenCache
	scopes    []string
	scheme    string
	challenge bool
	header    string
	allowHTTP bool
}

// NewBearerPolicy returns a BearerPolicy configured by opts.
func NewBearerPolicy(opts Options) *BearerPolicy {
	p := &BearerPolicy{
		cache:     NewTokenCache(opts.Credential, opts.RefreshBefore),
		scopes:    append([]string(nil), opts.Scopes...),
		scheme:    opts.Scheme,
		challenge: opts.AuthorizeOnChallenge,
		header:    opts.ChallengeHeader,
		allowHTTP: opts.AllowHTTP,
	}
	if p.scheme == "" {
		p.scheme = "Bearer"
	}
	if p.header == "" {
		p.header = "WWW-Authenticate"
	}
	return p
}

// Cache returns the policy's token cache.
func (p *BearerPolicy) Cache() *TokenCache {
	return p.cache
}

// ProcessSync implements the blocking form of the policy.
func (p *BearerPolicy) ProcessSync(c *request.Call, next pipeline.Next) (*request.Response, error) {
	if err := p.check(c); err != nil {
		return nil, err
	}
	ctx := c.Context()
	tr := TokenRequest{Scopes: p.scopes}
	tok, err := p.cache.Get(ctx, tr)
	if err != nil {
		return nil, wrap(err)
	}
	body := p.body(c)
	resp, err := next.ProcessSync(p.authorize(c, tok, body))
	tr2, body2, again := p.challenged(resp, err, body)
	if !again {
		return resp, err
	}
	_ = resp.Close()
	tok2, err := p.cache.Refresh(ctx, tr2, tok.Token)
	if err != nil {
		return nil, wrap(err)
	}
	return next.ProcessSync(p.authorize(c, tok2, body2))
}

// Process implements the suspension-capable form of the policy. Token
// acquisition that cannot be served from the cache runs on the
// pipeline's Scheduler.
func (p *BearerPolicy) Process(c *request.Call, next pipeline.Next) *pipeline.Future {
	if err := p.check(c); err != nil {
		return pipeline.Completed(nil, err)
	}
	ctx := c.Context()
	tr := TokenRequest{Scopes: p.scopes}
	body := p.body(c)
	return p.withToken(ctx, next, tr, "", func(tok Token) *pipeline.Future {
		return next.Process(p.authorize(c, tok, body)).Then(func(resp *request.Response, err error) *pipeline.Future {
			tr2, body2, again := p.challenged(resp, err, body)
			if !again {
				return pipeline.Completed(resp, err)
			}
			_ = resp.Close()
			return p.withToken(ctx, next, tr2, tok.Token, func(tok2 Token) *pipeline.Future {
				return next.Process(p.authorize(c, tok2, body2))
			})
		})
	})
}

func (p *BearerPolicy) withToken(ctx context.Context, next pipeline.Next, tr TokenRequest, stale string, fn func(Token) *pipeline.Future) *pipeline.Future {
	if stale == "" {
		if tok, ok := p.cache.Cached(tr); ok {
			return fn(tok)
		}
	}
	return pipeline.Spawn(next.Scheduler(), func() *pipeline.Future {
		var tok Token
		var err error
		if stale == "" {
			tok, err = p.cache.Get(ctx, tr)
		} else {
			tok, err = p.cache.Refresh(ctx, tr, stale)
		}
		if err != nil {
			return pipeline.Completed(nil, wrap(err))
		}
		return fn(tok)
	})
}

func (p *BearerPolicy) check(c *request.Call) error {
	if p.allowHTTP || c.Request == nil || c.Request.URL == nil {
		return nil
	}
	if !strings.EqualFold(c.Request.URL.Scheme, "https") {
		return transient.Fatal(ErrInsecure)
	}
	return nil
}

func (p *BearerPolicy) body(c *request.Call) *request.Body {
	if c.Request == nil {
		return nil
	}
	if p.challenge {
		return c.Request.Body.Recording()
	}
	return c.Request.Body
}

func (p *BearerPolicy) authorize(c *request.Call, tok Token, body *request.Body) *request.Call {
	ac := c.Clone()
	ac.Request.Body = body
	ac.Request.Header.Set("Authorization", p.scheme+" "+tok.Token)
	return ac
}

// challenged decides whether resp is a challenge to answer. If it is,
// it returns the token request for the new token and the body to send
// with the reissued request.
func (p *BearerPolicy) challenged(resp *request.Response, err error, body *request.Body) (TokenRequest, *request.Body, bool) {
	if !p.challenge || err != nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return TokenRequest{}, nil, false
	}
	ch, _ := Find(ParseChallenges(resp.Header.Get(p.header)), p.scheme)
	replayed, rerr := body.Replay()
	if rerr != nil {
		return TokenRequest{}, nil, false
	}
	tr := TokenRequest{Scopes: p.scopes, Claims: ch.Params["claims"]}
	if scope := ch.Params["scope"]; scope != "" {
		tr.Scopes = strings.Fields(scope)
	}
	return tr, replayed, true
}

func wrap(err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return &Error{Err: err}
}
