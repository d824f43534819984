// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// A Token is an access token and the time it expires.
type Token struct {
	Token     string
	ExpiresOn time.Time
}

// A TokenRequest describes the token wanted from a credential.
type TokenRequest struct {
	// Scopes are the permissions the token must grant.
	Scopes []string

	// Claims holds additional claims demanded by a server challenge.
	// It is empty unless a challenge supplied them.
	Claims string
}

// A TokenCredential acquires access tokens.
//
// Implementations of TokenCredential must be safe for concurrent use
// by multiple goroutines.
type TokenCredential interface {
	GetToken(ctx context.Context, req TokenRequest) (Token, error)
}

// The CredentialFunc type is an adapter to allow the use of ordinary
// functions as credentials.
type CredentialFunc func(ctx context.Context, req TokenRequest) (Token, error)

// GetToken calls f(ctx, req).
func (f CredentialFunc) GetToken(ctx context.Context, req TokenRequest) (Token, error) {
	return f(ctx, req)
}

// DefaultRefreshBefore is how long before expiry a cached token is
// refreshed.
const DefaultRefreshBefore = 2 * time.Minute

// A TokenCache holds one token per scope set and refreshes it ahead of
// expiry. Concurrent requests for the same token share one credential
// call.
//
// TokenCache is safe for concurrent use by multiple goroutines.
type TokenCache struct {
	cred          TokenCredential
	refreshBefore time.Duration
	now           func() time.Time

	lock    sync.Mutex
	entries map[string]Token
	group   singleflight.Group
}

// NewTokenCache returns a cache of tokens from cred. A non-positive
// refreshBefore means DefaultRefreshBefore.
func NewTokenCache(cred TokenCredential, refreshBefore time.Duration) *TokenCache {
	if cred == nil {
		panic("httppipe/auth: nil credential")
	}
	if refreshBefore <= 0 {
		refreshBefore = DefaultRefreshBefore
	}
	return &TokenCache{
		cred:          cred,
		refreshBefore: refreshBefore,
		now:           time.Now,
		entries:       make(map[string]Token),
	}
}

// Cached returns the cached token for req if it does not need a
// refresh yet.
func (tc *TokenCache) Cached(req TokenRequest) (Token, bool) {
	tc.lock.Lock()
	defer tc.lock.Unlock()
	tok, ok := tc.entries[scopeKey(req.Scopes)]
	if !ok || !tc.fresh(tok) {
		return Token{}, false
	}
	return tok, true
}

// Get returns a token for req, from the cache if it does not need a
// refresh yet, and from the credential otherwise.
//
// If refreshing a token that has not expired yet fails, the old token
// is returned.
func (tc *TokenCache) Get(ctx context.Context, req TokenRequest) (Token, error) {
	if tok, ok := tc.Cached(req); ok {
		return tok, nil
	}
	return tc.load(ctx, req, "")
}

// Refresh returns a new token for req, replacing stale, which a server
// rejected. If a concurrent call has already replaced stale, its token
// is returned without another credential call.
func (tc *TokenCache) Refresh(ctx context.Context, req TokenRequest, stale string) (Token, error) {
	return tc.load(ctx, req, stale)
}

func (tc *TokenCache) load(ctx context.Context, req TokenRequest, stale string) (Token, error) {
	key := scopeKey(req.Scopes)
	ch := tc.group.DoChan(key+"\x00"+req.Claims+"\x00"+stale, func() (interface{}, error) {
		tc.lock.Lock()
		cur, ok := tc.entries[key]
		tc.lock.Unlock()
		if ok && cur.Token != stale && tc.fresh(cur) {
			return cur, nil
		}
		tok, err := tc.cred.GetToken(context.WithoutCancel(ctx), req)
		if err != nil {
			if ok && stale == "" && tc.now().Before(cur.ExpiresOn) {
				return cur, nil
			}
			return Token{}, err
		}
		tc.lock.Lock()
		tc.entries[key] = tok
		tc.lock.Unlock()
		return tok, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

func (tc *TokenCache) fresh(tok Token) bool {
	return tc.now().Before(tok.ExpiresOn.Add(-tc.refreshBefore))
}

func scopeKey(scopes []string) string {
	s := append([]string(nil), scopes...)
	sort.Strings(s)
	return strings.Join(s, " ")
}
