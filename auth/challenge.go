// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// A Challenge is one authentication challenge from a WWW-Authenticate
// style header.
type Challenge struct {
	// Scheme is the authentication scheme, such as "Bearer".
	Scheme string

	// Params holds the challenge's auth-params. Names are lower-cased.
	Params map[string]string
}

// ParseChallenges parses the value of a WWW-Authenticate style header,
// which may hold several comma-separated challenges, each made of a
// scheme and comma-separated name=value parameters. Values may be
// tokens or quoted strings.
//
// Malformed input never causes an error: ParseChallenges returns the
// challenges it could make sense of.
func ParseChallenges(v string) []Challenge {
	var out []Challenge
	s := v
	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			return out
		}
		scheme, rest := token(s)
		if scheme == "" {
			s = s[1:]
			continue
		}
		ch := Challenge{Scheme: scheme, Params: make(map[string]string)}
		s = rest
		for {
			s2 := strings.TrimLeft(s, " \t,")
			name, r := token(s2)
			if name == "" {
				s = s2
				break
			}
			r = strings.TrimLeft(r, " \t")
			if !strings.HasPrefix(r, "=") {
				s = s2
				break
			}
			val, r := value(strings.TrimLeft(r[1:], " \t"))
			ch.Params[strings.ToLower(name)] = val
			s = r
		}
		out = append(out, ch)
	}
}

// Find returns the first challenge in cs whose scheme matches scheme,
// ignoring case.
func Find(cs []Challenge, scheme string) (Challenge, bool) {
	for _, c := range cs {
		if strings.EqualFold(c.Scheme, scheme) {
			return c, true
		}
	}
	return Challenge{}, false
}

func token(s string) (string, string) {
	i := strings.IndexFunc(s, func(r rune) bool {
		return !httpguts.IsTokenRune(r)
	})
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

func value(s string) (string, string) {
	if !strings.HasPrefix(s, `"`) {
		return token(s)
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			return b.String(), s[i+1:]
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), ""
}
