package gateway

import (
	"crypto/subtle"
	"strings"
)

// TokenIdentity is the identity label attached to requests authenticated by
// an API token, distinct from any interactive username so downstream logs
// can tell the two apart.
const TokenIdentity = "api-token"

// TokenAuthenticator validates static bearer tokens for non-browser clients
// that cannot complete an interactive login. Access is deliberately coarse:
// any configured token grants access to every path under the configured
// prefixes. Both sets are immutable after construction.
type TokenAuthenticator struct {
	tokens   []string
	prefixes []string
}

// NewTokenAuthenticator builds an authenticator from the configured token
// set and path-prefix allow-list.
func NewTokenAuthenticator(tokens, pathPrefixes []string) *TokenAuthenticator {
	return &TokenAuthenticator{
		tokens:   append([]string(nil), tokens...),
		prefixes: append([]string(nil), pathPrefixes...),
	}
}

// Authenticate reports whether the supplied token is a configured token AND
// the request path falls under an allow-listed prefix. Every configured
// token is compared in constant time; the loop never exits early on a
// match, so response timing does not reveal which candidate was close.
func (t *TokenAuthenticator) Authenticate(token, path string) bool {
	if token == "" || len(t.tokens) == 0 {
		return false
	}
	match := false
	for _, candidate := range t.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			match = true
		}
	}
	if !match {
		return false
	}
	return t.pathInScope(path)
}

func (t *TokenAuthenticator) pathInScope(path string) bool {
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
