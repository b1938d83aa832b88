// Package apikey authenticates callers by static API keys. Keys are kept
// only as SHA-256 digests and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/rhuss/mcplab/pkg/auth"
)

// Key is one configured API key and the subject it authenticates.
type Key struct {
	Key     string
	Subject string
	Name    string
}

type entry struct {
	digest  [32]byte
	subject string
	name    string
}

// Authenticator validates bearer credentials against the configured keys.
type Authenticator struct {
	entries    []entry
	cookieName string
}

// New creates an Authenticator. When cookieName is set, the key may also
// arrive in that cookie.
func New(keys []Key, cookieName string) *Authenticator {
	a := &Authenticator{cookieName: cookieName}
	for _, k := range keys {
		a.entries = append(a.entries, entry{
			digest:  sha256.Sum256([]byte(k.Key)),
			subject: k.Subject,
			name:    k.Name,
		})
	}
	return a
}

// Authenticate abstains when no bearer credential is present and rejects
// unknown keys.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r, a.cookieName)
	if !ok {
		return auth.Result{Vote: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Vote: auth.Reject, Err: auth.ErrUnauthenticated}
	}

	digest := sha256.Sum256([]byte(token))
	match := -1
	for i, e := range a.entries {
		// No early exit so that timing does not reveal the position.
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 {
			match = i
		}
	}
	if match < 0 {
		return auth.Result{Vote: auth.Reject, Err: auth.ErrUnauthenticated}
	}
	e := a.entries[match]
	return auth.Result{Vote: auth.Accept, Identity: &auth.Identity{Subject: e.subject, Name: e.name}}
}
