package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Vote is the outcome of one authenticator looking at a request.
type Vote int

const (
	// Accept means the credentials are valid. The chain stops and the
	// identity is used.
	Accept Vote = iota

	// Reject means credentials are present but invalid. The chain stops and
	// the request is refused.
	Reject

	// Abstain means the authenticator does not understand the credentials.
	// The chain asks the next authenticator.
	Abstain
)

// Result carries the outcome of an authentication attempt.
type Result struct {
	Vote     Vote
	Identity *Identity // set only when Vote == Accept
	Err      error     // set only when Vote == Reject
}

// Identity is an authenticated caller. Subject is the owner key of every
// server record and token the caller creates.
type Identity struct {
	Subject string
	Name    string
}

// Authenticator examines the credentials of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// ErrUnauthenticated is returned when no authenticator accepted the request.
var ErrUnauthenticated = errors.New("authentication required")

// Chain evaluates authenticators in order. The first Accept or Reject wins;
// a request on which all of them abstain is rejected.
type Chain struct {
	Authenticators []Authenticator
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		if res := authn.Authenticate(ctx, r); res.Vote != Abstain {
			return res
		}
	}
	return Result{Vote: Reject, Err: ErrUnauthenticated}
}

// BearerToken returns the credential of r: the bearer token of the
// Authorization header, or else the value of the named cookie. Browsers
// arriving from an authorization redirect only carry the cookie.
func BearerToken(r *http.Request, cookieName string) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	if cookieName == "" {
		return "", false
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
