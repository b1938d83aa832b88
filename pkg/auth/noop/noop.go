// Package noop provides an authenticator that admits every request as one
// fixed identity. It backs the "none" auth mode of single-user setups.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/mcplab/pkg/auth"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "anonymous"

// Authenticator accepts all requests.
type Authenticator struct {
	Subject string
}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.Result {
	subject := a.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return auth.Result{Vote: auth.Accept, Identity: &auth.Identity{Subject: subject}}
}
