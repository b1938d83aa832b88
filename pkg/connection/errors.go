package connection

import (
	"errors"
	"fmt"

	"github.com/rhuss/mcplab/pkg/oauth"
)

// ErrUnauthorized is returned when the tool server rejected a credential
// the caller supplied explicitly. No authorization flow is started.
var ErrUnauthorized = errors.New("tool server rejected the supplied credentials")

// AuthorizationRequiredError is returned when the tool server demands
// authorization and no usable stored credential exists. Attempt holds the
// authorization flow that was started for the caller.
type AuthorizationRequiredError struct {
	Attempt *oauth.Attempt
}

func (e *AuthorizationRequiredError) Error() string {
	return "authorization required"
}

// ConnectionError wraps any other failure to reach or use a tool server.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
