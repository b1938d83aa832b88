package mcp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnsupportedTransport is returned for transport kinds this client
	// cannot open, including stdio when it is not allowed.
	ErrUnsupportedTransport = errors.New("unsupported transport")

	// ErrToolNotFound is returned when the server does not know the
	// requested tool.
	ErrToolNotFound = errors.New("tool not found")
)

// AuthorizationRequiredError reports that the tool server answered an
// HTTP request with 401 or 403.
type AuthorizationRequiredError struct {
	StatusCode int
	Err        error
}

func (e *AuthorizationRequiredError) Error() string {
	return fmt.Sprintf("authorization required (HTTP %d %s)", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *AuthorizationRequiredError) Unwrap() error { return e.Err }

// IsAuthorizationRequired reports whether err carries an
// *AuthorizationRequiredError.
func IsAuthorizationRequired(err error) bool {
	var authErr *AuthorizationRequiredError
	return errors.As(err, &authErr)
}

// isToolNotFound recognizes the unknown-tool answers of common servers.
// The protocol has no dedicated error code for it, so the message is matched.
func isToolNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown tool") ||
		strings.Contains(msg, "tool not found") ||
		strings.Contains(msg, "no such tool")
}
