package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistrationUnsupported is returned when no client is stored for an
	// issuer and its metadata has no registration endpoint.
	ErrRegistrationUnsupported = errors.New("authorization server does not support dynamic client registration")

	// ErrNoAuthorizationEndpoint is returned when discovered metadata lacks
	// an authorization endpoint.
	ErrNoAuthorizationEndpoint = errors.New("authorization server metadata has no authorization_endpoint")

	// ErrPKCEUnsupported is returned when the metadata lists code challenge
	// methods and S256 is not among them.
	ErrPKCEUnsupported = errors.New("authorization server does not support the S256 code challenge method")

	// ErrInvalidState is returned for callbacks without a decodable state
	// or without a code.
	ErrInvalidState = errors.New("invalid authorization state")

	// ErrMissingFlowContext is returned when the stashed state, verifier or
	// nonce of a flow is absent.
	ErrMissingFlowContext = errors.New("authorization flow context missing or expired")

	// ErrStateMismatch is returned when the callback state differs from the
	// stashed one.
	ErrStateMismatch = errors.New("authorization state mismatch")
)

// DiscoveryError reports that no metadata document could be obtained for a
// server URL. Attempts lists every probed well-known URL and why it failed.
type DiscoveryError struct {
	URL      string
	Attempts []AttemptError
}

// AttemptError describes one failed discovery probe.
type AttemptError struct {
	URL string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("authorization server discovery failed for %s after %d attempts", e.URL, len(e.Attempts))
}

func (e *DiscoveryError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// RegistrationError reports a failed dynamic client registration.
type RegistrationError struct {
	Issuer     string
	StatusCode int
	Err        error
}

func (e *RegistrationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("client registration at %s failed (HTTP %d): %v", e.Issuer, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("client registration at %s failed: %v", e.Issuer, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// ProviderError is an error the authorization server reported in the
// callback query.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization server returned %s: %s", e.Code, e.Description)
	}
	return "authorization server returned " + e.Code
}

// TokenExchangeError reports a failed authorization code exchange.
type TokenExchangeError struct {
	// Code is the OAuth error code from the token endpoint, or a local code
	// such as "invalid_nonce".
	Code        string
	Description string
	Err         error
}

func (e *TokenExchangeError) Error() string {
	msg := "token exchange failed"
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	if e.Err != nil && e.Code == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// ShouldClearFlowSecrets reports whether the per-flow cookies must be
// removed after a callback that ended with err. Requests that never proved
// possession of the flow leave them in place.
func ShouldClearFlowSecrets(err error) bool {
	return !errors.Is(err, ErrInvalidState) && !errors.Is(err, ErrMissingFlowContext)
}

// ErrorCode maps a flow error to the short code used in redirect URLs and
// metrics labels.
func ErrorCode(err error) string {
	var (
		discErr *DiscoveryError
		regErr  *RegistrationError
		provErr *ProviderError
		tokErr  *TokenExchangeError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrMissingFlowContext):
		return "missing_flow_context"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrRegistrationUnsupported):
		return "registration_unsupported"
	case errors.Is(err, ErrNoAuthorizationEndpoint):
		return "no_authorization_endpoint"
	case errors.Is(err, ErrPKCEUnsupported):
		return "pkce_unsupported"
	case errors.As(err, &discErr):
		return "discovery_failed"
	case errors.As(err, &regErr):
		return "registration_failed"
	case errors.As(err, &provErr):
		return provErr.Code
	case errors.As(err, &tokErr):
		return "token_exchange_failed"
	default:
		return "server_error"
	}
}
