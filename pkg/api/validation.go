package api

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxHeaders    int
	MaxNameLength int

	// AllowStdio permits the stdio transport kind. When false, stdio
	// requests are rejected before any process is spawned.
	AllowStdio bool
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxHeaders:    64,
		MaxNameLength: 255,
	}
}

// ValidateConnectRequest checks a ConnectRequest. It returns an *APIError
// describing the first validation failure, or nil if the request is valid.
func ValidateConnectRequest(req *ConnectRequest, cfg ValidationConfig) *APIError {
	if apiErr := validateEndpoint(req.URL, req.Transport, cfg); apiErr != nil {
		return apiErr
	}
	if apiErr := validateHeaders(req.Headers, cfg); apiErr != nil {
		return apiErr
	}
	if req.ServerID != nil && *req.ServerID <= 0 {
		return NewInvalidRequestError("server_id", "server_id must be positive")
	}
	return nil
}

// ValidateCallToolRequest checks a CallToolRequest.
func ValidateCallToolRequest(req *CallToolRequest, cfg ValidationConfig) *APIError {
	if apiErr := validateEndpoint(req.URL, req.Transport, cfg); apiErr != nil {
		return apiErr
	}
	if strings.TrimSpace(req.Tool) == "" {
		return NewInvalidRequestError("tool", "tool is required")
	}
	if apiErr := validateHeaders(req.Headers, cfg); apiErr != nil {
		return apiErr
	}
	if req.ServerID != nil && *req.ServerID <= 0 {
		return NewInvalidRequestError("server_id", "server_id must be positive")
	}
	return nil
}

// ValidateServerRequest checks a ServerRequest used for create and update.
func ValidateServerRequest(req *ServerRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.Name) == "" {
		return NewInvalidRequestError("name", "name is required")
	}
	if cfg.MaxNameLength > 0 && len(req.Name) > cfg.MaxNameLength {
		return NewInvalidRequestError("name",
			fmt.Sprintf("name exceeds maximum length of %d", cfg.MaxNameLength))
	}
	// Stored records may name stdio servers even when this instance cannot
	// spawn them, so only the kind itself is checked here.
	if !req.Transport.Valid() {
		return NewInvalidRequestError("transport",
			fmt.Sprintf("transport must be one of stdio, http, sse; got %q", req.Transport))
	}
	if strings.TrimSpace(req.URL) == "" {
		return NewInvalidRequestError("url", "url is required")
	}
	if req.Transport != TransportStdio {
		if apiErr := validateHTTPURL(req.URL); apiErr != nil {
			return apiErr
		}
	}
	return validateHeaders(req.Headers, cfg)
}

func validateEndpoint(rawURL string, kind TransportKind, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(rawURL) == "" {
		return NewInvalidRequestError("url", "url is required")
	}
	if kind == "" {
		return NewInvalidRequestError("transport", "transport is required")
	}
	if !kind.Valid() {
		return NewInvalidRequestError("transport",
			fmt.Sprintf("transport must be one of stdio, http, sse; got %q", kind))
	}
	if kind == TransportStdio {
		if !cfg.AllowStdio {
			return &APIError{
				Type:    ErrorTypeInvalidRequest,
				Code:    "unsupported_transport",
				Param:   "transport",
				Message: "stdio transport is not enabled on this server",
			}
		}
		return nil
	}
	return validateHTTPURL(rawURL)
}

func validateHTTPURL(rawURL string) *APIError {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return NewInvalidRequestError("url", "url must be an absolute http or https URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewInvalidRequestError("url", "url must be an absolute http or https URL")
	}
	return nil
}

func validateHeaders(headers map[string]string, cfg ValidationConfig) *APIError {
	if cfg.MaxHeaders > 0 && len(headers) > cfg.MaxHeaders {
		return NewInvalidRequestError("headers",
			fmt.Sprintf("headers exceeds maximum of %d entries", cfg.MaxHeaders))
	}
	for name, value := range headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return NewInvalidRequestError("headers", fmt.Sprintf("invalid header name %q", name))
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return NewInvalidRequestError("headers", fmt.Sprintf("invalid value for header %q", name))
		}
	}
	return nil
}
