package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/connection"
	"github.com/rhuss/mcplab/pkg/mcp"
	"github.com/rhuss/mcplab/pkg/oauth"
	"github.com/rhuss/mcplab/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to its HTTP status code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromError converts a domain error into the APIError sent to the client.
// Authorization-required outcomes are not errors on the wire and must be
// handled by the caller before.
func FromError(err error) *api.APIError {
	var apiErr *api.APIError
	var connErr *connection.ConnectionError
	var discErr *oauth.DiscoveryError
	var regErr *oauth.RegistrationError

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, connection.ErrUnauthorized):
		return api.NewUnauthorizedError("the tool server rejected the supplied credentials")
	case errors.Is(err, mcp.ErrUnsupportedTransport):
		e := api.NewInvalidRequestError("transport", err.Error())
		e.Code = "unsupported_transport"
		return e
	case errors.Is(err, mcp.ErrToolNotFound):
		return api.NewNotFoundError("tool_not_found", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("server_not_found", "server not found")
	case errors.As(err, &discErr), errors.As(err, &regErr),
		errors.Is(err, oauth.ErrRegistrationUnsupported), errors.Is(err, oauth.ErrNoAuthorizationEndpoint),
		errors.Is(err, oauth.ErrPKCEUnsupported):
		return api.NewUpstreamError(oauth.ErrorCode(err), err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return api.NewUpstreamError("timeout", "the tool server did not answer in time")
	case errors.As(err, &connErr):
		return api.NewUpstreamError("connection_failed", connErr.Error())
	default:
		return api.NewServerError("internal server error")
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes apiErr in the ErrorResponse envelope.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	WriteJSON(w, statusCode, api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes apiErr with the status derived from its type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError maps err with FromError and writes it.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, FromError(err))
}
