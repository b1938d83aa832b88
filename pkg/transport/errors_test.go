package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/connection"
	"github.com/rhuss/mcplab/pkg/mcp"
	"github.com/rhuss/mcplab/pkg/oauth"
	"github.com/rhuss/mcplab/pkg/storage"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "api error", err: api.NewInvalidRequestError("url", "url is required"), wantStatus: http.StatusBadRequest},
		{name: "unauthorized", err: fmt.Errorf("%w: 401", connection.ErrUnauthorized), wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "unsupported transport", err: fmt.Errorf("%w: stdio is disabled", mcp.ErrUnsupportedTransport), wantStatus: http.StatusBadRequest, wantCode: "unsupported_transport"},
		{name: "tool not found", err: fmt.Errorf("%w: nope", mcp.ErrToolNotFound), wantStatus: http.StatusNotFound, wantCode: "tool_not_found"},
		{name: "server not found", err: fmt.Errorf("loading: %w", storage.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: "server_not_found"},
		{name: "discovery", err: &oauth.DiscoveryError{URL: "https://x"}, wantStatus: http.StatusBadGateway, wantCode: "discovery_failed"},
		{name: "registration unsupported", err: oauth.ErrRegistrationUnsupported, wantStatus: http.StatusBadGateway, wantCode: "registration_unsupported"},
		{name: "pkce unsupported", err: oauth.ErrPKCEUnsupported, wantStatus: http.StatusBadGateway, wantCode: "pkce_unsupported"},
		{name: "connection", err: &connection.ConnectionError{URL: "https://x", Err: errors.New("refused")}, wantStatus: http.StatusBadGateway, wantCode: "connection_failed"},
		{name: "timeout", err: &connection.ConnectionError{URL: "https://x", Err: context.DeadlineExceeded}, wantStatus: http.StatusBadGateway, wantCode: "timeout"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromError(tt.err)
			if got := HTTPStatusFromError(apiErr); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
			if tt.wantCode != "" && apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("%w: nope", mcp.ErrToolNotFound))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Type != api.ErrorTypeNotFound {
		t.Errorf("type = %q", body.Error.Type)
	}
}
