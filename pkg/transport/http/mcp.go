package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/auth"
	"github.com/rhuss/mcplab/pkg/connection"
	"github.com/rhuss/mcplab/pkg/transport"
)

// handleConnect handles POST /api/mcp/connect.
func (a *Adapter) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req api.ConnectRequest
	if apiErr := a.decode(w, r, &req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	if apiErr := api.ValidateConnectRequest(&req, a.cfg.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	ctx, release := a.inflight.Track(r.Context(), transport.RequestIDFromContext(r.Context()))
	defer release()

	result, err := a.deps.Connector.Connect(ctx, auth.Owner(r.Context()), connection.Target{
		URL:       req.URL,
		Transport: req.Transport,
		Headers:   req.Headers,
		ServerID:  req.ServerID,
	})
	if err != nil {
		a.writeSessionError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, result)
}

// handleCallTool handles POST /api/mcp/call-tool.
func (a *Adapter) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req api.CallToolRequest
	if apiErr := a.decode(w, r, &req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	if apiErr := api.ValidateCallToolRequest(&req, a.cfg.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	ctx, release := a.inflight.Track(r.Context(), transport.RequestIDFromContext(r.Context()))
	defer release()

	result, err := a.deps.Connector.CallTool(ctx, auth.Owner(r.Context()), connection.Target{
		URL:       req.URL,
		Transport: req.Transport,
		Headers:   req.Headers,
		ServerID:  req.ServerID,
	}, req.Tool, req.Arguments)
	if err != nil {
		a.writeSessionError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, result)
}

func (a *Adapter) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *connection.AuthorizationRequiredError
	if errors.As(err, &authErr) {
		a.writeAuthorizationRequired(w, authErr)
		return
	}

	apiErr := transport.FromError(err)
	if transport.HTTPStatusFromError(apiErr) >= http.StatusInternalServerError {
		slog.Error("tool server session failed",
			"request_id", transport.RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	transport.WriteAPIError(w, apiErr)
}
