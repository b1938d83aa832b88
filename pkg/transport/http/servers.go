package http

import (
	"net/http"
	"strconv"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/auth"
	"github.com/rhuss/mcplab/pkg/storage"
	"github.com/rhuss/mcplab/pkg/transport"
)

func toAPIServer(rec *storage.ServerRecord) api.Server {
	s := api.Server{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		URL:         rec.URL,
		Transport:   rec.Transport,
		Headers:     rec.Headers,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.Token != nil {
		s.Authorized = true
		s.TokenExpiresAt = rec.Token.ExpiresAt
	}
	return s
}

func serverID(r *http.Request) (int64, *api.APIError) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, api.NewInvalidRequestError("id", "malformed server id")
	}
	return id, nil
}

// handleListServers handles GET /api/mcp-servers.
func (a *Adapter) handleListServers(w http.ResponseWriter, r *http.Request) {
	recs, err := a.deps.Servers.ListServers(r.Context(), auth.Owner(r.Context()))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	list := api.ServerList{Object: "list", Data: make([]api.Server, 0, len(recs))}
	for _, rec := range recs {
		list.Data = append(list.Data, toAPIServer(rec))
	}
	transport.WriteJSON(w, http.StatusOK, list)
}

// handleCreateServer handles POST /api/mcp-servers.
func (a *Adapter) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req api.ServerRequest
	if apiErr := a.decode(w, r, &req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	if apiErr := api.ValidateServerRequest(&req, a.cfg.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	rec := &storage.ServerRecord{
		Owner:       auth.Owner(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		Transport:   req.Transport,
		Headers:     req.Headers,
	}
	if err := a.deps.Servers.CreateServer(r.Context(), rec); err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, toAPIServer(rec))
}

// handleGetServer handles GET /api/mcp-servers/{id}.
func (a *Adapter) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id, apiErr := serverID(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	rec, err := a.deps.Servers.GetServer(r.Context(), auth.Owner(r.Context()), id)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, toAPIServer(rec))
}

// handleUpdateServer handles PUT /api/mcp-servers/{id}. The stored token is
// kept unless the URL changes, in which case the store drops it.
func (a *Adapter) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	id, apiErr := serverID(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	var req api.ServerRequest
	if apiErr := a.decode(w, r, &req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	if apiErr := api.ValidateServerRequest(&req, a.cfg.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	owner := auth.Owner(r.Context())
	rec := &storage.ServerRecord{
		ID:          id,
		Owner:       owner,
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		Transport:   req.Transport,
		Headers:     req.Headers,
	}
	if err := a.deps.Servers.UpdateServer(r.Context(), rec); err != nil {
		transport.WriteError(w, err)
		return
	}
	updated, err := a.deps.Servers.GetServer(r.Context(), owner, id)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, toAPIServer(updated))
}

// handleDeleteServer handles DELETE /api/mcp-servers/{id}.
func (a *Adapter) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id, apiErr := serverID(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	if err := a.deps.Servers.DeleteServer(r.Context(), auth.Owner(r.Context()), id); err != nil {
		transport.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
