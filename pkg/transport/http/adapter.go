package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/connection"
	"github.com/rhuss/mcplab/pkg/observability"
	"github.com/rhuss/mcplab/pkg/storage"
	"github.com/rhuss/mcplab/pkg/transport"
)

// HealthChecker reports whether a backend is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators of an Adapter.
type Deps struct {
	Connector transport.Connector
	Callbacks transport.CallbackCompleter
	Servers   storage.ServerStore
	Health    HealthChecker

	// Auth authenticates API requests. Nil serves them unauthenticated,
	// which leaves every caller without an owner.
	Auth transport.Middleware
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	Validation api.ValidationConfig
	Cookies    CookieConfig

	// DashboardPath is where the browser lands after an authorization
	// callback.
	DashboardPath string

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	Logger *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:   1 << 20,
		Validation:    api.DefaultValidationConfig(),
		Cookies:       CookieConfig{MaxAge: 10 * time.Minute},
		DashboardPath: "/dashboard/mcp",
		MetricsPath:   "/metrics",
	}
}

// Adapter serves the mcplab API over HTTP.
type Adapter struct {
	deps     Deps
	cfg      Config
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
}

// NewAdapter creates an Adapter and registers its routes.
func NewAdapter(deps Deps, cfg Config) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if cfg.Cookies.MaxAge <= 0 {
		cfg.Cookies.MaxAge = DefaultConfig().Cookies.MaxAge
	}
	if deps.Auth == nil {
		deps.Auth = func(next http.Handler) http.Handler { return next }
	}

	a := &Adapter{
		deps:     deps,
		cfg:      cfg,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
	}

	a.handle("POST /api/mcp/connect", a.handleConnect)
	a.handle("POST /api/mcp/call-tool", a.handleCallTool)
	a.handle("GET /api/auth/mcp/callback", a.handleCallback)

	a.handle("GET /api/mcp-servers", a.handleListServers)
	a.handle("POST /api/mcp-servers", a.handleCreateServer)
	a.handle("GET /api/mcp-servers/{id}", a.handleGetServer)
	a.handle("PUT /api/mcp-servers/{id}", a.handleUpdateServer)
	a.handle("DELETE /api/mcp-servers/{id}", a.handleDeleteServer)

	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, observability.Handler())
	}
	return a
}

// handle registers an authenticated route.
func (a *Adapter) handle(pattern string, h http.HandlerFunc) {
	a.mux.Handle(pattern, a.deps.Auth(h))
}

// Handler returns the complete handler including the default middleware.
// The metrics middleware wraps the mux directly so that it sees the matched
// route pattern.
func (a *Adapter) Handler() http.Handler {
	return transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(a.cfg.Logger),
		observability.MetricsMiddleware,
	)(a.mux)
}

// InFlight exposes the registry of running upstream operations.
func (a *Adapter) InFlight() *transport.InFlightRegistry { return a.inflight }

// decode reads a JSON body of at most MaxBodySize bytes into v.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any) *api.APIError {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return api.NewInvalidRequestError("content_type", "Content-Type must be application/json")
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.cfg.MaxBodySize))
		}
		return api.NewInvalidRequestError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.deps.Health != nil {
		if err := a.deps.Health.HealthCheck(r.Context()); err != nil {
			slog.Warn("health check failed", "error", err)
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAuthorizationRequired answers an authorization-required outcome:
// the flow secrets go into cookies, the redirect URL into the body.
func (a *Adapter) writeAuthorizationRequired(w http.ResponseWriter, authErr *connection.AuthorizationRequiredError) {
	setFlowCookies(w, authErr.Attempt, a.cfg.Cookies)
	transport.WriteJSON(w, http.StatusOK, api.AuthorizationRedirect{
		AuthorizationRequired: true,
		RedirectURL:           authErr.Attempt.AuthorizationURL,
	})
}
