package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/debug"
)

// Middleware authenticates every request it wraps and stores the identity
// in the request context. Unauthenticated routes such as health checks are
// registered without it.
func Middleware(chain *Chain) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := chain.Authenticate(r.Context(), r)
			if res.Vote != Accept || res.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", res.Err,
				)
				writeUnauthenticated(w)
				return
			}
			if res.Identity.Subject == "" {
				slog.Error("authenticator accepted an identity without subject")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.NewServerError("internal authentication error")})
				return
			}

			debug.Log("http", "authenticated", "subject", res.Identity.Subject, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), res.Identity)))
		})
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="mcplab"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: &api.APIError{
		Type:    api.ErrorTypeUnauthorized,
		Code:    "unauthenticated",
		Message: "authentication required",
	}})
}
