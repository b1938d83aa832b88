package mcptest

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
)

// BearerGuard rejects requests that do not carry the expected bearer token.
// It remembers the Authorization headers it has seen.
type BearerGuard struct {
	// Token is the accepted access token.
	Token string

	mu       sync.Mutex
	seen     []string
	rejected int
}

// Wrap protects next.
func (g *BearerGuard) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")

		g.mu.Lock()
		g.seen = append(g.seen, authz)
		g.mu.Unlock()

		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(g.Token)) != 1 {
			g.mu.Lock()
			g.rejected++
			g.mu.Unlock()
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp", error="invalid_token"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LastAuthorization returns the most recent Authorization header, or "".
func (g *BearerGuard) LastAuthorization() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.seen) == 0 {
		return ""
	}
	return g.seen[len(g.seen)-1]
}

// Rejected returns how many requests were refused.
func (g *BearerGuard) Rejected() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rejected
}
