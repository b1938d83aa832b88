package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rhuss/mcplab/pkg/oauth"
)

// Flow cookie name prefixes. The server id, when known, is appended as
// "_<id>" so that flows for different servers do not collide.
const (
	stateCookie    = "mcp_auth_state"
	verifierCookie = "mcp_code_verifier"
	nonceCookie    = "mcp_oidc_nonce"
)

// CookieConfig controls the attributes of the flow cookies.
type CookieConfig struct {
	// Secure marks cookies HTTPS-only. Enabled in production.
	Secure bool
	MaxAge time.Duration
}

func cookieName(prefix string, serverID *int64) string {
	if serverID == nil {
		return prefix
	}
	return prefix + "_" + strconv.FormatInt(*serverID, 10)
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// setFlowCookies stashes the transient secrets of attempt in the browser.
func setFlowCookies(w http.ResponseWriter, attempt *oauth.Attempt, cfg CookieConfig) {
	maxAge := int(cfg.MaxAge.Seconds())
	http.SetCookie(w, cfg.cookie(cookieName(stateCookie, attempt.ServerID), attempt.State, maxAge))
	http.SetCookie(w, cfg.cookie(cookieName(verifierCookie, attempt.ServerID), attempt.CodeVerifier, maxAge))
	http.SetCookie(w, cfg.cookie(cookieName(nonceCookie, attempt.ServerID), attempt.Nonce, maxAge))
}

// readStash returns the stashed secrets for the flow of serverID. Missing
// cookies yield empty fields.
func readStash(r *http.Request, serverID *int64) oauth.Stash {
	value := func(prefix string) string {
		c, err := r.Cookie(cookieName(prefix, serverID))
		if err != nil {
			return ""
		}
		return c.Value
	}
	return oauth.Stash{
		State:        value(stateCookie),
		CodeVerifier: value(verifierCookie),
		Nonce:        value(nonceCookie),
	}
}

// clearFlowCookies expires the three flow cookies of serverID.
func clearFlowCookies(w http.ResponseWriter, serverID *int64, cfg CookieConfig) {
	for _, prefix := range []string{stateCookie, verifierCookie, nonceCookie} {
		http.SetCookie(w, cfg.cookie(cookieName(prefix, serverID), "", -1))
	}
}
