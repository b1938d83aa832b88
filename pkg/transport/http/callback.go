package http

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/auth"
	"github.com/rhuss/mcplab/pkg/oauth"
	"github.com/rhuss/mcplab/pkg/transport"
)

// handleCallback handles GET /api/auth/mcp/callback, the redirect target of
// every authorization flow.
func (a *Adapter) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	fs, err := oauth.ParseCallbackState(query)
	if err != nil {
		slog.Warn("rejecting malformed authorization callback", "error", err)
		writeCallbackError(w, err)
		return
	}

	stash := readStash(r, fs.ServerID)
	err = a.deps.Callbacks.CompleteCallback(r.Context(), auth.Owner(r.Context()), fs, query, stash)

	if err != nil && !oauth.ShouldClearFlowSecrets(err) {
		slog.Warn("authorization callback without usable flow context", "error", err)
		writeCallbackError(w, err)
		return
	}

	// Past the stash check the secrets are spent whatever the outcome.
	clearFlowCookies(w, fs.ServerID, a.cfg.Cookies)

	code := ""
	if err != nil {
		code = oauth.ErrorCode(err)
		slog.Warn("authorization callback failed", "server_url", fs.ServerURL, "code", code, "error", err)
	}
	http.Redirect(w, r, oauth.RedirectTarget(a.cfg.DashboardPath, fs.ServerID, code), http.StatusFound)
}

func writeCallbackError(w http.ResponseWriter, err error) {
	e := api.NewInvalidRequestError("state", err.Error())
	e.Code = oauth.ErrorCode(err)
	transport.WriteAPIError(w, e)
}
