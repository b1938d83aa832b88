// Package connection orchestrates tool server sessions for API callers:
// it injects stored credentials, opens a fresh session per call and turns
// authorization failures into either an Unauthorized error or a new
// authorization flow.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/crypt"
	"github.com/rhuss/mcplab/pkg/debug"
	"github.com/rhuss/mcplab/pkg/mcp"
	"github.com/rhuss/mcplab/pkg/oauth"
	"github.com/rhuss/mcplab/pkg/observability"
	"github.com/rhuss/mcplab/pkg/storage"
)

// Opener opens protocol sessions. *mcp.Client implements it.
type Opener interface {
	Open(ctx context.Context, ep mcp.Endpoint) (*mcp.Session, error)
}

// FlowStarter starts authorization flows. *oauth.Service implements it.
type FlowStarter interface {
	Initiate(ctx context.Context, serverURL string, serverID *int64) (*oauth.Attempt, error)
}

// Target identifies the tool server of one call.
type Target struct {
	URL       string
	Transport api.TransportKind
	Headers   map[string]string

	// ServerID refers to a saved server record of the caller. Stored
	// credentials are only used when it is set.
	ServerID *int64
}

// Config holds the collaborators of a Manager.
type Config struct {
	Opener  Opener
	Servers storage.ServerStore
	Cipher  *crypt.Cipher
	Flows   FlowStarter

	// RequestTimeout bounds one complete session. Zero means no bound
	// beyond the caller's context.
	RequestTimeout time.Duration
}

// Manager runs connect and tool calls. It keeps no state between calls.
type Manager struct {
	opener         Opener
	servers        storage.ServerStore
	cipher         *crypt.Cipher
	flows          FlowStarter
	requestTimeout time.Duration
	nowFunc        func() time.Time
}

// New creates a Manager.
func New(cfg Config) *Manager {
	return &Manager{
		opener:         cfg.Opener,
		servers:        cfg.Servers,
		cipher:         cfg.Cipher,
		flows:          cfg.Flows,
		requestTimeout: cfg.RequestTimeout,
		nowFunc:        time.Now,
	}
}

// Connect opens a session to t for owner, lists the server's tools (and
// resources, when announced) and closes the session again. owner may be
// empty for anonymous callers, in which case no stored token is used.
func (m *Manager) Connect(ctx context.Context, owner string, t Target) (*api.ConnectResult, error) {
	start := time.Now()
	result, err := m.connect(ctx, owner, t)
	observability.ConnectsTotal.WithLabelValues(string(t.Transport), outcome(err)).Inc()
	observability.UpstreamLatency.WithLabelValues("connect").Observe(time.Since(start).Seconds())
	return result, err
}

func (m *Manager) connect(ctx context.Context, owner string, t Target) (*api.ConnectResult, error) {
	// The session lives inside opCtx: the SSE transport binds its stream to it.
	opCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	sess, explicit, err := m.open(opCtx, owner, t)
	if err != nil {
		return nil, m.classify(ctx, t, explicit, err)
	}
	defer sess.Close()

	tools, err := sess.ListTools(opCtx)
	if err != nil {
		return nil, m.classify(ctx, t, explicit, err)
	}

	resources := []api.ResourceDescriptor{}
	if sess.SupportsResources() {
		listed, err := sess.ListResources(opCtx)
		if err != nil {
			slog.Warn("listing resources failed", "url", t.URL, "error", err)
		} else {
			resources = listed
		}
	}

	return &api.ConnectResult{
		Tools:        tools,
		Resources:    resources,
		Capabilities: sess.Capabilities(),
		ServerInfo:   sess.ServerInfo(),
	}, nil
}

// CallTool invokes one tool on t for owner. It applies the same credential
// policy as Connect and never retries.
func (m *Manager) CallTool(ctx context.Context, owner string, t Target, tool string, args map[string]any) (*api.ToolResult, error) {
	start := time.Now()
	result, err := m.callTool(ctx, owner, t, tool, args)
	observability.ToolCallsTotal.WithLabelValues(string(t.Transport), outcome(err)).Inc()
	observability.UpstreamLatency.WithLabelValues("call_tool").Observe(time.Since(start).Seconds())
	return result, err
}

func (m *Manager) callTool(ctx context.Context, owner string, t Target, tool string, args map[string]any) (*api.ToolResult, error) {
	opCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	sess, explicit, err := m.open(opCtx, owner, t)
	if err != nil {
		return nil, m.classify(ctx, t, explicit, err)
	}
	defer sess.Close()

	result, err := sess.CallTool(opCtx, tool, args)
	if err != nil {
		return nil, m.classify(ctx, t, explicit, err)
	}
	return result, nil
}

// open prepares the outbound headers and performs the handshake. It reports
// whether the caller supplied its own Authorization header.
func (m *Manager) open(ctx context.Context, owner string, t Target) (*mcp.Session, bool, error) {
	headers, explicit, err := m.outboundHeaders(ctx, owner, t)
	if err != nil {
		return nil, explicit, err
	}

	sess, err := m.opener.Open(ctx, mcp.Endpoint{URL: t.URL, Transport: t.Transport, Headers: headers})
	return sess, explicit, err
}

// outboundHeaders merges the record's static headers with the caller's and
// injects the stored bearer token unless the caller set Authorization.
func (m *Manager) outboundHeaders(ctx context.Context, owner string, t Target) (map[string]string, bool, error) {
	headers := make(map[string]string)
	explicit := hasAuthorization(t.Headers)

	var rec *storage.ServerRecord
	if owner != "" && t.ServerID != nil {
		var err error
		rec, err = m.servers.GetServer(ctx, owner, *t.ServerID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			debug.Log("storage", "server record not found for caller", "server_id", *t.ServerID)
			rec = nil
		case err != nil:
			return nil, explicit, fmt.Errorf("loading server %d: %w", *t.ServerID, err)
		}
	}

	if rec != nil {
		maps.Copy(headers, rec.Headers)
		if hasAuthorization(rec.Headers) {
			explicit = true
		}
	}
	for k, v := range t.Headers {
		// Caller headers replace stored ones regardless of case.
		for existing := range headers {
			if strings.EqualFold(existing, k) {
				delete(headers, existing)
			}
		}
		headers[k] = v
	}

	if explicit || rec == nil {
		return headers, explicit, nil
	}
	if token := m.storedToken(rec, t.URL); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return headers, false, nil
}

// storedToken returns the usable plaintext access token of rec, or "".
func (m *Manager) storedToken(rec *storage.ServerRecord, targetURL string) string {
	tok := rec.Token
	if tok == nil {
		return ""
	}
	if !sameURL(rec.URL, targetURL) {
		slog.Warn("not sending stored token to a different URL", "server_id", rec.ID, "url", targetURL)
		observability.StoredTokenSkipsTotal.WithLabelValues("url_mismatch").Inc()
		return ""
	}
	if !strings.EqualFold(tok.TokenType, "bearer") {
		debug.Log("oauth", "stored token is not a bearer token", "server_id", rec.ID, "token_type", tok.TokenType)
		observability.StoredTokenSkipsTotal.WithLabelValues("not_bearer").Inc()
		return ""
	}
	if tok.Expired(m.nowFunc()) {
		slog.Info("stored token expired", "server_id", rec.ID, "expires_at", tok.ExpiresAt)
		observability.StoredTokenSkipsTotal.WithLabelValues("expired").Inc()
		return ""
	}
	plain, err := m.cipher.Decrypt(tok.EncryptedAccessToken)
	if err != nil {
		slog.Warn("stored token cannot be decrypted", "server_id", rec.ID, "error", err)
		observability.StoredTokenSkipsTotal.WithLabelValues("undecryptable").Inc()
		return ""
	}
	return plain
}

// classify maps a session failure to the error returned to the caller.
func (m *Manager) classify(ctx context.Context, t Target, explicit bool, err error) error {
	switch {
	case errors.Is(err, mcp.ErrUnsupportedTransport), errors.Is(err, mcp.ErrToolNotFound):
		return err
	case mcp.IsAuthorizationRequired(err):
		if explicit {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		attempt, ierr := m.flows.Initiate(ctx, t.URL, t.ServerID)
		if ierr != nil {
			return ierr
		}
		return &AuthorizationRequiredError{Attempt: attempt}
	default:
		return &ConnectionError{URL: t.URL, Err: err}
	}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.requestTimeout)
}

func hasAuthorization(h map[string]string) bool {
	for k := range h {
		if strings.EqualFold(k, "Authorization") {
			return true
		}
	}
	return false
}

func sameURL(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

func outcome(err error) string {
	var authErr *AuthorizationRequiredError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &authErr):
		return "authorization_required"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, mcp.ErrUnsupportedTransport):
		return "unsupported_transport"
	case errors.Is(err, mcp.ErrToolNotFound):
		return "tool_not_found"
	default:
		return "failed"
	}
}
