package mcp

import (
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/debug"
)

// Endpoint identifies a tool server and the headers to send it.
type Endpoint struct {
	// URL is the server endpoint for http and sse, or the command line for stdio.
	URL       string
	Transport api.TransportKind
	Headers   map[string]string
}

// newTransport builds the SDK transport for ep. HTTP-based transports route
// through rec so that authorization failures can be classified afterwards.
func (c *Client) newTransport(ep Endpoint, rec *statusRecorder) (mcp.Transport, error) {
	switch ep.Transport {
	case api.TransportHTTP:
		return &mcp.StreamableClientTransport{
			Endpoint:   ep.URL,
			HTTPClient: &http.Client{Transport: rec},
			// Sessions are short lived; no server-initiated messages are consumed.
			DisableStandaloneSSE: true,
		}, nil

	case api.TransportSSE:
		return &mcp.SSEClientTransport{
			Endpoint:   ep.URL,
			HTTPClient: &http.Client{Transport: rec},
		}, nil

	case api.TransportStdio:
		if !c.opts.AllowStdio {
			return nil, fmt.Errorf("%w: stdio is disabled", ErrUnsupportedTransport)
		}
		argv := strings.Fields(ep.URL)
		if len(argv) == 0 {
			return nil, fmt.Errorf("%w: empty stdio command", ErrUnsupportedTransport)
		}
		if len(ep.Headers) > 0 {
			debug.Log("mcp", "ignoring headers for stdio transport", "command", argv[0])
		}
		return &mcp.CommandTransport{Command: exec.Command(argv[0], argv[1:]...)}, nil

	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedTransport, ep.Transport)
	}
}

// statusRecorder is an http.RoundTripper that adds the endpoint headers to
// every request and remembers the first 401/403 answer it sees.
type statusRecorder struct {
	base    http.RoundTripper
	headers map[string]string

	mu     sync.Mutex
	status int
}

func newStatusRecorder(base http.RoundTripper, headers map[string]string) *statusRecorder {
	if base == nil {
		base = http.DefaultTransport
	}
	return &statusRecorder{base: base, headers: headers}
}

func (t *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		t.mu.Lock()
		if t.status == 0 {
			t.status = resp.StatusCode
		}
		t.mu.Unlock()
		debug.Log("mcp", "server rejected request",
			"method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode)
	}
	return resp, nil
}

// classify turns err into an *AuthorizationRequiredError when the session
// saw a 401/403. Other errors are returned as is.
func (t *statusRecorder) classify(err error) error {
	if err == nil || t == nil {
		return err
	}
	t.mu.Lock()
	status := t.status
	t.mu.Unlock()

	if status == 0 {
		return err
	}
	return &AuthorizationRequiredError{StatusCode: status, Err: err}
}
