package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/debug"
)

// Options configures a Client.
type Options struct {
	// ClientName and ClientVersion are reported to servers in the handshake.
	ClientName    string
	ClientVersion string

	// AllowStdio permits spawning local processes for the stdio transport.
	AllowStdio bool

	// HTTPTransport is the base round tripper for http and sse sessions.
	// Defaults to http.DefaultTransport.
	HTTPTransport http.RoundTripper
}

// Client opens sessions to tool servers. It holds no per-server state and
// is safe for concurrent use.
type Client struct {
	opts Options
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.ClientName == "" {
		opts.ClientName = "mcplab"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "dev"
	}
	return &Client{opts: opts}
}

// Session is an open, initialized protocol session to one tool server.
// It must be closed by the caller.
type Session struct {
	cs       *mcp.ClientSession
	recorder *statusRecorder
	endpoint string
}

// Open creates the transport for ep and performs the protocol handshake.
func (c *Client) Open(ctx context.Context, ep Endpoint) (*Session, error) {
	rec := newStatusRecorder(c.opts.HTTPTransport, ep.Headers)

	transport, err := c.newTransport(ep, rec)
	if err != nil {
		return nil, err
	}

	s, err := c.connect(ctx, transport, rec)
	if err != nil {
		return nil, err
	}
	if ep.Transport == api.TransportStdio {
		s.endpoint = "stdio"
	} else {
		s.endpoint = ep.URL
	}
	return s, nil
}

// OpenWithTransport performs the handshake over an existing SDK transport,
// for example an in-memory transport in tests.
func (c *Client) OpenWithTransport(ctx context.Context, transport mcp.Transport) (*Session, error) {
	return c.connect(ctx, transport, nil)
}

func (c *Client) connect(ctx context.Context, transport mcp.Transport, rec *statusRecorder) (*Session, error) {
	client := mcp.NewClient(
		&mcp.Implementation{Name: c.opts.ClientName, Version: c.opts.ClientVersion},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)

	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, rec.classify(fmt.Errorf("handshake: %w", err))
	}
	return &Session{cs: cs, recorder: rec}, nil
}

// Capabilities returns the capabilities the server announced, as a generic
// JSON object.
func (s *Session) Capabilities() map[string]any {
	caps := map[string]any{}
	res := s.cs.InitializeResult()
	if res == nil || res.Capabilities == nil {
		return caps
	}
	data, err := json.Marshal(res.Capabilities)
	if err != nil {
		return caps
	}
	_ = json.Unmarshal(data, &caps)
	return caps
}

// ServerInfo returns the implementation info the server reported.
func (s *Session) ServerInfo() *api.ServerInfo {
	res := s.cs.InitializeResult()
	if res == nil || res.ServerInfo == nil {
		return nil
	}
	return &api.ServerInfo{Name: res.ServerInfo.Name, Version: res.ServerInfo.Version}
}

// SupportsResources reports whether the server announced the resources
// capability.
func (s *Session) SupportsResources() bool {
	res := s.cs.InitializeResult()
	return res != nil && res.Capabilities != nil && res.Capabilities.Resources != nil
}

// ListTools returns every tool the server exposes, following pagination.
func (s *Session) ListTools(ctx context.Context) ([]api.ToolDescriptor, error) {
	tools := []api.ToolDescriptor{}
	for tool, err := range s.cs.Tools(ctx, nil) {
		if err != nil {
			return nil, s.recorder.classify(fmt.Errorf("listing tools from %s: %w", s.endpoint, err))
		}
		td, err := convertTool(tool)
		if err != nil {
			return nil, fmt.Errorf("converting tool %q: %w", tool.Name, err)
		}
		tools = append(tools, td)
	}
	return tools, nil
}

// ListResources returns every resource the server exposes.
func (s *Session) ListResources(ctx context.Context) ([]api.ResourceDescriptor, error) {
	resources := []api.ResourceDescriptor{}
	for r, err := range s.cs.Resources(ctx, nil) {
		if err != nil {
			return nil, s.recorder.classify(fmt.Errorf("listing resources from %s: %w", s.endpoint, err))
		}
		resources = append(resources, api.ResourceDescriptor{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MIMEType,
		})
	}
	return resources, nil
}

// CallTool invokes a single tool. A tool that runs and reports failure is
// not an error: the result comes back with IsError set.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*api.ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	debug.Log("mcp", "calling tool", "endpoint", s.endpoint, "tool", name)

	result, err := s.cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		err = s.recorder.classify(err)
		if !IsAuthorizationRequired(err) && isToolNotFound(err) {
			return nil, fmt.Errorf("%w: %q on %s", ErrToolNotFound, name, s.endpoint)
		}
		return nil, fmt.Errorf("calling tool %q: %w", name, err)
	}
	return convertResult(result), nil
}

// Close ends the session. Errors from an already broken connection are
// ignored.
func (s *Session) Close() error {
	err := s.cs.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		debug.Log("mcp", "closing session", "endpoint", s.endpoint, "error", err)
	}
	return nil
}
