package mcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/mcptest"
)

// openInMemory connects a Client to the test tool server without a network.
func openInMemory(t *testing.T) *Session {
	t.Helper()
	ctx := context.Background()

	serverT, clientT := sdk.NewInMemoryTransports()
	ss, err := mcptest.NewToolServer().Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	s, err := NewClient(Options{}).OpenWithTransport(ctx, clientT)
	if err != nil {
		t.Fatalf("OpenWithTransport: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_ListTools(t *testing.T) {
	s := openInMemory(t)

	tools, err := s.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	byName := make(map[string]api.ToolDescriptor)
	for _, td := range tools {
		byName[td.Name] = td
	}
	for _, name := range []string{"echo", "get_time", "fail"} {
		if _, ok := byName[name]; !ok {
			t.Errorf("tool %q missing from %v", name, tools)
		}
	}
	echo := byName["echo"]
	if echo.Description == "" {
		t.Error("echo description is empty")
	}
	if !strings.Contains(string(echo.InputSchema), `"message"`) {
		t.Errorf("echo input schema = %s, want message property", echo.InputSchema)
	}
}

func TestSession_HandshakeInfo(t *testing.T) {
	s := openInMemory(t)

	info := s.ServerInfo()
	if info == nil || info.Name != "mcplab-test-server" || info.Version != "v1.0.0" {
		t.Errorf("ServerInfo = %+v", info)
	}
	caps := s.Capabilities()
	if _, ok := caps["tools"]; !ok {
		t.Errorf("capabilities %v missing tools", caps)
	}
	if !s.SupportsResources() {
		t.Fatal("server with a resource should announce resources")
	}

	resources, err := s.ListResources(context.Background())
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources) != 1 || resources[0].URI != mcptest.ReadmeURI {
		t.Errorf("resources = %+v", resources)
	}
	if resources[0].MIMEType != "text/plain" {
		t.Errorf("MIMEType = %q", resources[0].MIMEType)
	}
}

func TestSession_CallTool(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	res, err := s.CallTool(ctx, "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool echo: %v", err)
	}
	if res.IsError {
		t.Error("echo should not report an error")
	}
	if len(res.Content) != 1 || res.Content[0].Type != api.ContentTypeText || res.Content[0].Text != "Echo: hi" {
		t.Errorf("content = %+v", res.Content)
	}

	res, err = s.CallTool(ctx, "fail", nil)
	if err != nil {
		t.Fatalf("CallTool fail: %v", err)
	}
	if !res.IsError {
		t.Error("fail should report IsError")
	}
}

func TestSession_CallUnknownTool(t *testing.T) {
	s := openInMemory(t)

	_, err := s.CallTool(context.Background(), "does_not_exist", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}
	if IsAuthorizationRequired(err) {
		t.Error("unknown tool must not be classified as an authorization failure")
	}
}

func TestOpen_StreamableHTTPWithHeaders(t *testing.T) {
	guard := &mcptest.BearerGuard{Token: "abc"}
	srv := httptest.NewServer(guard.Wrap(mcptest.StreamableHandler(mcptest.NewToolServer())))
	defer srv.Close()

	s, err := NewClient(Options{}).Open(context.Background(), Endpoint{
		URL:       srv.URL,
		Transport: api.TransportHTTP,
		Headers:   map[string]string{"Authorization": "Bearer abc", "X-Trace": "1"},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	tools, err := s.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) == 0 {
		t.Error("expected tools")
	}
	if got := guard.LastAuthorization(); got != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer abc")
	}
}

func TestOpen_Unauthorized(t *testing.T) {
	guard := &mcptest.BearerGuard{Token: "abc"}
	srv := httptest.NewServer(guard.Wrap(mcptest.StreamableHandler(mcptest.NewToolServer())))
	defer srv.Close()

	_, err := NewClient(Options{}).Open(context.Background(), Endpoint{
		URL:       srv.URL,
		Transport: api.TransportHTTP,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var authErr *AuthorizationRequiredError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v (%T), want *AuthorizationRequiredError", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
	}
}

func TestOpen_SSE(t *testing.T) {
	srv := httptest.NewServer(mcptest.SSEHandler(mcptest.NewToolServer()))
	defer srv.Close()

	s, err := NewClient(Options{}).Open(context.Background(), Endpoint{
		URL:       srv.URL,
		Transport: api.TransportSSE,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	res, err := s.CallTool(context.Background(), "echo", map[string]any{"message": "over sse"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.Content[0].Text != "Echo: over sse" {
		t.Errorf("text = %q", res.Content[0].Text)
	}
}

func TestOpen_UnsupportedTransport(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ep   Endpoint
	}{
		{"unknown kind", Options{}, Endpoint{URL: "ws://localhost/x", Transport: "websocket"}},
		{"stdio disabled", Options{}, Endpoint{URL: "mcp-server --stdio", Transport: api.TransportStdio}},
		{"stdio empty command", Options{AllowStdio: true}, Endpoint{URL: "  ", Transport: api.TransportStdio}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.opts).Open(context.Background(), tt.ep)
			if !errors.Is(err, ErrUnsupportedTransport) {
				t.Errorf("err = %v, want ErrUnsupportedTransport", err)
			}
		})
	}
}

func TestConvertContent(t *testing.T) {
	tests := []struct {
		name string
		in   sdk.Content
		want api.ContentPart
	}{
		{
			"image",
			&sdk.ImageContent{Data: []byte{1, 2}, MIMEType: "image/png"},
			api.ContentPart{Type: api.ContentTypeImage, Data: []byte{1, 2}, MIMEType: "image/png"},
		},
		{
			"resource link",
			&sdk.ResourceLink{URI: "file:///a.txt", Name: "a.txt", MIMEType: "text/plain"},
			api.ContentPart{Type: api.ContentTypeResourceLink, URI: "file:///a.txt", Text: "a.txt", MIMEType: "text/plain"},
		},
		{
			"embedded resource",
			&sdk.EmbeddedResource{Resource: &sdk.ResourceContents{URI: "mem://x", MIMEType: "text/plain", Text: "body"}},
			api.ContentPart{Type: api.ContentTypeResource, URI: "mem://x", Text: "body", MIMEType: "text/plain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertContent(tt.in)
			if got.Type != tt.want.Type || got.Text != tt.want.Text || got.URI != tt.want.URI ||
				got.MIMEType != tt.want.MIMEType || string(got.Data) != string(tt.want.Data) {
				t.Errorf("convertContent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
