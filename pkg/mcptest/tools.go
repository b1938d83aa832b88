// Package mcptest provides in-process tool servers and a fake OAuth
// authorization server for exercising mcplab end to end.
//
// The handlers are plain http.Handlers so they can back an httptest.Server
// in tests as well as a real listener in cmd/mcp-test-server.
package mcptest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReadmeURI is the URI of the single resource exposed by NewToolServer.
const ReadmeURI = "mcplab://readme"

// EchoInput is the argument object of the echo tool.
type EchoInput struct {
	Message string `json:"message" jsonschema:"the message to echo back"`
}

// NewToolServer returns a protocol server exposing the tools echo, get_time
// and fail plus one text resource.
func NewToolServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "mcplab-test-server", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in EchoInput) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Echo: " + in.Message}},
		}, nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("Current time: %s", time.Now().UTC().Format(time.RFC3339)),
			}},
		}, nil, nil
	})

	// fail runs but reports a tool-level error.
	server.AddTool(&mcp.Tool{
		Name:        "fail",
		Description: "Always reports a tool error",
		InputSchema: map[string]any{"type": "object"},
	}, func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "tool failed on purpose"}},
		}, nil
	})

	server.AddResource(&mcp.Resource{
		URI:         ReadmeURI,
		Name:        "readme",
		Description: "About this server",
		MIMEType:    "text/plain",
	}, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     "mcplab test server",
			}},
		}, nil
	})

	return server
}

// StreamableHandler serves server over the streamable HTTP transport.
func StreamableHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

// SSEHandler serves server over the legacy HTTP+SSE transport.
func SSEHandler(server *mcp.Server) http.Handler {
	return mcp.NewSSEHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
