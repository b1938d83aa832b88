// Package api defines the wire types shared by the mcplab HTTP surface and
// the connection core: tool and resource descriptors, tool results, the
// connect/call-tool request shapes, server records as seen by clients, and
// the structured APIError envelope.
//
// The package has no external dependencies and performs no I/O. JSON field
// names use snake_case throughout.
//
// Core types:
//   - [TransportKind]: stdio, http or sse
//   - [ToolDescriptor]: name, description and input schema of a server tool
//   - [ToolResult]: content parts returned by a tool invocation
//   - [ConnectResult]: tools, resources and capabilities of a connected server
//   - [AuthorizationRedirect]: instruction to start an interactive OAuth flow
//   - [APIError]: structured error with type, code, param, and message
package api
