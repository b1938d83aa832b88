// Package mcp opens protocol sessions to remote tool servers and speaks the
// Model Context Protocol over them: handshake, tool and resource discovery,
// and tool invocation.
//
// The package wraps the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk). Each transport kind maps to one
// SDK transport: http to the streamable HTTP client, sse to the SSE client,
// and stdio to a spawned command (only when explicitly allowed).
//
// Every HTTP request of a session carries the caller's header map verbatim.
// No retry or credential injection happens here. A 401 or 403 answer from
// the server surfaces as *AuthorizationRequiredError so callers can start an
// OAuth flow.
package mcp
