package api

import (
	"encoding/json"
	"time"
)

// TransportKind identifies the wire protocol used to reach a tool server.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
	TransportSSE   TransportKind = "sse"
)

// Valid reports whether k is one of the known transport kinds.
func (k TransportKind) Valid() bool {
	switch k {
	case TransportStdio, TransportHTTP, TransportSSE:
		return true
	}
	return false
}

// ToolDescriptor describes a tool exposed by a tool server. Name is unique
// within a server.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ResourceDescriptor describes a resource exposed by a tool server.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
}

// Content part types.
const (
	ContentTypeText         = "text"
	ContentTypeImage        = "image"
	ContentTypeAudio        = "audio"
	ContentTypeResourceLink = "resource_link"
	ContentTypeResource     = "resource"
)

// ContentPart is one element of a tool result. Which fields are set depends
// on Type. Parts of a type this package does not model carry the original
// JSON in Raw.
type ContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     []byte          `json:"data,omitempty"`
	MIMEType string          `json:"mime_type,omitempty"`
	URI      string          `json:"uri,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// ToolResult is the payload returned by a tool invocation.
type ToolResult struct {
	Content           []ContentPart `json:"content"`
	StructuredContent any           `json:"structured_content,omitempty"`
	IsError           bool          `json:"is_error,omitempty"`
}

// ServerInfo is the implementation name and version a tool server reports
// during the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ConnectResult is returned by a successful connect.
type ConnectResult struct {
	Tools        []ToolDescriptor     `json:"tools"`
	Resources    []ResourceDescriptor `json:"resources"`
	Capabilities map[string]any       `json:"capabilities"`
	ServerInfo   *ServerInfo          `json:"server_info,omitempty"`
}

// AuthorizationRedirect tells the caller to send the user's browser to
// RedirectURL. The transient flow secrets travel as cookies alongside it.
type AuthorizationRedirect struct {
	AuthorizationRequired bool   `json:"authorization_required"`
	RedirectURL           string `json:"redirect_url"`
}

// ConnectRequest is the body of POST /api/mcp/connect.
type ConnectRequest struct {
	URL       string            `json:"url"`
	Transport TransportKind     `json:"transport"`
	Headers   map[string]string `json:"headers,omitempty"`
	ServerID  *int64            `json:"server_id,omitempty"`
}

// CallToolRequest is the body of POST /api/mcp/call-tool.
type CallToolRequest struct {
	URL       string            `json:"url"`
	Transport TransportKind     `json:"transport"`
	Tool      string            `json:"tool"`
	Arguments map[string]any    `json:"arguments,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	ServerID  *int64            `json:"server_id,omitempty"`
}

// ServerRequest is the body for creating or updating a server record.
type ServerRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	URL         string            `json:"url"`
	Transport   TransportKind     `json:"transport"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Server is a registered tool server as returned to its owner. Token
// material is never exposed; Authorized reports whether a token is stored.
type Server struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	URL            string            `json:"url"`
	Transport      TransportKind     `json:"transport"`
	Headers        map[string]string `json:"headers,omitempty"`
	Authorized     bool              `json:"authorized"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ServerList wraps a list of servers.
type ServerList struct {
	Object string   `json:"object"`
	Data   []Server `json:"data"`
}
