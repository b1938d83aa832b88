package transport

import (
	"context"
	"net/url"

	"github.com/rhuss/mcplab/pkg/api"
	"github.com/rhuss/mcplab/pkg/connection"
	"github.com/rhuss/mcplab/pkg/oauth"
)

// Connector runs connect and tool calls on behalf of a caller.
// *connection.Manager implements it.
type Connector interface {
	Connect(ctx context.Context, owner string, t connection.Target) (*api.ConnectResult, error)
	CallTool(ctx context.Context, owner string, t connection.Target, tool string, args map[string]any) (*api.ToolResult, error)
}

// CallbackCompleter finishes authorization flows. *oauth.Service
// implements it.
type CallbackCompleter interface {
	CompleteCallback(ctx context.Context, owner string, fs *oauth.FlowState, query url.Values, stash oauth.Stash) error
}
