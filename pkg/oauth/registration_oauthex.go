//go:build mcp_go_client_oauth

package oauth

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/oauthex"
)

// registerStrict registers through the go-sdk oauthex client, which only
// accepts a 201 Created answer with a client_id. The scope is left out,
// which registers the client with no scope.
func registerStrict(ctx context.Context, hc *http.Client, endpoint string, p registrationParams) (*Client, error) {
	resp, err := oauthex.RegisterClient(ctx, endpoint, &oauthex.ClientRegistrationMetadata{
		RedirectURIs:  []string{p.RedirectURI},
		GrantTypes:    []string{"authorization_code"},
		ResponseTypes: []string{"code"},
		ClientName:    p.ClientName,
	}, hc)
	if err != nil {
		return nil, err
	}
	return &Client{ClientID: resp.ClientID, ClientSecret: resp.ClientSecret}, nil
}
