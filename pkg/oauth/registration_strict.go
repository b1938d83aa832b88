//go:build !mcp_go_client_oauth

package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

type registrationRequest struct {
	RedirectURIs  []string `json:"redirect_uris"`
	GrantTypes    []string `json:"grant_types"`
	ResponseTypes []string `json:"response_types"`
	Scope         string   `json:"scope"`
	ClientName    string   `json:"client_name,omitempty"`
}

type registrationResponse struct {
	ClientID     string  `json:"client_id"`
	ClientSecret *string `json:"client_secret,omitempty"`
}

// registerStrict posts an RFC 7591 registration request and accepts only a
// 201 Created answer with a client_id. Builds tagged mcp_go_client_oauth
// use the go-sdk oauthex client instead.
func registerStrict(ctx context.Context, hc *http.Client, endpoint string, p registrationParams) (*Client, error) {
	payload, err := json.Marshal(registrationRequest{
		RedirectURIs:  []string{p.RedirectURI},
		GrantTypes:    []string{"authorization_code"},
		ResponseTypes: []string{"code"},
		Scope:         "",
		ClientName:    p.ClientName,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("registration returned status %d", resp.StatusCode)
	}

	var rr registrationResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("decoding registration response: %w", err)
	}
	if rr.ClientID == "" {
		return nil, errors.New("registration response has no client_id")
	}
	c := &Client{ClientID: rr.ClientID}
	if rr.ClientSecret != nil {
		c.ClientSecret = *rr.ClientSecret
	}
	return c, nil
}
