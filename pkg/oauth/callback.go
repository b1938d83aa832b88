package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/rhuss/mcplab/pkg/debug"
	"github.com/rhuss/mcplab/pkg/observability"
	"github.com/rhuss/mcplab/pkg/storage"
)

// Stash is the per-flow data saved by the caller when the flow started.
type Stash struct {
	State        string
	CodeVerifier string
	Nonce        string
}

func (s Stash) complete() bool {
	return s.State != "" && s.CodeVerifier != "" && s.Nonce != ""
}

// ParseCallbackState validates the shape of a callback query and decodes
// its state. A callback needs a state and either a code or an error.
func ParseCallbackState(query url.Values) (*FlowState, error) {
	if query.Get("state") == "" {
		return nil, fmt.Errorf("%w: missing state", ErrInvalidState)
	}
	if query.Get("code") == "" && query.Get("error") == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidState)
	}
	return DecodeState(query.Get("state"))
}

// CompleteCallback finishes the flow described by fs for owner: it checks
// the stashed values, exchanges the code and stores the encrypted access
// token on the server record. Nothing is persisted unless every step
// succeeds.
func (s *Service) CompleteCallback(ctx context.Context, owner string, fs *FlowState, query url.Values, stash Stash) error {
	err := s.completeCallback(ctx, owner, fs, query, stash)
	outcome := "success"
	if err != nil {
		outcome = ErrorCode(err)
		var provErr *ProviderError
		if errors.As(err, &provErr) {
			outcome = "provider_error"
		}
	}
	observability.OAuthFlowsTotal.WithLabelValues("callback", outcome).Inc()
	return err
}

func (s *Service) completeCallback(ctx context.Context, owner string, fs *FlowState, query url.Values, stash Stash) error {
	if !stash.complete() {
		return ErrMissingFlowContext
	}
	if subtle.ConstantTimeCompare([]byte(query.Get("state")), []byte(stash.State)) != 1 {
		return ErrStateMismatch
	}

	md, err := s.discoverer.Discover(ctx, fs.ServerURL)
	if err != nil {
		return err
	}
	client, err := s.registrar.ClientFor(ctx, md)
	if err != nil {
		return err
	}

	if iss := query.Get("iss"); iss != "" && iss != md.Issuer {
		if strings.TrimSuffix(iss, "/") == strings.TrimSuffix(md.Issuer, "/") {
			slog.Info("normalized issuer trailing slash", "iss", iss, "issuer", md.Issuer)
		} else {
			debug.Log("oauth", "callback iss differs from discovered issuer", "iss", iss, "issuer", md.Issuer)
		}
	}

	if code := query.Get("error"); code != "" {
		return &ProviderError{Code: code, Description: query.Get("error_description")}
	}

	tok, err := s.exchange(ctx, md, client, query.Get("code"), stash)
	if err != nil {
		return err
	}

	if fs.ServerID == nil {
		slog.Warn("authorization completed for unsaved server; token discarded", "server_url", fs.ServerURL)
		return nil
	}

	encrypted, err := s.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	st := storage.ServerToken{
		EncryptedAccessToken: encrypted,
		TokenType:            tok.Type(),
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		st.ExpiresAt = &exp
	}
	if err := s.servers.SaveServerToken(ctx, owner, *fs.ServerID, st); err != nil {
		return fmt.Errorf("storing token for server %d: %w", *fs.ServerID, err)
	}

	slog.Info("stored access token", "server_id", *fs.ServerID, "issuer", md.Issuer, "expires_at", st.ExpiresAt)
	return nil
}

func (s *Service) exchange(ctx context.Context, md *Metadata, client *Client, code string, stash Stash) (*oauth2.Token, error) {
	if md.TokenEndpoint == "" {
		return nil, &TokenExchangeError{Code: "invalid_metadata", Description: "no token_endpoint"}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.oauthConfig(md, client).Exchange(ctx, code, oauth2.VerifierOption(stash.CodeVerifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			desc := re.ErrorDescription
			if re.ErrorCode == "" && re.Response != nil {
				desc = fmt.Sprintf("HTTP %d", re.Response.StatusCode)
			}
			return nil, &TokenExchangeError{Code: re.ErrorCode, Description: desc, Err: err}
		}
		return nil, &TokenExchangeError{Err: err}
	}

	if err := checkNonce(tok, stash.Nonce); err != nil {
		return nil, err
	}
	return tok, nil
}

// checkNonce compares the nonce of an ID token in the token response with
// the stashed one. The ID token came directly from the token endpoint, so
// its signature is not verified here.
func checkNonce(tok *oauth2.Token, expected string) error {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return &TokenExchangeError{Code: "invalid_id_token", Err: err}
	}
	nonce, _ := claims["nonce"].(string)
	if subtle.ConstantTimeCompare([]byte(nonce), []byte(expected)) != 1 {
		return &TokenExchangeError{Code: "invalid_nonce", Description: "ID token nonce does not match"}
	}
	return nil
}

// RedirectTarget returns where the browser goes after a callback for
// serverID. errCode is empty on success.
func RedirectTarget(dashboardPath string, serverID *int64, errCode string) string {
	target := strings.TrimSuffix(dashboardPath, "/")
	if target == "" {
		target = "/"
	}
	if serverID != nil {
		target = fmt.Sprintf("%s/%d", strings.TrimSuffix(target, "/"), *serverID)
	}

	q := url.Values{}
	if errCode != "" {
		q.Set("error", errCode)
	} else if serverID != nil {
		q.Set("auto_connect", "true")
	}
	if len(q) == 0 {
		return target
	}
	return target + "?" + q.Encode()
}
