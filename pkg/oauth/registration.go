package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/rhuss/mcplab/pkg/debug"
	"github.com/rhuss/mcplab/pkg/observability"
	"github.com/rhuss/mcplab/pkg/storage"
)

const maxRegistrationResponse = 64 << 10

// Client holds the credentials of this application at one authorization
// server. An empty ClientSecret denotes a public client.
type Client struct {
	ClientID     string
	ClientSecret string
}

// Public reports whether the client authenticates without a secret.
func (c *Client) Public() bool { return c.ClientSecret == "" }

// Registrar returns the stored client for an issuer, registering one
// dynamically (RFC 7591) the first time an issuer is seen.
type Registrar struct {
	store       storage.OAuthClientStore
	httpClient  *http.Client
	redirectURI string
	clientName  string

	group singleflight.Group
}

// NewRegistrar creates a Registrar. redirectURI is the callback URL
// registered with every authorization server.
func NewRegistrar(store storage.OAuthClientStore, httpClient *http.Client, redirectURI, clientName string) *Registrar {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Registrar{
		store:       store,
		httpClient:  httpClient,
		redirectURI: redirectURI,
		clientName:  clientName,
	}
}

// RedirectURI returns the callback URL used for registration and
// authorization requests.
func (r *Registrar) RedirectURI() string { return r.redirectURI }

// ClientFor returns credentials for the authorization server described by md.
// Concurrent calls for the same issuer share one registration. A caller whose
// context ends stops waiting, but the shared registration keeps running for
// the others; the HTTP client timeout bounds it.
func (r *Registrar) ClientFor(ctx context.Context, md *Metadata) (*Client, error) {
	if c, err := r.lookup(ctx, md.Issuer); err != nil || c != nil {
		return c, err
	}

	ch := r.group.DoChan(md.Issuer, func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		// Another process may have registered meanwhile.
		if c, err := r.lookup(sctx, md.Issuer); err != nil || c != nil {
			return c, err
		}
		return r.register(sctx, md)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			debug.Log("oauth", "shared in-flight client registration", "issuer", md.Issuer)
		}
		return res.Val.(*Client), nil
	}
}

func (r *Registrar) lookup(ctx context.Context, issuer string) (*Client, error) {
	rec, err := r.store.GetOAuthClient(ctx, issuer)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading client for %s: %w", issuer, err)
	}
	return clientFromRecord(rec), nil
}

// registrationParams are the client metadata sent in every registration:
// the fixed redirect URI, grant type authorization_code, response type code
// and no scope.
type registrationParams struct {
	RedirectURI string
	ClientName  string
}

// responseRecorder keeps the status and body of the last response so that
// an answer the strict parser rejected can still be read leniently and
// stored as the registration payload.
type responseRecorder struct {
	next   http.RoundTripper
	status int
	body   []byte
}

func (rr *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rr.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRegistrationResponse))
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	rr.status = resp.StatusCode
	rr.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (r *Registrar) register(ctx context.Context, md *Metadata) (*Client, error) {
	if md.RegistrationEndpoint == "" {
		observability.RegistrationsTotal.WithLabelValues("unsupported").Inc()
		return nil, ErrRegistrationUnsupported
	}

	next := r.httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	recorder := &responseRecorder{next: next}
	hc := *r.httpClient
	hc.Transport = recorder

	client, strictErr := registerStrict(ctx, &hc, md.RegistrationEndpoint, registrationParams{
		RedirectURI: r.redirectURI,
		ClientName:  r.clientName,
	})
	if recorder.status == 0 {
		observability.RegistrationsTotal.WithLabelValues("failed").Inc()
		return nil, &RegistrationError{Issuer: md.Issuer, Err: strictErr}
	}
	if client == nil {
		debug.Log("oauth", "registration response failed strict parsing", "issuer", md.Issuer, "error", strictErr)
		var err error
		client, err = parseLenientRegistration(recorder.status, recorder.body)
		if err != nil {
			observability.RegistrationsTotal.WithLabelValues("failed").Inc()
			return nil, &RegistrationError{Issuer: md.Issuer, StatusCode: recorder.status, Err: err}
		}
	}

	rec := &storage.OAuthClientRecord{
		Issuer:              md.Issuer,
		ClientID:            client.ClientID,
		RegistrationPayload: json.RawMessage(recorder.body),
	}
	if client.ClientSecret != "" {
		secret := client.ClientSecret
		rec.ClientSecret = &secret
	}

	err := r.store.CreateOAuthClient(ctx, rec)
	if errors.Is(err, storage.ErrConflict) {
		// Lost the race against another instance; its client wins.
		slog.Info("client already registered by another instance", "issuer", md.Issuer)
		observability.RegistrationsTotal.WithLabelValues("conflict").Inc()
		existing, err := r.store.GetOAuthClient(ctx, md.Issuer)
		if err != nil {
			return nil, fmt.Errorf("re-reading client for %s: %w", md.Issuer, err)
		}
		return clientFromRecord(existing), nil
	}
	if err != nil {
		return nil, fmt.Errorf("saving client for %s: %w", md.Issuer, err)
	}

	observability.RegistrationsTotal.WithLabelValues("registered").Inc()
	debug.Log("oauth", "registered client", "issuer", md.Issuer, "client_id", client.ClientID, "public", client.Public())
	return client, nil
}

// parseLenientRegistration accepts any 2xx JSON answer carrying a string
// client_id. Error answers are turned into a readable error.
func parseLenientRegistration(status int, body []byte) (*Client, error) {
	if status < 200 || status > 299 {
		code := gjson.GetBytes(body, "error").String()
		if code != "" {
			return nil, fmt.Errorf("%s: %s", code, gjson.GetBytes(body, "error_description").String())
		}
		return nil, fmt.Errorf("unexpected status %d: %s", status, debug.Truncate(string(body), 200))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	id := gjson.GetBytes(body, "client_id")
	if id.Type != gjson.String || id.Str == "" {
		return nil, fmt.Errorf("response has no client_id")
	}
	c := &Client{ClientID: id.Str}
	if secret := gjson.GetBytes(body, "client_secret"); secret.Type == gjson.String {
		c.ClientSecret = secret.Str
	}
	slog.Info("accepted non-standard client registration response", "status", status)
	return c, nil
}

func clientFromRecord(rec *storage.OAuthClientRecord) *Client {
	c := &Client{ClientID: rec.ClientID}
	if rec.ClientSecret != nil {
		c.ClientSecret = *rec.ClientSecret
	}
	return c
}
