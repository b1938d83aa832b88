package oauth

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"golang.org/x/oauth2"

	"github.com/rhuss/mcplab/pkg/crypt"
	"github.com/rhuss/mcplab/pkg/observability"
	"github.com/rhuss/mcplab/pkg/storage"
)

// Attempt is the transient result of starting an authorization flow. The
// caller stores State, CodeVerifier and Nonce in short-lived storage scoped
// to ServerID and sends the user to AuthorizationURL.
type Attempt struct {
	AuthorizationURL string

	// State is the encoded FlowState sent as the OAuth state parameter.
	State        string
	CodeVerifier string
	Nonce        string

	ServerID *int64
}

// Service runs the authorization code flow with PKCE against the
// authorization servers protecting tool servers.
type Service struct {
	discoverer *Discoverer
	registrar  *Registrar
	servers    storage.ServerStore
	cipher     *crypt.Cipher
	httpClient *http.Client
	nowFunc    func() time.Time
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Discoverer *Discoverer
	Registrar  *Registrar
	Servers    storage.ServerStore
	Cipher     *crypt.Cipher

	// HTTPClient is used for token exchange.
	HTTPClient *http.Client
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{
		discoverer: cfg.Discoverer,
		registrar:  cfg.Registrar,
		servers:    cfg.Servers,
		cipher:     cfg.Cipher,
		httpClient: hc,
		nowFunc:    time.Now,
	}
}

// Initiate starts an authorization flow for the tool server at serverURL.
// serverID is nil when the server has not been saved yet.
func (s *Service) Initiate(ctx context.Context, serverURL string, serverID *int64) (*Attempt, error) {
	attempt, err := s.initiate(ctx, serverURL, serverID)
	outcome := "started"
	if err != nil {
		outcome = ErrorCode(err)
	}
	observability.OAuthFlowsTotal.WithLabelValues("initiate", outcome).Inc()
	return attempt, err
}

func (s *Service) initiate(ctx context.Context, serverURL string, serverID *int64) (*Attempt, error) {
	md, err := s.discoverer.Discover(ctx, serverURL)
	if err != nil {
		return nil, err
	}
	if md.AuthorizationEndpoint == "" {
		return nil, ErrNoAuthorizationEndpoint
	}
	// An absent list is accepted; many servers support S256 without
	// advertising it.
	if len(md.CodeChallengeMethodsSupported) > 0 && !slices.Contains(md.CodeChallengeMethodsSupported, "S256") {
		return nil, ErrPKCEUnsupported
	}

	client, err := s.registrar.ClientFor(ctx, md)
	if err != nil {
		return nil, err
	}

	verifier := oauth2.GenerateVerifier()
	nonce := randomValue()
	state, err := EncodeState(FlowState{
		OriginalState: randomValue(),
		ServerID:      serverID,
		ServerURL:     serverURL,
	})
	if err != nil {
		return nil, err
	}

	cfg := s.oauthConfig(md, client)
	authURL := cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	)

	slog.Info("authorization flow started",
		"server_url", serverURL, "issuer", md.Issuer, "client_id", client.ClientID)

	return &Attempt{
		AuthorizationURL: authURL,
		State:            state,
		CodeVerifier:     verifier,
		Nonce:            nonce,
		ServerID:         serverID,
	}, nil
}

// oauthConfig describes the client to x/oauth2. Credentials go in the
// request body: client_secret_post for confidential clients and client_id
// alone for public ones.
func (s *Service) oauthConfig(md *Metadata, client *Client) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RedirectURL:  s.registrar.RedirectURI(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   md.AuthorizationEndpoint,
			TokenURL:  md.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// randomValue returns 32 random bytes, base64url encoded. The PKCE verifier
// generator has exactly that shape.
func randomValue() string {
	return oauth2.GenerateVerifier()
}
