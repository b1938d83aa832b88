// Package jwt authenticates callers by RS256/384/512-signed JWTs verified
// against the keys of a JWKS endpoint.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/rhuss/mcplab/pkg/auth"
	"github.com/rhuss/mcplab/pkg/debug"
)

const maxJWKSSize = 1 << 20

// Config configures an Authenticator.
type Config struct {
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	JWKSURL string

	// UserClaim names the claim used as subject. Default "sub".
	UserClaim string

	// NameClaim names the claim used as display name. Default "name".
	NameClaim string

	// CookieName, when set, is consulted for the token if the request has
	// no Authorization header.
	CookieName string

	// CacheTTL bounds how long fetched keys are trusted. Default 1h.
	CacheTTL time.Duration

	HTTPClient *http.Client
}

// Authenticator validates bearer JWTs.
type Authenticator struct {
	cfg  Config
	keys *keySet
}

// New creates an Authenticator.
func New(cfg Config) *Authenticator {
	if cfg.UserClaim == "" {
		cfg.UserClaim = "sub"
	}
	if cfg.NameClaim == "" {
		cfg.NameClaim = "name"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Authenticator{
		cfg: cfg,
		keys: &keySet{
			url:    cfg.JWKSURL,
			ttl:    cfg.CacheTTL,
			client: cfg.HTTPClient,
			keys:   map[string]*rsa.PublicKey{},
		},
	}
}

// Authenticate abstains without a bearer credential, rejects invalid tokens
// and accepts valid ones with the configured subject claim.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	raw, ok := auth.BearerToken(r, a.cfg.CookieName)
	if !ok {
		return auth.Result{Vote: auth.Abstain}
	}
	if raw == "" {
		return auth.Result{Vote: auth.Reject, Err: errors.New("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(tok *jwtlib.Token) (any, error) {
		kid, _ := tok.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return a.keys.get(ctx, kid)
	}, a.parserOptions()...)
	if err != nil {
		debug.Log("http", "jwt rejected", "error", err)
		return auth.Result{Vote: auth.Reject, Err: fmt.Errorf("invalid token: %w", err)}
	}

	subject, _ := claims[a.cfg.UserClaim].(string)
	if subject == "" {
		return auth.Result{Vote: auth.Reject, Err: fmt.Errorf("token has no %q claim", a.cfg.UserClaim)}
	}
	name, _ := claims[a.cfg.NameClaim].(string)

	return auth.Result{Vote: auth.Accept, Identity: &auth.Identity{
		Subject: subject,
		Name:    name,
	}}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

// keySet caches the RSA keys of a JWKS endpoint. An unknown kid triggers a
// refetch; concurrent refetches share one request.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time

	group singleflight.Group
}

func (s *keySet) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	key, ok := s.keys[kid]
	fresh := time.Since(s.fetchedAt) < s.ttl
	s.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	// The fetch is shared by all waiting requests, so one of them going
	// away must not cancel it. The HTTP client timeout bounds it.
	ch := s.group.DoChan("jwks", func() (any, error) {
		return nil, s.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("no key %q in JWKS", kid)
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (s *keySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSSize)).Decode(&doc); err != nil {
		return fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	debug.Log("http", "JWKS refreshed", "keys", len(keys), "url", s.url)
	return nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() > 1<<31-1 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
