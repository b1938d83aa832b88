package mcptest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// MetadataMode selects the well-known document an AuthServer publishes.
type MetadataMode int

const (
	// MetadataOAuth serves RFC 8414 metadata at
	// /.well-known/oauth-authorization-server.
	MetadataOAuth MetadataMode = iota
	// MetadataOIDC serves OpenID Connect discovery at
	// /.well-known/openid-configuration and issues ID tokens.
	MetadataOIDC
)

// AuthServer is a minimal OAuth 2.1 authorization server with dynamic
// client registration and PKCE. Configure the exported fields before the
// first request.
type AuthServer struct {
	Mode MetadataMode

	// Issuer overrides the issuer claimed in metadata. Empty uses the
	// request origin without a trailing slash.
	Issuer string

	// LooseMetadata renders list-valued metadata fields as plain strings, as
	// some providers do.
	LooseMetadata bool

	// DisableRegistration omits the registration endpoint.
	DisableRegistration bool

	// RegistrationStatus is the success status of /register. Zero means 201.
	RegistrationStatus int

	// PublicClients makes /register issue clients without a secret.
	PublicClients bool

	// CodeChallengeMethods overrides the advertised PKCE methods. Nil
	// advertises S256.
	CodeChallengeMethods []string

	AccessToken string
	TokenType   string
	ExpiresIn   int

	// TokenError forces /token to fail with this OAuth error code.
	TokenError string

	// NonceOverride replaces the nonce echoed in ID tokens.
	NonceOverride string

	mu            sync.Mutex
	clients       map[string]registeredClient
	codes         map[string]pendingGrant
	registrations int
	tokenRequests []url.Values
}

type registeredClient struct {
	secret       string
	redirectURIs []string
}

type pendingGrant struct {
	clientID    string
	redirectURI string
	challenge   string
	nonce       string
	issued      time.Time
}

// NewAuthServer returns an AuthServer that issues accessToken.
func NewAuthServer(accessToken string) *AuthServer {
	return &AuthServer{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}
}

// Mount registers the server's endpoints on mux.
func (a *AuthServer) Mount(mux *http.ServeMux) {
	switch a.Mode {
	case MetadataOIDC:
		mux.HandleFunc("GET /.well-known/openid-configuration", a.handleMetadata)
	default:
		mux.HandleFunc("GET /.well-known/oauth-authorization-server", a.handleMetadata)
	}
	mux.HandleFunc("GET /authorize", a.handleAuthorize)
	mux.HandleFunc("POST /token", a.handleToken)
	if !a.DisableRegistration {
		mux.HandleFunc("POST /register", a.handleRegister)
	}
}

// Handler returns a mux serving only the authorization server.
func (a *AuthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Mount(mux)
	return mux
}

// Registrations returns how many clients were registered.
func (a *AuthServer) Registrations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registrations
}

// TokenRequests returns the form bodies received at /token.
func (a *AuthServer) TokenRequests() []url.Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.tokenRequests)
}

func (a *AuthServer) issuer(r *http.Request) string {
	if a.Issuer != "" {
		return a.Issuer
	}
	return origin(r)
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (a *AuthServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	base := origin(r)
	md := map[string]any{
		"issuer":                 a.issuer(r),
		"authorization_endpoint": base + "/authorize",
		"token_endpoint":         base + "/token",
	}
	if !a.DisableRegistration {
		md["registration_endpoint"] = base + "/register"
	}

	if a.LooseMetadata {
		md["response_types_supported"] = "code"
		md["code_challenge_methods_supported"] = "S256"
		md["token_endpoint_auth_methods_supported"] = "client_secret_post"
	} else {
		md["response_types_supported"] = []string{"code"}
		md["grant_types_supported"] = []string{"authorization_code"}
		md["code_challenge_methods_supported"] = []string{"S256"}
		md["token_endpoint_auth_methods_supported"] = []string{"client_secret_post", "none"}
	}
	if a.CodeChallengeMethods != nil {
		md["code_challenge_methods_supported"] = a.CodeChallengeMethods
	}
	if a.Mode == MetadataOIDC {
		md["id_token_signing_alg_values_supported"] = []string{"HS256"}
		md["subject_types_supported"] = []string{"public"}
	}
	writeJSON(w, http.StatusOK, md)
}

type registrationRequest struct {
	RedirectURIs  []string `json:"redirect_uris"`
	ClientName    string   `json:"client_name,omitempty"`
	GrantTypes    []string `json:"grant_types,omitempty"`
	ResponseTypes []string `json:"response_types,omitempty"`
}

func (a *AuthServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_client_metadata", "malformed JSON")
		return
	}
	if len(req.RedirectURIs) == 0 {
		oauthError(w, http.StatusBadRequest, "invalid_redirect_uri", "redirect_uris is required")
		return
	}

	clientID := randomHex(16)
	client := registeredClient{redirectURIs: req.RedirectURIs}
	if !a.PublicClients {
		client.secret = randomHex(32)
	}

	a.mu.Lock()
	if a.clients == nil {
		a.clients = make(map[string]registeredClient)
	}
	a.clients[clientID] = client
	a.registrations++
	a.mu.Unlock()

	resp := map[string]any{
		"client_id":           clientID,
		"client_id_issued_at": time.Now().Unix(),
		"client_name":         req.ClientName,
		"redirect_uris":       req.RedirectURIs,
		"grant_types":         []string{"authorization_code"},
		"response_types":      []string{"code"},
	}
	if client.secret != "" {
		resp["client_secret"] = client.secret
		resp["token_endpoint_auth_method"] = "client_secret_post"
	} else {
		resp["token_endpoint_auth_method"] = "none"
	}

	status := a.RegistrationStatus
	if status == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (a *AuthServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")

	a.mu.Lock()
	client, ok := a.clients[clientID]
	a.mu.Unlock()
	if !ok {
		http.Error(w, "unknown client_id", http.StatusBadRequest)
		return
	}
	if !slices.Contains(client.redirectURIs, redirectURI) {
		http.Error(w, "redirect_uri not registered", http.StatusBadRequest)
		return
	}
	if q.Get("response_type") != "code" || q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		http.Error(w, "PKCE with S256 and response_type=code required", http.StatusBadRequest)
		return
	}

	code := randomHex(16)
	a.mu.Lock()
	if a.codes == nil {
		a.codes = make(map[string]pendingGrant)
	}
	a.codes[code] = pendingGrant{
		clientID:    clientID,
		redirectURI: redirectURI,
		challenge:   q.Get("code_challenge"),
		nonce:       q.Get("nonce"),
		issued:      time.Now(),
	}
	a.mu.Unlock()

	target, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	params := target.Query()
	params.Set("code", code)
	params.Set("state", q.Get("state"))
	params.Set("iss", a.issuer(r))
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (a *AuthServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	form := r.PostForm

	a.mu.Lock()
	a.tokenRequests = append(a.tokenRequests, form)
	grant, ok := a.codes[form.Get("code")]
	delete(a.codes, form.Get("code"))
	client, known := a.clients[form.Get("client_id")]
	a.mu.Unlock()

	if a.TokenError != "" {
		oauthError(w, http.StatusBadRequest, a.TokenError, "forced failure")
		return
	}
	if form.Get("grant_type") != "authorization_code" {
		oauthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}
	if !known {
		oauthError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}
	if client.secret != "" && form.Get("client_secret") != client.secret {
		oauthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}
	if !ok || grant.clientID != form.Get("client_id") || grant.redirectURI != form.Get("redirect_uri") {
		oauthError(w, http.StatusBadRequest, "invalid_grant", "unknown or mismatched code")
		return
	}
	if oauth2.S256ChallengeFromVerifier(form.Get("code_verifier")) != grant.challenge {
		oauthError(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
		return
	}

	resp := map[string]any{
		"access_token": a.AccessToken,
		"token_type":   a.TokenType,
	}
	if a.ExpiresIn > 0 {
		resp["expires_in"] = a.ExpiresIn
	}
	if a.Mode == MetadataOIDC {
		idToken, err := a.idToken(r, grant)
		if err != nil {
			oauthError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		resp["id_token"] = idToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *AuthServer) idToken(r *http.Request, grant pendingGrant) (string, error) {
	nonce := grant.nonce
	if a.NonceOverride != "" {
		nonce = a.NonceOverride
	}
	claims := jwt.MapClaims{
		"iss":   a.issuer(r),
		"sub":   "test-user",
		"aud":   grant.clientID,
		"iat":   grant.issued.Unix(),
		"exp":   grant.issued.Add(time.Hour).Unix(),
		"nonce": nonce,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("mcptest-signing-key"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func oauthError(w http.ResponseWriter, status int, code, description string) {
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	writeJSON(w, status, body)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
