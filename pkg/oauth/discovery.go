package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rhuss/mcplab/pkg/debug"
	"github.com/rhuss/mcplab/pkg/observability"
)

const (
	// maxMetadataSize bounds a metadata document.
	maxMetadataSize = 1 << 20

	wellKnownOAuth = "/.well-known/oauth-authorization-server"
	wellKnownOIDC  = "/.well-known/openid-configuration"
)

// Metadata is the subset of RFC 8414 / OpenID Connect discovery metadata
// used by the authorization code flow.
type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                 string   `json:"token_endpoint,omitempty"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// DiscoveryKind names the well-known document that was probed.
type DiscoveryKind string

const (
	KindOAuth DiscoveryKind = "oauth2"
	KindOIDC  DiscoveryKind = "oidc"
)

// Discoverer locates authorization server metadata for tool server URLs.
// It is safe for concurrent use.
type Discoverer struct {
	httpClient *http.Client
	allowHTTP  bool
	cacheTTL   time.Duration
	nowFunc    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedMetadata
}

type cachedMetadata struct {
	md      *Metadata
	expires time.Time
}

// DiscovererOptions configures a Discoverer.
type DiscovererOptions struct {
	HTTPClient *http.Client

	// CacheTTL keeps successful results per server URL. Zero disables caching.
	CacheTTL time.Duration

	// AllowInsecureHTTP accepts plain http endpoints on non-loopback hosts.
	AllowInsecureHTTP bool
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(opts DiscovererOptions) *Discoverer {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Discoverer{
		httpClient: hc,
		allowHTTP:  opts.AllowInsecureHTTP,
		cacheTTL:   opts.CacheTTL,
		nowFunc:    time.Now,
		cache:      make(map[string]cachedMetadata),
	}
}

// probe is one well-known URL to try.
type probe struct {
	kind     DiscoveryKind
	issuer   *url.URL
	metadata string
}

// Discover returns the metadata for serverURL. OAuth 2.0 metadata is tried
// before OpenID Connect discovery, first for serverURL itself and then, if
// serverURL has a path, for its origin.
func (d *Discoverer) Discover(ctx context.Context, serverURL string) (*Metadata, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &DiscoveryError{URL: serverURL, Attempts: []AttemptError{{URL: serverURL, Err: fmt.Errorf("invalid server URL")}}}
	}

	if md := d.cached(serverURL); md != nil {
		debug.Log("oauth", "discovery cache hit", "url", serverURL)
		return md, nil
	}

	derr := &DiscoveryError{URL: serverURL}
	for _, p := range probes(u) {
		md, err := d.fetch(ctx, p)
		if err != nil {
			observability.DiscoveryAttemptsTotal.WithLabelValues(string(p.kind), "failed").Inc()
			debug.Log("oauth", "discovery attempt failed", "kind", p.kind, "url", p.metadata, "error", err)
			derr.Attempts = append(derr.Attempts, AttemptError{URL: p.metadata, Err: err})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		observability.DiscoveryAttemptsTotal.WithLabelValues(string(p.kind), "success").Inc()
		debug.Log("oauth", "discovered authorization server", "kind", p.kind, "url", p.metadata, "issuer", md.Issuer)
		d.store(serverURL, md)
		return md, nil
	}
	return nil, derr
}

// probes lists the discovery candidates in order.
func probes(u *url.URL) []probe {
	issuer := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	if issuer.Path == "" {
		issuer.Path = "/"
	}
	list := []probe{
		{kind: KindOAuth, issuer: issuer, metadata: wellKnownURL(KindOAuth, issuer)},
		{kind: KindOIDC, issuer: issuer, metadata: wellKnownURL(KindOIDC, issuer)},
	}
	if issuer.Path != "/" {
		root := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
		list = append(list,
			probe{kind: KindOAuth, issuer: root, metadata: wellKnownURL(KindOAuth, root)},
			probe{kind: KindOIDC, issuer: root, metadata: wellKnownURL(KindOIDC, root)},
		)
	}
	return list
}

// wellKnownURL builds the metadata location for issuer. RFC 8414 inserts
// the well-known segment before the issuer path; OpenID Connect appends it.
func wellKnownURL(kind DiscoveryKind, issuer *url.URL) string {
	origin := issuer.Scheme + "://" + issuer.Host
	switch kind {
	case KindOIDC:
		return origin + strings.TrimSuffix(issuer.Path, "/") + wellKnownOIDC
	default:
		if issuer.Path == "/" || issuer.Path == "" {
			return origin + wellKnownOAuth
		}
		return origin + wellKnownOAuth + issuer.Path
	}
}

func (d *Discoverer) fetch(ctx context.Context, p probe) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.metadata, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(body) > maxMetadataSize {
		return nil, fmt.Errorf("metadata exceeds %d bytes", maxMetadataSize)
	}

	md, strictErr := parseStrict(body, p.issuer.String())
	if strictErr != nil {
		var lerr error
		md, lerr = parseLenient(body)
		if lerr != nil {
			return nil, errors.Join(strictErr, lerr)
		}
		slog.Info("accepted authorization server metadata leniently", "url", p.metadata, "reason", strictErr)
	}

	if err := d.checkEndpoints(md); err != nil {
		return nil, err
	}
	return md, nil
}

// parseStrict decodes body and requires its issuer to equal the expected
// issuer identifier exactly.
func parseStrict(body []byte, expectedIssuer string) (*Metadata, error) {
	var md Metadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if md.Issuer == "" {
		return nil, fmt.Errorf("metadata has no issuer")
	}
	if md.Issuer != expectedIssuer {
		return nil, fmt.Errorf("issuer %q does not match expected %q", md.Issuer, expectedIssuer)
	}
	return &md, nil
}

// parseLenient accepts any JSON object with a non-empty string issuer and
// reads the remaining fields individually, tolerating wrongly typed ones.
func parseLenient(body []byte) (*Metadata, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("metadata is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("metadata is not a JSON object")
	}
	issuer := doc.Get("issuer")
	if issuer.Type != gjson.String || issuer.Str == "" {
		return nil, fmt.Errorf("metadata has no issuer")
	}

	return &Metadata{
		Issuer:                        issuer.Str,
		AuthorizationEndpoint:         doc.Get("authorization_endpoint").String(),
		TokenEndpoint:                 doc.Get("token_endpoint").String(),
		RegistrationEndpoint:          doc.Get("registration_endpoint").String(),
		CodeChallengeMethodsSupported: stringList(doc.Get("code_challenge_methods_supported")),
	}, nil
}

// stringList reads an array of strings, or a single string as a one-element
// list.
func stringList(r gjson.Result) []string {
	switch {
	case r.IsArray():
		var out []string
		for _, v := range r.Array() {
			if v.Type == gjson.String {
				out = append(out, v.Str)
			}
		}
		return out
	case r.Type == gjson.String && r.Str != "":
		return []string{r.Str}
	default:
		return nil
	}
}

// checkEndpoints rejects endpoint URLs that are not absolute http(s). Plain
// http is limited to loopback hosts unless insecure HTTP is allowed.
func (d *Discoverer) checkEndpoints(md *Metadata) error {
	endpoints := map[string]string{
		"authorization_endpoint": md.AuthorizationEndpoint,
		"token_endpoint":         md.TokenEndpoint,
		"registration_endpoint":  md.RegistrationEndpoint,
	}
	for name, endpoint := range endpoints {
		if endpoint == "" {
			continue
		}
		u, err := url.Parse(endpoint)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s is not an absolute URL: %q", name, endpoint)
		}
		switch u.Scheme {
		case "https":
		case "http":
			if !d.allowHTTP && !isLoopback(u.Hostname()) {
				return fmt.Errorf("%s must use https: %s", name, endpoint)
			}
		default:
			return fmt.Errorf("%s has unsupported scheme %q", name, u.Scheme)
		}
	}
	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// cached returns a live cache entry. Entries are not refetched, so a changed
// document is only picked up after the TTL.
func (d *Discoverer) cached(serverURL string) *Metadata {
	if d.cacheTTL <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.cache[serverURL]
	if !ok {
		return nil
	}
	if !d.nowFunc().Before(entry.expires) || entry.md.Issuer == "" || entry.md.AuthorizationEndpoint == "" {
		delete(d.cache, serverURL)
		return nil
	}
	return entry.md
}

func (d *Discoverer) store(serverURL string, md *Metadata) {
	if d.cacheTTL <= 0 {
		return
	}
	d.mu.Lock()
	d.cache[serverURL] = cachedMetadata{md: md, expires: d.nowFunc().Add(d.cacheTTL)}
	d.mu.Unlock()
}
