package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/mcplab/pkg/mcptest"
)

// pathRecorder remembers the request paths it forwards.
type pathRecorder struct {
	next  http.Handler
	mu    sync.Mutex
	paths []string
}

func (p *pathRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.paths = append(p.paths, r.URL.Path)
	p.mu.Unlock()
	p.next.ServeHTTP(w, r)
}

func (p *pathRecorder) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.paths)
}

func TestWellKnownURL(t *testing.T) {
	tests := []struct {
		issuer string
		kind   DiscoveryKind
		want   string
	}{
		{"https://tools.example/", KindOAuth, "https://tools.example/.well-known/oauth-authorization-server"},
		{"https://tools.example/", KindOIDC, "https://tools.example/.well-known/openid-configuration"},
		{"https://tools.example/mcp", KindOAuth, "https://tools.example/.well-known/oauth-authorization-server/mcp"},
		{"https://tools.example/mcp", KindOIDC, "https://tools.example/mcp/.well-known/openid-configuration"},
		{"https://tools.example/t/1/", KindOIDC, "https://tools.example/t/1/.well-known/openid-configuration"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+" "+tt.issuer, func(t *testing.T) {
			u, _ := url.Parse(tt.issuer)
			if got := wellKnownURL(tt.kind, u); got != tt.want {
				t.Errorf("wellKnownURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiscover_FallsBackToOriginOIDC(t *testing.T) {
	as := mcptest.NewAuthServer("tok")
	as.Mode = mcptest.MetadataOIDC
	rec := &pathRecorder{next: as.Handler()}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	md, err := NewDiscoverer(DiscovererOptions{}).Discover(context.Background(), srv.URL+"/mcp")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	wantPaths := []string{
		"/.well-known/oauth-authorization-server/mcp",
		"/mcp/.well-known/openid-configuration",
		"/.well-known/oauth-authorization-server",
		"/.well-known/openid-configuration",
	}
	if got := rec.Paths(); !slices.Equal(got, wantPaths) {
		t.Errorf("probe order = %v, want %v", got, wantPaths)
	}
	if md.Issuer != srv.URL {
		t.Errorf("Issuer = %q, want %q", md.Issuer, srv.URL)
	}
	if md.AuthorizationEndpoint != srv.URL+"/authorize" || md.TokenEndpoint != srv.URL+"/token" {
		t.Errorf("endpoints = %q, %q", md.AuthorizationEndpoint, md.TokenEndpoint)
	}
}

func TestDiscover_StrictIssuerMatch(t *testing.T) {
	as := mcptest.NewAuthServer("tok")
	srv := httptest.NewServer(as.Handler())
	defer srv.Close()
	as.Issuer = srv.URL + "/"

	md, err := NewDiscoverer(DiscovererOptions{}).Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if md.Issuer != srv.URL+"/" {
		t.Errorf("Issuer = %q", md.Issuer)
	}
	if !slices.Contains(md.CodeChallengeMethodsSupported, "S256") {
		t.Errorf("CodeChallengeMethodsSupported = %v", md.CodeChallengeMethodsSupported)
	}
}

func TestDiscover_LenientMetadata(t *testing.T) {
	as := mcptest.NewAuthServer("tok")
	as.LooseMetadata = true
	srv := httptest.NewServer(as.Handler())
	defer srv.Close()

	md, err := NewDiscoverer(DiscovererOptions{}).Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !slices.Equal(md.CodeChallengeMethodsSupported, []string{"S256"}) {
		t.Errorf("CodeChallengeMethodsSupported = %v, want [S256]", md.CodeChallengeMethodsSupported)
	}
	if md.RegistrationEndpoint != srv.URL+"/register" {
		t.Errorf("RegistrationEndpoint = %q", md.RegistrationEndpoint)
	}
}

func TestDiscover_RejectsDocuments(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>hello</html>"},
		{"array", `["issuer"]`},
		{"no issuer", `{"authorization_endpoint":"https://as.example/authorize"}`},
		{"numeric issuer", `{"issuer":42}`},
		{"remote http endpoint", `{"issuer":"https://as.example","authorization_endpoint":"http://as.example/authorize"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewDiscoverer(DiscovererOptions{}).Discover(context.Background(), srv.URL+"/mcp")
			var derr *DiscoveryError
			if !errors.As(err, &derr) {
				t.Fatalf("err = %v, want *DiscoveryError", err)
			}
			if len(derr.Attempts) != 4 {
				t.Errorf("attempts = %d, want 4", len(derr.Attempts))
			}
		})
	}
}

func TestDiscover_AllowInsecureHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"issuer":"http://as.internal","authorization_endpoint":"http://as.internal/authorize","token_endpoint":"http://as.internal/token"}`))
	}))
	defer srv.Close()

	md, err := NewDiscoverer(DiscovererOptions{AllowInsecureHTTP: true}).Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if md.AuthorizationEndpoint != "http://as.internal/authorize" {
		t.Errorf("AuthorizationEndpoint = %q", md.AuthorizationEndpoint)
	}
}

func TestDiscover_NothingFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewDiscoverer(DiscovererOptions{}).Discover(context.Background(), srv.URL)
	var derr *DiscoveryError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *DiscoveryError", err)
	}
	// A root URL has no origin fallback.
	if len(derr.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(derr.Attempts))
	}
	if ErrorCode(err) != "discovery_failed" {
		t.Errorf("ErrorCode = %q", ErrorCode(err))
	}
}

func TestDiscover_InvalidURL(t *testing.T) {
	_, err := NewDiscoverer(DiscovererOptions{}).Discover(context.Background(), "not a url")
	var derr *DiscoveryError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *DiscoveryError", err)
	}
}

func TestDiscover_Cache(t *testing.T) {
	as := mcptest.NewAuthServer("tok")
	rec := &pathRecorder{next: as.Handler()}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDiscoverer(DiscovererOptions{CacheTTL: time.Minute})
	d.nowFunc = func() time.Time { return now }

	ctx := context.Background()
	if _, err := d.Discover(ctx, srv.URL); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if _, err := d.Discover(ctx, srv.URL); err != nil {
		t.Fatalf("Discover (cached): %v", err)
	}
	if n := len(rec.Paths()); n != 1 {
		t.Errorf("requests = %d, want 1 while cached", n)
	}

	now = now.Add(2 * time.Minute)
	if _, err := d.Discover(ctx, srv.URL); err != nil {
		t.Fatalf("Discover (expired): %v", err)
	}
	if n := len(rec.Paths()); n != 2 {
		t.Errorf("requests = %d, want 2 after expiry", n)
	}
}
