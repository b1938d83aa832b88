// Package config provides unified configuration for mcplab.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env file (never overrides variables already set)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (MCPLAB_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CallbackPath is the fixed path of the OAuth redirect URI.
const CallbackPath = "/api/auth/mcp/callback"

// Config holds all configuration for mcplab.
type Config struct {
	Server        ServerConfig        `yaml:"server" envPrefix:"SERVER_"`
	Storage       StorageConfig       `yaml:"storage" envPrefix:"STORAGE_"`
	Auth          AuthConfig          `yaml:"auth" envPrefix:"AUTH_"`
	Crypto        CryptoConfig        `yaml:"crypto" envPrefix:"CRYPTO_"`
	OAuth         OAuthConfig         `yaml:"oauth" envPrefix:"OAUTH_"`
	MCP           MCPConfig           `yaml:"mcp" envPrefix:"MCP_"`
	Observability ObservabilityConfig `yaml:"observability" envPrefix:"OBSERVABILITY_"`
	Logging       LoggingConfig       `yaml:"logging" envPrefix:"LOG_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" env:"PORT"` // default: 8080

	// PublicURL is the externally visible base URL. The OAuth redirect URI
	// is derived from it.
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`         // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`       // default: 90s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"` // default: 30s

	// Environment is "development" or "production".
	Environment string `yaml:"environment" env:"ENVIRONMENT"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type" env:"TYPE"` // "memory", "postgres" or "bolt", default: "memory"
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Bolt     BoltConfig     `yaml:"bolt" envPrefix:"BOLT_"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" env:"DSN"`
	DSNFile        string `yaml:"dsn_file" env:"DSN_FILE"`                 // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns" env:"MAX_CONNS"`               // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"MIGRATE_ON_START"` // default: false
}

// BoltConfig holds settings of the embedded single-node store.
type BoltConfig struct {
	Path string `yaml:"path" env:"PATH"` // default: "mcplab.db"
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	Type    string     `yaml:"type" env:"TYPE"`         // "none", "apikey" or "jwt", default: "none"
	APIKeys APIKeyList `yaml:"api_keys" env:"API_KEYS"` // entries for type=apikey
	JWT     JWTConfig  `yaml:"jwt" envPrefix:"JWT_"`

	// CookieName carries the credential for browser requests, which reach
	// the callback without an Authorization header.
	CookieName string `yaml:"cookie_name" env:"COOKIE_NAME"` // default: "mcplab_token"

	// Subject is the owner of every request for type=none.
	Subject string `yaml:"subject" env:"SUBJECT"` // default: "anonymous"
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key" json:"key"`
	KeyFile string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject string `yaml:"subject" json:"subject"`
	Name    string `yaml:"name" json:"name"`
}

// APIKeyList is the list of accepted API keys. In the environment it is
// given as a JSON array.
type APIKeyList []APIKeyConfig

// UnmarshalText parses a JSON array of API key entries.
func (l *APIKeyList) UnmarshalText(text []byte) error {
	var keys []APIKeyConfig
	if err := json.Unmarshal(text, &keys); err != nil {
		return fmt.Errorf("parsing API keys JSON: %w", err)
	}
	*l = keys
	return nil
}

// JWTConfig holds settings for bearer JWT authentication.
type JWTConfig struct {
	Issuer    string        `yaml:"issuer" env:"ISSUER"`
	Audience  string        `yaml:"audience" env:"AUDIENCE"`
	JWKSURL   string        `yaml:"jwks_url" env:"JWKS_URL"`
	UserClaim string        `yaml:"user_claim" env:"USER_CLAIM"` // default: "sub"
	NameClaim string        `yaml:"name_claim" env:"NAME_CLAIM"` // default: "name"
	CacheTTL  time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`   // default: 1h
}

// CryptoConfig holds the secret protecting stored access tokens.
type CryptoConfig struct {
	Secret     string `yaml:"secret" env:"SECRET"`
	SecretFile string `yaml:"secret_file" env:"SECRET_FILE"` // _file variant for secret
}

// OAuthConfig holds settings of the authorization flows mcplab runs
// against tool servers.
type OAuthConfig struct {
	// ClientName is sent in dynamic client registration requests.
	ClientName string `yaml:"client_name" env:"CLIENT_NAME"` // default: "mcplab"

	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"` // default: 10s

	// DiscoveryCacheTTL caches discovered metadata per server URL. A cached
	// entry is only checked for a present issuer and authorization endpoint,
	// so changes to the provider's document go unnoticed until it expires.
	DiscoveryCacheTTL time.Duration `yaml:"discovery_cache_ttl" env:"DISCOVERY_CACHE_TTL"` // default: 0 (off)

	FlowCookieMaxAge time.Duration `yaml:"flow_cookie_max_age" env:"FLOW_COOKIE_MAX_AGE"` // default: 10m
	DashboardPath    string        `yaml:"dashboard_path" env:"DASHBOARD_PATH"`           // default: "/dashboard/mcp"

	// AllowInsecureHTTP accepts plain http authorization endpoints on
	// non-loopback hosts. Only for development.
	AllowInsecureHTTP bool `yaml:"allow_insecure_http" env:"ALLOW_INSECURE_HTTP"`
}

// MCPConfig holds settings for tool server sessions.
type MCPConfig struct {
	ClientName     string        `yaml:"client_name" env:"CLIENT_NAME"`         // default: "mcplab"
	ClientVersion  string        `yaml:"client_version" env:"CLIENT_VERSION"`   // default: build version
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"` // default: 60s
	AllowStdio     bool          `yaml:"allow_stdio" env:"ALLOW_STDIO"`         // default: false
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"` // default: true
	Path    string `yaml:"path" env:"PATH"`       // default: "/metrics"
}

// LoggingConfig holds process logging settings. Debug categories are also
// read from MCPLAB_DEBUG by the debug package.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // default: "info"
	Format string `yaml:"format" env:"FORMAT"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			PublicURL:       "http://localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
			Bolt: BoltConfig{
				Path: "mcplab.db",
			},
		},
		Auth: AuthConfig{
			Type:       "none",
			CookieName: "mcplab_token",
			Subject:    "anonymous",
			JWT: JWTConfig{
				UserClaim: "sub",
				NameClaim: "name",
				CacheTTL:  time.Hour,
			},
		},
		OAuth: OAuthConfig{
			ClientName:       "mcplab",
			HTTPTimeout:      10 * time.Second,
			FlowCookieMaxAge: 10 * time.Minute,
			DashboardPath:    "/dashboard/mcp",
		},
		MCP: MCPConfig{
			ClientName:     "mcplab",
			RequestTimeout: 60 * time.Second,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Production reports whether mcplab runs in the production environment.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// RedirectURI returns the OAuth redirect URI registered with every
// authorization server.
func (c *Config) RedirectURI() string {
	return strings.TrimSuffix(c.Server.PublicURL, "/") + CallbackPath
}
