package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/rhuss/mcplab/pkg/debug"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch strings.ToLower(c.Server.Environment) {
	case "development", "production":
	default:
		errs = append(errs, fmt.Errorf("server.environment must be \"development\" or \"production\", got %q", c.Server.Environment))
	}
	if err := c.validatePublicURL(); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case "bolt":
		if c.Storage.Bolt.Path == "" {
			errs = append(errs, fmt.Errorf("storage.bolt.path is required when storage.type is \"bolt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\" or \"bolt\", got %q", c.Storage.Type))
	}

	switch c.Auth.Type {
	case "none":
		if c.Auth.Subject == "" {
			errs = append(errs, fmt.Errorf("auth.subject is required when auth.type is \"none\""))
		}
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
		}
		if c.Auth.JWT.Issuer == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.issuer is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Crypto.Secret == "" && c.Crypto.SecretFile == "" {
		errs = append(errs, fmt.Errorf("crypto.secret or crypto.secret_file is required"))
	}

	if c.OAuth.FlowCookieMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("oauth.flow_cookie_max_age must be > 0, got %v", c.OAuth.FlowCookieMaxAge))
	}
	if c.OAuth.DiscoveryCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("oauth.discovery_cache_ttl must not be negative"))
	}
	if !strings.HasPrefix(c.OAuth.DashboardPath, "/") {
		errs = append(errs, fmt.Errorf("oauth.dashboard_path must start with \"/\", got %q", c.OAuth.DashboardPath))
	}
	if c.MCP.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("mcp.request_timeout must not be negative"))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}
	for _, cat := range strings.Split(c.Logging.Debug, ",") {
		cat = strings.TrimSpace(cat)
		if cat != "" && !slices.Contains(debug.KnownCategories, cat) {
			errs = append(errs, fmt.Errorf("logging.debug: unknown category %q", cat))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) validatePublicURL() error {
	u, err := url.Parse(c.Server.PublicURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server.public_url must be an absolute http(s) URL, got %q", c.Server.PublicURL)
	}
	if c.Production() && u.Scheme != "https" {
		return fmt.Errorf("server.public_url must use https in production")
	}
	return nil
}
