package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/mcplab/pkg/auth"
	"github.com/rhuss/mcplab/pkg/auth/apikey"
	"github.com/rhuss/mcplab/pkg/auth/jwt"
	"github.com/rhuss/mcplab/pkg/auth/noop"
	"github.com/rhuss/mcplab/pkg/config"
	"github.com/rhuss/mcplab/pkg/debug"
	"github.com/rhuss/mcplab/pkg/storage"
	"github.com/rhuss/mcplab/pkg/storage/bolt"
	"github.com/rhuss/mcplab/pkg/storage/memory"
	"github.com/rhuss/mcplab/pkg/storage/postgres"
	"github.com/rhuss/mcplab/pkg/transport"
)

// loadConfig loads the configuration and installs the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := debug.Setup(debug.Options{
		Categories: cfg.Logging.Debug,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
	})
	return cfg, logger, nil
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Storage.Postgres.MaxConns)
		return s, nil
	case "bolt":
		s, err := bolt.Open(cfg.Storage.Bolt.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("storage enabled", "type", "bolt", "path", cfg.Storage.Bolt.Path)
		return s, nil
	default:
		slog.Warn("using in-memory storage; server records and tokens are lost on restart")
		return memory.New(), nil
	}
}

// buildAuth returns the authentication middleware for the configured mode.
func buildAuth(cfg *config.Config) transport.Middleware {
	var a auth.Authenticator
	switch cfg.Auth.Type {
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, apikey.Key{Key: k.Key, Subject: k.Subject, Name: k.Name})
		}
		a = apikey.New(keys, cfg.Auth.CookieName)
		slog.Info("authentication enabled", "type", "apikey", "keys", len(keys))
	case "jwt":
		a = jwt.New(jwt.Config{
			Issuer:     cfg.Auth.JWT.Issuer,
			Audience:   cfg.Auth.JWT.Audience,
			JWKSURL:    cfg.Auth.JWT.JWKSURL,
			UserClaim:  cfg.Auth.JWT.UserClaim,
			NameClaim:  cfg.Auth.JWT.NameClaim,
			CookieName: cfg.Auth.CookieName,
			CacheTTL:   cfg.Auth.JWT.CacheTTL,
		})
		slog.Info("authentication enabled", "type", "jwt", "issuer", cfg.Auth.JWT.Issuer)
	default:
		a = &noop.Authenticator{Subject: cfg.Auth.Subject}
		slog.Warn("authentication disabled; all requests act as one user", "subject", cfg.Auth.Subject)
	}
	return auth.Middleware(&auth.Chain{Authenticators: []auth.Authenticator{a}})
}
