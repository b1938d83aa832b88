package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rhuss/mcplab/pkg/connection"
	"github.com/rhuss/mcplab/pkg/crypt"
	"github.com/rhuss/mcplab/pkg/mcp"
	"github.com/rhuss/mcplab/pkg/oauth"
	transporthttp "github.com/rhuss/mcplab/pkg/transport/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cipher, err := crypt.New(cfg.Crypto.Secret)
	if err != nil {
		return fmt.Errorf("creating token cipher: %w", err)
	}

	oauthClient := &http.Client{Timeout: cfg.OAuth.HTTPTimeout}
	flows := oauth.NewService(oauth.ServiceConfig{
		Discoverer: oauth.NewDiscoverer(oauth.DiscovererOptions{
			HTTPClient:        oauthClient,
			CacheTTL:          cfg.OAuth.DiscoveryCacheTTL,
			AllowInsecureHTTP: cfg.OAuth.AllowInsecureHTTP,
		}),
		Registrar:  oauth.NewRegistrar(store, oauthClient, cfg.RedirectURI(), cfg.OAuth.ClientName),
		Servers:    store,
		Cipher:     cipher,
		HTTPClient: oauthClient,
	})

	clientVersion := cfg.MCP.ClientVersion
	if clientVersion == "" {
		clientVersion = version
	}
	manager := connection.New(connection.Config{
		Opener: mcp.NewClient(mcp.Options{
			ClientName:    cfg.MCP.ClientName,
			ClientVersion: clientVersion,
			AllowStdio:    cfg.MCP.AllowStdio,
		}),
		Servers:        store,
		Cipher:         cipher,
		Flows:          flows,
		RequestTimeout: cfg.MCP.RequestTimeout,
	})

	adapterCfg := transporthttp.DefaultConfig()
	adapterCfg.Validation.AllowStdio = cfg.MCP.AllowStdio
	adapterCfg.Cookies = transporthttp.CookieConfig{
		Secure: cfg.Production(),
		MaxAge: cfg.OAuth.FlowCookieMaxAge,
	}
	adapterCfg.DashboardPath = cfg.OAuth.DashboardPath
	adapterCfg.MetricsPath = ""
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}
	adapterCfg.Logger = logger

	adapter := transporthttp.NewAdapter(transporthttp.Deps{
		Connector: manager,
		Callbacks: flows,
		Servers:   store,
		Health:    store,
		Auth:      buildAuth(cfg),
	}, adapterCfg)

	srv := transporthttp.NewServer(adapter,
		transporthttp.WithAddr(cfg.Addr()),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	slog.Info("mcplab starting",
		"version", version,
		"addr", cfg.Addr(),
		"public_url", cfg.Server.PublicURL,
		"redirect_uri", cfg.RedirectURI(),
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
	)
	return srv.ListenAndServe()
}
