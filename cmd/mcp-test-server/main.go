// Command mcp-test-server runs a tool server for trying out mcplab by hand.
// It serves the "echo", "get_time" and "fail" tools over streamable HTTP at
// /mcp and over SSE at /sse. With --protect both endpoints require a bearer
// token that the built-in authorization server issues after a dynamic
// client registration and an auto-approved authorization code flow.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/mcplab/pkg/mcptest"
)

type options struct {
	addr    string
	protect bool
	token   string
	oidc    bool
}

func main() {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "mcp-test-server",
		Short:        "Run an MCP tool server, optionally behind OAuth",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":"+envOr("PORT", "8090"), "listen address")
	cmd.Flags().BoolVar(&opts.protect, "protect", false, "require a bearer token issued by the built-in authorization server")
	cmd.Flags().StringVar(&opts.token, "token", "test-access-token", "access token issued and accepted when --protect is set")
	cmd.Flags().BoolVar(&opts.oidc, "oidc", false, "publish OpenID Connect discovery instead of RFC 8414 metadata")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	server := mcptest.NewToolServer()
	streamable := mcptest.StreamableHandler(server)
	sse := mcptest.SSEHandler(server)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})

	if opts.protect {
		as := mcptest.NewAuthServer(opts.token)
		if opts.oidc {
			as.Mode = mcptest.MetadataOIDC
		}
		as.Mount(mux)

		guard := &mcptest.BearerGuard{Token: opts.token}
		streamable = guard.Wrap(streamable)
		sse = guard.Wrap(sse)
	}
	mux.Handle("/mcp", streamable)
	mux.Handle("/sse", sse)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: opts.addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcp test server starting", "addr", opts.addr, "protected", opts.protect)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
