package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/mcplab/pkg/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL schema migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Type != "postgres" {
		return fmt.Errorf("migrate requires storage.type \"postgres\", got %q", cfg.Storage.Type)
	}

	store, err := postgres.New(cmd.Context(), postgres.Config{
		DSN:      cfg.Storage.Postgres.DSN,
		MaxConns: cfg.Storage.Postgres.MaxConns,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Migrate(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
	return nil
}
