package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/config"
	"github.com/Veraticus/clientdesk/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	cmd.AddCommand(migrateDBCmd())
	return cmd
}

func migrateDBCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			before, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status {
				fmt.Fprintf(out, "Database: %s\nSchema version: %d (latest %d)\n", cfg.Database.Path, before, storage.ExpectedSchemaVersion)
				return nil
			}

			slog.Info("Running database migrations", "database", cfg.Database.Path, "from", before)
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			after, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Schema at version %d (was %d)", after, before)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Show the schema version without migrating")
	return cmd
}
