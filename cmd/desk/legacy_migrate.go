package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/migration"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func legacyMigrateCmd() *cobra.Command {
	var armed bool

	cmd := &cobra.Command{
		Use:   "legacy-migrate",
		Short: "Move legacy funding records into banking relationships",
		Long: `Relocate every client's legacy "funding" records to banking_relationships,
seed the active-ops mirror, and move each legacy session under the mirror.

The run is not resumable. A failure leaves earlier clients migrated; rerunning
is safe. Pass --checkpoint to snapshot the database first.`,
		Example: `  # Dry refusal: nothing is written without --arm
  desk legacy-migrate

  # Run with a recovery checkpoint
  desk legacy-migrate --arm --checkpoint`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			interrupts := cli.NewInterruptHandler(out)
			ctx := interrupts.HandleInterrupts(cmd.Context(), "Migration",
				"Records already relocated are kept. Rerunning the migration is safe.")

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			console := cli.NewMigrationConsole(out)
			deps := migration.Deps{
				Store:    a.store,
				Log:      migration.NewLog(console.Entry),
				Logger:   a.logger,
				Progress: console.Progress,
			}
			if viper.GetBool("migration.checkpoint") {
				manager, err := a.store.NewCheckpointManager()
				if err != nil {
					return fmt.Errorf("failed to create checkpoint manager: %w", err)
				}
				deps.Checkpointer = manager
			}

			runner, err := migration.NewRunner(deps)
			if err != nil {
				return err
			}

			summary, err := runner.Run(ctx, migration.Options{
				Armed:      armed,
				Checkpoint: viper.GetBool("migration.checkpoint"),
			})
			console.Finish()

			if errors.Is(err, common.ErrNotArmed) {
				fmt.Fprintln(out, cli.FormatWarning("Console is not armed. Re-run with --arm to write."))
				return nil
			}
			if err != nil {
				if summary.Checkpoint != "" {
					fmt.Fprintln(out, cli.FormatInfo("Restore with: desk checkpoint restore "+summary.Checkpoint))
				}
				return fmt.Errorf("migration aborted: %w", err)
			}

			fmt.Fprintln(out, cli.RenderBox("Legacy migration", fmt.Sprintf(
				"Outcome: %s\nClients scanned: %d\nClients migrated: %d\nClients skipped: %d\nLenders moved: %d\nSessions moved: %d",
				summary.Outcome, summary.ClientsScanned, summary.ClientsMigrated, summary.ClientsSkipped,
				summary.LendersMigrated, summary.SessionsMoved)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&armed, "arm", false, "Arm the console; without it the run is rejected")
	cmd.Flags().Bool("checkpoint", false, "Create a database checkpoint before writing")
	configKey(cmd.Flags(), "checkpoint", "migration.checkpoint")
	return cmd
}
