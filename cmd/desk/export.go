package main

import (
	"fmt"

	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/registry"
	"github.com/Veraticus/clientdesk/internal/sheets"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export data to Google Sheets",
	}

	cmd.AddCommand(exportRosterCmd())
	cmd.AddCommand(exportAuthCmd())

	return cmd
}

func exportRosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster",
		Short: "Write the client roster to a spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			clients, err := registry.New(a.store, a.logger).List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list clients: %w", err)
			}

			writer, err := sheets.NewWriter(ctx, a.cfg.SheetsWriterConfig(), a.logger)
			if err != nil {
				return err
			}
			id, err := writer.WriteRoster(ctx, clients)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d clients to spreadsheet %s", len(clients), id)))
			return nil
		},
	}
}

func exportAuthCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize roster export with a Google account",
		Long: `Run the OAuth consent flow and store the refresh token in sheets.token_file.
Not needed when a service account is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			_, err = sheets.AuthorizeInteractive(ctx, sheets.OAuth2Config{
				ClientID:     a.cfg.Sheets.ClientID,
				ClientSecret: a.cfg.Sheets.ClientSecret,
				TokenFile:    a.cfg.Sheets.TokenFile,
				CallbackAddr: addr,
			}, func(url string) {
				fmt.Fprintln(out, cli.FormatInfo("Open this URL to authorize roster export:"))
				fmt.Fprintln(out, url)
			}, a.logger)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, cli.FormatSuccess("Authorized. Token saved to "+a.cfg.Sheets.TokenFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "callback", sheets.DefaultCallbackAddr, "Address for the OAuth redirect listener")
	return cmd
}
