package main

import (
	"crypto/tls"
	"fmt"

	"github.com/Veraticus/clientdesk/internal/certs"
	"github.com/Veraticus/clientdesk/internal/functions"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the callable functions over HTTP",
		Long: `Serve POST /functions/forensicAudit and POST /functions/draftLetter.
When no inference provider is configured both answer 503.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				auditor functions.Auditor
				drafter functions.LetterDrafter
			)
			if o, err := a.orchestrator(ctx); err != nil {
				a.logger.Warn("forensic audit disabled", "error", err)
			} else {
				auditor = o
			}
			if d, err := a.drafter(ctx); err != nil {
				a.logger.Warn("letter drafting disabled", "error", err)
			} else {
				drafter = d
			}

			var tlsConfig *tls.Config
			if a.cfg.Functions.TLS {
				tlsConfig, err = certs.NewStore(a.cfg.Functions.CertDir).TLSConfig()
				if err != nil {
					return fmt.Errorf("failed to prepare TLS certificate: %w", err)
				}
			}

			return functions.NewServer(auditor, drafter, a.logger).ListenAndServe(ctx, a.cfg.Functions.Addr, tlsConfig)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides functions.addr)")
	configKey(cmd.Flags(), "addr", "functions.addr")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed localhost certificate")
	configKey(cmd.Flags(), "tls", "functions.tls")
	return cmd
}
