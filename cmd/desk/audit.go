package main

import (
	"fmt"

	"github.com/Veraticus/clientdesk/internal/audit"
	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run and review forensic credit audits",
	}

	cmd.AddCommand(runAuditCmd())
	cmd.AddCommand(findingsAuditCmd())

	return cmd
}

func runAuditCmd() *cobra.Command {
	var (
		clientID     string
		accountsPath string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Audit selected tradelines for reporting violations",
		Example: `  # Audit the accounts in a merged-report export
  desk audit run --client abc123 --accounts accounts.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var accounts []model.MergedAccount
			if err := readJSONFile(cmd, accountsPath, &accounts); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			orchestrator, err := a.orchestrator(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%s Auditing %d account(s) with %s", cli.RobotIcon, len(accounts), orchestrator.Engine())))

			result, err := orchestrator.Run(ctx, clientID, accounts)
			if err != nil {
				return fmt.Errorf("audit failed: %w", err)
			}

			if asJSON {
				return writeJSON(out, audit.Envelope{ForensicAudit: result})
			}

			fmt.Fprintln(out, cli.RenderBox("Forensic audit", fmt.Sprintf(
				"Accounts: %d\nViolations: %d\n%s",
				len(result.Accounts), result.Summary.ViolationCount, result.Summary.Overview)))
			for _, acct := range result.Accounts {
				fmt.Fprintln(out, cli.BoldStyle.Render(acct.AccountName))
				for _, v := range acct.Violations {
					fmt.Fprintf(out, "  %s %s: %s\n", cli.ErrorIcon, v.Law, v.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "Client id")
	cmd.Flags().StringVar(&accountsPath, "accounts", "-", "JSON file of merged accounts (- for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result envelope as JSON")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func findingsAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "findings <client-id>",
		Short: "List persisted audit findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			findings, err := audit.ListFindings(ctx, a.store, args[0])
			if err != nil {
				return fmt.Errorf("failed to list findings: %w", err)
			}
			if len(findings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No findings."))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.FindingTable(findings))
			return nil
		},
	}
}
