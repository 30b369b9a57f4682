package main

import (
	"fmt"

	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/letters"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/spf13/cobra"
)

func lettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "letters",
		Short: "Draft and review dispute letters",
	}

	cmd.AddCommand(draftLetterCmd())
	cmd.AddCommand(listLettersCmd())

	return cmd
}

func draftLetterCmd() *cobra.Command {
	var (
		req          letters.Request
		accountsPath string
		save         bool
	)

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft a bureau dispute letter for selected accounts",
		Example: `  # Second-round letter to Equifax, stored with the client
  desk letters draft --client abc123 --bureau equifax --round 2 --accounts accounts.json --save`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := readJSONFile(cmd, accountsPath, &req.Accounts); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			drafter, err := a.drafter(ctx)
			if err != nil {
				return err
			}

			letter, err := drafter.Draft(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to draft letter: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderBox("Evidence guide", letter.EvidenceGuide))
			fmt.Fprintln(out, letter.LetterBody)

			if save {
				id, err := drafter.Save(ctx, req.ClientID, letter)
				if err != nil {
					return fmt.Errorf("failed to save letter: %w", err)
				}
				fmt.Fprintln(out, cli.FormatSuccess("Saved letter "+id))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ClientID, "client", "", "Client id")
	cmd.Flags().StringVar(&req.Bureau, "bureau", "", "Bureau (experian, equifax, transunion)")
	cmd.Flags().StringVar(&req.ReportDate, "report-date", "", "Date of the credit report")
	cmd.Flags().IntVar(&req.Round, "round", 1, "Dispute round")
	cmd.Flags().StringVar(&req.Context, "context", "", "Extra context for the letter")
	cmd.Flags().StringVar(&accountsPath, "accounts", "-", "JSON file of merged accounts (- for stdin)")
	cmd.Flags().BoolVar(&save, "save", false, "Store the letter with the client")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("bureau")
	return cmd
}

func listLettersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <client-id>",
		Short: "List a client's saved letters, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			saved, err := letters.ListLetters(ctx, a.store, args[0])
			if err != nil {
				return fmt.Errorf("failed to list letters: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), letterTable(saved))
			return nil
		},
	}
}

func letterTable(saved []model.Letter) string {
	rows := make([][]string, 0, len(saved))
	for _, l := range saved {
		created := ""
		if l.CreatedAt != nil {
			created = l.CreatedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{l.ID, string(l.Bureau), fmt.Sprint(l.Round), created, l.Engine})
	}
	return cli.RenderTable([]string{"ID", "Bureau", "Round", "Created", "Engine"}, rows)
}
