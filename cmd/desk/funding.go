package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/funding"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/spf13/cobra"
)

func fundingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "funding",
		Short: "Manage banking relationships and their active-ops mirror",
		Long: `Every banking relationship is stored twice: the master record and the
active-operations mirror. These commands always write both in one transaction.`,
	}

	cmd.AddCommand(createFundingCmd())
	cmd.AddCommand(syncFundingCmd())
	cmd.AddCommand(sessionFundingCmd())
	cmd.AddCommand(deleteFundingCmd())
	cmd.AddCommand(listFundingCmd())
	cmd.AddCommand(sourcesFundingCmd())

	return cmd
}

func createFundingCmd() *cobra.Command {
	var (
		lender model.LenderRelationship
		tier   string
		pulls  string
	)

	cmd := &cobra.Command{
		Use:   "create <client-id>",
		Short: "Add a banking relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTier(tier)
			if err != nil {
				return err
			}
			lender.Tier = t
			if lender.Pulls, err = parsePulls(pulls); err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := funding.NewSynchronizer(a.store, a.logger).Create(cmd.Context(), args[0], lender)
			if err != nil {
				return fmt.Errorf("failed to create relationship: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Created relationship "+id))
			return nil
		},
	}

	cmd.Flags().StringVar(&lender.Institution, "institution", "", "Institution name")
	cmd.Flags().StringVar(&tier, "tier", string(model.Tier1), "Tier (1, 2, 3, subprime)")
	cmd.Flags().IntVar(&lender.MinScore, "min-score", 0, "Minimum score")
	cmd.Flags().StringVar(&pulls, "pulls", "", "Bureaus pulled, comma separated (experian,equifax,transunion)")
	cmd.Flags().BoolVar(&lender.SoftPull, "soft-pull", false, "Lender offers a soft pull")
	cmd.Flags().StringVar(&lender.Status, "status", "", "Initial status")
	cmd.Flags().StringVar(&lender.Strategy, "strategy", "", "Strategy notes")
	cmd.Flags().StringVar(&lender.MembershipNotes, "membership", "", "Membership notes")
	_ = cmd.MarkFlagRequired("institution")
	return cmd
}

func syncFundingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <client-id> <lender-id> <status>",
		Short: "Set a relationship's status on master and mirror",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			syncer := funding.NewSynchronizer(a.store, a.logger)
			// The master record seeds a missing mirror.
			master, err := syncer.Master(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to load relationship: %w", err)
			}
			if err := syncer.SyncStatus(ctx, args[0], args[1], args[2], *master); err != nil {
				return fmt.Errorf("failed to sync status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s is now %q", master.Institution, args[2])))
			return nil
		},
	}
}

func sessionFundingCmd() *cobra.Command {
	var session model.FundingSession

	cmd := &cobra.Command{
		Use:   "session <client-id> <lender-id>",
		Short: "Record a funding session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			session.Date = &now

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := funding.NewSynchronizer(a.store, a.logger).RecordSession(cmd.Context(), args[0], args[1], session)
			if err != nil {
				return fmt.Errorf("failed to record session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Recorded session "+id))
			return nil
		},
	}

	cmd.Flags().StringVar(&session.Outcome, "outcome", "", "Outcome (approved, denied, pending)")
	cmd.Flags().Float64Var(&session.AmountRequested, "requested", 0, "Amount requested")
	cmd.Flags().Float64Var(&session.AmountApproved, "approved", 0, "Amount approved")
	cmd.Flags().StringVar(&session.Notes, "notes", "", "Notes")
	return cmd
}

func deleteFundingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <client-id> <lender-id>",
		Short: "Delete a relationship, its mirror and mirrored sessions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := funding.NewSynchronizer(a.store, a.logger).CascadingDelete(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("failed to delete relationship: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted relationship "+args[1]))
			return nil
		},
	}
}

func listFundingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <client-id>",
		Short: "List a client's banking relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			lenders, err := funding.NewSynchronizer(a.store, a.logger).List(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list relationships: %w", err)
			}
			if len(lenders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No banking relationships."))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.LenderTable(lenders))
			return nil
		},
	}
}

func sourcesFundingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the funding source catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := funding.NewSynchronizer(a.store, a.logger).Sources(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sources: %w", err)
			}
			rows := make([][]string, 0, len(sources))
			for _, s := range sources {
				rows = append(rows, []string{s.ID, s.Institution, string(s.Tier), fmt.Sprint(s.MinScore), s.Notes})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Institution", "Tier", "Min score", "Notes"}, rows))
			return nil
		},
	}
}

func parseTier(s string) (model.Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "tier 1", "tier1":
		return model.Tier1, nil
	case "2", "tier 2", "tier2":
		return model.Tier2, nil
	case "3", "tier 3", "tier3":
		return model.Tier3, nil
	case "subprime":
		return model.TierSubprime, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

func parsePulls(s string) (model.BureauPulls, error) {
	var pulls model.BureauPulls
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bureau, ok := model.ParseBureau(part)
		if !ok {
			return pulls, fmt.Errorf("unknown bureau %q", part)
		}
		switch bureau {
		case model.BureauExperian:
			pulls.Experian = true
		case model.BureauEquifax:
			pulls.Equifax = true
		case model.BureauTransUnion:
			pulls.TransUnion = true
		}
	}
	return pulls, nil
}
