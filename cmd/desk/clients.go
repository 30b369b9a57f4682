package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/registry"
	"github.com/spf13/cobra"
)

func clientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage the client roster",
		Example: `  # List clients, pinned first
  desk clients list

  # Follow the roster live
  desk clients watch

  # Onboard a new client
  desk clients onboard --first Ann --last Baker --email ann@example.com`,
	}

	cmd.AddCommand(listClientsCmd())
	cmd.AddCommand(watchClientsCmd())
	cmd.AddCommand(onboardClientCmd())
	cmd.AddCommand(pinClientCmd())
	cmd.AddCommand(statusClientCmd())
	cmd.AddCommand(scoresClientCmd())
	cmd.AddCommand(messageClientCmd())
	cmd.AddCommand(deleteClientsCmd())

	return cmd
}

type clientJSON struct {
	ID string `json:"id"`
	model.Client
}

func listClientsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			clients, err := registry.New(a.store, a.logger).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list clients: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				rows := make([]clientJSON, 0, len(clients))
				for _, c := range clients {
					rows = append(rows, clientJSON{ID: c.ID, Client: c})
				}
				return writeJSON(out, rows)
			}
			if len(clients) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No clients found."))
				return nil
			}
			fmt.Fprint(out, cli.ClientTable(clients))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print clients as JSON")
	return cmd
}

func watchClientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the roster every time it changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			sub := registry.NewSubscription(a.store, a.logger, registry.WithOnChange(func(clients []model.Client) {
				fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Clients (%d)", len(clients))))
				fmt.Fprint(out, cli.ClientTable(clients))
			}))
			if err := sub.Start(ctx); err != nil {
				return fmt.Errorf("failed to start subscription: %w", err)
			}
			defer sub.Stop()

			<-ctx.Done()
			return nil
		},
	}
}

func onboardClientCmd() *cobra.Command {
	var nc registry.NewClient

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create a client in the Onboarding state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := registry.New(a.store, a.logger).Onboard(cmd.Context(), nc)
			if err != nil {
				return fmt.Errorf("failed to onboard client: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Onboarded client "+id))
			return nil
		},
	}

	cmd.Flags().StringVar(&nc.FirstName, "first", "", "First name")
	cmd.Flags().StringVar(&nc.LastName, "last", "", "Last name")
	cmd.Flags().StringVar(&nc.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&nc.Phone, "phone", "", "Phone number")
	return cmd
}

func pinClientCmd() *cobra.Command {
	var unpin bool

	cmd := &cobra.Command{
		Use:   "pin <client-id>",
		Short: "Pin a client to the top of the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := registry.New(a.store, a.logger).SetPinned(cmd.Context(), args[0], !unpin); err != nil {
				return fmt.Errorf("failed to update pin: %w", err)
			}

			verb := "Pinned"
			if unpin {
				verb = "Unpinned"
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(verb+" client "+args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unpin, "unpin", false, "Remove the pin instead")
	return cmd
}

func statusClientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <client-id> <status>",
		Short: "Change a client's status (Active, Lead, Onboarding, Dispute, Archived)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, ok := model.ParseClientStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := registry.New(a.store, a.logger).SetStatus(cmd.Context(), args[0], status); err != nil {
				return fmt.Errorf("failed to set status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Client %s is now %s", args[0], status)))
			return nil
		},
	}
}

func scoresClientCmd() *cobra.Command {
	var experian, equifax, transUnion int

	cmd := &cobra.Command{
		Use:   "scores <client-id>",
		Short: "Record bureau scores; omitted bureaus are cleared",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scores := model.Scores{
				Experian:   changedInt(cmd, "experian", experian),
				Equifax:    changedInt(cmd, "equifax", equifax),
				TransUnion: changedInt(cmd, "transunion", transUnion),
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := registry.New(a.store, a.logger).IngestScores(cmd.Context(), args[0], scores); err != nil {
				return fmt.Errorf("failed to record scores: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Scores recorded: EX %s EQ %s TU %s",
				cli.FormatScore(scores.Experian), cli.FormatScore(scores.Equifax), cli.FormatScore(scores.TransUnion))))
			return nil
		},
	}

	cmd.Flags().IntVar(&experian, "experian", 0, "Experian score")
	cmd.Flags().IntVar(&equifax, "equifax", 0, "Equifax score")
	cmd.Flags().IntVar(&transUnion, "transunion", 0, "TransUnion score")
	return cmd
}

func messageClientCmd() *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "message <client-id> <text>",
		Short: "Post a message to a client's thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := registry.New(a.store, a.logger).PostMessage(cmd.Context(), args[0], args[1], sender)
			if err != nil {
				return fmt.Errorf("failed to post message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Posted message "+id))
			return nil
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "admin", "Message sender")
	return cmd
}

func deleteClientsCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <client-id>...",
		Short: "Delete clients (sub-collections are not removed)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if !force {
				fmt.Fprintln(out, cli.FormatWarning("Deleting a client leaves its funding, audit and vault records behind."))
				ok, err := cli.Confirm(ctx, cli.NewNonBlockingReader(stdin(cmd)), out, fmt.Sprintf("Delete %d client(s)?", len(args)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, cli.SubtleStyle.Render("Deletion cancelled."))
					return nil
				}
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := registry.New(a.store, a.logger).DeleteMany(ctx, args); err != nil {
				return fmt.Errorf("failed to delete clients: %w", err)
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Deleted %d client(s)", len(args))))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

func changedInt(cmd *cobra.Command, flag string, v int) *int {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &v
}

func stdin(cmd *cobra.Command) io.Reader {
	if r := cmd.InOrStdin(); r != nil {
		return r
	}
	return os.Stdin
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSONFile decodes a JSON file, or stdin when path is "-".
func readJSONFile(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = stdin(cmd)
	} else {
		f, err := os.Open(path) // #nosec G304
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
