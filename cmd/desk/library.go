package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/spf13/cobra"
)

func libraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the legal resource library used by audits",
	}

	cmd.AddCommand(addLibraryCmd())
	cmd.AddCommand(searchLibraryCmd())
	cmd.AddCommand(listLibraryCmd())
	cmd.AddCommand(deleteLibraryCmd())

	return cmd
}

func addLibraryCmd() *cobra.Command {
	var (
		doc      model.LawDoc
		file     string
		tagsFlag string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a statute, regulation or guide",
		Example: `  desk library add --title "FCRA 611" --category statute \
    --citation "15 U.S.C. 1681i" --file fcra-611.txt --tags fcra,reinvestigation`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				data, err := os.ReadFile(file) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				doc.Content = string(data)
			}
			doc.Tags = splitList(tagsFlag)

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.library().Add(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("failed to add document: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Added "+doc.Title+" ("+id+")"))
			return nil
		},
	}

	cmd.Flags().StringVar(&doc.Title, "title", "", "Title")
	cmd.Flags().StringVar(&doc.Category, "category", "", "Category (statute, regulation, case, guide)")
	cmd.Flags().StringVar(&doc.Citation, "citation", "", "Citation")
	cmd.Flags().StringVar(&doc.Content, "content", "", "Document text")
	cmd.Flags().StringVar(&file, "file", "", "Read the document text from a file")
	cmd.Flags().StringVar(&tagsFlag, "tags", "", "Comma separated tags")
	return cmd
}

func searchLibraryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.library().Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No matches."))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.LawDocTable(docs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum results")
	return cmd
}

func listLibraryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List library documents by title",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.library().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list library: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.LawDocTable(docs))
			return nil
		},
	}
}

func deleteLibraryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-id>",
		Short: "Remove a library document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.library().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+args[0]))
			return nil
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
