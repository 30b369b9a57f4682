package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/clientdesk/internal/cli"
	"github.com/Veraticus/clientdesk/internal/vault"
	"github.com/spf13/cobra"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Store and share client documents",
	}

	cmd.AddCommand(uploadVaultCmd())
	cmd.AddCommand(listVaultCmd())
	cmd.AddCommand(linkVaultCmd())
	cmd.AddCommand(deleteVaultCmd())

	return cmd
}

func uploadVaultCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "upload <client-id> <file>...",
		Short: "Upload files to a client's vault",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, paths := args[0], args[1:]

			files := make([]vault.File, 0, len(paths))
			for _, p := range paths {
				f, err := os.Open(p) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", p, err)
				}
				defer func() { _ = f.Close() }()

				info, err := f.Stat()
				if err != nil {
					return fmt.Errorf("failed to stat %s: %w", p, err)
				}
				files = append(files, vault.File{
					Body:        f,
					Name:        filepath.Base(p),
					ContentType: contentType(p),
					Category:    category,
					Size:        info.Size(),
				})
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.vault(ctx)
			if err != nil {
				return err
			}

			docs, err := svc.UploadMany(ctx, clientID, files)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			for _, d := range docs {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Uploaded %s (%s)", d.Name, formatFileSize(d.Size))))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Document category (id, report, letter, other)")
	return cmd
}

func listVaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <client-id>",
		Short: "List a client's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			// Metadata lives in the document store, so no blob connection is needed.
			svc := vault.NewService(a.store, nil, a.logger)
			docs, err := svc.List(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}
			rows := make([][]string, 0, len(docs))
			for _, d := range docs {
				uploaded := ""
				if d.UploadedAt != nil {
					uploaded = d.UploadedAt.Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{d.ID, d.Name, d.Category, formatFileSize(d.Size), uploaded})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Name", "Category", "Size", "Uploaded"}, rows))
			return nil
		},
	}
}

func linkVaultCmd() *cobra.Command {
	var expiry time.Duration

	cmd := &cobra.Command{
		Use:   "link <client-id> <doc-id>",
		Short: "Print a temporary download link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.vault(ctx)
			if err != nil {
				return err
			}
			if expiry == 0 {
				expiry = a.cfg.Vault.LinkTTL
			}
			url, err := svc.Link(ctx, args[0], args[1], expiry)
			if err != nil {
				return fmt.Errorf("failed to create link: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().DurationVar(&expiry, "expiry", 0, "Link lifetime (default vault.link_ttl)")
	return cmd
}

func deleteVaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <client-id> <doc-id>",
		Short: "Delete a document and its stored bytes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.vault(ctx)
			if err != nil {
				return err
			}
			if err := svc.Delete(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+args[1]))
			return nil
		},
	}
}

func contentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
