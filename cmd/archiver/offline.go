package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/book-archiver/internal/domain"
	"github.com/user/book-archiver/internal/usecase"
)

func newExportCmd() *cobra.Command {
	var outputFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored pages of a document to PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := requireURL(a.cfg); err != nil {
				return err
			}

			st := a.openStore(cmd.Context(), a.cfg.ReaderURL)
			archive, err := a.newArchive(st, nil, []usecase.Notifier{a.console})
			if err != nil {
				return err
			}

			path := outputFile
			if path == "" {
				path = a.cfg.OutputPath()
			}
			n, err := archive.ExportToFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			a.console.Successf("Wrote %d pages to %s", n, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output PDF file (default OUTPUT_DIR/PDF_FILENAME)")
	cmd.Flags().String("output-dir", "", "Output directory")
	cmd.Flags().String("format", "", "Page format: A3, A4, A5, Letter, Legal")
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored pages of a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := requireURL(a.cfg); err != nil {
				return err
			}

			st := a.openStore(cmd.Context(), a.cfg.ReaderURL)
			archive, err := a.newArchive(st, nil, []usecase.Notifier{a.console})
			if err != nil {
				return err
			}
			return archive.Reset(cmd.Context())
		},
	}
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how many pages are stored for a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := requireURL(a.cfg); err != nil {
				return err
			}

			st := a.openStore(cmd.Context(), a.cfg.ReaderURL)
			if asJSON {
				out, err := json.Marshal(domain.NewStatus(st.Len()))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			a.console.ReportCount(cmd.Context(), st.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}
