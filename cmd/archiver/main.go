package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/user/book-archiver/internal/usecase"
)

var (
	version = "dev"
	envFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// The user has already been told there is nothing to export.
		if !errors.Is(err, usecase.ErrNoPages) {
			color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "archiver",
		Short:         "Archive the pages of an online book reader into a PDF",
		Long:          "Watches a browser-based book reader, captures every page image it renders and exports the collected pages as a single PDF.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "Environment file to read configuration from")
	flags.StringP("url", "u", "", "Reader URL (watch) or document address (export, clear, status)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("backend", "", "Storage backend: sqlite, redis, postgres, memory")

	root.AddCommand(
		newWatchCmd(),
		newExportCmd(),
		newClearCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "archiver version %s\n", version)
		},
	}
}
