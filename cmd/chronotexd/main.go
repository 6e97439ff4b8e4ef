package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/cli"
	"github.com/clio-labs/chronotex/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chronotexd",
		Short: "Chronotex daemon and CLI",
		Long:  "Chronotex daemon for running the API server, ingesting archive chunks, and sweeping expired exports",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.SweepCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
