package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/cli"
	"github.com/clio-labs/chronotex/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "chronotex",
		Short: "Chronotex CLI - Time-windowed archive research",
		Long: `Chronotex CLI searches an embedded historical archive and asks an LLM to
synthesize answers with citations.

Environment variables:
  CHRONOTEX_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ExpandCmd())
	rootCmd.AddCommand(client.ExportCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
