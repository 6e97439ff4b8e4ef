package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/domain"
)

// ExportCmd creates the export command group.
func ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Retrieve export artifacts",
		Long:  "Fetch stored analysis exports before their retention window expires.",
	}

	cmd.AddCommand(ExportGetCmd())
	cmd.AddCommand(ExportCSVCmd())

	return cmd
}

// ExportGetCmd creates the export get command.
func ExportGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch an export artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runExportGet(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

// ExportCSVCmd creates the export csv command.
func ExportCSVCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "csv <id>",
		Short: "Download an export's chunks as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportCSV(cmd, args[0], outFile)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write CSV to file instead of stdout")

	return cmd
}

func runExportGet(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/api/export/" + id)
	if err != nil {
		return fmt.Errorf("export fetch failed: %w", err)
	}

	var export domain.Export
	if err := json.Unmarshal(resp.Data, &export); err != nil {
		return fmt.Errorf("failed to parse export: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(export, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("export %s (%s)\n", export.ID, export.Model)
	fmt.Printf("question: %s\n\n", export.Question)
	fmt.Println(export.Answer)
	fmt.Printf("\n%d chunks, expires %s\n", len(export.Chunks), export.ExpiresAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runExportCSV(cmd *cobra.Command, id, outFile string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	data, err := api.GetRaw("/api/export/" + id + "/csv")
	if err != nil {
		return fmt.Errorf("csv download failed: %w", err)
	}

	if outFile == "" {
		fmt.Print(string(data))
		return nil
	}

	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", outFile, len(data))
	return nil
}
