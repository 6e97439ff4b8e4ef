package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/service"
)

// ConfigCmd creates the config command.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show server configuration",
		Long:  "Shows the server's corpus bounds, retrieval defaults, and available models.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runConfig(cmd, outputJSON)
		},
	}

	return cmd
}

func runConfig(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/api/config")
	if err != nil {
		return fmt.Errorf("config fetch failed: %w", err)
	}

	var settings service.Settings
	if err := json.Unmarshal(resp.Data, &settings); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(settings, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	sizes := make([]string, 0, len(settings.ChunkSizes))
	for _, s := range settings.ChunkSizes {
		sizes = append(sizes, fmt.Sprintf("%d", s))
	}

	fmt.Printf("corpus:            %d-%d\n", settings.CorpusStartYear, settings.CorpusEndYear)
	fmt.Printf("chunk sizes:       %s\n", strings.Join(sizes, ", "))
	fmt.Printf("top-k:             %d (max %d)\n", settings.DefaultTopK, settings.MaxTopK)
	fmt.Printf("max window size:   %d years\n", settings.MaxWindowSize)
	fmt.Printf("analysis model:    %s\n", settings.DefaultModel)
	fmt.Printf("rerank model:      %s\n", settings.RerankModel)
	fmt.Printf("keyword expansion: %t\n", settings.KeywordExpansion)
	fmt.Printf("object storage:    %t\n", settings.ObjectStorage)
	return nil
}
