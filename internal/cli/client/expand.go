package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/service"
)

// ExpandCmd creates the expand command.
func ExpandCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "expand <expression>",
		Short: "Expand keyword terms",
		Long:  "Shows the word-vector neighbors of each term in a boolean keyword expression.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runExpand(cmd, args[0], count, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 5, "Neighbors per term")

	return cmd
}

func runExpand(cmd *cobra.Command, expression string, count int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("expression", expression)
	query.Set("count", strconv.Itoa(count))

	resp, err := api.GetWithQuery("/api/keywords/expand", query)
	if err != nil {
		return fmt.Errorf("expansion failed: %w", err)
	}

	var expansions []service.TermExpansion
	if err := json.Unmarshal(resp.Data, &expansions); err != nil {
		return fmt.Errorf("failed to parse expansions: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(expansions, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	for _, exp := range expansions {
		if exp.OutOfVocabulary {
			fmt.Printf("%s: not in vocabulary\n", exp.Term)
			continue
		}
		fmt.Printf("%s:\n", exp.Term)
		for _, n := range exp.Neighbors {
			fmt.Printf("  %-20s %.3f\n", n.Word, n.Similarity)
		}
	}
	return nil
}
