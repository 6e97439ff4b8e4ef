package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/domain"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query           string   `json:"query"`
	YearStart       int      `json:"year_start,omitempty"`
	YearEnd         int      `json:"year_end,omitempty"`
	WindowSize      int      `json:"window_size,omitempty"`
	Keywords        string   `json:"keywords,omitempty"`
	SearchIn        []string `json:"search_in,omitempty"`
	ExpandWords     int      `json:"expand_words,omitempty"`
	ChunksPerWindow int      `json:"chunks_per_window,omitempty"`
	TopK            int      `json:"top_k,omitempty"`
	MinRelevance    float64  `json:"min_relevance,omitempty"`
	Model           string   `json:"model,omitempty"`
	SortKey         string   `json:"sort_key,omitempty"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Chunks  []domain.Chunk      `json:"chunks"`
	Windows []domain.TimeWindow `json:"windows"`
	Stats   domain.SearchStats  `json:"stats"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var req SearchRequest
	var useLLM bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the archive",
		Long:  "Searches the archive by semantic similarity, optionally split into time windows with LLM relevance reranking.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req.Query = args[0]
			return runSearch(cmd, req, useLLM, outputJSON)
		},
	}

	cmd.Flags().IntVar(&req.YearStart, "from", 0, "First year of the search range")
	cmd.Flags().IntVar(&req.YearEnd, "to", 0, "Last year of the search range")
	cmd.Flags().IntVarP(&req.WindowSize, "window", "w", 0, "Time window size in years (LLM-assisted only)")
	cmd.Flags().StringVarP(&req.Keywords, "keywords", "k", "", "Boolean keyword filter (AND, OR, NOT)")
	cmd.Flags().StringSliceVar(&req.SearchIn, "search-in", nil, "Document fields the keyword filter matches (title, summary, text, tags)")
	cmd.Flags().IntVar(&req.ExpandWords, "expand", 0, "Word-vector neighbors per keyword term")
	cmd.Flags().IntVarP(&req.TopK, "top-k", "n", 0, "Chunks to keep per window")
	cmd.Flags().IntVar(&req.ChunksPerWindow, "candidates", 0, "Candidates to retrieve per window before reranking")
	cmd.Flags().Float64Var(&req.MinRelevance, "min-relevance", 0, "Minimum vector similarity in [0, 1]")
	cmd.Flags().StringVar(&req.Model, "model", "", "Reranking model override")
	cmd.Flags().StringVar(&req.SortKey, "sort", "", "Result ordering: llm or vector")
	cmd.Flags().BoolVar(&useLLM, "llm", false, "Use windowed retrieval with LLM relevance reranking")

	return cmd
}

func runSearch(cmd *cobra.Command, req SearchRequest, useLLM, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := "/api/search/standard"
	if useLLM {
		path = "/api/search/llm-assisted"
	}

	resp, err := api.Post(path, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printSearchResults(searchResp)
	return nil
}

func printSearchResults(resp SearchResponse) {
	if len(resp.Chunks) == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Printf("Found %d chunks in %dms:\n\n", len(resp.Chunks), resp.Stats.SearchTimeMs)
	for i, chunk := range resp.Chunks {
		title := chunk.SourceFields["title"]
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("[%d] %s (%d)\n", chunk.OrdinalIndex, title, chunk.Year)
		fmt.Printf("    vector %.3f", chunk.VectorScore)
		if chunk.LLMScore != nil {
			fmt.Printf("  llm %.1f", *chunk.LLMScore)
		}
		fmt.Println()

		content := chunk.Content
		if len(content) > 200 {
			content = content[:197] + "..."
		}
		fmt.Printf("    %s\n", content)
		if chunk.LLMRationale != "" {
			fmt.Printf("    %s\n", chunk.LLMRationale)
		}
		if i < len(resp.Chunks)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	for _, warning := range resp.Stats.Warnings {
		fmt.Printf("\nwarning: %s\n", warning)
	}
}
