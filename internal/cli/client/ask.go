package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/service"
)

// AnalyzeRequest represents the analyze API request.
type AnalyzeRequest struct {
	Question string         `json:"question"`
	Chunks   []domain.Chunk `json:"chunks"`
	Model    string         `json:"model,omitempty"`
}

// ExportCreateRequest represents the export API request.
type ExportCreateRequest struct {
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Reasoning string         `json:"reasoning,omitempty"`
	Model     string         `json:"model,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Chunks    []domain.Chunk `json:"chunks"`
}

// AskCmd creates the ask command: retrieval plus LLM analysis in one call.
func AskCmd() *cobra.Command {
	var req SearchRequest
	var model string
	var export bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a research question",
		Long:  "Runs an LLM-assisted search for the question, has the model synthesize an answer from the retrieved chunks, and prints the answer with citations.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req.Query = args[0]
			return runAsk(cmd, req, model, export, outputJSON)
		},
	}

	cmd.Flags().IntVar(&req.YearStart, "from", 0, "First year of the search range")
	cmd.Flags().IntVar(&req.YearEnd, "to", 0, "Last year of the search range")
	cmd.Flags().IntVarP(&req.WindowSize, "window", "w", 0, "Time window size in years")
	cmd.Flags().StringVarP(&req.Keywords, "keywords", "k", "", "Boolean keyword filter (AND, OR, NOT)")
	cmd.Flags().IntVarP(&req.TopK, "top-k", "n", 0, "Chunks to keep per window")
	cmd.Flags().StringVar(&model, "model", "", "Analysis model override")
	cmd.Flags().BoolVar(&export, "export", false, "Store the answer as a retrievable export artifact")

	return cmd
}

func runAsk(cmd *cobra.Command, req SearchRequest, model string, export, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	searchResp, err := api.Post("/api/search/llm-assisted", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var search SearchResponse
	if err := json.Unmarshal(searchResp.Data, &search); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}
	if len(search.Chunks) == 0 {
		fmt.Println("No relevant chunks found.")
		return nil
	}

	analyzeResp, err := api.Post("/api/search/analyze", AnalyzeRequest{
		Question: req.Query,
		Chunks:   search.Chunks,
		Model:    model,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	var analysis service.AnalyzeOutput
	if err := json.Unmarshal(analyzeResp.Data, &analysis); err != nil {
		return fmt.Errorf("failed to parse analysis: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(analysis, "", "  ")
		fmt.Println(string(output))
	} else {
		printAnalysis(analysis)
	}

	if export {
		return createExport(api, req.Query, analysis, search.Chunks)
	}
	return nil
}

func printAnalysis(analysis service.AnalyzeOutput) {
	fmt.Println(analysis.Answer)
	fmt.Println()

	if analysis.Citations != nil && len(analysis.Citations.Matches) > 0 {
		fmt.Println("Sources:")
		seen := map[int]bool{}
		for _, match := range analysis.Citations.Matches {
			if match.Chunk == nil || seen[match.Number] {
				continue
			}
			seen[match.Number] = true
			title := match.Chunk.SourceFields["title"]
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("  [%d] %s (%d)\n", match.Number, title, match.Chunk.Year)
		}
	}

	fmt.Printf("\nmodel %s, %dms", analysis.Metadata.ModelUsed, analysis.Metadata.AnalysisTimeMs)
	if analysis.Metadata.TokenUsage != nil {
		fmt.Printf(", %d tokens", analysis.Metadata.TokenUsage.TotalTokens)
	}
	fmt.Println()
}

func createExport(api *APIClient, question string, analysis service.AnalyzeOutput, chunks []domain.Chunk) error {
	resp, err := api.Post("/api/export/", ExportCreateRequest{
		Question:  question,
		Answer:    analysis.Answer,
		Reasoning: analysis.Reasoning,
		Model:     analysis.Metadata.ModelUsed,
		Chunks:    chunks,
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	var created service.CreateExportOutput
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		return fmt.Errorf("failed to parse export response: %w", err)
	}

	fmt.Printf("\nexport %s (expires %s)\n", created.ID, created.ExpiresAt.Format("15:04:05"))
	if created.DownloadURL != "" {
		fmt.Printf("download: %s\n", created.DownloadURL)
	}
	return nil
}
