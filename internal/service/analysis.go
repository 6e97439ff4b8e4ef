package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clio-labs/chronotex/internal/citation"
	"github.com/clio-labs/chronotex/internal/config"
	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/llm"
	"github.com/clio-labs/chronotex/internal/telemetry"
)

// analysisInstruction frames the synthesis task. Chunks are numbered so
// the model can cite them; the citation linker resolves the numbers back
// to chunks afterwards.
const analysisInstruction = `You are a historian analyzing excerpts from a German news archive.
Answer the research question using only the numbered source passages provided.
Cite passages inline by their number, e.g. [1] or [2][3], immediately after the claim they support.
If the passages do not contain enough information to answer, say so.`

// AnalysisService handles business logic for LLM-backed chunk analysis
type AnalysisService struct {
	client llm.Client
	cfg    *config.Config
}

// NewAnalysisService creates a new AnalysisService instance
func NewAnalysisService(client llm.Client, cfg *config.Config) *AnalysisService {
	return &AnalysisService{client: client, cfg: cfg}
}

// AnalyzeInput represents the input for an analysis request
type AnalyzeInput struct {
	Question string
	Chunks   []domain.Chunk

	// Model overrides the configured default model.
	Model       string
	Temperature float32
	MaxTokens   int
}

// AnalysisMetadata reports how the answer was produced
type AnalysisMetadata struct {
	ModelUsed      string             `json:"model_used"`
	AnalysisTimeMs int64              `json:"analysis_time_ms"`
	TokenUsage     *domain.TokenUsage `json:"token_usage,omitempty"`
}

// AnalyzeOutput represents the result of an analysis request
type AnalyzeOutput struct {
	Answer    string           `json:"answer"`
	Reasoning string           `json:"reasoning,omitempty"`
	Citations *citation.Result `json:"citations"`
	Metadata  AnalysisMetadata `json:"metadata"`
}

// Analyze runs one synchronous analysis call and links the citations in
// the finished answer back to the supplied chunks.
func (s *AnalysisService) Analyze(ctx context.Context, input AnalyzeInput) (*AnalyzeOutput, error) {
	model := s.resolveModel(input.Model)

	ctx, span := telemetry.StartSpan(ctx, "AnalysisService.Analyze", telemetry.SpanAttributes{
		Model:     model,
		Operation: "analyze",
	})
	defer span.End()

	if err := validateAnalyzeInput(input); err != nil {
		span.SetError(err)
		return nil, err
	}
	started := time.Now()

	result, err := s.client.Generate(ctx, llm.GenerateRequest{
		Model:        model,
		SystemPrompt: analysisInstruction,
		UserPrompt:   buildAnalysisPrompt(input.Question, input.Chunks),
		Temperature:  input.Temperature,
		MaxTokens:    input.MaxTokens,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &AnalyzeOutput{
		Answer:    result.Text,
		Reasoning: result.Reasoning,
		Citations: citation.Link(result.Text, input.Chunks),
		Metadata: AnalysisMetadata{
			ModelUsed:      model,
			AnalysisTimeMs: time.Since(started).Milliseconds(),
			TokenUsage:     &result.Usage,
		},
	}, nil
}

// AnalyzeStream starts a streaming analysis call. Events are forwarded to
// the returned channel as they arrive; the final event carries the linked
// output assembled from the accumulated stream.
func (s *AnalysisService) AnalyzeStream(ctx context.Context, input AnalyzeInput) (<-chan StreamEvent, error) {
	model := s.resolveModel(input.Model)

	ctx, span := telemetry.StartSpan(ctx, "AnalysisService.AnalyzeStream", telemetry.SpanAttributes{
		Model:     model,
		Operation: "analyze_stream",
	})

	if err := validateAnalyzeInput(input); err != nil {
		span.SetError(err)
		span.End()
		return nil, err
	}
	started := time.Now()

	events, err := s.client.GenerateStream(ctx, llm.GenerateRequest{
		Model:        model,
		SystemPrompt: analysisInstruction,
		UserPrompt:   buildAnalysisPrompt(input.Question, input.Chunks),
		Temperature:  input.Temperature,
		MaxTokens:    input.MaxTokens,
	})
	if err != nil {
		span.SetError(err)
		span.End()
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer span.End()

		acc := llm.NewAccumulator()
		for ev := range events {
			if err := acc.Apply(ev); err != nil {
				span.SetError(err)
				out <- StreamEvent{Kind: ev.Kind, Err: err}
				return
			}

			switch ev.Kind {
			case llm.EventCompleted:
				out <- StreamEvent{
					Kind: ev.Kind,
					Final: &AnalyzeOutput{
						Answer:    acc.Answer(),
						Reasoning: acc.Reasoning(),
						Citations: citation.Link(acc.Answer(), input.Chunks),
						Metadata: AnalysisMetadata{
							ModelUsed:      model,
							AnalysisTimeMs: time.Since(started).Milliseconds(),
							TokenUsage:     acc.Usage(),
						},
					},
				}
			case llm.EventError:
				span.SetError(ev.Err)
				out <- StreamEvent{Kind: ev.Kind, Err: ev.Err}
			default:
				out <- StreamEvent{Kind: ev.Kind, Text: ev.Text}
			}
		}
	}()
	return out, nil
}

// StreamEvent is one analysis streaming update. Final is set only on the
// completed event; Err only on error events.
type StreamEvent struct {
	Kind  llm.EventKind
	Text  string
	Final *AnalyzeOutput
	Err   error
}

func (s *AnalysisService) resolveModel(model string) string {
	if model == "" {
		return s.cfg.DefaultModel
	}
	return model
}

func validateAnalyzeInput(input AnalyzeInput) error {
	if strings.TrimSpace(input.Question) == "" {
		return domain.ErrEmptyQuery
	}
	if len(input.Chunks) == 0 {
		return domain.ErrNoChunks
	}
	return nil
}

// buildAnalysisPrompt renders the numbered source list the citation
// contract depends on. Numbering follows the chunks' ordinal indexes when
// present so citations stay stable across rerank and analyze.
func buildAnalysisPrompt(question string, chunks []domain.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\nSource passages:\n", question)
	for i, c := range chunks {
		n := c.OrdinalIndex
		if n == 0 {
			n = i + 1
		}
		fmt.Fprintf(&b, "\n[%d]", n)
		if c.Year > 0 {
			fmt.Fprintf(&b, " (%d)", c.Year)
		}
		if title := c.SourceFields["title"]; title != "" {
			fmt.Fprintf(&b, " %s", title)
		}
		fmt.Fprintf(&b, "\n%s\n", c.Content)
	}
	return b.String()
}
