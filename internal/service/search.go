package service

import (
	"context"
	"fmt"

	"github.com/clio-labs/chronotex/internal/config"
	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/filter"
	"github.com/clio-labs/chronotex/internal/rerank"
	"github.com/clio-labs/chronotex/internal/search"
	"github.com/clio-labs/chronotex/internal/telemetry"
)

// RetrieverInterface defines the windowed retrieval interface
type RetrieverInterface interface {
	Retrieve(ctx context.Context, req search.Request) (*search.Result, error)
}

// RerankerInterface defines the LLM relevance scoring interface
type RerankerInterface interface {
	Rerank(ctx context.Context, windows [][]domain.Chunk, opts rerank.Options) ([]domain.Chunk, error)
}

// KeywordExpanderInterface defines the keyword expansion interface
type KeywordExpanderInterface interface {
	ExpandExpression(ctx context.Context, expr *filter.Expression, perTerm int) []string
}

// SearchService handles business logic for retrieval requests
type SearchService struct {
	retriever RetrieverInterface
	reranker  RerankerInterface
	expander  KeywordExpanderInterface
	cfg       *config.Config
}

// NewSearchService creates a new SearchService instance. The expander may be
// nil when no word-vector service is configured; keyword expansion is then
// skipped with a warning.
func NewSearchService(
	retriever RetrieverInterface,
	reranker RerankerInterface,
	expander KeywordExpanderInterface,
	cfg *config.Config,
) *SearchService {
	return &SearchService{
		retriever: retriever,
		reranker:  reranker,
		expander:  expander,
		cfg:       cfg,
	}
}

// SearchInput represents the input for a retrieval request
type SearchInput struct {
	Query     string
	YearStart int
	YearEnd   int

	// WindowSize is the span of each time window in years. Only the
	// LLM-assisted strategy honors it; the standard strategy always uses a
	// single window covering the whole range.
	WindowSize int

	// Keywords is a raw boolean filter expression (AND, OR, NOT, parens).
	// Empty means no keyword filtering.
	Keywords string

	// SearchIn selects the document fields keyword filters match against.
	// Empty defaults to all fields.
	SearchIn []string

	// ExpandWords asks for that many word-vector neighbors per filter
	// term. Zero disables expansion.
	ExpandWords int

	// ChunksPerWindow is the per-window retrieval depth before reranking.
	ChunksPerWindow int

	// TopK is the per-window count kept after reranking.
	TopK int

	MinRelevance float64

	// Model overrides the configured reranking model.
	Model string

	// SortKey selects llm or vector ordering after reranking.
	SortKey string
}

// SearchOutput represents the result of a retrieval request
type SearchOutput struct {
	Chunks  []domain.Chunk      `json:"chunks"`
	Windows []domain.TimeWindow `json:"windows"`
	Stats   domain.SearchStats  `json:"stats"`
}

// StandardSearch retrieves over the requested year range as a single
// window, ordered by vector similarity, without LLM reranking.
func (s *SearchService) StandardSearch(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.StandardSearch", telemetry.SpanAttributes{
		Strategy:  "standard",
		Operation: "search",
	})
	defer span.End()

	input.WindowSize = 0
	windows, expr, warnings, err := s.prepare(ctx, &input)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result, err := s.retriever.Retrieve(ctx, search.Request{
		Query:            input.Query,
		Windows:          windows,
		Filter:           expr,
		SearchIn:         input.SearchIn,
		MinRelevance:     input.MinRelevance,
		ChunksPerWindow:  input.TopK,
		PerWindowTimeout: s.cfg.WindowTimeout,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result.Stats.Warnings = append(warnings, result.Stats.Warnings...)
	return &SearchOutput{
		Chunks:  result.Chunks,
		Windows: windows,
		Stats:   result.Stats,
	}, nil
}

// LLMAssistedSearch splits the year range into windows, retrieves
// candidates from each, has an LLM score every candidate and keeps the
// per-window best. One failed window degrades to a warning; the request
// fails only when every window failed.
func (s *SearchService) LLMAssistedSearch(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	model := input.Model
	if model == "" {
		model = s.cfg.RerankModel
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.LLMAssistedSearch", telemetry.SpanAttributes{
		Strategy:  "llm_assisted",
		Model:     model,
		Operation: "search",
	})
	defer span.End()

	windows, expr, warnings, err := s.prepare(ctx, &input)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result, err := s.retriever.Retrieve(ctx, search.Request{
		Query:            input.Query,
		Windows:          windows,
		Filter:           expr,
		SearchIn:         input.SearchIn,
		MinRelevance:     input.MinRelevance,
		ChunksPerWindow:  input.ChunksPerWindow,
		PerWindowTimeout: s.cfg.WindowTimeout,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	grouped := groupByWindow(result.Chunks, windows)
	reranked, err := s.reranker.Rerank(ctx, grouped, rerank.Options{
		Query:         input.Query,
		Model:         model,
		KeepPerWindow: input.TopK,
		SortKey:       rerank.SortKey(input.SortKey),
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "relevance reranking failed", err)
	}

	result.Stats.Warnings = append(warnings, result.Stats.Warnings...)
	return &SearchOutput{
		Chunks:  reranked,
		Windows: windows,
		Stats:   result.Stats,
	}, nil
}

// prepare validates the input against the corpus configuration, plans the
// time windows, and parses plus optionally expands the keyword filter.
func (s *SearchService) prepare(ctx context.Context, input *SearchInput) ([]domain.TimeWindow, *filter.Expression, []string, error) {
	if input.Query == "" {
		return nil, nil, nil, domain.ErrEmptyQuery
	}

	if input.YearStart == 0 {
		input.YearStart = s.cfg.CorpusStartYear
	}
	if input.YearEnd == 0 {
		input.YearEnd = s.cfg.CorpusEndYear
	}
	if input.YearStart < s.cfg.CorpusStartYear || input.YearEnd > s.cfg.CorpusEndYear {
		return nil, nil, nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("year range %d-%d outside corpus %d-%d",
				input.YearStart, input.YearEnd, s.cfg.CorpusStartYear, s.cfg.CorpusEndYear))
	}
	if input.YearStart > input.YearEnd {
		return nil, nil, nil, domain.ErrInvalidYearRange
	}

	if input.TopK <= 0 {
		input.TopK = s.cfg.DefaultTopK
	}
	if input.TopK > s.cfg.MaxTopK {
		return nil, nil, nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("top_k %d exceeds maximum %d", input.TopK, s.cfg.MaxTopK))
	}
	if input.ChunksPerWindow <= 0 {
		input.ChunksPerWindow = input.TopK
	}
	if input.MinRelevance < 0 || input.MinRelevance > 1 {
		return nil, nil, nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("min_relevance %v outside [0, 1]", input.MinRelevance))
	}

	if input.WindowSize < 0 {
		return nil, nil, nil, domain.ErrInvalidWindowSize
	}
	if input.WindowSize > s.cfg.MaxWindowSize {
		return nil, nil, nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("window size %d exceeds maximum %d", input.WindowSize, s.cfg.MaxWindowSize))
	}
	size := input.WindowSize
	if size == 0 {
		// Single window over the whole range.
		size = input.YearEnd - input.YearStart + 1
	}
	windows, err := search.PlanWindows(input.YearStart, input.YearEnd, size)
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		expr     *filter.Expression
		warnings []string
	)
	if input.Keywords != "" {
		expr, err = filter.Parse(input.Keywords)
		if err != nil {
			return nil, nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid keyword filter", err)
		}
		if input.ExpandWords > 0 {
			if s.expander == nil {
				warnings = append(warnings, "keyword expansion is not configured, using terms as given")
			} else {
				warnings = append(warnings, s.expander.ExpandExpression(ctx, expr, input.ExpandWords)...)
			}
		}
	}

	return windows, expr, warnings, nil
}

// groupByWindow splits an aggregated chunk list back into per-window
// groups. Chunks are already in window order, so group membership follows
// from each window's year bounds.
func groupByWindow(chunks []domain.Chunk, windows []domain.TimeWindow) [][]domain.Chunk {
	groups := make([][]domain.Chunk, len(windows))
	for _, c := range chunks {
		for wi, w := range windows {
			if w.Contains(c.Year) {
				groups[wi] = append(groups[wi], c)
				break
			}
		}
	}
	return groups
}
