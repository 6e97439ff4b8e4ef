package service

import (
	"context"
	"errors"
	"strings"

	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/expansion"
	"github.com/clio-labs/chronotex/internal/filter"
	"github.com/clio-labs/chronotex/internal/telemetry"
)

// NeighborProviderInterface defines the word-vector lookup interface
type NeighborProviderInterface interface {
	Expand(ctx context.Context, term string, count int) ([]expansion.Neighbor, error)
}

// KeywordService handles business logic for standalone keyword expansion
type KeywordService struct {
	provider NeighborProviderInterface
}

// NewKeywordService creates a new KeywordService instance
func NewKeywordService(provider NeighborProviderInterface) *KeywordService {
	return &KeywordService{provider: provider}
}

// TermExpansion is the expansion of one extracted term
type TermExpansion struct {
	Term      string               `json:"term"`
	Neighbors []expansion.Neighbor `json:"neighbors"`

	// OutOfVocabulary is true when the word-vector model has no entry for
	// the term. Such terms are usable in filters, just not expandable.
	OutOfVocabulary bool `json:"out_of_vocabulary"`
}

// Expand extracts the terms of a boolean filter expression and returns
// each term's nearest word-vector neighbors. Out-of-vocabulary terms are
// flagged, not dropped, so callers can still filter on them.
func (s *KeywordService) Expand(ctx context.Context, expression string, perTerm int) ([]TermExpansion, error) {
	ctx, span := telemetry.StartSpan(ctx, "KeywordService.Expand", telemetry.SpanAttributes{
		Operation: "expand_keywords",
	})
	defer span.End()

	if strings.TrimSpace(expression) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "keyword expression cannot be empty")
	}
	if s.provider == nil {
		return nil, domain.NewDomainError(domain.ErrCodeUpstream, "keyword expansion is not configured")
	}
	if perTerm <= 0 {
		perTerm = 5
	}

	terms := filter.ExtractTerms(expression)
	if len(terms) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no expandable terms in expression")
	}

	results := make([]TermExpansion, 0, len(terms))
	for _, term := range terms {
		neighbors, err := s.provider.Expand(ctx, term, perTerm)
		switch {
		case errors.Is(err, expansion.ErrOutOfVocabulary):
			results = append(results, TermExpansion{Term: term, OutOfVocabulary: true})
		case err != nil:
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "word-vector service unavailable", err)
		default:
			results = append(results, TermExpansion{Term: term, Neighbors: neighbors})
		}
	}
	return results, nil
}
