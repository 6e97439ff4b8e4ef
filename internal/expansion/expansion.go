// Package expansion widens boolean filter terms with semantically similar
// words from an external word-vector service. Expansion is best-effort: a
// term the model has never seen, or an unreachable service, degrades to a
// warning instead of failing the request.
package expansion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clio-labs/chronotex/internal/filter"
)

// ErrOutOfVocabulary is returned when the word-vector model has no entry
// for the requested term.
var ErrOutOfVocabulary = errors.New("term not in word-vector vocabulary")

// Neighbor is one similar word with its cosine similarity and corpus
// frequency as reported by the word-vector service.
type Neighbor struct {
	Word       string  `json:"word"`
	Similarity float64 `json:"similarity"`
	Frequency  int     `json:"frequency"`
}

// WordVectorClient fetches the nearest neighbors of a term from a
// word-vector model.
type WordVectorClient interface {
	Similar(ctx context.Context, term string, count int) ([]Neighbor, error)
}

// Expander turns raw neighbor lists into filter expansions.
type Expander struct {
	client WordVectorClient
}

func NewExpander(client WordVectorClient) *Expander {
	return &Expander{client: client}
}

// Expand returns up to count neighbors for term, ordered by similarity
// descending with corpus frequency as tiebreaker. The term itself is never
// included in its own expansion.
func (e *Expander) Expand(ctx context.Context, term string, count int) ([]Neighbor, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, fmt.Errorf("expansion term is empty")
	}
	if count <= 0 {
		return nil, nil
	}

	// Ask for one extra in case the model returns the term itself.
	neighbors, err := e.client.Similar(ctx, term, count+1)
	if err != nil {
		return nil, err
	}

	filtered := neighbors[:0]
	for _, n := range neighbors {
		if strings.ToLower(n.Word) == term {
			continue
		}
		filtered = append(filtered, n)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		return filtered[i].Frequency > filtered[j].Frequency
	})

	if len(filtered) > count {
		filtered = filtered[:count]
	}
	return filtered, nil
}

// ExpandExpression widens every MUST and SHOULD term of expr in place and
// returns the warnings accumulated along the way. MUST_NOT terms are left
// alone. Out-of-vocabulary terms and service failures produce warnings,
// never errors: the caller proceeds with the unexpanded terms.
func (e *Expander) ExpandExpression(ctx context.Context, expr *filter.Expression, perTerm int) []string {
	var warnings []string
	for _, term := range expr.Terms() {
		neighbors, err := e.Expand(ctx, term, perTerm)
		switch {
		case errors.Is(err, ErrOutOfVocabulary):
			warnings = append(warnings, fmt.Sprintf("term %q is not in the word-vector vocabulary, used unexpanded", term))
			continue
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("keyword expansion unavailable for %q: %v", term, err))
			continue
		}

		words := make([]string, 0, len(neighbors))
		for _, n := range neighbors {
			words = append(words, n.Word)
		}
		expr.ExpandTerm(term, words)
	}
	return warnings
}
