// Package rerank scores retrieval candidates with an LLM and trims each
// time window down to a final count. Candidate evaluations fan out through
// a pool shared across requests, so the number of outstanding LLM calls
// stays below a configured ceiling no matter how many searches run at
// once.
package rerank

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"

	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/llm"
)

// evalInstruction is the fixed scoring contract sent with every candidate.
// The parser below is lenient, but the prompt pins the expected shape.
const evalInstruction = `You are evaluating whether a historical newspaper passage is relevant to a research question.
Rate the passage's relevance on a scale from 0 to 10, where 0 means completely irrelevant and 10 means directly and substantially relevant.
Respond with the score on the first line (a number, e.g. "7" or "7.5"), followed by a one-sentence justification on the next line.`

// SortKey selects the primary ordering of reranked chunks.
type SortKey string

const (
	// SortByLLMScore orders by LLM score descending, vector score as
	// tiebreaker. This is the default.
	SortByLLMScore SortKey = "llm"
	// SortByVectorScore orders by vector score descending, LLM score as
	// tiebreaker.
	SortByVectorScore SortKey = "vector"
)

// Options configures one rerank run.
type Options struct {
	// Query is the research question the candidates are scored against.
	Query string

	// Model identifies the scoring model.
	Model string

	// KeepPerWindow caps each window's survivors. Zero keeps everything
	// that scored.
	KeepPerWindow int

	// SortKey defaults to SortByLLMScore.
	SortKey SortKey
}

// Reranker evaluates candidates through a shared worker pool.
type Reranker struct {
	client llm.Client
	pool   *ants.Pool
}

// NewReranker wraps client with the shared pool. The pool's capacity is
// the global ceiling on concurrent scoring calls.
func NewReranker(client llm.Client, pool *ants.Pool) *Reranker {
	return &Reranker{client: client, pool: pool}
}

type scoreOutcome struct {
	chunk domain.Chunk
	ok    bool
}

// Rerank scores every candidate in every window concurrently, drops the
// ones whose score could not be parsed, keeps the per-window top
// KeepPerWindow, and returns the flattened list with fresh ordinals.
// Window order is preserved; a window whose candidates all failed scoring
// contributes nothing but does not fail the run.
func (r *Reranker) Rerank(ctx context.Context, windows [][]domain.Chunk, opts Options) ([]domain.Chunk, error) {
	outcomes := make([][]scoreOutcome, len(windows))
	for i := range windows {
		outcomes[i] = make([]scoreOutcome, len(windows[i]))
	}

	var wg sync.WaitGroup
	for wi := range windows {
		for ci := range windows[wi] {
			wi, ci := wi, ci
			wg.Add(1)
			err := r.pool.Submit(func() {
				defer wg.Done()
				outcomes[wi][ci] = r.scoreCandidate(ctx, windows[wi][ci], opts)
			})
			if err != nil {
				wg.Done()
				return nil, fmt.Errorf("failed to submit scoring task: %w", err)
			}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := opts.SortKey
	if key == "" {
		key = SortByLLMScore
	}

	var result []domain.Chunk
	for _, windowOutcomes := range outcomes {
		var survivors []domain.Chunk
		for _, out := range windowOutcomes {
			if out.ok {
				survivors = append(survivors, out.chunk)
			}
		}
		sortChunks(survivors, key)
		if opts.KeepPerWindow > 0 && len(survivors) > opts.KeepPerWindow {
			survivors = survivors[:opts.KeepPerWindow]
		}
		result = append(result, survivors...)
	}

	for i := range result {
		result[i].OrdinalIndex = i + 1
	}
	return result, nil
}

// scoreCandidate runs one scoring call and attaches the parsed score and
// rationale to a copy of the chunk. Unparsable scores and failed calls
// drop the candidate.
func (r *Reranker) scoreCandidate(ctx context.Context, chunk domain.Chunk, opts Options) scoreOutcome {
	if ctx.Err() != nil {
		return scoreOutcome{}
	}

	prompt := fmt.Sprintf("Research question: %s\n\nPassage:\n%s", opts.Query, chunk.Content)
	resp, err := r.client.Generate(ctx, llm.GenerateRequest{
		Model:        opts.Model,
		SystemPrompt: evalInstruction,
		UserPrompt:   prompt,
	})
	if err != nil {
		log.Printf("relevance scoring failed for chunk %d: %v", chunk.OrdinalIndex, err)
		return scoreOutcome{}
	}

	score, rationale, err := ParseScore(resp.Text)
	if err != nil {
		log.Printf("dropping chunk %d, unparsable relevance score: %v", chunk.OrdinalIndex, err)
		return scoreOutcome{}
	}

	chunk.LLMScore = &score
	chunk.LLMRationale = rationale
	return scoreOutcome{chunk: chunk, ok: true}
}

var scorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:/\s*10)?`)

// ParseScore extracts a 0-10 relevance score and the trailing rationale
// from a model reply. Accepted shapes include "7", "7.5" and "7/10", with
// optional prose around the number.
func ParseScore(text string) (float64, string, error) {
	text = strings.TrimSpace(text)
	loc := scorePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, "", fmt.Errorf("no numeric score in %q", truncate(text, 80))
	}

	raw := text[loc[2]:loc[3]]
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, "", fmt.Errorf("bad score %q: %w", raw, err)
	}
	if score < 0 || score > 10 {
		return 0, "", fmt.Errorf("score %v outside 0-10", score)
	}

	rationale := strings.TrimSpace(text[loc[1]:])
	rationale = strings.TrimLeft(rationale, ":,.-– \t\n")
	return score, rationale, nil
}

func sortChunks(chunks []domain.Chunk, key SortKey) {
	llmScore := func(c domain.Chunk) float64 {
		if c.LLMScore == nil {
			return -1
		}
		return *c.LLMScore
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		switch key {
		case SortByVectorScore:
			if chunks[i].VectorScore != chunks[j].VectorScore {
				return chunks[i].VectorScore > chunks[j].VectorScore
			}
			return llmScore(chunks[i]) > llmScore(chunks[j])
		default:
			if llmScore(chunks[i]) != llmScore(chunks[j]) {
				return llmScore(chunks[i]) > llmScore(chunks[j])
			}
			return chunks[i].VectorScore > chunks[j].VectorScore
		}
	})
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
