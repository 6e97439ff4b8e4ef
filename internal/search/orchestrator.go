// Package search plans time windows and drives windowed retrieval against
// the similarity index. Per-window queries fan out concurrently and are
// joined before aggregation so the final ordering never depends on which
// query finished first.
package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/filter"
)

// IndexHit is one raw similarity-index result before filtering.
type IndexHit struct {
	ID          string
	Content     string
	Fields      map[string]string
	Year        int
	VectorScore float64
}

// QueryInput scopes one similarity-index query. A nil Window queries the
// whole corpus without year bounds.
type QueryInput struct {
	Embedding []float32
	Window    *domain.TimeWindow
	TopK      int
}

// Index is the similarity index consumed by the orchestrator.
type Index interface {
	Query(ctx context.Context, in QueryInput) ([]IndexHit, error)
}

// Embedder turns the research query into the vector the index is searched
// with. The query is embedded once per request, not once per window.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Request describes one retrieval run. An empty Windows slice means a
// single unwindowed query over the full corpus.
type Request struct {
	Query   string
	Windows []domain.TimeWindow

	// Filter is the parsed keyword expression, nil when no keywords were
	// given. SearchIn selects the document fields the filter matches on.
	Filter   *filter.Expression
	SearchIn []string

	// MinRelevance excludes chunks scoring below it. Excluded chunks are
	// gone, not replaced by lower-ranked ones.
	MinRelevance float64

	// ChunksPerWindow caps each window's index query.
	ChunksPerWindow int

	// PerWindowTimeout bounds each index query independently, so one slow
	// window cannot abort its siblings.
	PerWindowTimeout time.Duration
}

// Result is the aggregated retrieval outcome.
type Result struct {
	Chunks []domain.Chunk
	Stats  domain.SearchStats
}

// Orchestrator fans retrieval out across time windows and aggregates the
// survivors into one deterministically ordered chunk list.
type Orchestrator struct {
	index    Index
	embedder Embedder
}

func NewOrchestrator(index Index, embedder Embedder) *Orchestrator {
	return &Orchestrator{index: index, embedder: embedder}
}

type windowOutcome struct {
	window *domain.TimeWindow
	chunks []domain.Chunk
	err    error
}

// Retrieve runs the request. Windows fail independently: a window whose
// index query errors contributes nothing and is recorded in the stats, and
// the request as a whole fails only when every window failed.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if req.Query == "" {
		return nil, domain.ErrEmptyQuery
	}
	started := time.Now()

	embedding, err := o.embedder.GenerateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to embed query", err)
	}

	jobs := make([]*domain.TimeWindow, 0, len(req.Windows))
	if len(req.Windows) == 0 {
		jobs = append(jobs, nil)
	} else {
		for i := range req.Windows {
			jobs = append(jobs, &req.Windows[i])
		}
	}

	outcomes := make([]windowOutcome, len(jobs))
	var wg sync.WaitGroup
	for i, window := range jobs {
		wg.Add(1)
		go func(i int, window *domain.TimeWindow) {
			defer wg.Done()
			outcomes[i] = o.queryWindow(ctx, req, embedding, window)
		}(i, window)
	}
	wg.Wait()

	// Sort after join. Jobs are already ordered by window start year, and
	// queryWindow returns each window's survivors sorted by score, so
	// concatenation in job order is the final ordering.
	result := &Result{}
	failed := 0
	for _, out := range outcomes {
		stat := domain.WindowStat{}
		if out.window != nil {
			stat.Window = *out.window
		}
		if out.err != nil {
			failed++
			stat.Failed = 1
			result.Stats.Warnings = append(result.Stats.Warnings, windowWarning(out.window, out.err))
		} else {
			stat.Found = len(out.chunks)
			result.Chunks = append(result.Chunks, out.chunks...)
		}
		result.Stats.PerWindow = append(result.Stats.PerWindow, stat)
	}

	if failed == len(jobs) {
		return nil, fmt.Errorf("%w: %v", domain.ErrAllWindowsFailed, outcomes[0].err)
	}

	for i := range result.Chunks {
		result.Chunks[i].OrdinalIndex = i + 1
	}
	result.Stats.SearchTimeMs = time.Since(started).Milliseconds()
	return result, nil
}

func (o *Orchestrator) queryWindow(ctx context.Context, req Request, embedding []float32, window *domain.TimeWindow) windowOutcome {
	if req.PerWindowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.PerWindowTimeout)
		defer cancel()
	}

	hits, err := o.index.Query(ctx, QueryInput{
		Embedding: embedding,
		Window:    window,
		TopK:      req.ChunksPerWindow,
	})
	if err != nil {
		log.Printf("window query failed (%s): %v", windowLabel(window), err)
		return windowOutcome{window: window, err: err}
	}

	chunks := make([]domain.Chunk, 0, len(hits))
	for _, hit := range hits {
		if hit.VectorScore < req.MinRelevance {
			continue
		}
		if req.Filter != nil && !req.Filter.IsEmpty() && !req.Filter.Matches(hit.Fields, req.SearchIn) {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Content:      hit.Content,
			SourceFields: hit.Fields,
			Year:         hit.Year,
			VectorScore:  hit.VectorScore,
		})
	}

	// Within a window, higher score first. Stable so identical scores keep
	// the index's order and repeated runs stay byte-identical.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].VectorScore > chunks[j].VectorScore
	})
	return windowOutcome{window: window, chunks: chunks}
}

func windowLabel(w *domain.TimeWindow) string {
	if w == nil {
		return "full range"
	}
	return fmt.Sprintf("%d-%d", w.StartYear, w.EndYear)
}

func windowWarning(w *domain.TimeWindow, err error) string {
	return fmt.Sprintf("retrieval failed for window %s: %v", windowLabel(w), err)
}
