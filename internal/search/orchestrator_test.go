package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/filter"
)

type fakeEmbedder struct{}

func (fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("embedding endpoint down")
}

// fakeIndex serves canned hits per window start year; windows listed in
// failWindows return an error. Key 0 serves unwindowed queries.
type fakeIndex struct {
	hits        map[int][]IndexHit
	failWindows map[int]bool
	delay       map[int]time.Duration
}

func (f *fakeIndex) Query(ctx context.Context, in QueryInput) ([]IndexHit, error) {
	key := 0
	if in.Window != nil {
		key = in.Window.StartYear
	}
	if d, ok := f.delay[key]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failWindows[key] {
		return nil, errors.New("index timeout")
	}
	return f.hits[key], nil
}

func hit(content string, year int, score float64) IndexHit {
	return IndexHit{
		Content:     content,
		Fields:      map[string]string{"text": content},
		Year:        year,
		VectorScore: score,
	}
}

func TestOrchestrator_Retrieve(t *testing.T) {
	windows := []domain.TimeWindow{
		{StartYear: 1960, EndYear: 1964},
		{StartYear: 1965, EndYear: 1969},
	}

	t.Run("aggregates windows in start-year order with ordinals", func(t *testing.T) {
		index := &fakeIndex{hits: map[int][]IndexHit{
			1960: {hit("a", 1961, 0.70), hit("b", 1962, 0.90)},
			1965: {hit("c", 1966, 0.95)},
		}}
		o := NewOrchestrator(index, fakeEmbedder{})

		result, err := o.Retrieve(context.Background(), Request{
			Query:           "mauer",
			Windows:         windows,
			ChunksPerWindow: 10,
		})
		require.NoError(t, err)
		require.Len(t, result.Chunks, 3)

		// Window order beats global score order.
		assert.Equal(t, []string{"b", "a", "c"}, chunkContents(result.Chunks))
		for i, c := range result.Chunks {
			assert.Equal(t, i+1, c.OrdinalIndex)
		}
		assert.Equal(t, 2, result.Stats.PerWindow[0].Found)
		assert.Equal(t, 1, result.Stats.PerWindow[1].Found)
	})

	t.Run("applies relevance threshold and keyword filter", func(t *testing.T) {
		index := &fakeIndex{hits: map[int][]IndexHit{
			1960: {
				hit("die mauer in berlin", 1961, 0.90),
				hit("die mauer allein", 1961, 0.85),
				hit("berlin und mauer, schwach", 1961, 0.30),
			},
		}}
		o := NewOrchestrator(index, fakeEmbedder{})

		expr, err := filter.Parse("mauer AND berlin")
		require.NoError(t, err)

		result, err := o.Retrieve(context.Background(), Request{
			Query:           "mauer",
			Windows:         windows[:1],
			Filter:          expr,
			SearchIn:        []string{"text"},
			MinRelevance:    0.5,
			ChunksPerWindow: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"die mauer in berlin"}, chunkContents(result.Chunks))
	})

	t.Run("a failed window degrades, not aborts", func(t *testing.T) {
		index := &fakeIndex{
			hits:        map[int][]IndexHit{1965: {hit("c", 1966, 0.95)}},
			failWindows: map[int]bool{1960: true},
		}
		o := NewOrchestrator(index, fakeEmbedder{})

		result, err := o.Retrieve(context.Background(), Request{
			Query:           "mauer",
			Windows:         windows,
			ChunksPerWindow: 10,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"c"}, chunkContents(result.Chunks))
		assert.Equal(t, 1, result.Stats.PerWindow[0].Failed)
		assert.Equal(t, 0, result.Stats.PerWindow[1].Failed)
		require.Len(t, result.Stats.Warnings, 1)
		assert.Contains(t, result.Stats.Warnings[0], "1960-1964")
	})

	t.Run("escalates only when every window failed", func(t *testing.T) {
		index := &fakeIndex{failWindows: map[int]bool{1960: true, 1965: true}}
		o := NewOrchestrator(index, fakeEmbedder{})

		_, err := o.Retrieve(context.Background(), Request{
			Query:           "mauer",
			Windows:         windows,
			ChunksPerWindow: 10,
		})
		assert.ErrorIs(t, err, domain.ErrAllWindowsFailed)
	})

	t.Run("ordering is reproducible regardless of completion order", func(t *testing.T) {
		index := &fakeIndex{
			hits: map[int][]IndexHit{
				1960: {hit("a", 1961, 0.70), hit("b", 1962, 0.90)},
				1965: {hit("c", 1966, 0.95), hit("d", 1967, 0.95)},
			},
			delay: map[int]time.Duration{1960: 30 * time.Millisecond},
		}
		o := NewOrchestrator(index, fakeEmbedder{})

		req := Request{Query: "mauer", Windows: windows, ChunksPerWindow: 10}
		first, err := o.Retrieve(context.Background(), req)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			again, err := o.Retrieve(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, chunkContents(first.Chunks), chunkContents(again.Chunks))
		}
	})

	t.Run("empty windows means one unwindowed query", func(t *testing.T) {
		index := &fakeIndex{hits: map[int][]IndexHit{
			0: {hit("a", 1955, 0.80)},
		}}
		o := NewOrchestrator(index, fakeEmbedder{})

		result, err := o.Retrieve(context.Background(), Request{
			Query:           "mauer",
			ChunksPerWindow: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, chunkContents(result.Chunks))
		require.Len(t, result.Stats.PerWindow, 1)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		o := NewOrchestrator(&fakeIndex{}, fakeEmbedder{})
		_, err := o.Retrieve(context.Background(), Request{Windows: windows})
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	})

	t.Run("embedding failure aborts before any window query", func(t *testing.T) {
		o := NewOrchestrator(&fakeIndex{}, failingEmbedder{})
		_, err := o.Retrieve(context.Background(), Request{Query: "mauer", Windows: windows})
		require.Error(t, err)

		var domErr *domain.DomainError
		require.ErrorAs(t, err, &domErr)
		assert.Equal(t, domain.ErrCodeUpstream, domErr.Code)
	})
}

func chunkContents(chunks []domain.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}
