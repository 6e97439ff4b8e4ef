package expansion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clio-labs/chronotex/internal/filter"
)

type fakeWordVectorClient struct {
	neighbors map[string][]Neighbor
	err       error
	calls     []string
}

func (f *fakeWordVectorClient) Similar(_ context.Context, term string, _ int) ([]Neighbor, error) {
	f.calls = append(f.calls, term)
	if f.err != nil {
		return nil, f.err
	}
	neighbors, ok := f.neighbors[term]
	if !ok {
		return nil, ErrOutOfVocabulary
	}
	return neighbors, nil
}

func TestExpander_Expand(t *testing.T) {
	t.Run("orders by similarity with frequency tiebreak", func(t *testing.T) {
		client := &fakeWordVectorClient{neighbors: map[string][]Neighbor{
			"mauer": {
				{Word: "grenzmauer", Similarity: 0.81, Frequency: 120},
				{Word: "mauerbau", Similarity: 0.92, Frequency: 300},
				{Word: "betonmauer", Similarity: 0.81, Frequency: 540},
			},
		}}
		expander := NewExpander(client)

		got, err := expander.Expand(context.Background(), "mauer", 10)
		require.NoError(t, err)

		words := make([]string, 0, len(got))
		for _, n := range got {
			words = append(words, n.Word)
		}
		assert.Equal(t, []string{"mauerbau", "betonmauer", "grenzmauer"}, words)
	})

	t.Run("excludes the term itself", func(t *testing.T) {
		client := &fakeWordVectorClient{neighbors: map[string][]Neighbor{
			"mauer": {
				{Word: "Mauer", Similarity: 1.0, Frequency: 900},
				{Word: "grenze", Similarity: 0.7, Frequency: 100},
			},
		}}
		expander := NewExpander(client)

		got, err := expander.Expand(context.Background(), "Mauer", 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "grenze", got[0].Word)
	})

	t.Run("truncates to the requested count", func(t *testing.T) {
		client := &fakeWordVectorClient{neighbors: map[string][]Neighbor{
			"mauer": {
				{Word: "a", Similarity: 0.9},
				{Word: "b", Similarity: 0.8},
				{Word: "c", Similarity: 0.7},
			},
		}}
		expander := NewExpander(client)

		got, err := expander.Expand(context.Background(), "mauer", 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("propagates out-of-vocabulary", func(t *testing.T) {
		expander := NewExpander(&fakeWordVectorClient{neighbors: map[string][]Neighbor{}})

		_, err := expander.Expand(context.Background(), "xyzzy", 5)
		assert.ErrorIs(t, err, ErrOutOfVocabulary)
	})
}

func TestExpander_ExpandExpression(t *testing.T) {
	t.Run("widens MUST terms but never MUST_NOT", func(t *testing.T) {
		client := &fakeWordVectorClient{neighbors: map[string][]Neighbor{
			"mauer":  {{Word: "grenzmauer", Similarity: 0.9}},
			"berlin": {{Word: "westberlin", Similarity: 0.85}},
		}}
		expander := NewExpander(client)

		expr, err := filter.Parse("mauer AND berlin NOT ddr")
		require.NoError(t, err)

		warnings := expander.ExpandExpression(context.Background(), expr, 5)
		assert.Empty(t, warnings)

		assert.Equal(t, []string{"grenzmauer"}, expr.Must[0].Alternatives)
		assert.Equal(t, []string{"westberlin"}, expr.Must[1].Alternatives)
		assert.NotContains(t, client.calls, "ddr")
	})

	t.Run("out-of-vocabulary term degrades to a warning", func(t *testing.T) {
		client := &fakeWordVectorClient{neighbors: map[string][]Neighbor{
			"mauer": {{Word: "grenzmauer", Similarity: 0.9}},
		}}
		expander := NewExpander(client)

		expr, err := filter.Parse("mauer AND xyzzy")
		require.NoError(t, err)

		warnings := expander.ExpandExpression(context.Background(), expr, 5)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "xyzzy")

		// The expanded term still got its alternatives.
		assert.Equal(t, []string{"grenzmauer"}, expr.Must[0].Alternatives)
		assert.Empty(t, expr.Must[1].Alternatives)
	})

	t.Run("service failure degrades to a warning per term", func(t *testing.T) {
		client := &fakeWordVectorClient{err: errors.New("connection refused")}
		expander := NewExpander(client)

		expr, err := filter.Parse("mauer AND berlin")
		require.NoError(t, err)

		warnings := expander.ExpandExpression(context.Background(), expr, 5)
		assert.Len(t, warnings, 2)
		assert.Empty(t, expr.Must[0].Alternatives)
	})
}
