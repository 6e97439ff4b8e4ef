package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clio-labs/chronotex/internal/domain"
)

func sourceChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{Content: string(rune('a' + i)), OrdinalIndex: i + 1}
	}
	return chunks
}

func TestDetectNotation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Notation
	}{
		{"bracketed majority", "Der Mauerbau [1] begann 1961 [2], siehe auch [3] und (1).", NotationBracketed},
		{"parenthesized majority", "Der Mauerbau (1) begann (2), vgl. [1].", NotationParenthesized},
		{"superscript majority", "Der Mauerbau¹ begann² im August³.", NotationSuperscript},
		{"tie favors bracketed", "Quelle [1] und Quelle (2).", NotationBracketed},
		{"no markers defaults to bracketed", "Keine Zitate hier.", NotationBracketed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectNotation(tt.text))
		})
	}
}

func TestLink(t *testing.T) {
	t.Run("resolves bracketed citations with byte offsets", func(t *testing.T) {
		chunks := sourceChunks(3)
		answer := "Der Bau [1] und der Fall [3]."

		result := Link(answer, chunks)
		assert.Equal(t, NotationBracketed, result.Notation)
		require.Len(t, result.Matches, 2)

		first := result.Matches[0]
		assert.Equal(t, 1, first.Number)
		assert.Equal(t, "[1]", answer[first.CharStart:first.CharStart+first.CharLength])
		require.NotNil(t, first.Chunk)
		assert.Equal(t, 1, first.Chunk.OrdinalIndex)

		second := result.Matches[1]
		assert.Equal(t, 3, second.Number)
		require.NotNil(t, second.Chunk)
		assert.Equal(t, 3, second.Chunk.OrdinalIndex)
	})

	t.Run("out-of-range numbers resolve to nil", func(t *testing.T) {
		result := Link("Siehe [1] und [5].", sourceChunks(2))

		require.Len(t, result.Matches, 2)
		assert.NotNil(t, result.Matches[0].Chunk)
		assert.Nil(t, result.Matches[1].Chunk)
	})

	t.Run("non-sequential numbering is flagged, not fixed", func(t *testing.T) {
		result := Link("Erst [1], dann [3].", sourceChunks(3))

		assert.True(t, result.NonSequential)
		assert.Equal(t, []int{2}, result.MissingNumbers)
		// The matches still report the numbers as written.
		require.Len(t, result.Matches, 2)
		assert.Equal(t, 1, result.Matches[0].Number)
		assert.Equal(t, 3, result.Matches[1].Number)
	})

	t.Run("sequential numbering is not flagged", func(t *testing.T) {
		result := Link("Erst [1], dann [2], zuletzt [2].", sourceChunks(2))
		assert.False(t, result.NonSequential)
		assert.Empty(t, result.MissingNumbers)
	})

	t.Run("superscript runs parse as multi-digit numbers", func(t *testing.T) {
		answer := "Der Anfang¹ und das Ende¹²."
		result := Link(answer, sourceChunks(12))

		assert.Equal(t, NotationSuperscript, result.Notation)
		require.Len(t, result.Matches, 2)
		assert.Equal(t, 1, result.Matches[0].Number)
		assert.Equal(t, 12, result.Matches[1].Number)

		m := result.Matches[1]
		assert.Equal(t, "¹²", answer[m.CharStart:m.CharStart+m.CharLength])
	})

	t.Run("surrounding text is untouched", func(t *testing.T) {
		answer := "**Fett** [1] und _kursiv_ [2]."
		result := Link(answer, sourceChunks(2))

		// Offsets slice the original string exactly; the function never
		// returns a rewritten answer.
		for _, m := range result.Matches {
			assert.Equal(t, '[', rune(answer[m.CharStart]))
		}
	})

	t.Run("no citations yields an empty result", func(t *testing.T) {
		result := Link("Keine Quellenangaben.", sourceChunks(2))
		assert.Empty(t, result.Matches)
		assert.False(t, result.NonSequential)
	})
}
