// Package citation links inline citation markers in a finished answer back
// to the source chunks that were sent to the model. The answer text is
// never modified: linking produces offsets into it, and anything outside
// the matched spans stays byte-for-byte intact.
package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clio-labs/chronotex/internal/domain"
)

// Notation is a citation marker style.
type Notation string

const (
	NotationBracketed     Notation = "bracketed"     // [1]
	NotationParenthesized Notation = "parenthesized" // (1)
	NotationSuperscript   Notation = "superscript"   // ¹
)

var (
	bracketedPattern     = regexp.MustCompile(`\[(\d+)\]`)
	parenthesizedPattern = regexp.MustCompile(`\((\d+)\)`)
	superscriptPattern   = regexp.MustCompile(`[\x{2070}\x{00B9}\x{00B2}\x{00B3}\x{2074}-\x{2079}]+`)
)

// Result is the outcome of linking one answer against its chunk list.
type Result struct {
	Notation Notation
	Matches  []domain.CitationMatch

	// NonSequential flags citation numbering that skips a value, e.g.
	// [1] followed by [3] with no [2]. Advisory only: the matches are
	// reported as written, never renumbered.
	NonSequential  bool
	MissingNumbers []int
}

// DetectNotation picks the dominant citation style by counting marker
// occurrences across the whole text. Ties favor the bracketed form.
func DetectNotation(text string) Notation {
	bracketed := len(bracketedPattern.FindAllString(text, -1))
	parenthesized := len(parenthesizedPattern.FindAllString(text, -1))
	superscript := len(superscriptPattern.FindAllString(text, -1))

	switch {
	case bracketed >= parenthesized && bracketed >= superscript:
		return NotationBracketed
	case parenthesized >= superscript:
		return NotationParenthesized
	default:
		return NotationSuperscript
	}
}

// Link detects the dominant notation in answer, extracts every marker with
// its byte offsets, and resolves each citation number n to chunks[n-1].
// Numbers outside 1..len(chunks) resolve to a nil chunk and are rendered
// as plain text downstream.
func Link(answer string, chunks []domain.Chunk) *Result {
	result := &Result{Notation: DetectNotation(answer)}

	switch result.Notation {
	case NotationBracketed:
		result.Matches = extractNumeric(answer, bracketedPattern, chunks)
	case NotationParenthesized:
		result.Matches = extractNumeric(answer, parenthesizedPattern, chunks)
	case NotationSuperscript:
		result.Matches = extractSuperscript(answer, chunks)
	}

	result.MissingNumbers = missingNumbers(result.Matches)
	result.NonSequential = len(result.MissingNumbers) > 0
	return result
}

func extractNumeric(text string, pattern *regexp.Regexp, chunks []domain.Chunk) []domain.CitationMatch {
	var matches []domain.CitationMatch
	for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
		number, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		matches = append(matches, domain.CitationMatch{
			Number:     number,
			CharStart:  loc[0],
			CharLength: loc[1] - loc[0],
			Chunk:      resolve(number, chunks),
		})
	}
	return matches
}

func extractSuperscript(text string, chunks []domain.Chunk) []domain.CitationMatch {
	var matches []domain.CitationMatch
	for _, loc := range superscriptPattern.FindAllStringIndex(text, -1) {
		number := superscriptValue(text[loc[0]:loc[1]])
		matches = append(matches, domain.CitationMatch{
			Number:     number,
			CharStart:  loc[0],
			CharLength: loc[1] - loc[0],
			Chunk:      resolve(number, chunks),
		})
	}
	return matches
}

func resolve(number int, chunks []domain.Chunk) *domain.Chunk {
	if number < 1 || number > len(chunks) {
		return nil
	}
	return &chunks[number-1]
}

var superscriptDigits = map[rune]int{
	'⁰': 0, '¹': 1, '²': 2, '³': 3, '⁴': 4,
	'⁵': 5, '⁶': 6, '⁷': 7, '⁸': 8, '⁹': 9,
}

func superscriptValue(run string) int {
	var b strings.Builder
	for _, r := range run {
		if d, ok := superscriptDigits[r]; ok {
			b.WriteByte(byte('0' + d))
		}
	}
	n, _ := strconv.Atoi(b.String())
	return n
}

// missingNumbers returns the gaps in the cited numbering: every value
// between 1 and the highest cited number that no citation uses.
func missingNumbers(matches []domain.CitationMatch) []int {
	if len(matches) == 0 {
		return nil
	}

	cited := make(map[int]bool, len(matches))
	highest := 0
	for _, m := range matches {
		cited[m.Number] = true
		if m.Number > highest {
			highest = m.Number
		}
	}

	var missing []int
	for n := 1; n < highest; n++ {
		if !cited[n] {
			missing = append(missing, n)
		}
	}
	sort.Ints(missing)
	return missing
}
