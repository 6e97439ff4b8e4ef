package domain

// Chunk is the atomic unit of retrieval and citation: a bounded span of
// source text plus its metadata and scores. Once a chunk list has been
// assembled for an LLM call, the list and its ordinal numbering are never
// mutated; the reranker produces annotated copies instead.
type Chunk struct {
	// Content is the retrieved passage text.
	Content string `json:"content"`

	// SourceFields holds the document fields the passage came from
	// (title, summary, text, tags). Keyword filters match against a
	// selected subset of these fields.
	SourceFields map[string]string `json:"source_fields,omitempty"`

	// Year is derived from the document's date field and scopes the
	// chunk to a time window.
	Year int `json:"year"`

	// VectorScore is the cosine similarity reported by the similarity
	// index, in [0, 1].
	VectorScore float64 `json:"vector_score"`

	// LLMScore and LLMRationale are attached by the relevance reranker.
	// LLMScore is nil for chunks that were never evaluated.
	LLMScore     *float64 `json:"llm_score,omitempty"`
	LLMRationale string   `json:"llm_rationale,omitempty"`

	// OrdinalIndex is the 1-based position of the chunk in the list sent
	// to the LLM. Inline citations reference this number.
	OrdinalIndex int `json:"ordinal_index"`
}

// TimeWindow is a contiguous, inclusive year sub-range used to force
// temporal diversity in retrieval.
type TimeWindow struct {
	StartYear int `json:"start_year"`
	EndYear   int `json:"end_year"`
}

// Contains reports whether year falls inside the window.
func (w TimeWindow) Contains(year int) bool {
	return year >= w.StartYear && year <= w.EndYear
}

// WindowStat reports the outcome of retrieval for one time window.
type WindowStat struct {
	Window TimeWindow `json:"window"`

	// Found is the number of chunks that survived filtering.
	Found int `json:"found"`

	// Failed is 1 when the window's index query failed; the window then
	// contributes nothing but does not abort the request.
	Failed int `json:"failed"`
}

// SearchStats aggregates per-window reporting for a retrieval request.
type SearchStats struct {
	PerWindow    []WindowStat `json:"per_window,omitempty"`
	SearchTimeMs int64        `json:"search_time_ms"`

	// Warnings carries non-fatal degradations, e.g. out-of-vocabulary
	// expansion terms.
	Warnings []string `json:"warnings,omitempty"`
}

// CitationMatch ties an inline citation marker in a finished answer back
// to the source chunk it references.
type CitationMatch struct {
	// Number is the citation's ordinal as written in the answer.
	Number int `json:"number"`

	// CharStart and CharLength locate the full marker (including
	// notation characters) as byte offsets into the answer.
	CharStart  int `json:"char_start"`
	CharLength int `json:"char_length"`

	// Chunk is nil when Number exceeds the supplied chunk count; such
	// citations render as plain text downstream.
	Chunk *Chunk `json:"chunk,omitempty"`
}

// TokenUsage mirrors the usage metadata reported by an LLM provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
