package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clio-labs/chronotex/internal/api"
	"github.com/clio-labs/chronotex/internal/service"
)

type SearchService interface {
	StandardSearch(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
	LLMAssistedSearch(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query           string   `json:"query"`
	YearStart       int      `json:"year_start"`
	YearEnd         int      `json:"year_end"`
	WindowSize      int      `json:"window_size"`
	Keywords        string   `json:"keywords"`
	SearchIn        []string `json:"search_in"`
	ExpandWords     int      `json:"expand_words"`
	ChunksPerWindow int      `json:"chunks_per_window"`
	TopK            int      `json:"top_k"`
	MinRelevance    float64  `json:"min_relevance"`
	Model           string   `json:"model"`
	SortKey         string   `json:"sort_key"`
}

func (req SearchRequest) toInput() service.SearchInput {
	return service.SearchInput{
		Query:           req.Query,
		YearStart:       req.YearStart,
		YearEnd:         req.YearEnd,
		WindowSize:      req.WindowSize,
		Keywords:        req.Keywords,
		SearchIn:        req.SearchIn,
		ExpandWords:     req.ExpandWords,
		ChunksPerWindow: req.ChunksPerWindow,
		TopK:            req.TopK,
		MinRelevance:    req.MinRelevance,
		Model:           req.Model,
		SortKey:         req.SortKey,
	}
}

// Standard handles POST /api/search/standard
func (h *SearchHandler) Standard(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	out, err := h.svc.StandardSearch(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, out)
}

// LLMAssisted handles POST /api/search/llm-assisted
func (h *SearchHandler) LLMAssisted(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	out, err := h.svc.LLMAssistedSearch(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, out)
}
