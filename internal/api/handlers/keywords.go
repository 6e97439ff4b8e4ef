package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/clio-labs/chronotex/internal/api"
	"github.com/clio-labs/chronotex/internal/service"
)

type KeywordService interface {
	Expand(ctx context.Context, expression string, perTerm int) ([]service.TermExpansion, error)
}

type KeywordHandler struct {
	svc KeywordService
}

func NewKeywordHandler(svc KeywordService) *KeywordHandler {
	return &KeywordHandler{svc: svc}
}

// Expand handles GET /api/keywords/expand?expression=...&count=n
func (h *KeywordHandler) Expand(w http.ResponseWriter, r *http.Request) {
	expression := r.URL.Query().Get("expression")
	if expression == "" {
		api.Error(w, http.StatusBadRequest, "expression is required")
		return
	}

	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "count must be a non-negative integer")
			return
		}
		count = parsed
	}

	results, err := h.svc.Expand(r.Context(), expression, count)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, results)
}
