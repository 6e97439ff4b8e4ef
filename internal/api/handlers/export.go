package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clio-labs/chronotex/internal/api"
	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/service"
)

type ExportService interface {
	Create(ctx context.Context, input service.CreateExportInput) (*service.CreateExportOutput, error)
	Get(ctx context.Context, id string) (*domain.Export, error)
	RenderCSV(ctx context.Context, id string) ([]byte, error)
}

type ExportHandler struct {
	svc ExportService
}

func NewExportHandler(svc ExportService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

type CreateExportRequest struct {
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Reasoning string         `json:"reasoning"`
	Model     string         `json:"model"`
	Metadata  map[string]any `json:"metadata"`
	Chunks    []domain.Chunk `json:"chunks"`
}

// Create handles POST /api/export
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Answer == "" {
		api.Error(w, http.StatusBadRequest, "answer is required")
		return
	}

	out, err := h.svc.Create(r.Context(), service.CreateExportInput{
		Question:  req.Question,
		Answer:    req.Answer,
		Reasoning: req.Reasoning,
		Model:     req.Model,
		Metadata:  req.Metadata,
		Chunks:    req.Chunks,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, out)
}

// Get handles GET /api/export/{id}
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "export id is required")
		return
	}

	export, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, export)
}

// CSV handles GET /api/export/{id}/csv
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "export id is required")
		return
	}

	data, err := h.svc.RenderCSV(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "export-"+id+".csv"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
