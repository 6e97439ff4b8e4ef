package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clio-labs/chronotex/internal/api"
	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/service"
)

type AnalysisService interface {
	Analyze(ctx context.Context, input service.AnalyzeInput) (*service.AnalyzeOutput, error)
	AnalyzeStream(ctx context.Context, input service.AnalyzeInput) (<-chan service.StreamEvent, error)
}

type AnalyzeHandler struct {
	svc AnalysisService
}

func NewAnalyzeHandler(svc AnalysisService) *AnalyzeHandler {
	return &AnalyzeHandler{svc: svc}
}

type AnalyzeRequest struct {
	Question    string         `json:"question"`
	Chunks      []domain.Chunk `json:"chunks"`
	Model       string         `json:"model"`
	Temperature float32        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
	Stream      bool           `json:"stream"`
}

func (req AnalyzeRequest) toInput() service.AnalyzeInput {
	return service.AnalyzeInput{
		Question:    req.Question,
		Chunks:      req.Chunks,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// Analyze handles POST /api/search/analyze. With "stream": true the
// response is a server-sent event stream; otherwise a single JSON body.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}
	if len(req.Chunks) == 0 {
		api.Error(w, http.StatusBadRequest, "chunks are required")
		return
	}

	if req.Stream {
		h.analyzeStream(w, r, req)
		return
	}

	out, err := h.svc.Analyze(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, out)
}

// streamFrame is the SSE payload for one analysis event
type streamFrame struct {
	Event string                 `json:"event"`
	Text  string                 `json:"text,omitempty"`
	Final *service.AnalyzeOutput `json:"final,omitempty"`
	Error string                 `json:"error,omitempty"`
}

func (h *AnalyzeHandler) analyzeStream(w http.ResponseWriter, r *http.Request, req AnalyzeRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := h.svc.AnalyzeStream(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		frame := streamFrame{Event: ev.Kind.String(), Text: ev.Text, Final: ev.Final}
		if ev.Err != nil {
			frame.Error = ev.Err.Error()
		}
		writeFrame(w, flusher, frame)
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, frame streamFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
