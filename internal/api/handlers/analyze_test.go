package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/llm"
	"github.com/clio-labs/chronotex/internal/service"
)

type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Analyze(ctx context.Context, input service.AnalyzeInput) (*service.AnalyzeOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnalyzeOutput), args.Error(1)
}

func (m *MockAnalysisService) AnalyzeStream(ctx context.Context, input service.AnalyzeInput) (<-chan service.StreamEvent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan service.StreamEvent), args.Error(1)
}

func testChunks() []domain.Chunk {
	return []domain.Chunk{{Content: "passage", Year: 1961, OrdinalIndex: 1}}
}

func TestAnalyzeHandler_Analyze(t *testing.T) {
	mockSvc := new(MockAnalysisService)
	handler := NewAnalyzeHandler(mockSvc)

	mockSvc.On("Analyze", mock.Anything, mock.MatchedBy(func(input service.AnalyzeInput) bool {
		return input.Question == "when?" && len(input.Chunks) == 1
	})).Return(&service.AnalyzeOutput{
		Answer:   "In 1961 [1].",
		Metadata: service.AnalysisMetadata{ModelUsed: "gpt-4o"},
	}, nil)

	body, _ := json.Marshal(AnalyzeRequest{Question: "when?", Chunks: testChunks()})
	req := httptest.NewRequest(http.MethodPost, "/api/search/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Analyze(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "In 1961 [1].")
	mockSvc.AssertExpectations(t)
}

func TestAnalyzeHandler_Analyze_MissingFields(t *testing.T) {
	handler := NewAnalyzeHandler(new(MockAnalysisService))

	tests := []struct {
		name string
		req  AnalyzeRequest
	}{
		{"missing question", AnalyzeRequest{Chunks: testChunks()}},
		{"missing chunks", AnalyzeRequest{Question: "when?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.req)
			req := httptest.NewRequest(http.MethodPost, "/api/search/analyze", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.Analyze(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAnalyzeHandler_Analyze_UpstreamFailure(t *testing.T) {
	mockSvc := new(MockAnalysisService)
	handler := NewAnalyzeHandler(mockSvc)

	mockSvc.On("Analyze", mock.Anything, mock.Anything).Return(nil, domain.ErrLLMUnavailable)

	body, _ := json.Marshal(AnalyzeRequest{Question: "q", Chunks: testChunks()})
	req := httptest.NewRequest(http.MethodPost, "/api/search/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Analyze(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAnalyzeHandler_AnalyzeStream(t *testing.T) {
	mockSvc := new(MockAnalysisService)
	handler := NewAnalyzeHandler(mockSvc)

	events := make(chan service.StreamEvent, 4)
	events <- service.StreamEvent{Kind: llm.EventOutputDelta, Text: "In 1961"}
	events <- service.StreamEvent{Kind: llm.EventOutputDone, Text: "In 1961"}
	events <- service.StreamEvent{
		Kind:  llm.EventCompleted,
		Final: &service.AnalyzeOutput{Answer: "In 1961"},
	}
	close(events)

	mockSvc.On("AnalyzeStream", mock.Anything, mock.Anything).
		Return((<-chan service.StreamEvent)(events), nil)

	body, _ := json.Marshal(AnalyzeRequest{Question: "when?", Chunks: testChunks(), Stream: true})
	req := httptest.NewRequest(http.MethodPost, "/api/search/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Analyze(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, frames, 3)
	assert.Contains(t, frames[0], "output-delta")
	assert.Contains(t, frames[2], "completed")
	assert.Contains(t, frames[2], "In 1961")
}

func TestAnalyzeHandler_AnalyzeStream_ErrorFrame(t *testing.T) {
	mockSvc := new(MockAnalysisService)
	handler := NewAnalyzeHandler(mockSvc)

	events := make(chan service.StreamEvent, 2)
	events <- service.StreamEvent{Kind: llm.EventOutputDelta, Text: "partial"}
	events <- service.StreamEvent{Kind: llm.EventError, Err: domain.ErrStreamProtocol}
	close(events)

	mockSvc.On("AnalyzeStream", mock.Anything, mock.Anything).
		Return((<-chan service.StreamEvent)(events), nil)

	body, _ := json.Marshal(AnalyzeRequest{Question: "q", Chunks: testChunks(), Stream: true})
	req := httptest.NewRequest(http.MethodPost, "/api/search/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Analyze(rec, req)

	assert.Contains(t, rec.Body.String(), "error")
	assert.Contains(t, rec.Body.String(), "stream event")
}
