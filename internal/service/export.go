package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/jobs"
	"github.com/clio-labs/chronotex/internal/telemetry"
)

// ExportRepositoryInterface defines the repository interface for export persistence
type ExportRepositoryInterface interface {
	Create(ctx context.Context, e *domain.Export) error
	GetByID(ctx context.Context, id string) (*domain.Export, error)
}

// ExportObjectStoreInterface defines the object storage interface for
// export artifact copies
type ExportObjectStoreInterface interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// ExportService handles business logic for export artifacts. Artifacts are
// short-lived: each one expires after the configured retention window and
// is then swept from the database and object storage.
type ExportService struct {
	repo      ExportRepositoryInterface
	objects   ExportObjectStoreInterface
	retention time.Duration
	uuidGen   UUIDGenerator
	now       func() time.Time
}

// NewExportService creates a new ExportService instance. The object store
// may be nil; artifacts then live only in the database.
func NewExportService(repo ExportRepositoryInterface, objects ExportObjectStoreInterface, retention time.Duration) *ExportService {
	return &ExportService{
		repo:      repo,
		objects:   objects,
		retention: retention,
		uuidGen:   &DefaultUUIDGenerator{},
		now:       time.Now,
	}
}

// CreateExportInput represents the input for creating an export artifact
type CreateExportInput struct {
	Question  string
	Answer    string
	Reasoning string
	Model     string
	Metadata  map[string]any
	Chunks    []domain.Chunk
}

// CreateExportOutput represents a created export artifact
type CreateExportOutput struct {
	ID          string    `json:"id"`
	ExpiresAt   time.Time `json:"expires_at"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// Create stores an analysis result as a retrievable artifact. When object
// storage is configured, a JSON copy is uploaded and a presigned download
// URL is returned alongside the ID.
func (s *ExportService) Create(ctx context.Context, input CreateExportInput) (*CreateExportOutput, error) {
	id := s.uuidGen.NewString()

	ctx, span := telemetry.StartSpan(ctx, "ExportService.Create", telemetry.SpanAttributes{
		ExportID:  id,
		Model:     input.Model,
		Operation: "create_export",
	})
	defer span.End()

	if strings.TrimSpace(input.Answer) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "export answer cannot be empty")
	}

	now := s.now().UTC()
	export := &domain.Export{
		ID:        id,
		Question:  input.Question,
		Answer:    input.Answer,
		Reasoning: input.Reasoning,
		Model:     input.Model,
		Metadata:  input.Metadata,
		Chunks:    input.Chunks,
		CreatedAt: now,
		ExpiresAt: now.Add(s.retention),
	}

	if err := s.repo.Create(ctx, export); err != nil {
		span.SetError(err)
		return nil, err
	}

	out := &CreateExportOutput{ID: id, ExpiresAt: export.ExpiresAt}
	if s.objects != nil {
		key := jobs.ExportObjectKey(id)
		payload, err := json.Marshal(export)
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to marshal export: %w", err)
		}
		if err := s.objects.PutObject(ctx, key, "application/json", payload); err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to upload export artifact", err)
		}
		url, err := s.objects.GenerateDownloadURL(ctx, key)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to presign export artifact", err)
		}
		out.DownloadURL = url
	}
	return out, nil
}

// Get returns a stored export artifact. Expired artifacts are not found
// even when the sweeper has not removed them yet.
func (s *ExportService) Get(ctx context.Context, id string) (*domain.Export, error) {
	ctx, span := telemetry.StartSpan(ctx, "ExportService.Get", telemetry.SpanAttributes{
		ExportID:  id,
		Operation: "get_export",
	})
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "export id must be a UUID")
	}

	export, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return export, nil
}

// RenderCSV renders an export's source chunks as CSV, one row per chunk.
func (s *ExportService) RenderCSV(ctx context.Context, id string) ([]byte, error) {
	export, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	header := []string{"ordinal", "year", "title", "vector_score", "llm_score", "llm_rationale", "content"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, c := range export.Chunks {
		llmScore := ""
		if c.LLMScore != nil {
			llmScore = strconv.FormatFloat(*c.LLMScore, 'f', -1, 64)
		}
		row := []string{
			strconv.Itoa(c.OrdinalIndex),
			strconv.Itoa(c.Year),
			c.SourceFields["title"],
			strconv.FormatFloat(c.VectorScore, 'f', -1, 64),
			llmScore,
			c.LLMRationale,
			c.Content,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render csv: %w", err)
	}
	return []byte(buf.String()), nil
}
