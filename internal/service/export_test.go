package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clio-labs/chronotex/internal/domain"
)

// MockExportRepository is a mock implementation of ExportRepositoryInterface
type MockExportRepository struct {
	mock.Mock
}

func (m *MockExportRepository) Create(ctx context.Context, e *domain.Export) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockExportRepository) GetByID(ctx context.Context, id string) (*domain.Export, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Export), args.Error(1)
}

// MockExportObjectStore is a mock implementation of ExportObjectStoreInterface
type MockExportObjectStore struct {
	mock.Mock
}

func (m *MockExportObjectStore) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}

func (m *MockExportObjectStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// fixedUUIDGenerator returns a fixed sequence of IDs
type fixedUUIDGenerator struct {
	ids  []string
	next int
}

func (g *fixedUUIDGenerator) NewString() string {
	id := g.ids[g.next%len(g.ids)]
	g.next++
	return id
}

const testExportID = "3f6f2a1e-8f4b-4f6e-9c1d-2b7a8e5d4c3b"

func newTestExportService(repo ExportRepositoryInterface, objects ExportObjectStoreInterface) *ExportService {
	svc := NewExportService(repo, objects, time.Hour)
	svc.uuidGen = &fixedUUIDGenerator{ids: []string{testExportID}}
	svc.now = func() time.Time {
		return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestExportService_Create(t *testing.T) {
	mockRepo := new(MockExportRepository)
	svc := newTestExportService(mockRepo, nil)

	var stored *domain.Export
	mockRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.Export)
		}).
		Return(nil)

	out, err := svc.Create(context.Background(), CreateExportInput{
		Question: "When was the wall built?",
		Answer:   "In 1961 [1].",
		Model:    "gpt-4o",
		Chunks:   analysisChunks(),
	})

	require.NoError(t, err)
	assert.Equal(t, testExportID, out.ID)
	assert.Empty(t, out.DownloadURL)

	require.NotNil(t, stored)
	assert.Equal(t, "In 1961 [1].", stored.Answer)
	assert.Equal(t, stored.CreatedAt.Add(time.Hour), stored.ExpiresAt)
}

func TestExportService_Create_UploadsObjectCopy(t *testing.T) {
	mockRepo := new(MockExportRepository)
	mockObjects := new(MockExportObjectStore)
	svc := newTestExportService(mockRepo, mockObjects)

	key := "exports/" + testExportID + ".json"
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockObjects.On("PutObject", mock.Anything, key, "application/json", mock.Anything).Return(nil)
	mockObjects.On("GenerateDownloadURL", mock.Anything, key).
		Return("https://objects.example/"+key+"?sig=abc", nil)

	out, err := svc.Create(context.Background(), CreateExportInput{
		Question: "q",
		Answer:   "a",
		Chunks:   analysisChunks(),
	})

	require.NoError(t, err)
	assert.Contains(t, out.DownloadURL, key)
	mockObjects.AssertExpectations(t)
}

func TestExportService_Create_UploadFailure(t *testing.T) {
	mockRepo := new(MockExportRepository)
	mockObjects := new(MockExportObjectStore)
	svc := newTestExportService(mockRepo, mockObjects)

	mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockObjects.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("bucket unavailable"))

	_, err := svc.Create(context.Background(), CreateExportInput{Answer: "a"})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUpstream, domainErr.Code)
}

func TestExportService_Create_EmptyAnswer(t *testing.T) {
	svc := newTestExportService(new(MockExportRepository), nil)

	_, err := svc.Create(context.Background(), CreateExportInput{Answer: "  "})

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestExportService_Get(t *testing.T) {
	mockRepo := new(MockExportRepository)
	svc := newTestExportService(mockRepo, nil)

	mockRepo.On("GetByID", mock.Anything, testExportID).Return(&domain.Export{
		ID:     testExportID,
		Answer: "In 1961 [1].",
	}, nil)

	export, err := svc.Get(context.Background(), testExportID)

	require.NoError(t, err)
	assert.Equal(t, "In 1961 [1].", export.Answer)
}

func TestExportService_Get_InvalidID(t *testing.T) {
	svc := newTestExportService(new(MockExportRepository), nil)

	_, err := svc.Get(context.Background(), "not-a-uuid")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestExportService_Get_NotFound(t *testing.T) {
	mockRepo := new(MockExportRepository)
	svc := newTestExportService(mockRepo, nil)

	mockRepo.On("GetByID", mock.Anything, testExportID).Return(nil, domain.ErrExportNotFound)

	_, err := svc.Get(context.Background(), testExportID)

	require.ErrorIs(t, err, domain.ErrExportNotFound)
}

func TestExportService_RenderCSV(t *testing.T) {
	mockRepo := new(MockExportRepository)
	svc := newTestExportService(mockRepo, nil)

	score := 7.5
	mockRepo.On("GetByID", mock.Anything, testExportID).Return(&domain.Export{
		ID:     testExportID,
		Answer: "a",
		Chunks: []domain.Chunk{
			{
				Content:      "Die Mauer wurde 1961 gebaut.",
				SourceFields: map[string]string{"title": "Der Mauerbau"},
				Year:         1961,
				VectorScore:  0.9,
				LLMScore:     &score,
				LLMRationale: "directly relevant",
				OrdinalIndex: 1,
			},
			{Content: "unscored", Year: 1962, VectorScore: 0.5, OrdinalIndex: 2},
		},
	}, nil)

	data, err := svc.RenderCSV(context.Background(), testExportID)

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ordinal")
	assert.Contains(t, lines[1], "Der Mauerbau")
	assert.Contains(t, lines[1], "7.5")
	assert.Contains(t, lines[2], "unscored")
}
