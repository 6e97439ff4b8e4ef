package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/expansion"
)

// MockNeighborProvider is a mock implementation of NeighborProviderInterface
type MockNeighborProvider struct {
	mock.Mock
}

func (m *MockNeighborProvider) Expand(ctx context.Context, term string, count int) ([]expansion.Neighbor, error) {
	args := m.Called(ctx, term, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]expansion.Neighbor), args.Error(1)
}

func TestKeywordService_Expand(t *testing.T) {
	mockProvider := new(MockNeighborProvider)
	svc := NewKeywordService(mockProvider)

	mockProvider.On("Expand", mock.Anything, "mauer", 5).Return([]expansion.Neighbor{
		{Word: "grenzmauer", Similarity: 0.91, Frequency: 120},
		{Word: "betonmauer", Similarity: 0.88, Frequency: 45},
	}, nil)
	mockProvider.On("Expand", mock.Anything, "grenze", 5).Return([]expansion.Neighbor{
		{Word: "staatsgrenze", Similarity: 0.85, Frequency: 200},
	}, nil)

	results, err := svc.Expand(context.Background(), "mauer AND grenze", 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "mauer", results[0].Term)
	assert.Len(t, results[0].Neighbors, 2)
	assert.Equal(t, "grenze", results[1].Term)
	mockProvider.AssertExpectations(t)
}

func TestKeywordService_Expand_OutOfVocabulary(t *testing.T) {
	mockProvider := new(MockNeighborProvider)
	svc := NewKeywordService(mockProvider)

	mockProvider.On("Expand", mock.Anything, "mauer", 5).Return([]expansion.Neighbor{
		{Word: "grenzmauer", Similarity: 0.91},
	}, nil)
	mockProvider.On("Expand", mock.Anything, "xyzzy", 5).
		Return(nil, expansion.ErrOutOfVocabulary)

	results, err := svc.Expand(context.Background(), "mauer OR xyzzy", 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].OutOfVocabulary)
	assert.True(t, results[1].OutOfVocabulary)
	assert.Empty(t, results[1].Neighbors)
}

func TestKeywordService_Expand_ServiceFailure(t *testing.T) {
	mockProvider := new(MockNeighborProvider)
	svc := NewKeywordService(mockProvider)

	mockProvider.On("Expand", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := svc.Expand(context.Background(), "mauer", 5)

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUpstream, domainErr.Code)
}

func TestKeywordService_Expand_ValidationErrors(t *testing.T) {
	svc := NewKeywordService(new(MockNeighborProvider))

	_, err := svc.Expand(context.Background(), "   ", 5)
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestKeywordService_Expand_NotConfigured(t *testing.T) {
	svc := NewKeywordService(nil)

	_, err := svc.Expand(context.Background(), "mauer", 5)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUpstream, domainErr.Code)
}

func TestKeywordService_Expand_DefaultCount(t *testing.T) {
	mockProvider := new(MockNeighborProvider)
	svc := NewKeywordService(mockProvider)

	mockProvider.On("Expand", mock.Anything, "mauer", 5).Return([]expansion.Neighbor{}, nil)

	_, err := svc.Expand(context.Background(), "mauer", 0)

	require.NoError(t, err)
	mockProvider.AssertExpectations(t)
}
