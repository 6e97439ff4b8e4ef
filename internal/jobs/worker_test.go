package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockExportStore is a mock implementation of ExpiredExportStore
type MockExportStore struct {
	mock.Mock
}

func (m *MockExportStore) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockArtifactStore is a mock implementation of ArtifactStore
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_SweepsImmediatelyOnStart tests that the first sweep does not
// wait for the first tick
func TestWorker_SweepsImmediatelyOnStart(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertNumberOfCalls(t, "ProcessJobs", 1)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestExportSweeper_NoExpiredArtifacts tests a sweep with nothing to do
func TestExportSweeper_NoExpiredArtifacts(t *testing.T) {
	mockStore := new(MockExportStore)
	mockObjects := new(MockArtifactStore)

	mockStore.On("DeleteExpired", mock.Anything, mock.Anything).Return([]string{}, nil)

	sweeper := NewExportSweeper(mockStore, mockObjects)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
	mockObjects.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
}

// TestExportSweeper_DeletesObjectCopies tests that swept artifacts are
// also removed from object storage
func TestExportSweeper_DeletesObjectCopies(t *testing.T) {
	mockStore := new(MockExportStore)
	mockObjects := new(MockArtifactStore)

	mockStore.On("DeleteExpired", mock.Anything, mock.Anything).Return([]string{"exp-1", "exp-2"}, nil)
	mockObjects.On("DeleteObject", mock.Anything, "exports/exp-1.json").Return(nil)
	mockObjects.On("DeleteObject", mock.Anything, "exports/exp-2.json").Return(nil)

	sweeper := NewExportSweeper(mockStore, mockObjects)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
	mockObjects.AssertExpectations(t)
}

// TestExportSweeper_ObjectDeleteFailureIsNonFatal tests that a failed
// object delete does not fail the sweep
func TestExportSweeper_ObjectDeleteFailureIsNonFatal(t *testing.T) {
	mockStore := new(MockExportStore)
	mockObjects := new(MockArtifactStore)

	mockStore.On("DeleteExpired", mock.Anything, mock.Anything).Return([]string{"exp-1", "exp-2"}, nil)
	mockObjects.On("DeleteObject", mock.Anything, "exports/exp-1.json").Return(errors.New("bucket unavailable"))
	mockObjects.On("DeleteObject", mock.Anything, "exports/exp-2.json").Return(nil)

	sweeper := NewExportSweeper(mockStore, mockObjects)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockObjects.AssertExpectations(t)
}

// TestExportSweeper_WithoutObjectStorage tests the database-only setup
func TestExportSweeper_WithoutObjectStorage(t *testing.T) {
	mockStore := new(MockExportStore)
	mockStore.On("DeleteExpired", mock.Anything, mock.Anything).Return([]string{"exp-1"}, nil)

	sweeper := NewExportSweeper(mockStore, nil)
	err := sweeper.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
}

// TestExportSweeper_StoreError tests store error propagation
func TestExportSweeper_StoreError(t *testing.T) {
	mockStore := new(MockExportStore)
	mockStore.On("DeleteExpired", mock.Anything, mock.Anything).Return(nil, errors.New("database error"))

	sweeper := NewExportSweeper(mockStore, nil)
	err := sweeper.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete expired exports")
	mockStore.AssertExpectations(t)
}

// TestExportSweeper_UsesCurrentTime tests the sweep cutoff
func TestExportSweeper_UsesCurrentTime(t *testing.T) {
	mockStore := new(MockExportStore)
	fixed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	mockStore.On("DeleteExpired", mock.Anything, fixed).Return([]string{}, nil)

	sweeper := NewExportSweeper(mockStore, nil)
	sweeper.now = func() time.Time { return fixed }

	assert.NoError(t, sweeper.ProcessJobs(context.Background()))
	mockStore.AssertExpectations(t)
}
