package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ExpiredExportStore deletes export rows past their retention window and
// reports which ones went away.
type ExpiredExportStore interface {
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

// ArtifactStore removes the object-storage copy of an export artifact.
type ArtifactStore interface {
	DeleteObject(ctx context.Context, key string) error
}

// ExportSweeper enforces the export retention contract: artifacts are
// transient and must disappear after their retention window, both from
// the database and from object storage when one is configured.
type ExportSweeper struct {
	store   ExpiredExportStore
	objects ArtifactStore
	now     func() time.Time
}

// NewExportSweeper creates a sweeper. objects may be nil when exports are
// database-only.
func NewExportSweeper(store ExpiredExportStore, objects ArtifactStore) *ExportSweeper {
	return &ExportSweeper{
		store:   store,
		objects: objects,
		now:     time.Now,
	}
}

// ExportObjectKey is the object-storage key for an export artifact.
func ExportObjectKey(id string) string {
	return "exports/" + id + ".json"
}

// ProcessJobs implements the JobProcessor interface
func (s *ExportSweeper) ProcessJobs(ctx context.Context) error {
	ids, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to delete expired exports: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	log.Printf("Swept %d expired export artifacts", len(ids))

	if s.objects == nil {
		return nil
	}
	for _, id := range ids {
		// The row is already gone; an orphaned object cannot be served.
		if err := s.objects.DeleteObject(ctx, ExportObjectKey(id)); err != nil {
			log.Printf("Failed to delete export object %s: %v", id, err)
		}
	}
	return nil
}
