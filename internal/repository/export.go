package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clio-labs/chronotex/internal/domain"
)

// ExportRepository persists transient export artifacts. The artifact body
// is stored as a JSONB payload; the retention columns drive the sweep.
type ExportRepository struct {
	db dbtx
}

func NewExportRepository(pool *pgxpool.Pool) *ExportRepository {
	return &ExportRepository{db: pool}
}

func NewExportRepositoryWithTx(tx pgx.Tx) *ExportRepository {
	return &ExportRepository{db: tx}
}

func (r *ExportRepository) Create(ctx context.Context, e *domain.Export) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO exports (id, payload, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		e.ID, payload, e.CreatedAt, e.ExpiresAt,
	)
	return err
}

// GetByID returns the artifact. Artifacts past their retention window are
// reported as not found even before the sweep removes them.
func (r *ExportRepository) GetByID(ctx context.Context, id string) (*domain.Export, error) {
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT payload FROM exports WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExportNotFound
		}
		return nil, err
	}

	var e domain.Export
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteExpired removes every artifact whose retention window ended
// before now and returns the deleted IDs so object-storage copies can be
// cleaned up too.
func (r *ExportRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`DELETE FROM exports WHERE expires_at <= $1 RETURNING id`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
