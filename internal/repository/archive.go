package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/clio-labs/chronotex/internal/search"
)

// ArchiveRepository reads the embedded archive corpus. It is the
// similarity index behind retrieval: cosine similarity over pgvector
// embeddings, optionally scoped to a year range for windowed searches.
type ArchiveRepository struct {
	db dbtx
}

func NewArchiveRepository(pool *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{db: pool}
}

// Query returns the TopK most similar chunks for the embedding, scoped to
// the window's year bounds when one is given. Scores are cosine
// similarity in [0, 1], highest first.
func (r *ArchiveRepository) Query(ctx context.Context, in search.QueryInput) ([]search.IndexHit, error) {
	vec := pgvector.NewVector(in.Embedding)

	var (
		rows pgx.Rows
		err  error
	)
	if in.Window != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, summary, content, tags, year, 1 - (embedding <=> $1) AS score
			 FROM archive_chunks
			 WHERE year BETWEEN $2 AND $3
			 ORDER BY embedding <=> $1
			 LIMIT $4`,
			vec, in.Window.StartYear, in.Window.EndYear, in.TopK,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, summary, content, tags, year, 1 - (embedding <=> $1) AS score
			 FROM archive_chunks
			 ORDER BY embedding <=> $1
			 LIMIT $2`,
			vec, in.TopK,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []search.IndexHit
	for rows.Next() {
		var (
			hit                  search.IndexHit
			title, summary, tags *string
		)
		if err := rows.Scan(&hit.ID, &title, &summary, &hit.Content, &tags, &hit.Year, &hit.VectorScore); err != nil {
			return nil, err
		}
		hit.Fields = map[string]string{"text": hit.Content}
		if title != nil {
			hit.Fields["title"] = *title
		}
		if summary != nil {
			hit.Fields["summary"] = *summary
		}
		if tags != nil {
			hit.Fields["tags"] = *tags
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// ArchiveChunk is one embedded corpus row as written at ingest time.
type ArchiveChunk struct {
	ID        string
	Title     string
	Summary   string
	Content   string
	Tags      string
	Year      int
	ChunkSize int
	Embedding []float32
}

// Insert writes one embedded chunk into the archive.
func (r *ArchiveRepository) Insert(ctx context.Context, c *ArchiveChunk) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO archive_chunks (id, title, summary, content, tags, year, chunk_size, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Title, c.Summary, c.Content, c.Tags, c.Year, c.ChunkSize, pgvector.NewVector(c.Embedding),
	)
	return err
}

// YearBounds returns the corpus's minimum and maximum chunk years.
func (r *ArchiveRepository) YearBounds(ctx context.Context) (int, int, error) {
	var minYear, maxYear int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MIN(year), 0), COALESCE(MAX(year), 0) FROM archive_chunks`,
	).Scan(&minYear, &maxYear)
	return minYear, maxYear, err
}
