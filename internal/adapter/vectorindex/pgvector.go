package vectorindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PGVectorIndex stores vectors in PostgreSQL using the pgvector extension.
type PGVectorIndex struct {
	db        *sql.DB
	dimension int
}

var _ Index = (*PGVectorIndex)(nil)

// NewPGVectorIndex connects to PostgreSQL. The table is created by Init.
func NewPGVectorIndex(dsn string) (*PGVectorIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &PGVectorIndex{db: db}, nil
}

func (pg *PGVectorIndex) Name() string { return "pgvector" }

func (pg *PGVectorIndex) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	pg.dimension = dimension

	if err := pg.migrate(ctx); err != nil {
		return err
	}

	// pgvector stores the declared dimension as the column's type modifier.
	var stored int
	err := pg.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'document_vectors'::regclass AND attname = 'embedding'`).Scan(&stored)
	if err != nil {
		return fmt.Errorf("failed to read vector column: %w", err)
	}
	if stored > 0 && stored != dimension {
		return fmt.Errorf("%w: table document_vectors has dimension %d, embedder produces %d",
			ErrDimensionMismatch, stored, dimension)
	}
	return nil
}

func (pg *PGVectorIndex) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_vectors (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, pg.dimension),
	}
	for _, m := range migrations {
		if _, err := pg.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (pg *PGVectorIndex) Upsert(ctx context.Context, points []Point) error {
	for _, p := range points {
		if err := checkDimension(pg.dimension, p.Vector); err != nil {
			return err
		}
	}

	tx, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO document_vectors (id, embedding, content, source, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			created_at = EXCLUDED.created_at
	`
	for _, p := range points {
		vec := pgvector.NewVector(p.Vector)
		if _, err := tx.ExecContext(ctx, query, p.ID, vec, p.Payload.Content, p.Payload.Source, p.Payload.CreatedAt); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (pg *PGVectorIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector cannot be empty")
	}
	if k <= 0 {
		return nil, errors.New("limit must be greater than zero")
	}

	query := `
		SELECT id, content, source, created_at, 1 - (embedding <=> $1) AS score
		FROM document_vectors
		ORDER BY embedding <=> $1, seq
		LIMIT $2
	`
	rows, err := pg.db.QueryContext(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Payload.Content, &h.Payload.Source, &h.Payload.CreatedAt, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		// pgvector reports NaN distance for zero vectors.
		if math.IsNaN(h.Score) {
			h.Score = 0
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating through vectors: %w", err)
	}
	return topK(hits, k), nil
}

func (pg *PGVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := pg.db.ExecContext(ctx, `DELETE FROM document_vectors WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

func (pg *PGVectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := pg.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// Reset drops the table and recreates it with the current dimension.
func (pg *PGVectorIndex) Reset(ctx context.Context) error {
	if _, err := pg.db.ExecContext(ctx, `DROP TABLE IF EXISTS document_vectors`); err != nil {
		return fmt.Errorf("failed to reset vectors: %w", err)
	}
	return pg.migrate(ctx)
}

func (pg *PGVectorIndex) Close() error {
	return pg.db.Close()
}
