package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteIndex persists vectors in a SQLite database and ranks them by brute force.
type SQLiteIndex struct {
	db        *sql.DB
	dimension int
}

var _ Index = (*SQLiteIndex)(nil)

// NewSQLiteIndex opens (or creates) the index database at dsn.
func NewSQLiteIndex(dsn string) (*SQLiteIndex, error) {
	inMemory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if !inMemory && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return idx, nil
}

// migrate runs database migrations.
func (s *SQLiteIndex) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS vectors (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			vector BLOB NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteIndex) Name() string { return "sqlite" }

// Init records the dimension. An index already holding vectors of another
// dimension is rejected; it must be Reset and rebuilt.
func (s *SQLiteIndex) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}

	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read index metadata: %w", err)
	case stored != fmt.Sprint(dimension):
		n, err := s.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: index holds %d vectors of dimension %s, embedder produces %d",
				ErrDimensionMismatch, n, stored, dimension)
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO index_meta (key, value) VALUES ('dimension', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprint(dimension)); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	s.dimension = dimension
	return nil
}

// Upsert writes all points in one transaction. Replaced points keep their
// original insertion position.
func (s *SQLiteIndex) Upsert(ctx context.Context, points []Point) error {
	for _, p := range points {
		if err := checkDimension(s.dimension, p.Vector); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (id, vector, content, source, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector,
			content = excluded.content,
			source = excluded.source,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.ID, encodeVector(p.Vector), p.Payload.Content, p.Payload.Source, p.Payload.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := checkDimension(s.dimension, vector); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, content, source, created_at FROM vectors ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h         Hit
			blob      []byte
			createdAt time.Time
		)
		if err := rows.Scan(&h.ID, &blob, &h.Payload.Content, &h.Payload.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("vector %s: %w", h.ID, err)
		}
		h.Payload.CreatedAt = createdAt
		h.Score = cosine(vector, stored)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(hits, k), nil
}

func (s *SQLiteIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

func (s *SQLiteIndex) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors`); err != nil {
		return fmt.Errorf("failed to reset vectors: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// encodeVector stores a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
