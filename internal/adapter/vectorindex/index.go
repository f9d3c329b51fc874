// Package vectorindex provides the nearest-neighbour stores behind the
// document repository. Every backend ranks by cosine similarity.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/DungNguyen05/Economic-Agent/internal/config"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Payload is the document data stored next to a vector.
type Payload struct {
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Point is a vector keyed by document id.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a query result.
type Hit struct {
	ID      string
	Score   float64
	Payload Payload
}

// Index is a vector store answering nearest-neighbour queries.
type Index interface {
	// Init prepares the index for vectors of the given dimension.
	Init(ctx context.Context, dimension int) error

	// Upsert inserts or replaces points in a single write.
	Upsert(ctx context.Context, points []Point) error

	// Query returns at most k hits ordered by descending score.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Delete removes the points with the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count reports the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Reset removes every vector.
	Reset(ctx context.Context) error

	// Name identifies the backend in logs.
	Name() string

	Close() error
}

// New creates the backend selected by cfg.VectorBackend. The caller must Init it.
func New(cfg *config.Config) (Index, error) {
	switch cfg.VectorBackend {
	case "memory":
		return NewMemoryIndex(), nil
	case "sqlite":
		return NewSQLiteIndex(cfg.VectorDBPath())
	case "qdrant":
		return NewQdrantIndex(QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}), nil
	case "pgvector":
		return NewPGVectorIndex(cfg.PGVectorDSN)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// cosine returns the cosine similarity of a and b, or 0 if either is a zero
// vector or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK ranks hits by descending score; equal scores keep their input order.
func topK(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func checkDimension(dimension int, vectors ...[]float32) error {
	for _, v := range vectors {
		if dimension > 0 && len(v) != dimension {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dimension)
		}
	}
	return nil
}
