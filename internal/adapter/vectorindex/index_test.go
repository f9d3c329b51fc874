package vectorindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(id string, v ...float32) Point {
	return Point{ID: id, Vector: v, Payload: Payload{Content: "content " + id, Source: "src " + id, CreatedAt: time.Unix(1700000000, 0).UTC()}}
}

// runIndexContract exercises the behaviour every backend must share.
func runIndexContract(t *testing.T, idx Index) {
	ctx := context.Background()
	require.NoError(t, idx.Init(ctx, 2))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	hits, err := idx.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Upsert(ctx, []Point{
		point("a", 1, 0),
		point("b", 0, 1),
		point("c", 1, 1),
		point("d", 1, 0),
	}))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	hits, err = idx.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"a", "d", "c"}, []string{hits[0].ID, hits[1].ID, hits[2].ID}, "ties keep insertion order")
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "src a", hits[0].Payload.Source)
	assert.Equal(t, "content a", hits[0].Payload.Content)

	// Replacing a point keeps its position and does not grow the index.
	require.NoError(t, idx.Upsert(ctx, []Point{point("a", 0, 1)}))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	hits, err = idx.Query(ctx, []float32{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)

	require.NoError(t, idx.Delete(ctx, []string{"a", "missing"}))
	hits, err = idx.Query(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "a", h.ID)
	}
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	err = idx.Upsert(ctx, []Point{point("e", 1, 2, 3)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	require.NoError(t, idx.Reset(ctx))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryIndex(t *testing.T) {
	runIndexContract(t, NewMemoryIndex())
}

func TestSQLiteIndex(t *testing.T) {
	idx, err := NewSQLiteIndex(":memory:")
	require.NoError(t, err)
	defer idx.Close()
	runIndexContract(t, idx)
}

func TestSQLiteIndexPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "vectors.db")

	idx, err := NewSQLiteIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Init(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []Point{point("a", 1, 0)}))
	require.NoError(t, idx.Close())

	idx, err = NewSQLiteIndex(path)
	require.NoError(t, err)
	defer idx.Close()

	err = idx.Init(ctx, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch, "existing vectors pin the dimension")

	require.NoError(t, idx.Init(ctx, 2))
	hits, err := idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.True(t, hits[0].Payload.CreatedAt.Equal(time.Unix(1700000000, 0)))
}

func TestPGVectorIndex(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_TEST_DSN not set")
	}
	idx, err := NewPGVectorIndex(dsn)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Init(ctx, 2); err != nil {
		require.ErrorIs(t, err, ErrDimensionMismatch)
	}
	require.NoError(t, idx.Reset(ctx))
	require.NoError(t, idx.Init(ctx, 2))
	runIndexContract(t, idx)
}

func TestTopK(t *testing.T) {
	hits := []Hit{{ID: "a", Score: 0.1}, {ID: "b", Score: 0.9}, {ID: "c", Score: 0.9}}
	got := topK(hits, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Len(t, topK([]Hit{{ID: "x"}}, 0), 1)
}
