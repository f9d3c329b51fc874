package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type qdrantRecorder struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]any
	exists   bool
}

func newFakeQdrant(t *testing.T, rec *qdrantRecorder) *httptest.Server {
	rec.bodies = make(map[string]map[string]any)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		rec.requests = append(rec.requests, key)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.bodies[key] = body
		assert.Equal(t, "secret", r.Header.Get("api-key"))

		w.Header().Set("Content-Type", "application/json")
		switch key {
		case "GET /collections/docs":
			if !rec.exists {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"status":{"error":"Not found"}}`))
				return
			}
			w.Write([]byte(`{"result":{}}`))
		case "PUT /collections/docs":
			rec.exists = true
			w.Write([]byte(`{"result":true}`))
		case "DELETE /collections/docs":
			rec.exists = false
			w.Write([]byte(`{"result":true}`))
		case "PUT /collections/docs/points", "POST /collections/docs/points/delete":
			w.Write([]byte(`{"result":{"status":"completed"}}`))
		case "POST /collections/docs/points/search":
			w.Write([]byte(`{"result":[
				{"id":"11111111-1111-1111-1111-111111111111","score":0.42,"payload":{"content":"low","source":"s2"}},
				{"id":"00000000-0000-0000-0000-000000000000","score":0.93,"payload":{"content":"high","source":"s1"}}
			]}`))
		case "POST /collections/docs/points/count":
			w.Write([]byte(`{"result":{"count":7}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
}

func TestQdrantIndex(t *testing.T) {
	rec := &qdrantRecorder{}
	server := newFakeQdrant(t, rec)
	defer server.Close()

	ctx := context.Background()
	idx := NewQdrantIndex(QdrantConfig{URL: server.URL + "/", APIKey: "secret", Collection: "docs"})

	require.NoError(t, idx.Init(ctx, 2))
	assert.Equal(t, []string{"GET /collections/docs", "PUT /collections/docs"}, rec.requests)
	vectors := rec.bodies["PUT /collections/docs"]["vectors"].(map[string]any)
	assert.Equal(t, "Cosine", vectors["distance"])
	assert.Equal(t, float64(2), vectors["size"])

	require.NoError(t, idx.Upsert(ctx, []Point{point("00000000-0000-0000-0000-000000000000", 1, 0)}))
	points := rec.bodies["PUT /collections/docs/points"]["points"].([]any)
	require.Len(t, points, 1)
	payload := points[0].(map[string]any)["payload"].(map[string]any)
	assert.Equal(t, "src 00000000-0000-0000-0000-000000000000", payload["source"])

	hits, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "high", hits[0].Payload.Content)
	assert.Equal(t, 0.93, hits[0].Score)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.NoError(t, idx.Delete(ctx, []string{"00000000-0000-0000-0000-000000000000"}))
	assert.Equal(t, []any{"00000000-0000-0000-0000-000000000000"}, rec.bodies["POST /collections/docs/points/delete"]["points"])

	require.NoError(t, idx.Reset(ctx))
	assert.True(t, rec.exists)
}

func TestQdrantIndexSurfacesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer server.Close()

	idx := NewQdrantIndex(QdrantConfig{URL: server.URL, Collection: "docs"})
	err := idx.Init(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")

	idx.dimension = 2
	err = idx.Upsert(context.Background(), []Point{point("a", 1, 0)})
	assert.Error(t, err)
}

func TestQdrantIndexDetectsDimensionChange(t *testing.T) {
	var created []float64
	size := 384
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "GET /collections/docs":
			w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":` + strconv.Itoa(size) + `,"distance":"Cosine"}}}}}`))
		case "DELETE /collections/docs":
			w.Write([]byte(`{"result":true}`))
		case "PUT /collections/docs":
			var body struct {
				Vectors struct {
					Size float64 `json:"size"`
				} `json:"vectors"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			created = append(created, body.Vectors.Size)
			size = int(body.Vectors.Size)
			w.Write([]byte(`{"result":true}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	idx := NewQdrantIndex(QdrantConfig{URL: server.URL, Collection: "docs"})

	err := idx.Init(ctx, 256)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	require.NoError(t, idx.Reset(ctx))
	assert.Equal(t, []float64{256}, created)
	require.NoError(t, idx.Init(ctx, 256))
}
