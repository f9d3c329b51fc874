package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// QdrantConfig configures the Qdrant REST client.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex is a minimal REST client to a Qdrant collection using cosine distance.
// Point ids must be UUIDs, which is what the repository generates.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex creates a Qdrant client. The collection is created by Init.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (q *QdrantIndex) Name() string { return "qdrant" }

// Init creates the collection if it does not exist yet.
func (q *QdrantIndex) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	q.dimension = dimension

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors json.RawMessage `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodGet, q.collectionURL(), nil, &info)
	if err != nil {
		if status != http.StatusNotFound {
			return err
		}
		return q.createCollection(ctx)
	}

	// Named vector configurations carry no top-level size and are not checked.
	var vectors struct {
		Size int `json:"size"`
	}
	if len(info.Result.Config.Params.Vectors) > 0 {
		_ = json.Unmarshal(info.Result.Config.Params.Vectors, &vectors)
	}
	if vectors.Size > 0 && vectors.Size != dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, embedder produces %d",
			ErrDimensionMismatch, q.collection, vectors.Size, dimension)
	}
	return nil
}

func (q *QdrantIndex) createCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	_, err := q.do(ctx, http.MethodPut, q.collectionURL(), body, nil)
	return err
}

type qdrantPayload struct {
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, len(points))
	for i, p := range points {
		if err := checkDimension(q.dimension, p.Vector); err != nil {
			return err
		}
		body[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": qdrantPayload(p.Payload),
		}
	}
	_, err := q.do(ctx, http.MethodPut, q.collectionURL()+"/points?wait=true", map[string]any{"points": body}, nil)
	return err
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any           `json:"id"`
			Score   float64       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	if _, err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{ID: fmt.Sprint(r.ID), Score: r.Score, Payload: Payload(r.Payload)})
	}
	return topK(hits, k), nil
}

func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/delete?wait=true", map[string]any{"points": ids}, nil)
	return err
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Reset drops and recreates the collection.
func (q *QdrantIndex) Reset(ctx context.Context) error {
	status, err := q.do(ctx, http.MethodDelete, q.collectionURL(), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	return q.createCollection(ctx)
}

func (q *QdrantIndex) Close() error { return nil }

func (q *QdrantIndex) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", q.url, q.collection)
}

// do sends a JSON request and decodes the response into out when non-nil.
// The HTTP status is returned alongside any error.
func (q *QdrantIndex) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
