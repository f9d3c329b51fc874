// Package repository owns the document list and its vector index projection.
//
// The JSON file is the source of truth. The vector index is derived from it and
// can always be rebuilt with Reconcile. Callers never touch the index directly.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/embedding"
	"github.com/DungNguyen05/Economic-Agent/internal/adapter/vectorindex"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// DocumentRepository keeps the document list and the vector index in sync.
type DocumentRepository struct {
	mu   sync.RWMutex
	docs []domain.Document
	byID map[string]int

	path        string
	index       vectorindex.Index
	embedder    embedding.Embedder
	defaultTopK int
	log         *zap.Logger
	now         func() time.Time
}

// Options configures a DocumentRepository.
type Options struct {
	// Path is the JSON file holding the document list.
	Path string
	// DefaultTopK is used by Search when topK <= 0.
	DefaultTopK int
}

// New creates a repository. Load must be called before use.
func New(opts Options, index vectorindex.Index, embedder embedding.Embedder, log *zap.Logger) *DocumentRepository {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &DocumentRepository{
		byID:        make(map[string]int),
		path:        opts.Path,
		index:       index,
		embedder:    embedder,
		defaultTopK: opts.DefaultTopK,
		log:         log,
		now:         time.Now,
	}
}

// Load opens the repository and repairs any drift between the document
// file and the index.
func (r *DocumentRepository) Load(ctx context.Context) (domain.IndexStats, error) {
	if err := r.Open(ctx); err != nil {
		return domain.IndexStats{}, err
	}
	return r.Reconcile(ctx)
}

// Open reads the document file and prepares the index. An index built with
// another vector dimension is emptied so that Reconcile can rebuild it.
func (r *DocumentRepository) Open(ctx context.Context) error {
	const op = "repository.Open"

	docs, err := readDocuments(r.path)
	if err != nil {
		return domain.NewError(domain.KindInternal, op, err)
	}

	r.mu.Lock()
	r.docs = docs
	r.byID = make(map[string]int, len(docs))
	for i, d := range docs {
		r.byID[d.ID] = i
	}
	r.mu.Unlock()

	dimension := r.embedder.Dimension()
	err = r.index.Init(ctx, dimension)
	if errors.Is(err, vectorindex.ErrDimensionMismatch) {
		r.log.Warn("vector index dimension changed, dropping vectors for rebuild",
			zap.String("index", r.index.Name()),
			zap.Int("dimension", dimension),
			zap.Error(err))
		if err = r.index.Reset(ctx); err == nil {
			err = r.index.Init(ctx, dimension)
		}
	}
	if err != nil {
		return domain.NewError(domain.KindIndex, op, err)
	}

	r.log.Info("documents loaded",
		zap.Int("documents", len(docs)),
		zap.String("path", r.path),
		zap.String("index", r.index.Name()),
		zap.String("embedder", r.embedder.Name()),
	)
	return nil
}

// Add embeds and stores a single document and returns its id.
func (r *DocumentRepository) Add(ctx context.Context, in domain.DocumentInput) (string, error) {
	ids, err := r.add(ctx, "repository.Add", []domain.DocumentInput{in})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// BulkAdd stores documents with a single index write. Either every document
// of the batch is stored or none is.
func (r *DocumentRepository) BulkAdd(ctx context.Context, inputs []domain.DocumentInput) ([]string, error) {
	if len(inputs) == 0 {
		return []string{}, nil
	}
	return r.add(ctx, "repository.BulkAdd", inputs)
}

func (r *DocumentRepository) add(ctx context.Context, op string, inputs []domain.DocumentInput) ([]string, error) {
	texts := make([]string, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.Content) == "" {
			return nil, domain.Validationf(op, "document %d: content is required", i)
		}
		if strings.TrimSpace(in.Source) == "" {
			return nil, domain.Validationf(op, "document %d: source is required", i)
		}
		texts[i] = in.Content
	}

	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, domain.NewError(domain.KindEmbedding, op, err)
	}
	if len(vectors) != len(inputs) {
		return nil, domain.NewError(domain.KindEmbedding, op,
			fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(inputs)))
	}

	docs := make([]domain.Document, len(inputs))
	points := make([]vectorindex.Point, len(inputs))
	ids := make([]string, len(inputs))
	createdAt := r.now().UTC()
	for i, in := range inputs {
		docs[i] = domain.Document{
			ID:        uuid.New().String(),
			Content:   in.Content,
			Source:    in.Source,
			Metadata:  in.Metadata,
			CreatedAt: createdAt,
		}
		points[i] = toPoint(docs[i], vectors[i])
		ids[i] = docs[i].ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.index.Upsert(ctx, points); err != nil {
		return nil, domain.NewError(domain.KindIndex, op, err)
	}

	prevLen := len(r.docs)
	r.appendLocked(docs)
	if err := r.persistLocked(); err != nil {
		r.truncateLocked(prevLen)
		if derr := r.index.Delete(ctx, ids); derr != nil {
			r.log.Error("failed to roll back index write, reconcile will repair it",
				zap.Strings("ids", ids), zap.Error(derr))
		}
		return nil, domain.NewError(domain.KindInternal, op, err)
	}

	r.log.Debug("documents added", zap.Int("count", len(ids)))
	return ids, nil
}

// Get returns a copy of the document with the given id.
func (r *DocumentRepository) Get(id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.byID[id]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "repository.Get", domain.ErrNotFound)
	}
	doc := r.docs[pos]
	return &doc, nil
}

// GetAll returns every document in insertion order.
func (r *DocumentRepository) GetAll() []domain.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Document, len(r.docs))
	copy(out, r.docs)
	return out
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Delete removes a document, vector first. When the index cannot be updated
// the document is kept and false is returned.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (bool, error) {
	const op = "repository.Delete"

	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.byID[id]
	if !ok {
		return false, domain.NewError(domain.KindNotFound, op, domain.ErrNotFound)
	}

	if err := r.index.Delete(ctx, []string{id}); err != nil {
		return false, domain.NewError(domain.KindIndex, op, err)
	}

	r.docs = append(r.docs[:pos], r.docs[pos+1:]...)
	r.reindexLocked()
	if err := r.persistLocked(); err != nil {
		return false, domain.NewError(domain.KindInternal, op, fmt.Errorf("document removed but not persisted: %w", err))
	}
	return true, nil
}

// Search returns the documents most similar to query, best first. An empty
// store yields an empty result without calling the embedder.
func (r *DocumentRepository) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	const op = "repository.Search"

	if r.Count() == 0 {
		return []domain.SearchResult{}, nil
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewError(domain.KindEmbedding, op, err)
	}

	hits, err := r.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, domain.NewError(domain.KindIndex, op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		pos, ok := r.byID[h.ID]
		if !ok {
			// Vector without a document: drift that Reconcile repairs.
			r.log.Warn("index returned unknown document", zap.String("id", h.ID))
			continue
		}
		doc := r.docs[pos]
		results = append(results, domain.SearchResult{
			ID:      doc.ID,
			Content: doc.Content,
			Source:  doc.Source,
			Score:   h.Score,
		})
	}
	return results, nil
}

// Stats compares the document count with the index count.
func (r *DocumentRepository) Stats(ctx context.Context) (domain.IndexStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statsLocked(ctx)
}

func (r *DocumentRepository) statsLocked(ctx context.Context) (domain.IndexStats, error) {
	vectors, err := r.index.Count(ctx)
	if err != nil {
		return domain.IndexStats{}, domain.NewError(domain.KindIndex, "repository.Stats", err)
	}
	return domain.IndexStats{
		Documents: len(r.docs),
		Vectors:   vectors,
		InSync:    vectors == len(r.docs),
	}, nil
}

// Reconcile rebuilds the index from the document list when their counts differ.
func (r *DocumentRepository) Reconcile(ctx context.Context) (domain.IndexStats, error) {
	const op = "repository.Reconcile"

	r.mu.Lock()
	defer r.mu.Unlock()

	stats, err := r.statsLocked(ctx)
	if err != nil {
		return stats, err
	}
	if stats.InSync {
		return stats, nil
	}

	r.log.Warn("document store and vector index out of sync, rebuilding index",
		zap.Int("documents", stats.Documents), zap.Int("vectors", stats.Vectors))

	points := make([]vectorindex.Point, 0, len(r.docs))
	if len(r.docs) > 0 {
		texts := make([]string, len(r.docs))
		for i, d := range r.docs {
			texts[i] = d.Content
		}
		vectors, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stats, domain.NewError(domain.KindEmbedding, op, err)
		}
		if len(vectors) != len(r.docs) {
			return stats, domain.NewError(domain.KindEmbedding, op,
				fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(r.docs)))
		}
		for i, d := range r.docs {
			points = append(points, toPoint(d, vectors[i]))
		}
	}

	if err := r.index.Reset(ctx); err != nil {
		return stats, domain.NewError(domain.KindIndex, op, err)
	}
	if len(points) > 0 {
		if err := r.index.Upsert(ctx, points); err != nil {
			return stats, domain.NewError(domain.KindIndex, op, err)
		}
	}

	stats, err = r.statsLocked(ctx)
	if err != nil {
		return stats, err
	}
	stats.Repaired = true
	r.log.Info("vector index rebuilt", zap.Int("vectors", stats.Vectors))
	return stats, nil
}

// Close releases the vector index.
func (r *DocumentRepository) Close() error {
	return r.index.Close()
}

func (r *DocumentRepository) appendLocked(docs []domain.Document) {
	for _, d := range docs {
		r.byID[d.ID] = len(r.docs)
		r.docs = append(r.docs, d)
	}
}

func (r *DocumentRepository) truncateLocked(n int) {
	for _, d := range r.docs[n:] {
		delete(r.byID, d.ID)
	}
	r.docs = r.docs[:n]
}

func (r *DocumentRepository) reindexLocked() {
	r.byID = make(map[string]int, len(r.docs))
	for i, d := range r.docs {
		r.byID[d.ID] = i
	}
}

// persistLocked rewrites the whole document file through a temporary file.
func (r *DocumentRepository) persistLocked() error {
	if r.path == "" {
		return nil
	}
	docs := r.docs
	if docs == nil {
		docs = []domain.Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode documents: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".documents-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write documents: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write documents: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace document file: %w", err)
	}
	return nil
}

func readDocuments(path string) ([]domain.Document, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var docs []domain.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return docs, nil
}

func toPoint(d domain.Document, vector []float32) vectorindex.Point {
	return vectorindex.Point{
		ID:     d.ID,
		Vector: vector,
		Payload: vectorindex.Payload{
			Content:   d.Content,
			Source:    d.Source,
			CreatedAt: d.CreatedAt,
		},
	}
}
