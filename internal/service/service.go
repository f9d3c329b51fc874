// Package service implements the chat pipeline: retrieval, answer composition
// and session history, plus the document operations exposed to transports.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// DocumentStore is the repository surface the service depends on.
type DocumentStore interface {
	Searcher
	Add(ctx context.Context, in domain.DocumentInput) (string, error)
	BulkAdd(ctx context.Context, inputs []domain.DocumentInput) ([]string, error)
	Get(id string) (*domain.Document, error)
	GetAll() []domain.Document
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
	Reconcile(ctx context.Context) (domain.IndexStats, error)
}

// Options configures a Service.
type Options struct {
	ModelName     string
	LLMConfigured bool
	MaxTurns      int
}

// Service is the single entry point used by every transport.
type Service struct {
	store     DocumentStore
	retriever *Retriever
	composer  *Composer
	sessions  *SessionStore
	opts      Options
	log       *zap.Logger

	newSessionID func() string
}

// New creates a service.
func New(store DocumentStore, retriever *Retriever, composer *Composer, sessions *SessionStore, opts Options, log *zap.Logger) *Service {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 5
	}
	return &Service{
		store:     store,
		retriever: retriever,
		composer:  composer,
		sessions:  sessions,
		opts:      opts,
		log:       log,
		newSessionID: func() string {
			return "sess_" + uuid.New().String()[:8]
		},
	}
}

// ModelName is the model id advertised on the OpenAI-compatible surface.
func (s *Service) ModelName() string {
	return s.opts.ModelName
}

// Chat answers a question. The history supplied with the request takes
// precedence over the stored session turns; the session is updated either way.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	const op = "service.Chat"

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.Validationf(op, "question is required")
	}
	if !s.opts.LLMConfigured {
		return nil, domain.NewError(domain.KindConfiguration, op, domain.ErrNotConfigured)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newSessionID()
	}

	turns := domain.TurnsFromHistory(req.History)
	if len(turns) == 0 {
		turns = s.sessions.Turns(sessionID)
	}
	turns = lastTurns(turns, s.opts.MaxTurns)

	var rc *RetrievedContext
	if s.store.Count() > 0 {
		var err error
		rc, err = s.retriever.Retrieve(ctx, question)
		if err != nil {
			return nil, err
		}
	}

	result, err := s.composer.Compose(ctx, ComposeInput{
		Question:    question,
		Context:     rc,
		Turns:       turns,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	s.sessions.Update(sessionID, question, result.Answer)
	result.SessionID = sessionID

	s.log.Info("question answered",
		zap.String("session", sessionID),
		zap.Bool("used_documents", result.UsedDocuments),
		zap.Int("sources", len(result.Sources)))
	return result, nil
}

// ClearSession forgets a session and reports whether it existed.
func (s *Service) ClearSession(sessionID string) bool {
	return s.sessions.Clear(sessionID)
}

// AddDocument stores one document.
func (s *Service) AddDocument(ctx context.Context, in domain.DocumentInput) (string, error) {
	return s.store.Add(ctx, in)
}

// AddDocuments stores a batch atomically.
func (s *Service) AddDocuments(ctx context.Context, inputs []domain.DocumentInput) ([]string, error) {
	return s.store.BulkAdd(ctx, inputs)
}

// GetDocument returns a document by id.
func (s *Service) GetDocument(id string) (*domain.Document, error) {
	return s.store.Get(id)
}

// ListDocuments returns every document in insertion order.
func (s *Service) ListDocuments() []domain.Document {
	return s.store.GetAll()
}

// DeleteDocument removes a document.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.Delete(ctx, id)
	return err
}

// Search runs a raw similarity search without the LLM.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.Validationf("service.Search", "query is required")
	}
	return s.store.Search(ctx, query, topK)
}

// Stats reports the document store and index counts.
func (s *Service) Stats(ctx context.Context) (domain.IndexStats, error) {
	return s.store.Stats(ctx)
}

// Reconcile repairs the vector index from the document store.
func (s *Service) Reconcile(ctx context.Context) (domain.IndexStats, error) {
	return s.store.Reconcile(ctx)
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	return s.sessions.Len()
}
