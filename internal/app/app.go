// Package app wires the economic chatbot's components together.
package app

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/embedding"
	"github.com/DungNguyen05/Economic-Agent/internal/adapter/llm"
	"github.com/DungNguyen05/Economic-Agent/internal/adapter/vectorindex"
	"github.com/DungNguyen05/Economic-Agent/internal/config"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/policy"
	"github.com/DungNguyen05/Economic-Agent/internal/repository"
	"github.com/DungNguyen05/Economic-Agent/internal/service"
	handler "github.com/DungNguyen05/Economic-Agent/internal/transport/http"
	"github.com/DungNguyen05/Economic-Agent/internal/transport/http/api"
)

// Version is reported by GET /info.
var Version = "dev"

// ExampleDocument is stored when the service starts with an empty store.
var ExampleDocument = domain.DocumentInput{
	Content: "BTC(bitcoin) Price is 50$",
	Source:  "BTC(bitcoin) Price is 50$",
}

// App holds the components built at startup.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Repo    *repository.DocumentRepository
	Service *service.Service
	Policy  *policy.Engine
}

// New builds every component from cfg and loads the document store.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	embedder, err := embedding.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	index, err := vectorindex.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	repo := repository.New(repository.Options{
		Path:        cfg.DocumentsPath(),
		DefaultTopK: cfg.MaxSearchResults,
	}, index, embedder, log.Named("repository"))

	if err := repo.Open(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	// An unreachable embedder or index leaves the store out of sync; it is
	// reported by /stats and repaired by /admin/reconcile.
	stats, err := repo.Reconcile(ctx)
	switch {
	case err != nil:
		log.Warn("startup reconcile failed, serving with a stale vector index", zap.Error(err))
	case stats.Repaired:
		log.Warn("vector index was out of sync and has been rebuilt", zap.Int("documents", stats.Documents))
	}

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	client := llm.NewLLMClient(cfg, log.Named("llm"))
	retriever := service.NewRetriever(repo, client, service.RetrieverConfig{
		Model:             cfg.ChatModel,
		TopK:              cfg.MaxSearchResults,
		MaxContextTokens:  cfg.MaxContextLength,
		UseQueryExpansion: cfg.UseQueryExpansion,
		UseReranking:      cfg.UseReranking,
	}, log.Named("retrieval"))
	composer := service.NewComposer(client, service.ComposerConfig{
		Model:             cfg.ChatModel,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokensResponse,
		FallbackToGeneral: cfg.FallbackToGeneral,
		MaxTurns:          cfg.SessionMaxTurns,
	}, log.Named("composer"))
	svc := service.New(repo, retriever, composer, service.NewSessionStore(cfg.SessionMaxTurns), service.Options{
		ModelName:     cfg.ModelName,
		LLMConfigured: cfg.LLMConfigured(),
		MaxTurns:      cfg.SessionMaxTurns,
	}, log.Named("service"))

	a := &App{
		Config:  cfg,
		Logger:  log,
		Repo:    repo,
		Service: svc,
		Policy:  engine,
	}

	if cfg.SeedExampleData && repo.Count() == 0 {
		if err := a.seed(ctx); err != nil {
			log.Warn("example document not seeded", zap.Error(err))
		}
	}
	return a, nil
}

func (a *App) seed(ctx context.Context) error {
	id, err := a.Service.AddDocument(ctx, ExampleDocument)
	if err != nil {
		return fmt.Errorf("failed to seed example document: %w", err)
	}
	a.Logger.Info("seeded example document", zap.String("id", id))
	return nil
}

// HTTPServer builds the echo server serving every surface.
func (a *App) HTTPServer() *echo.Echo {
	cfg := a.Config
	return handler.NewServer(a.Service, a.Policy, handler.Options{
		Debug:           cfg.Debug,
		APIKey:          cfg.APIKey,
		MattermostToken: cfg.MattermostToken,
		Info: api.ServiceInfo{
			Service:           "economic-chatbot",
			Version:           Version,
			Model:             cfg.ModelName,
			ChatModel:         cfg.ChatModel,
			EmbeddingProvider: cfg.EmbeddingProvider,
			VectorBackend:     cfg.VectorBackend,
			QueryExpansion:    cfg.UseQueryExpansion,
			Reranking:         cfg.UseReranking,
			LLMConfigured:     cfg.LLMConfigured(),
		},
	}, a.Logger)
}

// Close releases the vector index.
func (a *App) Close() error {
	return a.Repo.Close()
}
