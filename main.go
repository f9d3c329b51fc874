package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/app"
	"github.com/DungNguyen05/Economic-Agent/internal/config"
	"github.com/DungNguyen05/Economic-Agent/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "economic-agent",
	Short:         "Retrieval-augmented economic chatbot",
	Long:          "Answers economic questions from a document store, over a JSON API, an OpenAI-compatible API, a chat webhook and a websocket chat.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rebuild the vector index when it is out of sync with the documents",
	RunE:  runReconcile,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Add documents from .txt, .md, .pdf or .json files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(serveCmd, reconcileCmd, ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the application.
func setup(ctx context.Context, seed bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !seed {
		cfg.SeedExampleData = false
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.Logger.Sync()

	log := a.Logger
	cfg := a.Config
	log.Info("starting economic chatbot",
		zap.String("addr", cfg.Addr()),
		zap.String("vector_backend", cfg.VectorBackend),
		zap.String("embedding_provider", cfg.EmbeddingProvider),
		zap.Bool("llm_configured", cfg.LLMConfigured()),
		zap.Bool("debug", cfg.Debug))

	e := a.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server gracefully", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Service.Reconcile(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Documents: %d\nVectors:   %d\nIn sync:   %t\n", stats.Documents, stats.Vectors, stats.InSync)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.Ingest(cmd.Context(), args)
	if err != nil {
		return err
	}
	cmd.Printf("%d documents added successfully\n", len(ids))
	for _, id := range ids {
		cmd.Println(id)
	}
	return nil
}
