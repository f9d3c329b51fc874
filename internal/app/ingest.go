package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/adapter/parsing"
	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/transport/http/api"
)

// DocumentsFromFile reads the documents contained in a file. A .json file
// holds an array of documents, a markdown file yields one document per
// heading section and PDF or text files yield a single document.
func DocumentsFromFile(path string) ([]domain.DocumentInput, error) {
	const op = "app.DocumentsFromFile"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)

	switch {
	case strings.EqualFold(filepath.Ext(name), ".json"):
		var docs []domain.DocumentInput
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, domain.Validationf(op, "%s is not a JSON array of documents: %v", name, err)
		}
		return docs, nil

	case parsing.IsMarkdown(name):
		sections := parsing.SplitMarkdownSections(data)
		if len(sections) == 0 {
			return nil, domain.Validationf(op, "%s contains no text", name)
		}
		docs := make([]domain.DocumentInput, 0, len(sections))
		for _, s := range sections {
			source := name
			if title := s.Title(); title != "" {
				source += " > " + title
			}
			docs = append(docs, domain.DocumentInput{
				Content:  s.Body,
				Source:   source,
				Metadata: map[string]any{"filename": name, "section": s.Title()},
			})
		}
		return docs, nil

	default:
		doc, err := api.DocumentFromFile(name, data, "")
		if err != nil {
			return nil, err
		}
		return []domain.DocumentInput{doc}, nil
	}
}

// Ingest adds the documents of every file in one bulk write.
func (a *App) Ingest(ctx context.Context, paths []string) ([]string, error) {
	var inputs []domain.DocumentInput
	for _, p := range paths {
		docs, err := DocumentsFromFile(p)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("file parsed", zap.String("path", p), zap.Int("documents", len(docs)))
		inputs = append(inputs, docs...)
	}
	if len(inputs) == 0 {
		return nil, domain.Validationf("app.Ingest", "no documents to ingest")
	}
	return a.Service.AddDocuments(ctx, inputs)
}
