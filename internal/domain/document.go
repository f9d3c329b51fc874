// Package domain defines the core domain models for the economic chatbot.
package domain

import "time"

// Document is a stored text record and the unit of retrieval.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DocumentInput is the caller-supplied part of a Document.
type DocumentInput struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult is a single nearest-neighbour hit enriched with document data.
type SearchResult struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// SourceRef is a citation returned alongside an answer.
type SourceRef struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// IndexStats reports the Document Store / Vector Index sync state.
type IndexStats struct {
	Documents int  `json:"documents"`
	Vectors   int  `json:"vectors"`
	InSync    bool `json:"in_sync"`
	Repaired  bool `json:"repaired,omitempty"`
}
