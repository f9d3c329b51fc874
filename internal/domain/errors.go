package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for translation at the transport boundary.
type Kind string

const (
	KindInternal      Kind = "internal"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindEmbedding     Kind = "embedding"
	KindIndex         Kind = "index"
	KindGeneration    Kind = "generation"
	KindNotFound      Kind = "not_found"
)

var (
	// ErrNotFound is returned when a document id is unknown.
	ErrNotFound = errors.New("document not found")
	// ErrNotConfigured is returned when no LLM credential is available.
	ErrNotConfigured = errors.New("LLM credentials are not configured")
)

// Error is a classified error produced by a public operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError classifies err as kind for the operation op.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validationf builds a validation error with a caller-facing message.
func Validationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotConfigured):
		return KindConfiguration
	}
	return KindInternal
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// User-facing messages. Upstream error details are never shown to callers.
const (
	MsgNotConfigured     = "OpenAI API key is not set. Cannot generate response."
	MsgGenerationFailed  = "I'm sorry, I encountered an error while generating a response. Please try again later."
	MsgEmbeddingFailed   = "The embedding service is currently unavailable. Please try again later."
	MsgIndexFailed       = "The document index is currently unavailable. Please try again later."
	MsgNotFound          = "Document not found"
	MsgInternal          = "An internal error occurred. Please try again later."
	MsgNoDocuments       = "I don't have any economic data to answer your question. Please add some relevant documents first."
	MsgNoRelevantContext = "I don't have enough information in the available documents to answer this question."
)

// PublicMessage returns the message a caller may see for err.
// Validation errors expose their own text; every other kind maps to a fixed message.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		var de *Error
		if errors.As(err, &de) && de.Err != nil {
			return de.Err.Error()
		}
		return "invalid request"
	case KindConfiguration:
		return MsgNotConfigured
	case KindGeneration:
		return MsgGenerationFailed
	case KindEmbedding:
		return MsgEmbeddingFailed
	case KindIndex:
		return MsgIndexFailed
	case KindNotFound:
		return MsgNotFound
	default:
		return MsgInternal
	}
}
