package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		debug  bool
		apiKey string
		want   Decision
	}{
		{"native route is public", "/chat", "", false, "sk-test", Decision{true, ReasonPublicRoute}},
		{"webhook is public", "/webhook/mattermost", "", false, "sk-test", Decision{true, ReasonPublicRoute}},
		{"valid bearer", "/v1/chat/completions", "Bearer sk-test", false, "sk-test", Decision{true, ReasonValidAPIKey}},
		{"scheme is case insensitive", "/chat/completions", "bearer sk-test", false, "sk-test", Decision{true, ReasonValidAPIKey}},
		{"debug skips checks", "/v1/models", "", true, "sk-test", Decision{true, ReasonDebug}},
		{"missing header", "/v1/models", "", false, "sk-test", Decision{false, ReasonMissingAPIKey}},
		{"malformed header", "/v1/models", "Token sk-test", false, "sk-test", Decision{false, ReasonMalformedHeader}},
		{"wrong key", "/v1/models", "Bearer nope", false, "sk-test", Decision{false, ReasonInvalidAPIKey}},
		{"no key configured", "/v1/models", "Bearer anything", false, "", Decision{false, ReasonAPIKeyNotConfigured}},
		{"admin needs a key", "/admin/reconcile", "", false, "sk-test", Decision{false, ReasonMissingAPIKey}},
		{"prefixed admin needs a key", "/api/admin/reconcile", "Bearer nope", false, "sk-test", Decision{false, ReasonInvalidAPIKey}},
		{"admin with key", "/admin/reconcile", "Bearer sk-test", false, "sk-test", Decision{true, ReasonValidAPIKey}},
		{"stats stay public", "/api/stats", "", false, "sk-test", Decision{true, ReasonPublicRoute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(ctx, NewInput(tt.path, tt.header, tt.debug, tt.apiKey))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package api_auth\n\ndecision := {")
	assert.Error(t, err)
}

func TestEvaluateUnexpectedResultType(t *testing.T) {
	engine, err := NewEngine(context.Background(), "package api_auth\n\nimport rego.v1\n\ndecision := \"allow\"\n")
	require.NoError(t, err)

	got, err := engine.Evaluate(context.Background(), NewInput("/v1/models", "", false, "k"))
	require.NoError(t, err)
	assert.Equal(t, Decision{Reason: ReasonUnexpectedPolicyType}, got)
}
