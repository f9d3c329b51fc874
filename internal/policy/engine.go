// Package policy evaluates API key access decisions with OPA.
package policy

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

// Decision reasons produced by DefaultPolicy.
const (
	ReasonPublicRoute          = "public_route"
	ReasonDebug                = "debug"
	ReasonValidAPIKey          = "valid_api_key"
	ReasonAPIKeyNotConfigured  = "api_key_not_configured"
	ReasonMissingAPIKey        = "missing_api_key"
	ReasonMalformedHeader      = "malformed_authorization"
	ReasonInvalidAPIKey        = "invalid_api_key"
	ReasonUnexpectedPolicyType = "unexpected_policy_result"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// Input holds the request facts the policy decides on. The API key itself
// never reaches the policy, only whether the presented token matched it.
type Input struct {
	Path                 string
	Debug                bool
	APIKeyConfigured     bool
	AuthorizationPresent bool
	BearerWellFormed     bool
	TokenValid           bool
}

// NewInput derives policy input from a request path and Authorization header.
func NewInput(path, authorization string, debug bool, apiKey string) Input {
	in := Input{
		Path:                 path,
		Debug:                debug,
		APIKeyConfigured:     apiKey != "",
		AuthorizationPresent: strings.TrimSpace(authorization) != "",
	}
	parts := strings.Fields(authorization)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		in.BearerWellFormed = true
		in.TokenValid = apiKey != "" && subtle.ConstantTimeCompare([]byte(parts[1]), []byte(apiKey)) == 1
	}
	return in
}

func (in Input) toMap() map[string]any {
	return map[string]any{
		"path":                  in.Path,
		"debug":                 in.Debug,
		"api_key_configured":    in.APIKeyConfigured,
		"authorization_present": in.AuthorizationPresent,
		"bearer_well_formed":    in.BearerWellFormed,
		"token_valid":           in.TokenValid,
	}
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.api_auth.decision"),
		rego.Module("api_auth.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate decides whether the request described by in may proceed.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(in.toMap()))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Reason: ReasonUnexpectedPolicyType}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Decision{Reason: ReasonUnexpectedPolicyType}, nil
	}
	allow, _ := obj["allow"].(bool)
	reason, _ := obj["reason"].(string)
	return Decision{Allow: allow, Reason: reason}, nil
}

// DefaultPolicy protects /v1/*, /chat/completions and the admin routes with
// the configured API key.
const DefaultPolicy = `
package api_auth

import rego.v1

protected if startswith(input.path, "/v1/")

protected if input.path == "/chat/completions"

protected if startswith(input.path, "/admin/")

protected if startswith(input.path, "/api/admin/")

default decision := {"allow": false, "reason": "invalid_api_key"}

decision := {"allow": true, "reason": "public_route"} if {
	not protected
} else := {"allow": true, "reason": "debug"} if {
	input.debug
} else := {"allow": false, "reason": "api_key_not_configured"} if {
	not input.api_key_configured
} else := {"allow": false, "reason": "missing_api_key"} if {
	not input.authorization_present
} else := {"allow": false, "reason": "malformed_authorization"} if {
	not input.bearer_well_formed
} else := {"allow": true, "reason": "valid_api_key"} if {
	input.token_valid
}
`
