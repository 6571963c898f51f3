package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/agentflow/agentflow/internal/logging"
)

// ProviderOpenRouter is the free-tier aggregator; only its ":free" models
// get the in-provider fallback chain.
const ProviderOpenRouter = "openrouter"

// freeMarker tags OpenRouter models that cost nothing and fail often
const freeMarker = ":free"

// freeFallbackModels is the fixed alternate list tried after the requested
// free model. Order matters: strongest first.
var freeFallbackModels = []string{
	"meta-llama/llama-3.3-70b-instruct:free",
	"google/gemini-2.0-flash-exp:free",
	"qwen/qwen-2.5-72b-instruct:free",
	"deepseek/deepseek-chat:free",
	"mistralai/mistral-7b-instruct:free",
}

// defaultAttemptTimeout bounds a single provider call, distinct from the
// overall fallback budget carried by the request context.
const defaultAttemptTimeout = 60 * time.Second

// Candidate names one (provider, model, key) to attempt.
type Candidate struct {
	Provider string
	Model    string
	APIKey   string
}

// FallbackResult is the outcome of a fallback chain run.
type FallbackResult struct {
	Content   string
	UsedModel string
	Attempts  int
	Usage     Usage
}

// AllCandidatesFailedError reports chain exhaustion, carrying the last
// underlying error.
type AllCandidatesFailedError struct {
	Attempts int
	Last     error
}

func (e *AllCandidatesFailedError) Error() string {
	return fmt.Sprintf("all %d fallback candidates failed: %v", e.Attempts, e.Last)
}

func (e *AllCandidatesFailedError) Unwrap() error {
	return e.Last
}

// Executor runs chat calls through the provider fallback policy.
type Executor struct {
	providers      map[string]Provider
	attemptTimeout time.Duration
}

// NewExecutor creates an executor over the given providers.
func NewExecutor(providers ...Provider) *Executor {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.ID()] = p
	}
	return &Executor{providers: m, attemptTimeout: defaultAttemptTimeout}
}

// SetAttemptTimeout overrides the per-attempt timeout (tests).
func (e *Executor) SetAttemptTimeout(d time.Duration) {
	e.attemptTimeout = d
}

// ChatWithFallback issues the call for the primary candidate under the
// fallback policy. If the whole primary path fails with a gateway-class
// error and a secondary candidate is available, one additional
// cross-provider attempt is made before giving up.
func (e *Executor) ChatWithFallback(ctx context.Context, messages []Message, primary Candidate, secondary *Candidate) (*FallbackResult, error) {
	result, err := e.chatProvider(ctx, messages, primary)
	if err == nil {
		return result, nil
	}

	if secondary != nil && gatewayClass(err) {
		logging.Warnf("llm: primary provider %s failed with gateway error, trying %s: %v",
			primary.Provider, secondary.Provider, err)
		secondaryResult, secondaryErr := e.attempt(ctx, messages, *secondary)
		if secondaryErr == nil {
			priorAttempts := 1
			if ace, ok := err.(*AllCandidatesFailedError); ok {
				priorAttempts = ace.Attempts
			}
			secondaryResult.Attempts = priorAttempts + 1
			return secondaryResult, nil
		}
		logging.Errorf("llm: cross-provider fallback to %s also failed: %v", secondary.Provider, secondaryErr)
	}

	return nil, err
}

// chatProvider runs the in-provider policy: a fallback list for OpenRouter
// free models, a single attempt for everything else.
func (e *Executor) chatProvider(ctx context.Context, messages []Message, c Candidate) (*FallbackResult, error) {
	candidates := []Candidate{c}
	if c.Provider == ProviderOpenRouter && isFreeModel(c.Model) {
		for _, alt := range freeFallbackModels {
			if alt != c.Model {
				candidates = append(candidates, Candidate{Provider: c.Provider, Model: alt, APIKey: c.APIKey})
			}
		}
	}

	var lastErr error
	for i, candidate := range candidates {
		result, err := e.attempt(ctx, messages, candidate)
		if err == nil {
			result.Attempts = i + 1
			if i > 0 {
				logging.Infof("llm: fallback succeeded on %s after %d failed attempts", candidate.Model, i)
			}
			return result, nil
		}
		lastErr = err
		if Classify(err) != ClassRetryable {
			logging.Errorf("llm: terminal error on %s/%s: %v", candidate.Provider, candidate.Model, err)
			return nil, err
		}
		logging.Warnf("llm: retryable error on %s/%s (attempt %d/%d): %v",
			candidate.Provider, candidate.Model, i+1, len(candidates), err)
	}
	return nil, &AllCandidatesFailedError{Attempts: len(candidates), Last: lastErr}
}

// attempt issues one bounded provider call.
func (e *Executor) attempt(ctx context.Context, messages []Message, c Candidate) (*FallbackResult, error) {
	provider, ok := e.providers[c.Provider]
	if !ok {
		return nil, &ProviderError{Status: 400, Code: "unknown_provider",
			Message: fmt.Sprintf("unknown provider %q", c.Provider), Type: "invalid_request_error"}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	result, err := provider.Chat(attemptCtx, messages, c.Model, c.APIKey)
	if err != nil {
		return nil, err
	}
	usedModel := result.Model
	if usedModel == "" {
		usedModel = c.Model
	}
	return &FallbackResult{
		Content:   result.Content,
		UsedModel: usedModel,
		Attempts:  1,
		Usage:     result.Usage,
	}, nil
}

// gatewayClass reports whether the whole primary path failed on gateway
// errors: either the error itself, or an exhausted chain whose last error was.
func gatewayClass(err error) bool {
	if ace, ok := err.(*AllCandidatesFailedError); ok {
		return IsGatewayError(ace.Last)
	}
	return IsGatewayError(err)
}

func isFreeModel(model string) bool {
	return len(model) > len(freeMarker) && model[len(model)-len(freeMarker):] == freeMarker
}
