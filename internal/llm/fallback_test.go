package llm

import (
	"context"
	"errors"
	"testing"
)

// scriptedProvider returns canned outcomes per call, recording the models
// it was asked for.
type scriptedProvider struct {
	id      string
	outcome func(call int, model string) (*Result, error)
	models  []string
}

func (p *scriptedProvider) ID() string { return p.id }

func (p *scriptedProvider) Chat(ctx context.Context, messages []Message, model, apiKey string) (*Result, error) {
	call := len(p.models)
	p.models = append(p.models, model)
	return p.outcome(call, model)
}

func rateLimited() error {
	return &ProviderError{Status: 429, Code: "rate_limit_exceeded", Message: "slow down"}
}

func gatewayFault() error {
	return &ProviderError{Status: 503, Message: "upstream unavailable"}
}

func msgs() []Message {
	return []Message{{Role: RoleUser, Content: "hi"}}
}

func TestFreeModelFallbackAdvancesOnRetryable(t *testing.T) {
	p := &scriptedProvider{
		id: ProviderOpenRouter,
		outcome: func(call int, model string) (*Result, error) {
			if call < 2 {
				return nil, rateLimited()
			}
			return &Result{Content: "ok", Model: model}, nil
		},
	}
	e := NewExecutor(p)

	result, err := e.ChatWithFallback(context.Background(), msgs(), Candidate{
		Provider: ProviderOpenRouter,
		Model:    "meta-llama/llama-3.3-70b-instruct:free",
		APIKey:   "k",
	}, nil)
	if err != nil {
		t.Fatalf("ChatWithFallback: %v", err)
	}
	if result.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", result.Attempts)
	}
	if result.UsedModel != p.models[2] {
		t.Fatalf("UsedModel = %q, want %q", result.UsedModel, p.models[2])
	}
	if result.UsedModel == "meta-llama/llama-3.3-70b-instruct:free" {
		t.Fatal("expected fallback to a different free model")
	}
}

func TestTerminalErrorAbortsChain(t *testing.T) {
	p := &scriptedProvider{
		id: ProviderOpenRouter,
		outcome: func(call int, model string) (*Result, error) {
			return nil, &ProviderError{Status: 401, Code: "invalid_api_key", Message: "bad key"}
		},
	}
	e := NewExecutor(p)

	_, err := e.ChatWithFallback(context.Background(), msgs(), Candidate{
		Provider: ProviderOpenRouter,
		Model:    "deepseek/deepseek-chat:free",
		APIKey:   "k",
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(p.models) != 1 {
		t.Fatalf("provider called %d times, want 1", len(p.models))
	}
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestChainExhaustion(t *testing.T) {
	p := &scriptedProvider{
		id: ProviderOpenRouter,
		outcome: func(call int, model string) (*Result, error) {
			return nil, rateLimited()
		},
	}
	e := NewExecutor(p)

	_, err := e.ChatWithFallback(context.Background(), msgs(), Candidate{
		Provider: ProviderOpenRouter,
		Model:    "meta-llama/llama-3.3-70b-instruct:free",
		APIKey:   "k",
	}, nil)

	var exhausted *AllCandidatesFailedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AllCandidatesFailedError, got %v", err)
	}
	if exhausted.Attempts != len(freeFallbackModels) {
		t.Fatalf("Attempts = %d, want %d", exhausted.Attempts, len(freeFallbackModels))
	}
}

func TestPaidModelGetsSingleAttempt(t *testing.T) {
	p := &scriptedProvider{
		id: "openai",
		outcome: func(call int, model string) (*Result, error) {
			return nil, rateLimited()
		},
	}
	e := NewExecutor(p)

	_, err := e.ChatWithFallback(context.Background(), msgs(), Candidate{
		Provider: "openai", Model: "gpt-4o", APIKey: "k",
	}, nil)

	var exhausted *AllCandidatesFailedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AllCandidatesFailedError, got %v", err)
	}
	if exhausted.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", exhausted.Attempts)
	}
	if len(p.models) != 1 {
		t.Fatalf("provider called %d times, want 1", len(p.models))
	}
}

func TestCrossProviderFallbackOnGatewayError(t *testing.T) {
	primary := &scriptedProvider{
		id: "anthropic",
		outcome: func(call int, model string) (*Result, error) {
			return nil, gatewayFault()
		},
	}
	secondary := &scriptedProvider{
		id: "openai",
		outcome: func(call int, model string) (*Result, error) {
			return &Result{Content: "rescued", Model: model}, nil
		},
	}
	e := NewExecutor(primary, secondary)

	result, err := e.ChatWithFallback(context.Background(), msgs(),
		Candidate{Provider: "anthropic", Model: "claude-sonnet-4-0", APIKey: "a"},
		&Candidate{Provider: "openai", Model: "gpt-4o-mini", APIKey: "b"})
	if err != nil {
		t.Fatalf("ChatWithFallback: %v", err)
	}
	if result.Content != "rescued" {
		t.Fatalf("Content = %q", result.Content)
	}
	if result.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", result.Attempts)
	}
	if result.UsedModel != "gpt-4o-mini" {
		t.Fatalf("UsedModel = %q", result.UsedModel)
	}
}

func TestNoCrossProviderFallbackOnTerminalError(t *testing.T) {
	primary := &scriptedProvider{
		id: "anthropic",
		outcome: func(call int, model string) (*Result, error) {
			return nil, &ProviderError{Status: 401, Message: "bad key", Type: "authentication_error"}
		},
	}
	secondary := &scriptedProvider{
		id: "openai",
		outcome: func(call int, model string) (*Result, error) {
			return &Result{Content: "should not run", Model: model}, nil
		},
	}
	e := NewExecutor(primary, secondary)

	_, err := e.ChatWithFallback(context.Background(), msgs(),
		Candidate{Provider: "anthropic", Model: "claude-sonnet-4-0", APIKey: "a"},
		&Candidate{Provider: "openai", Model: "gpt-4o-mini", APIKey: "b"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(secondary.models) != 0 {
		t.Fatal("secondary provider should not have been called")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{&ProviderError{Status: 429}, ClassRetryable},
		{&ProviderError{Status: 400}, ClassRetryable},
		{&ProviderError{Status: 502}, ClassRetryable},
		{&ProviderError{Status: 401}, ClassTerminal},
		{&ProviderError{Type: "overloaded_error"}, ClassRetryable},
		{errors.New("429 too many requests"), ClassRetryable},
		{errors.New("connection refused"), ClassTerminal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
