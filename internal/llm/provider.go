package llm

import (
	"context"
	"strings"
)

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation sent to a provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one completed call
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Result is a completed (non-streaming) chat response
type Result struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Provider is a raw chat client for one upstream vendor. Keys are
// per-request because every agent owner brings their own.
type Provider interface {
	// ID returns the provider identifier (e.g. "openrouter", "anthropic")
	ID() string

	// Chat sends the messages and returns the completed response.
	Chat(ctx context.Context, messages []Message, model, apiKey string) (*Result, error)
}

// ProviderError represents an error from a provider API
type ProviderError struct {
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Class is the outcome of classifying a provider error
type Class int

const (
	// ClassRetryable errors advance the fallback chain
	ClassRetryable Class = iota
	// ClassTerminal errors abort immediately (auth, malformed request)
	ClassTerminal
)

// Classify determines whether an attempt failure should advance the fallback
// chain. Rate limits, provider 400 quirks (free-tier aggregators reject some
// models with bad-request instead of not-found), and upstream gateway faults
// are retryable; everything else is terminal.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}

	if pe, ok := err.(*ProviderError); ok {
		switch pe.Status {
		case 429, 400, 502, 503, 504:
			return ClassRetryable
		}
		switch pe.Code {
		case "rate_limit_exceeded", "model_overloaded":
			return ClassRetryable
		}
		switch pe.Type {
		case "rate_limit_error", "overloaded_error":
			return ClassRetryable
		}
		return ClassTerminal
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"rate limit", "too many requests", "429", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(msg, kw) {
			return ClassRetryable
		}
	}
	return ClassTerminal
}

// IsGatewayError reports whether an error is an upstream-gateway-class
// fault (502/503/504). These trigger the one-shot cross-provider fallback.
func IsGatewayError(err error) bool {
	pe, ok := err.(*ProviderError)
	if !ok {
		return false
	}
	switch pe.Status {
	case 502, 503, 504:
		return true
	}
	return pe.Type == "overloaded_error"
}

// IsAuthError reports whether an error stems from a missing or rejected
// API key. The chat surface uses this to return an actionable hint.
func IsAuthError(err error) bool {
	pe, ok := err.(*ProviderError)
	if !ok {
		return false
	}
	if pe.Status == 401 || pe.Status == 403 {
		return true
	}
	return pe.Code == "invalid_api_key" || pe.Type == "authentication_error"
}
