package openaiapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/agentflow/agentflow/internal/llm"
)

// openRouterBaseURL serves the OpenAI-compatible aggregator API
const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Client implements llm.Provider over any OpenAI-compatible API
type Client struct {
	id      string
	baseURL string
}

// NewOpenAI creates a client for the OpenAI API proper
func NewOpenAI() *Client {
	return &Client{id: "openai"}
}

// NewOpenRouter creates a client for the OpenRouter aggregator
func NewOpenRouter() *Client {
	return &Client{id: llm.ProviderOpenRouter, baseURL: openRouterBaseURL}
}

// ID returns the provider identifier
func (c *Client) ID() string {
	return c.id
}

// Chat sends a non-streaming completion request. The client is constructed
// per call because API keys are per agent owner.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, model, apiKey string) (*llm.Result, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: buildMessages(messages),
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, translateError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &llm.ProviderError{
			Status:  502,
			Message: fmt.Sprintf("provider %s returned no choices", c.id),
			Type:    "empty_response",
		}
	}

	return &llm.Result{
		Content: completion.Choices[0].Message.Content,
		Model:   completion.Model,
		Usage: llm.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

func buildMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

// translateError converts SDK errors into the typed ProviderError the
// fallback classifier understands.
func translateError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &llm.ProviderError{
			Status:  apierr.StatusCode,
			Code:    apierr.Code,
			Message: apierr.Message,
			Type:    apierr.Type,
		}
	}
	return err
}
