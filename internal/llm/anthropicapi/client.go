package anthropicapi

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentflow/agentflow/internal/llm"
)

const defaultMaxTokens = 4096

// Client implements llm.Provider for the Anthropic API
type Client struct{}

// New creates an Anthropic provider client
func New() *Client {
	return &Client{}
}

// ID returns the provider identifier
func (c *Client) ID() string {
	return "anthropic"
}

// Chat sends a non-streaming message request. System turns are lifted into
// the dedicated system parameter as the API requires.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, model, apiKey string) (*llm.Result, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var system string
	turns := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case llm.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(defaultMaxTokens),
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, translateError(err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &llm.Result{
		Content: sb.String(),
		Model:   string(message.Model),
		Usage: llm.Usage{
			PromptTokens:     message.Usage.InputTokens,
			CompletionTokens: message.Usage.OutputTokens,
		},
	}, nil
}

func translateError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &llm.ProviderError{
			Status:  apierr.StatusCode,
			Message: apierr.Error(),
			Type:    "api_error",
		}
	}
	return err
}
