package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements Client using the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// AnthropicOption configures an Anthropic client.
type AnthropicOption func(*Anthropic)

// NewAnthropic creates an Anthropic client. The API key comes from the
// environment (ANTHROPIC_API_KEY) unless overridden with WithAPIKey.
func NewAnthropic(opts ...AnthropicOption) *Anthropic {
	a := &Anthropic{
		client:    anthropic.NewClient(),
		model:     string(anthropic.ModelClaudeSonnet4_20250514),
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithAPIKey sets an explicit API key.
func WithAPIKey(key string) AnthropicOption {
	return func(a *Anthropic) {
		a.client = anthropic.NewClient(option.WithAPIKey(key))
	}
}

// WithModel sets the default model.
func WithModel(model string) AnthropicOption {
	return func(a *Anthropic) { a.model = model }
}

// WithMaxTokens sets the default completion token limit.
func WithMaxTokens(n int) AnthropicOption {
	return func(a *Anthropic) { a.maxTokens = n }
}

// Complete implements Client.
func (a *Anthropic) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  buildMessageParams(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content: sb.String(),
		Model:   string(msg.Model),
		Usage: TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func buildMessageParams(messages []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		default:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Images)+1)
			for _, img := range m.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, img.Data))
			}
			if m.Text != "" || len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(m.Text))
			}
			params = append(params, anthropic.NewUserMessage(blocks...))
		}
	}
	return params
}
