package chat

import (
	"context"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/llm"
)

// defaultSystemPrompt is the fixed preamble sent with every model call.
// It is not stored in the thread history.
const defaultSystemPrompt = "You are a friendly and helpful WhatsApp assistant. " +
	"Keep your replies short and conversational, and answer in the language the user writes in."

// generate calls the model with the truncated history and appends the
// reply. Model failures are fatal and not retried.
func (w *Workflow) generate(ctx chatgraph.Context, s State) (State, error) {
	prompt := w.settings.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	req := llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages:     toModelMessages(truncate(s.Messages, w.settings.ContextWindow)),
		Model:        w.settings.Model,
		MaxTokens:    w.settings.MaxTokens,
	}

	modelCtx, cancel := context.WithTimeout(ctx, w.settings.ModelTimeout)
	defer cancel()

	resp, err := w.deps.Model.Complete(modelCtx, req)
	if err != nil {
		return s, &ModelError{Err: err}
	}

	s.Messages = append(s.Messages, AssistantMessage(resp.Content))
	s.Answer = resp.Content
	return s, nil
}

// truncate returns the most recent n messages. The stored history is not
// modified; only the model call sees the window.
func truncate(messages []Message, n int) []Message {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// toModelMessages maps history entries onto model conversation turns.
func toModelMessages(messages []Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Kind {
		case KindAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Text: m.Text})
		case KindImage:
			out = append(out, llm.Message{
				Role: llm.RoleUser,
				Text: m.Caption,
				Images: []llm.ImagePart{
					{MediaType: m.MediaType, Data: m.Data},
				},
			})
		default:
			out = append(out, llm.Message{Role: llm.RoleUser, Text: m.Text})
		}
	}
	return out
}
