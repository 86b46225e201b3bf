package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

var (
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrInvalidStructuredOutput is returned when a JSON answer cannot be decoded.
	ErrInvalidStructuredOutput = errors.New("model returned invalid structured output")
)

const (
	perspectivesFormat = `{"analysts": [{"affiliation": "Primary affiliation of the analyst.", "name": "Name of the analyst.", "role": "Role of the analyst in the context of the topic.", "description": "Description of the analyst focus, concerns, and motives."}]}`
	searchQueryFormat  = `{"search_query": "Search query for retrieval."}`
)

func systemMessage(text string) llms.MessageContent {
	return llms.TextParts(llms.ChatMessageTypeSystem, text)
}

func humanMessage(text string) llms.MessageContent {
	return llms.TextParts(llms.ChatMessageTypeHuman, text)
}

func toMessageContents(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleAI {
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// generate returns the text of the first choice.
func (w *Workflow) generate(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	resp, err := w.model.GenerateContent(ctx, messages, w.cfg.callOptions(opts...)...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// generateJSON asks for a JSON object shaped like format and decodes it
// into T. The format is appended to the first (system) message.
func generateJSON[T any](ctx context.Context, w *Workflow, messages []llms.MessageContent, format string) (T, error) {
	var out T

	instructed := make([]llms.MessageContent, len(messages))
	copy(instructed, messages)
	suffix := "\n\nRespond only with a JSON object of this form:\n" + format
	if len(instructed) > 0 && instructed[0].Role == llms.ChatMessageTypeSystem {
		instructed[0] = systemMessage(textOf(instructed[0]) + suffix)
	} else {
		instructed = append([]llms.MessageContent{systemMessage(strings.TrimSpace(suffix))}, instructed...)
	}

	text, err := w.generate(ctx, instructed, llms.WithJSONMode())
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal([]byte(cleanJSON(text)), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidStructuredOutput, err)
	}
	return out, nil
}

func textOf(m llms.MessageContent) string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if text, ok := part.(llms.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

// cleanJSON strips markdown code fences around a JSON answer.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
