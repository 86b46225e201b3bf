package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type capturedRequest struct {
	Model          string  `json:"model"`
	Temperature    float32 `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestLLM(t *testing.T, handler http.HandlerFunc, opts ...Option) *LLM {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithToken("test-key"), WithBaseURL(srv.URL + "/v1/")}, opts...)
	llm, err := New(opts...)
	require.NoError(t, err)
	return llm
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"c-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`, content)
}

func TestNew_RequiresToken(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := New()
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestNew_TokenFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	llm, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, llm.model)
}

func TestGenerateContent(t *testing.T) {
	var got capturedRequest
	var auth, path string
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeCompletion(w, "hello there")
	}, WithModel("local-model"), WithTemperature(0.5))

	resp, err := llm.GenerateContent(context.Background(), []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "be brief"),
		llms.TextParts(llms.ChatMessageTypeHuman, "hi"),
		llms.TextParts(llms.ChatMessageTypeAI, "hello"),
		llms.TextParts(llms.ChatMessageTypeGeneric, "again"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "local-model", got.Model)
	assert.InDelta(t, 0.5, got.Temperature, 0.001)
	assert.Nil(t, got.ResponseFormat)

	roles := make([]string, 0, len(got.Messages))
	for _, m := range got.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)

	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello there", resp.Choices[0].Content)
	assert.Equal(t, "stop", resp.Choices[0].StopReason)
	assert.Equal(t, 10, resp.Choices[0].GenerationInfo["total_tokens"])
}

func TestGenerateContent_JSONModeAndModelOverride(t *testing.T) {
	var got capturedRequest
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeCompletion(w, `{"search_query":"go generics"}`)
	})

	out, err := llm.Call(context.Background(), "query please",
		llms.WithJSONMode(), llms.WithModel("other-model"), llms.WithTemperature(0))
	require.NoError(t, err)

	assert.Equal(t, `{"search_query":"go generics"}`, out)
	assert.Equal(t, "other-model", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestGenerateContent_APIError(t *testing.T) {
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	_, err := llm.Call(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestGenerateContent_NoChoices(t *testing.T) {
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c-1","choices":[]}`))
	})

	_, err := llm.Call(context.Background(), "hi")
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateContent_StreamingUnsupported(t *testing.T) {
	called := false
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		writeCompletion(w, "unused")
	})

	_, err := llm.GenerateContent(context.Background(),
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "hi")},
		llms.WithStreamingFunc(func(context.Context, []byte) error { return nil }))
	require.ErrorIs(t, err, ErrStreamingUnsupported)
	assert.False(t, called)
}
