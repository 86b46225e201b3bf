package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
)

var (
	ErrEmptyResponse = errors.New("no response")
	ErrMissingToken  = errors.New("missing the OpenAI API key")
	// ErrStreamingUnsupported is returned when a call sets llms.WithStreamingFunc.
	ErrStreamingUnsupported = errors.New("openaicompat: streaming is not supported")
)

// LLM is a chat model talking to an OpenAI-compatible endpoint.
type LLM struct {
	client           *openai.Client
	model            string
	temperature      float64
	CallbacksHandler callbacks.Handler
}

var (
	_ llms.Model = (*LLM)(nil)
)

// New returns a new LLM.
//
// Authentication options:
// 1. WithToken(token) - pass the key directly
// 2. Set OPENAI_API_KEY environment variable
//
// Example:
//
//	llm, err := openaicompat.New(
//		openaicompat.WithBaseURL("http://localhost:8000/v1"),
//		openaicompat.WithModel("qwen2.5-7b-instruct"),
//	)
func New(opts ...Option) (*LLM, error) {
	options := &options{
		token: getEnvOrDefault("OPENAI_API_KEY", ""),
		model: DefaultModel,
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.token == "" {
		return nil, fmt.Errorf(`%w
You can pass auth info by using openaicompat.New(openaicompat.WithToken("{API Key}"))
or
export OPENAI_API_KEY={API Key}`, ErrMissingToken)
	}

	cfg := openai.DefaultConfig(options.token)
	if options.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(options.baseURL, "/")
	}
	if options.organization != "" {
		cfg.OrgID = options.organization
	}
	if options.httpClient != nil {
		cfg.HTTPClient = options.httpClient
	}

	return &LLM{
		client:           openai.NewClientWithConfig(cfg),
		model:            options.model,
		temperature:      options.temperature,
		CallbacksHandler: options.callbacksHandler,
	}, nil
}

// Call generates a response from the LLM for the given prompt.
func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentStart(ctx, messages)
	}

	opts := &llms.CallOptions{Temperature: o.temperature}
	for _, opt := range options {
		opt(opts)
	}

	var (
		resp *llms.ContentResponse
		err  error
	)
	if opts.StreamingFunc != nil {
		err = ErrStreamingUnsupported
	} else {
		resp, err = o.complete(ctx, o.buildRequest(messages, opts))
	}
	if err != nil {
		if o.CallbacksHandler != nil {
			o.CallbacksHandler.HandleLLMError(ctx, err)
		}
		return nil, err
	}

	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentEnd(ctx, resp)
	}
	return resp, nil
}

func (o *LLM) buildRequest(messages []llms.MessageContent, opts *llms.CallOptions) openai.ChatCompletionRequest {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		var content strings.Builder
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				content.WriteString(text.Text)
			}
		}
		chat = append(chat, openai.ChatCompletionMessage{
			Role:    roleOf(msg.Role),
			Content: content.String(),
		})
	}

	model := o.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := openai.ChatCompletionRequest{
		Model:            model,
		Messages:         chat,
		MaxTokens:        opts.MaxTokens,
		Temperature:      float32(opts.Temperature),
		TopP:             float32(opts.TopP),
		N:                opts.N,
		Stop:             opts.StopWords,
		FrequencyPenalty: float32(opts.FrequencyPenalty),
		PresencePenalty:  float32(opts.PresencePenalty),
	}
	if opts.Seed != 0 {
		seed := opts.Seed
		req.Seed = &seed
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

func roleOf(t llms.ChatMessageType) string {
	switch t {
	case llms.ChatMessageTypeAI:
		return openai.ChatMessageRoleAssistant
	case llms.ChatMessageTypeSystem:
		return openai.ChatMessageRoleSystem
	case llms.ChatMessageTypeTool:
		return openai.ChatMessageRoleTool
	case llms.ChatMessageTypeFunction:
		return openai.ChatMessageRoleFunction
	default:
		return openai.ChatMessageRoleUser
	}
}

func (o *LLM) complete(ctx context.Context, req openai.ChatCompletionRequest) (*llms.ContentResponse, error) {
	result, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	resp := &llms.ContentResponse{
		Choices: make([]*llms.ContentChoice, 0, len(result.Choices)),
	}
	for _, c := range result.Choices {
		resp.Choices = append(resp.Choices, &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
			GenerationInfo: map[string]any{
				"prompt_tokens":     result.Usage.PromptTokens,
				"completion_tokens": result.Usage.CompletionTokens,
				"total_tokens":      result.Usage.TotalTokens,
			},
		})
	}
	return resp, nil
}
