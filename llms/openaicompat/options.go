package openaicompat

import (
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/callbacks"
)

// DefaultModel is used when neither WithModel nor a call option names a model.
const DefaultModel = "gpt-4o-mini"

type options struct {
	token            string
	baseURL          string
	organization     string
	model            string
	temperature      float64
	httpClient       openai.HTTPDoer
	callbacksHandler callbacks.Handler
}

// Option configures the LLM.
type Option func(*options)

// WithToken sets the API key. It falls back to OPENAI_API_KEY.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint, e.g.
// "http://localhost:8000/v1".
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(o *options) {
		o.organization = org
	}
}

// WithModel sets the default chat model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithTemperature sets the default sampling temperature. A per-call
// llms.WithTemperature overrides it.
func WithTemperature(temperature float64) Option {
	return func(o *options) {
		o.temperature = temperature
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client openai.HTTPDoer) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithCallback sets the langchaingo callbacks handler.
func WithCallback(handler callbacks.Handler) Option {
	return func(o *options) {
		o.callbacksHandler = handler
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
