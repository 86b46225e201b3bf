// Package openaicompat provides a langchaingo llms.Model for any endpoint
// that speaks the OpenAI chat-completions protocol (OpenAI itself, Azure
// proxies, vLLM, Ollama's /v1 surface and similar).
//
// It is backed by github.com/sashabaranov/go-openai and is selected by
// setting llm.provider to "openaicompat" together with llm.base_url.
package openaicompat
