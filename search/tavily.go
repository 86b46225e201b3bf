package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/tmc/langchaingo/tools"
)

// TavilyClient searches the web through the Tavily API.
type TavilyClient struct {
	client
}

var (
	_ Searcher   = (*TavilyClient)(nil)
	_ tools.Tool = (*TavilyClient)(nil)
)

// NewTavilyClient creates a Tavily client returning up to 3 results.
// If apiKey is empty, it tries to read from TAVILY_API_KEY environment variable.
func NewTavilyClient(apiKey string, opts ...Option) (*TavilyClient, error) {
	c, err := newClient(apiKey, "TAVILY_API_KEY", "https://api.tavily.com/search", 3, opts)
	if err != nil {
		return nil, err
	}
	return &TavilyClient{client: c}, nil
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs a basic-depth Tavily search.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]Document, error) {
	body, err := json.Marshal(map[string]any{
		"query":        query,
		"api_key":      c.apiKey,
		"search_depth": "basic",
		"max_results":  c.maxResults,
	})
	if err != nil {
		return nil, err
	}

	var result tavilyResponse
	err = c.do(ctx, "tavily", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}, &result)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(result.Results))
	for _, r := range result.Results {
		if len(docs) == c.maxResults {
			break
		}
		docs = append(docs, Document{Href: r.URL, Content: r.Content})
	}
	return docs, nil
}

// Name returns the name of the tool.
func (c *TavilyClient) Name() string {
	return "Tavily_Search"
}

// Description returns the description of the tool.
func (c *TavilyClient) Description() string {
	return "A search engine optimized for comprehensive, accurate, and trusted results. " +
		"Useful for answering questions about current events. Input should be a search query."
}

// Call executes the search and returns the formatted documents.
func (c *TavilyClient) Call(ctx context.Context, input string) (string, error) {
	return callTool(ctx, c, input)
}

func callTool(ctx context.Context, s Searcher, input string) (string, error) {
	docs, err := s.Search(ctx, input)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return NoResults, nil
	}
	return JoinDocuments(docs), nil
}
