package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tmc/langchaingo/tools"
)

// BingClient queries the Bing Web Search v7 API.
type BingClient struct {
	client
}

var (
	_ Searcher   = (*BingClient)(nil)
	_ tools.Tool = (*BingClient)(nil)
)

// NewBingClient creates a Bing client returning 3 results.
// If subscriptionKey is empty, it tries to read from BING_SUBSCRIPTION_KEY.
func NewBingClient(subscriptionKey string, opts ...Option) (*BingClient, error) {
	c, err := newClient(subscriptionKey, "BING_SUBSCRIPTION_KEY", "https://api.bing.microsoft.com/v7.0/search", 3, opts)
	if err != nil {
		return nil, err
	}
	return &BingClient{client: c}, nil
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search returns the top web page snippets for query.
func (c *BingClient) Search(ctx context.Context, query string) ([]Document, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(c.maxResults))
	params.Set("textDecorations", "true")
	params.Set("textFormat", "HTML")
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var result bingResponse
	err := c.do(ctx, "bing", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
		return req, nil
	}, &result)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(result.WebPages.Value))
	for _, r := range result.WebPages.Value {
		if len(docs) == c.maxResults {
			break
		}
		docs = append(docs, Document{Source: BingSource, Href: r.URL, Content: r.Snippet})
	}
	return docs, nil
}

// Name returns the name of the tool.
func (c *BingClient) Name() string {
	return "Bing_Search"
}

// Description returns the description of the tool.
func (c *BingClient) Description() string {
	return "Microsoft Bing web search. Useful for recent facts and finding sources. Input should be a search query."
}

// Call executes the search and returns the formatted documents.
func (c *BingClient) Call(ctx context.Context, input string) (string, error) {
	return callTool(ctx, c, input)
}
