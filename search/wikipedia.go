package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/tools"
	"golang.org/x/sync/errgroup"
)

// WikipediaClient searches Wikipedia through the MediaWiki action API.
type WikipediaClient struct {
	client
	// PageBaseURL prefixes page titles to build the document source.
	PageBaseURL string
	// MaxChars truncates each page's text when positive.
	MaxChars int
}

var (
	_ Searcher   = (*WikipediaClient)(nil)
	_ tools.Tool = (*WikipediaClient)(nil)
)

// NewWikipediaClient creates an English Wikipedia client loading at most 2
// pages per query.
func NewWikipediaClient(opts ...Option) *WikipediaClient {
	c, _ := newClient("", "", "https://en.wikipedia.org/w/api.php", 2, opts)
	return &WikipediaClient{
		client:      c,
		PageBaseURL: "https://en.wikipedia.org/wiki/",
		MaxChars:    4000,
	}
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title  string `json:"title"`
			PageID int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages []struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
			Missing bool   `json:"missing"`
		} `json:"pages"`
	} `json:"query"`
}

// Search finds matching titles and loads each page's text concurrently.
// Pages without text are skipped; result order follows search rank.
func (c *WikipediaClient) Search(ctx context.Context, query string) ([]Document, error) {
	titles, err := c.searchTitles(ctx, query)
	if err != nil {
		return nil, err
	}

	pages := make([]*Document, len(titles))
	g, gctx := errgroup.WithContext(ctx)
	for i, title := range titles {
		g.Go(func() error {
			doc, err := c.loadPage(gctx, title)
			if err != nil {
				return fmt.Errorf("load %q: %w", title, err)
			}
			pages[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(pages))
	for _, p := range pages {
		if p != nil {
			docs = append(docs, *p)
		}
	}
	return docs, nil
}

func (c *WikipediaClient) get(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	reqURL := c.baseURL + "?" + params.Encode()
	return c.do(ctx, "wikipedia", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	}, out)
}

func (c *WikipediaClient) searchTitles(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(c.maxResults))

	var result wikiSearchResponse
	if err := c.get(ctx, params, &result); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(result.Query.Search))
	for _, s := range result.Query.Search {
		if len(titles) == c.maxResults {
			break
		}
		titles = append(titles, s.Title)
	}
	return titles, nil
}

func (c *WikipediaClient) loadPage(ctx context.Context, title string) (*Document, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("titles", title)
	params.Set("redirects", "1")

	var result wikiExtractResponse
	if err := c.get(ctx, params, &result); err != nil {
		return nil, err
	}
	if len(result.Query.Pages) == 0 || result.Query.Pages[0].Missing {
		return nil, nil
	}

	page := result.Query.Pages[0]
	text, err := htmlToText(page.Extract)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	if c.MaxChars > 0 && len(text) > c.MaxChars {
		text = truncateRunes(text, c.MaxChars)
	}

	return &Document{
		Source:  c.PageBaseURL + url.PathEscape(strings.ReplaceAll(page.Title, " ", "_")),
		Page:    page.Title,
		Content: text,
	}, nil
}

// htmlToText flattens a MediaWiki extract into one line per block element.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("style, script, sup.reference, .mw-empty-elt").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li, dd").Each(func(_ int, s *goquery.Selection) {
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(lines, "\n"), nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Name returns the name of the tool.
func (c *WikipediaClient) Name() string {
	return "Wikipedia"
}

// Description returns the description of the tool.
func (c *WikipediaClient) Description() string {
	return "Looks up encyclopedia articles on Wikipedia. Useful for background on people, places, and concepts. Input should be a search query."
}

// Call executes the search and returns the formatted documents.
func (c *WikipediaClient) Call(ctx context.Context, input string) (string, error) {
	return callTool(ctx, c, input)
}
