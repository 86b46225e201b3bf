package search

import (
	"context"
	"fmt"
	"strings"
)

// NoResults is the context entry used when every provider failed.
const NoResults = "<Document source='No results'>Search failed to return results.</Document>"

// DocumentSeparator joins formatted documents in a single context entry.
const DocumentSeparator = "\n\n---\n\n"

// BingSource is the source attribute of Bing documents.
const BingSource = "Bing Search Result"

// Document is a single retrieved source.
type Document struct {
	Source  string `json:"source,omitempty"`
	Href    string `json:"href,omitempty"`
	Page    string `json:"page,omitempty"`
	Content string `json:"content"`
}

// Format renders the document envelope. Tavily documents carry only an
// href, Wikipedia documents a source and page, Bing documents both a source
// and an href.
func (d Document) Format() string {
	var head string
	switch {
	case d.Source != "" && d.Href != "":
		head = fmt.Sprintf(`<Document source="%s" href="%s"/>`, d.Source, d.Href)
	case d.Source != "":
		head = fmt.Sprintf(`<Document source="%s" page="%s"/>`, d.Source, d.Page)
	default:
		head = fmt.Sprintf(`<Document href="%s"/>`, d.Href)
	}
	return head + "\n" + d.Content + "\n</Document>"
}

// JoinDocuments formats docs and joins them with DocumentSeparator.
func JoinDocuments(docs []Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Format()
	}
	return strings.Join(parts, DocumentSeparator)
}

// Searcher retrieves documents for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Document, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) ([]Document, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string) ([]Document, error) {
	return f(ctx, query)
}
