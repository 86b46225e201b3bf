package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFormat(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{
			name: "tavily",
			doc:  Document{Href: "https://go.dev", Content: "Go"},
			want: "<Document href=\"https://go.dev\"/>\nGo\n</Document>",
		},
		{
			name: "bing",
			doc:  Document{Source: BingSource, Href: "https://x.io", Content: "snippet"},
			want: "<Document source=\"Bing Search Result\" href=\"https://x.io\"/>\nsnippet\n</Document>",
		},
		{
			name: "wikipedia",
			doc:  Document{Source: "https://en.wikipedia.org/wiki/Go", Page: "Go", Content: "text"},
			want: "<Document source=\"https://en.wikipedia.org/wiki/Go\" page=\"Go\"/>\ntext\n</Document>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.Format())
		})
	}
}

func TestJoinDocuments(t *testing.T) {
	docs := []Document{{Href: "a", Content: "1"}, {Href: "b", Content: "2"}}

	got := JoinDocuments(docs)

	assert.Equal(t, "<Document href=\"a\"/>\n1\n</Document>\n\n---\n\n<Document href=\"b\"/>\n2\n</Document>", got)
	assert.Empty(t, JoinDocuments(nil))
}

func staticSearcher(docs []Document, err error, calls *int) Searcher {
	return SearcherFunc(func(ctx context.Context, query string) ([]Document, error) {
		*calls++
		return docs, err
	})
}

func TestFallback(t *testing.T) {
	primaryDocs := []Document{{Href: "p", Content: "primary"}}
	secondaryDocs := []Document{{Href: "s", Content: "secondary"}}

	t.Run("primary succeeds", func(t *testing.T) {
		var p, s int
		docs, err := Fallback(staticSearcher(primaryDocs, nil, &p), staticSearcher(secondaryDocs, nil, &s)).
			Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, primaryDocs, docs)
		assert.Equal(t, 0, s)
	})

	t.Run("primary errors", func(t *testing.T) {
		var p, s int
		docs, err := Fallback(staticSearcher(nil, errors.New("boom"), &p), staticSearcher(secondaryDocs, nil, &s)).
			Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, secondaryDocs, docs)
		assert.Equal(t, 1, s)
	})

	t.Run("primary empty", func(t *testing.T) {
		var p, s int
		docs, err := Fallback(staticSearcher(nil, nil, &p), staticSearcher(secondaryDocs, nil, &s)).
			Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, secondaryDocs, docs)
	})

	t.Run("both empty", func(t *testing.T) {
		var p, s int
		_, err := Fallback(staticSearcher(nil, nil, &p), staticSearcher(nil, nil, &s)).
			Search(context.Background(), "q")
		assert.ErrorIs(t, err, ErrNoResults)
	})

	t.Run("secondary error surfaces", func(t *testing.T) {
		var p, s int
		_, err := Fallback(staticSearcher(nil, errors.New("a"), &p), staticSearcher(nil, errors.New("b"), &s)).
			Search(context.Background(), "q")
		assert.EqualError(t, err, "b")
	})

	t.Run("cancelled context skips secondary", func(t *testing.T) {
		var p, s int
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Fallback(staticSearcher(nil, context.Canceled, &p), staticSearcher(secondaryDocs, nil, &s)).
			Search(ctx, "q")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, s)
	})
}
