package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("formatversion"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		if q.Get("list") == "search" {
			assert.Equal(t, "go language", q.Get("srsearch"))
			fmt.Fprint(w, `{"query":{"search":[{"title":"Go (programming language)","pageid":1},{"title":"Gopher","pageid":2},{"title":"Extra","pageid":3}]}}`)
			return
		}

		switch q.Get("titles") {
		case "Go (programming language)":
			fmt.Fprint(w, `{"query":{"pages":[{"pageid":1,"title":"Go (programming language)","extract":"<p><b>Go</b> is a   statically typed language.<sup class=\"reference\">[1]</sup></p><h2>History</h2><ul><li>Designed at Google</li></ul>"}]}}`)
		case "Gopher":
			fmt.Fprint(w, `{"query":{"pages":[{"title":"Gopher","missing":true}]}}`)
		default:
			t.Errorf("unexpected title %q", q.Get("titles"))
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func TestWikipediaClient_Search(t *testing.T) {
	srv := newWikiServer(t)
	defer srv.Close()

	c := NewWikipediaClient(WithBaseURL(srv.URL))

	docs, err := c.Search(context.Background(), "go language")
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go_%28programming_language%29", docs[0].Source)
	assert.Equal(t, "Go (programming language)", docs[0].Page)
	assert.Equal(t, "Go is a statically typed language.\nHistory\nDesigned at Google", docs[0].Content)
}

func TestWikipediaClient_Truncates(t *testing.T) {
	srv := newWikiServer(t)
	defer srv.Close()

	c := NewWikipediaClient(WithBaseURL(srv.URL))
	c.MaxChars = 5

	docs, err := c.Search(context.Background(), "go language")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Go is", docs[0].Content)
}

func TestHTMLToText_PlainFallback(t *testing.T) {
	text, err := htmlToText("just  some\ntext")
	require.NoError(t, err)
	assert.Equal(t, "just some text", text)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "hi", truncateRunes("hi", 10))
}
