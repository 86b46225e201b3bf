package search

import (
	"context"
	"errors"

	"github.com/digestai/digestai/log"
)

// ErrNoResults is returned by Fallback when neither provider found anything.
var ErrNoResults = errors.New("search returned no results")

type fallback struct {
	primary   Searcher
	secondary Searcher
}

// Fallback returns a Searcher that asks primary first and uses secondary
// when primary errors or returns no documents.
func Fallback(primary, secondary Searcher) Searcher {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Search(ctx context.Context, query string) ([]Document, error) {
	if f.primary != nil {
		docs, err := f.primary.Search(ctx, query)
		if err == nil && len(docs) > 0 {
			return docs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			log.Warn("primary search failed, falling back: %v", err)
		}
	}
	if f.secondary == nil {
		return nil, ErrNoResults
	}

	docs, err := f.secondary.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoResults
	}
	return docs, nil
}
