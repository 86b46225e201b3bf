package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	goredis "github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/digestai/digestai/graph"
	"github.com/digestai/digestai/history"
	"github.com/digestai/digestai/llms/openaicompat"
	"github.com/digestai/digestai/log"
	"github.com/digestai/digestai/research"
	"github.com/digestai/digestai/search"
	"github.com/digestai/digestai/store"
	"github.com/digestai/digestai/store/file"
	"github.com/digestai/digestai/store/memory"
	"github.com/digestai/digestai/store/postgres"
	"github.com/digestai/digestai/store/redis"
	"github.com/digestai/digestai/store/sqlite"
)

// ErrMissingAPIKey is returned when the selected LLM provider needs a key.
var ErrMissingAPIKey = errors.New("llm api key is not set")

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// OpenCheckpointStore opens the configured checkpoint backend. The returned
// closer releases its connections.
func OpenCheckpointStore(ctx context.Context, cfg CheckpointConfig) (store.CheckpointStore, io.Closer, error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewMemoryCheckpointStore(), nopCloser, nil
	case "file":
		s, err := file.NewFileCheckpointStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser, nil
	case "sqlite":
		s, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{Path: cfg.Path, TableName: cfg.TableName})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		s, err := postgres.NewPostgresCheckpointStore(ctx, postgres.PostgresOptions{
			ConnString: cfg.DatabaseURL,
			TableName:  cfg.TableName,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("init checkpoint schema: %w", err)
		}
		return s, closerFunc(func() error { s.Close(); return nil }), nil
	case "redis":
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		return redis.NewRedisCheckpointStoreWithClient(client, "", 0), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

// CheckpointSettings wraps an opened store for graph compilation.
func CheckpointSettings(s store.CheckpointStore, cfg CheckpointConfig) graph.CheckpointConfig {
	settings := graph.DefaultCheckpointConfig()
	settings.Store = s
	settings.MaxCheckpoints = cfg.MaxCheckpoints
	return settings
}

// OpenHistoryStore opens the configured run history backend.
func OpenHistoryStore(ctx context.Context, cfg HistoryConfig) (history.Store, io.Closer, error) {
	switch cfg.Backend {
	case "memory":
		return history.NewMemoryStore(), nopCloser, nil
	case "postgres":
		s, err := history.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("init history schema: %w", err)
		}
		return s, closerFunc(func() error { s.Close(); return nil }), nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// NewModel creates the chat model for the configured provider.
func NewModel(cfg LLMConfig) (llms.Model, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch cfg.Provider {
	case "openaicompat":
		opts := []openaicompat.Option{
			openaicompat.WithToken(cfg.APIKey),
			openaicompat.WithModel(cfg.Model),
			openaicompat.WithTemperature(cfg.Temperature),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openaicompat.WithBaseURL(cfg.BaseURL))
		}
		return openaicompat.New(opts...)
	default:
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	}
}

// NewSearchers creates the retrieval providers that have credentials.
// Wikipedia needs none and is always present.
func NewSearchers(cfg SearchConfig) (research.Searchers, error) {
	searchers := research.Searchers{
		Wikipedia: search.NewWikipediaClient(search.WithMaxResults(cfg.WikipediaMaxResults)),
	}
	if cfg.TavilyAPIKey != "" {
		tavily, err := search.NewTavilyClient(cfg.TavilyAPIKey, search.WithMaxResults(cfg.TavilyMaxResults))
		if err != nil {
			return research.Searchers{}, err
		}
		searchers.Web = tavily
	} else {
		log.Warn("TAVILY_API_KEY is not set, web search disabled")
	}
	if cfg.BingAPIKey != "" {
		bing, err := search.NewBingClient(cfg.BingAPIKey, search.WithMaxResults(cfg.BingMaxResults))
		if err != nil {
			return research.Searchers{}, err
		}
		searchers.Bing = bing
	}
	return searchers, nil
}

// ResearchOptions converts the research section into workflow options.
func ResearchOptions(cfg Config) []research.Option {
	return []research.Option{
		research.WithMaxAnalysts(cfg.Research.MaxAnalysts),
		research.WithMaxNumTurns(cfg.Research.MaxNumTurns),
		research.WithModel(cfg.LLM.Model),
		research.WithTemperature(cfg.LLM.Temperature),
		research.WithNodeTimeout(cfg.Research.NodeTimeout),
		research.WithSearchTimeout(cfg.Research.SearchTimeout),
	}
}
