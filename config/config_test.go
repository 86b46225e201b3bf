package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digestai/digestai/history"
	"github.com/digestai/digestai/store/memory"
	"github.com/digestai/digestai/store/sqlite"
)

// chdir moves into an empty directory so no stray .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Contains(t, cfg.Server.AllowedOrigins, "http://localhost:3000")
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.Host)
	assert.Equal(t, 587, cfg.Email.Port)
	assert.Equal(t, 2, cfg.Research.MaxAnalysts)
	assert.Equal(t, 2*time.Minute, cfg.Research.NodeTimeout)
	assert.Equal(t, 30, cfg.Anchor.MaxSteps)
}

func TestLoad_ProviderEnv(t *testing.T) {
	chdir(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TAVILY_API_KEY", "tvly")
	t.Setenv("ANCHOR_API_KEY", "anchor")
	t.Setenv("EMAIL_ADDRESS", "bot@example.com")
	t.Setenv("DIGEST_RESEARCH_MAX_ANALYSTS", "4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "tvly", cfg.Search.TavilyAPIKey)
	assert.Equal(t, "anchor", cfg.Anchor.APIKey)
	assert.Equal(t, "bot@example.com", cfg.Email.Address)
	assert.Equal(t, 4, cfg.Research.MaxAnalysts)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("OPENAI_API_KEY", "")
	// godotenv never overrides variables that are already set
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.APIKey)
}

func TestLoad_File(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "digestai.yaml")
	yaml := `
server:
  addr: ":9090"
  allowed_origins: ["*"]
checkpoint:
  backend: memory
research:
  max_num_turns: 3
  search_timeout: 5s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("DIGEST_SERVER_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr, "environment overrides the file")
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, 3, cfg.Research.MaxNumTurns)
	assert.Equal(t, 5*time.Second, cfg.Research.SearchTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t)
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "unknown provider",
			env:  map[string]string{"DIGEST_LLM_PROVIDER": "anthropic"},
			want: "Config.LLM.Provider",
		},
		{
			name: "postgres without url",
			env:  map[string]string{"DIGEST_CHECKPOINT_BACKEND": "postgres"},
			want: "Config.Checkpoint.DatabaseURL",
		},
		{
			name: "redis without url",
			env:  map[string]string{"DIGEST_CHECKPOINT_BACKEND": "redis"},
			want: "Config.Checkpoint.RedisURL",
		},
		{
			name: "history postgres without url",
			env:  map[string]string{"DIGEST_HISTORY_BACKEND": "postgres"},
			want: "Config.History.DatabaseURL",
		},
		{
			name: "bad email",
			env:  map[string]string{"EMAIL_ADDRESS": "not-an-email"},
			want: "Config.Email.Address",
		},
		{
			name: "too many analysts",
			env:  map[string]string{"DIGEST_RESEARCH_MAX_ANALYSTS": "42"},
			want: "Config.Research.MaxAnalysts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	chdir(t)
	t.Setenv("DIGEST_CHECKPOINT_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/digest")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/digest", cfg.Checkpoint.DatabaseURL)
	assert.Equal(t, "postgres://localhost/digest", cfg.History.DatabaseURL)
}

func TestOpenCheckpointStore(t *testing.T) {
	ctx := context.Background()

	s, closer, err := OpenCheckpointStore(ctx, CheckpointConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.MemoryCheckpointStore{}, s)
	assert.NoError(t, closer.Close())

	path := filepath.Join(t.TempDir(), "cp.db")
	s, closer, err = OpenCheckpointStore(ctx, CheckpointConfig{Backend: "sqlite", Path: path})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.SqliteCheckpointStore{}, s)
	assert.NoError(t, closer.Close())

	_, _, err = OpenCheckpointStore(ctx, CheckpointConfig{Backend: "redis", RedisURL: "::bad"})
	assert.Error(t, err)

	_, _, err = OpenCheckpointStore(ctx, CheckpointConfig{Backend: "etcd"})
	assert.Error(t, err)
}

func TestCheckpointSettings(t *testing.T) {
	s := memory.NewMemoryCheckpointStore()
	settings := CheckpointSettings(s, CheckpointConfig{MaxCheckpoints: 5})
	assert.Same(t, s, settings.Store)
	assert.Equal(t, 5, settings.MaxCheckpoints)
	assert.True(t, settings.AutoSave)
}

func TestOpenHistoryStore(t *testing.T) {
	s, closer, err := OpenHistoryStore(context.Background(), HistoryConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &history.MemoryStore{}, s)
	assert.NoError(t, closer.Close())

	_, _, err = OpenHistoryStore(context.Background(), HistoryConfig{Backend: "mongo"})
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	_, err := NewModel(LLMConfig{Provider: "openai", Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	m, err := NewModel(LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, m)

	m, err = NewModel(LLMConfig{Provider: "openaicompat", Model: "qwen", APIKey: "sk-test", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewSearchers(t *testing.T) {
	searchers, err := NewSearchers(SearchConfig{WikipediaMaxResults: 2, TavilyMaxResults: 3, BingMaxResults: 3})
	require.NoError(t, err)
	assert.NotNil(t, searchers.Wikipedia)
	assert.Nil(t, searchers.Web)
	assert.Nil(t, searchers.Bing)

	searchers, err = NewSearchers(SearchConfig{
		TavilyAPIKey: "tvly", BingAPIKey: "bing",
		WikipediaMaxResults: 2, TavilyMaxResults: 3, BingMaxResults: 3,
	})
	require.NoError(t, err)
	assert.NotNil(t, searchers.Web)
	assert.NotNil(t, searchers.Bing)
}

func TestResearchOptions(t *testing.T) {
	cfg := Config{
		LLM:      LLMConfig{Model: "gpt-4o", Temperature: 0.3},
		Research: ResearchConfig{MaxAnalysts: 3, MaxNumTurns: 1, NodeTimeout: time.Minute, SearchTimeout: time.Second},
	}
	opts := ResearchOptions(cfg)
	assert.Len(t, opts, 6)
}
