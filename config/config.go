// Package config loads service configuration from a YAML file, a .env file
// and the environment, and builds the stores and clients it describes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable except provider keys.
const EnvPrefix = "DIGEST"

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Search     SearchConfig     `mapstructure:"search"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	History    HistoryConfig    `mapstructure:"history"`
	Anchor     AnchorConfig     `mapstructure:"anchor"`
	Email      EmailConfig      `mapstructure:"email"`
	Research   ResearchConfig   `mapstructure:"research"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider" validate:"oneof=openai openaicompat"`
	Model       string  `mapstructure:"model" validate:"required"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

type SearchConfig struct {
	TavilyAPIKey        string `mapstructure:"tavily_api_key"`
	BingAPIKey          string `mapstructure:"bing_api_key"`
	TavilyMaxResults    int    `mapstructure:"tavily_max_results" validate:"gte=1,lte=50"`
	BingMaxResults      int    `mapstructure:"bing_max_results" validate:"gte=1,lte=50"`
	WikipediaMaxResults int    `mapstructure:"wikipedia_max_results" validate:"gte=1,lte=50"`
}

type CheckpointConfig struct {
	Backend        string `mapstructure:"backend" validate:"oneof=memory file sqlite postgres redis"`
	Path           string `mapstructure:"path" validate:"required_if=Backend file,required_if=Backend sqlite"`
	DatabaseURL    string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	RedisURL       string `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	TableName      string `mapstructure:"table_name"`
	MaxCheckpoints int    `mapstructure:"max_checkpoints" validate:"gte=0"`
}

type HistoryConfig struct {
	Backend     string `mapstructure:"backend" validate:"oneof=memory postgres"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
}

type AnchorConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url" validate:"omitempty,url"`
	ConnectURL string `mapstructure:"connect_url" validate:"omitempty,url"`
	MaxSteps   int    `mapstructure:"max_steps" validate:"gte=1"`
}

type EmailConfig struct {
	Address  string `mapstructure:"address" validate:"omitempty,email"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=1,lte=65535"`
}

type ResearchConfig struct {
	MaxAnalysts   int           `mapstructure:"max_analysts" validate:"gte=1,lte=10"`
	MaxNumTurns   int           `mapstructure:"max_num_turns" validate:"gte=1,lte=10"`
	NodeTimeout   time.Duration `mapstructure:"node_timeout"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error none"`
}

var defaults = map[string]any{
	"server.addr":                  ":8000",
	"server.allowed_origins":       []string{"http://localhost:3000", "https://ai.digestafrica.com", "https://ai-dashboard-zikm5.ondigitalocean.app"},
	"server.max_body_bytes":        1 << 20,
	"server.shutdown_timeout":      "10s",
	"llm.provider":                 "openai",
	"llm.model":                    "gpt-4o-mini",
	"llm.api_key":                  "",
	"llm.base_url":                 "",
	"llm.temperature":              0.0,
	"search.tavily_api_key":        "",
	"search.bing_api_key":          "",
	"search.tavily_max_results":    3,
	"search.bing_max_results":      3,
	"search.wikipedia_max_results": 2,
	"checkpoint.backend":           "sqlite",
	"checkpoint.path":              "digestai.db",
	"checkpoint.database_url":      "",
	"checkpoint.redis_url":         "",
	"checkpoint.table_name":        "checkpoints",
	"checkpoint.max_checkpoints":   0,
	"history.backend":              "memory",
	"history.database_url":         "",
	"anchor.api_key":               "",
	"anchor.base_url":              "https://api.anchorbrowser.io",
	"anchor.connect_url":           "wss://connect.anchorbrowser.io",
	"anchor.max_steps":             30,
	"email.address":                "",
	"email.password":               "",
	"email.host":                   "smtp.gmail.com",
	"email.port":                   587,
	"research.max_analysts":        2,
	"research.max_num_turns":       2,
	"research.node_timeout":        "2m",
	"research.search_timeout":      "30s",
	"tracing.enabled":              false,
	"tracing.endpoint":             "",
	"log.level":                    "info",
}

// providerEnv maps keys to the unprefixed variables providers document.
var providerEnv = map[string][]string{
	"llm.api_key":             {"OPENAI_API_KEY"},
	"llm.base_url":            {"OPENAI_BASE_URL"},
	"search.tavily_api_key":   {"TAVILY_API_KEY"},
	"search.bing_api_key":     {"BING_SUBSCRIPTION_KEY"},
	"anchor.api_key":          {"ANCHOR_API_KEY"},
	"email.address":           {"EMAIL_ADDRESS"},
	"email.password":          {"EMAIL_PASSWORD"},
	"checkpoint.database_url": {"DIGEST_CHECKPOINT_DATABASE_URL", "DATABASE_URL"},
	"checkpoint.redis_url":    {"DIGEST_CHECKPOINT_REDIS_URL", "REDIS_URL"},
	"history.database_url":    {"DIGEST_HISTORY_DATABASE_URL", "DATABASE_URL"},
}

var validate = validator.New()

// Load reads configuration. A .env file in the working directory is loaded
// first when present; path names an optional YAML file. Environment
// variables override the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range providerEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed on '%s'", e.Namespace(), e.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}
