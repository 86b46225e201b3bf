package research

import (
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/digestai/digestai/graph"
)

// ApproveFeedback is the feedback that accepts a template or analyst team.
const ApproveFeedback = "approve"

// Configuration holds the tunables of a research run.
type Configuration struct {
	// MaxAnalysts caps the analyst team. Defaults to 2.
	MaxAnalysts int
	// MaxNumTurns is the number of expert answers per interview. Defaults to 2.
	MaxNumTurns int
	// Model overrides the model name on every call when set.
	Model string
	// Temperature is passed to every call.
	Temperature float64
	// NodeTimeout bounds each LLM-backed node when positive.
	NodeTimeout time.Duration
	// SearchTimeout bounds each provider search when positive.
	SearchTimeout time.Duration
	// RetryPolicy is applied to every node of the research graph.
	RetryPolicy *graph.RetryPolicy
}

// DefaultConfiguration returns the defaults used when no options are given.
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxAnalysts:   2,
		MaxNumTurns:   2,
		Model:         "gpt-4o-mini",
		Temperature:   0,
		NodeTimeout:   2 * time.Minute,
		SearchTimeout: 30 * time.Second,
		RetryPolicy: &graph.RetryPolicy{
			MaxRetries:      2,
			BackoffStrategy: graph.ExponentialBackoff,
			RetryableErrors: []string{"rate limit", "status code: 429", "status code: 500", "status code: 502", "status code: 503"},
			BaseDelay:       time.Second,
			MaxDelay:        10 * time.Second,
		},
	}
}

// Option configures the research workflow.
type Option func(*Configuration)

// WithMaxAnalysts sets the default analyst team size.
func WithMaxAnalysts(n int) Option {
	return func(c *Configuration) {
		if n > 0 {
			c.MaxAnalysts = n
		}
	}
}

// WithMaxNumTurns sets the number of expert answers per interview.
func WithMaxNumTurns(n int) Option {
	return func(c *Configuration) {
		if n > 0 {
			c.MaxNumTurns = n
		}
	}
}

// WithModel sets the model name passed on every call.
func WithModel(model string) Option {
	return func(c *Configuration) {
		c.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Configuration) {
		c.Temperature = t
	}
}

// WithNodeTimeout bounds every LLM-backed node; zero disables the bound.
func WithNodeTimeout(d time.Duration) Option {
	return func(c *Configuration) {
		c.NodeTimeout = d
	}
}

// WithSearchTimeout bounds every provider search; zero disables the bound.
func WithSearchTimeout(d time.Duration) Option {
	return func(c *Configuration) {
		c.SearchTimeout = d
	}
}

// WithRetryPolicy replaces the node retry policy; nil disables retries.
func WithRetryPolicy(p *graph.RetryPolicy) Option {
	return func(c *Configuration) {
		c.RetryPolicy = p
	}
}

func newConfiguration(opts []Option) Configuration {
	cfg := DefaultConfiguration()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c Configuration) callOptions(extra ...llms.CallOption) []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(c.Temperature)}
	if c.Model != "" {
		opts = append(opts, llms.WithModel(c.Model))
	}
	return append(opts, extra...)
}
