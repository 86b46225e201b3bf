package graph

// DefaultRecursionLimit bounds the number of supersteps of a single run.
const DefaultRecursionLimit = 25

// Config carries per-run options.
type Config struct {
	// Configurable holds run-scoped values such as "thread_id" and "checkpoint_id".
	Configurable map[string]any

	// Callbacks receive chain, node and step notifications.
	Callbacks []CallbackHandler

	// Tags and Metadata are passed through to callbacks.
	Tags     []string
	Metadata map[string]any

	// InterruptBefore stops the run before any of these nodes executes.
	InterruptBefore []string

	// InterruptAfter stops the run after any of these nodes executed.
	InterruptAfter []string

	// ResumeFrom starts the run at these nodes instead of the entry point.
	ResumeFrom []string

	// ResumeValue is returned by Interrupt when a paused node re-executes.
	ResumeValue any

	// RecursionLimit caps supersteps; zero means DefaultRecursionLimit.
	RecursionLimit int
}

// ThreadID returns the configured thread id or "".
func (c *Config) ThreadID() string {
	return c.configurableString("thread_id")
}

// CheckpointID returns the configured checkpoint id or "".
func (c *Config) CheckpointID() string {
	return c.configurableString("checkpoint_id")
}

func (c *Config) configurableString(key string) string {
	if c == nil || c.Configurable == nil {
		return ""
	}
	v, _ := c.Configurable[key].(string)
	return v
}

func (c *Config) recursionLimit() int {
	if c == nil || c.RecursionLimit <= 0 {
		return DefaultRecursionLimit
	}
	return c.RecursionLimit
}

// clone returns a shallow copy with its own Configurable map and callback slice.
func (c *Config) clone() *Config {
	if c == nil {
		return &Config{Configurable: map[string]any{}}
	}
	out := *c
	out.Configurable = make(map[string]any, len(c.Configurable)+1)
	for k, v := range c.Configurable {
		out.Configurable[k] = v
	}
	out.Callbacks = append([]CallbackHandler(nil), c.Callbacks...)
	return &out
}

// WithThreadID returns a Config bound to a checkpoint thread.
func WithThreadID(threadID string) *Config {
	return &Config{
		Configurable: map[string]any{
			"thread_id": threadID,
		},
	}
}

// WithInterruptBefore returns a Config that stops before the given nodes.
func WithInterruptBefore(nodes ...string) *Config {
	return &Config{
		InterruptBefore: nodes,
	}
}

// WithInterruptAfter returns a Config that stops after the given nodes.
func WithInterruptAfter(nodes ...string) *Config {
	return &Config{
		InterruptAfter: nodes,
	}
}
