package graph

import "context"

type (
	resumeValueKey struct{}
	sendArgKey     struct{}
	configKey      struct{}
)

// WithResumeValue adds a resume value to the context.
// This value will be returned by Interrupt() when re-executing a node.
func WithResumeValue(ctx context.Context, value any) context.Context {
	return context.WithValue(ctx, resumeValueKey{}, value)
}

// GetResumeValue retrieves the resume value from the context.
func GetResumeValue(ctx context.Context) any {
	return ctx.Value(resumeValueKey{})
}

func withSendArg(ctx context.Context, arg any) context.Context {
	return context.WithValue(ctx, sendArgKey{}, arg)
}

// SendArg returns the argument of the Send that started the current task,
// or nil when the task was reached through a plain edge.
func SendArg(ctx context.Context) any {
	return ctx.Value(sendArgKey{})
}

// WithConfig stores the run configuration in the context.
func WithConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey{}, config)
}

// GetConfig returns the run configuration stored in the context, if any.
func GetConfig(ctx context.Context) *Config {
	if config, ok := ctx.Value(configKey{}).(*Config); ok {
		return config
	}
	return nil
}

type tracerKey struct{}

func withTracer(ctx context.Context, tracer *Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, tracer)
}

func tracerFromContext(ctx context.Context) *Tracer {
	tracer, _ := ctx.Value(tracerKey{}).(*Tracer)
	return tracer
}
