package graph

import (
	"context"
	"fmt"
)

// AddSubgraph compiles child and adds it to g as the node name. The in
// converter builds the child's input from the parent state (a Send argument
// is available through SendArg), and out turns the child's final state into
// the parent's update.
//
// The child runs without the parent's callbacks, so parent checkpoints never
// contain child states. It inherits the parent's tracer; its spans nest
// under the node span.
func AddSubgraph[S, T any](
	g *StateGraph[S],
	name string,
	child *StateGraph[T],
	in func(ctx context.Context, state S) (T, error),
	out func(result T) (S, error),
) error {
	runnable, err := child.Compile()
	if err != nil {
		return fmt.Errorf("failed to compile subgraph %s: %w", name, err)
	}

	g.AddNode(name, "Subgraph: "+name, func(ctx context.Context, state S) (S, error) {
		var zero S

		input, err := in(ctx, state)
		if err != nil {
			return zero, fmt.Errorf("subgraph %s input: %w", name, err)
		}

		sub := runnable
		if tracer := tracerFromContext(ctx); tracer != nil {
			sub = runnable.WithTracer(tracer)
		}

		result, err := sub.Invoke(ctx, input)
		if err != nil {
			return zero, fmt.Errorf("subgraph %s execution failed: %w", name, err)
		}
		return out(result)
	})
	return nil
}

// CreateSubgraph builds a child graph with builder and adds it to g like AddSubgraph.
func CreateSubgraph[S, T any](
	g *StateGraph[S],
	name string,
	builder func(*StateGraph[T]) error,
	in func(ctx context.Context, state S) (T, error),
	out func(result T) (S, error),
) error {
	child := NewStateGraph[T]()
	if err := builder(child); err != nil {
		return fmt.Errorf("failed to build subgraph %s: %w", name, err)
	}
	return AddSubgraph(g, name, child, in, out)
}
