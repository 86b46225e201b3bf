package graph

import (
	"context"
	"errors"
	"fmt"
)

const (
	// START labels the checkpoint written before the first superstep.
	START = "START"
	// END is the terminal pseudo-node.
	END = "END"
)

var (
	ErrEntryPointNotSet = errors.New("entry point not set")
	ErrNodeNotFound     = errors.New("node not found")
	ErrNoOutgoingEdge   = errors.New("no outgoing edge found for node")
	ErrEmptyRoute       = errors.New("conditional edge returned empty next node")
	// ErrRecursionLimit stops runs exceeding Config.RecursionLimit supersteps.
	ErrRecursionLimit = errors.New("recursion limit reached")
)

// NodeFunc is the function run by a node. With a schema set it returns a
// partial update; without one it returns the full next state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Node is a named step of a StateGraph.
type Node[S any] struct {
	Name        string
	Description string
	Function    NodeFunc[S]
}

// Edge is an unconditional transition.
type Edge struct {
	From string
	To   string
}

// NodeInterrupt is returned by Interrupt from inside a node. The runner
// fills in Node and converts it into a GraphInterrupt.
type NodeInterrupt struct {
	Node  string
	Value any
}

func (e *NodeInterrupt) Error() string {
	return fmt.Sprintf("interrupt at node %s: %v", e.Node, e.Value)
}

// GraphInterrupt ends a run that paused, either before or after a node
// listed in Config or through Interrupt. State is the state at the pause
// and NextNodes are the nodes a resumed run starts with.
type GraphInterrupt struct {
	Node           string
	State          any
	NextNodes      []string
	InterruptValue any
}

func (e *GraphInterrupt) Error() string {
	if e.InterruptValue != nil {
		return fmt.Sprintf("graph interrupted at node %s with value: %v", e.Node, e.InterruptValue)
	}
	return fmt.Sprintf("graph interrupted at node %s", e.Node)
}

// AsInterrupt reports whether err is, or wraps, a GraphInterrupt.
func AsInterrupt(err error) (*GraphInterrupt, bool) {
	var gi *GraphInterrupt
	if errors.As(err, &gi) {
		return gi, true
	}
	return nil, false
}

// Interrupt pauses the running node. When the run is resumed with
// Config.ResumeValue it returns that value instead.
func Interrupt(ctx context.Context, value any) (any, error) {
	if v := GetResumeValue(ctx); v != nil {
		return v, nil
	}
	return nil, &NodeInterrupt{Value: value}
}
