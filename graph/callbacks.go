package graph

import (
	"context"
	"encoding/json"
	"fmt"
)

// CallbackHandler receives lifecycle notifications of a run. The graph is
// reported as a chain and each node execution as a tool call.
type CallbackHandler interface {
	OnChainStart(ctx context.Context, serialized map[string]any, inputs map[string]any, runID string, parentRunID *string, tags []string, metadata map[string]any)
	OnChainEnd(ctx context.Context, outputs map[string]any, runID string)
	OnChainError(ctx context.Context, err error, runID string)
	OnToolStart(ctx context.Context, serialized map[string]any, inputStr string, runID string, parentRunID *string, tags []string, metadata map[string]any)
	OnToolEnd(ctx context.Context, output string, runID string)
}

// StepInfo describes a finished superstep.
type StepInfo struct {
	// Step is the 1-based superstep number; 0 is the input checkpoint.
	Step int
	// Node labels the step: the single node name, START, or "step:[a b]".
	Node string
	// Completed lists the distinct nodes that ran, in task order.
	Completed []string
	// Next lists the nodes of the following step, one entry per task.
	Next []string
	// State is the merged state after the step.
	State any
}

// GraphCallbackHandler additionally receives a notification after every superstep.
type GraphCallbackHandler interface {
	CallbackHandler
	OnGraphStep(ctx context.Context, step StepInfo)
}

// NoOpCallbackHandler implements CallbackHandler with empty methods. Embed
// it to implement only the notifications of interest.
type NoOpCallbackHandler struct{}

func (NoOpCallbackHandler) OnChainStart(context.Context, map[string]any, map[string]any, string, *string, []string, map[string]any) {
}
func (NoOpCallbackHandler) OnChainEnd(context.Context, map[string]any, string) {}
func (NoOpCallbackHandler) OnChainError(context.Context, error, string)      {}
func (NoOpCallbackHandler) OnToolStart(context.Context, map[string]any, string, string, *string, []string, map[string]any) {
}
func (NoOpCallbackHandler) OnToolEnd(context.Context, string, string) {}

func stepLabel(nodes []string) string {
	switch len(nodes) {
	case 0:
		return START
	case 1:
		return nodes[0]
	default:
		return fmt.Sprintf("step:%v", nodes)
	}
}

// convertStateToMap renders a state for callback payloads.
func convertStateToMap(state any) map[string]any {
	if m, ok := state.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(state)
	if err == nil {
		var m map[string]any
		if json.Unmarshal(data, &m) == nil {
			return m
		}
	}
	return map[string]any{"state": state}
}

func convertStateToString(state any) string {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Sprintf("%v", state)
	}
	return string(data)
}
