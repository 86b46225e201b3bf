package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// StateGraph represents a generic state-based graph with compile-time type safety.
// The type parameter S represents the state type, which is typically a struct.
//
// Example usage:
//
//	type MyState struct {
//	    Count int
//	    Name  string
//	}
//
//	g := graph.NewStateGraph[MyState]()
//	g.AddNode("increment", "Increment counter", func(ctx context.Context, state MyState) (MyState, error) {
//	    state.Count++
//	    return state, nil
//	})
type StateGraph[S any] struct {
	// nodes is a map of node names to their corresponding Node objects
	nodes map[string]Node[S]

	// nodeOrder keeps insertion order for stable rendering
	nodeOrder []string

	// edges is a slice of Edge objects representing the connections between nodes
	edges []Edge

	// conditionalEdges maps a "From" node to a function choosing the single next node
	conditionalEdges map[string]func(ctx context.Context, state S) string

	// sendRouters maps a "From" node to a function returning the next tasks
	sendRouters map[string]func(ctx context.Context, state S) ([]Send, error)

	// routeTargets lists the declared destinations of conditional routing
	routeTargets map[string][]string

	// entryPoint is the name of the entry point node in the graph
	entryPoint string

	// retryPolicy defines retry behavior for failed nodes
	retryPolicy *RetryPolicy

	// Schema defines the state structure and update logic
	Schema StateSchema[S]
}

// NewStateGraph creates a new instance of StateGraph with type safety.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]func(ctx context.Context, state S) string),
		sendRouters:      make(map[string]func(ctx context.Context, state S) ([]Send, error)),
		routeTargets:     make(map[string][]string),
	}
}

// AddNode adds a new node to the state graph with the given name, description and function.
func (g *StateGraph[S]) AddNode(name string, description string, fn NodeFunc[S]) {
	if _, exists := g.nodes[name]; !exists {
		g.nodeOrder = append(g.nodeOrder, name)
	}
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a new edge to the state graph between the "from" and "to" nodes.
// Several edges from one node fan out to all targets.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{
		From: from,
		To:   to,
	})
}

// AddConditionalEdge adds a conditional edge where the target node is determined at runtime.
// The optional destinations are only used when rendering the graph.
//
// Example:
//
//	g.AddConditionalEdge("check", func(ctx context.Context, state MyState) string {
//	    if state.Count > 10 {
//	        return "high"
//	    }
//	    return "low"
//	}, "high", "low")
func (g *StateGraph[S]) AddConditionalEdge(from string, condition func(ctx context.Context, state S) string, destinations ...string) {
	g.conditionalEdges[from] = condition
	g.routeTargets[from] = destinations
}

// AddConditionalEdges adds a router that returns the tasks of the next
// superstep. Each Send with an argument becomes its own task; a Send with a
// nil argument is a plain jump.
func (g *StateGraph[S]) AddConditionalEdges(from string, router func(ctx context.Context, state S) ([]Send, error), destinations ...string) {
	g.sendRouters[from] = router
	g.routeTargets[from] = destinations
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRetryPolicy sets the retry policy for the graph.
func (g *StateGraph[S]) SetRetryPolicy(policy *RetryPolicy) {
	g.retryPolicy = policy
}

// SetSchema sets the state schema for the graph.
func (g *StateGraph[S]) SetSchema(schema StateSchema[S]) {
	g.Schema = schema
}

// HasNode reports whether name is a node of the graph.
func (g *StateGraph[S]) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Compile validates the graph and returns a StateRunnable instance.
func (g *StateGraph[S]) Compile() (*StateRunnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if !g.HasNode(g.entryPoint) {
		return nil, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}
	for _, edge := range g.edges {
		if !g.HasNode(edge.From) {
			return nil, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, edge.From)
		}
		if edge.To != END && !g.HasNode(edge.To) {
			return nil, fmt.Errorf("%w: edge target %s", ErrNodeNotFound, edge.To)
		}
	}

	return &StateRunnable[S]{graph: g}, nil
}

// StateRunnable represents a compiled state graph that can be invoked with type safety.
type StateRunnable[S any] struct {
	graph  *StateGraph[S]
	tracer *Tracer
}

// SetTracer sets a tracer for observability.
func (r *StateRunnable[S]) SetTracer(tracer *Tracer) {
	r.tracer = tracer
}

// GetTracer returns the current tracer.
func (r *StateRunnable[S]) GetTracer() *Tracer {
	return r.tracer
}

// WithTracer returns a new StateRunnable with the given tracer.
func (r *StateRunnable[S]) WithTracer(tracer *Tracer) *StateRunnable[S] {
	return &StateRunnable[S]{
		graph:  r.graph,
		tracer: tracer,
	}
}

// Graph returns the graph the runnable was compiled from.
func (r *StateRunnable[S]) Graph() *StateGraph[S] {
	return r.graph
}

// task is one unit of work in a superstep.
type task struct {
	node string
	arg  any
	send bool
}

func plainTasks(nodes []string) []task {
	tasks := make([]task, 0, len(nodes))
	for _, n := range nodes {
		tasks = append(tasks, task{node: n})
	}
	return tasks
}

func taskNames(tasks []task) []string {
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.node)
	}
	return names
}

func distinctNames(tasks []task) []string {
	var names []string
	for _, t := range tasks {
		if !slices.Contains(names, t.node) {
			names = append(names, t.node)
		}
	}
	return names
}

// Invoke executes the compiled state graph with the given input state.
func (r *StateRunnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	return r.InvokeWithConfig(ctx, initialState, nil)
}

// InvokeWithConfig executes the compiled state graph with the given input state and config.
// On interruption it returns the state reached so far together with a *GraphInterrupt.
func (r *StateRunnable[S]) InvokeWithConfig(ctx context.Context, initialState S, config *Config) (S, error) {
	state, err := r.initState(initialState)
	if err != nil {
		var zero S
		return zero, err
	}

	if config != nil && len(config.ResumeFrom) > 0 {
		return r.execute(ctx, state, plainTasks(config.ResumeFrom), config, true)
	}
	return r.execute(ctx, state, []task{{node: r.graph.entryPoint}}, config, false)
}

func (r *StateRunnable[S]) initState(input S) (S, error) {
	if r.graph.Schema == nil {
		return input, nil
	}
	state, err := r.graph.Schema.Update(r.graph.Schema.Init(), input)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("failed to initialize state with schema: %w", err)
	}
	return state, nil
}

// execute runs supersteps starting with tasks. When resumed is set the
// first step is not subject to InterruptBefore.
func (r *StateRunnable[S]) execute(ctx context.Context, state S, tasks []task, config *Config, resumed bool) (S, error) {
	runID := uuid.NewString()

	if config != nil {
		ctx = WithConfig(ctx, config)
		if config.ResumeValue != nil {
			ctx = WithResumeValue(ctx, config.ResumeValue)
		}
	}

	r.notifyChainStart(ctx, config, state, runID)

	var graphSpan *TraceSpan
	if r.tracer != nil {
		graphSpan = r.tracer.StartSpan(ctx, TraceEventGraphStart, "graph")
		graphSpan.State = state
		if threadID := config.ThreadID(); threadID != "" {
			graphSpan.Metadata["thread_id"] = threadID
		}
		ctx = ContextWithSpan(withTracer(ctx, r.tracer), graphSpan)
	}

	fail := func(err error) (S, error) {
		if config != nil {
			for _, cb := range config.Callbacks {
				cb.OnChainError(ctx, err, runID)
			}
		}
		if graphSpan != nil {
			r.tracer.EndSpan(ctx, graphSpan, state, err)
		}
		var zero S
		return zero, err
	}
	interrupt := func(gi *GraphInterrupt) (S, error) {
		if graphSpan != nil {
			graphSpan.Metadata["interrupted_at"] = gi.Node
			r.tracer.EndSpan(ctx, graphSpan, state, nil)
		}
		return state, gi
	}

	if !resumed {
		r.notifyStep(ctx, config, StepInfo{
			Step:  0,
			Node:  START,
			Next:  taskNames(tasks),
			State: state,
		})
	}

	limit := config.recursionLimit()
	for step := 1; ; step++ {
		tasks = slices.DeleteFunc(tasks, func(t task) bool { return t.node == END })
		if len(tasks) == 0 {
			break
		}
		if step > limit {
			return fail(fmt.Errorf("%w: %d supersteps", ErrRecursionLimit, limit))
		}

		if config != nil && !(resumed && step == 1) {
			for _, t := range tasks {
				if slices.Contains(config.InterruptBefore, t.node) {
					return interrupt(&GraphInterrupt{Node: t.node, State: state, NextNodes: taskNames(tasks)})
				}
			}
		}

		results, errs := r.runTasks(ctx, tasks, state, config, runID)
		for _, err := range errs {
			if err == nil {
				continue
			}
			var nodeInterrupt *NodeInterrupt
			if errors.As(err, &nodeInterrupt) {
				return interrupt(&GraphInterrupt{
					Node:           nodeInterrupt.Node,
					State:          state,
					NextNodes:      taskNames(tasks),
					InterruptValue: nodeInterrupt.Value,
				})
			}
			return fail(err)
		}

		var err error
		state, err = r.mergeState(state, results)
		if err != nil {
			return fail(err)
		}

		completed := distinctNames(tasks)
		next, err := r.nextTasks(ctx, completed, state, true)
		if err != nil {
			return fail(err)
		}

		r.notifyStep(ctx, config, StepInfo{
			Step:      step,
			Node:      stepLabel(completed),
			Completed: completed,
			Next:      taskNames(next),
			State:     state,
		})

		if config != nil {
			for _, node := range completed {
				if slices.Contains(config.InterruptAfter, node) {
					return interrupt(&GraphInterrupt{Node: node, State: state, NextNodes: taskNames(next)})
				}
			}
		}

		tasks = next
	}

	if graphSpan != nil {
		r.tracer.EndSpan(ctx, graphSpan, state, nil)
	}
	if config != nil {
		outputs := convertStateToMap(state)
		for _, cb := range config.Callbacks {
			cb.OnChainEnd(ctx, outputs, runID)
		}
	}

	return state, nil
}

// runTasks executes the tasks of one superstep in parallel. Results and
// errors are indexed like tasks.
func (r *StateRunnable[S]) runTasks(ctx context.Context, tasks []task, state S, config *Config, runID string) ([]S, []error) {
	var wg sync.WaitGroup
	results := make([]S, len(tasks))
	errs := make([]error, len(tasks))

	for i, t := range tasks {
		node, ok := r.graph.nodes[t.node]
		if !ok {
			errs[i] = fmt.Errorf("%w: %s", ErrNodeNotFound, t.node)
			continue
		}

		SafeGo(&wg, func() {
			results[i], errs[i] = r.runTask(ctx, node, t, state, config, runID)
		}, func(panicVal any) {
			errs[i] = fmt.Errorf("panic in node %s: %v", t.node, panicVal)
		})
	}
	wg.Wait()

	return results, errs
}

func (r *StateRunnable[S]) runTask(ctx context.Context, node Node[S], t task, state S, config *Config, runID string) (S, error) {
	input := state
	if t.send {
		ctx = withSendArg(ctx, t.arg)
		if s, ok := t.arg.(S); ok {
			input = s
		}
	}

	var nodeSpan *TraceSpan
	if r.tracer != nil {
		nodeSpan = r.tracer.StartSpan(ctx, TraceEventNodeStart, node.Name)
		ctx = ContextWithSpan(ctx, nodeSpan)
	}

	nodeRunID := uuid.NewString()
	if config != nil && len(config.Callbacks) > 0 {
		serialized := map[string]any{
			"name": node.Name,
			"type": "tool",
		}
		inputStr := convertStateToString(input)
		for _, cb := range config.Callbacks {
			cb.OnToolStart(ctx, serialized, inputStr, nodeRunID, &runID, config.Tags, config.Metadata)
		}
	}

	result, err := Retry(ctx, r.graph.retryPolicy, func(ctx context.Context) (S, error) {
		return node.Function(ctx, input)
	})

	if nodeSpan != nil {
		r.tracer.EndSpan(ctx, nodeSpan, result, err)
	}

	if err != nil {
		var nodeInterrupt *NodeInterrupt
		if errors.As(err, &nodeInterrupt) {
			nodeInterrupt.Node = node.Name
		}
		return result, fmt.Errorf("error in node %s: %w", node.Name, err)
	}

	if config != nil && len(config.Callbacks) > 0 {
		output := convertStateToString(result)
		for _, cb := range config.Callbacks {
			cb.OnToolEnd(ctx, output, nodeRunID)
		}
	}

	return result, nil
}

// mergeState merges task results into the current state in task order.
// Without a schema the last result replaces the state.
func (r *StateRunnable[S]) mergeState(current S, results []S) (S, error) {
	if r.graph.Schema == nil {
		if len(results) == 0 {
			return current, nil
		}
		return results[len(results)-1], nil
	}

	state := current
	for _, res := range results {
		var err error
		state, err = r.graph.Schema.Update(state, res)
		if err != nil {
			var zero S
			return zero, fmt.Errorf("schema update failed: %w", err)
		}
	}
	return state, nil
}

// tasksAfter computes the tasks that follow the completed nodes. No
// completed nodes means the run has not started yet.
func (r *StateRunnable[S]) tasksAfter(ctx context.Context, completed []string, state S) ([]task, error) {
	if len(completed) == 0 {
		return []task{{node: r.graph.entryPoint}}, nil
	}
	return r.nextTasks(ctx, completed, state, false)
}

// nextTasks evaluates the routing of every completed node. Plain targets are
// deduplicated; Send tasks are kept one per Send. END is dropped.
func (r *StateRunnable[S]) nextTasks(ctx context.Context, completed []string, state S, trace bool) ([]task, error) {
	var next []task
	seen := make(map[string]bool)

	traverse := func(from, to string) {
		if trace && r.tracer != nil {
			r.tracer.TraceEdgeTraversal(ctx, from, to)
		}
	}
	addPlain := func(from, to string) {
		traverse(from, to)
		if to == END || seen[to] {
			return
		}
		seen[to] = true
		next = append(next, task{node: to})
	}

	for _, name := range completed {
		if router, ok := r.graph.sendRouters[name]; ok {
			sends, err := router(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("routing from %s: %w", name, err)
			}
			for _, s := range sends {
				if s.Arg == nil {
					addPlain(name, s.Node)
					continue
				}
				traverse(name, s.Node)
				if s.Node != END {
					next = append(next, task{node: s.Node, arg: s.Arg, send: true})
				}
			}
			continue
		}

		if condition, ok := r.graph.conditionalEdges[name]; ok {
			to := condition(ctx, state)
			if to == "" {
				return nil, fmt.Errorf("%w from %s", ErrEmptyRoute, name)
			}
			addPlain(name, to)
			continue
		}

		found := false
		for _, edge := range r.graph.edges {
			if edge.From == name {
				found = true
				addPlain(name, edge.To)
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name)
		}
	}

	return next, nil
}

func (r *StateRunnable[S]) notifyChainStart(ctx context.Context, config *Config, state S, runID string) {
	if config == nil || len(config.Callbacks) == 0 {
		return
	}
	serialized := map[string]any{
		"name": "graph",
		"type": "chain",
	}
	inputs := convertStateToMap(state)
	for _, cb := range config.Callbacks {
		cb.OnChainStart(ctx, serialized, inputs, runID, nil, config.Tags, config.Metadata)
	}
}

func (r *StateRunnable[S]) notifyStep(ctx context.Context, config *Config, step StepInfo) {
	if config == nil {
		return
	}
	for _, cb := range config.Callbacks {
		if gcb, ok := cb.(GraphCallbackHandler); ok {
			gcb.OnGraphStep(ctx, step)
		}
	}
}
