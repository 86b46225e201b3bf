// Package graph provides the typed state-graph runtime that drives the
// research workflow.
//
// A StateGraph[S] is a set of named nodes joined by static edges,
// single-target conditional edges and Send routers. A compiled graph runs in
// supersteps: every task of a step executes concurrently, the partial
// results are merged through the graph's StateSchema in task order, and the
// routing functions of the completed nodes decide the next step.
//
// # Fan-out and fan-in
//
// Plain next nodes are deduplicated, so a node reached from several parallel
// branches runs once in the following step. A router registered with
// AddConditionalEdges returns Send values; each Send becomes its own task
// and is never deduplicated, which allows one task per item:
//
//	g.AddConditionalEdges("plan", func(ctx context.Context, s State) ([]graph.Send, error) {
//	    sends := make([]graph.Send, 0, len(s.Items))
//	    for _, item := range s.Items {
//	        sends = append(sends, graph.NewSend("work", item))
//	    }
//	    return sends, nil
//	}, "work")
//
// A node started by a Send reads its argument with SendArg.
//
// # Human in the loop
//
// Config.InterruptBefore and Config.InterruptAfter stop execution with a
// *GraphInterrupt. A node may also call Interrupt to pause dynamically. With
// a CheckpointableRunnable the state after every superstep is written to a
// store.CheckpointStore, and a later InvokeWithConfig on the same thread
// resumes where the run stopped. UpdateState lets callers inject values as
// if a node had produced them.
//
// # Observability
//
// CallbackHandler and GraphCallbackHandler receive chain, node and step
// notifications. A Tracer emits graph, node and edge spans to TraceHooks.
// Exporter renders the graph as Mermaid, DOT or ASCII.
package graph
