package graph

// Send directs the runtime to run Node as a separate task in the next
// superstep. Sends are not deduplicated, so a router may start the same node
// once per item. A Send with a nil Arg is a plain jump to Node.
type Send struct {
	Node string
	Arg  any
}

// NewSend creates a Send to node carrying arg.
func NewSend(node string, arg any) Send {
	return Send{Node: node, Arg: arg}
}
