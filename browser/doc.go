// Package browser streams browser-automation runs to clients.
//
// A Runner creates a remote browser session, hands it to an Agent, polls the
// agent's history while it works and writes every new step to a Sink as an
// NDJSON event. When the agent finishes, the Runner emits summary sections
// and the completion event, then stores the run in a history.Store and
// optionally emails the user.
//
// The decision loop itself lives behind the Agent interface. The package
// ships RodAgent, a minimal agent that opens the task's target page over the
// Chrome DevTools protocol and extracts its text.
package browser
