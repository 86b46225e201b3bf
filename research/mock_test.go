package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/digestai/digestai/search"
)

// scriptedModel answers by recognizing the system prompt, so it stays
// deterministic when interviews call it concurrently.
type scriptedModel struct {
	mu        sync.Mutex
	calls     []string
	jsonCalls int
	// analysts overrides the analyst JSON answer when set.
	analysts string
	// fail makes every call matching the substring return an error.
	fail string
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	system := ""
	if len(messages) > 0 {
		system = textOf(messages[0])
	}

	m.mu.Lock()
	m.calls = append(m.calls, system)
	if opts.JSONMode {
		m.jsonCalls++
	}
	fail, analysts := m.fail, m.analysts
	m.mu.Unlock()

	if fail != "" && strings.Contains(system, fail) {
		return nil, errors.New("scripted failure")
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: answerFor(system, analysts)}},
	}, nil
}

func (m *scriptedModel) setFail(substr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = substr
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *scriptedModel) count(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

const defaultAnalystsJSON = "```json\n" + `{"analysts": [
	{"affiliation": "MIT", "name": "Ada", "role": "Researcher", "description": "focus-hardware"},
	{"affiliation": "ACME", "name": "Bob", "role": "Engineer", "description": "focus-software"},
	{"affiliation": "Gov", "name": "Cy", "role": "Regulator", "description": "focus-policy"}
]}` + "\n```"

func answerFor(system, analysts string) string {
	switch {
	case strings.Contains(system, "outline of a report template"):
		return "# Template\n## Introduction"
	case strings.Contains(system, "revising an existing report template"):
		return "# Revised Template\n## Introduction\n## Glossary"
	case strings.Contains(system, "AI analyst personas"):
		if strings.Contains(system, "economist") {
			return `{"analysts": [{"affiliation": "LSE", "name": "Eve", "role": "Economist", "description": "focus-economy"}]}`
		}
		if analysts != "" {
			return analysts
		}
		return defaultAnalystsJSON
	case strings.Contains(system, "well-structured query"):
		return `{"search_query": "quantum error correction"}`
	case strings.Contains(system, "interviewing an expert"):
		return "I'm an analyst. What changed recently?"
	case strings.Contains(system, "expert being interviewed"):
		return "Plenty changed [1]."
	case strings.Contains(system, "easily digestible section"):
		for _, focus := range []string{"focus-hardware", "focus-software", "focus-policy", "focus-economy"} {
			if strings.Contains(system, focus) {
				return "## Section " + focus
			}
		}
		return "## Section unknown"
	case strings.Contains(system, "overall topic"):
		return fmt.Sprintf("REPORT with %d sections", strings.Count(system, "## Section"))
	}
	return "unexpected prompt"
}

// recordingSearcher returns fixed documents and records queries.
type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	docs    []search.Document
	err     error
}

func (s *recordingSearcher) Search(ctx context.Context, query string) ([]search.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.docs, s.err
}

func (s *recordingSearcher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func testSearchers() (Searchers, *recordingSearcher, *recordingSearcher, *recordingSearcher) {
	web := &recordingSearcher{docs: []search.Document{{Href: "https://web.example", Content: "web"}}}
	wiki := &recordingSearcher{docs: []search.Document{{Source: "https://en.wikipedia.org/wiki/Q", Page: "Q", Content: "wiki"}}}
	bing := &recordingSearcher{docs: []search.Document{{Source: search.BingSource, Href: "https://bing.example", Content: "bing"}}}
	return Searchers{Web: web, Wikipedia: wiki, Bing: bing}, web, wiki, bing
}
