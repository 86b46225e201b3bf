package research

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/digestai/digestai/graph"
	"github.com/digestai/digestai/log"
	"github.com/digestai/digestai/search"
)

// Node names of the interview sub-workflow.
const (
	NodeAskQuestion     = "ask_question"
	NodeSearchWeb       = "search_web"
	NodeSearchWikipedia = "search_wikipedia"
	NodeSearchBing      = "search_bing"
	NodeAnswerQuestion  = "answer_question"
	NodeSaveInterview   = "save_interview"
	NodeWriteSection    = "write_section"
)

// BuildInterviewGraph assembles one analyst's interview: a question fans out
// to three searches that fan back in to the expert's answer, repeated until
// the turn budget is spent, then the transcript becomes a report section.
func (w *Workflow) BuildInterviewGraph() *graph.StateGraph[InterviewState] {
	g := graph.NewStateGraph[InterviewState]()
	g.SetSchema(NewInterviewSchema())
	g.SetRetryPolicy(w.cfg.RetryPolicy)

	web := search.Fallback(w.searchers.Web, w.searchers.Bing)
	wiki := search.Fallback(w.searchers.Wikipedia, w.searchers.Bing)

	g.AddNode(NodeAskQuestion, "Analyst asks a question", llmNode(w, NodeAskQuestion, w.askQuestion))
	g.AddNode(NodeSearchWeb, "Search the web", w.searchNode(NodeSearchWeb, web))
	g.AddNode(NodeSearchWikipedia, "Search Wikipedia", w.searchNode(NodeSearchWikipedia, wiki))
	g.AddNode(NodeSearchBing, "Search Bing", w.searchNode(NodeSearchBing, w.searchers.Bing))
	g.AddNode(NodeAnswerQuestion, "Expert answers from the retrieved context", llmNode(w, NodeAnswerQuestion, w.answerQuestion))
	g.AddNode(NodeSaveInterview, "Save the transcript", saveInterview)
	g.AddNode(NodeWriteSection, "Write a report section", llmNode(w, NodeWriteSection, w.writeSection))

	g.SetEntryPoint(NodeAskQuestion)
	for _, s := range []string{NodeSearchWeb, NodeSearchWikipedia, NodeSearchBing} {
		g.AddEdge(NodeAskQuestion, s)
		g.AddEdge(s, NodeAnswerQuestion)
	}
	g.AddConditionalEdge(NodeAnswerQuestion, w.routeMessages, NodeAskQuestion, NodeSaveInterview)
	g.AddEdge(NodeSaveInterview, NodeWriteSection)
	g.AddEdge(NodeWriteSection, graph.END)

	return g
}

// interviewInput reads the per-analyst state delivered by Send.
func interviewInput(ctx context.Context, _ ResearchState) (InterviewState, error) {
	state, ok := graph.SendArg(ctx).(InterviewState)
	if !ok || state.Analyst == nil {
		return InterviewState{}, ErrMissingAnalyst
	}
	return state, nil
}

func interviewOutput(result InterviewState) (ResearchState, error) {
	return ResearchState{Sections: result.Sections}, nil
}

func (w *Workflow) askQuestion(ctx context.Context, state InterviewState) (InterviewState, error) {
	if state.Analyst == nil {
		return InterviewState{}, ErrMissingAnalyst
	}

	messages := append([]llms.MessageContent{
		systemMessage(render(questionInstructions, "goals", state.Analyst.Persona())),
	}, toMessageContents(state.Messages)...)

	question, err := w.generate(ctx, messages)
	if err != nil {
		return InterviewState{}, err
	}
	return InterviewState{Messages: []Message{{Role: RoleAI, Content: question}}}, nil
}

// searchNode writes a query for the conversation and adds the formatted
// results to the context. Failures degrade to search.NoResults.
func (w *Workflow) searchNode(name string, searcher search.Searcher) graph.NodeFunc[InterviewState] {
	return func(ctx context.Context, state InterviewState) (InterviewState, error) {
		docs, err := w.retrieve(ctx, name, searcher, state.Messages)
		if err != nil {
			return InterviewState{}, err
		}
		return InterviewState{Context: []string{docs}}, nil
	}
}

func (w *Workflow) retrieve(ctx context.Context, name string, searcher search.Searcher, messages []Message) (string, error) {
	if searcher == nil {
		return search.NoResults, nil
	}

	query, err := generateJSON[SearchQuery](ctx, w, append([]llms.MessageContent{
		systemMessage(searchInstructions),
	}, toMessageContents(messages)...), searchQueryFormat)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn("%s: failed to write a search query: %v", name, err)
		return search.NoResults, nil
	}
	if strings.TrimSpace(query.SearchQuery) == "" {
		return search.NoResults, nil
	}

	searchCtx := ctx
	if w.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, w.cfg.SearchTimeout)
		defer cancel()
	}

	docs, err := searcher.Search(searchCtx, query.SearchQuery)
	if err != nil || len(docs) == 0 {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn("%s: all searches failed for %q: %v", name, query.SearchQuery, err)
		return search.NoResults, nil
	}
	return search.JoinDocuments(docs), nil
}

func (w *Workflow) answerQuestion(ctx context.Context, state InterviewState) (InterviewState, error) {
	if state.Analyst == nil {
		return InterviewState{}, ErrMissingAnalyst
	}

	messages := append([]llms.MessageContent{
		systemMessage(render(answerInstructions,
			"goals", state.Analyst.Persona(),
			"context", strings.Join(state.Context, "\n\n"))),
	}, toMessageContents(state.Messages)...)

	answer, err := w.generate(ctx, messages)
	if err != nil {
		return InterviewState{}, err
	}
	return InterviewState{Messages: []Message{{Role: RoleAI, Name: ExpertName, Content: answer}}}, nil
}

// routeMessages ends the interview once the expert has answered
// MaxNumTurns times or the analyst said goodbye in the last question.
func (w *Workflow) routeMessages(_ context.Context, state InterviewState) string {
	maxTurns := state.MaxNumTurns
	if maxTurns <= 0 {
		maxTurns = w.cfg.MaxNumTurns
	}

	answers := 0
	for _, m := range state.Messages {
		if m.Role == RoleAI && m.Name == ExpertName {
			answers++
		}
	}
	if answers >= maxTurns {
		return NodeSaveInterview
	}

	if n := len(state.Messages); n >= 2 && strings.Contains(state.Messages[n-2].Content, interviewClosing) {
		return NodeSaveInterview
	}
	return NodeAskQuestion
}

func saveInterview(_ context.Context, state InterviewState) (InterviewState, error) {
	return InterviewState{Interview: BufferString(state.Messages)}, nil
}

func (w *Workflow) writeSection(ctx context.Context, state InterviewState) (InterviewState, error) {
	if state.Analyst == nil {
		return InterviewState{}, ErrMissingAnalyst
	}

	section, err := w.generate(ctx, []llms.MessageContent{
		systemMessage(render(sectionWriterInstructions, "focus", state.Analyst.Description)),
		humanMessage(sectionSourcePrefix + strings.Join(state.Context, "\n\n")),
	})
	if err != nil {
		return InterviewState{}, err
	}
	return InterviewState{Sections: []string{section}}, nil
}
