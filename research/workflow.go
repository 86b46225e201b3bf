package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/digestai/digestai/graph"
	"github.com/digestai/digestai/search"
)

// Node names of the research graph.
const (
	NodeStartTemplateGeneration    = "start_template_generation"
	NodeGenerateTemplate           = "generate_template"
	NodeCompleteTemplateGeneration = "complete_template_generation"
	NodeTemplateFeedback           = "template_feedback"
	NodeStartAnalystCreation       = "start_analyst_creation"
	NodeCreateAnalysts             = "create_analysts"
	NodeCompleteAnalystCreation    = "complete_analyst_creation"
	NodeHumanFeedback              = "human_feedback"
	NodePreResearchMessage         = "pre_research_message"
	NodeConductInterview           = "conduct_interview"
	NodePreReportMessage           = "pre_report_message"
	NodeWriteCompleteReport        = "write_complete_report"
)

var (
	ErrMissingTopic    = errors.New("topic or analysts not found in state")
	ErrMissingTemplate = errors.New("report template not found in state")
	ErrMissingAnalyst  = errors.New("analyst not found in state")
	ErrNoAnalysts      = errors.New("model created no analysts")
)

// Searchers are the retrieval providers used by interviews. Any of them may
// be nil; a missing provider contributes NoResults.
type Searchers struct {
	Web       search.Searcher
	Wikipedia search.Searcher
	Bing      search.Searcher
}

// Workflow builds the research graphs around a model and search providers.
type Workflow struct {
	model     llms.Model
	searchers Searchers
	cfg       Configuration
}

// NewWorkflow creates a workflow.
func NewWorkflow(model llms.Model, searchers Searchers, opts ...Option) (*Workflow, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	return &Workflow{
		model:     model,
		searchers: searchers,
		cfg:       newConfiguration(opts),
	}, nil
}

// Configuration returns the effective configuration.
func (w *Workflow) Configuration() Configuration {
	return w.cfg
}

// llmNode bounds fn by the configured node timeout.
func llmNode[S any](w *Workflow, name string, fn graph.NodeFunc[S]) graph.NodeFunc[S] {
	if w.cfg.NodeTimeout <= 0 {
		return fn
	}
	return graph.WithTimeout(name, fn, w.cfg.NodeTimeout)
}

func progress(message string) graph.NodeFunc[ResearchState] {
	return func(context.Context, ResearchState) (ResearchState, error) {
		return ResearchState{ProgressMessages: []string{message}}, nil
	}
}

func pause(context.Context, ResearchState) (ResearchState, error) {
	return ResearchState{}, nil
}

// BuildGraph assembles the outer research graph. Callers interrupt before
// NodeTemplateFeedback and NodeHumanFeedback to collect feedback.
func (w *Workflow) BuildGraph() (*graph.StateGraph[ResearchState], error) {
	g := graph.NewStateGraph[ResearchState]()
	g.SetSchema(NewResearchSchema())
	g.SetRetryPolicy(w.cfg.RetryPolicy)

	g.AddNode(NodeStartTemplateGeneration, "Announce template generation", progress(ProgressTemplateStart))
	g.AddNode(NodeGenerateTemplate, "Generate or revise the report template",
		llmNode(w, NodeGenerateTemplate, w.generateTemplate))
	g.AddNode(NodeCompleteTemplateGeneration, "Announce the template", progress(ProgressTemplateDone))
	g.AddNode(NodeTemplateFeedback, "Wait for template feedback", pause)
	g.AddNode(NodeStartAnalystCreation, "Announce analyst creation", progress(ProgressAnalystsStart))
	g.AddNode(NodeCreateAnalysts, "Create analyst personas",
		llmNode(w, NodeCreateAnalysts, w.createAnalysts))
	g.AddNode(NodeCompleteAnalystCreation, "Announce the analysts", progress(ProgressAnalystsDone))
	g.AddNode(NodeHumanFeedback, "Wait for analyst feedback", pause)
	g.AddNode(NodePreResearchMessage, "Announce the interviews", progress(ProgressResearchStart))
	if err := graph.AddSubgraph(g, NodeConductInterview, w.BuildInterviewGraph(), interviewInput, interviewOutput); err != nil {
		return nil, err
	}
	g.AddNode(NodePreReportMessage, "Announce report writing", progress(ProgressReportStart))
	g.AddNode(NodeWriteCompleteReport, "Write the final report",
		llmNode(w, NodeWriteCompleteReport, w.writeCompleteReport))

	g.SetEntryPoint(NodeStartTemplateGeneration)
	g.AddEdge(NodeStartTemplateGeneration, NodeGenerateTemplate)
	g.AddEdge(NodeGenerateTemplate, NodeCompleteTemplateGeneration)
	g.AddEdge(NodeCompleteTemplateGeneration, NodeTemplateFeedback)
	g.AddConditionalEdge(NodeTemplateFeedback, routeTemplateFeedback, NodeGenerateTemplate, NodeStartAnalystCreation)
	g.AddEdge(NodeStartAnalystCreation, NodeCreateAnalysts)
	g.AddEdge(NodeCreateAnalysts, NodeCompleteAnalystCreation)
	g.AddEdge(NodeCompleteAnalystCreation, NodeHumanFeedback)
	g.AddEdge(NodeHumanFeedback, NodePreResearchMessage)
	g.AddConditionalEdges(NodePreResearchMessage, w.initiateAllInterviews, NodeCreateAnalysts, NodeConductInterview)
	g.AddEdge(NodeConductInterview, NodePreReportMessage)
	g.AddEdge(NodePreReportMessage, NodeWriteCompleteReport)
	g.AddEdge(NodeWriteCompleteReport, graph.END)

	return g, nil
}

func (w *Workflow) generateTemplate(ctx context.Context, state ResearchState) (ResearchState, error) {
	var messages []llms.MessageContent
	if state.ReportTemplate == "" || isApproval(state.TemplateFeedback) {
		messages = []llms.MessageContent{
			systemMessage(render(templateInstructions, "topic", state.Topic)),
			humanMessage(generateTemplateRequest),
		}
	} else {
		messages = []llms.MessageContent{
			systemMessage(render(templateModificationInstructions,
				"current_template", state.ReportTemplate,
				"template_feedback", state.TemplateFeedback)),
			humanMessage(modifyTemplateRequest),
		}
	}

	template, err := w.generate(ctx, messages)
	if err != nil {
		return ResearchState{}, fmt.Errorf("generate template: %w", err)
	}
	return ResearchState{ReportTemplate: template}, nil
}

func routeTemplateFeedback(_ context.Context, state ResearchState) string {
	if isApproval(state.TemplateFeedback) {
		return NodeStartAnalystCreation
	}
	return NodeGenerateTemplate
}

func (w *Workflow) createAnalysts(ctx context.Context, state ResearchState) (ResearchState, error) {
	limit := state.MaxAnalysts
	if limit <= 0 {
		limit = w.cfg.MaxAnalysts
	}

	feedback := state.HumanAnalystFeedback
	if isApproval(feedback) {
		feedback = ""
	}

	perspectives, err := generateJSON[Perspectives](ctx, w, []llms.MessageContent{
		systemMessage(render(analystInstructions,
			"topic", state.Topic,
			"human_analyst_feedback", feedback,
			"max_analysts", fmt.Sprint(limit))),
		humanMessage(generateAnalystsRequest),
	}, perspectivesFormat)
	if err != nil {
		return ResearchState{}, fmt.Errorf("create analysts: %w", err)
	}

	analysts := perspectives.Analysts
	if len(analysts) == 0 {
		return ResearchState{}, ErrNoAnalysts
	}
	if len(analysts) > limit {
		analysts = analysts[:limit]
	}
	return ResearchState{Analysts: analysts}, nil
}

// initiateAllInterviews sends one interview per analyst once the team is
// approved, and loops back to analyst creation otherwise.
func (w *Workflow) initiateAllInterviews(_ context.Context, state ResearchState) ([]graph.Send, error) {
	if !isApproval(state.HumanAnalystFeedback) {
		return []graph.Send{{Node: NodeCreateAnalysts}}, nil
	}
	if state.Topic == "" || len(state.Analysts) == 0 {
		return nil, ErrMissingTopic
	}
	if state.ReportTemplate == "" {
		return nil, ErrMissingTemplate
	}

	opening := render(interviewOpening, "topic", state.Topic)
	sends := make([]graph.Send, 0, len(state.Analysts))
	for _, analyst := range state.Analysts {
		sends = append(sends, graph.NewSend(NodeConductInterview, InterviewState{
			Analyst:     &analyst,
			MaxNumTurns: w.cfg.MaxNumTurns,
			Messages:    []Message{{Role: RoleHuman, Content: opening}},
		}))
	}
	return sends, nil
}

func (w *Workflow) writeCompleteReport(ctx context.Context, state ResearchState) (ResearchState, error) {
	if state.ReportTemplate == "" {
		return ResearchState{}, ErrMissingTemplate
	}

	report, err := w.generate(ctx, []llms.MessageContent{
		systemMessage(render(reportWriterInstructions,
			"topic", state.Topic,
			"template", state.ReportTemplate,
			"context", strings.Join(state.Sections, "\n\n"))),
		humanMessage(writeReportRequest),
	})
	if err != nil {
		return ResearchState{}, fmt.Errorf("write report: %w", err)
	}

	return ResearchState{
		FinalReport:      report,
		ProgressMessages: []string{ProgressReportComplete},
	}, nil
}
