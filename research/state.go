package research

import (
	"fmt"
	"slices"
	"strings"

	"github.com/digestai/digestai/graph"
)

// Analyst is a synthetic persona that drives one interview.
type Analyst struct {
	Affiliation string `json:"affiliation"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
}

// Persona describes the analyst for prompts.
func (a Analyst) Persona() string {
	return fmt.Sprintf("Name: %s\nRole: %s\nAffiliation: %s\nDescription: %s\n",
		a.Name, a.Role, a.Affiliation, a.Description)
}

// Perspectives is the structured output of analyst creation.
type Perspectives struct {
	Analysts []Analyst `json:"analysts"`
}

// SearchQuery is the structured output of query writing.
type SearchQuery struct {
	SearchQuery string `json:"search_query"`
}

// ResearchState is the state of the outer research graph.
type ResearchState struct {
	Topic                string    `json:"topic"`
	MaxAnalysts          int       `json:"max_analysts,omitempty"`
	HumanAnalystFeedback string    `json:"human_analyst_feedback,omitempty"`
	TemplateFeedback     string    `json:"template_feedback,omitempty"`
	Analysts             []Analyst `json:"analysts,omitempty"`
	Sections             []string  `json:"sections,omitempty"`
	ReportTemplate       string    `json:"report_template,omitempty"`
	FinalReport          string    `json:"final_report,omitempty"`
	ProgressMessages     []string  `json:"progress_messages,omitempty"`
}

// mergeResearchState overwrites scalars with non-empty updates, replaces the
// analysts when the update carries a list and appends sections and progress.
func mergeResearchState(current, update ResearchState) (ResearchState, error) {
	if update.Topic != "" {
		current.Topic = update.Topic
	}
	if update.MaxAnalysts > 0 {
		current.MaxAnalysts = update.MaxAnalysts
	}
	if update.HumanAnalystFeedback != "" {
		current.HumanAnalystFeedback = update.HumanAnalystFeedback
	}
	if update.TemplateFeedback != "" {
		current.TemplateFeedback = update.TemplateFeedback
	}
	if update.Analysts != nil {
		current.Analysts = slices.Clone(update.Analysts)
	}
	if update.ReportTemplate != "" {
		current.ReportTemplate = update.ReportTemplate
	}
	if update.FinalReport != "" {
		current.FinalReport = update.FinalReport
	}
	current.Sections = slices.Concat(current.Sections, update.Sections)
	current.ProgressMessages = slices.Concat(current.ProgressMessages, update.ProgressMessages)
	return current, nil
}

// NewResearchSchema returns the reducer schema of ResearchState.
func NewResearchSchema() graph.StateSchema[ResearchState] {
	return graph.NewStructSchema(ResearchState{}, mergeResearchState)
}

// Message is one turn of an interview.
type Message struct {
	Role    MessageRole `json:"role"`
	Name    string      `json:"name,omitempty"`
	Content string      `json:"content"`
}

// MessageRole is the speaker of a Message.
type MessageRole string

const (
	RoleHuman MessageRole = "human"
	RoleAI    MessageRole = "ai"
)

// ExpertName names the AI messages written by the expert.
const ExpertName = "expert"

// InterviewState is the state of one interview sub-workflow.
type InterviewState struct {
	MaxNumTurns int       `json:"max_num_turns"`
	Messages    []Message `json:"messages,omitempty"`
	Context     []string  `json:"context,omitempty"`
	Analyst     *Analyst  `json:"analyst,omitempty"`
	Interview   string    `json:"interview,omitempty"`
	Sections    []string  `json:"sections,omitempty"`
}

func mergeInterviewState(current, update InterviewState) (InterviewState, error) {
	if update.MaxNumTurns > 0 {
		current.MaxNumTurns = update.MaxNumTurns
	}
	if update.Analyst != nil {
		current.Analyst = update.Analyst
	}
	if update.Interview != "" {
		current.Interview = update.Interview
	}
	current.Messages = slices.Concat(current.Messages, update.Messages)
	current.Context = slices.Concat(current.Context, update.Context)
	current.Sections = slices.Concat(current.Sections, update.Sections)
	return current, nil
}

// NewInterviewSchema returns the reducer schema of InterviewState.
func NewInterviewSchema() graph.StateSchema[InterviewState] {
	return graph.NewStructSchema(InterviewState{}, mergeInterviewState)
}

// BufferString renders messages as a "Human: ..." / "AI: ..." transcript.
func BufferString(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		prefix := "Human"
		if m.Role == RoleAI {
			prefix = "AI"
		}
		lines = append(lines, prefix+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// isApproval reports whether feedback approves the current proposal.
func isApproval(feedback string) bool {
	feedback = strings.TrimSpace(feedback)
	return feedback == "" || strings.EqualFold(feedback, ApproveFeedback)
}
