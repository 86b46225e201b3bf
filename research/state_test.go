package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalystPersona(t *testing.T) {
	a := Analyst{Affiliation: "MIT", Name: "Ada", Role: "Researcher", Description: "Qubits"}

	assert.Equal(t, "Name: Ada\nRole: Researcher\nAffiliation: MIT\nDescription: Qubits\n", a.Persona())
}

func TestMergeResearchState(t *testing.T) {
	current := ResearchState{
		Topic:            "t",
		ReportTemplate:   "old",
		Analysts:         []Analyst{{Name: "Ada"}},
		Sections:         []string{"s1"},
		ProgressMessages: []string{"p1"},
	}

	merged, err := mergeResearchState(current, ResearchState{
		Sections:         []string{"s2"},
		ProgressMessages: []string{"p2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "t", merged.Topic, "empty scalars keep the current value")
	assert.Equal(t, "old", merged.ReportTemplate)
	assert.Equal(t, []Analyst{{Name: "Ada"}}, merged.Analysts, "nil analysts keep the team")
	assert.Equal(t, []string{"s1", "s2"}, merged.Sections)
	assert.Equal(t, []string{"p1", "p2"}, merged.ProgressMessages)

	merged, err = mergeResearchState(merged, ResearchState{
		ReportTemplate: "new",
		Analysts:       []Analyst{{Name: "Bob"}, {Name: "Cy"}},
		MaxAnalysts:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, "new", merged.ReportTemplate)
	assert.Equal(t, []Analyst{{Name: "Bob"}, {Name: "Cy"}}, merged.Analysts)
	assert.Equal(t, 3, merged.MaxAnalysts)

	// appends never alias the previous state's backing array
	first, _ := mergeResearchState(ResearchState{Sections: make([]string, 1, 4)}, ResearchState{Sections: []string{"a"}})
	second, _ := mergeResearchState(ResearchState{Sections: make([]string, 1, 4)}, ResearchState{Sections: []string{"b"}})
	assert.Equal(t, "a", first.Sections[1])
	assert.Equal(t, "b", second.Sections[1])
}

func TestMergeInterviewState(t *testing.T) {
	a := &Analyst{Name: "Ada"}
	current := InterviewState{MaxNumTurns: 2, Analyst: a, Messages: []Message{{Role: RoleHuman, Content: "hi"}}}

	merged, err := mergeInterviewState(current, InterviewState{
		Messages: []Message{{Role: RoleAI, Content: "q"}},
		Context:  []string{"doc"},
	})
	require.NoError(t, err)
	assert.Same(t, a, merged.Analyst)
	assert.Equal(t, 2, merged.MaxNumTurns)
	assert.Len(t, merged.Messages, 2)
	assert.Equal(t, []string{"doc"}, merged.Context)
}

func TestBufferString(t *testing.T) {
	out := BufferString([]Message{
		{Role: RoleHuman, Content: "So you said?"},
		{Role: RoleAI, Content: "Question"},
		{Role: RoleAI, Name: ExpertName, Content: "Answer"},
	})

	assert.Equal(t, "Human: So you said?\nAI: Question\nAI: Answer", out)
	assert.Empty(t, BufferString(nil))
}

func TestIsApproval(t *testing.T) {
	assert.True(t, isApproval(""))
	assert.True(t, isApproval(" approve "))
	assert.True(t, isApproval("APPROVE"))
	assert.False(t, isApproval("approve, but add a glossary"))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "a 1 b {c}", render("a {x} b {c}", "x", "1"))
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON(` {"a":1} `))
}
