package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/digestai/digestai/graph"
	"github.com/digestai/digestai/research"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	analystStyle  = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1)
)

// researchDriver is the part of research.Assistant the interactive loop uses.
type researchDriver interface {
	Start(ctx context.Context, topic string, opts research.StartOptions) (*research.Snapshot, error)
	SubmitTemplateFeedback(ctx context.Context, threadID, feedback string) (*research.Snapshot, error)
	SubmitAnalystFeedback(ctx context.Context, threadID, feedback string) (*research.Snapshot, error)
	State(ctx context.Context, threadID string) (*research.Snapshot, error)
	Resume(ctx context.Context, threadID string) (*research.Snapshot, error)
}

func newResearchCmd(root *rootOptions) *cobra.Command {
	var (
		topic       string
		threadID    string
		maxAnalysts int
		output      string
	)
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Run an interactive research session in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			out := cmd.OutOrStdout()
			a.assistant.AddCallbackHandler(&progressPrinter{out: out})

			snap, err := interactiveResearch(cmd.Context(), a.assistant, cmd.InOrStdin(), out, topic,
				research.StartOptions{ThreadID: threadID, MaxAnalysts: maxAnalysts})
			if err != nil {
				return err
			}
			if output != "" {
				return writeReport(output, snap.Report)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "research topic (prompted when empty)")
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id (generated when empty)")
	cmd.Flags().IntVar(&maxAnalysts, "max-analysts", 0, "override the analyst team size")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a .md or .html file")
	return cmd
}

// interactiveResearch walks a thread through both feedback stages, reading
// one line of feedback per pause. An empty line approves. A thread id that
// already exists is picked up at its current stage, and a thread left
// in progress by a failed run is resumed.
func interactiveResearch(ctx context.Context, d researchDriver, in io.Reader, out io.Writer, topic string, opts research.StartOptions) (*research.Snapshot, error) {
	lines := bufio.NewScanner(in)
	readLine := func(prompt string) (string, error) {
		fmt.Fprint(out, promptStyle.Render(prompt)+" ")
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(lines.Text()), nil
	}

	snap, err := openThread(ctx, d, opts.ThreadID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		if strings.TrimSpace(topic) == "" {
			if topic, err = readLine("Topic:"); err != nil {
				return nil, err
			}
		}
		if snap, err = d.Start(ctx, topic, opts); err != nil {
			return nil, err
		}
	}
	fmt.Fprintln(out, progressStyle.Render("thread "+snap.ThreadID))

	for {
		switch snap.Stage {
		case research.StageAwaitingTemplateFeedback:
			fmt.Fprintln(out, headerStyle.Render("Report template"))
			fmt.Fprintln(out, snap.Template)
			feedback, err := readLine("Template feedback (enter to approve):")
			if err != nil {
				return nil, err
			}
			if snap, err = d.SubmitTemplateFeedback(ctx, snap.ThreadID, feedback); err != nil {
				return nil, err
			}
		case research.StageAwaitingAnalystFeedback:
			fmt.Fprintln(out, headerStyle.Render("Analysts"))
			for _, analyst := range snap.Analysts {
				fmt.Fprintln(out, analystStyle.Render(strings.TrimRight(analyst.Persona(), "\n")))
			}
			feedback, err := readLine("Analyst feedback (enter to approve):")
			if err != nil {
				return nil, err
			}
			if snap, err = d.SubmitAnalystFeedback(ctx, snap.ThreadID, feedback); err != nil {
				return nil, err
			}
		case research.StageInProgress:
			fmt.Fprintln(out, progressStyle.Render("resuming at "+strings.Join(snap.Next, ", ")))
			if snap, err = d.Resume(ctx, snap.ThreadID); err != nil {
				return nil, err
			}
		case research.StageComplete:
			fmt.Fprintln(out, headerStyle.Render("Report"))
			fmt.Fprintln(out, snap.Report)
			return snap, nil
		default:
			return nil, fmt.Errorf("thread %s stopped in stage %s", snap.ThreadID, snap.Stage)
		}
	}
}

// openThread returns the snapshot of an existing thread, or nil when
// threadID is empty or unknown.
func openThread(ctx context.Context, d researchDriver, threadID string) (*research.Snapshot, error) {
	if threadID == "" {
		return nil, nil
	}
	snap, err := d.State(ctx, threadID)
	if errors.Is(err, research.ErrThreadNotFound) {
		return nil, nil
	}
	return snap, err
}

func writeReport(path, report string) error {
	if report == "" {
		return errors.New("report is empty")
	}
	content := report
	if strings.EqualFold(filepath.Ext(path), ".html") {
		content = research.RenderHTML(report)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// progressPrinter prints progress messages as the graph produces them.
type progressPrinter struct {
	graph.NoOpCallbackHandler

	mu   sync.Mutex
	out  io.Writer
	seen int
}

var _ graph.GraphCallbackHandler = (*progressPrinter)(nil)

func (p *progressPrinter) OnGraphStep(_ context.Context, step graph.StepInfo) {
	var messages []string
	switch s := step.State.(type) {
	case research.ResearchState:
		messages = s.ProgressMessages
	case *research.ResearchState:
		messages = s.ProgressMessages
	default:
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.seen < len(messages); p.seen++ {
		fmt.Fprintln(p.out, progressStyle.Render("• "+messages[p.seen]))
	}
}
