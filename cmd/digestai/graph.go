package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"

	"github.com/digestai/digestai/graph"
	"github.com/digestai/digestai/research"
)

var errOffline = errors.New("model is not available while drawing")

// offlineModel lets the research graph be built without credentials.
type offlineModel struct{}

func (offlineModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, errOffline
}

func (offlineModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errOffline
}

func newGraphCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the research workflow graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workflow, err := research.NewWorkflow(offlineModel{}, research.Searchers{})
			if err != nil {
				return err
			}
			g, err := workflow.BuildGraph()
			if err != nil {
				return err
			}
			exporter := graph.NewExporter(g)

			var out string
			switch format {
			case "mermaid":
				out = exporter.DrawMermaid()
			case "dot":
				out = exporter.DrawDOT()
			case "ascii":
				out = exporter.DrawASCII()
			default:
				return fmt.Errorf("unknown format %q (mermaid, dot, ascii)", format)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "output format: mermaid, dot or ascii")
	return cmd
}
