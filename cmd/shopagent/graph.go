package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/shopagent/assistant"
	"github.com/dshills/shopagent/graph"
)

func newGraphCmd(a *app) *cobra.Command {
	var mermaid bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the agent graph",
		Long:  `Builds the graph the configured assistant would run and prints its nodes and transitions, as text or as a Mermaid diagram.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.build(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			g := rt.assistant.Graph()
			if mermaid {
				writeMermaid(cmd.OutOrStdout(), g)
				return nil
			}
			writeText(cmd.OutOrStdout(), g, rt.assistant)
			return nil
		},
	}
	cmd.Flags().BoolVar(&mermaid, "mermaid", false, "print a Mermaid flowchart")
	return cmd
}

func writeText(w io.Writer, g *graph.Compiled[assistant.State, assistant.Update], a *assistant.Assistant) {
	fmt.Fprintf(w, "entry: %s\n", g.Entry())
	for _, name := range g.Nodes() {
		e, _ := g.Edge(name)
		if e.Conditional() {
			fmt.Fprintf(w, "%s -> {%s}\n", name, strings.Join(e.Targets, ", "))
		} else {
			fmt.Fprintf(w, "%s -> %s\n", name, e.To)
		}
		if specs := a.Tools(name); len(specs) > 0 {
			names := make([]string, len(specs))
			for i, s := range specs {
				names[i] = s.Name
			}
			fmt.Fprintf(w, "  tools: %s\n", strings.Join(names, ", "))
		}
	}
}

func writeMermaid(w io.Writer, g *graph.Compiled[assistant.State, assistant.Update]) {
	fmt.Fprintln(w, "flowchart TD")
	fmt.Fprintf(w, "  START((start)) --> %s\n", g.Entry())
	for _, name := range g.Nodes() {
		e, _ := g.Edge(name)
		targets := []string{e.To}
		arrow := "-->"
		if e.Conditional() {
			targets = e.Targets
			arrow = "-.->"
		}
		for _, t := range targets {
			if t == graph.END {
				t = "END((end))"
			}
			fmt.Fprintf(w, "  %s %s %s\n", name, arrow, t)
		}
	}
}
