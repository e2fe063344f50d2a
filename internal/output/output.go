// Package output renders reconciler results for a human terminal or for
// machine consumption (JSON), the way cmd/lettasync's --machine flag
// switches behavior throughout the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/letta-ai/letta-sync/internal/reconcile/plan"
)

var (
	safeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	breakingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headingStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// JSON marshals v as indented JSON to w, the --machine rendering for any
// result type.
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Plan renders a plan.Plan as a human-readable action list, coloring
// breaking actions and summarizing the changelog as Markdown via glamour.
func Plan(w io.Writer, p plan.Plan, machine bool) error {
	if machine {
		return JSON(w, p)
	}

	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Plan %s (agent %s)", p.ID, p.AgentID)))
	for _, a := range p.Changes() {
		line := fmt.Sprintf("  %s %s %q", a.Verb, a.Kind, a.Name)
		if a.Risk == plan.Breaking {
			fmt.Fprintln(w, breakingStyle.Render(line+" [breaking]"))
		} else {
			fmt.Fprintln(w, safeStyle.Render(line))
		}
	}
	for _, warn := range p.Warnings {
		fmt.Fprintln(w, "warning:", warn)
	}
	if p.RequiresConfirmation {
		fmt.Fprintln(w, "requires confirmation: pass --force to apply breaking changes")
	}

	summary := fmt.Sprintf("**%d** safe, **%d** breaking, **%d** skipped",
		p.Summary.SafeChanges, p.Summary.BreakingChanges, p.Summary.Skip)
	rendered, err := glamour.Render(summary, "dark")
	if err == nil {
		fmt.Fprint(w, rendered)
	} else {
		fmt.Fprintln(w, strings.ReplaceAll(summary, "**", ""))
	}
	return nil
}
