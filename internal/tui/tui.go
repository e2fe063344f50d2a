// Package tui renders an interactive batch-upgrade progress view: a
// spinner plus a per-agent status list, for `lettasync batch` when
// attached to a terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/letta-ai/letta-sync/internal/reconcile/upgrade"
)

var (
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// AgentStatus is one row in the progress list.
type AgentStatus struct {
	AgentID string
	Done    bool
	Failed  bool
	Detail  string
}

// ResultMsg is sent on the program's channel as each agent's upgrade
// finishes; the caller driving RunBatch-equivalent work pushes these in.
type ResultMsg upgrade.Result

// SelectedMsg carries the full agent set once a batch run has resolved its
// selection, letting the progress list render every row immediately
// instead of growing one at a time as results trickle in.
type SelectedMsg []string

// DoneMsg signals the batch finished; the program exits after rendering
// the final state once more.
type DoneMsg struct{}

// Model is the bubbletea model for the batch progress view.
type Model struct {
	spinner spinner.Model
	order   []string
	status  map[string]AgentStatus
	done    bool
}

// NewModel starts an empty progress list; the agent set arrives via
// SelectedMsg once the batch run resolves its selection.
func NewModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{spinner: s, status: map[string]AgentStatus{}}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SelectedMsg:
		m.order = []string(msg)
		for _, id := range m.order {
			if _, ok := m.status[id]; !ok {
				m.status[id] = AgentStatus{AgentID: id}
			}
		}
		return m, nil
	case ResultMsg:
		failed := msg.Error != "" || (msg.Apply != nil && !msg.Apply.Success)
		detail := msg.Error
		if detail == "" && msg.Apply != nil && msg.Apply.ManagedState != nil {
			detail = string(msg.Apply.ManagedState.LastUpgradeType)
		}
		m.status[msg.AgentID] = AgentStatus{AgentID: msg.AgentID, Done: true, Failed: failed, Detail: detail}
		return m, nil
	case DoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	for _, id := range m.order {
		st := m.status[id]
		switch {
		case !st.Done:
			fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), pendingStyle.Render(id))
		case st.Failed:
			fmt.Fprintf(&b, "%s %s\n", failStyle.Render("✗"), failStyle.Render(id+" "+st.Detail))
		default:
			fmt.Fprintf(&b, "%s %s\n", okStyle.Render("✓"), okStyle.Render(id+" "+st.Detail))
		}
	}
	if m.done {
		b.WriteString("\ndone\n")
	}
	return b.String()
}
