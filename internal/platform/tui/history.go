package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/lockstep/internal/storage"
)

// maxRuns is the number of runs the browser loads.
const maxRuns = 100

// HistoryKeyMap defines the key bindings for the history browser.
type HistoryKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Mark key.Binding
	Quit key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k HistoryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Mark, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k HistoryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Mark, k.Quit}}
}

// DefaultHistoryKeyMap returns default key bindings.
func DefaultHistoryKeyMap() HistoryKeyMap {
	return HistoryKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		Mark: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "mark for diff"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// HistoryModel browses recorded runs. Marking two runs compares their
// checksum series.
type HistoryModel struct {
	store    *storage.Store
	runs     []storage.Run
	table    table.Model
	help     help.Model
	keys     HistoryKeyMap
	marked   []int64
	status   string
	quitting bool
}

// NewHistoryModel loads the most recent runs of scenario (all scenarios
// when empty).
func NewHistoryModel(store *storage.Store, scenario string, height int) (HistoryModel, error) {
	runs, err := store.RecentRuns(scenario, maxRuns)
	if err != nil {
		return HistoryModel{}, err
	}

	columns := []table.Column{
		{Title: "Run", Width: 6},
		{Title: "Scenario", Width: 14},
		{Title: "Seed", Width: 10},
		{Title: "Ticks", Width: 7},
		{Title: "Final hash", Width: 18},
		{Title: "Date", Width: 14},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(height-8, 5)), // Leave room for header, help, and margins
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	rows := make([]table.Row, len(runs))
	for i, r := range runs {
		rows[i] = table.Row{
			fmt.Sprintf("#%d", r.ID),
			r.Scenario,
			fmt.Sprintf("%d", r.Seed),
			fmt.Sprintf("%d", r.Ticks),
			fmt.Sprintf("%016x", r.FinalHash),
			r.CreatedAt.Format("Jan 02 15:04"),
		}
	}
	t.SetRows(rows)

	return HistoryModel{
		store: store,
		runs:  runs,
		table: t,
		help:  help.New(),
		keys:  DefaultHistoryKeyMap(),
	}, nil
}

// Init initializes the history model.
func (m HistoryModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the history browser.
func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Mark):
			m.mark()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-8, 5))
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// mark adds the highlighted run to the comparison. The second mark runs the
// diff and starts over.
func (m *HistoryModel) mark() {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.runs) {
		return
	}
	m.marked = append(m.marked, m.runs[i].ID)
	if len(m.marked) < 2 {
		m.status = fmt.Sprintf("marked #%d, mark another run to compare", m.marked[0])
		return
	}
	left, right := m.marked[0], m.marked[1]
	m.marked = nil

	d, err := m.store.DiffRuns(left, right)
	switch {
	case err != nil:
		m.status = "diff failed: " + err.Error()
	case d.Diverged:
		m.status = fmt.Sprintf("#%d and #%d diverge at %s: %016x vs %016x", left, right, d.FirstTick, d.Left, d.Right)
	default:
		m.status = fmt.Sprintf("#%d and #%d agree on %d common checksums", left, right, d.Compared)
	}
}

// Status returns the last mark or diff message.
func (m HistoryModel) Status() string {
	return m.status
}

// View renders the history browser.
func (m HistoryModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		MarginBottom(1)
	b.WriteString(titleStyle.Render("RUN HISTORY"))
	b.WriteString("\n\n")

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	if len(m.runs) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Padding(2, 4)
		b.WriteString(tableStyle.Render(emptyStyle.Render("No runs recorded yet.\nUse lockstep run to record one.")))
	} else {
		b.WriteString(tableStyle.Render(m.table.View()))
	}
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

// RunHistory runs the history browser on the current terminal.
func RunHistory(store *storage.Store, scenario string, height int) error {
	model, err := NewHistoryModel(store, scenario, height)
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}
