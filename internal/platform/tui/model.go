package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// Inspector layout constants
const (
	sidePanelWidth = 44
	eventLogLines  = 8
	maxEventLines  = 500
	minRate        = 1
	maxRate        = 120
)

// Options configures an inspector.
type Options struct {
	Title string
	// Ticks stops autoplay at this tick; zero means no limit.
	Ticks int
	// Rate is the autoplay speed in ticks per second.
	Rate   int
	Logger *log.Logger
	// Feed, when set, carries the events of a verification run the
	// spectator watches alongside its own simulation.
	Feed *lockstep.ChannelSession
}

// feedMsg carries one verifier event; ok is false once the feed closed.
type feedMsg struct {
	evt lockstep.SessionEvent
	ok  bool
}

func waitFeed(feed *lockstep.ChannelSession) tea.Cmd {
	return func() tea.Msg {
		select {
		case evt := <-feed.Events():
			return feedMsg{evt: evt, ok: true}
		case <-feed.Done():
			return feedMsg{}
		}
	}
}

// describeFeed renders a verifier event as one status line.
func describeFeed(evt lockstep.SessionEvent) string {
	switch e := evt.(type) {
	case lockstep.TickEvent:
		return fmt.Sprintf("verify %s: %d replicas in step", e.Tick, len(e.Hashes))
	case lockstep.DesyncEvent:
		return "verify " + e.Desync.String()
	case lockstep.FinishedEvent:
		return fmt.Sprintf("verify %s after %d ticks, %d desyncs", e.Reason, e.Report.Ticks, len(e.Report.Desyncs))
	}
	return ""
}

// eventLog collects formatted simulation events. It is shared by copies of
// the model, so it lives behind a pointer.
type eventLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *eventLog) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if len(l.lines) > maxEventLines {
		l.lines = append(l.lines[:0], l.lines[len(l.lines)-maxEventLines:]...)
	}
}

func (l *eventLog) tail(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := max(len(l.lines)-n, 0)
	return append([]string(nil), l.lines[start:]...)
}

// Model is the Bubble Tea model of the simulation inspector.
type Model struct {
	sim     *sim.Simulation
	opts    Options
	screen  *core.Screen
	keys    KeyMap
	help    help.Model
	threads table.Model
	events  *eventLog
	sub     core.Subscription
	classes []core.MovementClassID

	selected  int // index into sim.Units()
	overlay   int // index into classes, -1 for none
	showPaths bool
	autoplay  bool
	gen       int
	width     int
	height    int
	quitting  bool
	err       error
	verifier  string // last verifier status from the feed
}

// NewModel creates an inspector over s. The caller keeps ownership of s;
// Close releases the event subscription.
func NewModel(s *sim.Simulation, opts Options) Model {
	if opts.Rate <= 0 {
		opts.Rate = core.TicksPerSecond
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	w := s.World()

	events := &eventLog{}
	sub := s.Subscribe(func(e sim.Event) {
		events.add(sim.FormatEvent(e))
	})

	classes := make([]core.MovementClassID, 0)
	for _, e := range w.Classes.List() {
		classes = append(classes, e.ID)
	}

	h := help.New()
	h.ShowAll = false

	m := Model{
		sim:       s,
		opts:      opts,
		screen:    core.NewScreen(w.Terrain.Width(), w.Terrain.Height()),
		keys:      DefaultKeyMap(),
		help:      h,
		threads:   newThreadTable(),
		events:    events,
		sub:       sub,
		classes:   classes,
		overlay:   -1,
		showPaths: true,
	}
	m.refreshThreads()
	return m
}

func newThreadTable() table.Model {
	columns := []table.Column{
		{Title: "ID", Width: 3},
		{Title: "Function", Width: 12},
		{Title: "PC", Width: 4},
		{Title: "Status", Width: 20},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(6),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t
}

// Init implements tea.Model. The inspector starts paused.
func (m Model) Init() tea.Cmd {
	if m.opts.Feed != nil {
		return waitFeed(m.opts.Feed)
	}
	return nil
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleAction(m.keys.MapKey(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		if !m.autoplay || msg.Gen != m.gen {
			return m, nil
		}
		m.step()
		if !m.autoplay {
			return m, nil
		}
		return m, tickCmd(m.opts.Rate, m.gen)

	case feedMsg:
		if !msg.ok {
			return m, nil
		}
		if line := describeFeed(msg.evt); line != "" {
			m.verifier = line
		}
		return m, waitFeed(m.opts.Feed)
	}

	return m, nil
}

func (m Model) handleAction(a core.Action) (tea.Model, tea.Cmd) {
	switch a {
	case core.ActionQuit:
		m.quitting = true
		m.autoplay = false
		return m, tea.Quit

	case core.ActionStep:
		m.autoplay = false
		m.gen++
		m.step()

	case core.ActionAutoplay:
		m.autoplay = !m.autoplay
		m.gen++
		if m.autoplay {
			return m, tickCmd(m.opts.Rate, m.gen)
		}

	case core.ActionNextUnit, core.ActionPrevUnit:
		if n := len(m.sim.Units()); n > 0 {
			d := 1
			if a == core.ActionPrevUnit {
				d = n - 1
			}
			m.selected = (m.selected + d) % n
		}
		m.refreshThreads()

	case core.ActionCycleClass:
		// none -> class 0 -> ... -> last -> none
		m.overlay++
		if m.overlay >= len(m.classes) {
			m.overlay = -1
		}

	case core.ActionTogglePaths:
		m.showPaths = !m.showPaths

	case core.ActionFaster:
		m.opts.Rate = core.Clamp(m.opts.Rate*2, minRate, maxRate)

	case core.ActionSlower:
		m.opts.Rate = core.Clamp(m.opts.Rate/2, minRate, maxRate)

	case core.ActionHelp:
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// step advances the simulation by one tick. Autoplay stops at the tick
// limit and on errors.
func (m *Model) step() {
	if m.err != nil {
		m.autoplay = false
		return
	}
	if m.opts.Ticks > 0 && int(m.sim.Now()) >= m.opts.Ticks {
		m.autoplay = false
		return
	}
	if err := m.sim.Step(context.Background()); err != nil {
		m.err = err
		m.autoplay = false
		m.opts.Logger.Error("step failed", "tick", m.sim.Now(), "err", err)
	}
	if n := len(m.sim.Units()); m.selected >= n {
		m.selected = max(n-1, 0)
	}
	m.refreshThreads()
}

// Selected returns the selected unit, or nil when no units are left.
func (m Model) Selected() *sim.Unit {
	units := m.sim.Units()
	if m.selected < len(units) {
		return units[m.selected]
	}
	return nil
}

// Overlay returns the class whose walkability is drawn, if any.
func (m Model) Overlay() (core.MovementClassID, bool) {
	if m.overlay < 0 {
		return core.MovementClassID{}, false
	}
	return m.classes[m.overlay], true
}

// Autoplay reports whether the inspector is stepping on its own.
func (m Model) Autoplay() bool {
	return m.autoplay
}

// Err returns the error that stopped the simulation, if any.
func (m Model) Err() error {
	return m.err
}

// Close releases the event subscription.
func (m Model) Close() {
	m.sub.Release()
}

func (m *Model) refreshThreads() {
	u := m.Selected()
	if u == nil {
		m.threads.SetRows(nil)
		return
	}
	views := u.Env.Threads()
	rows := make([]table.Row, len(views))
	for i, v := range views {
		rows[i] = table.Row{
			fmt.Sprintf("%d", v.ID),
			v.Function,
			fmt.Sprintf("%d", v.PC),
			v.Status.String(),
		}
	}
	m.threads.SetRows(rows)
}

// View renders the current state to a string for display.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	opts := MapOptions{ShowPaths: m.showPaths}
	if u := m.Selected(); u != nil {
		opts.Selected = u.ID
	}
	if id, ok := m.Overlay(); ok {
		opts.Overlay = &id
	}
	m.screen.Clear()
	DrawMap(m.screen, 0, 0, m.sim.World(), m.sim.Units(), opts)

	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	mapPanel := panelStyle.Render(RenderScreen(m.screen))
	side := panelStyle.Width(sidePanelWidth).Render(m.sidePanel())

	var b strings.Builder
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	b.WriteString(titleStyle.Render(m.opts.Title))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, mapPanel, " ", side))
	b.WriteString("\n")
	b.WriteString(m.eventPanel())
	b.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) sidePanel() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	bold := lipgloss.NewStyle().Bold(true)

	var b strings.Builder
	state := "paused"
	if m.autoplay {
		state = fmt.Sprintf("playing %d/s", m.opts.Rate)
	}
	fmt.Fprintf(&b, "%s %s  %s\n", bold.Render("tick"), m.sim.Now(), dim.Render(state))
	fmt.Fprintf(&b, "%s %016x\n", bold.Render("hash"), m.sim.Hash())
	fmt.Fprintf(&b, "paths pending %d  projectiles %d\n", m.sim.PendingPaths(), len(m.sim.Projectiles()))
	if id, ok := m.Overlay(); ok {
		def, _ := m.sim.World().Classes.Get(id)
		fmt.Fprintf(&b, "overlay %s\n", def.Name)
	}
	if m.verifier != "" {
		fmt.Fprintf(&b, "%s\n", m.verifier)
	}
	if m.err != nil {
		fmt.Fprintf(&b, "error: %v\n", m.err)
	}

	u := m.Selected()
	if u == nil {
		b.WriteString(dim.Render("\nno units"))
		return b.String()
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s (%s) owner %s\n", bold.Render("unit"), u.ID, u.Type.Name, u.Owner)
	fmt.Fprintf(&b, "cell %s heading %.0f°\n", u.Cell(), u.Rotation.Degrees())
	fmt.Fprintf(&b, "hp %d  order %s  waypoints %d\n", u.HitPoints, u.Order, len(u.Waypoints))
	if u.Attached != nil {
		fmt.Fprintf(&b, "carried by %s on %s\n", u.Attached.Carrier, u.Attached.Piece)
	}

	b.WriteString("\n")
	b.WriteString(m.threads.View())
	b.WriteString("\n")

	pieces := u.Mesh.Model().Pieces()
	names := make([]string, len(pieces))
	for i, p := range pieces {
		names[i] = p.Name
		if u.Mesh.Pieces[i].Hidden {
			names[i] = dim.Render(p.Name)
		}
	}
	fmt.Fprintf(&b, "%s %s\n", bold.Render("pieces"), strings.Join(names, " "))

	if f := u.Env.Fault(); f != nil {
		faultStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		b.WriteString(faultStyle.Render("fault: " + f.Error()))
	}
	return b.String()
}

func (m Model) eventPanel() string {
	lines := m.events.tail(eventLogLines)
	if len(lines) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true).Render("no events yet")
	}
	return strings.Join(lines, "\n")
}

// Run starts the inspector on the current terminal.
func Run(s *sim.Simulation, opts Options) error {
	model := NewModel(s, opts)
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(), // Use alternate screen buffer
	)

	_, err := p.Run()
	return err
}
