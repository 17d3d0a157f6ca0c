package sim

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"airspace-sim/internal/config"
	"airspace-sim/internal/conflict"
	"airspace-sim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// sampleMsg carries one telemetry sample of all agents.
type sampleMsg struct{ rows []telemetry.AgentRow }

// conflictMsg carries a conflict transition.
type conflictMsg struct {
	line string
	row  telemetry.ConflictRow
}

// flightMsg carries a finished flight.
type flightMsg struct {
	line string
	row  telemetry.FlightRow
}

// adminMsg reports admin API status.
type adminMsg struct{ active bool }

const (
	maxLogLines         = 500
	maxSectionHeightPct = 0.3
	highAltThreshold    = 100.0
)

// TUIWriter renders telemetry using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.SimulationConfig) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements TelemetryWriter.
func (w *TUIWriter) Write(row telemetry.AgentRow) error {
	return w.WriteBatch([]telemetry.AgentRow{row})
}

// WriteBatch sends one telemetry sample to the model.
func (w *TUIWriter) WriteBatch(rows []telemetry.AgentRow) error {
	cp := make([]telemetry.AgentRow, len(rows))
	copy(cp, rows)
	w.program.Send(sampleMsg{rows: cp})
	return nil
}

// WriteConflict implements ConflictWriter.
func (w *TUIWriter) WriteConflict(row telemetry.ConflictRow) error {
	tag := "START"
	switch row.Event {
	case telemetry.EventEnd:
		tag = "END"
	case telemetry.EventCrash:
		tag = "CRASH"
	}
	line := fmt.Sprintf("%s[%8.1fs]%s %s%-5s %-9s%s %suav=%d%s %sother=%d%s dist=%.2f",
		colorGray, row.SimTime, colorReset,
		levelColor(row.Level), tag, conflict.LevelName(row.Level), colorReset,
		colorWhite(), row.Self, colorReset,
		colorBlue, row.Other, colorReset,
		row.Distance)
	w.program.Send(conflictMsg{line: line, row: row})
	return nil
}

// WriteFlight implements FlightWriter.
func (w *TUIWriter) WriteFlight(row telemetry.FlightRow) error {
	status, col := "landed", colorGreen
	if !row.Completed {
		status, col = "aborted", colorYellow
	}
	line := fmt.Sprintf("%s[%8.1fs]%s %sFLIGHT %s%s %suav=%s%s dist=%.0f dur=%.0f hold=%.0f",
		colorGray, row.End, colorReset,
		col, status, colorReset,
		colorWhite(), row.AgentID, colorReset,
		row.Distance, row.Duration, row.HoldTime)
	w.program.Send(flightMsg{line: line, row: row})
	return nil
}

// SetAdminStatus updates the admin API indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg        *config.SimulationConfig
	table      table.Model
	vp         viewport.Model
	logs       []string
	agents     []telemetry.AgentRow
	simTime    float64
	levelNow   [conflict.Levels]int
	starts     [conflict.Levels]int
	flights    int
	completed  int
	admin      bool
	wrap       bool
	autoscroll bool
	summary    bool
	help       bool
	showMap    bool
	header     string
	width      int
	height     int
}

func newTUIModel(cfg *config.SimulationConfig) tuiModel {
	cols := []table.Column{
		{Title: "Config", Width: 16},
		{Title: "Value", Width: 14},
		{Title: "Config", Width: 16},
		{Title: "Value", Width: 14},
	}
	rows := []table.Row{
		{"Spawn Mode", cfg.Spawn.Mode, "Range (km2)", fmt.Sprintf("%.1f", cfg.Spawn.RangeKm2)},
		{"Flights / hour", fmt.Sprintf("%.0f", cfg.Spawn.FlightsPerHour), "Flight Levels", fmt.Sprintf("%d", len(cfg.Heights()))},
		{"Evasion", cfg.Evasion.Strategy, "Reaction", cfg.Evasion.Reaction},
		{"Tick (s)", fmt.Sprintf("%.2f", cfg.TickSeconds), "Time Scale", fmt.Sprintf("%.0fx", cfg.TimeScale)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	m := tuiModel{
		cfg:        cfg,
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
	m.header = m.table.View()
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.header = m.table.View()
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "t":
			m.summary = !m.summary
			m.updateViewportHeight()
			return m, nil
		case "m":
			m.showMap = !m.showMap
			return m, nil
		case "?", "h":
			m.help = true
			return m, nil
		}
		if !m.autoscroll {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case logMsg:
		m.appendLog(msg.line)
	case sampleMsg:
		m.agents = msg.rows
		m.levelNow = [conflict.Levels]int{}
		for _, r := range msg.rows {
			if r.Level >= 0 && r.Level < conflict.Levels {
				m.levelNow[r.Level]++
			}
			m.simTime = r.SimTime
		}
		m.updateViewportHeight()
	case conflictMsg:
		if msg.row.Event == telemetry.EventStart && msg.row.Level >= 0 && msg.row.Level < conflict.Levels {
			m.starts[msg.row.Level]++
		}
		m.appendLog(msg.line)
	case flightMsg:
		m.flights++
		if msg.row.Completed {
			m.completed++
		}
		m.appendLog(msg.line)
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func (m *tuiModel) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	m.refreshViewport()
}

func (m *tuiModel) updateViewportHeight() {
	used := lipgloss.Height(m.header) + lipgloss.Height(m.renderBottom()) + lipgloss.Height(m.renderAgents()) + 4
	h := m.height - used
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			l = wordwrap.String(l, m.vp.Width)
		}
		lines = append(lines, l)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	if m.showMap {
		return strings.Join([]string{m.header, divider, m.renderMap(), divider, m.renderBottom()}, "\n")
	}
	return strings.Join([]string{
		m.header,
		divider,
		m.renderAgents(),
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}, "\n")
}

// renderAgents lists the agents in the highest conflict levels first.
func (m tuiModel) renderAgents() string {
	if len(m.agents) == 0 {
		return "Agents: none"
	}
	rows := make([]telemetry.AgentRow, len(m.agents))
	copy(rows, m.agents)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Level > rows[j].Level })
	limit := m.maxSectionLines() - 1
	if limit < 1 {
		limit = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Agents: %d", len(rows))
	for i, r := range rows {
		if i >= limit {
			fmt.Fprintf(&b, "\n  … %d more", len(rows)-limit)
			break
		}
		fmt.Fprintf(&b, "\n  %s %suav=%-5s%s %-8s (%7.1f, %5.1f, %7.1f) spd=%4.1f %s%s%s",
			altitudeIcon(r.Heading, r.Y),
			colorWhite(), r.AgentID, colorReset,
			r.State, r.X, r.Y, r.Z, r.Speed,
			levelColor(r.Level), conflict.LevelName(r.Level), colorReset)
	}
	return b.String()
}

func (m tuiModel) renderSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%sSUMMARY%s %st=%.0fs%s %sflights=%d/%d%s", colorBlue, colorReset,
		colorGray, m.simTime, colorReset, colorGreen, m.completed, m.flights, colorReset)
	for lvl := 0; lvl < conflict.Levels; lvl++ {
		fmt.Fprintf(&b, " %s%s=%d(%d)%s", levelColor(lvl), conflict.LevelName(lvl), m.starts[lvl], m.levelNow[lvl], colorReset)
	}
	return b.String()
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	line := fmt.Sprintf("Admin API %s | Wrap %s | Scroll %s | Summary %s | Map %s | ? help",
		indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll), indicator(m.summary), indicator(m.showMap))
	if m.summary {
		return m.renderSummary() + "\n" + line
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap for the log",
		" s  toggle auto-scroll",
		" t  toggle summary footer",
		" m  toggle top-down map",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}

func headingIcon(h float64) string {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	switch {
	case h >= 45 && h < 135:
		return ">"
	case h >= 135 && h < 225:
		return "v"
	case h >= 225 && h < 315:
		return "<"
	default:
		return "^"
	}
}

func altitudeIcon(h, alt float64) string {
	icon := headingIcon(h)
	if alt >= highAltThreshold {
		switch icon {
		case "^":
			return "▲"
		case ">":
			return "▶"
		case "v":
			return "▼"
		case "<":
			return "◀"
		}
	}
	return icon
}

// renderMap draws the airspace from above, +Z pointing up. Cells holding
// several agents show the highest conflict level among them.
func (m tuiModel) renderMap() string {
	w := m.width
	h := m.height - lipgloss.Height(m.header) - lipgloss.Height(m.renderBottom()) - 2
	if w < 2 || h < 2 {
		return ""
	}
	half := m.cfg.RangeMeters() / 2
	type cell struct {
		icon  string
		level int
	}
	grid := make([][]cell, h)
	for i := range grid {
		grid[i] = make([]cell, w)
		for j := range grid[i] {
			grid[i][j] = cell{icon: "·", level: conflict.LevelNone - 1}
		}
	}
	for _, r := range m.agents {
		col := int((r.X + half) / (2 * half) * float64(w-1))
		row := int((half - r.Z) / (2 * half) * float64(h-1))
		if col < 0 || col >= w || row < 0 || row >= h {
			continue
		}
		if r.Level >= grid[row][col].level {
			grid[row][col] = cell{icon: altitudeIcon(r.Heading, r.Y), level: r.Level}
		}
	}
	var b strings.Builder
	for i, line := range grid {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, c := range line {
			if c.level < conflict.LevelNone {
				b.WriteString(colorGray + c.icon + colorReset)
				continue
			}
			col := colorGreen
			if c.level >= 0 {
				col = levelColor(c.level)
			}
			b.WriteString(col + c.icon + colorReset)
		}
	}
	return b.String()
}
