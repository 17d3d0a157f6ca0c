package sim

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"airspace-sim/internal/config"
	"airspace-sim/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	if err := w.Write(telemetry.AgentRow{AgentID: "1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := p.msgs[0].(sampleMsg); !ok {
		t.Fatalf("expected sampleMsg, got %T", p.msgs[0])
	}
	if err := w.WriteConflict(telemetry.ConflictRow{Event: telemetry.EventStart, Level: 1}); err != nil {
		t.Fatalf("conflict: %v", err)
	}
	if _, ok := p.msgs[1].(conflictMsg); !ok {
		t.Fatalf("expected conflictMsg, got %T", p.msgs[1])
	}
	if err := w.WriteFlight(telemetry.FlightRow{AgentID: "1", Completed: true}); err != nil {
		t.Fatalf("flight: %v", err)
	}
	if _, ok := p.msgs[2].(flightMsg); !ok {
		t.Fatalf("expected flightMsg, got %T", p.msgs[2])
	}
	w.SetAdminStatus(true)
	if _, ok := p.msgs[3].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[3])
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel(config.Default())
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 40})
	m = mi.(tuiModel)
	long := "one two three four five six"
	mi, _ = m.Update(logMsg{line: long})
	m = mi.(tuiModel)
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel(config.Default())
	if !m.autoscroll {
		t.Fatalf("expected autoscroll on by default")
	}
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll not toggled")
	}
}

func TestSummaryCounts(t *testing.T) {
	m := newTUIModel(config.Default())
	msgs := []tea.Msg{
		conflictMsg{row: telemetry.ConflictRow{Event: telemetry.EventStart, Level: 0}},
		conflictMsg{row: telemetry.ConflictRow{Event: telemetry.EventEnd, Level: 0}},
		conflictMsg{row: telemetry.ConflictRow{Event: telemetry.EventStart, Level: 2}},
		flightMsg{row: telemetry.FlightRow{Completed: true}},
		flightMsg{row: telemetry.FlightRow{}},
		sampleMsg{rows: []telemetry.AgentRow{{Level: 2, SimTime: 12}, {Level: -1, SimTime: 12}}},
	}
	for _, msg := range msgs {
		mi, _ := m.Update(msg)
		m = mi.(tuiModel)
	}
	if m.starts[0] != 1 || m.starts[2] != 1 {
		t.Fatalf("starts = %v", m.starts)
	}
	if m.flights != 2 || m.completed != 1 {
		t.Fatalf("flights=%d completed=%d", m.flights, m.completed)
	}
	if m.levelNow[2] != 1 || m.simTime != 12 {
		t.Fatalf("levelNow=%v simTime=%f", m.levelNow, m.simTime)
	}
	s := m.renderSummary()
	if !strings.Contains(s, "flights=1/2") || !strings.Contains(s, "imminent=1(1)") {
		t.Fatalf("unexpected summary %q", s)
	}
}

func TestRenderMapPlacesAgents(t *testing.T) {
	cfg := config.Default()
	m := newTUIModel(cfg)
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 30})
	m = mi.(tuiModel)
	mi, _ = m.Update(sampleMsg{rows: []telemetry.AgentRow{{X: 0, Z: 0, Heading: 90, Level: -1}}})
	m = mi.(tuiModel)
	if !strings.Contains(m.renderMap(), ">") {
		t.Fatalf("expected east heading icon on map")
	}
}

func TestHeadingIcon(t *testing.T) {
	tests := map[float64]string{0: "^", 90: ">", 180: "v", 270: "<", -90: "<", 405: ">"}
	for h, want := range tests {
		if got := headingIcon(h); got != want {
			t.Errorf("headingIcon(%v) = %s, want %s", h, got, want)
		}
	}
	if altitudeIcon(0, 130) != "▲" {
		t.Errorf("expected high altitude icon")
	}
}
