package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"trackprobe/internal/analysis"
	"trackprobe/internal/probe"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	meterRefresh = time.Second / 15
	meterFloorDB = -60.0
)

type meterTickMsg time.Time

// MeterModel polls a running probe and renders its identity, control
// link state and live levels.
type MeterModel struct {
	poll   func() probe.Status
	status probe.Status
	width  int
}

// NewMeterModel creates a monitor over the given status source.
func NewMeterModel(poll func() probe.Status) MeterModel {
	return MeterModel{poll: poll, width: 80}
}

func (m MeterModel) Init() tea.Cmd {
	return meterTick()
}

func meterTick() tea.Cmd {
	return tea.Tick(meterRefresh, func(t time.Time) tea.Msg {
		return meterTickMsg(t)
	})
}

func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case meterTickMsg:
		if m.poll != nil {
			m.status = m.poll()
		}
		return m, meterTick()

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m MeterModel) View() string {
	s := m.status
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Track Monitor"))
	sb.WriteString("\n\n")

	track := s.TrackID
	if track == "" {
		track = "(unassigned)"
	}
	link := s.Link
	if !s.Connected {
		link += " • control link down"
	}
	sb.WriteString(infoStyle.Render(fmt.Sprintf("Track %s • %s • port %d", track, link, s.Port)))
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(fmt.Sprintf("Instance %s", s.InstanceID)))
	sb.WriteString("\n\n")

	barWidth := m.width - 24
	if barWidth < 10 {
		barWidth = 10
	}

	sb.WriteString(levelRow("RMS", levelDB(s.RMS), barWidth))
	sb.WriteString(levelRow("Peak", levelDB(s.Peak), barWidth))
	sb.WriteString("\n")
	for i, band := range s.Bands {
		sb.WriteString(levelRow(analysis.BandName(i), float64(band), barWidth))
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

// levelRow renders one labeled meter line.
func levelRow(label string, db float64, width int) string {
	return fmt.Sprintf("%-9s %7.1f dB %s\n", label, db, meterBar(db, width))
}

// levelDB converts a linear level to dBFS, clamped to the meter floor.
func levelDB(v float32) float64 {
	if v <= 0 {
		return meterFloorDB
	}
	db := 20 * math.Log10(float64(v))
	if db < meterFloorDB {
		return meterFloorDB
	}
	return db
}

// meterBar fills proportionally between the floor and 0 dBFS.
func meterBar(db float64, width int) string {
	frac := (db - meterFloorDB) / -meterFloorDB
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return highlightStyle.Render(strings.Repeat("█", filled)) +
		strings.Repeat("░", width-filled)
}

// StartMeterUI runs the live monitor until the user quits.
func StartMeterUI(poll func() probe.Status) error {
	p := tea.NewProgram(
		NewMeterModel(poll),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
