package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/motioncore/pkg/firmware"
	"github.com/gwillem/motioncore/pkg/hw"
	"github.com/gwillem/motioncore/pkg/joint"
)

const (
	headerHeight = 3 // title + status + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Left arm and leg.
var defaultMonitorJoints = []int{0, 2, 3, 5, 6, 7}

var jointColors = []string{"196", "208", "226", "46", "51", "201", "33", "250"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	playStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

type monitorModel struct {
	fw         *firmware.Controller
	mirror     *hw.Mirror
	port       string
	joints     []int
	chart      *streamlinechart.Model
	state      firmware.State
	width      int
	height     int
	logs       []string
	quitting   bool
	lastAngles *[joint.Sum]int
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement reports whether a charted joint moved since the last state.
func (m *monitorModel) hasMovement(angles [joint.Sum]int) bool {
	if m.lastAngles == nil {
		return true
	}
	for _, id := range m.joints {
		if angles[id] != m.lastAngles[id] {
			return true
		}
	}
	return false
}

type stateMsg firmware.State
type logMsg string

func waitForState(fw *firmware.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-fw.States())
	}
}

func waitForLog(fw *firmware.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-fw.Logs())
	}
}

func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func jointColor(i int) lipgloss.Color {
	return lipgloss.Color(jointColors[i%len(jointColors)])
}

func newMonitorModel(fw *firmware.Controller, mirror *hw.Mirror, port string, joints []int) monitorModel {
	// Angles are charted in degrees.
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(joint.AngleMin/10, joint.AngleMax/10),
	)
	for i, id := range joints {
		style := lipgloss.NewStyle().Foreground(jointColor(i))
		chart.SetDataSetStyles(string(joint.NameOf(id)), runes.ThinLineStyle, style)
	}
	return monitorModel{
		fw:     fw,
		mirror: mirror,
		port:   port,
		joints: joints,
		chart:  &chart,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.fw),
		waitForLog(m.fw),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		m.state = firmware.State(msg)
		angles := m.state.Playback.Angles
		// Freeze the chart while idle.
		if m.hasMovement(angles) {
			for _, id := range m.joints {
				m.chart.PushDataSet(string(joint.NameOf(id)), float64(angles[id])/10)
			}
			m.chart.DrawAll()
			m.lastAngles = &angles
		}
		return m, waitForState(m.fw)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.fw)
	}

	return m, nil
}

func (m monitorModel) status() string {
	s := m.state
	var sb strings.Builder
	if s.Playback.Playing {
		sb.WriteString(playStyle.Render(fmt.Sprintf("▶ %02d %s", s.Playback.Slot, s.Playback.Name)))
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  frame %d, %d steps left", s.Playback.Frame, s.Playback.Remaining)))
	} else {
		sb.WriteString(statusStyle.Render("■ idle"))
	}
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  queued %d  dropped lines %d", s.Queued, s.Aborts)))
	if m.mirror != nil {
		writes, dropped, failed := m.mirror.Stats()
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  servo writes %d/%d/%d", writes, dropped, failed)))
	}
	return sb.String()
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("motioncore"))
	sb.WriteString(" - " + m.port)
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.status())
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m monitorModel) renderLegend() string {
	var items []string
	for i, id := range m.joints {
		colorStyle := lipgloss.NewStyle().Foreground(jointColor(i)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(joint.NameOf(id)))
	}
	return strings.Join(items, "  ")
}
