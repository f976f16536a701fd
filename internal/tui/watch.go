package tui

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/scenario"
	"github.com/veloxphys/velox/internal/world"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

type uiState int

const (
	stateMenu uiState = iota
	stateSim
)

type model struct {
	state    uiState
	cursor   int
	names    []string
	selected string

	w        *world.World
	duration float64
	running  bool
	paused   bool
	speed    float64
	history  []float64
	lastTick time.Time
	fps      float64

	width  int
	height int
}

// NewWatchApp builds the interactive scenario browser.
func NewWatchApp() *model {
	return &model{
		state:   stateMenu,
		names:   scenario.List(),
		speed:   1,
		history: make([]float64, 0, 60),
		width:   80,
		height:  24,
	}
}

func (m model) Init() tea.Cmd { return nil }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.state != stateSim || !m.running {
			return m, nil
		}
		if !m.paused && m.w != nil {
			now := time.Now()
			if !m.lastTick.IsZero() {
				if dt := now.Sub(m.lastTick).Seconds(); dt > 0 {
					m.fps = 1 / dt
				}
			}
			m.lastTick = now

			steps := int(m.speed)
			if steps < 1 {
				steps = 1
			}
			for i := 0; i < steps; i++ {
				m.step()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.state == stateMenu {
		return m.menuKey(msg)
	}
	return m.simKey(msg)
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.names)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selected = m.names[m.cursor]
		if err := m.start(); err == nil {
			m.state = stateSim
			return m, tea.Batch(tea.ClearScreen, tick())
		}
	}
	return m, nil
}

func (m model) simKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "escape":
		m.running = false
		m.state = stateMenu
		m.w = nil
		return m, tea.ClearScreen
	case " ", "p":
		m.paused = !m.paused
	case "r":
		m.start()
		return m, tea.ClearScreen
	case "+", "=":
		m.speed = math.Min(m.speed*2, 16)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 0.25)
	case "0":
		m.speed = 1
	}
	return m, nil
}

// defaultPreset picks the scenario's "default" preset, falling back
// to the alphabetically first one.
func defaultPreset(name string) *config.Config {
	if cfg := config.GetPreset(name, "default"); cfg != nil {
		return cfg
	}
	presets := config.ListPresets(name)
	if len(presets) == 0 {
		cfg := config.DefaultConfig()
		cfg.Scenario = name
		return cfg
	}
	sort.Strings(presets)
	return config.GetPreset(name, presets[0])
}

func (m *model) start() error {
	cfg := defaultPreset(m.selected)
	w := world.New(cfg.Step)
	s, err := scenario.Get(m.selected)
	if err != nil {
		return err
	}
	if err := s.Build(w); err != nil {
		return err
	}
	m.w = w
	m.duration = cfg.Duration
	m.history = m.history[:0]
	m.speed = 1
	m.lastTick = time.Time{}
	m.running = true
	m.paused = false
	return nil
}

func (m *model) step() {
	if m.w.Time() >= m.duration {
		m.paused = true
		return
	}
	m.w.Step()
	m.history = append(m.history, kineticEnergy(m.w))
	if len(m.history) > 60 {
		m.history = m.history[1:]
	}
}

func kineticEnergy(w *world.World) float64 {
	e := 0.0
	for _, h := range w.BodyHandles() {
		b := w.Body(h)
		if b.Kind == body.Dynamic {
			e += 0.5 * b.Mass * b.Velocity.Dot(b.Velocity)
		}
	}
	return e
}

func (m model) View() string {
	if m.state == stateMenu {
		return m.viewMenu()
	}
	return m.viewSim()
}

func (m model) viewMenu() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ------------------------") + "\n")
	b.WriteString("           " + cyan.Render("v e l o x") + "\n")
	b.WriteString(dimmer.Render("    ------------------------") + "\n")
	b.WriteString("\n")

	for i, name := range m.names {
		desc := ""
		if s, err := scenario.Get(name); err == nil {
			desc = s.Description
		}
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("> ") + white.Render(fmt.Sprintf("%-18s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-18s", name)) + dimmer.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      up/down select   enter start   q quit") + "\n")
	return b.String()
}

func (m model) viewSim() string {
	cw := m.width - 6
	ch := m.height - 10
	if cw < 50 {
		cw = 50
	}
	if ch < 12 {
		ch = 12
	}

	canvas := newCanvas(cw, ch)
	if m.w != nil {
		drawWorld(canvas, defaultViewport(cw, ch), m.w)
	}

	var b strings.Builder

	statusIcon := green.Render("*")
	statusText := green.Render("running")
	if m.paused {
		statusIcon = yellow.Render("o")
		statusText = yellow.Render("paused")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", statusIcon, cyan.Render(m.selected), statusText))

	progress := 0.0
	simTime := 0.0
	if m.w != nil && m.duration > 0 {
		simTime = m.w.Time()
		progress = math.Min(simTime/m.duration, 1)
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	bar := cyan.Render(strings.Repeat("=", filled)) + dimmer.Render(strings.Repeat("-", barWidth-filled))
	timeStr := fmt.Sprintf("%.1fs/%.0fs", simTime, m.duration)
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n", bar, dim.Render(timeStr), dim.Render(fmt.Sprintf("%.0ffps", m.fps))))

	for _, row := range canvas {
		b.WriteString("   " + string(row) + "\n")
	}

	if m.w != nil {
		b.WriteString(fmt.Sprintf("\n   %s%d  %s%d  %s%.3f\n",
			dim.Render("bodies="), m.w.BodyCount(),
			dim.Render("contacts="), m.w.TouchingContacts(),
			dim.Render("ke="), kineticEnergy(m.w)))
	}

	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("ke"), cyan.Render(sparkline(m.history, 24))))
	}

	b.WriteString("\n" + dim.Render("   space pause  +/- speed  r reset  q back") + "\n")
	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'_', '.', '-', '~', '+', '^', '"', '!'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	span := maxVal - minVal
	if span == 0 {
		span = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / span * float64(len(chars)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(chars) {
			idx = len(chars) - 1
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

// RunWatch starts the interactive terminal app.
func RunWatch() error {
	p := tea.NewProgram(NewWatchApp(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
