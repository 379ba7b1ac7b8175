package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/sph"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	frameRate       = time.Second / 60
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// sample is what the stats panel shows for one frame.
type sample struct {
	time, kinetic, density, speed float64
	steps, cellLoad               int
}

// Model renders a live simulation shared with other readers, such as a
// stream server running in the same process.
type Model struct {
	shared    *sim.Shared
	cfg       *config.Config
	initial   config.Config
	paramKeys []string
	selected  int

	canvas    *Canvas
	running   bool
	showHelp  bool
	last      sample
	kinetic   []float64
	density   []float64
	lastError error
}

func NewModel(shared *sim.Shared, cfg *config.Config) Model {
	keys := make([]string, 0)
	for k := range cfg.GetParams() {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return Model{
		shared:    shared,
		cfg:       cfg,
		initial:   *cfg,
		paramKeys: keys,
		canvas:    NewCanvas(width, height),
		running:   true,
		kinetic:   make([]float64, 0, historyCapacity),
		density:   make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "n":
			if !m.running {
				m.step()
			}
		case "tab":
			m.selected = (m.selected + 1) % len(m.paramKeys)
		case "up", "k":
			m.adjustParam(1.1)
		case "down", "j":
			m.adjustParam(1 / 1.1)
		case "t":
			nextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

// step advances one frame and records its diagnostics.
func (m *Model) step() {
	if err := m.shared.Step(); err != nil {
		m.lastError = err
		m.running = false
		return
	}
	m.shared.Read(func(st *sph.State) {
		m.last = sample{
			time:     st.Time(),
			kinetic:  metrics.KineticEnergy(st),
			density:  metrics.MeanDensity(st),
			speed:    metrics.MaxSpeed(st),
			steps:    st.Steps(),
			cellLoad: metrics.MaxCellLoad(st),
		}
	})
	m.kinetic = appendCapped(m.kinetic, m.last.kinetic)
	m.density = appendCapped(m.density, m.last.density)
}

func appendCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

// adjustParam scales the selected parameter and restarts from the
// initial layout, since derived constants are fixed at construction.
func (m *Model) adjustParam(factor float64) {
	key := m.paramKeys[m.selected]
	prev := m.cfg.GetParams()[key]
	next := prev * factor
	if next == 0 {
		next = factor - 1
	}
	if err := m.cfg.SetParam(key, next); err != nil {
		m.lastError = err
		return
	}
	if err := m.rebuild(); err != nil {
		m.cfg.SetParam(key, prev)
		m.lastError = err
	}
}

func (m *Model) reset() {
	*m.cfg = m.initial
	if err := m.rebuild(); err != nil {
		m.lastError = err
	}
}

func (m *Model) rebuild() error {
	st, err := sph.New(m.cfg.Params())
	if err != nil {
		return err
	}
	m.shared.Swap(st)
	m.kinetic = m.kinetic[:0]
	m.density = m.density[:0]
	m.last = sample{}
	m.lastError = nil
	return nil
}

// draw plots every particle and the box walls onto the canvas.
func (m *Model) draw() {
	m.canvas.Clear()
	cw, ch := m.canvas.PixelSize()
	m.canvas.DrawRect(0, 0, cw-1, ch-1)

	m.shared.Read(func(st *sph.State) {
		p := st.Params()
		span := p.BoxMax - p.BoxMin
		xs, ys := st.X(), st.Y()
		for i := range xs {
			px := int((xs[i] - p.BoxMin) / span * float64(cw-3))
			py := int((p.BoxMax - ys[i]) / span * float64(ch-3))
			m.canvas.Set(px+1, py+1)
		}
	})
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render(fmt.Sprintf("SPH  %d particles", m.cfg.NumParticles)) + "\n")
	if m.running {
		s.WriteString(statusRunning.Render("RUNNING") + "\n\n")
	} else {
		s.WriteString(statusPaused.Render("PAUSED") + "\n\n")
	}

	if len(m.kinetic) > 1 {
		chart := asciigraph.Plot(m.kinetic, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n")
		s.WriteString(labelStyle.Render("Density") + SparklineChart(m.density, 30) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.4fs", m.last.time))
	row("Steps", fmt.Sprintf("%d", m.last.steps))
	row("Kinetic", fmt.Sprintf("%.4f", m.last.kinetic))
	row("Density", fmt.Sprintf("%.4f", m.last.density))
	row("Max speed", fmt.Sprintf("%.3f", m.last.speed))
	row("Cell load", fmt.Sprintf("%d", m.last.cellLoad))

	s.WriteString("\nPARAMETERS\n")
	params := m.cfg.GetParams()
	for i, k := range m.paramKeys {
		line := fmt.Sprintf("%-10s %g", k, params[k])
		if i == m.selected {
			s.WriteString(activeParamStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.Render(line) + "\n")
		}
	}
	if m.lastError != nil {
		s.WriteString("\n" + sparkHigh.Render(m.lastError.Error()) + "\n")
	}

	s.WriteString(helpStyle.Render("\n─────────────────────\nSP:Pause N:Step R:Reset\nTab:Param ↑↓:Tune T:Theme\n?:Help Q:Quit"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpOverlay + "\n\n" + mainView
	}
	return mainView
}

const helpOverlay = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume simulation  ║
║  N        - Single frame when paused ║
║  R        - Reset parameters/layout  ║
║  Tab      - Cycle parameters         ║
║  Up/K     - Increase parameter (10%) ║
║  Down/J   - Decrease parameter (10%) ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`
