package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jetware/imaje/internal/printer"
)

// jetSnapshot is the polled state of one printhead jet.
type jetSnapshot struct {
	Status  printer.JetStatus
	Speed   float64
	Counter int
	Present bool
}

// snapshot is one full poll cycle of the controller.
type snapshot struct {
	Ready    bool
	Jets     []jetSnapshot
	Faults   *printer.Faults
	Clock    time.Time
	PolledAt time.Time
	Duration time.Duration
}

// Message types for async operations
type snapshotMsg struct {
	snap *snapshot
	err  error
}

type pollTickMsg time.Time

type faultsResetMsg struct {
	err error
}

// keyMap defines key bindings for the dashboard
type keyMap struct {
	Refresh     key.Binding
	ResetFaults key.Binding
	Quit        key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.ResetFaults, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.ResetFaults, k.Quit},
	}
}

// Model is the dashboard Bubble Tea model.
type Model struct {
	printer  *printer.Printer
	interval time.Duration

	snap    *snapshot
	lastErr error
	polling bool

	spinner spinner.Model
	help    help.Model
	keys    keyMap
	width   int
}

// New creates a dashboard model polling p every interval.
func New(p *printer.Printer, interval time.Duration) Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	keys := keyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ResetFaults: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "reset faults"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return Model{
		printer:  p,
		interval: interval,
		spinner:  s,
		help:     help.New(),
		keys:     keys,
		width:    terminalWidth(),
	}
}

// Run starts the dashboard and blocks until the user quits.
func Run(p *printer.Printer, interval time.Duration) error {
	program := tea.NewProgram(New(p, interval), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if !m.polling {
				m.polling = true
				return m, m.poll()
			}
		case key.Matches(msg, m.keys.ResetFaults):
			if !m.polling {
				m.polling = true
				return m, m.resetFaults()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width > maxContentWidth {
			m.width = maxContentWidth
		}
		if m.width < minTerminalWidth {
			m.width = minTerminalWidth
		}
		return m, nil

	case snapshotMsg:
		m.polling = false
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
			m.snap = msg.snap
		}
		return m, m.scheduleTick()

	case faultsResetMsg:
		m.polling = false
		if msg.err != nil {
			m.lastErr = msg.err
			return m, m.scheduleTick()
		}
		// Re-poll right away so the fault panel reflects the reset.
		m.polling = true
		return m, m.poll()

	case pollTickMsg:
		if m.polling {
			return m, nil
		}
		m.polling = true
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// scheduleTick arms the next poll cycle.
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

// poll queries the controller for a full snapshot. The queries run
// sequentially over the single dialog session.
func (m Model) poll() tea.Cmd {
	p := m.printer
	return func() tea.Msg {
		started := time.Now()

		ready, err := p.GetV24Dialog()
		if err != nil {
			return snapshotMsg{err: err}
		}
		snap := &snapshot{Ready: ready, PolledAt: started}
		if !ready {
			snap.Duration = time.Since(started)
			return snapshotMsg{snap: snap}
		}

		faults, err := p.GetPrinterFaults()
		if err != nil {
			return snapshotMsg{err: err}
		}
		snap.Faults = faults

		for jet := 1; jet <= len(faults.Jets); jet++ {
			js := jetSnapshot{Present: !faults.Jets[jet-1].NotPresent}
			if js.Present {
				if js.Status, err = p.GetJetStatus(jet); err != nil {
					return snapshotMsg{err: err}
				}
				if js.Speed, err = p.GetJetSpeed(jet); err != nil {
					return snapshotMsg{err: err}
				}
				if js.Counter, err = p.GetJetCounter(jet); err != nil {
					return snapshotMsg{err: err}
				}
			}
			snap.Jets = append(snap.Jets, js)
		}

		if clock, err := p.GetAutodatingTable(); err == nil {
			snap.Clock = clock
		}

		snap.Duration = time.Since(started)
		return snapshotMsg{snap: snap}
	}
}

// resetFaults clears the controller fault memory.
func (m Model) resetFaults() tea.Cmd {
	p := m.printer
	return func() tea.Msg {
		ok, err := p.ResetPrinterFaults()
		if err != nil {
			return faultsResetMsg{err: err}
		}
		if !ok {
			return faultsResetMsg{err: fmt.Errorf("printer refused the fault reset")}
		}
		return faultsResetMsg{}
	}
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("PRINTER MONITOR"))
	b.WriteString("\n")
	b.WriteString(addrStyle.Render(m.printer.RemoteAddr()))
	b.WriteString("\n\n")

	if m.snap == nil {
		b.WriteString(fmt.Sprintf("  %s Connecting to printer...\n", m.spinner.View()))
		b.WriteString("\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	b.WriteString(m.renderJetPanel())
	b.WriteString("\n")
	b.WriteString(m.renderFaultPanel())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

// renderJetPanel renders one line per printhead jet.
func (m Model) renderJetPanel() string {
	var lines []string

	if !m.snap.Ready {
		lines = append(lines, errorMessageStyle.Render("Printer not ready for dialog"))
	} else {
		for i, jet := range m.snap.Jets {
			lines = append(lines, renderJetLine(i+1, jet))
		}
	}

	return panelStyle(m.width).Render(strings.Join(lines, "\n"))
}

// renderJetLine renders the status line of one jet.
func renderJetLine(id int, jet jetSnapshot) string {
	label := labelStyle.Render(fmt.Sprintf("Jet %d", id))
	if !jet.Present {
		return label + jetStoppedStyle.Render("not present")
	}

	var statusStyle lipgloss.Style
	switch jet.Status {
	case printer.JetRunning:
		statusStyle = jetRunningStyle
	case printer.JetStopped:
		statusStyle = jetStoppedStyle
	default:
		statusStyle = jetTransitionStyle
	}

	return fmt.Sprintf("%s%s  %s  %s",
		label,
		statusStyle.Render(fmt.Sprintf("%-24s", jet.Status)),
		valueStyle.Render(fmt.Sprintf("%5.1f m/s", jet.Speed)),
		valueStyle.Render(fmt.Sprintf("%9d prints", jet.Counter)))
}

// renderFaultPanel renders the machine fault summary.
func (m Model) renderFaultPanel() string {
	faults := m.snap.Faults
	if faults == nil {
		return faultPanelStyle(m.width, false).Render(
			jetStoppedStyle.Render("No fault record"))
	}

	names := faultNames(faults)
	faulted := len(names) > 0

	var content string
	if faulted {
		content = faultStyle.Render("FAULTS") + "  " +
			errorMessageStyle.Render(strings.Join(names, ", "))
	} else {
		content = okStyle.Render("No machine faults")
	}
	return faultPanelStyle(m.width, faulted).Render(content)
}

// renderStatusBar renders the poll timestamp line.
func (m Model) renderStatusBar() string {
	bar := fmt.Sprintf("polled %s in %s",
		m.snap.PolledAt.Format("15:04:05"),
		m.snap.Duration.Round(time.Millisecond))
	if !m.snap.Clock.IsZero() {
		bar += fmt.Sprintf("  |  printer clock %s", m.snap.Clock.Format("2006-01-02 15:04:05"))
	}
	if m.polling {
		bar += "  " + m.spinner.View()
	}
	if m.lastErr != nil {
		bar += "  |  " + errorMessageStyle.Render(m.lastErr.Error())
	}
	return statusBarStyle.Render(bar)
}

// faultNames lists the set machine-level fault bits.
func faultNames(f *printer.Faults) []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(f.InkLevelLow, "ink level low")
	add(f.PressureError, "pressure")
	add(f.CPUHardware, "CPU hardware")
	add(f.MemoryLost, "memory lost")
	add(f.Head1Faulty, "head 1")
	add(f.Head2Faulty, "head 2")
	add(f.MotorCycle, "motor cycle")
	add(f.PigmentedInkCircuit, "pigmented ink circuit")
	add(f.Autodating, "autodating")
	add(f.RAM, "RAM")
	add(f.ROM, "ROM")
	add(f.V24, "V24")
	add(f.RecoveryTankTooFull, "recovery tank full")
	add(f.InkTankTooFull, "ink tank full")
	add(f.AccuEmpty, "accu empty")
	add(f.Temperature, "temperature")
	add(f.Viscosity, "viscosity")
	add(f.Fan, "fan")
	add(f.Additive, "additive")
	return names
}
