package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"rackhost.audio/cli/internal/host"
)

// DashboardFlags holds command-line flags for the dashboard command.
type DashboardFlags struct {
	Load        []string
	Driver      string
	RefreshRate time.Duration
	StartAudio  bool
}

// NewDashboardCommand creates the dashboard command.
func NewDashboardCommand(container *Container) *cobra.Command {
	flags := &DashboardFlags{}

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Live terminal view of the plugin chain",
		Long: `Launch an interactive terminal dashboard over a running host.

The dashboard shows the loaded plugins, the processing chain, audio
state, and recent errors, with keyboard controls to bypass or remove
chain stages while audio keeps running.

Examples:
  rackhost dashboard --load ~/vst3/Reverb.vst3 --load ~/vst3/Comp.vst3
  rackhost dashboard --driver null --no-audio`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(container, flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.Load, "load", nil, "Plugin file to load and add to the chain (repeatable)")
	cmd.Flags().StringVar(&flags.Driver, "driver", "", "Audio driver to start with (defaults to the configured one)")
	cmd.Flags().DurationVar(&flags.RefreshRate, "refresh", 500*time.Millisecond, "Refresh rate for live updates")
	cmd.Flags().BoolVar(&flags.StartAudio, "audio", true, "Start the audio stream")

	return cmd
}

// runDashboard loads the requested chain, starts audio, and hands the
// terminal to Bubble Tea.
func runDashboard(container *Container, flags *DashboardFlags) error {
	h, err := container.Host()
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, path := range flags.Load {
		id, err := h.LoadPlugin(ctx, path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if err := h.AddToChain(id); err != nil {
			return err
		}
	}

	if flags.StartAudio {
		driver := flags.Driver
		if driver == "" {
			driver = container.Config.Driver
		}
		if err := h.StartAudio(driver); err != nil {
			return fmt.Errorf("start audio: %w", err)
		}
	}

	model := newDashboardModel(h, flags.RefreshRate)
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Crash notifications arrive from the audio goroutine's observer and
	// are forwarded into the update loop as messages.
	h.SetCrashFunc(func(id int, name string) {
		program.Send(crashMsg{id: id, name: name})
	})
	defer h.SetCrashFunc(nil)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}

// dashboardModel holds the state for the Bubble Tea dashboard.
type dashboardModel struct {
	host        *host.Host
	refreshRate time.Duration

	plugins     []host.PluginStatus
	chain       []int
	errors      []string
	crashes     []string
	selectedRow int
	lastUpdate  time.Time
	width       int
	height      int
}

type tickMsg time.Time

type crashMsg struct {
	id   int
	name string
}

func newDashboardModel(h *host.Host, refresh time.Duration) *dashboardModel {
	return &dashboardModel{
		host:        h,
		refreshRate: refresh,
		lastUpdate:  time.Now(),
	}
}

// Init implements the Bubble Tea init method.
func (m *dashboardModel) Init() tea.Cmd {
	return m.tickCmd()
}

func (m *dashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements the Bubble Tea update method.
func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "up", "k":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			return m, nil

		case "down", "j":
			if m.selectedRow < len(m.plugins)-1 {
				m.selectedRow++
			}
			return m, nil

		case "b":
			if p, ok := m.selected(); ok {
				m.host.SetBypass(p.ID, !p.Bypassed)
				m.refresh()
			}
			return m, nil

		case "d":
			if p, ok := m.selected(); ok {
				m.host.RemoveFromChain(p.ID)
				m.refresh()
			}
			return m, nil

		case "a":
			if p, ok := m.selected(); ok {
				m.host.AddToChain(p.ID)
				m.refresh()
			}
			return m, nil

		case "s":
			if m.host.AudioRunning() {
				m.host.StopAudio()
			} else {
				m.host.StartAudio("")
			}
			m.refresh()
			return m, nil
		}

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()

	case crashMsg:
		m.crashes = append(m.crashes, fmt.Sprintf("%s (id %d)", msg.name, msg.id))
		return m, nil
	}

	return m, nil
}

func (m *dashboardModel) refresh() {
	m.plugins = m.host.LoadedPlugins()
	m.chain = m.host.ChainIDs()
	m.errors = m.host.RecentErrors(5)
	m.lastUpdate = time.Now()
	if m.selectedRow >= len(m.plugins) {
		m.selectedRow = len(m.plugins) - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

func (m *dashboardModel) selected() (host.PluginStatus, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.plugins) {
		return host.PluginStatus{}, false
	}
	return m.plugins[m.selectedRow], true
}

// View implements the Bubble Tea view method.
func (m *dashboardModel) View() string {
	header := m.renderHeader()
	table := m.renderPluginTable()
	errors := m.renderErrors()
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, table, errors, footer)
}

func (m *dashboardModel) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render("Rackhost")

	audio := "STOPPED"
	audioStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	if m.host.AudioRunning() {
		audio = "RUNNING"
		audioStyle = audioStyle.Foreground(lipgloss.Color("46"))
	}

	info := fmt.Sprintf("%v Hz / %d frames | Chain: %d stage(s) | Audio: ",
		m.host.SampleRate(), m.host.PeriodFrames(), len(m.chain))

	return lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", info, audioStyle.Render(audio))
}

func (m *dashboardModel) renderPluginTable() string {
	if len(m.plugins) == 0 {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("\n  No plugins loaded. Start with --load <path>.\n")
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render(fmt.Sprintf("%-4s │ %-20s │ %-5s │ %-8s │ %-6s │ %s",
			"ID", "NAME", "FMT", "STATE", "BYPASS", "CHAIN"))

	rows := []string{header}
	for i, p := range m.plugins {
		rowStyle := lipgloss.NewStyle()
		if i == m.selectedRow {
			rowStyle = rowStyle.Background(lipgloss.Color("240"))
		}
		if p.State.Terminal() {
			rowStyle = rowStyle.Foreground(lipgloss.Color("196"))
		}

		bypass := ""
		if p.Bypassed {
			bypass = "yes"
		}
		chainPos := "-"
		for pos, id := range m.chain {
			if id == p.ID {
				chainPos = fmt.Sprintf("#%d", pos+1)
				break
			}
		}

		row := fmt.Sprintf("%-4d │ %-20s │ %-5s │ %-8s │ %-6s │ %s",
			p.ID, truncateString(p.Name, 20), p.Format, p.State, bypass, chainPos)
		rows = append(rows, rowStyle.Render(row))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *dashboardModel) renderErrors() string {
	var lines []string

	if len(m.crashes) > 0 {
		label := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")).
			Render("\nCrashed this session:")
		lines = append(lines, label)
		for _, c := range m.crashes {
			lines = append(lines, "  "+c)
		}
	}

	if len(m.errors) > 0 {
		label := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Render("\nRecent errors:")
		lines = append(lines, label)
		for _, e := range m.errors {
			lines = append(lines, "  "+truncateString(e, maxInt(20, m.width-4)))
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *dashboardModel) renderFooter() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render(fmt.Sprintf("\n[↑/↓] select  [b] bypass  [a] add to chain  [d] drop from chain  [s] audio on/off  [q] quit | updated %s",
			m.lastUpdate.Format("15:04:05")))
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
