// ABOUTME: Bubbletea model for the node and player dashboard
// ABOUTME: Defines dashboard state, update logic and rendering
package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/disgoorg/snowflake/v2"
)

const maxLogLines = 8

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

// stateStyle colors a node or player state and pads it to width.
func stateStyle(state string, width int) string {
	style := lipgloss.NewStyle().Width(width)
	switch state {
	case "connected", "playing":
		style = style.Foreground(lipgloss.Color("86"))
	case "connecting", "reconnecting", "loading", "paused":
		style = style.Foreground(lipgloss.Color("220"))
	case "disconnected", "destroyed":
		style = style.Foreground(lipgloss.Color("196"))
	default:
		style = style.Foreground(lipgloss.Color("250"))
	}
	return style.Render(state)
}

// Model represents the TUI state
type Model struct {
	nodes     map[string]NodeMsg
	nodeOrder []string

	players  map[snowflake.ID]PlayerMsg
	selected int

	logs []string

	// Debug
	showDebug bool

	control *Control

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case NodeMsg:
		m.applyNode(msg)
	case PlayerMsg:
		m.applyPlayer(msg)
	case PlayerGoneMsg:
		delete(m.players, msg.Guild)
		m.clampSelection()
	case LogMsg:
		m.appendLog(string(msg))
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderNodes()
	s += m.renderPlayers()
	s += m.renderLog()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	connected := 0
	for _, n := range m.nodes {
		if n.State == "connected" {
			connected++
		}
	}
	status := fmt.Sprintf("%d/%d nodes connected, %d players", connected, len(m.nodes), len(m.players))

	return fmt.Sprintf(`┌─ %s ──────────────────────────────────────────────────────┐
│ %-62s │
├────────────────────────────────────────────────────────────────┤
`, titleStyle.Render("lavamon"), status)
}

func (m Model) renderNodes() string {
	if len(m.nodes) == 0 {
		return "│ No nodes                                                       │\n"
	}

	s := fmt.Sprintf("│ %-12s %-13s %7s %7s %6s %11s │\n", "NODE", "STATE", "PLAYERS", "PLAYING", "CPU", "MEM")
	for _, id := range m.nodeOrder {
		n := m.nodes[id]
		s += fmt.Sprintf("│ %-12s %s %7d %7d %5.1f%% %11s │\n",
			truncate(n.ID, 12), stateStyle(n.State, 13), n.Players, n.Playing, n.CPULoad*100, formatBytes(n.MemoryUsed))
	}
	return s
}

func (m Model) renderPlayers() string {
	s := "├────────────────────────────────────────────────────────────────┤\n"
	guilds := m.sortedGuilds()
	if len(guilds) == 0 {
		return s + "│ No players                                                     │\n"
	}

	for i, g := range guilds {
		p := m.players[g]
		cursor := " "
		if i == m.selected {
			cursor = ">"
		}
		title := p.Title
		if title == "" {
			title = "(nothing)"
		}
		s += fmt.Sprintf("│%s %-20s %-9s %s %-22s│\n",
			cursor, g, truncate(p.Node, 9), stateStyle(p.State, 8), truncate(title, 22))
		s += fmt.Sprintf("│    [%s] %s / %s  vol %d%%%-19s│\n",
			renderBar(int(p.Position.Milliseconds()), int(p.Length.Milliseconds()), 10),
			formatDuration(p.Position), formatDuration(p.Length), p.Volume, "")
	}
	return s
}

func (m Model) renderLog() string {
	s := "├────────────────────────────────────────────────────────────────┤\n"
	for _, line := range m.logs {
		s += fmt.Sprintf("│ %-62s │\n", truncate(line, 62))
	}
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return "│ " + helpStyle.Render("↑/↓:Select  space:Pause  n:Next  +/-:Volume  d:Debug  q:Quit") + "   │\n" +
		"└────────────────────────────────────────────────────────────────┘\n"
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	s := "│ DEBUG:                                                         │\n"
	for _, id := range m.nodeOrder {
		n := m.nodes[id]
		s += fmt.Sprintf("│   %-10s session=%-12s penalty=%-8.2f up=%-10s │\n",
			truncate(n.ID, 10), truncate(n.SessionID, 12), n.Penalty, formatDuration(n.Uptime))
	}
	return s
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.send(Command{Kind: CommandQuit})
		return m, tea.Quit
	case "up":
		if m.selected > 0 {
			m.selected--
		}
	case "down":
		if m.selected < len(m.players)-1 {
			m.selected++
		}
	case " ", "space":
		if p, ok := m.selectedPlayer(); ok {
			m.send(Command{Kind: CommandTogglePause, Guild: p.Guild})
		}
	case "n":
		if p, ok := m.selectedPlayer(); ok {
			m.send(Command{Kind: CommandSkip, Guild: p.Guild})
		}
	case "+", "=":
		m.adjustVolume(10)
	case "-":
		m.adjustVolume(-10)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) adjustVolume(delta int) {
	p, ok := m.selectedPlayer()
	if !ok {
		return
	}
	volume := max(0, min(p.Volume+delta, 1000))
	if volume == p.Volume {
		return
	}
	p.Volume = volume
	m.players[p.Guild] = p
	m.send(Command{Kind: CommandVolume, Guild: p.Guild, Volume: volume})
}

// send hands a command to the app without blocking the UI.
func (m Model) send(cmd Command) {
	if m.control == nil {
		return
	}
	select {
	case m.control.Commands <- cmd:
	default:
	}
}

func (m Model) sortedGuilds() []snowflake.ID {
	guilds := make([]snowflake.ID, 0, len(m.players))
	for g := range m.players {
		guilds = append(guilds, g)
	}
	slices.Sort(guilds)
	return guilds
}

func (m Model) selectedPlayer() (PlayerMsg, bool) {
	guilds := m.sortedGuilds()
	if m.selected < 0 || m.selected >= len(guilds) {
		return PlayerMsg{}, false
	}
	return m.players[guilds[m.selected]], true
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.players) {
		m.selected = max(0, len(m.players)-1)
	}
}

func (m *Model) applyNode(msg NodeMsg) {
	old, known := m.nodes[msg.ID]
	if !known {
		m.nodeOrder = append(m.nodeOrder, msg.ID)
	}
	// Partial updates keep the last known stats.
	if !msg.HasStats && known {
		msg.Players, msg.Playing = old.Players, old.Playing
		msg.CPULoad, msg.MemoryUsed = old.CPULoad, old.MemoryUsed
		msg.Uptime, msg.HasStats = old.Uptime, old.HasStats
	}
	if msg.State == "" {
		msg.State = old.State
	}
	if msg.SessionID == "" {
		msg.SessionID = old.SessionID
	}
	m.nodes[msg.ID] = msg
}

func (m *Model) applyPlayer(msg PlayerMsg) {
	old, known := m.players[msg.Guild]
	if known {
		if msg.Node == "" {
			msg.Node = old.Node
		}
		if msg.State == "" {
			msg.State = old.State
		}
		if msg.Title == "" && !msg.ClearTrack {
			msg.Title, msg.Length = old.Title, old.Length
		}
		if msg.Volume == 0 && !msg.HasVolume {
			msg.Volume = old.Volume
		}
	}
	m.players[msg.Guild] = msg
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

// NodeMsg updates one node row
type NodeMsg struct {
	ID         string
	State      string
	SessionID  string
	HasStats   bool
	Players    int
	Playing    int
	CPULoad    float64
	MemoryUsed int64
	Uptime     time.Duration
	Penalty    float64
}

// PlayerMsg updates one player row. Empty fields keep their previous value.
type PlayerMsg struct {
	Guild      snowflake.ID
	Node       string
	State      string
	Title      string
	Length     time.Duration
	ClearTrack bool
	Position   time.Duration
	Volume     int
	HasVolume  bool
}

// PlayerGoneMsg removes a player row
type PlayerGoneMsg struct {
	Guild snowflake.ID
}

// LogMsg appends a line to the event log
type LogMsg string

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = min((value*width)/max, width)
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	mins := int(d/time.Minute) % 60
	secs := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
