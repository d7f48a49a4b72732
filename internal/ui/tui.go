// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the command channel back to the app
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/disgoorg/snowflake/v2"
)

// CommandKind says what the user asked for.
type CommandKind int

const (
	CommandQuit CommandKind = iota
	CommandTogglePause
	CommandSkip
	CommandVolume
)

// Command is a key press the app should act on.
type Command struct {
	Kind   CommandKind
	Guild  snowflake.ID
	Volume int
}

// Control carries commands from the TUI to the app
type Control struct {
	Commands chan Command
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Commands: make(chan Command, 10),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control) Model {
	return Model{
		nodes:   make(map[string]NodeMsg),
		players: make(map[snowflake.ID]PlayerMsg),
		control: ctrl,
	}
}

// Run creates the TUI program. The caller starts it with Run and feeds it
// with Send.
func Run(ctrl *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}
