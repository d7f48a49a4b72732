// ABOUTME: Error types for nodes, players and the pool
// ABOUTME: Sentinels wrapped by CommandError and NodeSelectionError
package lava

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrNotConnected    = errors.New("node not connected")
	ErrVoiceIncomplete = errors.New("voice credentials incomplete")
	ErrNoTrack         = errors.New("no track loaded")
	ErrNotSeekable     = errors.New("track is not seekable")
	ErrPlayerDestroyed = errors.New("player destroyed")
	ErrPlayerExists    = errors.New("player already exists for guild")
)

var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrNoNodesAvailable = errors.New("no connected nodes available")
	ErrNodeExists       = errors.New("node already registered")
)

// CommandError is a player or node command that could not be carried out.
type CommandError struct {
	Op    string
	Guild snowflake.ID
	Err   error
}

func (e *CommandError) Error() string {
	if e.Guild != 0 {
		return fmt.Sprintf("%s (guild %s): %v", e.Op, e.Guild, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// NodeSelectionError is a failed node lookup or registration.
type NodeSelectionError struct {
	Node string
	Err  error
}

func (e *NodeSelectionError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("node %q: %v", e.Node, e.Err)
	}
	return e.Err.Error()
}

func (e *NodeSelectionError) Unwrap() error { return e.Err }
