// ABOUTME: Events emitted by nodes and players
// ABOUTME: A closed set delivered to the configured OnEvent handler
package lava

import (
	"time"

	"github.com/lavaclient/lava-go/pkg/protocol"
	"github.com/lavaclient/lava-go/pkg/track"
)

// Event is one of the event types in this file. Node events are delivered
// on the node's goroutine or the caller's; player events on the player's
// own goroutine, in the order the node sent them.
type Event interface {
	event()
}

// NodeStateEvent reports every node state transition.
type NodeStateEvent struct {
	Node     *Node
	Old, New NodeState
}

// NodeReadyEvent fires when a node session is established.
type NodeReadyEvent struct {
	Node      *Node
	SessionID string
	Resumed   bool
}

// NodeDisconnectedEvent fires when a connection is lost. Reconnecting is
// false once the node has given up.
type NodeDisconnectedEvent struct {
	Node         *Node
	Err          error
	Reconnecting bool
}

type NodeStatsEvent struct {
	Node  *Node
	Stats protocol.Stats
}

// NodeReconnectedEvent is delivered to each player after its node
// reconnected. When Resumed is false the remote player was lost.
type NodeReconnectedEvent struct {
	Node    *Node
	Player  *Player
	Resumed bool
}

type PlayerStateEvent struct {
	Player   *Player
	Old, New PlayerState
}

// PlayerUpdateEvent carries a remote position report.
type PlayerUpdateEvent struct {
	Player    *Player
	Position  time.Duration
	Connected bool
	Ping      time.Duration
}

type TrackStartEvent struct {
	Player *Player
	Track  track.Track
}

type TrackEndEvent struct {
	Player *Player
	Track  track.Track
	Reason protocol.EndReason
}

type TrackExceptionEvent struct {
	Player    *Player
	Track     track.Track
	Exception protocol.Exception
}

type TrackStuckEvent struct {
	Player    *Player
	Track     track.Track
	Threshold time.Duration
}

// VoiceClosedEvent means the node's voice connection for the guild closed.
type VoiceClosedEvent struct {
	Player   *Player
	Code     int
	Reason   string
	ByRemote bool
}

// QueueEndEvent fires when a track ended and the queue had nothing left.
type QueueEndEvent struct {
	Player *Player
}

// PlayerErrorEvent reports a failure on a path with no caller to return to,
// such as advancing the queue or replaying after a reconnect.
type PlayerErrorEvent struct {
	Player *Player
	Err    error
}

func (NodeStateEvent) event()        {}
func (NodeReadyEvent) event()        {}
func (NodeDisconnectedEvent) event() {}
func (NodeStatsEvent) event()        {}
func (NodeReconnectedEvent) event()  {}
func (PlayerStateEvent) event()      {}
func (PlayerUpdateEvent) event()     {}
func (TrackStartEvent) event()       {}
func (TrackEndEvent) event()         {}
func (TrackExceptionEvent) event()   {}
func (TrackStuckEvent) event()       {}
func (VoiceClosedEvent) event()      {}
func (QueueEndEvent) event()         {}
func (PlayerErrorEvent) event()      {}
