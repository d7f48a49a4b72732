// ABOUTME: Translates client events into dashboard messages
// ABOUTME: Keeps the model free of any dependency on live nodes or players
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lavaclient/lava-go/pkg/lava"
)

// FromEvent converts an event into the messages that update the dashboard.
func FromEvent(e lava.Event) []tea.Msg {
	switch e := e.(type) {
	case lava.NodeStateEvent:
		return []tea.Msg{
			NodeMsg{ID: e.Node.ID(), State: e.New.String(), Penalty: e.Node.Penalty()},
			LogMsg(fmt.Sprintf("node %s: %s -> %s", e.Node.ID(), e.Old, e.New)),
		}
	case lava.NodeReadyEvent:
		return []tea.Msg{
			NodeMsg{ID: e.Node.ID(), SessionID: e.SessionID},
			LogMsg(fmt.Sprintf("node %s ready (session %s, resumed %t)", e.Node.ID(), e.SessionID, e.Resumed)),
		}
	case lava.NodeStatsEvent:
		return []tea.Msg{NodeMsg{
			ID:         e.Node.ID(),
			HasStats:   true,
			Players:    e.Stats.Players,
			Playing:    e.Stats.PlayingPlayers,
			CPULoad:    e.Stats.CPU.SystemLoad,
			MemoryUsed: e.Stats.Memory.Used,
			Uptime:     msDuration(e.Stats.Uptime),
			Penalty:    e.Node.Penalty(),
		}}
	case lava.NodeDisconnectedEvent:
		return []tea.Msg{LogMsg(fmt.Sprintf("node %s lost: %v", e.Node.ID(), e.Err))}
	case lava.PlayerStateEvent:
		if e.New == lava.StateDestroyed {
			return []tea.Msg{PlayerGoneMsg{Guild: e.Player.GuildID()}}
		}
		return []tea.Msg{playerSnapshot(e.Player)}
	case lava.PlayerUpdateEvent:
		msg := playerSnapshot(e.Player)
		msg.Position = e.Position
		return []tea.Msg{msg}
	case lava.TrackStartEvent:
		return []tea.Msg{
			playerSnapshot(e.Player),
			LogMsg(fmt.Sprintf("%s: playing %s", e.Player.GuildID(), e.Track)),
		}
	case lava.TrackEndEvent:
		return []tea.Msg{LogMsg(fmt.Sprintf("%s: ended %s (%s)", e.Player.GuildID(), e.Track.Info.Title, e.Reason))}
	case lava.TrackExceptionEvent:
		return []tea.Msg{LogMsg(fmt.Sprintf("%s: exception %s", e.Player.GuildID(), e.Exception.Message))}
	case lava.TrackStuckEvent:
		return []tea.Msg{LogMsg(fmt.Sprintf("%s: stuck for %s", e.Player.GuildID(), e.Threshold))}
	case lava.QueueEndEvent:
		return []tea.Msg{LogMsg(fmt.Sprintf("%s: queue ended", e.Player.GuildID()))}
	case lava.VoiceClosedEvent:
		return []tea.Msg{LogMsg(fmt.Sprintf("%s: voice closed %d %s", e.Player.GuildID(), e.Code, e.Reason))}
	case lava.PlayerErrorEvent:
		return []tea.Msg{LogMsg(fmt.Sprintf("%s: %v", e.Player.GuildID(), e.Err))}
	}
	return nil
}

func playerSnapshot(p *lava.Player) PlayerMsg {
	msg := PlayerMsg{
		Guild:     p.GuildID(),
		State:     p.State().String(),
		Position:  p.Position(),
		Volume:    p.Volume(),
		HasVolume: true,
	}
	if n := p.Node(); n != nil {
		msg.Node = n.ID()
	}
	if t, ok := p.Current(); ok {
		msg.Title = t.Info.Title
		msg.Length = t.Info.Length
	} else {
		msg.ClearTrack = true
	}
	return msg
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
