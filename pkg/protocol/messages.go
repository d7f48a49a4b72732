// ABOUTME: Lavalink wire message type definitions
// ABOUTME: Inbound WebSocket frames, node events and legacy outbound ops
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// Op identifies a WebSocket frame.
type Op string

// Inbound ops
const (
	OpReady        Op = "ready"
	OpPlayerUpdate Op = "playerUpdate"
	OpStats        Op = "stats"
	OpEvent        Op = "event"
)

// Outbound ops, only understood by v3 nodes. v4 nodes take commands over REST.
const (
	OpPlay              Op = "play"
	OpStop              Op = "stop"
	OpPause             Op = "pause"
	OpSeek              Op = "seek"
	OpVolume            Op = "volume"
	OpFilters           Op = "filters"
	OpDestroy           Op = "destroy"
	OpVoiceUpdate       Op = "voiceUpdate"
	OpConfigureResuming Op = "configureResuming"
)

// EventType identifies the payload of an event frame.
type EventType string

const (
	EventTrackStart      EventType = "TrackStartEvent"
	EventTrackEnd        EventType = "TrackEndEvent"
	EventTrackException  EventType = "TrackExceptionEvent"
	EventTrackStuck      EventType = "TrackStuckEvent"
	EventWebSocketClosed EventType = "WebSocketClosedEvent"
)

// EndReason says why a track stopped playing.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// Valid reports whether r is one of the known reasons.
func (r EndReason) Valid() bool {
	switch r {
	case EndFinished, EndLoadFailed, EndStopped, EndReplaced, EndCleanup:
		return true
	}
	return false
}

// MayStartNext reports whether the queue should advance after a track ended
// for this reason. A replaced track already has its successor loading.
func (r EndReason) MayStartNext() bool {
	return r == EndFinished || r == EndLoadFailed || r == EndStopped
}

// UnmarshalJSON accepts both v4 ("loadFailed") and v3 ("LOAD_FAILED") spellings.
func (r *EndReason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = EndReason(camelFromSnake(s))
	return nil
}

// Severity grades a track exception.
type Severity string

const (
	SeverityCommon     Severity = "common"
	SeveritySuspicious Severity = "suspicious"
	SeverityFatal      Severity = "fatal"
)

// UnmarshalJSON accepts both v4 ("fatal") and v3 ("FAULT", "FATAL") spellings.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.ToLower(raw)
	if raw == "fault" {
		raw = string(SeverityFatal)
	}
	*s = Severity(raw)
	return nil
}

// Exception describes a failure reported by the node.
type Exception struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Cause    string   `json:"cause"`
}

// Message is a parsed inbound frame.
type Message interface {
	Op() Op
}

// Ready is the first frame of every session.
type Ready struct {
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`
}

func (Ready) Op() Op { return OpReady }

// PlayerUpdate carries the remote position of one player.
type PlayerUpdate struct {
	GuildID snowflake.ID `json:"guildId"`
	State   PlayerState  `json:"state"`
}

func (PlayerUpdate) Op() Op { return OpPlayerUpdate }

// PlayerState is the remote view of a player. Time is the node's unix
// millisecond clock when Position was sampled.
type PlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// Stats is the periodic resource report of a node.
type Stats struct {
	Players        int         `json:"players"`
	PlayingPlayers int         `json:"playingPlayers"`
	Uptime         int64       `json:"uptime"`
	Memory         Memory      `json:"memory"`
	CPU            CPU         `json:"cpu"`
	FrameStats     *FrameStats `json:"frameStats,omitempty"`
}

func (Stats) Op() Op { return OpStats }

type Memory struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

type CPU struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

// FrameStats counts audio frames over the last minute. Absent when the
// node has no playing players.
type FrameStats struct {
	Sent    int `json:"sent"`
	Nulled  int `json:"nulled"`
	Deficit int `json:"deficit"`
}

// Event is an inbound event frame addressed to one guild.
type Event interface {
	Message
	Type() EventType
	Guild() snowflake.ID
}

type TrackStartEvent struct {
	GuildID snowflake.ID `json:"guildId"`
	Track   TrackData    `json:"track"`
}

type TrackEndEvent struct {
	GuildID snowflake.ID `json:"guildId"`
	Track   TrackData    `json:"track"`
	Reason  EndReason    `json:"reason"`
}

type TrackExceptionEvent struct {
	GuildID   snowflake.ID `json:"guildId"`
	Track     TrackData    `json:"track"`
	Exception Exception    `json:"exception"`
}

type TrackStuckEvent struct {
	GuildID     snowflake.ID `json:"guildId"`
	Track       TrackData    `json:"track"`
	ThresholdMs int64        `json:"thresholdMs"`
}

type WebSocketClosedEvent struct {
	GuildID  snowflake.ID `json:"guildId"`
	Code     int          `json:"code"`
	Reason   string       `json:"reason"`
	ByRemote bool         `json:"byRemote"`
}

func (TrackStartEvent) Op() Op      { return OpEvent }
func (TrackEndEvent) Op() Op        { return OpEvent }
func (TrackExceptionEvent) Op() Op  { return OpEvent }
func (TrackStuckEvent) Op() Op      { return OpEvent }
func (WebSocketClosedEvent) Op() Op { return OpEvent }

func (TrackStartEvent) Type() EventType      { return EventTrackStart }
func (TrackEndEvent) Type() EventType        { return EventTrackEnd }
func (TrackExceptionEvent) Type() EventType  { return EventTrackException }
func (TrackStuckEvent) Type() EventType      { return EventTrackStuck }
func (WebSocketClosedEvent) Type() EventType { return EventWebSocketClosed }

func (e TrackStartEvent) Guild() snowflake.ID      { return e.GuildID }
func (e TrackEndEvent) Guild() snowflake.ID        { return e.GuildID }
func (e TrackExceptionEvent) Guild() snowflake.ID  { return e.GuildID }
func (e TrackStuckEvent) Guild() snowflake.ID      { return e.GuildID }
func (e WebSocketClosedEvent) Guild() snowflake.ID { return e.GuildID }

// TrackData is a track as it appears on the wire.
type TrackData struct {
	Encoded    string         `json:"encoded"`
	Info       TrackInfo      `json:"info"`
	PluginInfo map[string]any `json:"pluginInfo,omitempty"`
	UserData   map[string]any `json:"userData,omitempty"`
}

// UnmarshalJSON also accepts the bare encoded string v3 sends in events and
// the "track" key v3 uses in load results.
func (t *TrackData) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		*t = TrackData{}
		return json.Unmarshal(data, &t.Encoded)
	}

	type plain TrackData
	var raw struct {
		plain
		Track string `json:"track"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TrackData(raw.plain)
	if t.Encoded == "" {
		t.Encoded = raw.Track
	}
	return nil
}

// TrackInfo holds track metadata. Durations are milliseconds.
type TrackInfo struct {
	Identifier string  `json:"identifier"`
	IsSeekable bool    `json:"isSeekable"`
	Author     string  `json:"author"`
	Length     int64   `json:"length"`
	IsStream   bool    `json:"isStream"`
	Position   int64   `json:"position"`
	Title      string  `json:"title"`
	URI        *string `json:"uri"`
	ArtworkURL *string `json:"artworkUrl"`
	ISRC       *string `json:"isrc"`
	SourceName string  `json:"sourceName"`
}

type frameHeader struct {
	Op   Op        `json:"op"`
	Type EventType `json:"type"`
}

// Parse decodes one inbound text frame. Unknown ops and event types are
// reported with ErrUnknownOp and ErrUnknownEvent.
func Parse(data []byte) (Message, error) {
	var header frameHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}

	var msg Message
	switch header.Op {
	case OpReady:
		msg = &Ready{}
	case OpPlayerUpdate:
		msg = &PlayerUpdate{}
	case OpStats:
		msg = &Stats{}
	case OpEvent:
		switch header.Type {
		case EventTrackStart:
			msg = &TrackStartEvent{}
		case EventTrackEnd:
			msg = &TrackEndEvent{}
		case EventTrackException:
			msg = &TrackExceptionEvent{}
		case EventTrackStuck:
			msg = &TrackStuckEvent{}
		case EventWebSocketClosed:
			msg = &WebSocketClosedEvent{}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, header.Type)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, header.Op)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("parse %s frame: %w", header.Op, err)
	}
	return msg, nil
}

// camelFromSnake turns "LOAD_FAILED" into "loadFailed" and leaves
// already camel-cased input alone.
func camelFromSnake(s string) string {
	if strings.ToUpper(s) != s {
		return s
	}
	parts := strings.Split(strings.ToLower(s), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// GuildCommand is a v3 op that only names the guild (stop, destroy).
type GuildCommand struct {
	Op      Op           `json:"op"`
	GuildID snowflake.ID `json:"guildId"`
}

type PlayCommand struct {
	Op        Op           `json:"op"`
	GuildID   snowflake.ID `json:"guildId"`
	Track     string       `json:"track"`
	StartTime int64        `json:"startTime,omitempty"`
	EndTime   int64        `json:"endTime,omitempty"`
	Volume    *int         `json:"volume,omitempty"`
	NoReplace bool         `json:"noReplace"`
	Pause     bool         `json:"pause"`
}

type PauseCommand struct {
	Op      Op           `json:"op"`
	GuildID snowflake.ID `json:"guildId"`
	Pause   bool         `json:"pause"`
}

type SeekCommand struct {
	Op       Op           `json:"op"`
	GuildID  snowflake.ID `json:"guildId"`
	Position int64        `json:"position"`
}

type VolumeCommand struct {
	Op      Op           `json:"op"`
	GuildID snowflake.ID `json:"guildId"`
	Volume  int          `json:"volume"`
}

// FiltersCommand flattens the filter object into the op, as v3 expects.
type FiltersCommand struct {
	Op      Op           `json:"op"`
	GuildID snowflake.ID `json:"guildId"`
	Filters
}

type VoiceUpdateCommand struct {
	Op        Op               `json:"op"`
	GuildID   snowflake.ID     `json:"guildId"`
	SessionID string           `json:"sessionId"`
	Event     VoiceServerEvent `json:"event"`
}

// VoiceServerEvent mirrors the gateway VOICE_SERVER_UPDATE payload.
type VoiceServerEvent struct {
	Token    string       `json:"token"`
	GuildID  snowflake.ID `json:"guild_id"`
	Endpoint string       `json:"endpoint"`
}

type ConfigureResumingCommand struct {
	Op      Op     `json:"op"`
	Key     string `json:"key"`
	Timeout int    `json:"timeout"`
}
