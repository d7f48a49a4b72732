// ABOUTME: Request and response bodies of the node REST API
// ABOUTME: Player updates, sessions, load results and node info
package protocol

import (
	"encoding/json"

	"github.com/disgoorg/snowflake/v2"
)

// UpdatePlayer is the PATCH body for a player. Nil fields are left as they are
// on the node.
type UpdatePlayer struct {
	Track    *UpdateTrack `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	EndTime  *int64       `json:"endTime,omitempty"`
	Volume   *int         `json:"volume,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Filters  *Filters     `json:"filters,omitempty"`
	Voice    *VoiceState  `json:"voice,omitempty"`
}

// UpdateTrack selects what to play. A nil Encoded with no Identifier stops
// the current track.
type UpdateTrack struct {
	Encoded    *string        `json:"encoded"`
	Identifier string         `json:"identifier,omitempty"`
	UserData   map[string]any `json:"userData,omitempty"`
}

// MarshalJSON drops "encoded" when an identifier is given; the node rejects
// bodies carrying both.
func (u UpdateTrack) MarshalJSON() ([]byte, error) {
	if u.Identifier != "" {
		return json.Marshal(struct {
			Identifier string         `json:"identifier"`
			UserData   map[string]any `json:"userData,omitempty"`
		}{u.Identifier, u.UserData})
	}
	return json.Marshal(struct {
		Encoded  *string        `json:"encoded"`
		UserData map[string]any `json:"userData,omitempty"`
	}{u.Encoded, u.UserData})
}

// VoiceState is the voice connection a node needs to send audio.
type VoiceState struct {
	Token     string        `json:"token"`
	Endpoint  string        `json:"endpoint"`
	SessionID string        `json:"sessionId"`
	ChannelID *snowflake.ID `json:"channelId,omitempty"`
}

// PlayerData is the node's view of a player, returned by updates.
type PlayerData struct {
	GuildID snowflake.ID `json:"guildId"`
	Track   *TrackData   `json:"track"`
	Volume  int          `json:"volume"`
	Paused  bool         `json:"paused"`
	State   PlayerState  `json:"state"`
	Voice   VoiceState   `json:"voice"`
	Filters Filters      `json:"filters"`
}

type SessionUpdate struct {
	Resuming *bool `json:"resuming,omitempty"`
	Timeout  *int  `json:"timeout,omitempty"`
}

type SessionData struct {
	Resuming bool `json:"resuming"`
	Timeout  int  `json:"timeout"`
}

// LoadType classifies a load result.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// v3 spellings
const (
	LoadTypeTrackLoaded    LoadType = "TRACK_LOADED"
	LoadTypePlaylistLoaded LoadType = "PLAYLIST_LOADED"
	LoadTypeSearchResult   LoadType = "SEARCH_RESULT"
	LoadTypeNoMatches      LoadType = "NO_MATCHES"
	LoadTypeLoadFailed     LoadType = "LOAD_FAILED"
)

// Normalize maps v3 load types onto their v4 names.
func (t LoadType) Normalize() LoadType {
	switch t {
	case LoadTypeTrackLoaded:
		return LoadTypeTrack
	case LoadTypePlaylistLoaded:
		return LoadTypePlaylist
	case LoadTypeSearchResult:
		return LoadTypeSearch
	case LoadTypeNoMatches:
		return LoadTypeEmpty
	case LoadTypeLoadFailed:
		return LoadTypeError
	}
	return t
}

// LoadResultData is the raw /loadtracks response. v4 nodes fill Data, whose
// shape depends on LoadType; v3 nodes fill the flat fields.
type LoadResultData struct {
	LoadType LoadType        `json:"loadType"`
	Data     json.RawMessage `json:"data,omitempty"`

	PlaylistInfo *PlaylistInfo `json:"playlistInfo,omitempty"`
	Tracks       []TrackData   `json:"tracks,omitempty"`
	Exception    *Exception    `json:"exception,omitempty"`
}

type PlaylistData struct {
	Info       PlaylistInfo   `json:"info"`
	PluginInfo map[string]any `json:"pluginInfo,omitempty"`
	Tracks     []TrackData    `json:"tracks"`
}

type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

// Info describes the node software.
type Info struct {
	Version        VersionInfo `json:"version"`
	BuildTime      int64       `json:"buildTime"`
	Git            GitInfo     `json:"git"`
	JVM            string      `json:"jvm"`
	Lavaplayer     string      `json:"lavaplayer"`
	SourceManagers []string    `json:"sourceManagers"`
	Filters        []string    `json:"filters"`
	Plugins        []Plugin    `json:"plugins"`
}

type VersionInfo struct {
	Semver     string `json:"semver"`
	Major      int    `json:"major"`
	Minor      int    `json:"minor"`
	Patch      int    `json:"patch"`
	PreRelease string `json:"preRelease"`
}

type GitInfo struct {
	Branch     string `json:"branch"`
	Commit     string `json:"commit"`
	CommitTime int64  `json:"commitTime"`
}

type Plugin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ErrorData is the body of a non-2xx REST response.
type ErrorData struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Trace     string `json:"trace,omitempty"`
}
