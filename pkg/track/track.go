// ABOUTME: Playable track value type
// ABOUTME: Converts between wire track data and an immutable Go representation
package track

import (
	"maps"
	"time"

	"github.com/lavaclient/lava-go/pkg/protocol"
)

// Track is an opaque encoded track plus its metadata. It is a value: copies
// are independent and nothing in this module mutates one after New.
type Track struct {
	Encoded    string
	Info       Info
	PluginInfo map[string]any
	UserData   map[string]any
}

// Info is human readable track metadata.
type Info struct {
	Identifier string
	Title      string
	Author     string
	URI        string
	ArtworkURL string
	ISRC       string
	SourceName string
	Length     time.Duration
	Position   time.Duration
	IsStream   bool
	IsSeekable bool
}

// New builds a Track from wire data.
func New(data protocol.TrackData) Track {
	return Track{
		Encoded: data.Encoded,
		Info: Info{
			Identifier: data.Info.Identifier,
			Title:      data.Info.Title,
			Author:     data.Info.Author,
			URI:        deref(data.Info.URI),
			ArtworkURL: deref(data.Info.ArtworkURL),
			ISRC:       deref(data.Info.ISRC),
			SourceName: data.Info.SourceName,
			Length:     time.Duration(data.Info.Length) * time.Millisecond,
			Position:   time.Duration(data.Info.Position) * time.Millisecond,
			IsStream:   data.Info.IsStream,
			IsSeekable: data.Info.IsSeekable,
		},
		PluginInfo: maps.Clone(data.PluginInfo),
		UserData:   maps.Clone(data.UserData),
	}
}

// Data converts t back to its wire form.
func (t Track) Data() protocol.TrackData {
	return protocol.TrackData{
		Encoded: t.Encoded,
		Info: protocol.TrackInfo{
			Identifier: t.Info.Identifier,
			IsSeekable: t.Info.IsSeekable,
			Author:     t.Info.Author,
			Length:     t.Info.Length.Milliseconds(),
			IsStream:   t.Info.IsStream,
			Position:   t.Info.Position.Milliseconds(),
			Title:      t.Info.Title,
			URI:        ptr(t.Info.URI),
			ArtworkURL: ptr(t.Info.ArtworkURL),
			ISRC:       ptr(t.Info.ISRC),
			SourceName: t.Info.SourceName,
		},
		PluginInfo: maps.Clone(t.PluginInfo),
		UserData:   maps.Clone(t.UserData),
	}
}

// WithUserData returns a copy of t carrying the given user data, which the
// node echoes back in events.
func (t Track) WithUserData(data map[string]any) Track {
	t.UserData = maps.Clone(data)
	return t
}

// Seekable reports whether the node can seek within t.
func (t Track) Seekable() bool {
	return t.Info.IsSeekable && !t.Info.IsStream
}

// String returns "Author - Title", or the identifier when untitled.
func (t Track) String() string {
	switch {
	case t.Info.Title == "":
		return t.Info.Identifier
	case t.Info.Author == "":
		return t.Info.Title
	}
	return t.Info.Author + " - " + t.Info.Title
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
