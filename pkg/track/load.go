// ABOUTME: Track load results
// ABOUTME: Closed set of outcomes from resolving an identifier on a node
package track

import (
	"encoding/json"
	"fmt"

	"github.com/lavaclient/lava-go/pkg/protocol"
)

// LoadResult is one of *Single, *Playlist, *Search or *Empty. A failed load
// is returned as a *LoadError instead.
type LoadResult interface {
	// All lists every track in the result in order.
	All() []Track
	loadResult()
}

// Single is a directly resolved track.
type Single struct {
	Track Track
}

// Playlist is a resolved playlist. Selected is the index the link pointed at,
// or -1.
type Playlist struct {
	Name     string
	Selected int
	Tracks   []Track
}

// Search holds search results, best match first.
type Search struct {
	Tracks []Track
}

// Empty means nothing matched.
type Empty struct{}

func (*Single) loadResult()   {}
func (*Playlist) loadResult() {}
func (*Search) loadResult()   {}
func (*Empty) loadResult()    {}

func (s *Single) All() []Track   { return []Track{s.Track} }
func (p *Playlist) All() []Track { return append([]Track(nil), p.Tracks...) }
func (s *Search) All() []Track   { return append([]Track(nil), s.Tracks...) }
func (*Empty) All() []Track      { return nil }

// SelectedTrack returns the track the playlist link pointed at.
func (p *Playlist) SelectedTrack() (Track, bool) {
	if p.Selected < 0 || p.Selected >= len(p.Tracks) {
		return Track{}, false
	}
	return p.Tracks[p.Selected], true
}

// LoadError is a load the node could not complete.
type LoadError struct {
	Message  string
	Severity protocol.Severity
	Cause    string
}

func (e *LoadError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("load failed (%s): %s: %s", e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("load failed (%s): %s", e.Severity, e.Message)
}

// ParseLoadResult interprets a raw load response from either protocol version.
func ParseLoadResult(data *protocol.LoadResultData) (LoadResult, error) {
	if data == nil {
		return &Empty{}, nil
	}

	switch data.LoadType.Normalize() {
	case protocol.LoadTypeEmpty:
		return &Empty{}, nil

	case protocol.LoadTypeError:
		ex := data.Exception
		if len(data.Data) > 0 {
			ex = &protocol.Exception{}
			if err := json.Unmarshal(data.Data, ex); err != nil {
				return nil, fmt.Errorf("decode load exception: %w", err)
			}
		}
		if ex == nil {
			return nil, &LoadError{Message: "unknown error", Severity: protocol.SeverityCommon}
		}
		return nil, &LoadError{Message: ex.Message, Severity: ex.Severity, Cause: ex.Cause}

	case protocol.LoadTypeTrack:
		if len(data.Data) > 0 {
			var td protocol.TrackData
			if err := json.Unmarshal(data.Data, &td); err != nil {
				return nil, fmt.Errorf("decode track: %w", err)
			}
			return &Single{Track: New(td)}, nil
		}
		if len(data.Tracks) == 0 {
			return &Empty{}, nil
		}
		return &Single{Track: New(data.Tracks[0])}, nil

	case protocol.LoadTypePlaylist:
		pl := protocol.PlaylistData{Tracks: data.Tracks}
		if data.PlaylistInfo != nil {
			pl.Info = *data.PlaylistInfo
		}
		if len(data.Data) > 0 {
			if err := json.Unmarshal(data.Data, &pl); err != nil {
				return nil, fmt.Errorf("decode playlist: %w", err)
			}
		}
		return &Playlist{
			Name:     pl.Info.Name,
			Selected: pl.Info.SelectedTrack,
			Tracks:   newAll(pl.Tracks),
		}, nil

	case protocol.LoadTypeSearch:
		tracks := data.Tracks
		if len(data.Data) > 0 {
			if err := json.Unmarshal(data.Data, &tracks); err != nil {
				return nil, fmt.Errorf("decode search results: %w", err)
			}
		}
		return &Search{Tracks: newAll(tracks)}, nil
	}

	return nil, fmt.Errorf("unknown load type %q", data.LoadType)
}

func newAll(data []protocol.TrackData) []Track {
	tracks := make([]Track, 0, len(data))
	for _, td := range data {
		tracks = append(tracks, New(td))
	}
	return tracks
}
