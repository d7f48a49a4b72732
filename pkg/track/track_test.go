// ABOUTME: Tests for tracks and load results
// ABOUTME: Covers wire conversion and every load outcome in both protocol versions
package track

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lavaclient/lava-go/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() protocol.TrackData {
	uri := "https://youtu.be/dQw4w9WgXcQ"
	return protocol.TrackData{
		Encoded: "QAAAjQIAJVJpY2sgQXN0bGV5",
		Info: protocol.TrackInfo{
			Identifier: "dQw4w9WgXcQ",
			IsSeekable: true,
			Author:     "RickAstleyVEVO",
			Length:     212000,
			Title:      "Never Gonna Give You Up",
			URI:        &uri,
			SourceName: "youtube",
		},
		UserData: map[string]any{"requester": "42"},
	}
}

func TestNewConvertsUnits(t *testing.T) {
	tr := New(sampleData())

	assert.Equal(t, 212*time.Second, tr.Info.Length)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", tr.Info.URI)
	assert.Empty(t, tr.Info.ISRC)
	assert.True(t, tr.Seekable())
	assert.Equal(t, "RickAstleyVEVO - Never Gonna Give You Up", tr.String())
}

func TestNewCopiesMaps(t *testing.T) {
	data := sampleData()
	tr := New(data)

	data.UserData["requester"] = "changed"
	assert.Equal(t, "42", tr.UserData["requester"])
}

func TestDataRoundTrip(t *testing.T) {
	data := sampleData()
	assert.Equal(t, data, New(data).Data())
}

func TestStreamNotSeekable(t *testing.T) {
	data := sampleData()
	data.Info.IsStream = true
	assert.False(t, New(data).Seekable())
}

func TestWithUserDataLeavesOriginal(t *testing.T) {
	tr := New(sampleData())
	other := tr.WithUserData(map[string]any{"requester": "7"})

	assert.Equal(t, "42", tr.UserData["requester"])
	assert.Equal(t, "7", other.UserData["requester"])
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestParseLoadResult(t *testing.T) {
	td := sampleData()

	tests := []struct {
		name  string
		data  *protocol.LoadResultData
		check func(t *testing.T, res LoadResult)
	}{
		{
			name: "v4 track",
			data: &protocol.LoadResultData{LoadType: protocol.LoadTypeTrack, Data: raw(t, td)},
			check: func(t *testing.T, res LoadResult) {
				s := res.(*Single)
				assert.Equal(t, td.Encoded, s.Track.Encoded)
				assert.Len(t, res.All(), 1)
			},
		},
		{
			name: "v4 playlist",
			data: &protocol.LoadResultData{LoadType: protocol.LoadTypePlaylist, Data: raw(t, protocol.PlaylistData{
				Info:   protocol.PlaylistInfo{Name: "mix", SelectedTrack: 1},
				Tracks: []protocol.TrackData{td, td},
			})},
			check: func(t *testing.T, res LoadResult) {
				p := res.(*Playlist)
				assert.Equal(t, "mix", p.Name)
				assert.Len(t, p.Tracks, 2)
				_, ok := p.SelectedTrack()
				assert.True(t, ok)
			},
		},
		{
			name: "v4 search",
			data: &protocol.LoadResultData{LoadType: protocol.LoadTypeSearch, Data: raw(t, []protocol.TrackData{td, td, td})},
			check: func(t *testing.T, res LoadResult) {
				assert.Len(t, res.(*Search).Tracks, 3)
			},
		},
		{
			name: "v4 empty",
			data: &protocol.LoadResultData{LoadType: protocol.LoadTypeEmpty},
			check: func(t *testing.T, res LoadResult) {
				assert.IsType(t, &Empty{}, res)
				assert.Empty(t, res.All())
			},
		},
		{
			name: "v3 track",
			data: &protocol.LoadResultData{LoadType: protocol.LoadTypeTrackLoaded, Tracks: []protocol.TrackData{td}},
			check: func(t *testing.T, res LoadResult) {
				assert.Equal(t, td.Encoded, res.(*Single).Track.Encoded)
			},
		},
		{
			name: "v3 playlist",
			data: &protocol.LoadResultData{
				LoadType:     protocol.LoadTypePlaylistLoaded,
				PlaylistInfo: &protocol.PlaylistInfo{Name: "old", SelectedTrack: -1},
				Tracks:       []protocol.TrackData{td},
			},
			check: func(t *testing.T, res LoadResult) {
				p := res.(*Playlist)
				assert.Equal(t, "old", p.Name)
				_, ok := p.SelectedTrack()
				assert.False(t, ok)
			},
		},
		{
			name: "v3 no matches",
			data: &protocol.LoadResultData{LoadType: protocol.LoadTypeNoMatches},
			check: func(t *testing.T, res LoadResult) {
				assert.IsType(t, &Empty{}, res)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseLoadResult(tt.data)
			require.NoError(t, err)
			tt.check(t, res)
		})
	}
}

func TestParseLoadResultErrors(t *testing.T) {
	ex := protocol.Exception{Message: "video unavailable", Severity: protocol.SeverityCommon, Cause: "blocked"}

	for name, data := range map[string]*protocol.LoadResultData{
		"v4": {LoadType: protocol.LoadTypeError, Data: raw(t, ex)},
		"v3": {LoadType: protocol.LoadTypeLoadFailed, Exception: &ex},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := ParseLoadResult(data)
			assert.Nil(t, res)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, "video unavailable", le.Message)
			assert.Equal(t, protocol.SeverityCommon, le.Severity)
			assert.Equal(t, "blocked", le.Cause)
		})
	}
}

func TestParseLoadResultUnknownType(t *testing.T) {
	_, err := ParseLoadResult(&protocol.LoadResultData{LoadType: "weird"})
	assert.Error(t, err)
}
