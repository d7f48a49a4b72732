// ABOUTME: Tests for Lavalink protocol message types
// ABOUTME: Verifies frame parsing for both protocol versions and outbound encoding
package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guild = snowflake.ID(817327181659111454)

func TestParseReady(t *testing.T) {
	msg, err := Parse([]byte(`{"op":"ready","resumed":true,"sessionId":"la3kfsdf5eafe848"}`))
	require.NoError(t, err)

	ready, ok := msg.(*Ready)
	require.True(t, ok, "got %T", msg)
	assert.True(t, ready.Resumed)
	assert.Equal(t, "la3kfsdf5eafe848", ready.SessionID)
	assert.Equal(t, OpReady, ready.Op())
}

func TestParsePlayerUpdate(t *testing.T) {
	msg, err := Parse([]byte(`{"op":"playerUpdate","guildId":"817327181659111454","state":{"time":1500467109,"position":60000,"connected":true,"ping":50}}`))
	require.NoError(t, err)

	update := msg.(*PlayerUpdate)
	assert.Equal(t, guild, update.GuildID)
	assert.Equal(t, PlayerState{Time: 1500467109, Position: 60000, Connected: true, Ping: 50}, update.State)
}

func TestParseStats(t *testing.T) {
	msg, err := Parse([]byte(`{"op":"stats","players":3,"playingPlayers":2,"uptime":123456789,
		"memory":{"free":1,"used":2,"allocated":3,"reservable":4},
		"cpu":{"cores":4,"systemLoad":0.5,"lavalinkLoad":0.1},
		"frameStats":{"sent":6000,"nulled":10,"deficit":-3010}}`))
	require.NoError(t, err)

	stats := msg.(*Stats)
	assert.Equal(t, 3, stats.Players)
	assert.Equal(t, 2, stats.PlayingPlayers)
	assert.Equal(t, 4, stats.CPU.Cores)
	assert.InDelta(t, 0.5, stats.CPU.SystemLoad, 1e-9)
	require.NotNil(t, stats.FrameStats)
	assert.Equal(t, -3010, stats.FrameStats.Deficit)
}

func TestParseStatsWithoutFrameStats(t *testing.T) {
	msg, err := Parse([]byte(`{"op":"stats","players":0,"playingPlayers":0,"uptime":1,"memory":{},"cpu":{},"frameStats":null}`))
	require.NoError(t, err)
	assert.Nil(t, msg.(*Stats).FrameStats)
}

func TestParseEvents(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, msg Message)
	}{
		{
			name:  "track start",
			frame: `{"op":"event","type":"TrackStartEvent","guildId":"817327181659111454","track":{"encoded":"QAAA","info":{"identifier":"dQw4w9WgXcQ","title":"Song","length":212000,"isSeekable":true,"sourceName":"youtube"}}}`,
			check: func(t *testing.T, msg Message) {
				e := msg.(*TrackStartEvent)
				assert.Equal(t, "QAAA", e.Track.Encoded)
				assert.Equal(t, int64(212000), e.Track.Info.Length)
				assert.Equal(t, EventTrackStart, e.Type())
			},
		},
		{
			name:  "track end",
			frame: `{"op":"event","type":"TrackEndEvent","guildId":"817327181659111454","track":{"encoded":"QAAA","info":{}},"reason":"finished"}`,
			check: func(t *testing.T, msg Message) {
				e := msg.(*TrackEndEvent)
				assert.Equal(t, EndFinished, e.Reason)
				assert.True(t, e.Reason.MayStartNext())
			},
		},
		{
			name:  "legacy track end",
			frame: `{"op":"event","type":"TrackEndEvent","guildId":"817327181659111454","track":"QAAA","reason":"LOAD_FAILED"}`,
			check: func(t *testing.T, msg Message) {
				e := msg.(*TrackEndEvent)
				assert.Equal(t, "QAAA", e.Track.Encoded)
				assert.Equal(t, EndLoadFailed, e.Reason)
			},
		},
		{
			name:  "exception",
			frame: `{"op":"event","type":"TrackExceptionEvent","guildId":"817327181659111454","track":{"encoded":"QAAA","info":{}},"exception":{"message":"boom","severity":"FAULT","cause":"io"}}`,
			check: func(t *testing.T, msg Message) {
				e := msg.(*TrackExceptionEvent)
				assert.Equal(t, Exception{Message: "boom", Severity: SeverityFatal, Cause: "io"}, e.Exception)
			},
		},
		{
			name:  "stuck",
			frame: `{"op":"event","type":"TrackStuckEvent","guildId":"817327181659111454","track":{"encoded":"QAAA","info":{}},"thresholdMs":10000}`,
			check: func(t *testing.T, msg Message) {
				assert.Equal(t, int64(10000), msg.(*TrackStuckEvent).ThresholdMs)
			},
		},
		{
			name:  "voice closed",
			frame: `{"op":"event","type":"WebSocketClosedEvent","guildId":"817327181659111454","code":4006,"reason":"Your session is no longer valid.","byRemote":true}`,
			check: func(t *testing.T, msg Message) {
				e := msg.(*WebSocketClosedEvent)
				assert.Equal(t, 4006, e.Code)
				assert.True(t, e.ByRemote)
				assert.Equal(t, guild, e.Guild())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.frame))
			require.NoError(t, err)
			_, isEvent := msg.(Event)
			require.True(t, isEvent)
			tt.check(t, msg)
		})
	}
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse([]byte(`{"op":"nonsense"}`))
	assert.True(t, errors.Is(err, ErrUnknownOp))

	_, err = Parse([]byte(`{"op":"event","type":"SegmentSkipped","guildId":"1"}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestEndReasonValid(t *testing.T) {
	for _, r := range []EndReason{EndFinished, EndLoadFailed, EndStopped, EndReplaced, EndCleanup} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, EndReason("exploded").Valid())
	assert.True(t, EndStopped.MayStartNext())
	assert.True(t, EndLoadFailed.MayStartNext())
	assert.False(t, EndReplaced.MayStartNext())
	assert.False(t, EndCleanup.MayStartNext())
}

func TestTrackDataLegacyLoadKey(t *testing.T) {
	var td TrackData
	require.NoError(t, json.Unmarshal([]byte(`{"track":"QAAB","info":{"title":"x"}}`), &td))
	assert.Equal(t, "QAAB", td.Encoded)
	assert.Equal(t, "x", td.Info.Title)
}

func TestUpdateTrackMarshal(t *testing.T) {
	encoded := "QAAA"

	data, err := json.Marshal(UpdatePlayer{Track: &UpdateTrack{Encoded: &encoded}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"track":{"encoded":"QAAA"}}`, string(data))

	data, err = json.Marshal(UpdatePlayer{Track: &UpdateTrack{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"track":{"encoded":null}}`, string(data))

	data, err = json.Marshal(UpdatePlayer{Track: &UpdateTrack{Encoded: &encoded, Identifier: "ytsearch:x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"track":{"identifier":"ytsearch:x"}}`, string(data))
}

func TestFiltersCommandIsFlat(t *testing.T) {
	vol := 0.5
	cmd := FiltersCommand{
		Op:      OpFilters,
		GuildID: guild,
		Filters: Filters{Volume: &vol, Rotation: &Rotation{RotationHz: 0.2}},
	}

	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"filters","guildId":"817327181659111454","volume":0.5,"rotation":{"rotationHz":0.2}}`, string(data))
}

func TestLoadTypeNormalize(t *testing.T) {
	assert.Equal(t, LoadTypeTrack, LoadTypeTrackLoaded.Normalize())
	assert.Equal(t, LoadTypePlaylist, LoadTypePlaylistLoaded.Normalize())
	assert.Equal(t, LoadTypeSearch, LoadTypeSearchResult.Normalize())
	assert.Equal(t, LoadTypeEmpty, LoadTypeNoMatches.Normalize())
	assert.Equal(t, LoadTypeError, LoadTypeLoadFailed.Normalize())
	assert.Equal(t, LoadTypeSearch, LoadTypeSearch.Normalize())
}
