// ABOUTME: Tests for node connection, reconnect and routing
// ABOUTME: Runs against the fake node from fake_node_test.go
package lava

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavaclient/lava-go/pkg/protocol"
	"github.com/lavaclient/lava-go/pkg/queue"
)

func TestNodeConnect(t *testing.T) {
	f := newFakeNode(t)
	rec := &recorder{}
	cfg := f.config("main")
	cfg.OnEvent = rec.handle

	n := connectNode(t, f, cfg)

	assert.Equal(t, "s1", n.SessionID())
	ready := waitEvent[NodeReadyEvent](t, rec, nil)
	assert.Equal(t, "s1", ready.SessionID)
	assert.False(t, ready.Resumed)

	h := f.handshake(0)
	require.NotNil(t, h)
	assert.Equal(t, "42", h.Get("User-Id"))
	assert.True(t, strings.HasPrefix(h.Get("Client-Name"), "lava-go/"))
	assert.Empty(t, h.Get("Session-Id"))
}

func TestNodeConnectUnauthorized(t *testing.T) {
	f := newFakeNode(t)
	cfg := f.config("main")
	cfg.Password = "wrong"

	n := NewNode(cfg)
	defer n.Close()

	err := n.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrUnauthorized))

	var terr *protocol.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "main", terr.Node)
	assert.Equal(t, StateDisconnected, n.State())
}

func TestNodeConnectTwiceIsNoop(t *testing.T) {
	f := newFakeNode(t)
	n := connectNode(t, f, f.config("main"))

	require.NoError(t, n.Connect(t.Context()))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), f.dials.Load())
}

func TestNodeReconnectKeepsPlayers(t *testing.T) {
	f := newFakeNode(t)
	rec := &recorder{}
	cfg := f.config("main")
	cfg.OnEvent = rec.handle
	cfg.SkipReplay = true

	n := connectNode(t, f, cfg)
	p, err := n.CreatePlayer(testGuild)
	require.NoError(t, err)

	f.dropAll()

	require.Eventually(t, func() bool {
		return n.SessionID() == "s2" && n.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	var states []NodeState
	for _, e := range eventsOf[NodeStateEvent](rec) {
		states = append(states, e.New)
	}
	assert.Equal(t, []NodeState{StateConnecting, StateConnected, StateReconnecting, StateConnected}, states)

	got, ok := n.Player(testGuild)
	require.True(t, ok)
	assert.Same(t, p, got)

	// The second handshake offers the old session for resuming.
	assert.Equal(t, "s1", f.handshake(1).Get("Session-Id"))

	ev := waitEvent[NodeReconnectedEvent](t, rec, nil)
	assert.Same(t, p, ev.Player)
	assert.False(t, ev.Resumed)

	disc := eventsOf[NodeDisconnectedEvent](rec)
	require.Len(t, disc, 1)
	assert.True(t, disc[0].Reconnecting)
}

func TestNodeReplaysPlayerAfterLostSession(t *testing.T) {
	f := newFakeNode(t)
	n := connectNode(t, f, f.config("main"))
	p := voicedPlayer(t, n, testGuild)

	require.NoError(t, p.SetVolume(t.Context(), 80))
	require.NoError(t, p.Play(t.Context(), testTrack("A", 3*time.Minute)))
	f.send(trackEvent("TrackStartEvent", testGuild, "A", ""))
	require.Eventually(t, func() bool { return p.State() == StatePlaying }, time.Second, 5*time.Millisecond)

	f.dropAll()

	reqs := f.waitRequests("PATCH", playerPath("s2", testGuild), 1)
	body := reqs[0].JSON(t)
	assert.Equal(t, "A", body["track"].(map[string]any)["encoded"])
	assert.EqualValues(t, 80, body["volume"])
	assert.NotNil(t, body["voice"])
	assert.NotNil(t, body["position"])
}

func TestNodeResumedSessionSkipsReplay(t *testing.T) {
	f := newFakeNode(t)
	rec := &recorder{}
	cfg := f.config("main")
	cfg.OnEvent = rec.handle

	n := connectNode(t, f, cfg)
	p := voicedPlayer(t, n, testGuild)
	require.NoError(t, p.Play(t.Context(), testTrack("A", time.Minute)))

	f.resumed.Store(true)
	f.dropAll()

	ev := waitEvent[NodeReconnectedEvent](t, rec, nil)
	assert.True(t, ev.Resumed)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.requestsMatching("PATCH", playerPath("s2", testGuild)))
}

func TestNodeGivesUpAfterMaxTries(t *testing.T) {
	f := newFakeNode(t)
	rec := &recorder{}
	cfg := f.config("main")
	cfg.OnEvent = rec.handle
	cfg.Reconnect.MaxTries = 2

	n := connectNode(t, f, cfg)
	f.reject.Store(true)
	f.dropAll()

	ev := waitEvent[NodeDisconnectedEvent](t, rec, func(e NodeDisconnectedEvent) bool { return !e.Reconnecting })
	var terr *protocol.TransportError
	require.True(t, errors.As(ev.Err, &terr))
	assert.Equal(t, "reconnect", terr.Op)

	require.Eventually(t, func() bool { return n.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
}

func TestNodeCommandsFailWhileDisconnected(t *testing.T) {
	n := NewNode(NodeConfig{ID: "idle"})
	defer n.Close()

	err := n.Send(map[string]string{"op": "ping"})
	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, errors.Is(err, ErrNotConnected))

	err = n.UpdatePlayer(t.Context(), testGuild, protocol.UpdatePlayer{}, false)
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestNodeClosedCannotReconnect(t *testing.T) {
	f := newFakeNode(t)
	n := connectNode(t, f, f.config("main"))
	require.NoError(t, n.Close())
	assert.Equal(t, StateDisconnected, n.State())

	err := n.Connect(t.Context())
	assert.True(t, errors.Is(err, protocol.ErrClosed))
}

func TestNodeStatsFrame(t *testing.T) {
	f := newFakeNode(t)
	rec := &recorder{}
	cfg := f.config("main")
	cfg.OnEvent = rec.handle
	n := connectNode(t, f, cfg)

	f.send(`{"op":"stats","players":3,"playingPlayers":1,"uptime":1000,"memory":{},"cpu":{"cores":4,"systemLoad":0,"lavalinkLoad":0}}`)

	ev := waitEvent[NodeStatsEvent](t, rec, nil)
	assert.Equal(t, 3, ev.Stats.Players)
	stats, ok := n.Stats()
	require.True(t, ok)
	assert.Equal(t, 4, stats.CPU.Cores)
	assert.InDelta(t, 3.0, n.Penalty(), 1e-9)
}

func TestNodeDropsFramesForUnknownGuild(t *testing.T) {
	f := newFakeNode(t)
	rec := &recorder{}
	cfg := f.config("main")
	cfg.OnEvent = rec.handle
	n := connectNode(t, f, cfg)
	p, err := n.CreatePlayer(testGuild)
	require.NoError(t, err)

	f.send(`{"op":"playerUpdate","guildId":"777","state":{"time":1,"position":1000,"connected":true,"ping":5}}`)
	f.send(`{"op":"bogus"}`)
	f.send(`{"op":"playerUpdate","guildId":"1","state":{"time":1,"position":2000,"connected":true,"ping":5}}`)

	ev := waitEvent[PlayerUpdateEvent](t, rec, nil)
	assert.Same(t, p, ev.Player)
	assert.Equal(t, 2*time.Second, ev.Position)
	assert.Len(t, eventsOf[PlayerUpdateEvent](rec), 1)
}

func TestNodePenalty(t *testing.T) {
	n := NewNode(NodeConfig{ID: "a"})
	defer n.Close()
	assert.Zero(t, n.Penalty())

	_, err := n.CreatePlayer(testGuild)
	require.NoError(t, err)
	assert.Equal(t, 1.0, n.Penalty())

	n.stats = &protocol.Stats{Players: 4, CPU: protocol.CPU{SystemLoad: 0.5}}
	assert.InDelta(t, 4+(114.673997-10), n.Penalty(), 1e-3)

	n.stats.FrameStats = &protocol.FrameStats{Deficit: 3000, Nulled: 0}
	assert.Greater(t, n.Penalty(), 1000.0)
}

func TestNodeCreatePlayerTwice(t *testing.T) {
	n := NewNode(NodeConfig{ID: "a"})
	defer n.Close()

	_, err := n.CreatePlayer(testGuild)
	require.NoError(t, err)
	_, err = n.CreatePlayer(testGuild)
	assert.True(t, errors.Is(err, ErrPlayerExists))
	assert.Len(t, n.Players(), 1)
}

func TestLegacyNodeSendsOps(t *testing.T) {
	f := newLegacyFakeNode(t)
	rec := &recorder{}
	cfg := f.config("legacy")
	cfg.OnEvent = rec.handle
	n := connectNode(t, f, cfg)

	waitEvent[NodeReadyEvent](t, rec, nil)

	p := voicedPlayer(t, n, testGuild)
	voice := f.waitFrames("voiceUpdate", 1)
	assert.Equal(t, "1", voice[0]["guildId"])
	assert.Equal(t, "voice-session", voice[0]["sessionId"])

	require.NoError(t, p.Play(t.Context(), testTrack("A", time.Minute), WithStart(5*time.Second)))
	play := f.waitFrames("play", 1)
	assert.Equal(t, "A", play[0]["track"])
	assert.EqualValues(t, 5000, play[0]["startTime"])

	require.NoError(t, p.Pause(t.Context()))
	f.waitFrames("pause", 1)

	require.NoError(t, p.Destroy(t.Context()))
	f.waitFrames("destroy", 1)

	// v3 events carry only the encoded track.
	p2 := voicedPlayer(t, n, 2)
	p2.Queue().SetLoopMode(queue.LoopOff)
	require.NoError(t, p2.Play(t.Context(), testTrack("B", time.Minute)))
	f.send(`{"op":"event","type":"TrackEndEvent","guildId":"2","track":"B","reason":"FINISHED"}`)
	end := waitEvent[TrackEndEvent](t, rec, nil)
	assert.Equal(t, protocol.EndFinished, end.Reason)
	assert.Equal(t, "Track B", end.Track.Info.Title)

	assert.Empty(t, f.requestsMatching("PATCH", "/"))
}

func TestLegacyOpsOrder(t *testing.T) {
	encoded := "A"
	paused := true
	pos := int64(1000)
	vol := 50

	ops := legacyOps(testGuild, protocol.UpdatePlayer{
		Track:    &protocol.UpdateTrack{Encoded: &encoded},
		Position: &pos,
		Paused:   &paused,
		Volume:   &vol,
		Voice:    &protocol.VoiceState{Token: "t", Endpoint: "e", SessionID: "s"},
	}, true)

	require.Len(t, ops, 2)
	assert.IsType(t, protocol.VoiceUpdateCommand{}, ops[0])
	play, ok := ops[1].(protocol.PlayCommand)
	require.True(t, ok)
	assert.Equal(t, int64(1000), play.StartTime)
	assert.True(t, play.Pause)
	assert.True(t, play.NoReplace)
	assert.Equal(t, &vol, play.Volume)

	ops = legacyOps(testGuild, protocol.UpdatePlayer{Track: &protocol.UpdateTrack{}}, false)
	require.Len(t, ops, 1)
	assert.Equal(t, protocol.OpStop, ops[0].(protocol.GuildCommand).Op)

	ops = legacyOps(testGuild, protocol.UpdatePlayer{Paused: &paused, Position: &pos, Volume: &vol}, false)
	require.Len(t, ops, 3)
	assert.IsType(t, protocol.PauseCommand{}, ops[0])
	assert.IsType(t, protocol.SeekCommand{}, ops[1])
	assert.IsType(t, protocol.VolumeCommand{}, ops[2])
}

func TestNodeConfigURLs(t *testing.T) {
	cfg := NodeConfig{Host: "::1", Port: 2444}
	assert.Equal(t, "ws://[::1]:2444/v4/websocket", cfg.wsURL())
	assert.Equal(t, "http://[::1]:2444", cfg.restURL())

	cfg = NodeConfig{Host: "lava.example.com", Port: 443, Secure: true, Version: 3}
	assert.Equal(t, "wss://lava.example.com:443/", cfg.wsURL())
	assert.Equal(t, "https://lava.example.com:443", cfg.restURL())
}
