// ABOUTME: In-process fake Lavalink node for lava package tests
// ABOUTME: Serves the WebSocket session and records REST calls and v3 ops
package lava

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lavaclient/lava-go/pkg/backoff"
	"github.com/lavaclient/lava-go/pkg/track"
)

const testPassword = "youshallnotpass"

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// JSON decodes the request body into a generic map.
func (r recordedRequest) JSON(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &out))
	return out
}

type fakeNode struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	legacy  bool
	reject  atomic.Bool
	resumed atomic.Bool
	dials   atomic.Int32

	mu       sync.Mutex
	conns    []*websocket.Conn
	headers  []http.Header
	requests []recordedRequest
	frames   []map[string]any
}

func newFakeNode(t *testing.T) *fakeNode {
	return startFakeNode(t, false)
}

// newLegacyFakeNode speaks v3: no ready frame, commands arrive as ops.
func newLegacyFakeNode(t *testing.T) *fakeNode {
	return startFakeNode(t, true)
}

func startFakeNode(t *testing.T, legacy bool) *fakeNode {
	t.Helper()
	f := &fakeNode{t: t, legacy: legacy}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(func() {
		f.dropAll()
		f.srv.Close()
	})
	return f
}

func (f *fakeNode) wsPath() string {
	if f.legacy {
		return "/"
	}
	return "/v4/websocket"
}

func (f *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) && r.URL.Path == f.wsPath() {
		f.serveSocket(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/sessions/") && !strings.Contains(r.URL.Path, "/players/"):
		_, _ = w.Write([]byte(`{"resuming":true,"timeout":60}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func (f *fakeNode) serveSocket(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != testPassword {
		http.Error(w, "invalid password", http.StatusUnauthorized)
		return
	}
	if f.reject.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	var header http.Header
	if f.legacy && f.resumed.Load() {
		header = http.Header{"Session-Resumed": {"true"}}
	}
	c, err := f.upgrader.Upgrade(w, r, header)
	if err != nil {
		return
	}
	n := f.dials.Add(1)

	f.mu.Lock()
	f.headers = append(f.headers, r.Header.Clone())
	if !f.legacy {
		ready := fmt.Sprintf(`{"op":"ready","resumed":%t,"sessionId":"s%d"}`, f.resumed.Load(), n)
		_ = c.WriteMessage(websocket.TextMessage, []byte(ready))
	}
	f.conns = append(f.conns, c)
	f.mu.Unlock()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var frame map[string]any
		if json.Unmarshal(data, &frame) == nil {
			f.mu.Lock()
			f.frames = append(f.frames, frame)
			f.mu.Unlock()
		}
	}
}

// send writes a frame to every open session.
func (f *fakeNode) send(frame string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.WriteMessage(websocket.TextMessage, []byte(frame))
	}
}

// dropAll closes every session abruptly.
func (f *fakeNode) dropAll() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (f *fakeNode) requestsMatching(method, pathPrefix string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			out = append(out, r)
		}
	}
	return out
}

// waitRequests waits until n matching requests were recorded.
func (f *fakeNode) waitRequests(method, pathPrefix string, n int) []recordedRequest {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		return len(f.requestsMatching(method, pathPrefix)) >= n
	}, 2*time.Second, 5*time.Millisecond, "want %d %s %s requests", n, method, pathPrefix)
	return f.requestsMatching(method, pathPrefix)
}

func (f *fakeNode) framesWithOp(op string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		if fr["op"] == op {
			out = append(out, fr)
		}
	}
	return out
}

func (f *fakeNode) waitFrames(op string, n int) []map[string]any {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		return len(f.framesWithOp(op)) >= n
	}, 2*time.Second, 5*time.Millisecond, "want %d %q ops", n, op)
	return f.framesWithOp(op)
}

func (f *fakeNode) handshake(i int) http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.headers) {
		return nil
	}
	return f.headers[i]
}

func (f *fakeNode) config(id string) NodeConfig {
	cfg := NodeConfig{
		ID:       id,
		WSURL:    "ws" + strings.TrimPrefix(f.srv.URL, "http") + f.wsPath(),
		RESTURL:  f.srv.URL,
		Password: testPassword,
		UserID:   snowflake.ID(42),
		Reconnect: backoff.Config{
			Base: 5 * time.Millisecond,
			Max:  20 * time.Millisecond,
		},
		RequestTimeout: time.Second,
	}
	if f.legacy {
		cfg.Version = 3
	}
	return cfg
}

// recorder collects events from OnEvent.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func eventsOf[T Event](r *recorder) []T {
	var out []T
	for _, e := range r.all() {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// waitEvent waits for the first event of type T that matches.
func waitEvent[T Event](t *testing.T, r *recorder, match func(T) bool) T {
	t.Helper()
	var found T
	require.Eventually(t, func() bool {
		for _, e := range eventsOf[T](r) {
			if match == nil || match(e) {
				found = e
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "event %T not seen", found)
	return found
}

// connectNode connects a node to f and waits for its session.
func connectNode(t *testing.T, f *fakeNode, cfg NodeConfig) *Node {
	t.Helper()
	n := NewNode(cfg)
	t.Cleanup(func() { n.Close() })
	require.NoError(t, n.Connect(t.Context()))
	require.Eventually(t, func() bool {
		return n.State() == StateConnected && (f.legacy || n.SessionID() != "")
	}, 2*time.Second, 5*time.Millisecond)
	return n
}

const testGuild = snowflake.ID(1)

// voicedPlayer creates a player with complete voice credentials.
func voicedPlayer(t *testing.T, n *Node, guildID snowflake.ID) *Player {
	t.Helper()
	p, err := n.CreatePlayer(guildID)
	require.NoError(t, err)

	channel := snowflake.ID(99)
	require.NoError(t, p.UpdateVoiceState(t.Context(), VoiceStateUpdate{ChannelID: &channel, SessionID: "voice-session"}))
	require.NoError(t, p.UpdateVoiceServer(t.Context(), VoiceServerUpdate{Token: "token", Endpoint: "us-east1.discord.media"}))
	return p
}

func testTrack(encoded string, length time.Duration) track.Track {
	return track.Track{
		Encoded: encoded,
		Info: track.Info{
			Identifier: "id-" + encoded,
			Title:      "Track " + encoded,
			Length:     length,
			IsSeekable: true,
			SourceName: "youtube",
		},
	}
}

func trackEvent(kind string, guildID snowflake.ID, encoded, extra string) string {
	frame := fmt.Sprintf(`{"op":"event","type":%q,"guildId":"%s","track":{"encoded":%q,"info":{}}`, kind, guildID, encoded)
	if extra != "" {
		frame += "," + extra
	}
	return frame + "}"
}

func playerPath(sessionID string, guildID snowflake.ID) string {
	return fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID)
}
