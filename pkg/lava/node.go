// ABOUTME: Connection manager for a single Lavalink node
// ABOUTME: Owns the WebSocket session, reconnects with backoff and routes frames to players
package lava

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lavaclient/lava-go/pkg/backoff"
	"github.com/lavaclient/lava-go/pkg/protocol"
	"github.com/lavaclient/lava-go/pkg/track"
)

// NodeState is the connection state of a node.
type NodeState int

const (
	StateDisconnected NodeState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s NodeState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("NodeState(%d)", int(s))
}

// Node is one remote audio node and the players it hosts.
type Node struct {
	config NodeConfig
	rest   *protocol.REST
	log    zerolog.Logger

	mu          sync.RWMutex
	conn        *protocol.Conn
	state       NodeState
	sessionID   string
	stats       *protocol.Stats
	running     bool // a run goroutine owns the connection
	reconnected bool // the current connection replaced a lost one

	playersMu sync.RWMutex
	players   map[snowflake.ID]*Player

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode creates a disconnected node. Call Connect to open the session.
func NewNode(config NodeConfig) *Node {
	config.applyDefaults()

	log := config.Logger.With().Str("node", config.ID).Logger()
	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		config: config,
		log:    log,
		rest: protocol.NewREST(protocol.RESTConfig{
			BaseURL:    config.restURL(),
			Password:   config.Password,
			Version:    config.Version,
			HTTPClient: config.HTTPClient,
			Timeout:    config.RequestTimeout,
			RateLimit:  config.RateLimit,
			Burst:      config.RateBurst,
			Logger:     log,
		}),
		players: make(map[snowflake.ID]*Player),
		ctx:     ctx,
		cancel:  cancel,
	}

	// v3 resume keys are chosen by the client.
	if config.Version < 4 && config.ResumeTimeout > 0 {
		n.sessionID = uuid.NewString()
	}
	return n
}

func (n *Node) ID() string           { return n.config.ID }
func (n *Node) String() string       { return n.config.ID }
func (n *Node) Version() int         { return n.config.Version }
func (n *Node) REST() *protocol.REST { return n.rest }

func (n *Node) State() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// SessionID is the current session id, empty before the first ready frame.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

// Stats returns the latest stats frame, if one arrived.
func (n *Node) Stats() (protocol.Stats, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stats == nil {
		return protocol.Stats{}, false
	}
	return *n.stats, true
}

// Connect dials the node. It returns once the WebSocket is open; the ready
// frame arrives asynchronously as a NodeReadyEvent. Connecting a node that
// is already connected or reconnecting does nothing.
func (n *Node) Connect(ctx context.Context) error {
	if n.ctx.Err() != nil {
		return &protocol.TransportError{Node: n.ID(), Op: "connect", Err: protocol.ErrClosed}
	}

	n.mu.Lock()
	if n.running || n.state == StateConnecting {
		n.mu.Unlock()
		return nil
	}
	old := n.state
	n.state = StateConnecting
	n.mu.Unlock()
	n.emit(NodeStateEvent{Node: n, Old: old, New: StateConnecting})

	conn, err := n.dial(ctx)
	if err != nil {
		n.log.Error().Err(err).Msg("connect failed")
		if n.config.ReconnectOnFail && n.ctx.Err() == nil {
			n.start(nil)
			return err
		}
		n.setState(StateDisconnected)
		return err
	}

	n.attach(conn, false)
	n.start(conn)
	return nil
}

func (n *Node) dial(ctx context.Context) (*protocol.Conn, error) {
	n.mu.RLock()
	sessionID := n.sessionID
	n.mu.RUnlock()

	return protocol.Dial(ctx, protocol.DialConfig{
		URL:              n.config.wsURL(),
		Node:             n.ID(),
		Password:         n.config.Password,
		UserID:           n.config.UserID.String(),
		ClientName:       n.config.ClientName,
		SessionID:        sessionID,
		HandshakeTimeout: n.config.HandshakeTimeout,
		Logger:           n.log,
	})
}

func (n *Node) start(conn *protocol.Conn) {
	n.mu.Lock()
	n.running = true
	n.mu.Unlock()

	n.wg.Add(1)
	go n.run(conn)
}

// run owns the connection for the node's lifetime: it reads until the
// socket fails, then reconnects. A nil conn starts with a reconnect.
func (n *Node) run(conn *protocol.Conn) {
	defer n.wg.Done()
	defer func() {
		n.mu.Lock()
		n.running = false
		n.mu.Unlock()
	}()

	for {
		if conn != nil {
			err := conn.Listen(n.ctx, n.handleFrame)
			n.detach(conn)
			if n.ctx.Err() != nil {
				n.setState(StateDisconnected)
				return
			}
			n.log.Warn().Err(err).Int("code", protocol.CloseCode(err)).Msg("connection lost")
			n.emit(NodeDisconnectedEvent{Node: n, Err: err, Reconnecting: true})
		}

		n.setState(StateReconnecting)
		conn = n.reconnect()
		if conn == nil {
			return
		}
	}
}

func (n *Node) reconnect() *protocol.Conn {
	b := backoff.New(n.config.Reconnect)
	var lastErr error

	for {
		delay, ok := b.Next()
		if !ok {
			err := &protocol.TransportError{
				Node: n.ID(),
				Op:   "reconnect",
				Err:  fmt.Errorf("gave up after %d attempts: %w", b.Tries(), lastErr),
			}
			n.log.Error().Err(err).Msg("reconnect exhausted")
			n.setState(StateDisconnected)
			n.emit(NodeDisconnectedEvent{Node: n, Err: err})
			return nil
		}

		n.log.Info().Dur("delay", delay).Int("attempt", b.Tries()).Msg("reconnecting")
		timer := time.NewTimer(delay)
		select {
		case <-n.ctx.Done():
			timer.Stop()
			n.setState(StateDisconnected)
			return nil
		case <-timer.C:
		}

		conn, err := n.dial(n.ctx)
		if err != nil {
			lastErr = err
			n.log.Warn().Err(err).Msg("reconnect attempt failed")
			continue
		}
		n.attach(conn, true)
		return conn
	}
}

func (n *Node) attach(conn *protocol.Conn, reconnected bool) {
	n.mu.Lock()
	n.conn = conn
	n.reconnected = reconnected
	n.mu.Unlock()

	n.setState(StateConnected)
	n.log.Info().Bool("reconnect", reconnected).Msg("connected")

	if n.config.Version < 4 {
		n.onReady(conn.Resumed(), "")
	}
}

func (n *Node) detach(conn *protocol.Conn) {
	n.mu.Lock()
	if n.conn == conn {
		n.conn = nil
	}
	n.mu.Unlock()
}

func (n *Node) setState(s NodeState) {
	n.mu.Lock()
	old := n.state
	n.state = s
	n.mu.Unlock()

	if old == s {
		return
	}
	n.log.Debug().Stringer("from", old).Stringer("to", s).Msg("state change")
	n.emit(NodeStateEvent{Node: n, Old: old, New: s})
}

func (n *Node) emit(e Event) {
	if n.config.OnEvent != nil {
		n.config.OnEvent(e)
	}
}

// handleFrame decodes one frame and routes it. Runs on the read goroutine.
func (n *Node) handleFrame(data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		n.log.Warn().Err(err).Msg("dropping frame")
		return
	}

	switch m := msg.(type) {
	case *protocol.Ready:
		n.onReady(m.Resumed, m.SessionID)
	case *protocol.Stats:
		n.mu.Lock()
		n.stats = m
		n.mu.Unlock()
		n.emit(NodeStatsEvent{Node: n, Stats: *m})
	case *protocol.PlayerUpdate:
		n.route(m.GuildID, m)
	case protocol.Event:
		n.route(m.Guild(), m)
	}
}

func (n *Node) onReady(resumed bool, sessionID string) {
	n.mu.Lock()
	if sessionID != "" {
		n.sessionID = sessionID
	}
	sid := n.sessionID
	reconnected := n.reconnected
	n.reconnected = false
	n.mu.Unlock()

	n.log.Info().Str("session", sid).Bool("resumed", resumed).Msg("ready")
	n.emit(NodeReadyEvent{Node: n, SessionID: sid, Resumed: resumed})

	if n.config.ResumeTimeout > 0 {
		go n.configureResuming()
	}

	if reconnected {
		for _, p := range n.Players() {
			p.deliver(nodeReconnected{resumed: resumed})
		}
	}
}

func (n *Node) configureResuming() {
	ctx, cancel := context.WithTimeout(n.ctx, n.config.RequestTimeout)
	defer cancel()

	timeout := int(n.config.ResumeTimeout / time.Second)
	var err error
	if n.config.Version < 4 {
		err = n.send(protocol.ConfigureResumingCommand{Op: protocol.OpConfigureResuming, Key: n.SessionID(), Timeout: timeout})
	} else {
		err = n.UpdateSession(ctx, true, n.config.ResumeTimeout)
	}
	if err != nil {
		n.log.Warn().Err(err).Msg("configure resuming failed")
	}
}

func (n *Node) route(guildID snowflake.ID, msg protocol.Message) {
	p, ok := n.Player(guildID)
	if !ok {
		n.log.Warn().Stringer("guild", guildID).Str("op", string(msg.Op())).Msg("frame for unknown guild")
		return
	}
	p.deliver(msg)
}

// Send writes a raw WebSocket op. It never waits for a reply and fails with
// ErrNotConnected when there is no live connection.
func (n *Node) Send(v any) error {
	if err := n.send(v); err != nil {
		return &CommandError{Op: "send", Err: err}
	}
	return nil
}

func (n *Node) send(v any) error {
	n.mu.RLock()
	conn := n.conn
	state := n.state
	n.mu.RUnlock()

	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}
	if err := conn.Send(v); err != nil {
		if errors.Is(err, protocol.ErrClosed) {
			return ErrNotConnected
		}
		return err
	}
	return nil
}

// session returns the id commands must address, or false when commands
// cannot be sent right now.
func (n *Node) session() (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.state != StateConnected || n.conn == nil {
		return "", false
	}
	if n.config.Version >= 4 && n.sessionID == "" {
		return "", false
	}
	return n.sessionID, true
}

// UpdatePlayer sends a player update for guildID. v4 nodes get a REST
// PATCH; v3 nodes get the equivalent WebSocket ops.
func (n *Node) UpdatePlayer(ctx context.Context, guildID snowflake.ID, update protocol.UpdatePlayer, noReplace bool) error {
	if err := n.updatePlayer(ctx, guildID, update, noReplace); err != nil {
		return &CommandError{Op: "update player", Guild: guildID, Err: err}
	}
	return nil
}

func (n *Node) updatePlayer(ctx context.Context, guildID snowflake.ID, update protocol.UpdatePlayer, noReplace bool) error {
	sid, ok := n.session()
	if !ok {
		return ErrNotConnected
	}
	if n.config.Version >= 4 {
		_, err := n.rest.UpdatePlayer(ctx, sid, guildID, update, noReplace)
		return err
	}
	for _, op := range legacyOps(guildID, update, noReplace) {
		if err := n.send(op); err != nil {
			return err
		}
	}
	return nil
}

// DestroyPlayer removes the remote player for guildID.
func (n *Node) DestroyPlayer(ctx context.Context, guildID snowflake.ID) error {
	if err := n.destroyPlayer(ctx, guildID); err != nil {
		return &CommandError{Op: "destroy player", Guild: guildID, Err: err}
	}
	return nil
}

func (n *Node) destroyPlayer(ctx context.Context, guildID snowflake.ID) error {
	sid, ok := n.session()
	if !ok {
		return ErrNotConnected
	}
	if n.config.Version >= 4 {
		return n.rest.DestroyPlayer(ctx, sid, guildID)
	}
	return n.send(protocol.GuildCommand{Op: protocol.OpDestroy, GuildID: guildID})
}

// UpdateSession turns resuming on or off for the current session.
func (n *Node) UpdateSession(ctx context.Context, resuming bool, timeout time.Duration) error {
	sid, ok := n.session()
	if !ok {
		return &CommandError{Op: "update session", Err: ErrNotConnected}
	}
	secs := int(timeout / time.Second)
	_, err := n.rest.UpdateSession(ctx, sid, protocol.SessionUpdate{Resuming: &resuming, Timeout: &secs})
	return err
}

// LoadTracks resolves an identifier or search query ("ytsearch:...").
// A failed load returns a *track.LoadError.
func (n *Node) LoadTracks(ctx context.Context, identifier string) (track.LoadResult, error) {
	data, err := n.rest.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return track.ParseLoadResult(data)
}

func (n *Node) DecodeTrack(ctx context.Context, encoded string) (track.Track, error) {
	data, err := n.rest.DecodeTrack(ctx, encoded)
	if err != nil {
		return track.Track{}, err
	}
	return track.New(*data), nil
}

func (n *Node) DecodeTracks(ctx context.Context, encoded ...string) ([]track.Track, error) {
	data, err := n.rest.DecodeTracks(ctx, encoded)
	if err != nil {
		return nil, err
	}
	out := make([]track.Track, 0, len(data))
	for _, td := range data {
		out = append(out, track.New(td))
	}
	return out, nil
}

func (n *Node) Info(ctx context.Context) (*protocol.Info, error) {
	return n.rest.Info(ctx)
}

// FetchStats asks the node for stats instead of waiting for the next frame.
func (n *Node) FetchStats(ctx context.Context) (*protocol.Stats, error) {
	stats, err := n.rest.Stats(ctx)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.stats = stats
	n.mu.Unlock()
	return stats, nil
}

// RemoteVersion returns the node's version string.
func (n *Node) RemoteVersion(ctx context.Context) (string, error) {
	return n.rest.Version(ctx)
}

// CreatePlayer registers a new player for guildID on this node.
func (n *Node) CreatePlayer(guildID snowflake.ID) (*Player, error) {
	p := newPlayer(n, guildID)
	if err := n.register(p); err != nil {
		p.stop()
		return nil, &CommandError{Op: "create player", Guild: guildID, Err: err}
	}
	return p, nil
}

func (n *Node) register(p *Player) error {
	n.playersMu.Lock()
	defer n.playersMu.Unlock()
	if _, ok := n.players[p.guildID]; ok {
		return ErrPlayerExists
	}
	n.players[p.guildID] = p
	return nil
}

func (n *Node) unregister(p *Player) {
	n.playersMu.Lock()
	defer n.playersMu.Unlock()
	if n.players[p.guildID] == p {
		delete(n.players, p.guildID)
	}
}

func (n *Node) Player(guildID snowflake.ID) (*Player, bool) {
	n.playersMu.RLock()
	defer n.playersMu.RUnlock()
	p, ok := n.players[guildID]
	return p, ok
}

func (n *Node) Players() []*Player {
	n.playersMu.RLock()
	defer n.playersMu.RUnlock()
	out := make([]*Player, 0, len(n.players))
	for _, p := range n.players {
		out = append(out, p)
	}
	return out
}

// Penalty scores how busy the node is; lower is better. It counts players
// and adds penalties for CPU load and dropped frames.
func (n *Node) Penalty() float64 {
	n.mu.RLock()
	stats := n.stats
	n.mu.RUnlock()

	if stats == nil {
		n.playersMu.RLock()
		defer n.playersMu.RUnlock()
		return float64(len(n.players))
	}

	penalty := float64(stats.Players)
	penalty += math.Pow(1.05, 100*stats.CPU.SystemLoad)*10 - 10
	if fs := stats.FrameStats; fs != nil {
		penalty += math.Pow(1.03, 500*float64(fs.Deficit)/3000)*600 - 600
		penalty += (math.Pow(1.03, 500*float64(fs.Nulled)/3000)*300 - 300) * 2
	}
	return penalty
}

// Close stops reconnecting, closes the connection and waits for the read
// goroutine. Players stay registered. A closed node cannot reconnect.
func (n *Node) Close() error {
	n.cancel()

	n.mu.RLock()
	conn := n.conn
	n.mu.RUnlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	n.wg.Wait()
	n.setState(StateDisconnected)
	return err
}

// legacyOps translates a player update into v3 WebSocket ops.
func legacyOps(guildID snowflake.ID, u protocol.UpdatePlayer, noReplace bool) []any {
	var ops []any

	if u.Voice != nil {
		ops = append(ops, protocol.VoiceUpdateCommand{
			Op:        protocol.OpVoiceUpdate,
			GuildID:   guildID,
			SessionID: u.Voice.SessionID,
			Event: protocol.VoiceServerEvent{
				Token:    u.Voice.Token,
				GuildID:  guildID,
				Endpoint: u.Voice.Endpoint,
			},
		})
	}
	if u.Filters != nil {
		ops = append(ops, protocol.FiltersCommand{Op: protocol.OpFilters, GuildID: guildID, Filters: *u.Filters})
	}

	if u.Track != nil {
		if u.Track.Encoded == nil {
			ops = append(ops, protocol.GuildCommand{Op: protocol.OpStop, GuildID: guildID})
		} else {
			play := protocol.PlayCommand{
				Op:        protocol.OpPlay,
				GuildID:   guildID,
				Track:     *u.Track.Encoded,
				Volume:    u.Volume,
				NoReplace: noReplace,
			}
			if u.Position != nil {
				play.StartTime = *u.Position
			}
			if u.EndTime != nil {
				play.EndTime = *u.EndTime
			}
			if u.Paused != nil {
				play.Pause = *u.Paused
			}
			return append(ops, play)
		}
	}

	if u.Paused != nil {
		ops = append(ops, protocol.PauseCommand{Op: protocol.OpPause, GuildID: guildID, Pause: *u.Paused})
	}
	if u.Position != nil {
		ops = append(ops, protocol.SeekCommand{Op: protocol.OpSeek, GuildID: guildID, Position: *u.Position})
	}
	if u.Volume != nil {
		ops = append(ops, protocol.VolumeCommand{Op: protocol.OpVolume, GuildID: guildID, Volume: *u.Volume})
	}
	return ops
}
