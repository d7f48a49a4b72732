// ABOUTME: Per-guild player state machine
// ABOUTME: Issues playback commands to its node and follows remote events in order
package lava

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	"github.com/lavaclient/lava-go/pkg/filter"
	"github.com/lavaclient/lava-go/pkg/protocol"
	"github.com/lavaclient/lava-go/pkg/queue"
	"github.com/lavaclient/lava-go/pkg/track"
)

// PlayerState is the playback state of a player.
type PlayerState int

const (
	StateIdle PlayerState = iota
	StateLoading
	StatePlaying
	StatePaused
	StateDestroyed
)

func (s PlayerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("PlayerState(%d)", int(s))
}

const inboxSize = 128

// nodeReconnected tells a player its node came back.
type nodeReconnected struct {
	resumed bool
}

// binding is what a player takes from the node hosting it.
type binding struct {
	log       zerolog.Logger
	emit      func(Event)
	maxVolume int
	replay    bool
	timeout   time.Duration
}

func bindTo(n *Node, guildID snowflake.ID) *binding {
	return &binding{
		log:       n.log.With().Stringer("guild", guildID).Logger(),
		emit:      n.emit,
		maxVolume: n.config.MaxVolume,
		replay:    !n.config.SkipReplay,
		timeout:   n.config.RequestTimeout,
	}
}

// Player drives playback for one guild on one node.
//
// Commands may be called from any goroutine; they are sent in call order.
// Remote events are handled on the player's own goroutine. Handlers run with
// no player lock held and may call commands on the player.
type Player struct {
	guildID snowflake.ID
	bound   atomic.Pointer[binding]
	queue   *queue.Queue
	now     func() time.Time

	mu       sync.Mutex
	node     *Node
	state    PlayerState
	voice    VoiceState
	current  *track.Track
	anchor   Position
	paused   bool
	volume   int
	filters  filter.Chain
	endTime  time.Duration
	ping     time.Duration
	remoteOK bool
	// events raised while cmdMu is held, emitted once it is released
	pending []Event

	// cmdMu serializes outbound commands.
	cmdMu sync.Mutex

	inbox    chan any
	done     chan struct{}
	stopOnce sync.Once
}

func newPlayer(n *Node, guildID snowflake.ID) *Player {
	p := &Player{
		guildID: guildID,
		queue:   queue.New(),
		now:     time.Now,
		node:    n,
		volume:  DefaultVolume,
		inbox:   make(chan any, inboxSize),
		done:    make(chan struct{}),
	}
	p.bound.Store(bindTo(n, guildID))
	go p.loop()
	return p
}

func (p *Player) GuildID() snowflake.ID { return p.guildID }

// Queue returns the player's queue. Changes take effect when the current
// track ends or PlayNext is called.
func (p *Player) Queue() *queue.Queue { return p.queue }

// Node returns the hosting node, or nil once destroyed.
func (p *Player) Node() *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.node
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns the loaded track.
func (p *Player) Current() (track.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return track.Track{}, false
	}
	return *p.current, true
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Filters returns a copy of the active filter chain.
func (p *Player) Filters() filter.Chain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filters.Clone()
}

func (p *Player) Voice() VoiceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voice
}

// Ping is the node's last reported voice gateway latency.
func (p *Player) Ping() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ping
}

// Connected reports whether the node said its voice connection is up.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remoteOK
}

// Position estimates the playback offset from the last position report.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	if p.current == nil {
		return 0
	}
	running := p.state == StatePlaying && !p.paused
	d := p.anchor.Project(p.now(), running)
	return clampOffset(d, p.current.Info.Length, p.current.Info.IsStream)
}

// PlayOption adjusts a Play call.
type PlayOption func(*playOptions)

type playOptions struct {
	start     time.Duration
	end       time.Duration
	noReplace bool
	paused    *bool
}

// WithStart begins playback at d.
func WithStart(d time.Duration) PlayOption {
	return func(o *playOptions) { o.start = d }
}

// WithEnd stops playback at d.
func WithEnd(d time.Duration) PlayOption {
	return func(o *playOptions) { o.end = d }
}

// NoReplace leaves a track that is already playing alone.
func NoReplace() PlayOption {
	return func(o *playOptions) { o.noReplace = true }
}

// StartPaused loads the track paused.
func StartPaused() PlayOption {
	return func(o *playOptions) {
		paused := true
		o.paused = &paused
	}
}

// Play loads t on the node. It requires complete voice credentials and
// leaves the player loading until the node reports the track started.
func (p *Player) Play(ctx context.Context, t track.Track, opts ...PlayOption) error {
	var o playOptions
	for _, opt := range opts {
		opt(&o)
	}

	p.cmdMu.Lock()
	defer p.unlockCmd()
	return p.play(ctx, t, o)
}

// play expects cmdMu held.
func (p *Player) play(ctx context.Context, t track.Track, o playOptions) error {
	p.mu.Lock()
	if err := p.usableLocked("play"); err != nil {
		p.mu.Unlock()
		return err
	}
	if !p.voice.Complete() {
		p.mu.Unlock()
		return &CommandError{Op: "play", Guild: p.guildID, Err: ErrVoiceIncomplete}
	}

	node := p.node
	paused := p.paused
	if o.paused != nil {
		paused = *o.paused
	}

	encoded := t.Encoded
	update := protocol.UpdatePlayer{
		Track:  &protocol.UpdateTrack{Encoded: &encoded, UserData: t.UserData},
		Paused: &paused,
	}
	if o.start > 0 {
		start := o.start.Milliseconds()
		update.Position = &start
	}
	if o.end > 0 {
		end := o.end.Milliseconds()
		update.EndTime = &end
	}

	// With noReplace and something loaded the node keeps what it has.
	replacing := !(o.noReplace && p.current != nil)
	type snapshot struct {
		state   PlayerState
		current *track.Track
		anchor  Position
		paused  bool
		endTime time.Duration
	}
	prev := snapshot{p.state, p.current, p.anchor, p.paused, p.endTime}
	if replacing {
		p.current = &t
		p.anchor = Position{Offset: o.start, At: p.now()}
		p.paused = paused
		p.endTime = o.end
		p.state = StateLoading
	}
	p.mu.Unlock()

	if replacing {
		p.later(stateEvent(p, prev.state, StateLoading)...)
	}

	if err := p.send(ctx, node, "play", update, o.noReplace); err != nil {
		if replacing {
			p.mu.Lock()
			if p.current == &t {
				p.state, p.current, p.anchor, p.paused, p.endTime = prev.state, prev.current, prev.anchor, prev.paused, prev.endTime
			}
			p.mu.Unlock()
			p.later(stateEvent(p, StateLoading, prev.state)...)
		}
		return err
	}

	p.logger().Debug().Str("track", t.String()).Msg("play")
	return nil
}

// PlayNext plays the next track from the queue. It returns a *queue.Error
// wrapping queue.ErrEmpty when there is nothing to play.
func (p *Player) PlayNext(ctx context.Context) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	p.mu.Lock()
	err := p.usableLocked("play next")
	if err == nil && !p.voice.Complete() {
		err = &CommandError{Op: "play next", Guild: p.guildID, Err: ErrVoiceIncomplete}
	}
	p.mu.Unlock()
	if err != nil {
		return err
	}

	next, err := p.queue.Next()
	if err != nil {
		return err
	}
	return p.play(ctx, next, playOptions{})
}

// Stop clears the current track. The queue is left as it is.
func (p *Player) Stop(ctx context.Context) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	p.mu.Lock()
	if err := p.usableLocked("stop"); err != nil {
		p.mu.Unlock()
		return err
	}
	node := p.node
	p.mu.Unlock()

	if err := p.send(ctx, node, "stop", protocol.UpdatePlayer{Track: &protocol.UpdateTrack{}}, false); err != nil {
		return err
	}

	p.mu.Lock()
	old := p.state
	p.current = nil
	p.state = StateIdle
	p.pending = append(p.pending, stateEvent(p, old, StateIdle)...)
	p.mu.Unlock()
	return nil
}

// Pause pauses playback. Pausing a paused player does nothing.
func (p *Player) Pause(ctx context.Context) error {
	return p.setPaused(ctx, "pause", true)
}

// Resume continues playback. Resuming a playing player does nothing.
func (p *Player) Resume(ctx context.Context) error {
	return p.setPaused(ctx, "resume", false)
}

func (p *Player) setPaused(ctx context.Context, op string, paused bool) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	p.mu.Lock()
	if err := p.usableLocked(op); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.paused == paused {
		p.mu.Unlock()
		return nil
	}
	node := p.node
	p.mu.Unlock()

	if err := p.send(ctx, node, op, protocol.UpdatePlayer{Paused: &paused}, false); err != nil {
		return err
	}

	p.mu.Lock()
	now := p.now()
	p.anchor = Position{Offset: p.positionLocked(), At: now}
	p.paused = paused
	old := p.state
	switch {
	case paused && p.state == StatePlaying:
		p.state = StatePaused
	case !paused && p.state == StatePaused:
		p.state = StatePlaying
	}
	p.pending = append(p.pending, stateEvent(p, old, p.state)...)
	p.mu.Unlock()
	return nil
}

// Seek jumps to pos, clamped to the track length. Streams cannot seek.
func (p *Player) Seek(ctx context.Context, pos time.Duration) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	p.mu.Lock()
	if err := p.usableLocked("seek"); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.current == nil {
		p.mu.Unlock()
		return &CommandError{Op: "seek", Guild: p.guildID, Err: ErrNoTrack}
	}
	if !p.current.Seekable() {
		p.mu.Unlock()
		return &CommandError{Op: "seek", Guild: p.guildID, Err: ErrNotSeekable}
	}
	pos = clampOffset(pos, p.current.Info.Length, false)
	node := p.node
	p.mu.Unlock()

	ms := pos.Milliseconds()
	if err := p.send(ctx, node, "seek", protocol.UpdatePlayer{Position: &ms}, false); err != nil {
		return err
	}

	p.mu.Lock()
	p.anchor = Position{Offset: pos, At: p.now()}
	p.mu.Unlock()
	return nil
}

// SetVolume sets the volume percentage, clamped to [0, MaxVolume].
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	volume = max(0, min(volume, p.bound.Load().maxVolume))

	p.mu.Lock()
	if err := p.usableLocked("volume"); err != nil {
		p.mu.Unlock()
		return err
	}
	node := p.node
	p.mu.Unlock()

	if err := p.send(ctx, node, "volume", protocol.UpdatePlayer{Volume: &volume}, false); err != nil {
		return err
	}

	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

// SetFilters replaces the whole filter chain.
func (p *Player) SetFilters(ctx context.Context, chain filter.Chain) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()
	return p.applyFilters(ctx, "filters", chain.Clone())
}

// SetFilter adds f, replacing any active filter of the same kind.
func (p *Player) SetFilter(ctx context.Context, f filter.Filter) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	chain := p.Filters()
	chain.Set(f)
	return p.applyFilters(ctx, "set filter", chain)
}

// RemoveFilter turns off the filter of kind k.
func (p *Player) RemoveFilter(ctx context.Context, k filter.Kind) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	chain := p.Filters()
	if !chain.Remove(k) {
		return nil
	}
	return p.applyFilters(ctx, "remove filter", chain)
}

// ClearFilters turns every filter off.
func (p *Player) ClearFilters(ctx context.Context) error {
	return p.SetFilters(ctx, filter.Chain{})
}

func (p *Player) applyFilters(ctx context.Context, op string, chain filter.Chain) error {
	p.mu.Lock()
	if err := p.usableLocked(op); err != nil {
		p.mu.Unlock()
		return err
	}
	node := p.node
	p.mu.Unlock()

	payload := chain.Payload()
	if err := p.send(ctx, node, op, protocol.UpdatePlayer{Filters: &payload}, false); err != nil {
		return err
	}

	p.mu.Lock()
	p.filters = chain
	p.mu.Unlock()
	return nil
}

// UpdateVoiceState records the bot's voice state. Once the credentials are
// complete they are forwarded to the node.
func (p *Player) UpdateVoiceState(ctx context.Context, u VoiceStateUpdate) error {
	return p.updateVoice(ctx, func(v *VoiceState) {
		v.ChannelID = u.ChannelID
		v.SessionID = u.SessionID
	})
}

// UpdateVoiceServer records the voice server assignment. Once the
// credentials are complete they are forwarded to the node.
func (p *Player) UpdateVoiceServer(ctx context.Context, u VoiceServerUpdate) error {
	return p.updateVoice(ctx, func(v *VoiceState) {
		v.Token = u.Token
		v.Endpoint = u.Endpoint
	})
}

func (p *Player) updateVoice(ctx context.Context, apply func(*VoiceState)) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	p.mu.Lock()
	if err := p.usableLocked("voice update"); err != nil {
		p.mu.Unlock()
		return err
	}
	old := p.voice
	apply(&p.voice)
	voice := p.voice
	node := p.node
	p.mu.Unlock()

	if !voice.Complete() || voice.equal(old) {
		return nil
	}
	return p.send(ctx, node, "voice update", protocol.UpdatePlayer{Voice: voice.wire()}, false)
}

// MoveTo migrates the player to another node, carrying its voice state,
// volume, filters and current track at the current position.
func (p *Player) MoveTo(ctx context.Context, target *Node) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	p.mu.Lock()
	if err := p.usableLocked("move"); err != nil {
		p.mu.Unlock()
		return err
	}
	source := p.node
	p.mu.Unlock()

	if source == target {
		return nil
	}
	if err := target.register(p); err != nil {
		return &CommandError{Op: "move", Guild: p.guildID, Err: err}
	}

	p.mu.Lock()
	p.node = target
	p.volume = min(p.volume, target.config.MaxVolume)
	p.mu.Unlock()
	p.bound.Store(bindTo(target, p.guildID))
	source.unregister(p)

	if err := source.destroyPlayer(ctx, p.guildID); err != nil {
		p.logger().Warn().Err(err).Str("from", source.ID()).Msg("could not destroy player on previous node")
	}

	p.logger().Info().Str("from", source.ID()).Str("to", target.ID()).Msg("moved player")
	return p.restore(ctx, "move")
}

// restore re-sends everything the node needs to rebuild this player. It
// expects cmdMu held.
func (p *Player) restore(ctx context.Context, op string) error {
	p.mu.Lock()
	if !p.voice.Complete() {
		p.mu.Unlock()
		return nil
	}
	node := p.node
	volume := p.volume
	paused := p.paused
	update := protocol.UpdatePlayer{
		Voice:  p.voice.wire(),
		Volume: &volume,
		Paused: &paused,
	}
	if p.filters.Len() > 0 {
		payload := p.filters.Payload()
		update.Filters = &payload
	}
	if p.current != nil {
		encoded := p.current.Encoded
		pos := p.positionLocked().Milliseconds()
		update.Track = &protocol.UpdateTrack{Encoded: &encoded, UserData: p.current.UserData}
		update.Position = &pos
		if p.endTime > 0 {
			end := p.endTime.Milliseconds()
			update.EndTime = &end
		}
	}
	p.mu.Unlock()

	return p.send(ctx, node, op, update, false)
}

// Destroy removes the player from the node and releases its queue. Calling
// it again does nothing.
func (p *Player) Destroy(ctx context.Context) error {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return nil
	}
	old := p.state
	node := p.node
	p.state = StateDestroyed
	p.node = nil
	p.current = nil
	p.pending = append(p.pending, stateEvent(p, old, StateDestroyed)...)
	p.mu.Unlock()

	p.stop()
	p.queue.Reset()

	if node == nil {
		return nil
	}
	node.unregister(p)
	if err := node.destroyPlayer(ctx, p.guildID); err != nil && !errors.Is(err, ErrNotConnected) {
		return &CommandError{Op: "destroy", Guild: p.guildID, Err: err}
	}
	return nil
}

func (p *Player) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *Player) usableLocked(op string) error {
	if p.state == StateDestroyed || p.node == nil {
		return &CommandError{Op: op, Guild: p.guildID, Err: ErrPlayerDestroyed}
	}
	return nil
}

func (p *Player) send(ctx context.Context, node *Node, op string, update protocol.UpdatePlayer, noReplace bool) error {
	if node == nil {
		return &CommandError{Op: op, Guild: p.guildID, Err: ErrPlayerDestroyed}
	}
	if err := node.updatePlayer(ctx, p.guildID, update, noReplace); err != nil {
		return &CommandError{Op: op, Guild: p.guildID, Err: err}
	}
	return nil
}

func (p *Player) emit(e Event) {
	p.bound.Load().emit(e)
}

func (p *Player) logger() *zerolog.Logger {
	return &p.bound.Load().log
}

func stateEvent(p *Player, old, state PlayerState) []Event {
	if old == state {
		return nil
	}
	return []Event{PlayerStateEvent{Player: p, Old: old, New: state}}
}

func (p *Player) notifyState(old, state PlayerState) {
	for _, e := range stateEvent(p, old, state) {
		p.emit(e)
	}
}

// later holds events back until cmdMu is released, so handlers can issue
// commands. Callers hold cmdMu.
func (p *Player) later(events ...Event) {
	if len(events) == 0 {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, events...)
	p.mu.Unlock()
}

// unlockCmd releases cmdMu and then emits the events raised under it.
func (p *Player) unlockCmd() {
	p.mu.Lock()
	events := p.pending
	p.pending = nil
	p.mu.Unlock()

	p.cmdMu.Unlock()
	for _, e := range events {
		p.emit(e)
	}
}

// deliver queues a message for the player goroutine. Position updates are
// dropped when the inbox is full; everything else waits for room so the
// state machine never misses a track event.
func (p *Player) deliver(msg any) {
	select {
	case <-p.done:
		return
	case p.inbox <- msg:
		return
	default:
	}

	if _, ok := msg.(*protocol.PlayerUpdate); ok {
		p.logger().Warn().Msg("player inbox full, dropping position update")
		return
	}
	p.logger().Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("player inbox full, waiting")
	select {
	case <-p.done:
	case p.inbox <- msg:
	}
}

func (p *Player) loop() {
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.inbox:
			p.handle(msg)
		}
	}
}

func (p *Player) handle(msg any) {
	switch m := msg.(type) {
	case *protocol.PlayerUpdate:
		p.onPlayerUpdate(m)
	case *protocol.TrackStartEvent:
		p.onTrackStart(m)
	case *protocol.TrackEndEvent:
		p.onTrackEnd(m)
	case *protocol.TrackExceptionEvent:
		p.logger().Warn().Str("severity", string(m.Exception.Severity)).Str("message", m.Exception.Message).Msg("track exception")
		p.emit(TrackExceptionEvent{Player: p, Track: p.trackFrom(m.Track), Exception: m.Exception})
	case *protocol.TrackStuckEvent:
		p.logger().Warn().Int64("threshold_ms", m.ThresholdMs).Msg("track stuck")
		p.emit(TrackStuckEvent{Player: p, Track: p.trackFrom(m.Track), Threshold: time.Duration(m.ThresholdMs) * time.Millisecond})
	case *protocol.WebSocketClosedEvent:
		p.logger().Info().Int("code", m.Code).Str("reason", m.Reason).Bool("by_remote", m.ByRemote).Msg("voice connection closed")
		p.emit(VoiceClosedEvent{Player: p, Code: m.Code, Reason: m.Reason, ByRemote: m.ByRemote})
	case nodeReconnected:
		p.onReconnected(m.resumed)
	default:
		p.logger().Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unexpected player message")
	}
}

// trackFrom resolves event track data. v3 events carry only the encoded
// string, so the loaded track fills in the metadata when it matches.
func (p *Player) trackFrom(data protocol.TrackData) track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.Encoded == data.Encoded && data.Info.Identifier == "" {
		return *p.current
	}
	return track.New(data)
}

func (p *Player) onPlayerUpdate(m *protocol.PlayerUpdate) {
	pos := time.Duration(m.State.Position) * time.Millisecond
	ping := time.Duration(m.State.Ping) * time.Millisecond

	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return
	}
	p.anchor = Position{Offset: pos, At: p.now()}
	p.ping = ping
	p.remoteOK = m.State.Connected
	p.mu.Unlock()

	p.emit(PlayerUpdateEvent{Player: p, Position: pos, Connected: m.State.Connected, Ping: ping})
}

func (p *Player) onTrackStart(m *protocol.TrackStartEvent) {
	t := p.trackFrom(m.Track)

	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return
	}
	old := p.state
	if p.current == nil || p.current.Encoded != t.Encoded {
		p.anchor = Position{}
		p.current = &t
	}
	p.anchor.At = p.now()
	p.state = StatePlaying
	if p.paused {
		p.state = StatePaused
	}
	state := p.state
	p.mu.Unlock()

	p.notifyState(old, state)
	p.emit(TrackStartEvent{Player: p, Track: t})
}

func (p *Player) onTrackEnd(m *protocol.TrackEndEvent) {
	t := p.trackFrom(m.Track)

	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return
	}
	// The end belongs to a track that was already replaced or stopped here.
	stale := p.current == nil || p.current.Encoded != t.Encoded
	old := p.state
	if !stale && m.Reason != protocol.EndReplaced {
		p.current = nil
		p.state = StateIdle
	}
	state := p.state
	p.mu.Unlock()

	p.notifyState(old, state)
	p.emit(TrackEndEvent{Player: p, Track: t, Reason: m.Reason})

	if stale || !m.Reason.MayStartNext() {
		return
	}
	p.advance()
}

func (p *Player) advance() {
	p.cmdMu.Lock()
	defer p.unlockCmd()

	p.mu.Lock()
	destroyed := p.state == StateDestroyed
	p.mu.Unlock()
	if destroyed {
		return
	}

	next, err := p.queue.Next()
	if err != nil {
		p.logger().Debug().Msg("queue ended")
		p.later(QueueEndEvent{Player: p})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.bound.Load().timeout)
	defer cancel()
	if err := p.play(ctx, next, playOptions{}); err != nil {
		p.logger().Error().Err(err).Msg("could not play next track")
		p.later(PlayerErrorEvent{Player: p, Err: err})
	}
}

func (p *Player) onReconnected(resumed bool) {
	p.mu.Lock()
	node := p.node
	p.mu.Unlock()

	p.emit(NodeReconnectedEvent{Node: node, Player: p, Resumed: resumed})
	if resumed || !p.bound.Load().replay || node == nil {
		return
	}

	p.cmdMu.Lock()
	defer p.unlockCmd()

	ctx, cancel := context.WithTimeout(context.Background(), p.bound.Load().timeout)
	defer cancel()
	if err := p.restore(ctx, "replay"); err != nil {
		p.logger().Error().Err(err).Msg("could not replay after reconnect")
		p.later(PlayerErrorEvent{Player: p, Err: err})
	}
}
