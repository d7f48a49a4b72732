// ABOUTME: Pool of nodes with load based selection
// ABOUTME: Creates players on the least loaded connected node
package lava

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"
)

// PoolConfig holds settings shared by every node added to a pool.
type PoolConfig struct {
	// Logger replaces the Logger of every node added to the pool.
	Logger zerolog.Logger
	// OnEvent is used for nodes whose own config leaves it unset.
	OnEvent func(Event)
}

// Pool manages a set of nodes.
type Pool struct {
	config PoolConfig
	log    zerolog.Logger

	mu    sync.RWMutex
	nodes []*Node
}

func NewPool(config PoolConfig) *Pool {
	return &Pool{
		config: config,
		log:    config.Logger.With().Str("component", "pool").Logger(),
	}
}

// AddNode registers a node and connects it. If the first connect fails the
// node is dropped again, unless ReconnectOnFail keeps it retrying; the node
// is then returned along with the error.
func (p *Pool) AddNode(ctx context.Context, config NodeConfig) (*Node, error) {
	if config.OnEvent == nil {
		config.OnEvent = p.config.OnEvent
	}
	config.Logger = p.config.Logger

	n := NewNode(config)

	p.mu.Lock()
	if slices.ContainsFunc(p.nodes, func(o *Node) bool { return o.ID() == n.ID() }) {
		p.mu.Unlock()
		n.Close()
		return nil, &NodeSelectionError{Node: n.ID(), Err: ErrNodeExists}
	}
	p.nodes = append(p.nodes, n)
	p.mu.Unlock()

	if err := n.Connect(ctx); err != nil {
		if n.config.ReconnectOnFail {
			return n, err
		}
		p.remove(n)
		n.Close()
		return nil, err
	}

	p.log.Info().Str("node", n.ID()).Msg("node added")
	return n, nil
}

func (p *Pool) remove(n *Node) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.nodes, n)
	if i < 0 {
		return false
	}
	p.nodes = slices.Delete(p.nodes, i, i+1)
	return true
}

// Node looks a node up by id.
func (p *Pool) Node(id string) (*Node, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, n := range p.nodes {
		if n.ID() == id {
			return n, nil
		}
	}
	return nil, &NodeSelectionError{Node: id, Err: ErrNodeNotFound}
}

// Nodes lists nodes in the order they were added.
func (p *Pool) Nodes() []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.nodes)
}

// BestNode returns the connected node with the lowest penalty. Ties go to
// the node added first.
func (p *Pool) BestNode() (*Node, error) {
	var (
		best    *Node
		penalty float64
	)
	for _, n := range p.Nodes() {
		if n.State() != StateConnected {
			continue
		}
		if pen := n.Penalty(); best == nil || pen < penalty {
			best, penalty = n, pen
		}
	}
	if best == nil {
		return nil, &NodeSelectionError{Err: ErrNoNodesAvailable}
	}
	return best, nil
}

// RemoveNode destroys every player on the node and closes it.
func (p *Pool) RemoveNode(ctx context.Context, id string) error {
	n, err := p.Node(id)
	if err != nil {
		return err
	}
	p.remove(n)

	for _, pl := range n.Players() {
		if err := pl.Destroy(ctx); err != nil {
			p.log.Warn().Err(err).Stringer("guild", pl.GuildID()).Msg("destroy on node removal")
		}
	}

	p.log.Info().Str("node", id).Msg("node removed")
	return n.Close()
}

// CreatePlayerOption adjusts Pool.CreatePlayer.
type CreatePlayerOption func(*createPlayerOptions)

type createPlayerOptions struct {
	node *Node
}

// OnNode places the player on n instead of the best node.
func OnNode(n *Node) CreatePlayerOption {
	return func(o *createPlayerOptions) { o.node = n }
}

// CreatePlayer creates a player for guildID on the best node. A guild can
// have one player across the whole pool.
func (p *Pool) CreatePlayer(guildID snowflake.ID, opts ...CreatePlayerOption) (*Player, error) {
	var o createPlayerOptions
	for _, opt := range opts {
		opt(&o)
	}

	if _, ok := p.Player(guildID); ok {
		return nil, &CommandError{Op: "create player", Guild: guildID, Err: ErrPlayerExists}
	}

	n := o.node
	if n == nil {
		best, err := p.BestNode()
		if err != nil {
			return nil, err
		}
		n = best
	}
	return n.CreatePlayer(guildID)
}

// Player finds the player for guildID on any node.
func (p *Pool) Player(guildID snowflake.ID) (*Player, bool) {
	for _, n := range p.Nodes() {
		if pl, ok := n.Player(guildID); ok {
			return pl, true
		}
	}
	return nil, false
}

// Players lists every player in the pool.
func (p *Pool) Players() []*Player {
	var out []*Player
	for _, n := range p.Nodes() {
		out = append(out, n.Players()...)
	}
	return out
}

// Close destroys all players and closes every node.
func (p *Pool) Close(ctx context.Context) error {
	var errs []error
	for _, n := range p.Nodes() {
		if err := p.RemoveNode(ctx, n.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
