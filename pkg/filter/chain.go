// ABOUTME: Filter chain keyed by filter kind
// ABOUTME: Setting a filter replaces only the filter of the same kind
package filter

import (
	"maps"
	"slices"

	"github.com/lavaclient/lava-go/pkg/protocol"
)

// Chain is the set of active filters. The zero value is an empty chain.
// Not safe for concurrent use; the player keeps its own copy.
type Chain struct {
	filters map[Kind]Filter
}

// NewChain builds a chain. Later filters replace earlier ones of the same kind.
func NewChain(filters ...Filter) Chain {
	var c Chain
	for _, f := range filters {
		c.Set(f)
	}
	return c
}

// Set adds f, replacing any filter of the same kind.
func (c *Chain) Set(f Filter) {
	if f == nil {
		return
	}
	if c.filters == nil {
		c.filters = make(map[Kind]Filter)
	}
	c.filters[f.Kind()] = f
}

// Remove drops the filter of kind k and reports whether one was set.
func (c *Chain) Remove(k Kind) bool {
	if _, ok := c.filters[k]; !ok {
		return false
	}
	delete(c.filters, k)
	return true
}

// Clear removes every filter.
func (c *Chain) Clear() {
	clear(c.filters)
}

func (c Chain) Get(k Kind) (Filter, bool) {
	f, ok := c.filters[k]
	return f, ok
}

func (c Chain) Len() int { return len(c.filters) }

// Kinds lists active kinds in Kind order.
func (c Chain) Kinds() []Kind {
	return slices.Sorted(maps.Keys(c.filters))
}

// Clone returns an independent copy.
func (c Chain) Clone() Chain {
	return Chain{filters: maps.Clone(c.filters)}
}

// Payload renders the chain as the node expects it. An empty chain renders
// an empty object, which clears all filters remotely.
func (c Chain) Payload() protocol.Filters {
	var out protocol.Filters
	for _, k := range c.Kinds() {
		c.filters[k].apply(&out)
	}
	return out
}

// FromPayload rebuilds a chain from a node's filter object.
func FromPayload(p protocol.Filters) Chain {
	var c Chain
	if p.Volume != nil {
		c.Set(Volume{Level: *p.Volume})
	}
	if len(p.Equalizer) > 0 {
		c.Set(Equalizer{Bands: slices.Clone(p.Equalizer)})
	}
	if k := p.Karaoke; k != nil {
		c.Set(Karaoke{Level: k.Level, MonoLevel: k.MonoLevel, FilterBand: k.FilterBand, FilterWidth: k.FilterWidth})
	}
	if t := p.Timescale; t != nil {
		c.Set(Timescale{Speed: t.Speed, Pitch: t.Pitch, Rate: t.Rate})
	}
	if t := p.Tremolo; t != nil {
		c.Set(Tremolo{Frequency: t.Frequency, Depth: t.Depth})
	}
	if v := p.Vibrato; v != nil {
		c.Set(Vibrato{Frequency: v.Frequency, Depth: v.Depth})
	}
	if r := p.Rotation; r != nil {
		c.Set(Rotation{Hz: r.RotationHz})
	}
	if d := p.Distortion; d != nil {
		c.Set(Distortion{
			SinOffset: d.SinOffset, SinScale: d.SinScale,
			CosOffset: d.CosOffset, CosScale: d.CosScale,
			TanOffset: d.TanOffset, TanScale: d.TanScale,
			Offset: d.Offset, Scale: d.Scale,
		})
	}
	if m := p.ChannelMix; m != nil {
		c.Set(ChannelMix{LeftToLeft: m.LeftToLeft, LeftToRight: m.LeftToRight, RightToLeft: m.RightToLeft, RightToRight: m.RightToRight})
	}
	if l := p.LowPass; l != nil {
		c.Set(LowPass{Smoothing: l.Smoothing})
	}
	return c
}
