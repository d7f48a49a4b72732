// ABOUTME: Audio filter kinds and their parameters
// ABOUTME: Each filter knows its kind and how to write itself into the wire payload
package filter

import (
	"fmt"

	"github.com/lavaclient/lava-go/pkg/protocol"
)

// Kind names a filter slot. A chain holds at most one filter per kind.
type Kind int

const (
	KindEqualizer Kind = iota
	KindKaraoke
	KindTimescale
	KindTremolo
	KindVibrato
	KindRotation
	KindDistortion
	KindChannelMix
	KindLowPass
	KindVolume
)

var kindNames = [...]string{
	KindEqualizer:  "equalizer",
	KindKaraoke:    "karaoke",
	KindTimescale:  "timescale",
	KindTremolo:    "tremolo",
	KindVibrato:    "vibrato",
	KindRotation:   "rotation",
	KindDistortion: "distortion",
	KindChannelMix: "channelMix",
	KindLowPass:    "lowPass",
	KindVolume:     "volume",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind looks a kind up by its wire name.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Filter is one audio effect.
type Filter interface {
	Kind() Kind
	apply(f *protocol.Filters)
}

// Equalizer gain limits per band.
const (
	MinGain  = -0.25
	MaxGain  = 1.0
	NumBands = 15
)

// Equalizer sets gains on the 15 bands from 25 Hz to 16 kHz. Bands not listed
// stay at 0.
type Equalizer struct {
	Bands []protocol.EqualizerBand
}

// NewEqualizer builds an equalizer from gains for bands 0, 1, 2 and so on.
func NewEqualizer(gains ...float64) Equalizer {
	eq := Equalizer{}
	for i, g := range gains {
		if i >= NumBands {
			break
		}
		eq.Bands = append(eq.Bands, protocol.EqualizerBand{Band: i, Gain: g})
	}
	return eq
}

func (Equalizer) Kind() Kind { return KindEqualizer }

func (e Equalizer) apply(f *protocol.Filters) {
	bands := make([]protocol.EqualizerBand, 0, len(e.Bands))
	for _, b := range e.Bands {
		if b.Band < 0 || b.Band >= NumBands {
			continue
		}
		bands = append(bands, protocol.EqualizerBand{Band: b.Band, Gain: clamp(b.Gain, MinGain, MaxGain)})
	}
	f.Equalizer = bands
}

// Karaoke removes a frequency band, usually vocals.
type Karaoke struct {
	Level       float64
	MonoLevel   float64
	FilterBand  float64
	FilterWidth float64
}

func (Karaoke) Kind() Kind { return KindKaraoke }

func (k Karaoke) apply(f *protocol.Filters) {
	f.Karaoke = &protocol.Karaoke{Level: k.Level, MonoLevel: k.MonoLevel, FilterBand: k.FilterBand, FilterWidth: k.FilterWidth}
}

// Timescale changes speed, pitch and rate. 1.0 is unchanged.
type Timescale struct {
	Speed float64
	Pitch float64
	Rate  float64
}

func (Timescale) Kind() Kind { return KindTimescale }

func (t Timescale) apply(f *protocol.Filters) {
	f.Timescale = &protocol.Timescale{Speed: nonNegative(t.Speed), Pitch: nonNegative(t.Pitch), Rate: nonNegative(t.Rate)}
}

// Tremolo oscillates volume.
type Tremolo struct {
	Frequency float64
	Depth     float64 // (0, 1]
}

func (Tremolo) Kind() Kind { return KindTremolo }

func (t Tremolo) apply(f *protocol.Filters) {
	f.Tremolo = &protocol.Tremolo{Frequency: nonNegative(t.Frequency), Depth: clamp(t.Depth, 0, 1)}
}

// Vibrato oscillates pitch.
type Vibrato struct {
	Frequency float64 // (0, 14]
	Depth     float64 // (0, 1]
}

func (Vibrato) Kind() Kind { return KindVibrato }

func (v Vibrato) apply(f *protocol.Filters) {
	f.Vibrato = &protocol.Vibrato{Frequency: clamp(v.Frequency, 0, 14), Depth: clamp(v.Depth, 0, 1)}
}

// Rotation pans audio around the stereo field.
type Rotation struct {
	Hz float64
}

func (Rotation) Kind() Kind { return KindRotation }

func (r Rotation) apply(f *protocol.Filters) {
	f.Rotation = &protocol.Rotation{RotationHz: r.Hz}
}

type Distortion struct {
	SinOffset, SinScale float64
	CosOffset, CosScale float64
	TanOffset, TanScale float64
	Offset, Scale       float64
}

func (Distortion) Kind() Kind { return KindDistortion }

func (d Distortion) apply(f *protocol.Filters) {
	f.Distortion = &protocol.Distortion{
		SinOffset: d.SinOffset, SinScale: d.SinScale,
		CosOffset: d.CosOffset, CosScale: d.CosScale,
		TanOffset: d.TanOffset, TanScale: d.TanScale,
		Offset: d.Offset, Scale: d.Scale,
	}
}

// ChannelMix mixes the two channels. All factors are in [0, 1].
type ChannelMix struct {
	LeftToLeft   float64
	LeftToRight  float64
	RightToLeft  float64
	RightToRight float64
}

// Mono mixes both channels equally into each side.
func Mono() ChannelMix {
	return ChannelMix{LeftToLeft: 0.5, LeftToRight: 0.5, RightToLeft: 0.5, RightToRight: 0.5}
}

func (ChannelMix) Kind() Kind { return KindChannelMix }

func (c ChannelMix) apply(f *protocol.Filters) {
	f.ChannelMix = &protocol.ChannelMix{
		LeftToLeft:   clamp(c.LeftToLeft, 0, 1),
		LeftToRight:  clamp(c.LeftToRight, 0, 1),
		RightToLeft:  clamp(c.RightToLeft, 0, 1),
		RightToRight: clamp(c.RightToRight, 0, 1),
	}
}

// LowPass suppresses high frequencies. Smoothing above 1 enables it.
type LowPass struct {
	Smoothing float64
}

func (LowPass) Kind() Kind { return KindLowPass }

func (l LowPass) apply(f *protocol.Filters) {
	f.LowPass = &protocol.LowPass{Smoothing: nonNegative(l.Smoothing)}
}

// Volume scales output. 1.0 is unchanged, 5.0 the maximum.
type Volume struct {
	Level float64
}

func (Volume) Kind() Kind { return KindVolume }

func (v Volume) apply(f *protocol.Filters) {
	level := clamp(v.Level, 0, 5)
	f.Volume = &level
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
