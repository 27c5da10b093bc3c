// Package pipeline evaluates a configuration's ordered list of Filter,
// Mixer, and Processor steps against a chunk (spec.md §4.2).
package pipeline

import (
	"math"
	"strconv"
	"strings"

	"github.com/camilladsp-go/camilladsp/internal/audio"
)

// ChannelFilter applies one DSP primitive in place to a single channel's
// samples. internal/dsp's Biquad, Cascade, FIR, Delay, Gain, Volume,
// Loudness, Dither, and Limiter all satisfy this.
type ChannelFilter interface {
	ProcessChannel(ch int, samples []float64)
}

// ChunkProcessor hands the whole chunk to a cross-channel processor
// (Compressor, NoiseGate) and is evaluated once per chunk rather than once
// per channel.
type ChunkProcessor interface {
	ProcessChunk(data [][]float64, validFrames int)
}

// FilterStep applies a sequence of named filters, in order, to each of a
// fixed set of channels (spec.md §4.2 "Filter step"). Filters with an
// Advance method (Volume, Loudness) are advanced once per chunk before any
// channel is processed.
type FilterStep struct {
	Channels []int
	Filters  []ChannelFilter
}

func (s *FilterStep) apply(c *audio.Chunk) {
	for _, f := range s.Filters {
		if a, ok := f.(interface{ Advance() }); ok {
			a.Advance()
		}
	}
	for _, ch := range s.Channels {
		for _, f := range s.Filters {
			f.ProcessChannel(ch, c.Data[ch][:c.ValidFrames])
		}
	}
}

// MixerSource is one contribution to a MixerStep's destination channel.
type MixerSource struct {
	Channel int
	GainDB  float64
	Invert  bool
}

// MixerStep reallocates the chunk's channel layout: for each destination
// row it sums gain·(±1)·source over its declared sources (spec.md §4.2
// "Mixer step").
type MixerStep struct {
	OutChannels int
	Dests       [][]MixerSource // one entry per destination channel; empty = silent
	Mute        []bool          // per destination
}

func (s *MixerStep) apply(c *audio.Chunk) {
	out := make([][]float64, s.OutChannels)
	for d := range out {
		out[d] = make([]float64, c.Frames)
		if s.Mute != nil && d < len(s.Mute) && s.Mute[d] {
			continue
		}
		for _, src := range s.Dests[d] {
			gain := dBToLinear(src.GainDB)
			if src.Invert {
				gain = -gain
			}
			for i := 0; i < c.ValidFrames; i++ {
				out[d][i] += gain * c.Data[src.Channel][i]
			}
		}
	}
	c.Data = out
	c.Channels = s.OutChannels
}

func dBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// ProcessorStep hands the whole chunk to a ChunkProcessor (spec.md §4.2
// "Processor step").
type ProcessorStep struct {
	Processor ChunkProcessor
}

func (s *ProcessorStep) apply(c *audio.Chunk) {
	s.Processor.ProcessChunk(c.Data, c.ValidFrames)
}

// Step is any of FilterStep, MixerStep, ProcessorStep.
type Step interface {
	apply(c *audio.Chunk)
}

// Pipeline is the ordered, config-apply-time-materialized list of steps
// plus the parallel task grouping used when multithreaded is enabled
// (spec.md §4.2).
type Pipeline struct {
	steps  []Step
	groups []*parallelGroup // non-nil only for multithreaded filter-step runs
	pool   *WorkerPool      // nil unless multithreaded
}

// NewPipeline builds a Pipeline from an ordered step list. When pool is
// non-nil, consecutive FilterSteps are grouped into parallel tasks bounded
// by mixer/processor boundaries (spec.md §4.2 "multithreaded").
func NewPipeline(steps []Step, pool *WorkerPool) *Pipeline {
	p := &Pipeline{steps: steps, pool: pool}
	if pool != nil {
		p.groups = groupFilterSteps(steps)
	}
	return p
}

// Run evaluates every step against c in order, synchronously.
func (p *Pipeline) Run(c *audio.Chunk) {
	if p.pool == nil {
		for _, s := range p.steps {
			s.apply(c)
		}
		return
	}
	p.runGrouped(c)
}

// resolveTokens substitutes $samplerate$ and $channels$ in a name or
// filename with their snapshot-time values (spec.md §4.2).
func resolveTokens(name string, sampleRate, channels int) string {
	name = strings.ReplaceAll(name, "$samplerate$", strconv.Itoa(sampleRate))
	name = strings.ReplaceAll(name, "$channels$", strconv.Itoa(channels))
	return name
}

// ResolveTokens is the exported form used by the config package when
// resolving names/filenames at snapshot time.
func ResolveTokens(name string, sampleRate, channels int) string {
	return resolveTokens(name, sampleRate, channels)
}
