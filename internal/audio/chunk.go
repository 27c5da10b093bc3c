// Package audio defines the Sample and AudioChunk types that flow between
// the capture, processing, and playback stages, plus the bounded queues
// that connect them.
package audio

import "sync"

// Sample is the engine's internal sample representation: a 64-bit float
// with full scale at ±1.0. A narrow-precision build would redefine Sample
// as float32 behind a build tag; this module only implements the 64-bit
// path.
type Sample = float64

// Chunk is the unit of inter-stage transfer (spec.md §3 AudioChunk).
// Data is channel-major: Data[c] is a buffer of length Frames for channel c.
// Iteration order across channels is not part of the contract.
type Chunk struct {
	Channels     int
	Frames       int     // nominal frames per chunk == configured chunksize
	ValidFrames  int     // <= Frames; smaller after the resampler
	Data         [][]Sample
	MaxVal       []Sample // per-channel peak, valid after ComputeMinMax
	MinVal       []Sample // per-channel trough, valid after ComputeMinMax
	Clipped      int      // samples seen outside [-1, 1] this chunk
	Timestamp    int64    // monotonic frame counter at Data[*][0]
}

// NewChunk allocates a chunk with channels×frames worth of sample storage.
func NewChunk(channels, frames int) *Chunk {
	c := &Chunk{
		Channels: channels,
		Frames:   frames,
	}
	c.alloc()
	return c
}

func (c *Chunk) alloc() {
	c.Data = make([][]Sample, c.Channels)
	buf := make([]Sample, c.Channels*c.Frames)
	for ch := range c.Data {
		c.Data[ch] = buf[ch*c.Frames : (ch+1)*c.Frames]
	}
	c.MaxVal = make([]Sample, c.Channels)
	c.MinVal = make([]Sample, c.Channels)
}

// Reset zeros the chunk's sample data and metadata in place, preserving
// its allocation so it can be reused from a pool.
func (c *Chunk) Reset() {
	for ch := range c.Data {
		clear(c.Data[ch])
		c.MaxVal[ch] = 0
		c.MinVal[ch] = 0
	}
	c.ValidFrames = 0
	c.Clipped = 0
	c.Timestamp = 0
}

// ComputeMinMax fills MaxVal/MinVal per channel over ValidFrames and
// counts samples outside full scale as clipped. Used for silence
// detection (spec.md §4.4 Capture task) and clip reporting (§4.4 Playback
// task, §7 "clipping is not an error").
func (c *Chunk) ComputeMinMax() {
	n := c.ValidFrames
	if n == 0 {
		n = c.Frames
	}
	c.Clipped = 0
	for ch := range c.Data {
		minv, maxv := Sample(0), Sample(0)
		if n > 0 {
			minv, maxv = c.Data[ch][0], c.Data[ch][0]
		}
		for i := 0; i < n; i++ {
			v := c.Data[ch][i]
			if v > maxv {
				maxv = v
			}
			if v < minv {
				minv = v
			}
			if v > 1.0 || v < -1.0 {
				c.Clipped++
			}
		}
		c.MaxVal[ch] = maxv
		c.MinVal[ch] = minv
	}
}

// IsSilent reports whether every channel's peak magnitude is below
// threshold over ValidFrames (spec.md §4.4 "silence_threshold").
func (c *Chunk) IsSilent(threshold Sample) bool {
	for ch := range c.Data {
		if c.MaxVal[ch] > threshold || c.MinVal[ch] < -threshold {
			return false
		}
	}
	return true
}

// SignalRange reports max-min across a channel's valid samples — the
// literal "signal range" metric from spec.md §9's open question, carried
// forward unchanged rather than reinterpreted as peak-to-peak dB or RMS.
func (c *Chunk) SignalRange(channel int) Sample {
	return c.MaxVal[channel] - c.MinVal[channel]
}

// Pool recycles chunks of a fixed channels×frames shape to avoid
// per-chunk allocation on the hot path (spec.md §5 "Memory buffers for
// chunks are pre-allocated on configuration apply").
type Pool struct {
	channels int
	frames   int
	pool     sync.Pool
}

// NewPool creates a pool for chunks of the given shape.
func NewPool(channels, frames int) *Pool {
	p := &Pool{channels: channels, frames: frames}
	p.pool.New = func() any {
		return NewChunk(channels, frames)
	}
	return p
}

// Get returns a zeroed chunk from the pool.
func (p *Pool) Get() *Chunk {
	c := p.pool.Get().(*Chunk)
	c.Reset()
	return c
}

// Put returns a chunk to the pool. The chunk must not be referenced again
// by the caller after this call — ownership transfers back to the pool.
func (p *Pool) Put(c *Chunk) {
	if c.Channels != p.channels || c.Frames != p.frames {
		return // shape mismatch, likely a post-reconfiguration straggler; drop it
	}
	p.pool.Put(c)
}
