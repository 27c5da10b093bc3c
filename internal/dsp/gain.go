package dsp

import (
	"math"
	"sync"
	"sync/atomic"
)

// dBToLinear converts a decibel gain to a linear amplitude multiplier.
func dBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// FaderName identifies one of the five global volume faders (spec.md §3
// VolumeFader, §9 Fader glossary entry).
type FaderName int

const (
	FaderMain FaderName = iota
	FaderAux1
	FaderAux2
	FaderAux3
	FaderAux4
	faderCount
)

// Fader holds one named fader's gain and mute state plus a ramp in
// progress. Gain changes are ramped linearly in dB over a configured
// duration, rounded up to a whole number of chunks, so a control-triggered
// volume change never clicks (spec.md §4.1 Gain/Volume, §8 volume ramp
// monotonicity).
type Fader struct {
	mu         sync.Mutex
	currentDB  float64
	targetDB   float64
	stepDB     float64 // per-chunk increment while ramping
	remaining  int     // chunks left in the current ramp
	muted      atomic.Bool
}

// NewFader creates a fader at 0dB, unmuted.
func NewFader() *Fader {
	return &Fader{}
}

// SetGain starts (or replaces) a ramp from the fader's current gain to
// targetDB over rampMS milliseconds, evaluated in whole chunks of
// chunkDurationMS each. rampMS <= 0 applies the new gain immediately.
func (f *Fader) SetGain(targetDB, rampMS, chunkDurationMS float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rampMS <= 0 || chunkDurationMS <= 0 {
		f.currentDB = targetDB
		f.targetDB = targetDB
		f.remaining = 0
		f.stepDB = 0
		return
	}
	chunks := int(math.Ceil(rampMS / chunkDurationMS))
	if chunks < 1 {
		chunks = 1
	}
	f.targetDB = targetDB
	f.remaining = chunks
	f.stepDB = (targetDB - f.currentDB) / float64(chunks)
}

// SetMute sets the fader's mute flag; muting is applied instantaneously,
// not ramped, per CamillaDSP's control surface (spec.md §6 SetMute).
func (f *Fader) SetMute(muted bool) {
	f.muted.Store(muted)
}

// ToggleMute flips the mute flag and returns the new state.
func (f *Fader) ToggleMute() bool {
	for {
		old := f.muted.Load()
		if f.muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Muted reports the fader's current mute state.
func (f *Fader) Muted() bool {
	return f.muted.Load()
}

// GainDB returns the fader's current (possibly mid-ramp) gain in dB.
func (f *Fader) GainDB() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentDB
}

// advance steps the ramp forward by one chunk and returns the gain in dB
// to use for that chunk, accounting for mute.
func (f *Fader) advance() float64 {
	f.mu.Lock()
	if f.remaining > 0 {
		f.currentDB += f.stepDB
		f.remaining--
		if f.remaining == 0 {
			f.currentDB = f.targetDB
		}
	}
	db := f.currentDB
	f.mu.Unlock()
	if f.muted.Load() {
		return math.Inf(-1)
	}
	return db
}

// FaderBank is the Supervisor-owned array of five named faders, shared
// read-only (by pointer) with Volume/Loudness filter instances.
type FaderBank struct {
	faders [faderCount]*Fader
}

// NewFaderBank creates a bank with all five faders at 0dB, unmuted.
func NewFaderBank() *FaderBank {
	fb := &FaderBank{}
	for i := range fb.faders {
		fb.faders[i] = NewFader()
	}
	return fb
}

// Fader returns the named fader.
func (fb *FaderBank) Fader(name FaderName) *Fader {
	return fb.faders[name]
}

// Gain is a static scalar multiplier with optional polarity inversion and
// mute, applied identically across all channels (spec.md §4.1 Gain).
type Gain struct {
	linear  float64
	invert  bool
	mute    bool
}

// NewGain builds a Gain filter.
func NewGain(gainDB float64, invert, mute bool) *Gain {
	return &Gain{linear: dBToLinear(gainDB), invert: invert, mute: mute}
}

func (g *Gain) ProcessChannel(ch int, samples []float64) {
	if g.mute {
		for i := range samples {
			samples[i] = 0
		}
		return
	}
	mul := g.linear
	if g.invert {
		mul = -mul
	}
	for i, x := range samples {
		samples[i] = x * mul
	}
}

// Volume is a Gain filter that tracks a named fader, re-reading its
// (possibly ramping) gain once per chunk rather than per sample — the
// ramp step happens once, in Advance, and ProcessChannel reuses the
// resulting linear multiplier for every channel in that chunk.
type Volume struct {
	fader     *Fader
	linear    float64
	mutedGain bool
}

// NewVolume builds a Volume filter bound to the given fader.
func NewVolume(fader *Fader) *Volume {
	return &Volume{fader: fader}
}

// Advance must be called exactly once per chunk, before ProcessChannel,
// to step the bound fader's ramp and cache this chunk's linear gain.
func (v *Volume) Advance() {
	db := v.fader.advance()
	if math.IsInf(db, -1) {
		v.mutedGain = true
		v.linear = 0
		return
	}
	v.mutedGain = false
	v.linear = dBToLinear(db)
}

func (v *Volume) ProcessChannel(ch int, samples []float64) {
	if v.mutedGain {
		for i := range samples {
			samples[i] = 0
		}
		return
	}
	for i, x := range samples {
		samples[i] = x * v.linear
	}
}

// Loudness layers frequency-dependent compensation on top of a Volume
// filter: as the bound fader's gain drops below reference_level, a low
// shelf (<70Hz) and a high shelf (>3500Hz) boost proportionally, modeling
// equal-loudness contours at lower listening levels (spec.md §4.1
// Loudness). If attenuateMid is set, the shelves are held flat and a
// midband attenuation is applied instead — the literal source behavior
// for this mode (spec.md §9 open question) attenuates the midband by the
// larger of the two configured boosts, not their average.
type Loudness struct {
	fader         *Fader
	sampleRate    float64
	referenceDB   float64
	lowBoostDB    float64
	highBoostDB   float64
	attenuateMid  bool

	volume *Volume
	low    *Biquad
	high   *Biquad
	mid    *Biquad
}

// NewLoudness builds a Loudness filter bound to the given fader.
func NewLoudness(channels int, sampleRate float64, fader *Fader, referenceDB, lowBoostDB, highBoostDB float64, attenuateMid bool) (*Loudness, error) {
	low, err := NewLowshelf(channels, sampleRate, 70, 0, ShelfSlope{Slope: 1})
	if err != nil {
		return nil, err
	}
	high, err := NewHighshelf(channels, sampleRate, 3500, 0, ShelfSlope{Slope: 1})
	if err != nil {
		return nil, err
	}
	var mid *Biquad
	if attenuateMid {
		mid, err = NewPeaking(channels, sampleRate, 1000, 0, 0.7, 0)
		if err != nil {
			return nil, err
		}
	}
	return &Loudness{
		fader:        fader,
		sampleRate:   sampleRate,
		referenceDB:  referenceDB,
		lowBoostDB:   lowBoostDB,
		highBoostDB:  highBoostDB,
		attenuateMid: attenuateMid,
		volume:       NewVolume(fader),
		low:          low,
		high:         high,
		mid:          mid,
	}, nil
}

// boostFraction maps the fader's current gain to a 0..1 boost fraction:
// 0 at reference_level, 1 at reference_level-20dB and below.
func (l *Loudness) boostFraction(gainDB float64) float64 {
	below := l.referenceDB - gainDB
	if below <= 0 {
		return 0
	}
	if below >= 20 {
		return 1
	}
	return below / 20
}

// Advance must be called once per chunk before ProcessChannel: it steps
// the bound fader and recomputes the shelf/mid gains for this chunk's
// boost fraction.
func (l *Loudness) Advance() {
	l.volume.Advance()
	frac := l.boostFraction(l.fader.GainDB())

	if l.attenuateMid {
		l.low.b0, l.low.b1, l.low.b2 = 1, 0, 0
		l.low.a1, l.low.a2 = 0, 0
		l.high.b0, l.high.b1, l.high.b2 = 1, 0, 0
		l.high.a1, l.high.a2 = 0, 0
		attenDB := l.lowBoostDB
		if l.highBoostDB > attenDB {
			attenDB = l.highBoostDB
		}
		l.rebuildMid(-attenDB * frac)
		return
	}
	l.rebuildShelf(l.low, 70, l.lowBoostDB*frac, false)
	l.rebuildShelf(l.high, 3500, l.highBoostDB*frac, true)
}

func (l *Loudness) rebuildShelf(bq *Biquad, freq, gainDB float64, high bool) {
	// Recompute the shelving coefficients in place for the new gain,
	// reusing the existing state registers so the change doesn't click
	// across the chunk boundary.
	var fresh *Biquad
	var err error
	if high {
		fresh, err = NewHighshelf(len(bq.w1), l.sampleRate, freq, gainDB, ShelfSlope{Slope: 1})
	} else {
		fresh, err = NewLowshelf(len(bq.w1), l.sampleRate, freq, gainDB, ShelfSlope{Slope: 1})
	}
	if err != nil {
		return
	}
	bq.b0, bq.b1, bq.b2, bq.a1, bq.a2 = fresh.b0, fresh.b1, fresh.b2, fresh.a1, fresh.a2
}

func (l *Loudness) rebuildMid(gainDB float64) {
	fresh, err := NewPeaking(len(l.mid.w1), l.sampleRate, 1000, gainDB, 0.7, 0)
	if err != nil {
		return
	}
	l.mid.b0, l.mid.b1, l.mid.b2, l.mid.a1, l.mid.a2 = fresh.b0, fresh.b1, fresh.b2, fresh.a1, fresh.a2
}

func (l *Loudness) ProcessChannel(ch int, samples []float64) {
	l.volume.ProcessChannel(ch, samples)
	l.low.ProcessChannel(ch, samples)
	l.high.ProcessChannel(ch, samples)
	if l.attenuateMid && l.mid != nil {
		l.mid.ProcessChannel(ch, samples)
	}
}
