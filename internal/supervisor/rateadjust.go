package supervisor

// RateAdjust implements spec.md §4.5's control loop: every adjust_period
// seconds the Supervisor reads the playback buffer level B, computes
// error e = B - target_level, and updates a ratio
// r <- r * (1 + K * e / chunksize), clamped to [0.9, 1.1]. RateAdjust only
// computes r: the Supervisor reports it through GetRateAdjust and the
// rate-adjust gauge, and nothing in this module forwards it to a capture
// device or resampler.
type RateAdjust struct {
	TargetLevel int
	Chunksize   int
	K           float64

	ratio            float64
	lastBufferLevel int
}

// NewRateAdjust creates a controller with ratio initialized to 1.0 (no
// adjustment) and a small default gain.
func NewRateAdjust(targetLevel, chunksize int) *RateAdjust {
	return &RateAdjust{TargetLevel: targetLevel, Chunksize: chunksize, K: 0.0001, ratio: 1.0}
}

// Update feeds one playback buffer-level sample and returns the updated
// ratio.
func (r *RateAdjust) Update(bufferLevel int) float64 {
	r.lastBufferLevel = bufferLevel
	e := float64(bufferLevel - r.TargetLevel)
	r.ratio *= 1 + r.K*e/float64(r.Chunksize)
	if r.ratio > 1.1 {
		r.ratio = 1.1
	}
	if r.ratio < 0.9 {
		r.ratio = 0.9
	}
	return r.ratio
}

// Ratio returns the current ratio without updating it.
func (r *RateAdjust) Ratio() float64 { return r.ratio }

// BufferLevel returns the most recently observed playback buffer level in
// frames (spec.md §6 GetBufferLevel).
func (r *RateAdjust) BufferLevel() int { return r.lastBufferLevel }

// Reset returns the controller to ratio 1.0, used when the active
// resampler changes kind (e.g. on hot-reload) or rate-adjust is
// re-enabled after being suppressed.
func (r *RateAdjust) Reset() { r.ratio = 1.0 }
