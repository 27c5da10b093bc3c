package dsp

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// FIRSource describes where a filter's coefficients came from, for
// diagnostics and reload-compatibility checks.
type FIRSource int

const (
	FIRSourceLiteral FIRSource = iota
	FIRSourceRawFile
	FIRSourceWAVFile
)

// LoadCoefficientsWAV reads one channel of a WAV file's samples as FIR
// coefficients, normalizing 16/24/32-bit PCM to [-1, 1] float64 (spec.md
// §4.1 FIR "coefficients loaded from a WAV file").
func LoadCoefficientsWAV(data []byte, channel int) ([]float64, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, dsperrors.New(fmt.Errorf("fir: decode wav: %w", err)).
			Category(dsperrors.CategoryConfig).Build()
	}
	if !dec.IsValidFile() {
		return nil, dsperrors.Newf("fir: invalid wav file").
			Category(dsperrors.CategoryConfig).Build()
	}
	channels := buf.Format.NumChannels
	if channel < 0 || channel >= channels {
		return nil, dsperrors.Newf("fir: wav file has %d channels, requested channel %d", channels, channel).
			Category(dsperrors.CategoryConfig).Build()
	}
	maxVal := float64(int(1) << (buf.SourceBitDepth - 1))
	n := len(buf.Data) / channels
	coeffs := make([]float64, n)
	for i := 0; i < n; i++ {
		coeffs[i] = float64(buf.Data[i*channels+channel]) / maxVal
	}
	return coeffs, nil
}

// LoadCoefficientsText parses one coefficient per line as plain
// floating-point text (spec.md §4.1 FIR "raw samples"), skipping blank
// lines.
func LoadCoefficientsText(data []byte) ([]float64, error) {
	var coeffs []float64
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, dsperrors.New(fmt.Errorf("fir: parse coefficient %q: %w", line, err)).
				Category(dsperrors.CategoryConfig).Build()
		}
		coeffs = append(coeffs, v)
	}
	return coeffs, nil
}

// NewDummyImpulse returns a single-tap unity impulse response — the
// identity FIR used as a placeholder or explicit passthrough (spec.md
// §4.1 FIR "Dummy").
func NewDummyImpulse() []float64 {
	return []float64{1.0}
}

// FIR convolves a channel's samples against a fixed impulse response. For
// short impulse responses (taps <= chunksize) it runs direct block
// convolution via one FFT pair sized to the chunk plus overlap
// (overlap-save); for long impulse responses (taps > chunksize) it splits
// the impulse response into chunksize-sized segments and sums each
// segment's delayed contribution (segmented overlap-add), bounding the
// FFT size and avoiding an FFT that grows with filter length (spec.md
// §4.1 FIR).
type FIR struct {
	taps      []float64
	chunkSize int
	segmented bool

	// shared frequency-domain state, one entry per channel.
	channels []*firChannelState
}

type firChannelState struct {
	// overlap-save: tail of the previous block's input.
	saveTail []float64

	// overlap-add: per-segment frequency-domain impulse responses and the
	// rolling output-overlap buffer.
	segFFTLen  int
	segFreqs   []complexVec
	inputHist  []complexVec // ring of past input blocks' spectra, one per segment
	histHead   int
	overlapBuf []float64
}

// NewFIR builds an FIR filter for the given taps, chunk size, and channel
// count, choosing overlap-save or segmented overlap-add automatically.
func NewFIR(taps []float64, channels, chunkSize int) (*FIR, error) {
	if len(taps) == 0 {
		return nil, dsperrors.Newf("fir: impulse response has zero taps").
			Category(dsperrors.CategoryConfig).Build()
	}
	f := &FIR{taps: taps, chunkSize: chunkSize}
	f.segmented = len(taps) > chunkSize
	f.channels = make([]*firChannelState, channels)
	for ch := range f.channels {
		if f.segmented {
			f.channels[ch] = f.newSegmentedState()
		} else {
			f.channels[ch] = &firChannelState{saveTail: make([]float64, len(taps)-1)}
		}
	}
	return f, nil
}

func (f *FIR) newSegmentedState() *firChannelState {
	segLen := f.chunkSize
	nSegs := (len(f.taps) + segLen - 1) / segLen
	fftLen := nextPow2(2 * segLen)

	segFreqs := make([]complexVec, nSegs)
	for s := 0; s < nSegs; s++ {
		v := newComplexVec(fftLen)
		start := s * segLen
		end := start + segLen
		if end > len(f.taps) {
			end = len(f.taps)
		}
		copy(v.re[:end-start], f.taps[start:end])
		fft(v, false)
		segFreqs[s] = v
	}
	inputHist := make([]complexVec, nSegs)
	for i := range inputHist {
		inputHist[i] = newComplexVec(fftLen)
	}
	return &firChannelState{
		segFFTLen:  fftLen,
		segFreqs:   segFreqs,
		inputHist:  inputHist,
		overlapBuf: make([]float64, fftLen),
	}
}

// ProcessChannel filters one channel's samples in place.
func (f *FIR) ProcessChannel(ch int, samples []float64) {
	st := f.channels[ch]
	if !f.segmented {
		f.processOverlapSave(st, samples)
		return
	}
	f.processOverlapAdd(st, samples)
}

// processOverlapSave runs a single FFT-domain block convolution per call:
// the input block is [tail(taps-1 samples) || current block], transformed,
// multiplied by the impulse response's spectrum, inverse-transformed, and
// the first (taps-1) output samples (the aliased region) discarded.
func (f *FIR) processOverlapSave(st *firChannelState, samples []float64) {
	taps := len(f.taps)
	blockLen := len(samples)
	fftLen := nextPow2(blockLen + taps - 1)

	in := newComplexVec(fftLen)
	copy(in.re[:taps-1], st.saveTail)
	copy(in.re[taps-1:taps-1+blockLen], samples)

	h := newComplexVec(fftLen)
	copy(h.re[:taps], f.taps)

	// Capture next call's history prefix — the last (taps-1) samples of
	// the logical tail++samples *input* sequence — before the FFT
	// round-trip below overwrites `in` with the filtered output.
	// tail++samples spans in.re[0:taps-1+blockLen]; its last taps-1
	// entries start at index blockLen regardless of how blockLen
	// compares to taps-1.
	newTail := make([]float64, taps-1)
	copy(newTail, in.re[blockLen:blockLen+taps-1])

	fft(in, false)
	fft(h, false)
	for i := range in.re {
		re := in.re[i]*h.re[i] - in.im[i]*h.im[i]
		im := in.re[i]*h.im[i] + in.im[i]*h.re[i]
		in.re[i], in.im[i] = re, im
	}
	fft(in, true)

	copy(samples, in.re[taps-1:taps-1+blockLen])
	copy(st.saveTail, newTail)
}

// processOverlapAdd implements segmented overlap-add (a.k.a. partitioned
// convolution): the current block is transformed once and convolved
// against every impulse-response segment's precomputed spectrum, each
// contribution delayed by its segment index and accumulated into the
// running output-overlap buffer.
func (f *FIR) processOverlapAdd(st *firChannelState, samples []float64) {
	fftLen := st.segFFTLen
	blockLen := len(samples)

	cur := newComplexVec(fftLen)
	copy(cur.re[:blockLen], samples)
	fft(cur, false)

	st.histHead = (st.histHead - 1 + len(st.inputHist)) % len(st.inputHist)
	st.inputHist[st.histHead] = cur

	acc := newComplexVec(fftLen)
	for s, h := range st.segFreqs {
		histIdx := (st.histHead + s) % len(st.inputHist)
		in := st.inputHist[histIdx]
		for i := range acc.re {
			acc.re[i] += in.re[i]*h.re[i] - in.im[i]*h.im[i]
			acc.im[i] += in.re[i]*h.im[i] + in.im[i]*h.re[i]
		}
	}
	fft(acc, true)

	for i := 0; i < blockLen; i++ {
		samples[i] = acc.re[i] + st.overlapBuf[i]
	}
	// shift overlap buffer: carry the tail beyond this block forward.
	newOverlap := make([]float64, fftLen)
	copy(newOverlap, acc.re[blockLen:])
	st.overlapBuf = newOverlap
}

// Reset clears all per-channel convolution history.
func (f *FIR) Reset() {
	for ch := range f.channels {
		if f.segmented {
			f.channels[ch] = f.newSegmentedState()
		} else {
			f.channels[ch].saveTail = make([]float64, len(f.taps)-1)
		}
	}
}
