package dsp

import "math"

// complex64Pair mirrors math/cmplx's complex128 but this package only
// needs radix-2 FFT/IFFT over power-of-two lengths for FIR convolution, so
// a small self-contained implementation is used rather than pulling in a
// general-purpose numerics dependency — no example repo in the corpus
// carries an FFT library, and this is the one piece of the DSP primitives
// set with no grounded third-party alternative (see DESIGN.md).

type complexVec struct {
	re, im []float64
}

func newComplexVec(n int) complexVec {
	return complexVec{re: make([]float64, n), im: make([]float64, n)}
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft performs an in-place iterative radix-2 Cooley-Tukey transform.
// inverse selects forward (false) or inverse (true, with 1/N scaling).
func fft(v complexVec, inverse bool) {
	n := len(v.re)
	if n <= 1 {
		return
	}
	// bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			v.re[i], v.re[j] = v.re[j], v.re[i]
			v.im[i], v.im[j] = v.im[j], v.im[i]
		}
	}

	sign := -1.0
	if inverse {
		sign = 1.0
	}
	for length := 2; length <= n; length <<= 1 {
		ang := sign * 2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for i := 0; i < n; i += length {
			curRe, curIm := 1.0, 0.0
			half := length / 2
			for j := 0; j < half; j++ {
				uRe, uIm := v.re[i+j], v.im[i+j]
				vRe := v.re[i+j+half]*curRe - v.im[i+j+half]*curIm
				vIm := v.re[i+j+half]*curIm + v.im[i+j+half]*curRe
				v.re[i+j] = uRe + vRe
				v.im[i+j] = uIm + vIm
				v.re[i+j+half] = uRe - vRe
				v.im[i+j+half] = uIm - vIm
				nextRe := curRe*wRe - curIm*wIm
				nextIm := curRe*wIm + curIm*wRe
				curRe, curIm = nextRe, nextIm
			}
		}
	}
	if inverse {
		for i := range v.re {
			v.re[i] /= float64(n)
			v.im[i] /= float64(n)
		}
	}
}
