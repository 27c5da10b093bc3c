// Package resample implements the synchronous fixed-ratio and asynchronous
// dynamic-ratio resamplers that couple a capture device's clock domain to a
// playback device's clock domain (spec.md §4.3).
package resample

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ratio reduces fOut/fIn to its lowest terms p/q, used by the synchronous
// resampler: p output frames are produced per q input frames.
func ratio(fIn, fOut int) (p, q int) {
	g := gcd(fIn, fOut)
	if g == 0 {
		return fOut, fIn
	}
	return fOut / g, fIn / g
}
