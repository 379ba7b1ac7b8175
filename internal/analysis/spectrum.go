package analysis

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrShortSeries = errors.New("analysis: series too short")

// PowerSpectrum returns the amplitude of the first n/2 frequency bins of
// the mean-removed series. Bin k corresponds to k/(n*interval) Hz.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}

	spec := fft.FFTReal(Detrend(data))
	ps := make([]float64, len(spec)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// DominantFrequency returns the frequency of the strongest non-DC bin of
// a series sampled every interval seconds.
func DominantFrequency(data []float64, interval float64) (float64, error) {
	if len(data) < 4 {
		return 0, ErrShortSeries
	}
	if interval <= 0 {
		return 0, errors.New("analysis: sample interval must be positive")
	}

	ps := PowerSpectrum(data)
	best := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[best] {
			best = k
		}
	}
	return float64(best) / (float64(len(data)) * interval), nil
}

// Detrend returns a copy of data with its mean removed.
func Detrend(data []float64) []float64 {
	mean := Describe(data).Mean
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v - mean
	}
	return out
}
