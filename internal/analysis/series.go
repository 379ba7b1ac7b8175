package analysis

import "math"

type Stats struct {
	Mean, Std, Min, Max float64
	N                   int
}

func Describe(data []float64) Stats {
	if len(data) == 0 {
		return Stats{}
	}

	s := Stats{Min: math.Inf(1), Max: math.Inf(-1), N: len(data)}
	var sum float64
	for _, v := range data {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(data))

	var ss float64
	for _, v := range data {
		d := v - s.Mean
		ss += d * d
	}
	s.Std = math.Sqrt(ss / float64(len(data)))
	return s
}

// SettlingFrame returns the first index after which every value stays
// within tol of the final value, or -1 for an empty series.
func SettlingFrame(data []float64, tol float64) int {
	if len(data) == 0 {
		return -1
	}
	final := data[len(data)-1]
	settled := len(data) - 1
	for i := len(data) - 1; i >= 0; i-- {
		if math.Abs(data[i]-final) > tol {
			break
		}
		settled = i
	}
	return settled
}
