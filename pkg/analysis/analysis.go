// Package analysis derives pulse width statistics from captures, mostly to pick timing
// constants for a new transmitter.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	P10    float64
	Median float64
	P90    float64
}

// Thresholds are classifier boundaries expressed in microseconds.
type Thresholds struct {
	Unit   float64
	Short  uint16
	Medium uint16
	Long   uint16
}

type Bucket struct {
	Lower float64
	Upper float64
	Count float64
}

func sorted(pulses []uint16) []float64 {
	x := make([]float64, len(pulses))
	for i, p := range pulses {
		x[i] = float64(p)
	}
	sort.Float64s(x)
	return x
}

func Summarize(pulses []uint16) (Summary, error) {
	if len(pulses) == 0 {
		return Summary{}, fmt.Errorf("no pulses")
	}
	x := sorted(pulses)

	mean, std := stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		std = 0
	}
	return Summary{
		Count:  len(x),
		Min:    x[0],
		Max:    x[len(x)-1],
		Mean:   mean,
		StdDev: std,
		P10:    stat.Quantile(0.1, stat.Empirical, x, nil),
		Median: stat.Quantile(0.5, stat.Empirical, x, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, x, nil),
	}, nil
}

// SuggestThresholds estimates the one bit width from a capture and places the
// boundaries halfway between run lengths, at 1.5, 2.5 and 3.5 units. Pulses under
// noiseFloor and the final pulse are ignored. The unit is the median of the pulses
// shorter than 1.5x the lowest decile.
func SuggestThresholds(pulses []uint16, noiseFloor uint16) (Thresholds, error) {
	if len(pulses) > 1 {
		pulses = pulses[:len(pulses)-1]
	}

	kept := make([]uint16, 0, len(pulses))
	for _, p := range pulses {
		if p >= noiseFloor {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return Thresholds{}, fmt.Errorf("no pulses above noise floor %d", noiseFloor)
	}

	x := sorted(kept)
	p10 := stat.Quantile(0.1, stat.Empirical, x, nil)

	var short []float64
	for _, v := range x {
		if v < 1.5*p10 {
			short = append(short, v)
		}
	}
	if len(short) == 0 {
		return Thresholds{}, fmt.Errorf("cannot estimate unit width")
	}
	unit := stat.Quantile(0.5, stat.Empirical, short, nil)

	long := math.Round(3.5 * unit)
	if long > math.MaxUint16 {
		return Thresholds{}, fmt.Errorf("unit width %.0f too large", unit)
	}
	return Thresholds{
		Unit:   unit,
		Short:  uint16(math.Round(1.5 * unit)),
		Medium: uint16(math.Round(2.5 * unit)),
		Long:   uint16(long),
	}, nil
}

// Histogram counts pulses into buckets of width binWidth.
func Histogram(pulses []uint16, binWidth float64) ([]Bucket, error) {
	if len(pulses) == 0 {
		return nil, fmt.Errorf("no pulses")
	}
	if binWidth <= 0 {
		return nil, fmt.Errorf("bin width must be positive")
	}
	x := sorted(pulses)

	lo := math.Floor(x[0]/binWidth) * binWidth
	hi := (math.Floor(x[len(x)-1]/binWidth) + 1) * binWidth
	dividers := make([]float64, int((hi-lo)/binWidth)+1)
	floats.Span(dividers, lo, hi)

	counts := stat.Histogram(nil, dividers, x, nil)

	ret := make([]Bucket, 0, len(counts))
	for i, c := range counts {
		if c == 0 {
			continue
		}
		ret = append(ret, Bucket{Lower: dividers[i], Upper: dividers[i+1], Count: c})
	}
	return ret, nil
}
