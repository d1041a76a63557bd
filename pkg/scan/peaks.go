package scan

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats/scalar"
)

// Thresholds are the peak calling limits derived from the window size and
// stringency. Both the caller and every diagnostic display use this type so
// the values cannot drift apart.
type Thresholds struct {
	Sharpness float64 // minimum rise or drop between extrema, ln(window) * stringency
	Height    float64 // minimum peak score, log2(window)
}

// NewThresholds computes the thresholds for a window size and stringency.
func NewThresholds(windowSize, stringency int) Thresholds {
	w := float64(windowSize)
	return Thresholds{
		Sharpness: math.Log(w) * float64(stringency),
		Height:    math.Log2(w),
	}
}

// String renders the thresholds for display: sharpness rounded to an integer,
// height to one decimal.
func (t Thresholds) String() string {
	return fmt.Sprintf("peak sharpness: %.0f, peak calling threshold: %.1f",
		math.RoundToEven(t.Sharpness), scalar.RoundEven(t.Height, 1))
}

// Peak is a candidate start site and its score.
type Peak struct {
	Position int
	Score    float64
}

// PeakSet is an ordered list of peaks with strictly increasing positions.
type PeakSet []Peak

// Positions returns the peak positions in order.
func (ps PeakSet) Positions() []int {
	positions := make([]int, len(ps))
	for i, p := range ps {
		positions[i] = p.Position
	}
	return positions
}

// CallPeaks walks the series once from left to right, tracking the running
// maximum and minimum. A maximum is committed as a peak when the series has
// since dropped by at least the sharpness threshold and the maximum itself
// reaches the height threshold; the running maximum then restarts at the
// current index. Scores are reported rounded to one decimal.
//
// A trailing maximum that is never followed by a sufficient drop is not
// reported.
func CallPeaks(scores Series, windowSize, stringency int) PeakSet {
	th := NewThresholds(windowSize, stringency)
	return callPeaks(scores, th)
}

// extrema is the state of the peak walk. Only committed maxima are reported.
type extrema struct {
	lastMax      int
	lastMin      int
	potentialMax int
	potentialMin int
}

func callPeaks(scores Series, th Thresholds) PeakSet {
	var e extrema
	var positions []int
	for i := range scores {
		if scores[i] > scores[e.potentialMax] {
			e.potentialMax = i
			if scores[i]-scores[e.potentialMin] >= th.Sharpness {
				e.lastMin, e.potentialMin = e.potentialMin, i
			}
		}
		if scores[i] < scores[e.potentialMin] {
			e.potentialMin = i
			if scores[i]-scores[e.potentialMax] <= -th.Sharpness && scores[e.potentialMax] >= th.Height {
				e.lastMax, e.potentialMax = e.potentialMax, i
				if !slices.Contains(positions, e.lastMax) {
					positions = append(positions, e.lastMax)
				}
			}
		}
	}

	peaks := make(PeakSet, len(positions))
	for i, pos := range positions {
		peaks[i] = Peak{Position: pos, Score: scalar.RoundEven(scores[pos], 1)}
	}
	return peaks
}
