// Package plot renders genome scan score series.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/islandscan/islandscan/pkg/scan"
	"github.com/natefinch/atomic"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	width  = 12 * vg.Inch
	height = 5 * vg.Inch
)

var (
	zeroColor   = color.Black
	heightColor = color.RGBA{G: 128, A: 255}
	peakColor   = color.RGBA{R: 255, A: 255}
)

// New builds the plot of a score series: the scores by start position, a zero
// line, the peak height threshold and one vertical line per peak.
func New(scores scan.Series, windowSize, stringency int, peaks scan.PeakSet) (*gonumplot.Plot, error) {
	if len(scores) == 0 {
		return nil, errors.New("no scores to plot")
	}
	th := scan.NewThresholds(windowSize, stringency)

	p := gonumplot.New()
	p.Title.Text = fmt.Sprintf("Genome scanning, width: %d\n%s", windowSize, th)
	p.X.Label.Text = "Genome starting position"
	p.Y.Label.Text = "CpG island log ratio"
	p.Add(plotter.NewGrid())

	segments, lo, hi := finiteSegments(scores)
	if len(segments) == 0 {
		return nil, errors.New("no finite scores to plot")
	}
	for _, seg := range segments {
		line, err := plotter.NewLine(seg)
		if err != nil {
			return nil, fmt.Errorf("failed to build score line: %w", err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = zeroColor
	zero.Width = vg.Points(2)

	threshold := plotter.NewFunction(func(float64) float64 { return th.Height })
	threshold.Color = heightColor
	threshold.Width = vg.Points(0.8)

	p.Add(zero, threshold)

	lo, hi = min(lo, 0), max(hi, th.Height)
	for _, pk := range peaks {
		v, err := plotter.NewLine(plotter.XYs{{X: float64(pk.Position), Y: lo}, {X: float64(pk.Position), Y: hi}})
		if err != nil {
			return nil, fmt.Errorf("failed to build peak line: %w", err)
		}
		v.Color = peakColor
		v.Width = vg.Points(0.5)
		p.Add(v)
	}
	return p, nil
}

// finiteSegments splits the series into runs of finite scores. Windows scored
// -Inf or NaN by a model with zero transitions leave a gap in the line. lo and
// hi are the extrema of the finite scores.
func finiteSegments(scores scan.Series) (segments []plotter.XYs, lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	var cur plotter.XYs
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			if len(cur) > 0 {
				segments = append(segments, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(i), Y: s})
		lo, hi = math.Min(lo, s), math.Max(hi, s)
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments, lo, hi
}

// Scores writes the plot of a score series to w in the given image format
// (png, svg, pdf, ...).
func Scores(w io.Writer, format string, scores scan.Series, windowSize, stringency int, peaks scan.PeakSet) error {
	p, err := New(scores, windowSize, stringency, peaks)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveScores writes the plot to path atomically. The format is taken from the
// file extension.
func SaveScores(path string, scores scan.Series, windowSize, stringency int, peaks scan.PeakSet) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if format == "" {
		return fmt.Errorf("no image format in %q", path)
	}
	var buf bytes.Buffer
	if err := Scores(&buf, format, scores, windowSize, stringency, peaks); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}
