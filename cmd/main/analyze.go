package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/islandscan/islandscan/pkg/genome"
	"github.com/islandscan/islandscan/pkg/markov"
	"github.com/islandscan/islandscan/pkg/plot"
	"github.com/islandscan/islandscan/pkg/scan"
	"github.com/islandscan/islandscan/pkg/scanfile"
)

var errNoInput = errors.New("no input sequence")

// query picks the sequence to score: a random record of --file, then --query,
// then a random sequence.
func (c *cli) query() (string, error) {
	o := c.opts
	switch {
	case o.file != "":
		return genome.RandomRecordFile(o.file, c.rng)
	case o.query != "":
		return strings.ToUpper(o.query), nil
	case o.random:
		return genome.Random(c.rng, o.length), nil
	}
	return "", fmt.Errorf("%w: provide --query, --file or --random", errNoInput)
}

func (c *cli) score(ctx context.Context) error {
	q, err := c.query()
	if err != nil {
		return err
	}
	inside, outside, err := c.models(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("Evaluating query", "length", len(q), "log", c.opts.logScore)
	c.logger.Debug("Query sequence", "sequence", q)

	var in, out, ratio float64
	if c.opts.logScore {
		li, err := inside.ScoreLog(q)
		if err != nil {
			return fmt.Errorf("inside model: %w", err)
		}
		lo, err := outside.ScoreLog(q)
		if err != nil {
			return fmt.Errorf("outside model: %w", err)
		}
		in, out, ratio = float64(li), float64(lo), li.LogRatio(lo)
	} else {
		pi, err := inside.Score(q)
		if err != nil {
			return fmt.Errorf("inside model: %w", err)
		}
		po, err := outside.Score(q)
		if err != nil {
			return fmt.Errorf("outside model: %w", err)
		}
		in, out, ratio = float64(pi), float64(po), pi.LogRatio(po)
	}

	fmt.Fprintf(c.out, "Inside score: %v\n", in)
	fmt.Fprintf(c.out, "Outside score: %v\n", out)
	fmt.Fprintf(c.out, "Final log ratio evaluation: %v\n", ratio)
	return nil
}

// genomeInput picks the genome to scan: a random excerpt of --file, the whole
// --file, a sample of the inside model or a random genome.
func (c *cli) genomeInput(inside *markov.Model) (string, error) {
	o := c.opts
	switch {
	case o.file != "" && o.random:
		return genome.RandomExcerptFile(o.file, o.length, c.rng)
	case o.file != "":
		return genome.ReadFile(o.file)
	case o.synthetic:
		return inside.Generate(o.length, markov.WithRand(c.rng))
	case o.random:
		return genome.Random(c.rng, o.length), nil
	}
	return "", fmt.Errorf("%w: scan needs --file, --random or --synthetic", errNoInput)
}

func (c *cli) scan(ctx context.Context) error {
	o := c.opts
	inside, outside, err := c.models(ctx)
	if err != nil {
		return err
	}
	seq, err := c.genomeInput(inside)
	if err != nil {
		return err
	}

	window := o.window
	if window == 0 {
		window = inside.AverageLength()
	}
	th := scan.NewThresholds(window, o.stringency)
	c.logger.Info("Scanning genome",
		slog.Int("length", len(seq)),
		slog.Int("window_size", window),
		slog.Int("stringency", o.stringency),
		slog.Int("workers", o.workers),
		slog.String("thresholds", th.String()),
	)

	opts := []scan.Option{
		scan.WithWindow(window),
		scan.WithWorkers(o.workers),
		scan.WithVerbose(o.verbose),
		scan.WithLogger(c.logger),
	}
	var bar *pb.ProgressBar
	if o.progress && window <= len(seq) {
		bar = pb.Full.New(len(seq) - window + 1)
		bar.SetWriter(c.errOut)
		bar.Start()
		opts = append(opts, scan.WithProgress(func(n int) { bar.Add(n) }))
	}
	scores, window, err := scan.Scan(seq, inside, outside, opts...)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	peaks := scan.CallPeaks(scores, window, o.stringency)
	printPeaks(c.out, peaks)

	if o.savePath != "" {
		if err = scanfile.Save(o.savePath, scanfile.NewRecord(scores, window, o.stringency, peaks)); err != nil {
			return err
		}
		c.logger.Info("Scan saved", "path", o.savePath)
	}
	if o.plotPath != "" {
		var drawn scan.PeakSet
		if o.peaks {
			drawn = peaks
		}
		if err = plot.SaveScores(o.plotPath, scores, window, o.stringency, drawn); err != nil {
			return err
		}
		c.logger.Info("Plot written", "path", o.plotPath)
	}
	return nil
}

func (c *cli) show() error {
	rec, err := scanfile.Load(c.opts.input)
	if err != nil {
		return err
	}
	th := scan.NewThresholds(rec.WindowSize, rec.Stringency)
	fmt.Fprintf(c.out, "Genome length: %d, window size: %d, stringency: %d\n", rec.Length, rec.WindowSize, rec.Stringency)
	fmt.Fprintln(c.out, th)
	printPeaks(c.out, rec.Peaks)

	if c.opts.plotPath != "" {
		if err = plot.SaveScores(c.opts.plotPath, rec.Scores, rec.WindowSize, rec.Stringency, rec.Peaks); err != nil {
			return err
		}
		c.logger.Info("Plot written", "path", c.opts.plotPath)
	}
	return nil
}

// printPeaks writes the called start sites as [[position, score], ...].
func printPeaks(w io.Writer, peaks scan.PeakSet) {
	var sb strings.Builder
	sb.WriteString("Potential start sites identified [position, score]: [")
	for i, p := range peaks {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "[%d, %v]", p.Position, p.Score)
	}
	sb.WriteString("]\n")
	io.WriteString(w, sb.String())
}
