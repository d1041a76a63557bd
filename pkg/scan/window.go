package scan

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/islandscan/islandscan/pkg/markov"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats/scalar"
)

var (
	// ErrWindowTooLarge is returned when the window is longer than the sequence.
	ErrWindowTooLarge = errors.New("window size exceeds sequence length")
	// ErrInvalidWindow is returned for a window size below one.
	ErrInvalidWindow = errors.New("window size must be at least 1")
)

// Series holds one score per window start offset, in offset order.
type Series []float64

// minChunk is the smallest number of windows handed to a single worker.
const minChunk = 256

type options struct {
	window   int
	verbose  bool
	workers  int
	logger   *slog.Logger
	progress func(done int)
}

// Option configures a scan.
type Option func(*options)

// WithWindow sets the window size. By default the inside model's average
// training length is used.
func WithWindow(w int) Option {
	return func(o *options) { o.window = w }
}

// WithVerbose reports every window with a positive score through the logger.
// Reporting never changes the returned series.
func WithVerbose(verbose bool) Option {
	return func(o *options) { o.verbose = verbose }
}

// WithLogger sets the logger used for verbose reporting. By default logs are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkers scores contiguous ranges of offsets concurrently. Values below
// two scan sequentially.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithProgress registers a callback receiving the number of windows scored
// since the previous call. With several workers it is called concurrently.
func WithProgress(fn func(done int)) Option {
	return func(o *options) { o.progress = fn }
}

// Scan scores every window of seq, returning the series and the window size
// used. Each score is the log ratio of the inside and outside log scores,
// rounded to one decimal. The first window that cannot be scored aborts the
// scan.
func Scan(seq string, inside, outside *markov.Model, opts ...Option) (Series, int, error) {
	o := &options{
		window: inside.AverageLength(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	w := o.window
	if w < 1 {
		return nil, w, fmt.Errorf("%w: got %d", ErrInvalidWindow, w)
	}
	if w > len(seq) {
		return nil, w, fmt.Errorf("%w: window %d, sequence %d", ErrWindowTooLarge, w, len(seq))
	}

	scores := make(Series, len(seq)-w+1)
	if o.workers < 2 || len(scores) < 2*minChunk {
		if err := scoreRange(seq, w, inside, outside, scores, 0, o); err != nil {
			return nil, w, err
		}
	} else if err := scoreParallel(seq, w, inside, outside, scores, o); err != nil {
		return nil, w, err
	}
	return scores, w, nil
}

// windowScore is the rounded log ratio of one window.
func windowScore(window string, inside, outside *markov.Model) (float64, error) {
	in, err := inside.ScoreLog(window)
	if err != nil {
		return 0, fmt.Errorf("inside model: %w", err)
	}
	out, err := outside.ScoreLog(window)
	if err != nil {
		return 0, fmt.Errorf("outside model: %w", err)
	}
	return scalar.RoundEven(in.LogRatio(out), 1), nil
}

// scoreRange fills dst with the scores of the windows starting at
// first, first+1, ... first+len(dst)-1. In verbose mode every positive window
// is logged as soon as it is scored.
func scoreRange(seq string, w int, inside, outside *markov.Model, dst Series, first int, o *options) error {
	const reportEvery = 1024
	pending := 0
	for i := range dst {
		s := first + i
		score, err := windowScore(seq[s:s+w], inside, outside)
		if err != nil {
			return fmt.Errorf("window at %d: %w", s, err)
		}
		dst[i] = score
		if o.verbose && score > 0 {
			o.logger.Info("Positive window",
				slog.Int("start", s),
				slog.Int("end", s+w),
				slog.Float64("score", score),
			)
		}
		if o.progress != nil {
			if pending++; pending == reportEvery {
				o.progress(pending)
				pending = 0
			}
		}
	}
	if o.progress != nil && pending > 0 {
		o.progress(pending)
	}
	return nil
}

// scoreParallel splits the offsets into contiguous chunks, at most one running
// per worker. Every chunk writes only its own part of scores, so the order is
// unchanged. The error of the lowest failing chunk is returned.
func scoreParallel(seq string, w int, inside, outside *markov.Model, scores Series, o *options) error {
	chunk := max((len(scores)+o.workers-1)/o.workers, minChunk)
	errs := make([]error, (len(scores)+chunk-1)/chunk)

	var g errgroup.Group
	g.SetLimit(o.workers)
	for k := range errs {
		first := k * chunk
		end := min(first+chunk, len(scores))
		g.Go(func() error {
			errs[k] = scoreRange(seq, w, inside, outside, scores[first:end], first, o)
			return errs[k]
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
