package markov

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// noRounding marks a table that keeps full floating point precision.
const noRounding = -1

// maxRecordLength bounds a single training record, so a file without newlines
// cannot grow the scanner buffer without limit.
const maxRecordLength = 1 << 28

type trainOptions struct {
	precision int
}

// TrainOption configures training.
type TrainOption func(*trainOptions)

// WithPrecision rounds every table cell to the given number of decimals,
// half to even. Rounded rows are no longer guaranteed to sum to exactly 1.
// A negative value disables rounding, which is the default.
func WithPrecision(places int) TrainOption {
	return func(o *trainOptions) {
		if places < 0 {
			places = noRounding
		}
		o.precision = places
	}
}

func newTrainOptions(opts []TrainOption) *trainOptions {
	options := &trainOptions{precision: noRounding}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Train builds a model from training records. The records are treated as one
// concatenated sequence, so the last symbol of a record and the first symbol
// of the next one form a transition. Pairs with a symbol outside the alphabet
// are skipped.
func Train(records []string, opts ...TrainOption) (*Model, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no training records", ErrInvalidInput)
	}
	options := newTrainOptions(opts)

	var counts Counts
	totalLength := 0
	prev := -1
	for _, record := range records {
		totalLength += len(record)
		for i := 0; i < len(record); i++ {
			cur, ok := Index(record[i])
			if !ok {
				prev = -1
				continue
			}
			if prev >= 0 {
				counts[prev][cur]++
			}
			prev = cur
		}
	}
	return fromCounts(counts, totalLength, len(records), options.precision), nil
}

// TrainString builds a model from a single raw sequence. The average length is
// the length of the sequence.
func TrainString(sequence string, opts ...TrainOption) (*Model, error) {
	return Train([]string{sequence}, opts...)
}

// TrainReader builds a model from newline-delimited records read from r.
func TrainReader(r io.Reader, opts ...TrainOption) (*Model, error) {
	records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}
	return Train(records, opts...)
}

// TrainFile builds a model from a file of newline-delimited records.
func TrainFile(path string, opts ...TrainOption) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open training file: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return TrainReader(f, opts...)
}

// ReadRecords reads newline-delimited records, stripping line endings and
// upper-casing each record. Empty lines are kept as empty records.
func ReadRecords(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLength)
	var records []string
	for scanner.Scan() {
		records = append(records, strings.ToUpper(strings.TrimRight(scanner.Text(), "\r")))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read records: %w", err)
	}
	return records, nil
}
