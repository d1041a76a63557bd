package markov

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Table holds transition probabilities, indexed as Table[prev][next] in
// Alphabet order.
type Table [Size][Size]float64

// Counts holds raw transition frequencies in the same layout as Table.
type Counts [Size][Size]int

// RowSum returns the total probability mass leaving symbol index p.
func (t *Table) RowSum(p int) float64 {
	return floats.Sum(t[p][:])
}

// RowTotal returns the number of transitions observed leaving symbol index p.
func (c *Counts) RowTotal(p int) int {
	var n int
	for _, v := range c[p] {
		n += v
	}
	return n
}

// Source selects how a Model is constructed. It is implemented by Trained and
// Precomputed only.
type Source interface {
	source()
}

// Trained builds a model from training data. Exactly one of Sequence and Path
// must be set: Sequence is a single raw sequence, Path names a file of
// newline-delimited records.
type Trained struct {
	Sequence string
	Path     string
}

// Precomputed wraps an existing transition table without training.
type Precomputed struct {
	Table         Table
	AverageLength int
}

func (Trained) source()     {}
func (Precomputed) source() {}

// Model is an immutable first-order Markov chain over Alphabet. It is safe for
// concurrent use once constructed.
type Model struct {
	table         Table
	counts        Counts
	observed      [Size]bool
	averageLength int
	totalLength   int
	records       int
	precision     int
	precomputed   bool
}

// New builds a Model from the given source. Training options are ignored for
// precomputed sources.
func New(src Source, opts ...TrainOption) (*Model, error) {
	switch s := src.(type) {
	case Trained:
		switch {
		case s.Sequence == "" && s.Path == "":
			return nil, fmt.Errorf("%w: no input sequence or file path provided", ErrInvalidInput)
		case s.Sequence != "" && s.Path != "":
			return nil, fmt.Errorf("%w: both input sequence and file path provided, only one is allowed", ErrInvalidInput)
		case s.Path != "":
			return TrainFile(s.Path, opts...)
		default:
			return TrainString(s.Sequence, opts...)
		}
	case Precomputed:
		return FromPrecomputed(s.Table, s.AverageLength)
	default:
		return nil, fmt.Errorf("%w: unsupported model source %T", ErrInvalidInput, src)
	}
}

// FromPrecomputed wraps a supplied transition table. Every cell must be a
// finite value in [0, 1] and averageLength must be positive. Rows with a
// positive sum are treated as observed; the table is not renormalized.
func FromPrecomputed(table Table, averageLength int) (*Model, error) {
	if averageLength < 1 {
		return nil, fmt.Errorf("%w: average length must be positive, got %d", ErrInvalidInput, averageLength)
	}
	m := &Model{
		table:         table,
		averageLength: averageLength,
		precision:     noRounding,
		precomputed:   true,
	}
	for p := range table {
		for c, v := range table[p] {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return nil, fmt.Errorf("%w: probability %c->%c is %v, want a value in [0,1]", ErrInvalidInput, Symbol(p), Symbol(c), v)
			}
		}
		m.observed[p] = table.RowSum(p) > 0
	}
	return m, nil
}

// fromCounts derives the probability table by normalizing each row by the
// number of transitions observed leaving that symbol.
func fromCounts(counts Counts, totalLength, records, precision int) *Model {
	m := &Model{
		counts:        counts,
		averageLength: averageLength(totalLength, records),
		totalLength:   totalLength,
		records:       records,
		precision:     precision,
	}
	for p := range counts {
		n := counts.RowTotal(p)
		if n == 0 {
			continue
		}
		m.observed[p] = true
		for c := range counts[p] {
			v := float64(counts[p][c]) / float64(n)
			if precision != noRounding {
				v = scalar.RoundEven(v, precision)
			}
			m.table[p][c] = v
		}
	}
	return m
}

func averageLength(totalLength, records int) int {
	if records == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(totalLength) / float64(records)))
}

// Table returns a copy of the transition probabilities.
func (m *Model) Table() Table { return m.table }

// Counts returns a copy of the raw transition frequencies. It is all zeros for
// precomputed models.
func (m *Model) Counts() Counts { return m.counts }

// AverageLength is the rounded mean training record length, used as the
// default scan window.
func (m *Model) AverageLength() int { return m.averageLength }

// TotalLength is the number of symbols seen in training, including symbols
// outside the alphabet.
func (m *Model) TotalLength() int { return m.totalLength }

// Records is the number of training records.
func (m *Model) Records() int { return m.records }

// Precision is the number of decimals the table was rounded to, or -1.
func (m *Model) Precision() int { return m.precision }

// Precomputed reports whether the model wraps a supplied table.
func (m *Model) Precomputed() bool { return m.precomputed }

// Observed reports whether any transition leaving symbol index p is defined.
func (m *Model) Observed(p int) bool { return m.observed[p] }

// Report renders the table with two decimals, one row per predecessor.
// Unobserved rows are shown as dashes.
func (m *Model) Report() string {
	var sb strings.Builder
	sb.WriteString(" ")
	for c := 0; c < Size; c++ {
		fmt.Fprintf(&sb, "     %c", Symbol(c))
	}
	sb.WriteByte('\n')
	for p := 0; p < Size; p++ {
		sb.WriteByte(Symbol(p))
		for c := 0; c < Size; c++ {
			if !m.observed[p] {
				sb.WriteString("     -")
				continue
			}
			fmt.Fprintf(&sb, "  %.2f", m.table[p][c])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
