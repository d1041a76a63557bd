package markov

import (
	"errors"
	"math"
	"testing"
)

func TestScoreConcreteScenario(t *testing.T) {
	m, err := Train([]string{"ACGT", "ACGA"})
	if err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	tbl := m.Table()
	want := 0.25 * 1.0 * tbl[idx('C')][idx('G')] * 0.5

	got, err := m.Score("ACGT")
	if err != nil {
		t.Fatalf("Score() failed: %v", err)
	}
	if math.Abs(float64(got)-want) > 1e-12 {
		t.Errorf("Score(ACGT) = %v, want %v", got, want)
	}
}

func TestScoreMatchesLogScore(t *testing.T) {
	inside, outside := Reference()
	queries := []string{"", "A", "acgt", "CGCGCGGGCGCATTA", "TTTATATAAAGCGCGC"}

	for _, m := range []*Model{inside, outside} {
		for _, q := range queries {
			p, err := m.Score(q)
			if err != nil {
				t.Fatalf("Score(%q) failed: %v", q, err)
			}
			lp, err := m.ScoreLog(q)
			if err != nil {
				t.Fatalf("ScoreLog(%q) failed: %v", q, err)
			}
			if diff := math.Abs(float64(p) - float64(lp.Exp())); diff > 1e-12 {
				t.Errorf("Score(%q) = %v, exp(ScoreLog) = %v", q, p, lp.Exp())
			}
		}
	}
}

func TestScoreEmptyQueryIsPrior(t *testing.T) {
	inside, _ := Reference()
	p, err := inside.Score("")
	if err != nil || p != UniformPrior {
		t.Errorf("Score(\"\") = %v, %v; want %v, nil", p, err, UniformPrior)
	}
}

func TestScoreUndefinedTransitions(t *testing.T) {
	m, err := TrainString("ACGTACGA")
	if err != nil {
		t.Fatalf("TrainString() failed: %v", err)
	}
	partial, err := TrainString("AAAC")
	if err != nil {
		t.Fatalf("TrainString() failed: %v", err)
	}

	testCases := []struct {
		name       string
		model      *Model
		query      string
		wantOffset int
	}{
		{name: "unknown symbol", model: m, query: "ACNGT", wantOffset: 2},
		{name: "unknown first symbol", model: m, query: "NACG", wantOffset: 0},
		{name: "unobserved predecessor", model: partial, query: "ACA", wantOffset: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.model.Score(tc.query)
			var te *TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("Score() error = %v, want *TransitionError", err)
			}
			if te.Offset != tc.wantOffset {
				t.Errorf("Offset = %d, want %d", te.Offset, tc.wantOffset)
			}
			if _, err := tc.model.ScoreLog(tc.query); !errors.Is(err, ErrUndefinedTransition) {
				t.Errorf("ScoreLog() error = %v, want ErrUndefinedTransition", err)
			}
		})
	}
}

func TestScoreZeroTransition(t *testing.T) {
	m, err := TrainString("ACGTACGA")
	if err != nil {
		t.Fatalf("TrainString() failed: %v", err)
	}
	// A is only ever followed by C, so A->G is defined with probability 0.
	p, err := m.Score("AG")
	if err != nil || p != 0 {
		t.Errorf("Score(AG) = %v, %v; want 0, nil", p, err)
	}
	lp, err := m.ScoreLog("AG")
	if err != nil || !math.IsInf(float64(lp), -1) {
		t.Errorf("ScoreLog(AG) = %v, %v; want -Inf, nil", lp, err)
	}
}

func TestLogRatio(t *testing.T) {
	if got := Probability(0.5).LogRatio(0.125); got != 2 {
		t.Errorf("Probability LogRatio = %v, want 2", got)
	}
	if got := LogProbability(-1.234).LogRatio(-5.0); got != 3.77 {
		t.Errorf("LogProbability LogRatio = %v, want 3.77", got)
	}
	p := Probability(0.25)
	if got := p.Log().Exp(); math.Abs(float64(got-p)) > 1e-15 {
		t.Errorf("Log().Exp() = %v, want %v", got, p)
	}
}

func BenchmarkScoreLog(b *testing.B) {
	inside, _ := Reference()
	query := benchmarkGenome(ReferenceAverageLength)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := inside.ScoreLog(query); err != nil {
			b.Fatal(err)
		}
	}
}
