package markov

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Probability is a score in the linear domain.
type Probability float64

// LogProbability is a score in the natural log domain.
type LogProbability float64

// Log converts a probability to the log domain.
func (p Probability) Log() LogProbability {
	return LogProbability(math.Log(float64(p)))
}

// Exp converts a log score back to a probability.
func (p LogProbability) Exp() Probability {
	return Probability(math.Exp(float64(p)))
}

// LogRatio returns log2(p) - log2(q).
func (p Probability) LogRatio(q Probability) float64 {
	return math.Log2(float64(p)) - math.Log2(float64(q))
}

// LogRatio returns the difference of two log scores, rounded to two decimals.
// The operands are already logarithms, so no further logarithm is taken.
func (p LogProbability) LogRatio(q LogProbability) float64 {
	return scalar.RoundEven(float64(p-q), 2)
}

// Score returns the probability of q under the model: the uniform prior for
// the first symbol times the transition probability of every adjacent pair.
// Lower case symbols are accepted. A symbol outside the alphabet, or a
// predecessor with no observed transitions, fails with a *TransitionError.
func (m *Model) Score(q string) (Probability, error) {
	score := Probability(UniformPrior)
	err := m.walk(q, func(p float64) {
		score *= Probability(p)
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// ScoreLog is Score computed as a sum of natural logarithms. A zero
// transition probability yields negative infinity.
func (m *Model) ScoreLog(q string) (LogProbability, error) {
	score := LogProbability(math.Log(UniformPrior))
	err := m.walk(q, func(p float64) {
		score += LogProbability(math.Log(p))
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// walk visits the transition probability of every adjacent pair of q in order.
func (m *Model) walk(q string, visit func(p float64)) error {
	if len(q) == 0 {
		return nil
	}
	prev, ok := Index(q[0])
	if !ok {
		return &TransitionError{Offset: 0, Next: q[0]}
	}
	for i := 1; i < len(q); i++ {
		cur, ok := Index(q[i])
		if !ok {
			return &TransitionError{Offset: i, Prev: Symbol(prev), Next: q[i]}
		}
		if !m.observed[prev] {
			return &TransitionError{Offset: i, Prev: Symbol(prev), Next: Symbol(cur)}
		}
		visit(m.table[prev][cur])
		prev = cur
	}
	return nil
}
