package markov

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// choice is a candidate next symbol and its sampling weight.
type choice struct {
	symbol int
	weight float64
}

// generateOptions is used by Generate to configure default options.
type generateOptions struct {
	temperature float64
	topK        int
	rng         *rand.Rand
}

// GenerateOption configures sequence generation.
type GenerateOption func(*generateOptions)

// WithTemperature adjusts the randomness of the symbol selection.
// A value of 1.0 samples from the transition probabilities directly.
// Values > 1.0 flatten the distribution, values < 1.0 sharpen it.
// A value of 0 or less always picks the most probable successor.
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts each step to the k most probable successors.
// A value of 0 disables Top-K sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

// WithRand sets the random source. By default the global source is used.
func WithRand(rng *rand.Rand) GenerateOption {
	return func(o *generateOptions) { o.rng = rng }
}

// Generate samples a sequence of length n from the model. The first symbol is
// drawn from the uniform prior. When the chain reaches a symbol whose row was
// never observed, the next symbol is drawn from the prior again.
func (m *Model) Generate(n int, opts ...GenerateOption) (string, error) {
	if n < 0 {
		return "", errors.New("sequence length must not be negative")
	}
	options := &generateOptions{temperature: 1.0}
	for _, opt := range opts {
		opt(options)
	}

	var sb strings.Builder
	sb.Grow(n)
	prev := -1
	choices := make([]choice, 0, Size)
	for sb.Len() < n {
		choices = choices[:0]
		if prev >= 0 && m.observed[prev] {
			for c, p := range m.table[prev] {
				if p > 0 {
					choices = append(choices, choice{symbol: c, weight: p})
				}
			}
		}
		if len(choices) == 0 {
			prev = options.intN(Size)
		} else {
			prev = chooseNext(choices, options)
		}
		sb.WriteByte(Symbol(prev))
	}
	return sb.String(), nil
}

func (o *generateOptions) intN(n int) int {
	if o.rng != nil {
		return o.rng.IntN(n)
	}
	return rand.IntN(n)
}

func (o *generateOptions) float() float64 {
	if o.rng != nil {
		return o.rng.Float64()
	}
	return rand.Float64()
}

// chooseNext picks a successor from weighted choices.
func chooseNext(choices []choice, options *generateOptions) int {
	if options.topK > 0 && options.topK < len(choices) {
		sort.SliceStable(choices, func(i, j int) bool {
			return choices[i].weight > choices[j].weight
		})
		choices = choices[:options.topK]
	}

	if options.temperature <= 0 { // Deterministic
		best := choices[0]
		for _, c := range choices[1:] {
			if c.weight > best.weight {
				best = c
			}
		}
		return best.symbol
	}

	weights := make([]float64, len(choices))
	if options.temperature == 1.0 {
		for i, c := range choices {
			weights[i] = c.weight
		}
	} else {
		maxLog := math.Inf(-1)
		for i, c := range choices {
			weights[i] = math.Log(c.weight) / options.temperature
			if weights[i] > maxLog {
				maxLog = weights[i]
			}
		}
		for i := range weights {
			weights[i] = math.Exp(weights[i] - maxLog)
		}
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	r := options.float() * total
	for i, c := range choices {
		r -= weights[i]
		if r < 0 {
			return c.symbol
		}
	}
	return choices[len(choices)-1].symbol
}
