// Package genome provides the sequences that models are scored against:
// random sequences, random records of a training file and whole or excerpted
// genome files in FASTA or plain line format.
package genome

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/islandscan/islandscan/pkg/markov"
)

// ErrNoCleanExcerpt is returned when no excerpt free of unknown bases was
// found within the attempt limit.
var ErrNoCleanExcerpt = errors.New("no excerpt without unknown bases found")

// maxExcerptAttempts bounds the search for a clean excerpt.
const maxExcerptAttempts = 10000

// Random returns a uniformly random ACGT sequence of length n.
func Random(rng *rand.Rand, n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		sb.WriteByte(markov.Symbol(rng.IntN(markov.Size)))
	}
	return sb.String()
}

// RandomRecord returns one record of r chosen uniformly at random.
func RandomRecord(r io.Reader, rng *rand.Rand) (string, error) {
	records, err := markov.ReadRecords(r)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: no records", markov.ErrInvalidInput)
	}
	return records[rng.IntN(len(records))], nil
}

// RandomRecordFile is RandomRecord on the file at path.
func RandomRecordFile(path string, rng *rand.Rand) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open record file: %w", err)
	}
	defer f.Close()
	return RandomRecord(f, rng)
}

// Read returns the upper-cased concatenation of every sequence in r. Input
// starting with '>' is parsed as FASTA, anything else as one sequence
// fragment per line.
func Read(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			br.ReadByte()
			continue
		case '>':
			return readFasta(br)
		}
		return readLines(br)
	}
}

// ReadFile reads the whole genome stored at path.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open genome file: %w", err)
	}
	defer f.Close()
	seq, err := Read(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

func readFasta(r io.Reader) (string, error) {
	var sb strings.Builder
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNAredundant)))
	for sc.Next() {
		s, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return "", fmt.Errorf("unexpected sequence type %T", sc.Seq())
		}
		sb.WriteString(strings.ToUpper(string(s.Seq)))
	}
	if err := sc.Error(); err != nil {
		return "", fmt.Errorf("failed to parse FASTA: %w", err)
	}
	return sb.String(), nil
}

func readLines(r io.Reader) (string, error) {
	records, err := markov.ReadRecords(r)
	if err != nil {
		return "", err
	}
	return strings.Join(records, ""), nil
}

// RandomExcerpt returns a substring of seq of length n whose start is drawn
// from [0, len(seq)-n-1]. Starts are redrawn while the excerpt contains an
// unknown base N.
func RandomExcerpt(seq string, n int, rng *rand.Rand) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("%w: excerpt length must be positive, got %d", markov.ErrInvalidInput, n)
	}
	if n >= len(seq) {
		return "", fmt.Errorf("%w: excerpt length %d needs a sequence longer than %d", markov.ErrInvalidInput, n, len(seq))
	}
	for range maxExcerptAttempts {
		start := rng.IntN(len(seq) - n)
		excerpt := seq[start : start+n]
		if !strings.ContainsRune(excerpt, 'N') {
			return excerpt, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrNoCleanExcerpt, maxExcerptAttempts)
}

// RandomExcerptFile reads the genome at path and returns a random excerpt.
func RandomExcerptFile(path string, n int, rng *rand.Rand) (string, error) {
	seq, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	return RandomExcerpt(seq, n, rng)
}
