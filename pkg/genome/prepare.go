package genome

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/islandscan/islandscan/pkg/markov"
	"github.com/natefinch/atomic"
)

// Region is an annotated interval of a genome. Start is inclusive and End
// exclusive, both zero-based.
type Region struct {
	Name  string
	Start int
	End   int
}

// Len returns the number of bases in the region.
func (r Region) Len() int { return r.End - r.Start }

// ReadRegions parses a tab separated annotation with the sequence name, start
// and end in the first three columns. Blank lines, '#' comments and UCSC
// track or browser lines are skipped.
func ReadRegions(r io.Reader) ([]Region, error) {
	scanner := bufio.NewScanner(r)
	var regions []Region
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: annotation line %d has %d columns, want at least 3", markov.ErrInvalidInput, n, len(fields))
		}
		start, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: annotation line %d: bad start: %v", markov.ErrInvalidInput, n, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("%w: annotation line %d: bad end: %v", markov.ErrInvalidInput, n, err)
		}
		if start < 0 || end < start {
			return nil, fmt.Errorf("%w: annotation line %d: invalid interval [%d, %d)", markov.ErrInvalidInput, n, start, end)
		}
		regions = append(regions, Region{Name: fields[0], Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read annotation: %w", err)
	}
	return regions, nil
}

// ReadRegionsFile is ReadRegions on the file at path.
func ReadRegionsFile(path string) ([]Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotation file: %w", err)
	}
	defer f.Close()
	return ReadRegions(f)
}

// Rebase shifts every region so that the first one starts at zero. It is used
// when the annotation coordinates refer to a larger assembly than the
// sequence that was extracted.
func Rebase(regions []Region) []Region {
	if len(regions) == 0 {
		return nil
	}
	ref := regions[0].Start
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = Region{Name: r.Name, Start: r.Start - ref, End: r.End - ref}
	}
	return out
}

// ExtractRegions cuts every region out of seq, in annotation order.
func ExtractRegions(seq string, regions []Region) ([]string, error) {
	records := make([]string, len(regions))
	for i, r := range regions {
		if r.Start < 0 || r.End < r.Start || r.End > len(seq) {
			return nil, fmt.Errorf("%w: region %d [%d, %d) outside sequence of length %d", markov.ErrInvalidInput, i, r.Start, r.End, len(seq))
		}
		records[i] = seq[r.Start:r.End]
	}
	return records, nil
}

// Background draws one excerpt of seq per requested length, each free of
// unknown bases. Matching the lengths of the island records yields an outside
// training set with the same length distribution.
func Background(seq string, lengths []int, rng *rand.Rand) ([]string, error) {
	records := make([]string, len(lengths))
	for i, n := range lengths {
		if n == 0 {
			continue
		}
		ex, err := RandomExcerpt(seq, n, rng)
		if err != nil {
			return nil, fmt.Errorf("background record %d: %w", i, err)
		}
		records[i] = ex
	}
	return records, nil
}

// WriteRecords writes one record per line.
func WriteRecords(w io.Writer, records []string) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		bw.WriteString(r)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// SaveRecords writes the records to path atomically.
func SaveRecords(path string, records []string) error {
	var buf bytes.Buffer
	if err := WriteRecords(&buf, records); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}
