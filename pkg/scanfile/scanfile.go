// Package scanfile reads and writes saved genome scans.
//
// A scan file holds two or three newline terminated lines:
//
//	@length:<L>;window_size:<W>;stringency:<S>
//	<p1>,<p2>,...           (only when peaks were called)
//	<s0>,<s1>,...
//
// L is the scanned sequence length, so the score line has L-W+1 entries.
// Scores are written with one decimal.
package scanfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/islandscan/islandscan/pkg/scan"
	"github.com/natefinch/atomic"
	"gonum.org/v1/gonum/floats/scalar"
)

// ErrFormat is returned for any malformed scan file. Decoding never returns a
// partial record.
var ErrFormat = errors.New("malformed scan file")

// Record is a saved scan.
type Record struct {
	Scores     scan.Series
	Length     int
	WindowSize int
	Stringency int
	Peaks      scan.PeakSet
}

// NewRecord builds a record for a finished scan, deriving the sequence length
// from the number of scores.
func NewRecord(scores scan.Series, windowSize, stringency int, peaks scan.PeakSet) Record {
	return Record{
		Scores:     scores,
		Length:     len(scores) + windowSize - 1,
		WindowSize: windowSize,
		Stringency: stringency,
		Peaks:      peaks,
	}
}

const headerFormat = "@length:%d;window_size:%d;stringency:%d"

// Encode writes rec in the scan file format. Records that Decode would
// reject are refused with ErrFormat.
func Encode(w io.Writer, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, headerFormat+"\n", rec.Length, rec.WindowSize, rec.Stringency)
	if len(rec.Peaks) > 0 {
		for i, p := range rec.Peaks {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(strconv.Itoa(p.Position))
		}
		bw.WriteByte('\n')
	}
	buf := make([]byte, 0, 16)
	for i, s := range rec.Scores {
		if i > 0 {
			bw.WriteByte(',')
		}
		buf = strconv.AppendFloat(buf[:0], s, 'f', 1, 64)
		bw.Write(buf)
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func (rec Record) validate() error {
	if rec.WindowSize < 1 {
		return fmt.Errorf("%w: invalid window size %d", ErrFormat, rec.WindowSize)
	}
	if len(rec.Scores) == 0 {
		return fmt.Errorf("%w: no scores", ErrFormat)
	}
	if want := len(rec.Scores) + rec.WindowSize - 1; rec.Length != want {
		return fmt.Errorf("%w: length %d does not match %d scores with window %d", ErrFormat, rec.Length, len(rec.Scores), rec.WindowSize)
	}
	for i, p := range rec.Peaks {
		if p.Position < 0 || p.Position >= len(rec.Scores) {
			return fmt.Errorf("%w: peak position %d out of range", ErrFormat, p.Position)
		}
		if i > 0 && p.Position <= rec.Peaks[i-1].Position {
			return fmt.Errorf("%w: peak positions not increasing at %d", ErrFormat, p.Position)
		}
	}
	return nil
}

// Decode parses a scan file. Peaks are rebuilt from the positions with the
// score at each position rounded to one decimal.
func Decode(r io.Reader) (Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Record{}, err
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	if len(lines) != 2 && len(lines) != 3 {
		return Record{}, fmt.Errorf("%w: expected 2 or 3 lines, got %d", ErrFormat, len(lines))
	}

	var rec Record
	if err := parseHeader(lines[0], &rec); err != nil {
		return Record{}, err
	}

	scores, err := parseScores(lines[len(lines)-1])
	if err != nil {
		return Record{}, err
	}
	if want := rec.Length - rec.WindowSize + 1; len(scores) != want {
		return Record{}, fmt.Errorf("%w: header announces %d scores, found %d", ErrFormat, want, len(scores))
	}
	rec.Scores = scores

	if len(lines) == 3 {
		peaks, err := parsePeaks(lines[1], scores)
		if err != nil {
			return Record{}, err
		}
		rec.Peaks = peaks
	}
	return rec, nil
}

func parseHeader(line string, rec *Record) error {
	var extra string
	n, _ := fmt.Sscanf(line, headerFormat+"%s", &rec.Length, &rec.WindowSize, &rec.Stringency, &extra)
	if n != 3 {
		return fmt.Errorf("%w: bad header %q", ErrFormat, line)
	}
	// Sscanf accepts a leading sign and spaces, so the canonical form is checked.
	if line != fmt.Sprintf(headerFormat, rec.Length, rec.WindowSize, rec.Stringency) {
		return fmt.Errorf("%w: bad header %q", ErrFormat, line)
	}
	if rec.WindowSize < 1 || rec.Length < rec.WindowSize {
		return fmt.Errorf("%w: window %d does not fit length %d", ErrFormat, rec.WindowSize, rec.Length)
	}
	return nil
}

func parseScores(line string) (scan.Series, error) {
	if line == "" {
		return nil, fmt.Errorf("%w: empty score line", ErrFormat)
	}
	fields := strings.Split(line, ",")
	scores := make(scan.Series, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: score %d: %v", ErrFormat, i, err)
		}
		scores[i] = v
	}
	return scores, nil
}

func parsePeaks(line string, scores scan.Series) (scan.PeakSet, error) {
	if line == "" {
		return nil, fmt.Errorf("%w: empty peak line", ErrFormat)
	}
	fields := strings.Split(line, ",")
	peaks := make(scan.PeakSet, len(fields))
	for i, f := range fields {
		pos, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: peak %d: %v", ErrFormat, i, err)
		}
		if pos < 0 || pos >= len(scores) {
			return nil, fmt.Errorf("%w: peak position %d out of range", ErrFormat, pos)
		}
		if i > 0 && pos <= peaks[i-1].Position {
			return nil, fmt.Errorf("%w: peak positions not increasing at %d", ErrFormat, pos)
		}
		peaks[i] = scan.Peak{Position: pos, Score: scalar.RoundEven(scores[pos], 1)}
	}
	return peaks, nil
}

// Save writes rec to path atomically.
func Save(path string, rec Record) error {
	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write scan file: %w", err)
	}
	return nil
}

// Load reads a scan file from path.
func Load(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to open scan file: %w", err)
	}
	defer f.Close()
	rec, err := Decode(f)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}
