package plot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/islandscan/islandscan/pkg/scan"
)

func TestSaveScores(t *testing.T) {
	scores := scan.Series{0, 5, 10, 1, 0, -2, 4}
	peaks := scan.CallPeaks(scores, 4, 1)
	dir := t.TempDir()

	for _, name := range []string{"scan.png", "scan.svg"} {
		path := filepath.Join(dir, name)
		if err := SaveScores(path, scores, 4, 1, peaks); err != nil {
			t.Fatalf("SaveScores(%s) failed: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("plot %s not written: %v", name, err)
		}
		if info.Size() == 0 {
			t.Errorf("plot %s is empty", name)
		}
	}
}

func TestSaveScoresNonFinite(t *testing.T) {
	scores := scan.Series{math.Inf(-1), 0, 5, 10, math.NaN(), 1, 0, math.Inf(1), 2}
	path := filepath.Join(t.TempDir(), "gaps.png")
	if err := SaveScores(path, scores, 4, 1, scan.PeakSet{{Position: 3, Score: 10}}); err != nil {
		t.Fatalf("SaveScores() failed on non-finite scores: %v", err)
	}

	segments, lo, hi := finiteSegments(scores)
	if len(segments) != 3 {
		t.Errorf("got %d segments, want 3", len(segments))
	}
	if lo != 0 || hi != 10 {
		t.Errorf("extrema = %v, %v, want 0, 10", lo, hi)
	}

	if err := Scores(&bytes.Buffer{}, "png", scan.Series{math.NaN(), math.Inf(-1)}, 4, 1, nil); err == nil {
		t.Error("expected an error when no score is finite")
	}
}

func TestScoresTitle(t *testing.T) {
	p, err := New(scan.Series{1, 2, 3}, 566, 20, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if !strings.Contains(p.Title.Text, "peak sharpness: 127, peak calling threshold: 9.1") {
		t.Errorf("title = %q", p.Title.Text)
	}
}

func TestScoresErrors(t *testing.T) {
	if err := Scores(&bytes.Buffer{}, "png", nil, 4, 1, nil); err == nil {
		t.Error("expected an error for an empty series")
	}
	if err := Scores(&bytes.Buffer{}, "bogus", scan.Series{1, 2}, 4, 1, nil); err == nil {
		t.Error("expected an error for an unknown format")
	}
	if err := SaveScores(filepath.Join(t.TempDir(), "noext"), scan.Series{1, 2}, 4, 1, nil); err == nil {
		t.Error("expected an error for a path without extension")
	}
}
