package genome

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/islandscan/islandscan/pkg/markov"
)

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestRandom(t *testing.T) {
	seq := Random(newRand(), 1000)
	if len(seq) != 1000 {
		t.Fatalf("len = %d, want 1000", len(seq))
	}
	for i := 0; i < len(seq); i++ {
		if _, ok := markov.Index(seq[i]); !ok {
			t.Fatalf("unexpected symbol %q at %d", seq[i], i)
		}
	}
	if Random(newRand(), 0) != "" {
		t.Error("expected an empty sequence for n = 0")
	}
}

func TestRandomRecord(t *testing.T) {
	path := writeFile(t, "islands.txt", "acgt\nGGCC\r\nTTAA\n")
	want := map[string]bool{"ACGT": true, "GGCC": true, "TTAA": true}

	rng := newRand()
	for range 20 {
		rec, err := RandomRecordFile(path, rng)
		if err != nil {
			t.Fatalf("RandomRecordFile() failed: %v", err)
		}
		if !want[rec] {
			t.Errorf("unexpected record %q", rec)
		}
	}
}

func TestRandomRecordEmpty(t *testing.T) {
	_, err := RandomRecord(strings.NewReader(""), newRand())
	if !errors.Is(err, markov.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReadFasta(t *testing.T) {
	path := writeFile(t, "chr.fa", ">chr22 test\nacgtN\nNNCG\n>second\nTTTT\n")
	seq, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if want := "ACGTNNNCGTTTT"; seq != want {
		t.Errorf("ReadFile() = %q, want %q", seq, want)
	}
}

func TestReadPlainLines(t *testing.T) {
	seq, err := Read(strings.NewReader("acgt\nnnCG\n"))
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if want := "ACGTNNCG"; seq != want {
		t.Errorf("Read() = %q, want %q", seq, want)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.fa"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestRandomExcerpt(t *testing.T) {
	seq := strings.Repeat("N", 50) + strings.Repeat("ACGT", 50) + strings.Repeat("N", 50)
	rng := newRand()
	for range 20 {
		ex, err := RandomExcerpt(seq, 20, rng)
		if err != nil {
			t.Fatalf("RandomExcerpt() failed: %v", err)
		}
		if len(ex) != 20 || strings.Contains(ex, "N") {
			t.Errorf("bad excerpt %q", ex)
		}
	}
}

func TestRandomExcerptErrors(t *testing.T) {
	rng := newRand()
	if _, err := RandomExcerpt("ACGT", 4, rng); !errors.Is(err, markov.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a too long excerpt, got %v", err)
	}
	if _, err := RandomExcerpt("ACGT", 0, rng); !errors.Is(err, markov.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for length 0, got %v", err)
	}
	if _, err := RandomExcerpt(strings.Repeat("N", 100), 10, rng); !errors.Is(err, ErrNoCleanExcerpt) {
		t.Errorf("expected ErrNoCleanExcerpt, got %v", err)
	}
}
