package markov

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func TestSaveAndLoadModel(t *testing.T) {
	ctx, s, info := setupTestDBWithModel(t)

	if info.Id == 0 {
		t.Errorf("expected a model id to be assigned, got %+v", info)
	}

	loaded, err := s.LoadModel(ctx, "test_model")
	if err != nil {
		t.Fatalf("LoadModel() failed: %v", err)
	}
	original, _ := Train([]string{"ACGT", "ACGA"})
	if loaded.Table() != original.Table() {
		t.Errorf("loaded table differs:\n%s\nwant:\n%s", loaded.Report(), original.Report())
	}
	if loaded.Counts() != original.Counts() {
		t.Errorf("loaded counts = %v, want %v", loaded.Counts(), original.Counts())
	}
	if loaded.AverageLength() != 4 || loaded.Records() != 2 || loaded.TotalLength() != 8 {
		t.Errorf("unexpected metadata: avg=%d records=%d total=%d", loaded.AverageLength(), loaded.Records(), loaded.TotalLength())
	}

	// Test failure case (duplicate name)
	if _, err := s.SaveModel(ctx, "test_model", original); err == nil {
		t.Error("expected an error when saving a model with a duplicate name, but got nil")
	}

	// Test failure case (nonexistent)
	if _, err := s.LoadModel(ctx, "nonexistent_model"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for nonexistent model, got %v", err)
	}
}

func TestSaveAndLoadPrecomputed(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()
	inside, _ := Reference()

	info, err := s.SaveModel(ctx, "cpg_inside", inside)
	if err != nil {
		t.Fatalf("SaveModel() failed: %v", err)
	}
	if !info.Precomputed || info.AverageLength != ReferenceAverageLength {
		t.Errorf("unexpected info: %+v", info)
	}

	loaded, err := s.LoadModel(ctx, "cpg_inside")
	if err != nil {
		t.Fatalf("LoadModel() failed: %v", err)
	}
	if loaded.Table() != CpGInside {
		t.Errorf("loaded table differs from CpGInside:\n%s", loaded.Report())
	}
	if !loaded.Precomputed() {
		t.Error("expected loaded model to be precomputed")
	}
}

func TestGetModelInfos(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()
	inside, outside := Reference()

	_, _ = s.SaveModel(ctx, "inside", inside)
	_, _ = s.SaveModel(ctx, "outside", outside)

	models, err := s.GetModelInfos(ctx)
	if err != nil {
		t.Fatalf("GetModelInfos failed: %v", err)
	}
	if len(models) != 2 {
		t.Errorf("expected 2 models, got %d", len(models))
	}
	if _, ok := models["inside"]; !ok {
		t.Error("expected to find 'inside'")
	}
	if _, ok := models["outside"]; !ok {
		t.Error("expected to find 'outside'")
	}
}

func TestRemoveModel(t *testing.T) {
	db, s := setupTestDB(t)
	ctx := context.Background()

	m1, _ := TrainString("ACGTTGCA")
	m2, _ := TrainString("GGGCCCAT")
	info1, _ := s.SaveModel(ctx, "to_delete", m1)
	info2, _ := s.SaveModel(ctx, "to_keep", m2)

	if err := s.RemoveModel(ctx, info1); err != nil {
		t.Fatalf("RemoveModel failed: %v", err)
	}

	// Verify model 1 is gone
	_, err := s.GetModelInfo(ctx, info1.Name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows for deleted model, got %v", err)
	}

	// Verify transitions for model 1 are gone
	var count int
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM markov_transitions WHERE model_id = ?", info1.Id).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 transitions for deleted model, found %d", count)
	}

	// Verify model 2 and its transitions still exist
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM markov_transitions WHERE model_id = ?", info2.Id).Scan(&count)
	if count == 0 {
		t.Error("expected transitions for kept model to exist, but found 0")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx, s, info := setupTestDBWithModel(t)

	// 1. Export the trained model to an in-memory buffer
	var buf bytes.Buffer
	if err := s.ExportModel(ctx, info, &buf); err != nil {
		t.Fatalf("ExportModel failed: %v", err)
	}

	// 2. Import into a completely new, empty database
	_, s2 := setupTestDB(t)
	if _, err := s2.ImportModel(ctx, &buf); err != nil {
		t.Fatalf("ImportModel failed: %v", err)
	}

	// 3. Verify the imported model scores exactly like the original
	original, _ := s.LoadModel(ctx, info.Name)
	imported, err := s2.LoadModel(ctx, info.Name)
	if err != nil {
		t.Fatalf("could not load imported model: %v", err)
	}
	for _, q := range []string{"ACGT", "ACGACGTA", "TACG"} {
		want, _ := original.Score(q)
		got, err := imported.Score(q)
		if err != nil || got != want {
			t.Errorf("Score(%q) = %v, %v; want %v", q, got, err, want)
		}
	}
}

func TestImportMergesFrequencies(t *testing.T) {
	ctx, s, info := setupTestDBWithModel(t)

	var buf bytes.Buffer
	if err := s.ExportModel(ctx, info, &buf); err != nil {
		t.Fatalf("ExportModel failed: %v", err)
	}
	merged, err := s.ImportModel(ctx, &buf)
	if err != nil {
		t.Fatalf("ImportModel failed: %v", err)
	}
	if merged.Id != info.Id {
		t.Errorf("merge should target model %d, got %d", info.Id, merged.Id)
	}
	if merged.Records != 4 || merged.TotalLength != 16 || merged.AverageLength != 4 {
		t.Errorf("unexpected merged metadata: %+v", merged)
	}

	m, err := s.LoadModel(ctx, info.Name)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	if got := m.Counts()[idx('A')][idx('C')]; got != 4 {
		t.Errorf("merged count A->C = %d, want 4", got)
	}
	if got := m.Table()[idx('G')][idx('T')]; got != 0.5 {
		t.Errorf("merged P(T|G) = %v, want 0.5", got)
	}
}

func TestImportRejectsBadInput(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		json string
	}{
		{name: "not json", json: "{"},
		{name: "no name", json: `{"average_length": 4}`},
		{name: "bad symbol", json: `{"name": "x", "records": 1, "transitions": [{"prev": "N", "next": "A", "frequency": 1}]}`},
		{name: "negative frequency", json: `{"name": "x", "records": 1, "transitions": [{"prev": "A", "next": "A", "frequency": -1}]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.ImportModel(ctx, strings.NewReader(tc.json)); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestPruneModel(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	// A->C occurs three times, A->G once.
	m, _ := TrainString("ACACACAG")
	info, _ := s.SaveModel(ctx, "prune_test", m)

	if err := s.PruneModel(ctx, info, 1); err != nil {
		t.Fatalf("PruneModel failed: %v", err)
	}

	pruned, err := s.LoadModel(ctx, info.Name)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	tbl := pruned.Table()
	if got := tbl[idx('A')][idx('G')]; got != 0 {
		t.Errorf("P(G|A) after pruning = %v, want 0", got)
	}
	if got := tbl[idx('A')][idx('C')]; got != 1 {
		t.Errorf("P(C|A) after pruning = %v, want 1", got)
	}

	// Pruning again removes nothing.
	if err := s.PruneModel(ctx, info, 1); err != nil {
		t.Fatalf("second PruneModel failed: %v", err)
	}

	inside, _ := Reference()
	pinfo, _ := s.SaveModel(ctx, "precomputed", inside)
	if err := s.PruneModel(ctx, pinfo, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput when pruning a precomputed model, got %v", err)
	}
}

func TestGetStats(t *testing.T) {
	ctx, s, info := setupTestDBWithModel(t)

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if len(stats.Models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(stats.Models))
	}
	st := stats.Stats[info.Id]
	// ACGTACGA: A->C, C->G, G->T, T->A, G->A
	if st.Transitions != 5 {
		t.Errorf("Transitions = %d, want 5", st.Transitions)
	}
	if st.TotalFrequency != 7 {
		t.Errorf("TotalFrequency = %d, want 7", st.TotalFrequency)
	}
	if st.ObservedRows != 4 {
		t.Errorf("ObservedRows = %d, want 4", st.ObservedRows)
	}
}
