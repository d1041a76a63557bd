package markov

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ExportedModel is the serializable representation of a stored model, used
// for JSON-based import and export.
type ExportedModel struct {
	Name          string               `json:"name"`
	AverageLength int                  `json:"average_length"`
	TotalLength   int                  `json:"total_length"`
	Records       int                  `json:"records"`
	Precision     int                  `json:"precision"`
	Precomputed   bool                 `json:"precomputed"`
	Transitions   []ExportedTransition `json:"transitions"`
}

// ExportedTransition is the serializable representation of a single table
// cell, used within an ExportedModel.
type ExportedTransition struct {
	Prev        string  `json:"prev"`
	Next        string  `json:"next"`
	Frequency   int     `json:"frequency"`
	Probability float64 `json:"probability"`
}

// ExportModel serializes a stored model into JSON and writes it to w.
func (s *Store) ExportModel(ctx context.Context, info ModelInfo, w io.Writer) error {
	table, counts, err := readTransitions(ctx, s.stmtGetTransitions, info.Id)
	if err != nil {
		return fmt.Errorf("could not query transitions for export: %w", err)
	}

	exported := ExportedModel{
		Name:          info.Name,
		AverageLength: info.AverageLength,
		TotalLength:   info.TotalLength,
		Records:       info.Records,
		Precision:     info.Precision,
		Precomputed:   info.Precomputed,
	}
	for p := 0; p < Size; p++ {
		for c := 0; c < Size; c++ {
			if counts[p][c] == 0 && table[p][c] == 0 {
				continue
			}
			exported.Transitions = append(exported.Transitions, ExportedTransition{
				Prev:        string(Symbol(p)),
				Next:        string(Symbol(c)),
				Frequency:   counts[p][c],
				Probability: table[p][c],
			})
		}
	}

	s.logger.InfoContext(ctx, "Model exported",
		slog.String("model_name", info.Name),
		slog.Int("model_id", info.Id),
		slog.Int("transitions_exported", len(exported.Transitions)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportModel reads a JSON model from r and stores it. If a trained model with
// the same name already exists, the imported frequencies are added to it and
// its table and average length are recomputed. Precomputed models can only be
// imported under a new name. The operation is transactional.
func (s *Store) ImportModel(ctx context.Context, r io.Reader) (ModelInfo, error) {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return ModelInfo{}, fmt.Errorf("failed to decode json model: %w", err)
	}
	if imported.Name == "" {
		return ModelInfo{}, fmt.Errorf("%w: imported model has no name", ErrInvalidInput)
	}

	var table Table
	var counts Counts
	for _, t := range imported.Transitions {
		p, okP := symbolString(t.Prev)
		c, okC := symbolString(t.Next)
		if !okP || !okC {
			return ModelInfo{}, fmt.Errorf("%w: transition %q -> %q is not in %s", ErrInvalidInput, t.Prev, t.Next, Alphabet)
		}
		if t.Frequency < 0 {
			return ModelInfo{}, fmt.Errorf("%w: negative frequency for %s -> %s", ErrInvalidInput, t.Prev, t.Next)
		}
		table[p][c] = t.Probability
		counts[p][c] = t.Frequency
	}

	existing, err := s.GetModelInfo(ctx, imported.Name)
	if errors.Is(err, sql.ErrNoRows) {
		m, err := restoreModel(ModelInfo{
			AverageLength: imported.AverageLength,
			TotalLength:   imported.TotalLength,
			Records:       imported.Records,
			Precision:     imported.Precision,
			Precomputed:   imported.Precomputed,
		}, table, counts)
		if err != nil {
			return ModelInfo{}, err
		}
		return s.SaveModel(ctx, imported.Name, m)
	} else if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to query for model '%s': %w", imported.Name, err)
	}

	if existing.Precomputed || imported.Precomputed {
		return ModelInfo{}, fmt.Errorf("%w: cannot merge precomputed model '%s'", ErrInvalidInput, imported.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	_, current, err := readTransitions(ctx, tx.StmtContext(ctx, s.stmtGetTransitions), existing.Id)
	if err != nil {
		return ModelInfo{}, err
	}
	for p := range current {
		for c := range current[p] {
			current[p][c] += counts[p][c]
		}
	}
	merged := fromCounts(current, existing.TotalLength+imported.TotalLength, existing.Records+imported.Records, existing.Precision)

	if err = s.replaceTransitions(ctx, tx, existing.Id, merged); err != nil {
		return ModelInfo{}, err
	}

	s.logger.InfoContext(ctx, "Model imported successfully",
		slog.String("model_name", imported.Name),
		slog.Int("target_model_id", existing.Id),
		slog.Int("transitions_merged", len(imported.Transitions)),
	)

	if err = tx.Commit(); err != nil {
		return ModelInfo{}, err
	}
	info := infoFor(imported.Name, merged)
	info.Id = existing.Id
	return info, nil
}

// replaceTransitions rewrites the metadata and every transition of a stored
// trained model.
func (s *Store) replaceTransitions(ctx context.Context, tx *sql.Tx, modelID int, m *Model) error {
	if _, err := tx.StmtContext(ctx, s.stmtUpdateModel).ExecContext(ctx, m.averageLength, m.totalLength, m.records, modelID); err != nil {
		return fmt.Errorf("failed to update model %d: %w", modelID, err)
	}
	if _, err := tx.StmtContext(ctx, s.stmtDeleteLinks).ExecContext(ctx, modelID); err != nil {
		return fmt.Errorf("failed to clear transitions for model %d: %w", modelID, err)
	}
	return s.writeTransitions(ctx, tx, modelID, m)
}
