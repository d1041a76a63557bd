package markov

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PruneModel removes every transition of a stored trained model whose
// frequency is less than or equal to minFreq, then renormalizes the affected
// rows. Rare transitions are often sequencing noise; removing them turns them
// into probability 0 transitions. Precomputed models carry no frequencies and
// cannot be pruned.
func (s *Store) PruneModel(ctx context.Context, info ModelInfo, minFreq int) error {
	if info.Precomputed {
		return fmt.Errorf("%w: model '%s' is precomputed and has no frequencies", ErrInvalidInput, info.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for pruning: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	_, counts, err := readTransitions(ctx, tx.StmtContext(ctx, s.stmtGetTransitions), info.Id)
	if err != nil {
		return err
	}

	removed := 0
	for p := range counts {
		for c := range counts[p] {
			if counts[p][c] > 0 && counts[p][c] <= minFreq {
				counts[p][c] = 0
				removed++
			}
		}
	}
	if removed == 0 {
		s.logger.InfoContext(ctx, "No transitions to prune",
			slog.String("model_name", info.Name),
			slog.Int("min_frequency", minFreq),
		)
		return tx.Commit()
	}

	pruned := fromCounts(counts, info.TotalLength, info.Records, info.Precision)
	if err = s.replaceTransitions(ctx, tx, info.Id, pruned); err != nil {
		return fmt.Errorf("could not prune model %d: %w", info.Id, err)
	}

	s.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_name", info.Name),
		slog.Int("model_id", info.Id),
		slog.Int("min_frequency", minFreq),
		slog.Int("transitions_removed", removed),
	)
	return tx.Commit()
}
