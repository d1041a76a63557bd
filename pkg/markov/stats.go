package markov

import (
	"context"
)

// DBStats holds aggregated statistics for every model in the store.
type DBStats struct {
	Models []ModelInfo        // The stored models, ordered by name
	Stats  map[int]ModelStats // A mapping of model ids to their stats
}

// ModelStats holds aggregated statistics for a single stored model.
type ModelStats struct {
	Transitions    int // The number of transitions with a non-zero probability.
	TotalFrequency int // The sum of all frequencies; zero for precomputed models.
	ObservedRows   int // The number of predecessors with at least one defined transition.
}

// GetStats returns a snapshot of statistics for all stored models.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	var models []ModelInfo
	for rows.Next() {
		var info ModelInfo
		if err = rows.Scan(&info.Id, &info.Name, &info.AverageLength, &info.TotalLength, &info.Records, &info.Precision, &info.Precomputed); err != nil {
			_ = rows.Close()
			return nil, err
		}
		models = append(models, info)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	modelStats := make(map[int]ModelStats, len(models))
	for _, m := range models {
		var st ModelStats
		if err = s.stmtModelLinks.QueryRowContext(ctx, m.Id).Scan(&st.Transitions); err != nil {
			return nil, err
		}
		if err = s.stmtModelFreq.QueryRowContext(ctx, m.Id).Scan(&st.TotalFrequency); err != nil {
			return nil, err
		}
		if err = s.stmtModelRows.QueryRowContext(ctx, m.Id).Scan(&st.ObservedRows); err != nil {
			return nil, err
		}
		modelStats[m.Id] = st
	}

	return &DBStats{
		Models: models,
		Stats:  modelStats,
	}, nil
}
