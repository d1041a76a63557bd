package markov

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
)

// SetupSchema initializes the tables used by Store in the provided database.
// It is idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    average_length INTEGER NOT NULL,
    total_length INTEGER NOT NULL DEFAULT 0,
    record_count INTEGER NOT NULL DEFAULT 0,
    table_precision INTEGER NOT NULL DEFAULT -1,
    precomputed INTEGER NOT NULL DEFAULT 0
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS markov_transitions (
    model_id INTEGER NOT NULL,
    prev_symbol TEXT NOT NULL,
    next_symbol TEXT NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 0,
    probability REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (model_id, prev_symbol, next_symbol)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// ModelInfo holds the metadata of a stored model.
type ModelInfo struct {
	Id            int
	Name          string
	AverageLength int
	TotalLength   int
	Records       int
	Precision     int
	Precomputed   bool
}

// Store persists models in a SQLite database. It holds the database
// connection and the prepared statements used to read and write models.
type Store struct {
	db                 *sql.DB
	stmtGetModelInfo   *sql.Stmt
	stmtGetModels      *sql.Stmt
	stmtAddModel       *sql.Stmt
	stmtUpdateModel    *sql.Stmt
	stmtInsertLink     *sql.Stmt
	stmtDeleteLinks    *sql.Stmt
	stmtModelLinks     *sql.Stmt
	stmtModelFreq      *sql.Stmt
	stmtModelRows      *sql.Stmt
	stmtGetTransitions *sql.Stmt
	logger             *slog.Logger
}

// NewStore creates a Store on a database prepared with SetupSchema. It
// pre-compiles all SQL statements, returning an error if any preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id, average_length, total_length, record_count, table_precision, precomputed FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name, average_length, total_length, record_count, table_precision, precomputed FROM markov_models ORDER BY model_name;`)
	if err != nil {
		return nil, err
	}

	stmtAddModel, err := db.Prepare(`INSERT INTO markov_models (model_name, average_length, total_length, record_count, table_precision, precomputed) VALUES (?, ?, ?, ?, ?, ?) RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtUpdateModel, err := db.Prepare(`UPDATE markov_models SET average_length = ?, total_length = ?, record_count = ? WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtInsertLink, err := db.Prepare(`INSERT INTO markov_transitions (model_id, prev_symbol, next_symbol, frequency, probability) VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtDeleteLinks, err := db.Prepare(`DELETE FROM markov_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelLinks, err := db.Prepare(`SELECT COUNT(*) FROM markov_transitions WHERE model_id = ? AND probability > 0;`)
	if err != nil {
		return nil, err
	}

	stmtModelFreq, err := db.Prepare(`SELECT coalesce(SUM(frequency), 0) FROM markov_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelRows, err := db.Prepare(`SELECT COUNT(DISTINCT prev_symbol) FROM markov_transitions WHERE model_id = ? AND (frequency > 0 OR probability > 0);`)
	if err != nil {
		return nil, err
	}

	stmtGetTransitions, err := db.Prepare(`SELECT prev_symbol, next_symbol, frequency, probability FROM markov_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                 db,
		stmtGetModelInfo:   stmtGetModelInfo,
		stmtGetModels:      stmtGetModels,
		stmtAddModel:       stmtAddModel,
		stmtUpdateModel:    stmtUpdateModel,
		stmtInsertLink:     stmtInsertLink,
		stmtDeleteLinks:    stmtDeleteLinks,
		stmtModelLinks:     stmtModelLinks,
		stmtModelFreq:      stmtModelFreq,
		stmtModelRows:      stmtModelRows,
		stmtGetTransitions: stmtGetTransitions,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtGetModelInfo.Close()
	_ = s.stmtGetModels.Close()
	_ = s.stmtAddModel.Close()
	_ = s.stmtUpdateModel.Close()
	_ = s.stmtInsertLink.Close()
	_ = s.stmtDeleteLinks.Close()
	_ = s.stmtModelLinks.Close()
	_ = s.stmtModelFreq.Close()
	_ = s.stmtModelRows.Close()
	_ = s.stmtGetTransitions.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// GetModelInfos retrieves metadata for all stored models, keyed by name.
func (s *Store) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var info ModelInfo
		if err = rows.Scan(&info.Id, &info.Name, &info.AverageLength, &info.TotalLength, &info.Records, &info.Precision, &info.Precomputed); err != nil {
			return nil, err
		}
		models[info.Name] = info
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModelInfo retrieves the metadata for a single model. It returns
// sql.ErrNoRows if no model has that name.
func (s *Store) GetModelInfo(ctx context.Context, name string) (ModelInfo, error) {
	info := ModelInfo{Name: name}
	err := s.stmtGetModelInfo.QueryRowContext(ctx, name).Scan(&info.Id, &info.AverageLength, &info.TotalLength, &info.Records, &info.Precision, &info.Precomputed)
	if err != nil {
		return ModelInfo{}, err
	}
	return info, nil
}

// SaveModel stores a model under a new name. Saving under an existing name
// fails; remove the old model first to replace it.
func (s *Store) SaveModel(ctx context.Context, name string, m *Model) (ModelInfo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	info := infoFor(name, m)
	err = tx.StmtContext(ctx, s.stmtAddModel).QueryRowContext(ctx,
		info.Name, info.AverageLength, info.TotalLength, info.Records, info.Precision, info.Precomputed,
	).Scan(&info.Id)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to insert model '%s': %w", name, err)
	}

	if err = s.writeTransitions(ctx, tx, info.Id, m); err != nil {
		return ModelInfo{}, err
	}

	if err = tx.Commit(); err != nil {
		return ModelInfo{}, err
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", info.Name),
		slog.Int("model_id", info.Id),
		slog.Int("average_length", info.AverageLength),
		slog.Bool("precomputed", info.Precomputed),
	)
	return info, nil
}

// LoadModel reads a stored model back into memory.
func (s *Store) LoadModel(ctx context.Context, name string) (*Model, error) {
	info, err := s.GetModelInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("could not find model '%s': %w", name, err)
	}
	table, counts, err := readTransitions(ctx, s.stmtGetTransitions, info.Id)
	if err != nil {
		return nil, err
	}
	return restoreModel(info, table, counts)
}

// RemoveModel deletes a model and all of its transitions. The operation is
// performed within a transaction.
func (s *Store) RemoveModel(ctx context.Context, info ModelInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.StmtContext(ctx, s.stmtDeleteLinks).ExecContext(ctx, info.Id); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", info.Id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", info.Id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", info.Id, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", info.Name),
		slog.Int("model_id", info.Id),
	)

	return tx.Commit()
}

// writeTransitions inserts every defined cell of the model.
func (s *Store) writeTransitions(ctx context.Context, tx *sql.Tx, modelID int, m *Model) error {
	stmt := tx.StmtContext(ctx, s.stmtInsertLink)
	for p := 0; p < Size; p++ {
		for c := 0; c < Size; c++ {
			freq, prob := m.counts[p][c], m.table[p][c]
			if freq == 0 && prob == 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, modelID, string(Symbol(p)), string(Symbol(c)), freq, prob); err != nil {
				return fmt.Errorf("failed to insert transition (%c -> %c): %w", Symbol(p), Symbol(c), err)
			}
		}
	}
	return nil
}

// rowQuerier is satisfied by *sql.Stmt prepared with the transition query.
type rowQuerier interface {
	QueryContext(ctx context.Context, args ...any) (*sql.Rows, error)
}

func readTransitions(ctx context.Context, q rowQuerier, modelID int) (Table, Counts, error) {
	var table Table
	var counts Counts
	rows, err := q.QueryContext(ctx, modelID)
	if err != nil {
		return table, counts, fmt.Errorf("could not query transitions: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var prev, next string
		var freq int
		var prob float64
		if err = rows.Scan(&prev, &next, &freq, &prob); err != nil {
			return table, counts, err
		}
		p, okP := symbolString(prev)
		c, okC := symbolString(next)
		if !okP || !okC {
			return table, counts, fmt.Errorf("consistency error: transition %q -> %q is not in %s", prev, next, Alphabet)
		}
		table[p][c] = prob
		counts[p][c] = freq
	}
	if err = rows.Err(); err != nil {
		return table, counts, err
	}
	return table, counts, nil
}

func symbolString(s string) (int, bool) {
	if len(s) != 1 {
		return 0, false
	}
	return Index(s[0])
}

func infoFor(name string, m *Model) ModelInfo {
	return ModelInfo{
		Name:          name,
		AverageLength: m.averageLength,
		TotalLength:   m.totalLength,
		Records:       m.records,
		Precision:     m.precision,
		Precomputed:   m.precomputed,
	}
}

// restoreModel rebuilds a model from stored metadata. Trained models are
// renormalized from their frequencies, precomputed ones keep their table.
func restoreModel(info ModelInfo, table Table, counts Counts) (*Model, error) {
	if info.Precomputed {
		return FromPrecomputed(table, info.AverageLength)
	}
	return fromCounts(counts, info.TotalLength, info.Records, info.Precision), nil
}
