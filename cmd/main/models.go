package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/islandscan/islandscan/pkg/markov"
	"github.com/natefinch/atomic"
)

// train builds a model from an inline sequence or a record file and stores it.
func (c *cli) train(ctx context.Context) error {
	o := c.opts
	m, err := markov.New(markov.Trained{Sequence: o.sequence, Path: o.file}, markov.WithPrecision(o.precision))
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	store, err := c.openStore()
	if err != nil {
		return err
	}
	existing, err := store.GetModelInfo(ctx, o.name)
	switch {
	case err == nil && !o.replace:
		return fmt.Errorf("model '%s' already exists, use --replace to overwrite it", o.name)
	case err == nil:
		if err = store.RemoveModel(ctx, existing); err != nil {
			return fmt.Errorf("failed to remove model: %w", err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("database error: %w", err)
	}

	info, err := store.SaveModel(ctx, o.name, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Model '%s' trained on %d records, average length %d\n", info.Name, info.Records, info.AverageLength)
	fmt.Fprint(c.out, m.Report())
	return nil
}

// loadModel resolves a model name to a built-in reference model or a stored one.
func (c *cli) loadModel(ctx context.Context, name string) (*markov.Model, error) {
	switch name {
	case referenceInside:
		inside, _ := markov.Reference()
		return inside, nil
	case referenceOutside:
		_, outside := markov.Reference()
		return outside, nil
	}
	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	return store.LoadModel(ctx, name)
}

// models resolves the inside and outside models of score and scan. --fast
// selects the reference tables, record files are trained on the fly and
// otherwise the stored models named by flags or config are loaded.
func (c *cli) models(ctx context.Context) (inside, outside *markov.Model, err error) {
	o := c.opts
	if o.fast {
		c.logger.Info("Using the chromosome 22 CpG island reference models")
		inside, outside = markov.Reference()
		return inside, outside, nil
	}

	resolve := func(file, name, fallback string) (*markov.Model, error) {
		if file != "" {
			c.logger.Info("Training model", "file", file)
			return markov.TrainFile(file)
		}
		if name == "" {
			name = fallback
		}
		c.logger.Debug("Loading model", "model_name", name)
		return c.loadModel(ctx, name)
	}
	if inside, err = resolve(o.insideFile, o.inside, c.cfg.InsideModel); err != nil {
		return nil, nil, fmt.Errorf("inside model: %w", err)
	}
	if outside, err = resolve(o.outsideFile, o.outside, c.cfg.OutsideModel); err != nil {
		return nil, nil, fmt.Errorf("outside model: %w", err)
	}
	return inside, outside, nil
}

func (c *cli) generate(ctx context.Context) error {
	o := c.opts
	m, err := c.loadModel(ctx, o.name)
	if err != nil {
		return err
	}
	opts := []markov.GenerateOption{
		markov.WithRand(c.rng),
		markov.WithTemperature(o.temperature),
	}
	if o.topK > 0 {
		opts = append(opts, markov.WithTopK(o.topK))
	}
	seq, err := m.Generate(o.length, opts...)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	fmt.Fprintln(c.out, seq)
	return nil
}

func (c *cli) listModels(ctx context.Context) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	models, err := store.GetModelInfos(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve models: %w", err)
	}
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	slices.Sort(names)

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAVERAGE LENGTH\tRECORDS\tPRECISION\tPRECOMPUTED")
	for _, name := range names {
		info := models[name]
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%t\n",
			info.Id, info.Name, info.AverageLength, info.Records, precisionLabel(info.Precision), info.Precomputed)
	}
	return tw.Flush()
}

func precisionLabel(p int) string {
	if p < 0 {
		return "exact"
	}
	return fmt.Sprint(p)
}

// modelInfo looks up a stored model, reporting a missing one by name.
func (c *cli) modelInfo(ctx context.Context, name string) (markov.ModelInfo, error) {
	store, err := c.openStore()
	if err != nil {
		return markov.ModelInfo{}, err
	}
	info, err := store.GetModelInfo(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return markov.ModelInfo{}, fmt.Errorf("model '%s' not found", name)
	}
	if err != nil {
		return markov.ModelInfo{}, fmt.Errorf("database error: %w", err)
	}
	return info, nil
}

func (c *cli) removeModel(ctx context.Context) error {
	info, err := c.modelInfo(ctx, c.opts.name)
	if err != nil {
		return err
	}
	if err = c.store.RemoveModel(ctx, info); err != nil {
		return fmt.Errorf("failed to remove model: %w", err)
	}
	fmt.Fprintf(c.out, "Model '%s' removed\n", info.Name)
	return nil
}

func (c *cli) exportModel(ctx context.Context) error {
	info, err := c.modelInfo(ctx, c.opts.name)
	if err != nil {
		return err
	}
	if c.opts.output == "" {
		return c.store.ExportModel(ctx, info, c.out)
	}
	var buf bytes.Buffer
	if err = c.store.ExportModel(ctx, info, &buf); err != nil {
		return fmt.Errorf("failed to export model: %w", err)
	}
	if err = atomic.WriteFile(c.opts.output, &buf); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	c.logger.Info("Model exported", "model_name", info.Name, "path", c.opts.output)
	return nil
}

func (c *cli) importModel(ctx context.Context) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	f, err := os.Open(c.opts.input)
	if err != nil {
		return fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()

	info, err := store.ImportModel(ctx, f)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(c.out, "Model '%s' imported, average length %d\n", info.Name, info.AverageLength)
	return nil
}

func (c *cli) pruneModel(ctx context.Context) error {
	info, err := c.modelInfo(ctx, c.opts.name)
	if err != nil {
		return err
	}
	if err = c.store.PruneModel(ctx, info, c.opts.minFreq); err != nil {
		return fmt.Errorf("pruning failed: %w", err)
	}
	fmt.Fprintf(c.out, "Model '%s' pruned\n", info.Name)
	return nil
}

func (c *cli) stats(ctx context.Context) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	st, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTRANSITIONS\tTOTAL FREQUENCY\tOBSERVED ROWS\tAVERAGE LENGTH")
	for _, m := range st.Models {
		ms := st.Stats[m.Id]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d/%d\t%d\n", m.Name, ms.Transitions, ms.TotalFrequency, ms.ObservedRows, markov.Size, m.AverageLength)
	}
	return tw.Flush()
}
