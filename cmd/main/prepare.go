package main

import (
	"fmt"

	"github.com/islandscan/islandscan/pkg/genome"
)

// prepare cuts the annotated islands out of a genome and draws a background
// set of the same lengths, ready to be passed to train.
func (c *cli) prepare() error {
	o := c.opts
	seq, err := genome.ReadFile(o.file)
	if err != nil {
		return err
	}
	regions, err := genome.ReadRegionsFile(o.annotation)
	if err != nil {
		return err
	}
	if o.rebase {
		regions = genome.Rebase(regions)
	}
	islands, err := genome.ExtractRegions(seq, regions)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	if err = genome.SaveRecords(o.islandsPath, islands); err != nil {
		return err
	}
	c.logger.Info("Islands extracted", "records", len(islands), "path", o.islandsPath)
	fmt.Fprintf(c.out, "Wrote %d island records to %s\n", len(islands), o.islandsPath)

	if o.backgroundPath == "" {
		return nil
	}
	lengths := make([]int, len(islands))
	for i, r := range islands {
		lengths[i] = len(r)
	}
	background, err := genome.Background(seq, lengths, c.rng)
	if err != nil {
		return fmt.Errorf("background sampling failed: %w", err)
	}
	if err = genome.SaveRecords(o.backgroundPath, background); err != nil {
		return err
	}
	c.logger.Info("Background sampled", "records", len(background), "path", o.backgroundPath)
	fmt.Fprintf(c.out, "Wrote %d background records to %s\n", len(background), o.backgroundPath)
	return nil
}
