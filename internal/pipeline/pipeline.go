// Package pipeline sequences the load, split, read and scoring phases.
// Phases run one after another; the context is checked between phases,
// which are the only points where a run can be abandoned.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"niobiums/internal/catalog"
	"niobiums/internal/dataset"
	"niobiums/internal/metrics"

	"github.com/rs/zerolog/log"
)

// ProgressFunc is called after each species completes a phase.
type ProgressFunc func(phase, species string, done, total int)

// SplitRequest describes one split.
type SplitRequest struct {
	Dataset         string // dataset name, used for the run directory
	LearnProportion float64
	Unfamiliars     []string
	Seed            int64
}

// LoadCatalog reads a dataset source and builds its catalog.
func LoadCatalog(ctx context.Context, source string, timeout time.Duration, rec metrics.Recorder) (*catalog.Catalog, error) {
	if rec == nil {
		rec = metrics.Nop{}
	}
	start := time.Now()

	dl := dataset.NewDataLoader(timeout)
	if err := dl.Load(ctx, source); err != nil {
		rec.Error()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := catalog.Load(dl.Rows())
	if err != nil {
		rec.Error()
		return nil, fmt.Errorf("failed to build catalog from %s: %w", source, err)
	}
	rec.ObservePhase(metrics.PhaseLoad, time.Since(start))
	return c, nil
}

// RunDir returns where the split of req is written below outputRoot.
func RunDir(outputRoot string, req SplitRequest, runName string) string {
	return filepath.Join(outputRoot, req.Dataset, runName)
}

func timed(rec metrics.Recorder, phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	rec.ObservePhase(phase, elapsed)
	if err != nil {
		rec.Error()
		return err
	}
	log.Debug().Str("phase", phase).Dur("elapsed", elapsed).Msg("Phase complete")
	return nil
}
