package pipeline

import (
	"context"

	"niobiums/internal/catalog"
	"niobiums/internal/metrics"
	"niobiums/internal/outdir"
	"niobiums/internal/split"

	"github.com/rs/zerolog/log"
)

// SplitResult is the outcome of a split run.
type SplitResult struct {
	Dir       string
	Manifests *split.Manifests
	Metadata  *split.RunMetadata
}

// Splitter plans and writes splits below an output root.
type Splitter struct {
	outputRoot string
	confirm    outdir.Confirmer
	metrics    metrics.Recorder

	OnProgress ProgressFunc
}

// NewSplitter creates a splitter. rec may be nil.
func NewSplitter(outputRoot string, confirm outdir.Confirmer, rec metrics.Recorder) *Splitter {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Splitter{outputRoot: outputRoot, confirm: confirm, metrics: rec}
}

// Run plans the split of c and writes it into its run directory.
func (s *Splitter) Run(ctx context.Context, c *catalog.Catalog, req SplitRequest) (*SplitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info().
		Str("dataset", req.Dataset).
		Float64("learn_proportion", req.LearnProportion).
		Strs("unfamiliars", req.Unfamiliars).
		Int64("seed", req.Seed).
		Msg("Starting split")

	planner := split.NewPlanner(req.Seed)
	total, done := len(c.Index.Species), 0
	planner.OnSpecies = func(sp split.SpeciesPlan) {
		done++
		s.metrics.SpeciesProcessed(metrics.PhaseSplit)
		if s.OnProgress != nil {
			s.OnProgress(metrics.PhaseSplit, sp.Species, done, total)
		}
	}

	var plan *split.Plan
	err := timed(s.metrics, metrics.PhaseSplit, func() error {
		var err error
		plan, err = planner.Plan(c.Index, req.LearnProportion, req.Unfamiliars)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := RunDir(s.outputRoot, req, split.RunName(plan.LearnProportion, plan.Unfamiliars))
	writer := split.NewWriter(s.confirm)
	writer.OnInstance = func(_ catalog.Instance, learn bool) {
		s.metrics.InstancePartitioned(learn)
	}

	result := &SplitResult{Dir: dir}
	err = timed(s.metrics, metrics.PhaseWrite, func() error {
		var err error
		result.Manifests, result.Metadata, err = writer.Write(dir, req.Dataset, req.Seed, c, plan)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("dir", dir).
		Str("run_id", result.Metadata.RunID).
		Int("learn", result.Metadata.LearnCount).
		Int("test", result.Metadata.TestCount).
		Msg("Split complete")
	return result, nil
}
