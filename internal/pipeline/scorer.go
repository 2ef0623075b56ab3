package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"niobiums/internal/catalog"
	"niobiums/internal/common"
	"niobiums/internal/metrics"
	"niobiums/internal/outdir"
	"niobiums/internal/report"
	"niobiums/internal/results"
	"niobiums/internal/scoring"
	"niobiums/internal/split"

	"github.com/rs/zerolog/log"
)

// ScoreResult is the outcome of a scoring run.
type ScoreResult struct {
	Dir       string // result directory inside the run
	Records   int
	Scorecard *scoring.Scorecard
}

// Scorer reads the model output of a run and writes its score reports.
type Scorer struct {
	resultFile     string
	normalizeFermi bool
	confirm        outdir.Confirmer
	metrics        metrics.Recorder

	OnProgress ProgressFunc
}

// NewScorer creates a scorer reading resultFile inside each run directory.
// rec may be nil.
func NewScorer(resultFile string, normalizeFermi bool, confirm outdir.Confirmer, rec metrics.Recorder) *Scorer {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Scorer{
		resultFile:     resultFile,
		normalizeFermi: normalizeFermi,
		confirm:        confirm,
		metrics:        rec,
	}
}

// Run scores the run in runDir. The model output is validated completely
// before any previous result directory is touched.
func (s *Scorer) Run(ctx context.Context, runDir string) (*ScoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := catalog.ReadSnapshot(filepath.Join(runDir, common.CatalogFile))
	if err != nil {
		s.metrics.Error()
		return nil, err
	}
	meta, err := split.ReadRunMetadata(runDir)
	if err != nil {
		s.metrics.Error()
		return nil, err
	}
	manifest, err := split.ReadManifest(filepath.Join(runDir, common.TestLabelsFile))
	if err != nil {
		s.metrics.Error()
		return nil, err
	}

	log.Info().
		Str("dir", runDir).
		Str("run_id", meta.RunID).
		Int("instances", len(manifest)).
		Msg("Starting scoring")

	var records []results.Record
	err = timed(s.metrics, metrics.PhaseRead, func() error {
		var err error
		records, err = results.NewReader(c.Index).ReadFile(filepath.Join(runDir, s.resultFile), manifest)
		if errors.Is(err, results.ErrLabelCorruption) {
			s.metrics.LabelFailure()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := scoring.NewAggregator(c.Index)
	agg.NormalizeFermi = s.normalizeFermi
	total, done := len(c.Index.Species), 0
	agg.OnSpecies = func(sc scoring.SpeciesScore) {
		done++
		s.metrics.SpeciesProcessed(metrics.PhaseScore)
		s.metrics.SpeciesScored(sc.Accuracy, sc.Defined)
		if s.OnProgress != nil {
			s.OnProgress(metrics.PhaseScore, sc.Species, done, total)
		}
	}

	start := time.Now()
	for _, rec := range records {
		agg.Fold(rec)
		s.metrics.RecordScored(rec.TargetConfidence())
	}
	card := agg.Score()
	s.metrics.ObservePhase(metrics.PhaseScore, time.Since(start))
	if card.AccuracyDefined {
		s.metrics.OverallScored(card.Accuracy)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resultDir := filepath.Join(runDir, common.ResultDir)
	if err := s.publish(resultDir, filepath.Dir(runDir), card, c.Index.Families, meta.Unfamiliars); err != nil {
		s.metrics.Error()
		return nil, err
	}

	log.Info().
		Str("dir", resultDir).
		Int("records", len(records)).
		Msg("Scoring complete")
	return &ScoreResult{Dir: resultDir, Records: len(records), Scorecard: card}, nil
}

// publish writes the reports into a staging directory and moves them into
// resultDir once complete. Unfamiliar species plots are shared by every run
// of the dataset and land in datasetDir.
func (s *Scorer) publish(resultDir, datasetDir string, card *scoring.Scorecard, families, unfamiliars []string) error {
	if err := outdir.Prepare(resultDir, s.confirm); err != nil {
		return err
	}
	staging, err := outdir.Stage(resultDir)
	if err != nil {
		return err
	}

	reporter := report.NewReporter(card, families, staging).
		WithUnfamiliars(filepath.Join(datasetDir, common.UnfamiliarPlotDir), unfamiliars)
	if err := reporter.GenerateReport(); err != nil {
		outdir.Discard(staging)
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return outdir.Commit(staging, resultDir)
}
