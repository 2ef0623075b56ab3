package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"niobiums/internal/catalog"
	"niobiums/internal/common"
	"niobiums/internal/dataset"
	"niobiums/internal/pipeline"
	"niobiums/internal/report"
	"niobiums/internal/split"
	"niobiums/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// catalogCmd prints the derived labels of a dataset and snapshots them.
func (a *app) catalogCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "catalog <dataset>",
		Short: "Derive species and families of a dataset",
		Long: `Load a dataset, derive species and chemical family for every instance
and write the catalog snapshot. The snapshot is a JSON dataset itself and
can be split later without the dataset file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := a.resolveDataset(args[0])
			c, err := pipeline.LoadCatalog(cmd.Context(), source, a.settings.HTTPTimeout, a.metrics)
			if err != nil {
				return err
			}

			printCatalog(a, c)

			if out == "" {
				out = filepath.Join(a.settings.DatasetDir, dataset.Stem(source)+".catalog.json")
			}
			if filepath.Clean(out) == filepath.Clean(source) {
				return fmt.Errorf("snapshot would overwrite its source %s", source)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("failed to create snapshot directory: %w", err)
			}
			return catalog.WriteSnapshot(out, c)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Snapshot path (default <dataset dir>/<name>.catalog.json)")
	return cmd
}

func printCatalog(a *app, c *catalog.Catalog) {
	fmt.Fprintf(a.out, "%d instances, %d species, %d families\n",
		c.Index.Size(), len(c.Index.Species), len(c.Index.Families))
	for _, family := range c.Index.Families {
		var members []string
		for _, species := range c.Index.Species {
			if c.Index.SpeciesFamily[species] == family {
				members = append(members, fmt.Sprintf("%s (%d)", species, c.Index.SpeciesCount[species]))
			}
		}
		fmt.Fprintf(a.out, "  %-18s %s\n", family, strings.Join(members, ", "))
	}
}

// importCmd copies a CSV dataset into a BoltDB store.
func (a *app) importCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Import a CSV dataset into a spectra store",
		Long: `Read a CSV dataset and store its spectra in a BoltDB file. Names that are
already stored are replaced in place. The store can be used as a dataset
by passing its .db path to catalog or split.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := a.resolveDataset(args[0])
			dl := dataset.NewDataLoader(a.settings.HTTPTimeout)
			if err := dl.LoadFromCSV(source); err != nil {
				return err
			}

			// Reject names without a family before anything is stored.
			if _, err := catalog.Load(dl.Rows()); err != nil {
				return err
			}

			if dbPath == "" {
				dbPath = filepath.Join(a.settings.DatasetDir, dataset.Stem(source)+".db")
			}
			store, err := storage.New(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			now := time.Now().UTC()
			recs := make([]storage.SpectrumRecord, 0, dl.GetDataCount())
			for _, row := range dl.Rows() {
				recs = append(recs, storage.SpectrumRecord{Name: row.Name, Spectrum: row.Spectrum, StoredAt: now})
			}
			if err := store.StoreSpectra(recs); err != nil {
				return err
			}

			total, err := store.Count()
			if err != nil {
				return err
			}
			log.Info().Str("store", dbPath).Int("imported", len(recs)).Int("total", total).Msg("Import complete")
			fmt.Fprintf(a.out, "Imported %d spectra into %s (%d stored)\n", len(recs), dbPath, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Store path (default <dataset dir>/<name>.db)")
	return cmd
}

// splitCmd partitions a dataset into learn and test files.
func (a *app) splitCmd() *cobra.Command {
	var (
		proportion  float64
		unfamiliars []string
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "split <dataset>",
		Short: "Write learn/test partitions of a dataset",
		Long: `Split every species of a dataset so that the given proportion of its
instances goes to the learn file and the rest to the test file. Unfamiliar
species are held out of the learn file entirely.

The run is written to <output root>/<dataset>/<proportion split, description>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("proportion") {
				a.settings.LearnProportion = proportion
			}
			if cmd.Flags().Changed("seed") {
				a.settings.Seed = seed
			}
			if err := a.settings.Validate(); err != nil {
				return err
			}

			source := a.resolveDataset(args[0])
			c, err := pipeline.LoadCatalog(cmd.Context(), source, a.settings.HTTPTimeout, a.metrics)
			if err != nil {
				return err
			}

			splitter := pipeline.NewSplitter(a.settings.OutputRoot, a.confirmer(), a.metrics)
			splitter.OnProgress = logProgress
			res, err := splitter.Run(cmd.Context(), c, pipeline.SplitRequest{
				Dataset:         dataset.Stem(source),
				LearnProportion: a.settings.LearnProportion,
				Unfamiliars:     unfamiliars,
				Seed:            a.settings.ResolveSeed(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "%s\n  learn: %d  test: %d  seed: %d\n",
				res.Dir, res.Metadata.LearnCount, res.Metadata.TestCount, res.Metadata.Seed)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&proportion, "proportion", "p", common.DefaultLearnProportion, "Share of each species' instances written to the learn file")
	cmd.Flags().StringSliceVarP(&unfamiliars, "unfamiliar", "u", nil, "Species to hold out of the learn file (repeatable)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Shuffle seed (0 derives one from the clock)")
	return cmd
}

// scoreCmd scores the classifier output of a run.
func (a *app) scoreCmd() *cobra.Command {
	var resultFile string
	var raw bool
	cmd := &cobra.Command{
		Use:   "score <run dir>",
		Short: "Score classifier output of a split run",
		Long: `Read the classifier output next to the test file of a run, check that every
row echoes the expected label, and write Scores.txt, the prediction dump
and plot specs to the run's result directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("result-file") {
				a.settings.ResultFile = resultFile
			}
			if raw {
				a.settings.NormalizeFermi = false
			}
			if err := a.settings.Validate(); err != nil {
				return err
			}

			runDir := args[0]
			if _, err := split.ReadRunMetadata(runDir); err != nil {
				return fmt.Errorf("%s is not a split run: %w", runDir, err)
			}

			scorer := pipeline.NewScorer(a.settings.ResultFile, a.settings.NormalizeFermi, a.confirmer(), a.metrics)
			scorer.OnProgress = logProgress
			res, err := scorer.Run(cmd.Context(), runDir)
			if err != nil {
				return err
			}

			report.PrintSummary(a.out, res.Scorecard)
			fmt.Fprintf(a.out, "Reports written to %s\n", res.Dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&resultFile, "result-file", common.DefaultResultFile, "Classifier output file inside the run directory")
	cmd.Flags().BoolVar(&raw, "raw-fermi", false, "Plot raw target confidences instead of normalizing them")
	return cmd
}

// resolveDataset looks a bare dataset name up in the dataset directory.
// URLs and paths that exist are used as given.
func (a *app) resolveDataset(arg string) string {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return arg
	}
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	candidate := filepath.Join(a.settings.DatasetDir, arg)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return arg
}

func logProgress(phase, species string, done, total int) {
	log.Debug().
		Str("phase", phase).
		Str("species", species).
		Int("done", done).
		Int("total", total).
		Msg("Species processed")
}
