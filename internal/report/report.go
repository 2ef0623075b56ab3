// Package report writes the scoring artifacts of a run: the text score
// file, the hierarchical prediction dump and renderer-neutral plot specs.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"niobiums/internal/common"
	"niobiums/internal/scoring"

	"github.com/rs/zerolog/log"
)

// SpeciesPredictions holds every instance vector of a species plus their
// element-wise mean.
type SpeciesPredictions struct {
	Instances       map[string][]float64 `json:"instances"`
	StandardizedSum []float64            `json:"standardized_summation,omitempty"`
}

// PredictionDump is the content of predictions.json.
type PredictionDump struct {
	Families    []string                                 `json:"families"`
	Predictions map[string]map[string]SpeciesPredictions `json:"predictions"`
}

// Reporter generates scoring reports
type Reporter struct {
	card       *scoring.Scorecard
	families   []string
	outputPath string

	unfamiliars   []string
	unfamiliarDir string
}

// NewReporter creates a reporter writing into outputPath. families is the
// index family order, used to label prediction vectors.
func NewReporter(card *scoring.Scorecard, families []string, outputPath string) *Reporter {
	return &Reporter{
		card:       card,
		families:   families,
		outputPath: outputPath,
	}
}

// WithUnfamiliars makes the reporter copy the plot specs of the given
// species into dir as well.
func (r *Reporter) WithUnfamiliars(dir string, species []string) *Reporter {
	r.unfamiliarDir = dir
	r.unfamiliars = species
	return r
}

// GenerateReport generates all report files
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateScores(); err != nil {
		return err
	}

	if err := r.generatePredictions(); err != nil {
		return err
	}

	plots := BuildPlotFile(r.card, r.families)
	if err := r.generatePlots(plots); err != nil {
		return err
	}

	return r.copyUnfamiliarPlots(plots)
}

// generateScores writes the per-family score listing
func (r *Reporter) generateScores() error {
	scoresPath := filepath.Join(r.outputPath, common.ScoresFile)
	file, err := os.Create(scoresPath)
	if err != nil {
		return fmt.Errorf("failed to create score file: %w", err)
	}
	defer file.Close()

	if err := WriteScores(file, r.card); err != nil {
		return fmt.Errorf("failed to write score file: %w", err)
	}

	log.Info().Str("file", scoresPath).Msg("Score file generated")
	return nil
}

// WriteScores renders the score listing: one underlined block per family
// with species in descending accuracy and the family average, then an
// overall block.
func WriteScores(w io.Writer, card *scoring.Scorecard) error {
	var b strings.Builder
	for _, f := range card.Families {
		writeHeader(&b, f.Family)
		for _, sc := range f.Species {
			fmt.Fprintf(&b, "%s : %s\n", sc.Species, formatScore(sc.Accuracy, sc.Defined))
		}
		fmt.Fprintf(&b, "AVERAGE : %s\n\n", formatScore(f.Average, f.Defined))
	}

	writeHeader(&b, "OVERALL")
	fmt.Fprintf(&b, "Accuracy : %s (%d/%d)\n", formatScore(card.Accuracy, card.AccuracyDefined), card.Correct, card.Total)
	fmt.Fprintf(&b, "Family Mean : %s\n", formatScore(card.MeanFamilyAverage, card.MeanDefined))

	_, err := io.WriteString(w, b.String())
	return err
}

func writeHeader(b *strings.Builder, title string) {
	rule := strings.Repeat("-", 20)
	fmt.Fprintf(b, "%s\n%s\n%s\n", rule, title, rule)
}

func formatScore(v float64, defined bool) string {
	if !defined {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

// generatePredictions dumps family → species → instance → vector
func (r *Reporter) generatePredictions() error {
	dump := PredictionDump{
		Families:    r.families,
		Predictions: make(map[string]map[string]SpeciesPredictions),
	}
	for _, f := range r.card.Families {
		bySpecies := make(map[string]SpeciesPredictions, len(f.Species))
		for _, sc := range f.Species {
			instances := make(map[string][]float64, len(sc.Names))
			for i, name := range sc.Names {
				instances[name] = sc.Predictions[i]
			}
			bySpecies[sc.Species] = SpeciesPredictions{
				Instances:       instances,
				StandardizedSum: sc.StandardizedSum,
			}
		}
		dump.Predictions[f.Family] = bySpecies
	}

	path := filepath.Join(r.outputPath, common.PredictionsFile)
	if err := writeJSON(path, dump); err != nil {
		return err
	}
	log.Info().Str("file", path).Msg("Prediction dump generated")
	return nil
}

func (r *Reporter) generatePlots(plots PlotFile) error {
	path := filepath.Join(r.outputPath, common.PlotsFile)
	if err := writeJSON(path, plots); err != nil {
		return err
	}
	log.Info().Str("file", path).Int("species", len(plots.Species)).Msg("Plot specs generated")
	return nil
}

// copyUnfamiliarPlots puts the plots of unfamiliar species into a folder
// shared by every run of the dataset.
func (r *Reporter) copyUnfamiliarPlots(plots PlotFile) error {
	if len(r.unfamiliars) == 0 || r.unfamiliarDir == "" {
		return nil
	}
	wanted := make(map[string]bool, len(r.unfamiliars))
	for _, s := range r.unfamiliars {
		wanted[s] = true
	}

	if err := os.MkdirAll(r.unfamiliarDir, 0755); err != nil {
		return fmt.Errorf("failed to create unfamiliar plot directory: %w", err)
	}
	for _, sp := range plots.Species {
		if !wanted[sp.Species] {
			continue
		}
		path := filepath.Join(r.unfamiliarDir, sp.Species+".json")
		if err := writeJSON(path, sp); err != nil {
			return err
		}
		log.Info().Str("file", path).Msg("Unfamiliar plots copied")
	}
	return nil
}

// ReadPredictions loads a prediction dump for re-analysis.
func ReadPredictions(path string) (*PredictionDump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction dump: %w", err)
	}
	var dump PredictionDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("failed to parse prediction dump: %w", err)
	}
	return &dump, nil
}

// PrintSummary prints family averages and the overall accuracy
func PrintSummary(w io.Writer, card *scoring.Scorecard) {
	fmt.Fprintln(w, "\n=== SCORES ===")
	for _, f := range card.Families {
		fmt.Fprintf(w, "%-20s %s\n", f.Family, formatScore(f.Average, f.Defined))
	}
	fmt.Fprintf(w, "%-20s %s (%d/%d)\n", "Overall", formatScore(card.Accuracy, card.AccuracyDefined), card.Correct, card.Total)
	fmt.Fprintf(w, "%-20s %s\n", "Family Mean", formatScore(card.MeanFamilyAverage, card.MeanDefined))
	fmt.Fprintln(w, "==============")
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
