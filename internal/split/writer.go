package split

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"niobiums/internal/catalog"
	"niobiums/internal/common"
	"niobiums/internal/outdir"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrPlanMismatch means a plan was built for a different catalog than the
// one being written.
var ErrPlanMismatch = errors.New("split: plan does not match catalog")

// Manifests lists instance names per partition in the order their lines
// were written.
type Manifests struct {
	Learn []string
	Test  []string
}

// RunMetadata describes one split run. It is written next to the partition
// files and read back when the run is scored.
type RunMetadata struct {
	RunID           string        `json:"run_id"`
	Dataset         string        `json:"dataset"`
	Seed            int64         `json:"seed"`
	LearnProportion float64       `json:"learn_proportion"`
	Complement      float64       `json:"complement"`
	Unfamiliars     []string      `json:"unfamiliars"`
	Species         []SpeciesPlan `json:"species"`
	LearnCount      int           `json:"learn_count"`
	TestCount       int           `json:"test_count"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Writer emits the learn and test partitions of a plan into a run directory.
type Writer struct {
	confirm outdir.Confirmer
	// OnInstance, when set, is called once per written instance.
	OnInstance func(inst catalog.Instance, learn bool)
}

// NewWriter creates a writer that asks confirm before replacing a
// previous run's output.
func NewWriter(confirm outdir.Confirmer) *Writer {
	return &Writer{confirm: confirm}
}

// RunName builds the directory name of a run, e.g.
// "0.8-0.2 split, Control Run" or "0.75-0.25 split, No Acetone, Ethanol".
func RunName(learnProportion float64, unfamiliars []string) string {
	desc := common.ControlRunDesc
	if len(unfamiliars) > 0 {
		desc = "No " + strings.Join(unfamiliars, ", ")
	}
	return fmt.Sprintf("%s-%s split, %s",
		formatFloat(learnProportion), formatFloat(Complement(learnProportion)), desc)
}

// Write routes every catalog instance through the plan, in catalog order.
// All files are staged first and only moved into dir once complete; a
// failure leaves dir empty.
func (w *Writer) Write(dir, dataset string, seed int64, c *catalog.Catalog, plan *Plan) (*Manifests, *RunMetadata, error) {
	if err := outdir.Prepare(dir, w.confirm); err != nil {
		return nil, nil, err
	}

	staging, err := outdir.Stage(dir)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			outdir.Discard(staging)
		}
	}()

	manifests, err := w.writePartitions(staging, c, plan)
	if err != nil {
		return nil, nil, err
	}

	meta := &RunMetadata{
		RunID:           uuid.NewString(),
		Dataset:         dataset,
		Seed:            seed,
		LearnProportion: plan.LearnProportion,
		Complement:      plan.Complement,
		Unfamiliars:     plan.Unfamiliars,
		Species:         plan.Species,
		LearnCount:      len(manifests.Learn),
		TestCount:       len(manifests.Test),
		CreatedAt:       time.Now().UTC(),
	}
	if meta.Unfamiliars == nil {
		meta.Unfamiliars = []string{}
	}

	if err := writeJSON(filepath.Join(staging, common.LearnLabelsFile), manifests.Learn); err != nil {
		return nil, nil, err
	}
	if err := writeJSON(filepath.Join(staging, common.TestLabelsFile), manifests.Test); err != nil {
		return nil, nil, err
	}
	if err := writeJSON(filepath.Join(staging, common.RunMetadataFile), meta); err != nil {
		return nil, nil, err
	}
	if err := catalog.WriteSnapshot(filepath.Join(staging, common.CatalogFile), c); err != nil {
		return nil, nil, err
	}

	if err := outdir.Commit(staging, dir); err != nil {
		return nil, nil, err
	}
	committed = true

	log.Info().
		Str("dir", dir).
		Str("run_id", meta.RunID).
		Int("learn", meta.LearnCount).
		Int("test", meta.TestCount).
		Msg("Partitions written")

	return manifests, meta, nil
}

func (w *Writer) writePartitions(staging string, c *catalog.Catalog, plan *Plan) (*Manifests, error) {
	learnFile, err := os.Create(filepath.Join(staging, common.LearnFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create learn file: %w", err)
	}
	defer learnFile.Close()

	testFile, err := os.Create(filepath.Join(staging, common.TestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create test file: %w", err)
	}
	defer testFile.Close()

	learn := bufio.NewWriter(learnFile)
	test := bufio.NewWriter(testFile)
	manifests := &Manifests{Learn: []string{}, Test: []string{}}

	for _, inst := range c.Instances {
		toLearn, err := plan.Next(inst.Species)
		if err != nil {
			return nil, err
		}

		line := FormatRecord(inst)
		if toLearn {
			_, err = learn.WriteString(line)
			manifests.Learn = append(manifests.Learn, inst.Name)
		} else {
			_, err = test.WriteString(line)
			manifests.Test = append(manifests.Test, inst.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to write instance %q: %w", inst.Name, err)
		}

		if w.OnInstance != nil {
			w.OnInstance(inst, toLearn)
		}
	}

	for species, a := range plan.assignments {
		if a.Remaining() != 0 {
			return nil, fmt.Errorf("%w: species %q has %d undrawn assignments", ErrPlanMismatch, species, a.Remaining())
		}
	}

	if err := learn.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush learn file: %w", err)
	}
	if err := test.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush test file: %w", err)
	}
	if err := learnFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close learn file: %w", err)
	}
	if err := testFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close test file: %w", err)
	}
	return manifests, nil
}

// FormatRecord renders an instance as its tab-separated spectrum followed
// by its family one-hot vector.
func FormatRecord(inst catalog.Instance) string {
	fields := make([]string, 0, len(inst.Spectrum)+len(inst.Vector))
	for _, v := range inst.Spectrum {
		fields = append(fields, strconv.FormatFloat(v, 'g', -1, 64))
	}
	for _, bit := range inst.Vector {
		fields = append(fields, strconv.Itoa(bit))
	}
	return strings.Join(fields, "\t") + "\n"
}

// ReadManifest loads a name manifest written by Write.
func ReadManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return names, nil
}

// ReadRunMetadata loads the run.json of a run directory.
func ReadRunMetadata(dir string) (*RunMetadata, error) {
	path := filepath.Join(dir, common.RunMetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run metadata: %w", err)
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse run metadata: %w", err)
	}
	return &meta, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
