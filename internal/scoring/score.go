package scoring

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// SpeciesScore is the finalized result of one species.
type SpeciesScore struct {
	Family   string
	Species  string
	Correct  int
	Total    int
	Accuracy float64
	// Defined is false when the species had no evaluation instances.
	Defined bool
	// Fermi is the descending target-confidence distribution.
	Fermi      []float64
	Normalized bool
	// StandardizedSum is the element-wise mean of all prediction vectors.
	StandardizedSum []float64
	Names           []string
	Predictions     [][]float64
}

// FamilyScore ranks the species of one family by descending accuracy.
type FamilyScore struct {
	Family  string
	Species []SpeciesScore
	Average float64
	Defined bool
}

// Scorecard is the outcome of one scoring pass.
type Scorecard struct {
	Families []FamilyScore
	Correct  int
	Total    int
	// Accuracy pools every evaluated instance across species.
	Accuracy        float64
	AccuracyDefined bool
	// MeanFamilyAverage averages the defined family averages.
	MeanFamilyAverage float64
	MeanDefined       bool
}

// Species finds a species score by name.
func (s *Scorecard) Species(name string) (SpeciesScore, bool) {
	for _, f := range s.Families {
		for _, sp := range f.Species {
			if sp.Species == name {
				return sp, true
			}
		}
	}
	return SpeciesScore{}, false
}

// Score finalizes every species summary. Summaries are not modified, so
// scoring twice gives the same card.
func (a *Aggregator) Score() *Scorecard {
	card := &Scorecard{}
	var familyAverages []float64

	for _, family := range a.hierarchy.Families() {
		fs := FamilyScore{Family: family}
		var accuracies []float64

		for _, species := range a.hierarchy.Species(family) {
			summary, _ := a.hierarchy.Lookup(family, species)
			sc := scoreSpecies(summary, a.NormalizeFermi)
			if sc.Defined {
				accuracies = append(accuracies, sc.Accuracy)
			} else {
				log.Warn().Str("species", species).Msg("No evaluation instances, accuracy undefined")
			}
			card.Correct += sc.Correct
			card.Total += sc.Total
			fs.Species = append(fs.Species, sc)

			if a.OnSpecies != nil {
				a.OnSpecies(sc)
			}
		}

		rankSpecies(fs.Species)
		if len(accuracies) > 0 {
			fs.Average = mean(accuracies)
			fs.Defined = true
			familyAverages = append(familyAverages, fs.Average)
		}
		card.Families = append(card.Families, fs)
	}

	if card.Total > 0 {
		card.Accuracy = float64(card.Correct) / float64(card.Total)
		card.AccuracyDefined = true
	}
	if len(familyAverages) > 0 {
		card.MeanFamilyAverage = mean(familyAverages)
		card.MeanDefined = true
	}

	log.Info().
		Int("families", len(card.Families)).
		Int("correct", card.Correct).
		Int("total", card.Total).
		Msg("Scoring complete")
	return card
}

func scoreSpecies(s *SpeciesSummary, normalize bool) SpeciesScore {
	sc := SpeciesScore{
		Family:          s.Family,
		Species:         s.Species,
		Correct:         s.Correct,
		Total:           s.Total,
		Names:           append([]string(nil), s.Names...),
		Predictions:     copyRows(s.Predictions),
		StandardizedSum: columnMeans(s.Predictions),
	}
	if s.Total > 0 {
		sc.Accuracy = float64(s.Correct) / float64(s.Total)
		sc.Defined = true
	}

	sc.Fermi = append([]float64{}, s.TargetConfidences...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sc.Fermi)))
	if normalize {
		sc.Normalized = Normalize(sc.Fermi)
	}
	return sc
}

// rankSpecies orders defined scores by descending accuracy, then name, and
// puts undefined scores last.
func rankSpecies(scores []SpeciesScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Defined != b.Defined {
			return a.Defined
		}
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		return a.Species < b.Species
	})
}

// Normalize rescales values in place to [0, 1] by min-max. It does nothing
// and returns false when all values are equal or there are none.
func Normalize(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return false
	}
	for i, v := range values {
		values[i] = (v - lo) / (hi - lo)
	}
	return true
}

func columnMeans(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, len(rows[0]))
	for _, row := range rows {
		for i := range out {
			out[i] += row[i]
		}
	}
	for i := range out {
		out[i] /= float64(len(rows))
	}
	return out
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
