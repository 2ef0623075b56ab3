// Package scoring folds validated prediction records into a
// family → species hierarchy and turns it into accuracy scores and
// target-confidence (Fermi) distributions.
package scoring

import (
	"sort"

	"niobiums/internal/catalog"
	"niobiums/internal/results"

	"github.com/rs/zerolog/log"
)

// SpeciesSummary accumulates the records of one species in fold order.
type SpeciesSummary struct {
	Family            string
	Species           string
	Names             []string
	Predictions       [][]float64
	TargetConfidences []float64
	Correct           int
	Total             int
}

// add appends one record. A record is correct when its target confidence is
// not exceeded by any other confidence, so ties count as correct.
func (s *SpeciesSummary) add(rec results.Record) {
	target := rec.TargetConfidence()

	s.Names = append(s.Names, rec.Name)
	s.Predictions = append(s.Predictions, append([]float64(nil), rec.Predictions...))
	s.TargetConfidences = append(s.TargetConfidences, target)
	s.Total++

	for _, v := range rec.Predictions {
		if v > target {
			return
		}
	}
	s.Correct++
}

// Hierarchy is the family → species → summary mapping of one scoring pass.
type Hierarchy struct {
	families map[string]map[string]*SpeciesSummary
}

// NewHierarchy returns an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{families: make(map[string]map[string]*SpeciesSummary)}
}

// GetOrInsert returns the summary for species within family, creating an
// empty one on first use.
func (h *Hierarchy) GetOrInsert(family, species string) *SpeciesSummary {
	byName, ok := h.families[family]
	if !ok {
		byName = make(map[string]*SpeciesSummary)
		h.families[family] = byName
	}
	s, ok := byName[species]
	if !ok {
		s = &SpeciesSummary{Family: family, Species: species}
		byName[species] = s
	}
	return s
}

// Lookup returns the summary for species within family, if present.
func (h *Hierarchy) Lookup(family, species string) (*SpeciesSummary, bool) {
	s, ok := h.families[family][species]
	return s, ok
}

// Families returns the family names in sorted order.
func (h *Hierarchy) Families() []string {
	out := make([]string, 0, len(h.families))
	for f := range h.families {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Species returns the species of a family in sorted order.
func (h *Hierarchy) Species(family string) []string {
	byName := h.families[family]
	out := make([]string, 0, len(byName))
	for s := range byName {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Aggregator folds prediction records for one scoring pass. Every species of
// the index is present from the start, so a species without evaluation
// instances still shows up in the scores, as undefined.
type Aggregator struct {
	hierarchy *Hierarchy
	records   int

	// NormalizeFermi min-max normalizes each Fermi distribution.
	NormalizeFermi bool
	// OnSpecies, when set, is called after each species has been scored.
	OnSpecies func(SpeciesScore)
}

// NewAggregator creates an aggregator seeded with every species of idx.
func NewAggregator(idx *catalog.Index) *Aggregator {
	h := NewHierarchy()
	for _, species := range idx.Species {
		h.GetOrInsert(idx.SpeciesFamily[species], species)
	}
	return &Aggregator{hierarchy: h, NormalizeFermi: true}
}

// Fold adds one record to its species summary.
func (a *Aggregator) Fold(rec results.Record) {
	a.hierarchy.GetOrInsert(rec.Family, rec.Species).add(rec)
	a.records++
}

// FoldAll folds records in order.
func (a *Aggregator) FoldAll(records []results.Record) {
	for _, rec := range records {
		a.Fold(rec)
	}
	log.Debug().Int("records", len(records)).Int("total", a.records).Msg("Records folded")
}

// Hierarchy exposes the accumulated summaries.
func (a *Aggregator) Hierarchy() *Hierarchy { return a.hierarchy }

// Records returns how many records have been folded.
func (a *Aggregator) Records() int { return a.records }
