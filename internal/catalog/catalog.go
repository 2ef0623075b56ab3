// Package catalog turns labelled spectrum rows into instances with derived
// species and family labels, and builds the category index that fixes the
// one-hot bit positions shared by the partition files and the model output.
package catalog

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// RawRow is one measurement as delivered by a dataset source.
type RawRow struct {
	Name     string    `json:"name"`
	Spectrum []float64 `json:"spectrum"`
}

// Instance is one measured spectrum with its derived labels.
type Instance struct {
	Name     string    `json:"name"`
	Species  string    `json:"species"`
	Family   string    `json:"family"`
	Spectrum []float64 `json:"spectrum"`
	Vector   []int     `json:"vector"` // family one-hot, ordered as Index.Families
}

// Index is derived from a catalog and is read-only once built.
type Index struct {
	Species       []string
	Families      []string
	FamilyMapping map[string][]int
	SpeciesCount  map[string]int
	SpeciesFamily map[string]string
	position      map[string]int
}

// Catalog holds every instance of a dataset in load order together with the
// index its one-hot vectors were computed against.
type Catalog struct {
	Instances []Instance
	Index     *Index
}

// Load derives species and family for every row and builds the index.
// Any name without a recognised family suffix aborts the load.
func Load(rows []RawRow) (*Catalog, error) {
	instances := make([]Instance, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		if _, dup := seen[row.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, row.Name)
		}
		seen[row.Name] = struct{}{}

		species, family, err := Derive(row.Name)
		if err != nil {
			return nil, err
		}

		spectrum := make([]float64, len(row.Spectrum))
		copy(spectrum, row.Spectrum)
		instances = append(instances, Instance{
			Name:     row.Name,
			Species:  species,
			Family:   family,
			Spectrum: spectrum,
		})
	}

	idx := BuildIndex(instances)
	for i := range instances {
		instances[i].Vector = idx.OneHot(instances[i].Family)
	}

	log.Info().
		Int("instances", len(instances)).
		Int("species", len(idx.Species)).
		Int("families", len(idx.Families)).
		Msg("Catalog built")

	return &Catalog{Instances: instances, Index: idx}, nil
}

// BuildIndex collects the sorted species and family lists of the given
// instances. The sort order defines the one-hot bit positions.
func BuildIndex(instances []Instance) *Index {
	idx := &Index{
		FamilyMapping: make(map[string][]int),
		SpeciesCount:  make(map[string]int),
		SpeciesFamily: make(map[string]string),
		position:      make(map[string]int),
	}

	families := make(map[string]struct{})
	for _, inst := range instances {
		if _, ok := idx.SpeciesCount[inst.Species]; !ok {
			idx.Species = append(idx.Species, inst.Species)
		}
		idx.SpeciesCount[inst.Species]++
		idx.SpeciesFamily[inst.Species] = inst.Family
		families[inst.Family] = struct{}{}
	}
	for family := range families {
		idx.Families = append(idx.Families, family)
	}
	sort.Strings(idx.Species)
	sort.Strings(idx.Families)

	for i, family := range idx.Families {
		idx.position[family] = i
		vector := make([]int, len(idx.Families))
		vector[i] = 1
		idx.FamilyMapping[family] = vector
	}
	return idx
}

// OneHot returns a fresh copy of the family's indicator vector, or nil for a
// family the index does not know.
func (x *Index) OneHot(family string) []int {
	vector, ok := x.FamilyMapping[family]
	if !ok {
		return nil
	}
	out := make([]int, len(vector))
	copy(out, vector)
	return out
}

// Position returns the one-hot bit position of a family.
func (x *Index) Position(family string) (int, bool) {
	pos, ok := x.position[family]
	return pos, ok
}

// FamilyOfSpecies looks up the family a species was filed under.
func (x *Index) FamilyOfSpecies(species string) (string, bool) {
	family, ok := x.SpeciesFamily[species]
	return family, ok
}

// HasSpecies reports whether the species occurs in the catalog.
func (x *Index) HasSpecies(species string) bool {
	_, ok := x.SpeciesCount[species]
	return ok
}

// Size returns the number of instances the index was built from.
func (x *Index) Size() int {
	total := 0
	for _, n := range x.SpeciesCount {
		total += n
	}
	return total
}
