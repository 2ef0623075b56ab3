// Package split decides, per species, which instances go to the training
// partition and which to the evaluation partition, and writes both
// partitions plus their name manifests.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"niobiums/internal/catalog"
	"niobiums/internal/common"

	"github.com/rs/zerolog/log"
)

var (
	// ErrPlanExhausted means more assignments were drawn for a species than
	// it has instances: the plan and the catalog disagree.
	ErrPlanExhausted     = errors.New("split: assignment sequence exhausted")
	ErrInvalidProportion = errors.New("split: learn proportion must be within [0, 1]")
	ErrUnknownSpecies    = errors.New("split: unknown species")
)

// ExhaustedError names the species whose assignments ran out.
type ExhaustedError struct {
	Species string
	Count   int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("split: species %q has only %d assignments", e.Species, e.Count)
}

func (e *ExhaustedError) Unwrap() error { return ErrPlanExhausted }

// Assignment is the shuffled train/evaluation sequence of one species,
// consumed front to back, one decision per instance.
type Assignment struct {
	species string
	flags   []bool
	pos     int
}

// Next returns true when the next instance of the species goes to training.
func (a *Assignment) Next() (bool, error) {
	if a.pos >= len(a.flags) {
		return false, &ExhaustedError{Species: a.species, Count: len(a.flags)}
	}
	v := a.flags[a.pos]
	a.pos++
	return v, nil
}

// Remaining returns how many decisions are left.
func (a *Assignment) Remaining() int { return len(a.flags) - a.pos }

// SpeciesPlan is the split decision for one species.
type SpeciesPlan struct {
	Species    string `json:"species"`
	Count      int    `json:"count"`
	Keep       int    `json:"keep"`
	Unfamiliar bool   `json:"unfamiliar,omitempty"`
}

// Plan holds the per-species keep counts and assignment sequences of one
// split request. It is single use.
type Plan struct {
	LearnProportion float64
	Complement      float64
	Unfamiliars     []string
	Species         []SpeciesPlan
	assignments     map[string]*Assignment
}

// Next draws the next decision for an instance of the given species.
func (p *Plan) Next(species string) (bool, error) {
	a, ok := p.assignments[species]
	if !ok {
		return false, &ExhaustedError{Species: species}
	}
	return a.Next()
}

// IsUnfamiliar reports whether the species was excluded from training.
func (p *Plan) IsUnfamiliar(species string) bool {
	for _, s := range p.Unfamiliars {
		if s == species {
			return true
		}
	}
	return false
}

// Planner draws shuffled assignment sequences from a seeded source, so a
// fixed seed and catalog always produce the same split.
type Planner struct {
	seed int64
	rng  *rand.Rand
	// OnSpecies, when set, is called after each species has been planned.
	OnSpecies func(SpeciesPlan)
}

// NewPlanner creates a planner seeded with seed.
func NewPlanner(seed int64) *Planner {
	return &Planner{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the planner was created with.
func (p *Planner) Seed() int64 { return p.seed }

// Plan computes keep counts for every species of the index and shuffles an
// assignment sequence holding exactly that many training decisions.
// Unfamiliar species keep nothing.
func (p *Planner) Plan(idx *catalog.Index, learnProportion float64, unfamiliars []string) (*Plan, error) {
	if math.IsNaN(learnProportion) || learnProportion < common.MinLearnProportion || learnProportion > common.MaxLearnProportion {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidProportion, learnProportion)
	}

	excluded := make(map[string]bool, len(unfamiliars))
	for _, s := range unfamiliars {
		if !idx.HasSpecies(s) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSpecies, s)
		}
		excluded[s] = true
	}
	sortedUnfamiliars := make([]string, 0, len(excluded))
	for s := range excluded {
		sortedUnfamiliars = append(sortedUnfamiliars, s)
	}
	sort.Strings(sortedUnfamiliars)

	plan := &Plan{
		LearnProportion: learnProportion,
		Complement:      Complement(learnProportion),
		Unfamiliars:     sortedUnfamiliars,
		assignments:     make(map[string]*Assignment, len(idx.Species)),
	}

	// idx.Species is sorted, which keeps the draw order stable for a seed.
	for _, species := range idx.Species {
		n := idx.SpeciesCount[species]
		keep := 0
		if !excluded[species] {
			keep = KeepCount(learnProportion, n)
		}

		flags := make([]bool, n)
		for i := 0; i < keep; i++ {
			flags[i] = true
		}
		p.rng.Shuffle(n, func(i, j int) { flags[i], flags[j] = flags[j], flags[i] })

		plan.assignments[species] = &Assignment{species: species, flags: flags}
		sp := SpeciesPlan{
			Species:    species,
			Count:      n,
			Keep:       keep,
			Unfamiliar: excluded[species],
		}
		plan.Species = append(plan.Species, sp)
		if p.OnSpecies != nil {
			p.OnSpecies(sp)
		}

		log.Debug().Str("species", species).Int("count", n).Int("keep", keep).Msg("Species planned")
	}

	return plan, nil
}

// KeepCount returns how many of n instances are retained for training at
// the given proportion. The product is first rounded to four decimals to
// absorb float error, then rounded half to even.
func KeepCount(learnProportion float64, n int) int {
	if n <= 0 {
		return 0
	}
	product := roundTo(learnProportion*float64(n), common.ComplementDigits)
	keep := int(math.RoundToEven(product))
	if keep > n {
		keep = n
	}
	if keep < 0 {
		keep = 0
	}
	return keep
}

// Complement returns 1 - p rounded to four decimals.
func Complement(learnProportion float64) float64 {
	return roundTo(1-learnProportion, common.ComplementDigits)
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
