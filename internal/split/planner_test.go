package split

import (
	"errors"
	"fmt"
	"testing"

	"niobiums/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCatalog(t *testing.T, counts map[string]int) *catalog.Catalog {
	t.Helper()
	var rows []catalog.RawRow
	// Interleave species so catalog order differs from species order.
	for i := 1; ; i++ {
		added := false
		for _, species := range []string{"Ethanol", "Acetone", "Hexane", "Methanol", "Butanal"} {
			if i <= counts[species] {
				rows = append(rows, catalog.RawRow{
					Name:     fmt.Sprintf("%s %d", species, i),
					Spectrum: []float64{float64(i), float64(i) * 0.5},
				})
				added = true
			}
		}
		if !added {
			break
		}
	}
	c, err := catalog.Load(rows)
	require.NoError(t, err)
	return c
}

func drawAll(t *testing.T, plan *Plan, species string, n int) []bool {
	t.Helper()
	out := make([]bool, n)
	for i := range out {
		v, err := plan.Next(species)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func TestKeepCount(t *testing.T) {
	tests := []struct {
		p    float64
		n    int
		want int
	}{
		{0.8, 10, 8},
		{0.75, 2, 2},  // 1.5 rounds to even
		{0.5, 5, 2},   // 2.5 rounds to even
		{0.7, 5, 4},   // 3.5 rounds to even
		{0.1, 3, 0},   // 0.30000000000000004
		{0.3, 10, 3},  // 3.0000000000000004
		{0, 7, 0},
		{1, 7, 7},
		{0.8, 0, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v of %d", tt.p, tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, KeepCount(tt.p, tt.n))
		})
	}
}

func TestComplement(t *testing.T) {
	assert.Equal(t, 0.2, Complement(0.8))
	assert.Equal(t, 0.3, Complement(0.7))
	assert.Equal(t, 0.25, Complement(0.75))
	assert.Equal(t, 0.0, Complement(1))
}

func TestPlanner_ExactKeepCounts(t *testing.T) {
	c := buildCatalog(t, map[string]int{"Ethanol": 10, "Acetone": 4, "Hexane": 3})

	plan, err := NewPlanner(42).Plan(c.Index, 0.8, nil)
	require.NoError(t, err)

	for _, sp := range plan.Species {
		assert.Equal(t, KeepCount(0.8, sp.Count), sp.Keep, sp.Species)
		flags := drawAll(t, plan, sp.Species, sp.Count)
		assert.Equal(t, sp.Keep, countTrue(flags), sp.Species)
	}

	ethanol := plan.Species[1]
	assert.Equal(t, "Ethanol", ethanol.Species)
	assert.Equal(t, 8, ethanol.Keep)
}

func TestPlanner_Unfamiliar(t *testing.T) {
	c := buildCatalog(t, map[string]int{"Ethanol": 10, "Acetone": 4})

	plan, err := NewPlanner(7).Plan(c.Index, 0.8, []string{"Ethanol"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Ethanol"}, plan.Unfamiliars)
	assert.True(t, plan.IsUnfamiliar("Ethanol"))
	assert.False(t, plan.IsUnfamiliar("Acetone"))

	flags := drawAll(t, plan, "Ethanol", 10)
	assert.Equal(t, 0, countTrue(flags))
	assert.Equal(t, 3, countTrue(drawAll(t, plan, "Acetone", 4)))
}

func TestPlanner_UnfamiliarIgnoresProportion(t *testing.T) {
	c := buildCatalog(t, map[string]int{"Ethanol": 5})

	plan, err := NewPlanner(1).Plan(c.Index, 1, []string{"Ethanol", "Ethanol"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ethanol"}, plan.Unfamiliars)
	assert.Equal(t, 0, countTrue(drawAll(t, plan, "Ethanol", 5)))
}

func TestPlanner_Exhaustion(t *testing.T) {
	c := buildCatalog(t, map[string]int{"Acetone": 2})

	plan, err := NewPlanner(3).Plan(c.Index, 0.5, nil)
	require.NoError(t, err)

	drawAll(t, plan, "Acetone", 2)
	_, err = plan.Next("Acetone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlanExhausted))

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "Acetone", exhausted.Species)
	assert.Equal(t, 2, exhausted.Count)

	_, err = plan.Next("Unobtainium")
	assert.ErrorIs(t, err, ErrPlanExhausted)
}

func TestPlanner_Deterministic(t *testing.T) {
	c := buildCatalog(t, map[string]int{"Ethanol": 10, "Acetone": 9, "Hexane": 7})

	a, err := NewPlanner(99).Plan(c.Index, 0.6, nil)
	require.NoError(t, err)
	b, err := NewPlanner(99).Plan(c.Index, 0.6, nil)
	require.NoError(t, err)

	for _, sp := range a.Species {
		assert.Equal(t, drawAll(t, a, sp.Species, sp.Count), drawAll(t, b, sp.Species, sp.Count), sp.Species)
	}
}

func TestPlanner_InvalidInput(t *testing.T) {
	c := buildCatalog(t, map[string]int{"Ethanol": 2})
	p := NewPlanner(1)

	_, err := p.Plan(c.Index, 1.2, nil)
	assert.ErrorIs(t, err, ErrInvalidProportion)
	_, err = p.Plan(c.Index, -0.1, nil)
	assert.ErrorIs(t, err, ErrInvalidProportion)
	_, err = p.Plan(c.Index, 0.5, []string{"Acetone"})
	assert.ErrorIs(t, err, ErrUnknownSpecies)
}

func TestPlanner_OnSpecies(t *testing.T) {
	c := buildCatalog(t, map[string]int{"Ethanol": 2, "Acetone": 1, "Hexane": 1})

	var seen []string
	p := NewPlanner(5)
	p.OnSpecies = func(sp SpeciesPlan) { seen = append(seen, sp.Species) }

	_, err := p.Plan(c.Index, 0.5, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acetone", "Ethanol", "Hexane"}, seen)
	assert.Equal(t, int64(5), p.Seed())
}
