package scoring

import (
	"fmt"
	"testing"

	"niobiums/internal/catalog"
	"niobiums/internal/results"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Families: Alcohols, Ketones. Species: Acetone, Butanone, Ethanol, Methanol.
func testIndex(t *testing.T) *catalog.Index {
	t.Helper()
	c, err := catalog.Load([]catalog.RawRow{
		{Name: "Ethanol 1"}, {Name: "Methanol 1"},
		{Name: "Acetone 1"}, {Name: "Butanone 1"},
	})
	require.NoError(t, err)
	return c.Index
}

func record(t *testing.T, idx *catalog.Index, name string, predictions ...float64) results.Record {
	t.Helper()
	species, family, err := catalog.Derive(name)
	require.NoError(t, err)
	target, ok := idx.Position(family)
	require.True(t, ok)
	return results.Record{
		Name:        name,
		Species:     species,
		Family:      family,
		Target:      target,
		OneHot:      idx.OneHot(family),
		Predictions: predictions,
	}
}

func ethanolRecords(t *testing.T, idx *catalog.Index) []results.Record {
	return []results.Record{
		record(t, idx, "Ethanol 1", 0.9, 0.1),
		record(t, idx, "Ethanol 2", 0.4, 0.6),
		record(t, idx, "Ethanol 3", 0.7, 0.3),
		record(t, idx, "Ethanol 4", 0.9, 0.9),
	}
}

func TestHierarchy_GetOrInsert(t *testing.T) {
	h := NewHierarchy()
	a := h.GetOrInsert("Alcohols", "Ethanol")
	b := h.GetOrInsert("Alcohols", "Ethanol")
	assert.Same(t, a, b)

	h.GetOrInsert("Ketones", "Acetone")
	h.GetOrInsert("Alcohols", "Butanol")
	assert.Equal(t, []string{"Alcohols", "Ketones"}, h.Families())
	assert.Equal(t, []string{"Butanol", "Ethanol"}, h.Species("Alcohols"))

	_, ok := h.Lookup("Ketones", "Ethanol")
	assert.False(t, ok)
}

func TestScore_AccuracyExample(t *testing.T) {
	idx := testIndex(t)
	agg := NewAggregator(idx)
	agg.FoldAll(ethanolRecords(t, idx))

	card := agg.Score()
	ethanol, ok := card.Species("Ethanol")
	require.True(t, ok)

	assert.Equal(t, 3, ethanol.Correct)
	assert.Equal(t, 4, ethanol.Total)
	assert.True(t, ethanol.Defined)
	assert.Equal(t, 0.75, ethanol.Accuracy)

	// Sorted [0.9, 0.9, 0.7, 0.4] then min-max normalized.
	assert.True(t, ethanol.Normalized)
	assert.InDeltaSlice(t, []float64{1, 1, 0.6, 0}, ethanol.Fermi, 1e-9)
	assert.InDeltaSlice(t, []float64{0.725, 0.475}, ethanol.StandardizedSum, 1e-9)
	assert.Equal(t, []string{"Ethanol 1", "Ethanol 2", "Ethanol 3", "Ethanol 4"}, ethanol.Names)

	summary, ok := agg.Hierarchy().Lookup("Alcohols", "Ethanol")
	require.True(t, ok)
	assert.Equal(t, []float64{0.9, 0.4, 0.7, 0.9}, summary.TargetConfidences)
}

func TestScore_FermiWithoutNormalization(t *testing.T) {
	idx := testIndex(t)
	agg := NewAggregator(idx)
	agg.NormalizeFermi = false
	agg.FoldAll(ethanolRecords(t, idx))

	ethanol, _ := agg.Score().Species("Ethanol")
	assert.False(t, ethanol.Normalized)
	assert.Equal(t, []float64{0.9, 0.9, 0.7, 0.4}, ethanol.Fermi)
}

func TestScore_DegenerateFermi(t *testing.T) {
	idx := testIndex(t)
	agg := NewAggregator(idx)
	agg.FoldAll([]results.Record{
		record(t, idx, "Acetone 1", 0, 1),
		record(t, idx, "Acetone 2", 0, 1),
	})

	acetone, ok := agg.Score().Species("Acetone")
	require.True(t, ok)
	assert.False(t, acetone.Normalized)
	assert.Equal(t, []float64{1, 1}, acetone.Fermi)
	assert.Equal(t, 1.0, acetone.Accuracy)
}

func TestScore_UndefinedSpecies(t *testing.T) {
	idx := testIndex(t)
	agg := NewAggregator(idx)
	agg.FoldAll(append(ethanolRecords(t, idx), record(t, idx, "Acetone 1", 0.2, 0.8)))

	card := agg.Score()

	methanol, ok := card.Species("Methanol")
	require.True(t, ok)
	assert.False(t, methanol.Defined)
	assert.Zero(t, methanol.Total)
	assert.Empty(t, methanol.Fermi)
	assert.Nil(t, methanol.StandardizedSum)

	require.Len(t, card.Families, 2)
	alcohols := card.Families[0]
	assert.Equal(t, "Alcohols", alcohols.Family)
	assert.True(t, alcohols.Defined)
	// Methanol is excluded from the family average.
	assert.Equal(t, 0.75, alcohols.Average)
	assert.Equal(t, "Methanol", alcohols.Species[len(alcohols.Species)-1].Species)

	ketones := card.Families[1]
	assert.Equal(t, 1.0, ketones.Average)

	assert.Equal(t, 4, card.Correct)
	assert.Equal(t, 5, card.Total)
	assert.InDelta(t, 0.8, card.Accuracy, 1e-9)
	assert.InDelta(t, 0.875, card.MeanFamilyAverage, 1e-9)
}

func TestScore_NothingEvaluated(t *testing.T) {
	agg := NewAggregator(testIndex(t))
	card := agg.Score()

	assert.False(t, card.AccuracyDefined)
	assert.False(t, card.MeanDefined)
	for _, f := range card.Families {
		assert.False(t, f.Defined, f.Family)
	}
}

func TestScore_RankingAndTies(t *testing.T) {
	idx := testIndex(t)
	agg := NewAggregator(idx)
	agg.FoldAll([]results.Record{
		record(t, idx, "Methanol 1", 0.5, 0.5), // tie counts as correct
		record(t, idx, "Ethanol 1", 0.1, 0.9),
		record(t, idx, "Butanone 1", 0.3, 0.7),
		record(t, idx, "Acetone 1", 0.3, 0.7),
	})

	card := agg.Score()
	var alcohols, ketones []string
	for _, sp := range card.Families[0].Species {
		alcohols = append(alcohols, sp.Species)
	}
	for _, sp := range card.Families[1].Species {
		ketones = append(ketones, sp.Species)
	}
	assert.Equal(t, []string{"Methanol", "Ethanol"}, alcohols)
	assert.Equal(t, []string{"Acetone", "Butanone"}, ketones)
}

func TestScore_OnSpecies(t *testing.T) {
	idx := testIndex(t)
	agg := NewAggregator(idx)
	var seen []string
	agg.OnSpecies = func(sc SpeciesScore) { seen = append(seen, sc.Species) }
	agg.Score()

	assert.Equal(t, []string{"Ethanol", "Methanol", "Acetone", "Butanone"}, seen)
}

func TestScore_Idempotent(t *testing.T) {
	idx := testIndex(t)
	var recs []results.Record
	for i := 1; i <= 6; i++ {
		recs = append(recs,
			record(t, idx, fmt.Sprintf("Ethanol %d", i), float64(i)/10, 1-float64(i)/10),
			record(t, idx, fmt.Sprintf("Acetone %d", i), 0.5, float64(i)/6),
		)
	}

	a := NewAggregator(idx)
	a.FoldAll(recs)
	b := NewAggregator(idx)
	b.FoldAll(recs)

	if diff := cmp.Diff(a.Hierarchy(), b.Hierarchy(), cmp.AllowUnexported(Hierarchy{})); diff != "" {
		t.Errorf("hierarchies differ (-a +b):\n%s", diff)
	}
	first := a.Score()
	if diff := cmp.Diff(first, b.Score()); diff != "" {
		t.Errorf("scorecards differ (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(first, a.Score()); diff != "" {
		t.Errorf("rescoring changed the card (-first +second):\n%s", diff)
	}
	assert.Equal(t, 12, a.Records())
}

func TestNormalize(t *testing.T) {
	v := []float64{3, 2, 1}
	assert.True(t, Normalize(v))
	assert.Equal(t, []float64{1, 0.5, 0}, v)

	assert.False(t, Normalize(nil))
	same := []float64{0.4, 0.4}
	assert.False(t, Normalize(same))
	assert.Equal(t, []float64{0.4, 0.4}, same)
}
