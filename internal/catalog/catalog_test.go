package catalog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeciesOf(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Ethanol 1", "Ethanol"},
		{"Ethanol-12", "Ethanol"},
		{"Ethanol 3  ", "Ethanol"},
		{"Ethanol", "Ethanol"},
		{"2-Butanone 4", "2-Butanone"},
		{"Diethyl Ether 10", "Diethyl Ether"},
		{"Hexane10", "Hexane10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpeciesOf(tt.name))
		})
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		species string
		family  string
	}{
		{"Ethyl Acetate 2", "Ethyl Acetate", "Acetates"},
		{"Ethanol 1", "Ethanol", "Alcohols"},
		{"Butanal 5", "Butanal", "Aldehydes"},
		{"Hexane 2", "Hexane", "Alkanes"},
		{"Cyclohexene-1", "Cyclohexene", "Alkenes"},
		{"Propyne 7", "Propyne", "Alkynes"},
		{"Triethylamine 3", "Triethylamine", "Amines"},
		{"Butanoic Acid 1", "Butanoic Acid", "Carboxylic Acids"},
		{"Diethyl ETHER 2", "Diethyl ETHER", "Ethers"},
		{"Pinacolone 1", "Pinacolone", "Ketones"},
		{"Acetone 9", "Acetone", "Ketones"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			species, family, err := Derive(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.species, species)
			assert.Equal(t, tt.family, family)
		})
	}
}

func TestDerive_UnknownSuffix(t *testing.T) {
	_, _, err := Derive("Water 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDerivation))

	var derr *DerivationError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "Water 1", derr.Name)
	assert.Equal(t, "Water", derr.Species)

	_, _, err = Derive("   ")
	assert.ErrorIs(t, err, ErrDerivation)
}

func sampleRows() []RawRow {
	return []RawRow{
		{Name: "Ethanol 1", Spectrum: []float64{1, 2}},
		{Name: "Acetone 1", Spectrum: []float64{3, 4}},
		{Name: "Ethanol 2", Spectrum: []float64{5, 6}},
		{Name: "Methanol 1", Spectrum: []float64{7, 8}},
		{Name: "Hexane 1", Spectrum: []float64{9, 10}},
	}
}

func TestLoad(t *testing.T) {
	c, err := Load(sampleRows())
	require.NoError(t, err)

	assert.Equal(t, []string{"Acetone", "Ethanol", "Hexane", "Methanol"}, c.Index.Species)
	assert.Equal(t, []string{"Alcohols", "Alkanes", "Ketones"}, c.Index.Families)
	assert.Equal(t, map[string]int{"Acetone": 1, "Ethanol": 2, "Hexane": 1, "Methanol": 1}, c.Index.SpeciesCount)
	assert.Equal(t, len(c.Instances), c.Index.Size())

	wantMapping := map[string][]int{
		"Alcohols": {1, 0, 0},
		"Alkanes":  {0, 1, 0},
		"Ketones":  {0, 0, 1},
	}
	if diff := cmp.Diff(wantMapping, c.Index.FamilyMapping); diff != "" {
		t.Errorf("family mapping mismatch (-want +got):\n%s", diff)
	}

	// Load order is kept and every vector matches the index.
	names := make([]string, len(c.Instances))
	for i, inst := range c.Instances {
		names[i] = inst.Name
		assert.Equal(t, c.Index.FamilyMapping[inst.Family], inst.Vector, inst.Name)
	}
	assert.Equal(t, []string{"Ethanol 1", "Acetone 1", "Ethanol 2", "Methanol 1", "Hexane 1"}, names)

	pos, ok := c.Index.Position("Ketones")
	assert.True(t, ok)
	assert.Equal(t, 2, pos)

	family, ok := c.Index.FamilyOfSpecies("Methanol")
	assert.True(t, ok)
	assert.Equal(t, "Alcohols", family)
}

func TestLoad_OneHotIsCopy(t *testing.T) {
	c, err := Load(sampleRows())
	require.NoError(t, err)

	c.Instances[0].Vector[0] = 9
	assert.Equal(t, []int{1, 0, 0}, c.Index.FamilyMapping["Alcohols"])
	assert.Nil(t, c.Index.OneHot("Ethers"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]RawRow{{Name: "Ethanol 1"}, {Name: "Ethanol 1"}})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = Load([]RawRow{{Name: "Ethanol 1"}, {Name: "Mystery 1"}})
	assert.ErrorIs(t, err, ErrDerivation)
}

func TestSnapshotRoundTrip(t *testing.T) {
	c, err := Load(sampleRows())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, WriteSnapshot(path, c))

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)

	if diff := cmp.Diff(c.Instances, loaded.Instances); diff != "" {
		t.Errorf("instances mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, c.Index.Families, loaded.Index.Families)
	assert.Equal(t, c.Rows(), loaded.Rows())
}

func TestFromSnapshot_Stale(t *testing.T) {
	c, err := Load(sampleRows())
	require.NoError(t, err)

	s := c.Snapshot()
	s.Families = []string{"Alcohols", "Ketones"}
	_, err = FromSnapshot(s)
	assert.ErrorIs(t, err, ErrStaleSnapshot)

	c, err = Load(sampleRows())
	require.NoError(t, err)
	s = c.Snapshot()
	s.Instances[1].Vector = []int{1, 0, 0}
	_, err = FromSnapshot(s)
	assert.ErrorIs(t, err, ErrStaleSnapshot)
}
