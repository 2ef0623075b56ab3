package catalog

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/rs/zerolog/log"
)

// Snapshot is the serialized form of a catalog and its index.
type Snapshot struct {
	Instances     []Instance       `json:"instances"`
	Species       []string         `json:"species"`
	Families      []string         `json:"families"`
	FamilyMapping map[string][]int `json:"family_mapping"`
	SpeciesCount  map[string]int   `json:"species_count"`
}

// Snapshot exports the catalog for later phases.
func (c *Catalog) Snapshot() Snapshot {
	return Snapshot{
		Instances:     c.Instances,
		Species:       c.Index.Species,
		Families:      c.Index.Families,
		FamilyMapping: c.Index.FamilyMapping,
		SpeciesCount:  c.Index.SpeciesCount,
	}
}

// Rows returns the raw rows the catalog was built from, in load order.
func (c *Catalog) Rows() []RawRow {
	rows := make([]RawRow, len(c.Instances))
	for i, inst := range c.Instances {
		rows[i] = RawRow{Name: inst.Name, Spectrum: inst.Spectrum}
	}
	return rows
}

// FromSnapshot rebuilds a catalog from the snapshot's names and spectra and
// checks that the stored labels, index and vectors agree with the rebuild.
func FromSnapshot(s Snapshot) (*Catalog, error) {
	rows := make([]RawRow, len(s.Instances))
	for i, inst := range s.Instances {
		rows[i] = RawRow{Name: inst.Name, Spectrum: inst.Spectrum}
	}
	c, err := Load(rows)
	if err != nil {
		return nil, err
	}

	if !slices.Equal(c.Index.Species, s.Species) {
		return nil, fmt.Errorf("%w: species list differs", ErrStaleSnapshot)
	}
	if !slices.Equal(c.Index.Families, s.Families) {
		return nil, fmt.Errorf("%w: family list differs", ErrStaleSnapshot)
	}
	if !maps.EqualFunc(c.Index.FamilyMapping, s.FamilyMapping, slices.Equal[[]int]) {
		return nil, fmt.Errorf("%w: family mapping differs", ErrStaleSnapshot)
	}
	if !maps.Equal(c.Index.SpeciesCount, s.SpeciesCount) {
		return nil, fmt.Errorf("%w: species counts differ", ErrStaleSnapshot)
	}
	for i, inst := range c.Instances {
		stored := s.Instances[i]
		if stored.Species != inst.Species || stored.Family != inst.Family || !slices.Equal(stored.Vector, inst.Vector) {
			return nil, fmt.Errorf("%w: instance %q is labelled %s/%s %v, expected %s/%s %v",
				ErrStaleSnapshot, inst.Name, stored.Species, stored.Family, stored.Vector,
				inst.Species, inst.Family, inst.Vector)
		}
	}
	return c, nil
}

// WriteSnapshot stores the catalog snapshot as indented JSON.
func WriteSnapshot(path string, c *Catalog) error {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog snapshot: %w", err)
	}
	log.Info().Str("file", path).Int("instances", len(c.Instances)).Msg("Catalog snapshot written")
	return nil
}

// ReadSnapshot loads and validates a catalog snapshot.
func ReadSnapshot(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot %s: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse catalog snapshot: %w", err)
	}
	return FromSnapshot(s)
}
