// Package results parses the raw per-instance output of the external model
// and matches every row back to the evaluation manifest, validating the
// echoed one-hot label against the category index.
package results

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"niobiums/internal/catalog"

	"github.com/rs/zerolog/log"
)

var (
	// ErrLabelCorruption means a row's echoed label disagrees with the
	// expected encoding of the manifest name at the same position.
	ErrLabelCorruption  = errors.New("results: label corruption")
	ErrMalformedRow     = errors.New("results: malformed row")
	ErrRowCountMismatch = errors.New("results: row count does not match manifest")
)

// LabelCorruptionError describes the first misaligned row.
type LabelCorruptionError struct {
	Row      int
	Name     string
	Family   string
	Expected []int
	Observed []float64
}

func (e *LabelCorruptionError) Error() string {
	return fmt.Sprintf("results: row %d (%s, %s) echoes label %v, expected %v",
		e.Row, e.Name, e.Family, e.Observed, e.Expected)
}

func (e *LabelCorruptionError) Unwrap() error { return ErrLabelCorruption }

// Record is one validated prediction row.
type Record struct {
	Name        string
	Species     string
	Family      string
	Target      int       // position of the true family
	OneHot      []int     // echoed label, equal to the index encoding
	Predictions []float64 // one confidence per family, index order
}

// TargetConfidence is the confidence assigned to the true family.
func (r Record) TargetConfidence() float64 { return r.Predictions[r.Target] }

// Reader reads model output rows against a category index.
type Reader struct {
	idx *catalog.Index
}

// NewReader creates a reader for output produced against idx.
func NewReader(idx *catalog.Index) *Reader {
	return &Reader{idx: idx}
}

// ReadFile opens path and reads it with Read.
func (r *Reader) ReadFile(path string, manifest []string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model output: %w", err)
	}
	defer f.Close()

	records, err := r.Read(f, manifest)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", path).Int("records", len(records)).Msg("Model output read")
	return records, nil
}

// Read parses one row per manifest name. Row i belongs to manifest[i].
// Blank lines are skipped.
func (r *Reader) Read(src io.Reader, manifest []string) ([]Record, error) {
	families := len(r.idx.Families)
	records := make([]Record, 0, len(manifest))

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line, row := 0, 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if row >= len(manifest) {
			return nil, fmt.Errorf("%w: more than %d rows", ErrRowCountMismatch, len(manifest))
		}

		values, err := parseRow(text, families)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec, err := r.match(row, manifest[row], values[:families], values[families:])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read model output: %w", err)
	}
	if row != len(manifest) {
		return nil, fmt.Errorf("%w: got %d rows for %d names", ErrRowCountMismatch, row, len(manifest))
	}
	return records, nil
}

func (r *Reader) match(row int, name string, label, predictions []float64) (Record, error) {
	species, family, err := catalog.Derive(name)
	if err != nil {
		return Record{}, err
	}
	expected := r.idx.OneHot(family)
	target, ok := r.idx.Position(family)
	if expected == nil || !ok {
		return Record{}, &LabelCorruptionError{Row: row, Name: name, Family: family, Observed: label}
	}

	for i, bit := range expected {
		if label[i] != float64(bit) {
			return Record{}, &LabelCorruptionError{
				Row:      row,
				Name:     name,
				Family:   family,
				Expected: expected,
				Observed: label,
			}
		}
	}

	return Record{
		Name:        name,
		Species:     species,
		Family:      family,
		Target:      target,
		OneHot:      expected,
		Predictions: predictions,
	}, nil
}

// parseRow splits a row into 2*families numbers. A row with one extra
// leading field carries a row index, which is dropped.
func parseRow(text string, families int) ([]float64, error) {
	fields := strings.Fields(text)
	switch len(fields) {
	case 2 * families:
	case 2*families + 1:
		fields = fields[1:]
	default:
		return nil, fmt.Errorf("%w: %d fields, expected %d", ErrMalformedRow, len(fields), 2*families)
	}

	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d %q is not numeric", ErrMalformedRow, i+1, field)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: field %d %q is not finite", ErrMalformedRow, i+1, field)
		}
		values[i] = v
	}
	return values, nil
}
