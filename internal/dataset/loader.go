// Package dataset reads labeled spectra from CSV files, JSON files, BoltDB
// stores or a remote URL into raw catalog rows.
package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"niobiums/internal/catalog"
	"niobiums/internal/storage"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnsupportedFormat = errors.New("dataset: unsupported source format")
	ErrMalformedDataset  = errors.New("dataset: malformed dataset")
)

// Document is the JSON dataset layout. A catalog snapshot decodes into it
// as well, since it shares the instance fields.
type Document struct {
	Instances []Entry `json:"instances"`
}

// Entry is one named spectrum of a JSON dataset.
type Entry struct {
	Name     string    `json:"name"`
	Spectrum []float64 `json:"spectrum"`
}

// DataLoader reads datasets into raw rows, keeping source order.
type DataLoader struct {
	rows []catalog.RawRow
	http *resty.Client
}

// NewDataLoader creates a loader; timeout bounds remote fetches.
func NewDataLoader(timeout time.Duration) *DataLoader {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	return &DataLoader{http: r}
}

// Rows returns everything loaded so far.
func (dl *DataLoader) Rows() []catalog.RawRow { return dl.rows }

// GetDataCount returns the number of loaded rows.
func (dl *DataLoader) GetDataCount() int { return len(dl.rows) }

// Load picks a reader by source: http(s) URLs are fetched, otherwise the
// file extension decides.
func (dl *DataLoader) Load(ctx context.Context, source string) error {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return dl.Fetch(ctx, source)
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".csv":
		return dl.LoadFromCSV(source)
	case ".json":
		return dl.LoadFromJSON(source)
	case ".db":
		return dl.LoadFromBoltDB(source)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, source)
	}
}

// LoadFromCSV loads a CSV whose first column is the instance name and whose
// remaining columns are the spectrum.
func (dl *DataLoader) LoadFromCSV(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := ReadCSV(file)
	if err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}
	dl.rows = append(dl.rows, rows...)

	log.Info().
		Str("file", filePath).
		Int("instances", len(rows)).
		Msg("CSV dataset loaded successfully")
	return nil
}

// ReadCSV parses CSV rows. A first row whose second cell is not numeric is
// treated as a header and skipped.
func ReadCSV(r io.Reader) ([]catalog.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []catalog.RawRow
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
		}
		if line == 1 && isHeader(record) {
			continue
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			return nil, fmt.Errorf("%w: line %d has no instance name", ErrMalformedDataset, line)
		}

		spectrum := make([]float64, 0, len(record)-1)
		for col, cell := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %q is not numeric", ErrMalformedDataset, line, col+2, cell)
			}
			spectrum = append(spectrum, v)
		}
		rows = append(rows, catalog.RawRow{Name: strings.TrimSpace(record[0]), Spectrum: spectrum})
	}
	return rows, nil
}

func isHeader(record []string) bool {
	if len(record) < 2 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	return err != nil
}

// LoadFromJSON loads a JSON dataset document.
func (dl *DataLoader) LoadFromJSON(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	rows, err := DecodeJSON(file)
	if err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}
	dl.rows = append(dl.rows, rows...)

	log.Info().
		Str("file", filePath).
		Int("instances", len(rows)).
		Msg("JSON dataset loaded successfully")
	return nil
}

// DecodeJSON decodes a dataset document.
func DecodeJSON(r io.Reader) ([]catalog.RawRow, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
	}
	return doc.rows(), nil
}

func (d Document) rows() []catalog.RawRow {
	rows := make([]catalog.RawRow, len(d.Instances))
	for i, e := range d.Instances {
		rows[i] = catalog.RawRow{Name: e.Name, Spectrum: e.Spectrum}
	}
	return rows
}

// LoadFromBoltDB loads every spectrum of a BoltDB store in import order.
func (dl *DataLoader) LoadFromBoltDB(dbPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	store, err := storage.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return dl.LoadFromStore(store, dbPath)
}

// LoadFromStore reads from an already opened store.
func (dl *DataLoader) LoadFromStore(store *storage.Store, name string) error {
	recs, err := store.GetSpectra()
	if err != nil {
		return fmt.Errorf("failed to load spectra: %w", err)
	}
	for _, rec := range recs {
		dl.rows = append(dl.rows, catalog.RawRow{Name: rec.Name, Spectrum: rec.Spectrum})
	}

	log.Info().
		Str("store", name).
		Int("instances", len(recs)).
		Msg("Dataset loaded from BoltDB")
	return nil
}

// Fetch downloads a JSON dataset document from url.
func (dl *DataLoader) Fetch(ctx context.Context, url string) error {
	doc := &Document{}
	resp, err := dl.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		ForceContentType("application/json").
		SetResult(doc).
		Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch dataset: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to fetch dataset: %s returned %s", url, resp.Status())
	}

	rows := doc.rows()
	dl.rows = append(dl.rows, rows...)

	log.Info().
		Str("url", url).
		Int("instances", len(rows)).
		Dur("elapsed", resp.Time()).
		Msg("Dataset fetched")
	return nil
}

// Stem returns the dataset name used for run directories: the base name
// without extension, for files and URLs alike.
func Stem(source string) string {
	base := source
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = filepath.Base(strings.TrimRight(base, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
