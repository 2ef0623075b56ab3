package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"niobiums/internal/catalog"
	"niobiums/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultSpecies = []string{
	"Ethanol", "Methanol", "Isopropanol",
	"Acetone", "Butanone",
	"Hexane", "Heptane",
	"Ethyl Acetate", "Toluene Ether",
	"Butanal", "Propanal",
}

func main() {
	var (
		out        = flag.String("out", "Spectral Datasets/sample.csv", "Output file (.csv or .db)")
		species    = flag.String("species", strings.Join(defaultSpecies, ","), "Comma-separated species to generate")
		replicates = flag.Int("replicates", 10, "Instances per species")
		points     = flag.Int("points", 64, "Spectrum length")
		noise      = flag.Float64("noise", 0.05, "Relative noise added to every point")
		seed       = flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	var rows []catalog.RawRow
	for _, s := range strings.Split(*species, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		base := baseSpectrum(s, *points)
		for i := 1; i <= *replicates; i++ {
			rows = append(rows, catalog.RawRow{
				Name:     fmt.Sprintf("%s %d", s, i),
				Spectrum: perturb(rng, base, *noise),
			})
		}
	}

	// Generated names must be usable datasets.
	c, err := catalog.Load(rows)
	if err != nil {
		log.Fatal().Err(err).Msg("Generated names do not derive")
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directory")
	}
	switch strings.ToLower(filepath.Ext(*out)) {
	case ".db":
		err = writeStore(*out, rows)
	default:
		err = writeCSV(*out, rows, *points)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write sample data")
	}

	fmt.Printf("✓ Generated %d spectra of %d species in %d families\n",
		len(rows), len(c.Index.Species), len(c.Index.Families))
	fmt.Printf("  Output: %s\n", *out)
	fmt.Printf("  Seed: %d\n", *seed)
}

// baseSpectrum places a few Gaussian peaks at positions derived from the
// species name, so that replicates of one species resemble each other.
func baseSpectrum(species string, points int) []float64 {
	h := fnv.New64a()
	h.Write([]byte(species))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	spectrum := make([]float64, points)
	peaks := 2 + rng.Intn(4)
	for p := 0; p < peaks; p++ {
		center := rng.Float64() * float64(points)
		width := 1 + rng.Float64()*float64(points)/16
		height := 0.2 + rng.Float64()
		for i := range spectrum {
			d := (float64(i) - center) / width
			spectrum[i] += height * math.Exp(-d*d/2)
		}
	}
	return spectrum
}

func perturb(rng *rand.Rand, base []float64, noise float64) []float64 {
	out := make([]float64, len(base))
	scale := 0.9 + rng.Float64()*0.2
	for i, v := range base {
		out[i] = math.Max(0, v*scale+rng.NormFloat64()*noise)
	}
	return out
}

func writeCSV(path string, rows []catalog.RawRow, points int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, 0, points+1)
	header = append(header, "name")
	for i := 0; i < points; i++ {
		header = append(header, fmt.Sprintf("p%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, 0, len(row.Spectrum)+1)
		record = append(record, row.Name)
		for _, v := range row.Spectrum {
			record = append(record, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeStore(path string, rows []catalog.RawRow) error {
	store, err := storage.New(path)
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now().UTC()
	recs := make([]storage.SpectrumRecord, len(rows))
	for i, row := range rows {
		recs[i] = storage.SpectrumRecord{Name: row.Name, Spectrum: row.Spectrum, StoredAt: now}
	}
	return store.StoreSpectra(recs)
}
