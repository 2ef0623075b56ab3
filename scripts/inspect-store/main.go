package main

import (
	"flag"
	"fmt"
	"os"

	"niobiums/internal/catalog"
	"niobiums/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dbPath = flag.String("db", "Spectral Datasets/sample.db", "Spectra store path")
		limit  = flag.Int("limit", 20, "Number of spectra to list")
		name   = flag.String("name", "", "Show a single spectrum")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatal().Err(err).Msg("Store not found")
	}

	fmt.Printf("Inspecting spectra in: %s\n", *dbPath)

	store, err := storage.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	if *name != "" {
		rec, err := store.GetSpectrum(*name)
		if err != nil {
			log.Fatal().Err(err).Str("name", *name).Msg("Lookup failed")
		}
		fmt.Printf("%s (stored %s)\n", rec.Name, rec.StoredAt.Format("2006-01-02 15:04:05"))
		for i, v := range rec.Spectrum {
			fmt.Printf("  %4d  %.6f\n", i, v)
		}
		return
	}

	count, err := store.Count()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count spectra")
	}
	fmt.Printf("\nStored spectra: %d\n", count)

	recs, err := store.GetSpectra()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read spectra")
	}
	for i, rec := range recs {
		if i >= *limit {
			fmt.Printf("  ... %d more\n", len(recs)-*limit)
			break
		}
		species, family, err := catalog.Derive(rec.Name)
		if err != nil {
			family = "?"
			species = catalog.SpeciesOf(rec.Name)
		}
		fmt.Printf("  %-24s %-18s %-16s %d points\n", rec.Name, species, family, len(rec.Spectrum))
	}
}
