package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"niobiums/internal/catalog"
	"niobiums/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// mock-classifier stands in for the external network: it reads the test
// partition of a run and writes an output file in the format the scorer
// reads, echoing every label and inventing confidences.
func main() {
	var (
		runDir   = flag.String("run", "", "Split run directory")
		accuracy = flag.Float64("accuracy", 0.8, "Chance that the target family gets the top confidence")
		rowIndex = flag.Bool("row-index", true, "Prefix every row with its index column")
		seed     = flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *runDir == "" {
		log.Fatal().Msg("-run is required")
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	c, err := catalog.ReadSnapshot(filepath.Join(*runDir, common.CatalogFile))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read catalog")
	}
	families := len(c.Index.Families)

	in, err := os.Open(filepath.Join(*runDir, common.TestFile))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open test file")
	}
	defer in.Close()

	outPath := filepath.Join(*runDir, common.DefaultResultFile)
	out, err := os.Create(outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	rows := 0
	for ; sc.Scan(); rows++ {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < families {
			log.Fatal().Int("row", rows).Msg("Test row shorter than the label vector")
		}
		label := fields[len(fields)-families:]

		if *rowIndex {
			fmt.Fprintf(w, "%d\t", rows)
		}
		w.WriteString(strings.Join(label, "\t"))
		for _, v := range predict(rng, label, *accuracy) {
			fmt.Fprintf(w, "\t%.5f", v)
		}
		w.WriteString("\n")
	}
	if err := sc.Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to read test file")
	}
	if err := w.Flush(); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output file")
	}

	fmt.Printf("✓ Wrote %d prediction rows to %s\n", rows, outPath)
}

// predict returns confidences that sum to 1. With probability accuracy the
// labelled family gets the largest share.
func predict(rng *rand.Rand, label []string, accuracy float64) []float64 {
	target := 0
	for i, l := range label {
		if l == "1" {
			target = i
		}
	}
	top := target
	if len(label) > 1 && rng.Float64() >= accuracy {
		top = (target + 1 + rng.Intn(len(label)-1)) % len(label)
	}

	values := make([]float64, len(label))
	sum := 0.0
	for i := range values {
		values[i] = rng.Float64() * 0.3
		if i == top {
			values[i] = 0.6 + rng.Float64()*0.4
		}
		sum += values[i]
	}
	for i := range values {
		values[i] /= sum
	}
	return values
}
