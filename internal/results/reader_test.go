package results

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"niobiums/internal/catalog"
	"niobiums/internal/common"
	"niobiums/internal/outdir"
	"niobiums/internal/split"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Families in index order: Alcohols, Alkanes, Ketones.
func testIndex(t *testing.T) *catalog.Index {
	t.Helper()
	c, err := catalog.Load([]catalog.RawRow{
		{Name: "Ethanol 1"}, {Name: "Ethanol 2"},
		{Name: "Acetone 1"}, {Name: "Hexane 1"},
	})
	require.NoError(t, err)
	return c.Index
}

func TestRead(t *testing.T) {
	idx := testIndex(t)
	output := strings.Join([]string{
		"1\t0\t0\t0.9\t0.05\t0.05",
		"",
		"\t0\t0\t1\t0.2\t0.1\t0.7\t",
		"3 0 1 0 0.3 0.6 0.1",
	}, "\n") + "\n"

	recs, err := NewReader(idx).Read(strings.NewReader(output), []string{"Ethanol 1", "Acetone 1", "Hexane 1"})
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "Ethanol", recs[0].Species)
	assert.Equal(t, "Alcohols", recs[0].Family)
	assert.Equal(t, 0, recs[0].Target)
	assert.Equal(t, []float64{0.9, 0.05, 0.05}, recs[0].Predictions)
	assert.Equal(t, 0.9, recs[0].TargetConfidence())

	assert.Equal(t, "Ketones", recs[1].Family)
	assert.Equal(t, 0.7, recs[1].TargetConfidence())

	// Leading row index column is dropped.
	assert.Equal(t, []int{0, 1, 0}, recs[2].OneHot)
	assert.Equal(t, 0.6, recs[2].TargetConfidence())
}

func TestRead_SwappedRowsAreRejected(t *testing.T) {
	idx := testIndex(t)
	// Rows for [Acetone, Ethanol] fed against manifest [Ethanol, Acetone].
	output := "0\t0\t1\t0.1\t0.1\t0.8\n1\t0\t0\t0.7\t0.2\t0.1\n"

	_, err := NewReader(idx).Read(strings.NewReader(output), []string{"Ethanol 1", "Acetone 1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLabelCorruption)

	var lce *LabelCorruptionError
	require.ErrorAs(t, err, &lce)
	assert.Equal(t, 0, lce.Row)
	assert.Equal(t, "Ethanol 1", lce.Name)
	assert.Equal(t, "Alcohols", lce.Family)
	assert.Equal(t, []int{1, 0, 0}, lce.Expected)
	assert.Equal(t, []float64{0, 0, 1}, lce.Observed)
	assert.Contains(t, lce.Error(), "Ethanol 1")
}

func TestRead_Errors(t *testing.T) {
	idx := testIndex(t)
	r := NewReader(idx)

	tests := []struct {
		name     string
		output   string
		manifest []string
		want     error
	}{
		{"too few fields", "1\t0\t0\t0.5\n", []string{"Ethanol 1"}, ErrMalformedRow},
		{"not numeric", "1\t0\t0\t0.5\tx\t0.1\n", []string{"Ethanol 1"}, ErrMalformedRow},
		{"NaN confidence", "1\t0\t0\tNaN\t0.9\t0.1\n", []string{"Ethanol 1"}, ErrMalformedRow},
		{"infinite confidence", "1\t0\t0\t+Inf\t0.9\t0.1\n", []string{"Ethanol 1"}, ErrMalformedRow},
		{"NaN label", "NaN\t0\t0\t0.5\t0.4\t0.1\n", []string{"Ethanol 1"}, ErrMalformedRow},
		{"fewer rows", "1\t0\t0\t0.5\t0.4\t0.1\n", []string{"Ethanol 1", "Ethanol 2"}, ErrRowCountMismatch},
		{"more rows", "1\t0\t0\t0.5\t0.4\t0.1\n1\t0\t0\t0.5\t0.4\t0.1\n", []string{"Ethanol 1"}, ErrRowCountMismatch},
		{"unknown family", "1\t0\t0\t0.5\t0.4\t0.1\n", []string{"Ethyl Ether 1"}, ErrLabelCorruption},
		{"underivable name", "1\t0\t0\t0.5\t0.4\t0.1\n", []string{"Water 1"}, catalog.ErrDerivation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Read(strings.NewReader(tt.output), tt.manifest)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// fakeModel reads a written test partition and emits one output row per
// line: the echoed one-hot label followed by made-up confidences.
func fakeModel(t *testing.T, testFile string, families int) string {
	t.Helper()
	f, err := os.Open(testFile)
	require.NoError(t, err)
	defer f.Close()

	var b strings.Builder
	sc := bufio.NewScanner(f)
	row := 0
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		label := fields[len(fields)-families:]
		fmt.Fprintf(&b, "%d\t%s", row, strings.Join(label, "\t"))
		for i := 0; i < families; i++ {
			fmt.Fprintf(&b, "\t%.3f", float64(i+row%3)/10)
		}
		b.WriteString("\n")
		row++
	}
	require.NoError(t, sc.Err())
	return b.String()
}

func TestRead_RoundTripWithPartition(t *testing.T) {
	var rows []catalog.RawRow
	for i := 1; i <= 6; i++ {
		for _, s := range []string{"Ethanol", "Acetone", "Hexane", "Ethyl Acetate"} {
			rows = append(rows, catalog.RawRow{Name: fmt.Sprintf("%s %d", s, i), Spectrum: []float64{float64(i), 1}})
		}
	}
	c, err := catalog.Load(rows)
	require.NoError(t, err)

	plan, err := split.NewPlanner(5).Plan(c.Index, 0.5, []string{"Hexane"})
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "run")
	m, _, err := split.NewWriter(outdir.Never).Write(dir, "sample", 5, c, plan)
	require.NoError(t, err)

	output := fakeModel(t, filepath.Join(dir, common.TestFile), len(c.Index.Families))
	outPath := filepath.Join(dir, common.DefaultResultFile)
	require.NoError(t, os.WriteFile(outPath, []byte(output), 0o644))

	manifest, err := split.ReadManifest(filepath.Join(dir, common.TestLabelsFile))
	require.NoError(t, err)
	recs, err := NewReader(c.Index).ReadFile(outPath, manifest)
	require.NoError(t, err)

	names := make([]string, len(recs))
	for i, rec := range recs {
		names[i] = rec.Name
	}
	assert.Equal(t, m.Test, names)
}
