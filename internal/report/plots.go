package report

import (
	"fmt"
	"time"

	"niobiums/internal/common"
	"niobiums/internal/scoring"
)

// PlotType identifies how an external renderer should draw a plot.
type PlotType string

const (
	FermiPlot      PlotType = "fermi"
	PredictionPlot PlotType = "prediction"
)

// fermiSummaryColumns is the grid width of the Fermi summary figure.
const fermiSummaryColumns = 5

// PlotData is a renderer-neutral plot description.
type PlotData struct {
	PlotType PlotType     `json:"plot_type"`
	Title    string       `json:"title"`
	Series   []SeriesData `json:"series"`
	Config   PlotConfig   `json:"config"`
}

// SeriesData is one data series of a plot.
type SeriesData struct {
	Name string      `json:"name"`
	Type string      `json:"type"` // "line" or "bar"
	Data []DataPoint `json:"data"`
}

// DataPoint is one point; Label names categorical x positions.
type DataPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// PlotConfig carries axis labels and ranges.
type PlotConfig struct {
	XAxisLabel string   `json:"x_axis_label"`
	YAxisLabel string   `json:"y_axis_label"`
	YMin       *float64 `json:"y_min,omitempty"`
	YMax       *float64 `json:"y_max,omitempty"`
}

// SpeciesPlots groups the Fermi plot and prediction plots of one species.
type SpeciesPlots struct {
	Family  string     `json:"family"`
	Species string     `json:"species"`
	Plots   []PlotData `json:"plots"`
}

// PlotCollection is a set of plots drawn as one grid figure.
type PlotCollection struct {
	Title   string     `json:"title"`
	Columns int        `json:"columns"`
	Plots   []PlotData `json:"plots"`
}

// PlotFile is the content of plots.json.
type PlotFile struct {
	GeneratedAt  time.Time      `json:"generated_at"`
	Species      []SpeciesPlots `json:"species"`
	FermiSummary PlotCollection `json:"fermi_summary"`
}

// FermiTitle is the caption of a species' Fermi plot.
func FermiTitle(sc scoring.SpeciesScore) string {
	return fmt.Sprintf("%s, %d/%d correct", sc.Species, sc.Correct, sc.Total)
}

func fermiPlot(sc scoring.SpeciesScore) PlotData {
	points := make([]DataPoint, len(sc.Fermi))
	for i, v := range sc.Fermi {
		points[i] = DataPoint{X: float64(i + 1), Y: v}
	}
	yLabel := "Target Confidence"
	if sc.Normalized {
		yLabel = "Normalized Target Confidence"
	}
	return PlotData{
		PlotType: FermiPlot,
		Title:    FermiTitle(sc),
		Series:   []SeriesData{{Name: sc.Species, Type: "line", Data: points}},
		Config:   PlotConfig{XAxisLabel: "Rank", YAxisLabel: yLabel},
	}
}

func predictionPlot(title string, families []string, prediction []float64) PlotData {
	points := make([]DataPoint, len(prediction))
	for i, v := range prediction {
		label := ""
		if i < len(families) {
			label = families[i]
		}
		points[i] = DataPoint{X: float64(i), Y: v, Label: label}
	}
	lo, hi := 0.0, 1.0
	return PlotData{
		PlotType: PredictionPlot,
		Title:    title,
		Series:   []SeriesData{{Name: title, Type: "bar", Data: points}},
		Config:   PlotConfig{XAxisLabel: "Family", YAxisLabel: "Confidence", YMin: &lo, YMax: &hi},
	}
}

// BuildSpeciesPlots returns the Fermi plot followed by one prediction plot
// per instance, led by the standardized summation when there is one.
func BuildSpeciesPlots(sc scoring.SpeciesScore, families []string) SpeciesPlots {
	plots := []PlotData{fermiPlot(sc)}
	if sc.StandardizedSum != nil {
		plots = append(plots, predictionPlot(common.StandardizedSumLabel, families, sc.StandardizedSum))
	}
	for i, name := range sc.Names {
		plots = append(plots, predictionPlot(name, families, sc.Predictions[i]))
	}
	return SpeciesPlots{Family: sc.Family, Species: sc.Species, Plots: plots}
}

// BuildPlotFile lays out every species in scorecard order and collects
// their Fermi plots into the summary figure.
func BuildPlotFile(card *scoring.Scorecard, families []string) PlotFile {
	pf := PlotFile{
		GeneratedAt:  time.Now(),
		FermiSummary: PlotCollection{Title: common.FermiSummaryTitle, Columns: fermiSummaryColumns},
	}
	for _, f := range card.Families {
		for _, sc := range f.Species {
			sp := BuildSpeciesPlots(sc, families)
			pf.Species = append(pf.Species, sp)
			pf.FermiSummary.Plots = append(pf.FermiSummary.Plots, sp.Plots[0])
		}
	}
	return pf
}
