// Package metrics provides Prometheus metrics for split and scoring runs.
// Runs are short-lived batch jobs, so instead of serving an endpoint the
// collected values are written to a node-exporter textfile at the end.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase label values.
const (
	PhaseLoad  = "load"
	PhaseSplit = "split"
	PhaseWrite = "write"
	PhaseRead  = "read"
	PhaseScore = "score"
)

// Metrics holds all Prometheus metrics of the pipeline.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Split metrics
	InstancesPartitioned *prometheus.CounterVec // by partition: learn, test
	SpeciesCompleted     *prometheus.CounterVec // by phase: split, score

	// Scoring metrics
	RecordsScored    prometheus.Counter
	LabelFailures    prometheus.Counter
	UndefinedSpecies prometheus.Counter
	SpeciesAccuracy  prometheus.Histogram
	TargetConfidence prometheus.Histogram
	OverallAccuracy  prometheus.Gauge

	// System metrics
	PhaseDuration *prometheus.HistogramVec
	ErrorsTotal   prometheus.Counter
}

// New creates metrics on a fresh private registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// The registry is also used as the gatherer for WriteTextfile when it
// implements prometheus.Gatherer.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		InstancesPartitioned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "niobiums_instances_partitioned_total",
			Help: "Instances written to a partition",
		}, []string{"partition"}),
		SpeciesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "niobiums_species_processed_total",
			Help: "Species completed per phase",
		}, []string{"phase"}),
		RecordsScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "niobiums_records_scored_total",
			Help: "Prediction records folded into the aggregator",
		}),
		LabelFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "niobiums_label_failures_total",
			Help: "Model output rows whose echoed label did not match the manifest",
		}),
		UndefinedSpecies: factory.NewCounter(prometheus.CounterOpts{
			Name: "niobiums_undefined_species_total",
			Help: "Species scored without any evaluation instances",
		}),
		SpeciesAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "niobiums_species_accuracy",
			Help:    "Distribution of per-species accuracy",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		TargetConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "niobiums_target_confidence",
			Help:    "Distribution of the confidence assigned to the true family",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		OverallAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "niobiums_overall_accuracy",
			Help: "Pooled accuracy of the last scoring run",
		}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "niobiums_phase_duration_seconds",
			Help:    "Duration of pipeline phases in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"phase"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "niobiums_errors_total",
			Help: "Total number of errors encountered",
		}),
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// WriteTextfile writes every gathered metric to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m.gatherer == nil {
		return fmt.Errorf("metrics: registry cannot be gathered")
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
