package metrics

import "time"

// Recorder is what the pipeline reports to. It keeps the pipeline free of
// Prometheus types and lets runs without metrics use Nop.
type Recorder interface {
	InstancePartitioned(learn bool)
	SpeciesProcessed(phase string)
	RecordScored(targetConfidence float64)
	SpeciesScored(accuracy float64, defined bool)
	OverallScored(accuracy float64)
	LabelFailure()
	ObservePhase(phase string, d time.Duration)
	Error()
}

func (m *Metrics) InstancePartitioned(learn bool) {
	partition := "test"
	if learn {
		partition = "learn"
	}
	m.InstancesPartitioned.WithLabelValues(partition).Inc()
}

func (m *Metrics) SpeciesProcessed(phase string) {
	m.SpeciesCompleted.WithLabelValues(phase).Inc()
}

func (m *Metrics) RecordScored(targetConfidence float64) {
	m.RecordsScored.Inc()
	m.TargetConfidence.Observe(targetConfidence)
}

func (m *Metrics) SpeciesScored(accuracy float64, defined bool) {
	if !defined {
		m.UndefinedSpecies.Inc()
		return
	}
	m.SpeciesAccuracy.Observe(accuracy)
}

func (m *Metrics) OverallScored(accuracy float64) { m.OverallAccuracy.Set(accuracy) }

func (m *Metrics) LabelFailure() { m.LabelFailures.Inc() }

func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) Error() { m.ErrorsTotal.Inc() }

// Nop discards everything.
type Nop struct{}

func (Nop) InstancePartitioned(bool) {}
func (Nop) SpeciesProcessed(string) {}
func (Nop) RecordScored(float64) {}
func (Nop) SpeciesScored(float64, bool) {}
func (Nop) OverallScored(float64) {}
func (Nop) LabelFailure() {}
func (Nop) ObservePhase(string, time.Duration) {}
func (Nop) Error() {}
