package cfg

import (
	"time"

	"niobiums/internal/common"
)

// Settings configures dataset locations, the split and scoring.
type Settings struct {
	DatasetDir      string
	OutputRoot      string
	LearnProportion float64
	// Seed drives the split shuffle; 0 means derive one from the clock.
	Seed           int64
	NormalizeFermi bool
	ResultFile     string
	LogLevel       string
	MetricsFile    string // empty disables the metrics textfile
	HTTPTimeout    time.Duration
	AssumeYes      bool
}

const defaultHTTPTimeout = 10 * time.Second

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		DatasetDir:      common.DefaultDatasetDir,
		OutputRoot:      common.DefaultOutputRoot,
		LearnProportion: common.DefaultLearnProportion,
		NormalizeFermi:  true,
		ResultFile:      common.DefaultResultFile,
		LogLevel:        common.DefaultLogLevel,
		HTTPTimeout:     defaultHTTPTimeout,
	}
}

// ResolveSeed returns the configured seed, or a clock-derived one when the
// seed is 0. The chosen seed is recorded with every run.
func (s *Settings) ResolveSeed() int64 {
	if s.Seed != 0 {
		return s.Seed
	}
	return time.Now().UnixNano()
}
