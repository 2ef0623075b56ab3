package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvDatasetDir      = "DATASET_DIR"
	EnvOutputRoot      = "OUTPUT_ROOT"
	EnvLearnProportion = "LEARN_PROPORTION"
	EnvSeed            = "SPLIT_SEED"
	EnvNormalizeFermi  = "NORMALIZE_FERMI"
	EnvResultFile      = "RESULT_FILE"
	EnvLogLevel        = "LOG_LEVEL"
	EnvMetricsFile     = "METRICS_FILE"
	EnvHTTPTimeout     = "HTTP_TIMEOUT"
	EnvAssumeYes       = "ASSUME_YES"
)

// Configuration defaults
const (
	DefaultDatasetDir      = "Spectral Datasets"
	DefaultOutputRoot      = "Training Files"
	DefaultLearnProportion = 0.8
	DefaultResultFile      = "TTT_testfile_txt.nnr"
	DefaultLogLevel        = "info"
)

// Partition artifacts. The LLL/TTT names are what the NeuralWare tooling
// expects to find next to each other in a run directory.
const (
	LearnFile         = "LLL_learnfile.txt"
	TestFile          = "TTT_testfile.txt"
	LearnLabelsFile   = "learn_labels.json"
	TestLabelsFile    = "test_labels.json"
	CatalogFile       = "catalog.json"
	RunMetadataFile   = "run.json"
	ControlRunDesc    = "Control Run"
	ComplementDigits  = 4
	StagingDirPattern = ".staging-*"
)

// Scoring artifacts
const (
	ResultDir            = "Result Plots"
	UnfamiliarPlotDir    = "Condensed Unfamiliar Plots"
	ScoresFile           = "Scores.txt"
	PredictionsFile      = "predictions.json"
	PlotsFile            = "plots.json"
	StandardizedSumLabel = "Standardized Summation"
	FermiSummaryTitle    = "Fermi Summary"
)

// Validation constants
const (
	MinLearnProportion = 0.0
	MaxLearnProportion = 1.0
)
