package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"niobiums/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ConfigFile struct {
	Paths struct {
		DatasetDir  string `yaml:"datasetDir"`
		OutputRoot  string `yaml:"outputRoot"`
		ResultFile  string `yaml:"resultFile"`
		MetricsFile string `yaml:"metricsFile"`
	} `yaml:"paths"`

	Split struct {
		LearnProportion *float64 `yaml:"learnProportion"`
		Seed            int64    `yaml:"seed"`
	} `yaml:"split"`

	Scoring struct {
		NormalizeFermi *bool `yaml:"normalizeFermi"`
	} `yaml:"scoring"`

	System struct {
		LogLevel    string `yaml:"logLevel"`
		HTTPTimeout string `yaml:"httpTimeout"`
		AssumeYes   bool   `yaml:"assumeYes"`
	} `yaml:"system"`
}

// Load reads a .env file from the working directory when present, then the
// YAML file named by CONFIG_FILE, otherwise environment variables alone.
// Environment variables override YAML values.
func Load() (Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// loadDotEnv exports variables from path without overriding ones already
// set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := DefaultSettings()

	httpTimeout := defaults.HTTPTimeout
	if config.System.HTTPTimeout != "" {
		httpTimeout, err = time.ParseDuration(config.System.HTTPTimeout)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid httpTimeout %q: %w", config.System.HTTPTimeout, err)
		}
	}

	learnProportion := defaults.LearnProportion
	if config.Split.LearnProportion != nil {
		learnProportion = *config.Split.LearnProportion
	}
	normalize := defaults.NormalizeFermi
	if config.Scoring.NormalizeFermi != nil {
		normalize = *config.Scoring.NormalizeFermi
	}

	settings := Settings{
		DatasetDir:      getEnvOrDefault(common.EnvDatasetDir, orDefault(config.Paths.DatasetDir, defaults.DatasetDir)),
		OutputRoot:      getEnvOrDefault(common.EnvOutputRoot, orDefault(config.Paths.OutputRoot, defaults.OutputRoot)),
		LearnProportion: getFloatOrDefault(common.EnvLearnProportion, learnProportion),
		Seed:            getInt64OrDefault(common.EnvSeed, config.Split.Seed),
		NormalizeFermi:  getBoolOrDefault(common.EnvNormalizeFermi, normalize),
		ResultFile:      getEnvOrDefault(common.EnvResultFile, orDefault(config.Paths.ResultFile, defaults.ResultFile)),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, defaults.LogLevel)),
		MetricsFile:     getEnvOrDefault(common.EnvMetricsFile, config.Paths.MetricsFile),
		HTTPTimeout:     getDurationOrDefault(common.EnvHTTPTimeout, httpTimeout),
		AssumeYes:       getBoolOrDefault(common.EnvAssumeYes, config.System.AssumeYes),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	defaults := DefaultSettings()

	settings := Settings{
		DatasetDir:      getEnvOrDefault(common.EnvDatasetDir, defaults.DatasetDir),
		OutputRoot:      getEnvOrDefault(common.EnvOutputRoot, defaults.OutputRoot),
		LearnProportion: getFloatOrDefault(common.EnvLearnProportion, defaults.LearnProportion),
		Seed:            getInt64OrDefault(common.EnvSeed, 0),
		NormalizeFermi:  getBoolOrDefault(common.EnvNormalizeFermi, defaults.NormalizeFermi),
		ResultFile:      getEnvOrDefault(common.EnvResultFile, defaults.ResultFile),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, defaults.LogLevel),
		MetricsFile:     os.Getenv(common.EnvMetricsFile), // optional
		HTTPTimeout:     getDurationOrDefault(common.EnvHTTPTimeout, defaults.HTTPTimeout),
		AssumeYes:       getBoolOrDefault(common.EnvAssumeYes, false),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Validate checks settings after command-line overrides were applied.
func (s *Settings) Validate() error {
	return validateSettings(s)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

var validLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.DatasetDir) == "" {
		return fmt.Errorf("dataset directory cannot be empty")
	}
	if strings.TrimSpace(settings.OutputRoot) == "" {
		return fmt.Errorf("output root cannot be empty")
	}
	if strings.TrimSpace(settings.ResultFile) == "" {
		return fmt.Errorf("result file name cannot be empty")
	}

	if !(settings.LearnProportion >= common.MinLearnProportion && settings.LearnProportion <= common.MaxLearnProportion) {
		return fmt.Errorf("learn proportion must be between %v and %v, got %v",
			common.MinLearnProportion, common.MaxLearnProportion, settings.LearnProportion)
	}

	if settings.HTTPTimeout < time.Second || settings.HTTPTimeout > 5*time.Minute {
		return fmt.Errorf("HTTP timeout must be between 1s and 5m, got %v", settings.HTTPTimeout)
	}

	level := strings.ToLower(settings.LogLevel)
	for _, l := range validLogLevels {
		if level == l {
			return nil
		}
	}
	return fmt.Errorf("log level must be one of %s, got %q", strings.Join(validLogLevels, ", "), settings.LogLevel)
}
