package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// AnalysisConfig contains the scalar parameters consumed by the engine.
type AnalysisConfig struct {
	// ReferenceTime is the RFC3339 timestamp all relative classifications
	// (activity brackets, cohort maturity) are computed against.
	// Empty means "now".
	ReferenceTime string `yaml:"reference_time" envconfig:"REFERENCE_TIME"`
	// ChunkSize is the target batch size for the streaming reader.
	ChunkSize int `yaml:"chunk_size" envconfig:"CHUNK_SIZE" validate:"min=1"`
	// SampleSize, when > 0, switches the reader into sampling mode.
	SampleSize int `yaml:"sample_size" envconfig:"SAMPLE_SIZE" validate:"min=0"`
	// SampleSeed makes sampling reproducible. Required when SampleSize > 0.
	SampleSeed int64 `yaml:"sample_seed" envconfig:"SAMPLE_SEED"`
	// YTDDayOfYear overrides the YTD cutoff; 0 derives it from ReferenceTime.
	YTDDayOfYear int `yaml:"ytd_day_of_year" envconfig:"YTD_DAY_OF_YEAR" validate:"min=0,max=366"`
	// Years restricts the YTD comparison to the listed calendar years.
	Years []int `yaml:"years" envconfig:"YEARS"`
	// RegionFilter and RGMFilter restrict which records enter the aggregates.
	RegionFilter string `yaml:"region_filter" envconfig:"REGION_FILTER"`
	RGMFilter    string `yaml:"rgm_filter" envconfig:"RGM_FILTER"`
	// Workers > 1 enables parallel chunk processing.
	Workers int `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=64"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// ReferenceTimeOrNow parses the configured reference timestamp, defaulting
// to the current time when unset.
func (a AnalysisConfig) ReferenceTimeOrNow() (time.Time, error) {
	if a.ReferenceTime == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, a.ReferenceTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse reference time %q: %w", a.ReferenceTime, err)
	}
	return t, nil
}

// Load loads configuration from environment variables and an optional
// YAML config file. Environment variables take precedence.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = *fileCfg
		}
	}

	if err := envconfig.Process("NTB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules envconfig cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Analysis.SampleSize > 0 && c.Analysis.SampleSeed == 0 {
		return fmt.Errorf("sample_seed is required when sample_size is set")
	}
	if _, err := c.Analysis.ReferenceTimeOrNow(); err != nil {
		return err
	}
	return nil
}

// EnsureDirectories creates the configured output directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ReportsDir, c.Paths.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills zero values envconfig leaves behind when the value
// came from the YAML file instead of the environment.
func applyDefaults(cfg *Config) {
	if cfg.Analysis.ChunkSize == 0 {
		cfg.Analysis.ChunkSize = 50000
	}
	if cfg.Analysis.Workers == 0 {
		cfg.Analysis.Workers = 1
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "console"
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = "logs/ntbcli.log"
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "data"
	}
	if cfg.Paths.ReportsDir == "" {
		cfg.Paths.ReportsDir = "data/reports"
	}
	if cfg.Paths.LogsDir == "" {
		cfg.Paths.LogsDir = "logs"
	}
}
