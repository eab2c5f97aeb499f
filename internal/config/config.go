package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/agenthands/kgcomplete/internal/core/transfer"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// TrainRatios are the entity seed ratios the datasets are split by.
var TrainRatios = []float64{0.1, 0.2, 0.3, 0.4, 0.5}

type DataConfig struct {
	Root             string  `toml:"root"`
	PairGlob         string  `toml:"pair_glob"`
	TrainRatio       float64 `toml:"train_ratio"`
	ConfidenceColumn string  `toml:"confidence_column"`
}

type CompletionConfig struct {
	ParallelDirections bool    `toml:"parallel_directions"`
	StrictRules        bool    `toml:"strict_rules"`
	TransferPolicy     string  `toml:"transfer_policy"`
	TransferDiscount   float64 `toml:"transfer_discount"`
}

type MemgraphConfig struct {
	Enabled   bool   `toml:"enabled"`
	URI       string `toml:"uri"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	BatchSize int    `toml:"batch_size"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StoreConfig enables the SQLite run history when Path is set.
type StoreConfig struct {
	Path string `toml:"path"`
}

type ReportConfig struct {
	SampleSize int `toml:"sample_size"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Data       DataConfig       `toml:"data"`
	Completion CompletionConfig `toml:"completion"`
	Memgraph   MemgraphConfig   `toml:"memgraph"`
	Server     ServerConfig     `toml:"server"`
	Store      StoreConfig      `toml:"store"`
	Report     ReportConfig     `toml:"report"`
	Log        LogConfig        `toml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Root:             "bin/dbp15k",
			PairGlob:         "*_en",
			TrainRatio:       0.3,
			ConfidenceColumn: "pca",
		},
		Completion: CompletionConfig{
			ParallelDirections: true,
			TransferPolicy:     "carry",
			TransferDiscount:   1.0,
		},
		Memgraph: MemgraphConfig{
			URI:       "bolt://localhost:7687",
			BatchSize: 1000,
		},
		Report: ReportConfig{SampleSize: 10},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a TOML file on top of Default, so a file only needs the keys
// it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables when they are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("KGC_DATA_ROOT"); v != "" {
		c.Data.Root = v
	}
	if v := os.Getenv("KGC_TRAIN_RATIO"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: KGC_TRAIN_RATIO %q: %v", ErrInvalidConfig, v, err)
		}
		c.Data.TrainRatio = ratio
	}
	if v := os.Getenv("KGC_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KGC_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("KGC_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Memgraph.Password = v
	}
	return nil
}

// Validate checks every setting that would otherwise fail in the middle of
// a run.
func (c *Config) Validate() error {
	if err := CheckTrainRatio(c.Data.TrainRatio); err != nil {
		return err
	}
	switch c.Data.ConfidenceColumn {
	case "std", "pca":
	default:
		return fmt.Errorf("%w: confidence_column %q, want std or pca", ErrInvalidConfig, c.Data.ConfidenceColumn)
	}
	if _, err := transfer.PolicyFor(c.Completion.TransferPolicy, c.Completion.TransferDiscount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Memgraph.Enabled && c.Memgraph.BatchSize <= 0 {
		return fmt.Errorf("%w: memgraph batch_size must be positive", ErrInvalidConfig)
	}
	if c.Report.SampleSize < 0 {
		return fmt.Errorf("%w: report sample_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CheckTrainRatio rejects any ratio outside TrainRatios.
func CheckTrainRatio(ratio float64) error {
	for _, r := range TrainRatios {
		if math.Abs(r-ratio) < 1e-9 {
			return nil
		}
	}
	return fmt.Errorf("%w: not a legal train seeds ratio: %g", ErrInvalidConfig, ratio)
}

// RatioTenths returns ratio as a whole number of tenths, the form used in
// seed directory names.
func RatioTenths(ratio float64) int {
	return int(math.Round(ratio * 10))
}
