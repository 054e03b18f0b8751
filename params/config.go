// Package params holds the run configuration. Library code receives a
// Config value; nothing reads package state.
package params

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every Validate and Load failure caused by
// a bad value.
var ErrInvalidConfig = errors.New("invalid config")

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	// Files
	SourcePath  string `mapstructure:"source_path"`
	TrainPath   string `mapstructure:"train_path"`
	TestPath    string `mapstructure:"test_path"`
	Delimiter   string `mapstructure:"delimiter"`
	Cutoff      int    `mapstructure:"cutoff"`
	ModelPath   string `mapstructure:"model_path"`   // "" = don't save
	HistoryPath string `mapstructure:"history_path"` // "" = no sqlite history

	// Model
	EDim int `mapstructure:"e_dim"` // one-hot input width
	HDim int `mapstructure:"h_dim"` // hidden size, output rows are 2*HDim wide

	// Loop
	Epochs     int   `mapstructure:"epochs"`
	BatchSize  int   `mapstructure:"batch_size"`
	Workers    int   `mapstructure:"workers"`
	Shuffle    bool  `mapstructure:"shuffle"`
	LogEvery   int   `mapstructure:"log_every"`
	Seed       int64 `mapstructure:"seed"` // 0 = seed from the clock
	CacheBytes int   `mapstructure:"cache_bytes"`

	// Optimizer
	Optimizer    string  `mapstructure:"optimizer"` // sgd | adam
	LearningRate float64 `mapstructure:"learning_rate"`
	Momentum     float64 `mapstructure:"momentum"`
	AdamBeta1    float64 `mapstructure:"adam_beta1"`
	AdamBeta2    float64 `mapstructure:"adam_beta2"`
	AdamEps      float64 `mapstructure:"adam_eps"`
	WeightDecay  float64 `mapstructure:"weight_decay"`
	GradClip     float64 `mapstructure:"grad_clip"`    // <=0 disables
	WarmupSteps  int     `mapstructure:"warmup_steps"` // linear warmup steps
	DecaySteps   int     `mapstructure:"decay_steps"`  // cosine decay steps after warmup (0 = none)

	Logging LoggingConfig `mapstructure:"logging"`
}

func Defaults() Config {
	return Config{
		SourcePath: "dataset/IMDB Dataset.csv",
		TrainPath:  "dataset/training.csv",
		TestPath:   "dataset/testing.csv",
		Delimiter:  ",",
		Cutoff:     25000,

		EDim: 32,
		HDim: 64,

		Epochs:     2,
		BatchSize:  4,
		Workers:    2,
		Shuffle:    true,
		LogEvery:   2000,
		CacheBytes: 32 << 20,

		Optimizer:    "sgd",
		LearningRate: 0.01,
		Momentum:     0.9,
		AdamBeta1:    0.9,
		AdamBeta2:    0.999,
		AdamEps:      1e-8,

		Logging: LoggingConfig{Level: "info"},
	}
}

// Comma is the delimiter rune. Call Validate first.
func (c Config) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

func (c Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"e_dim", c.EDim},
		{"h_dim", c.HDim},
		{"epochs", c.Epochs},
		{"batch_size", c.BatchSize},
		{"workers", c.Workers},
		{"log_every", c.LogEvery},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "%s must be > 0, got %d", p.name, p.v)
		}
	}
	if c.Cutoff < 0 {
		return errors.Wrapf(ErrInvalidConfig, "cutoff must be >= 0, got %d", c.Cutoff)
	}
	if c.CacheBytes < 0 || c.WarmupSteps < 0 || c.DecaySteps < 0 {
		return errors.Wrap(ErrInvalidConfig, "cache_bytes, warmup_steps and decay_steps must be >= 0")
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return errors.Wrapf(ErrInvalidConfig, "delimiter must be a single character, got %q", c.Delimiter)
	}
	if d := c.Comma(); d == '"' || d == '\r' || d == '\n' || d == utf8.RuneError {
		return errors.Wrapf(ErrInvalidConfig, "delimiter %q is not usable", c.Delimiter)
	}
	if c.LearningRate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "learning_rate must be > 0, got %g", c.LearningRate)
	}
	switch strings.ToLower(c.Optimizer) {
	case "sgd":
		if c.Momentum < 0 {
			return errors.Wrapf(ErrInvalidConfig, "momentum must be >= 0, got %g", c.Momentum)
		}
	case "adam", "adamw":
		if c.AdamBeta1 < 0 || c.AdamBeta1 >= 1 || c.AdamBeta2 < 0 || c.AdamBeta2 >= 1 {
			return errors.Wrap(ErrInvalidConfig, "adam betas must lie in [0, 1)")
		}
		if c.AdamEps <= 0 {
			return errors.Wrap(ErrInvalidConfig, "adam_eps must be > 0")
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown optimizer %q", c.Optimizer)
	}
	return nil
}

// ClampWorkers caps Workers at the number of logical CPUs.
func (c *Config) ClampWorkers(logical int) {
	if logical > 0 && c.Workers > logical {
		c.Workers = logical
	}
}

// Load layers defaults, the optional config file at path and IMDB_*
// environment variables into v, then decodes and validates the result.
// Flags bound to v before the call take precedence over all of them.
func Load(v *viper.Viper, path string) (Config, error) {
	d := Defaults()
	defaults := map[string]any{
		"source_path":   d.SourcePath,
		"train_path":    d.TrainPath,
		"test_path":     d.TestPath,
		"delimiter":     d.Delimiter,
		"cutoff":        d.Cutoff,
		"model_path":    d.ModelPath,
		"history_path":  d.HistoryPath,
		"e_dim":         d.EDim,
		"h_dim":         d.HDim,
		"epochs":        d.Epochs,
		"batch_size":    d.BatchSize,
		"workers":       d.Workers,
		"shuffle":       d.Shuffle,
		"log_every":     d.LogEvery,
		"seed":          d.Seed,
		"cache_bytes":   d.CacheBytes,
		"optimizer":     d.Optimizer,
		"learning_rate": d.LearningRate,
		"momentum":      d.Momentum,
		"adam_beta1":    d.AdamBeta1,
		"adam_beta2":    d.AdamBeta2,
		"adam_eps":      d.AdamEps,
		"weight_decay":  d.WeightDecay,
		"grad_clip":     d.GradClip,
		"warmup_steps":  d.WarmupSteps,
		"decay_steps":   d.DecaySteps,
		"logging.level": d.Logging.Level,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("IMDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
