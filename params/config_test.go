package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gotest.tools/v3/assert"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	assert.NilError(t, cfg.Validate())
	assert.Equal(t, cfg.Epochs, 2)
	assert.Equal(t, cfg.BatchSize, 4)
	assert.Equal(t, cfg.Workers, 2)
	assert.Equal(t, cfg.LogEvery, 2000)
	assert.Equal(t, cfg.Cutoff, 25000)
	assert.Equal(t, cfg.Comma(), ',')
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero e_dim":        func(c *Config) { c.EDim = 0 },
		"negative h_dim":    func(c *Config) { c.HDim = -1 },
		"zero batch":        func(c *Config) { c.BatchSize = 0 },
		"zero workers":      func(c *Config) { c.Workers = 0 },
		"zero log_every":    func(c *Config) { c.LogEvery = 0 },
		"negative cutoff":   func(c *Config) { c.Cutoff = -1 },
		"long delimiter":    func(c *Config) { c.Delimiter = ";;" },
		"empty delimiter":   func(c *Config) { c.Delimiter = "" },
		"quote delimiter":   func(c *Config) { c.Delimiter = `"` },
		"unknown opt":       func(c *Config) { c.Optimizer = "lbfgs" },
		"zero lr":           func(c *Config) { c.LearningRate = 0 },
		"adam beta2 of 1":   func(c *Config) { c.Optimizer = "adam"; c.AdamBeta2 = 1 },
		"negative warmup":   func(c *Config) { c.WarmupSteps = -5 },
		"negative momentum": func(c *Config) { c.Momentum = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			err := cfg.Validate()
			assert.Assert(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestTabDelimiter(t *testing.T) {
	cfg := Defaults()
	cfg.Delimiter = "\t"
	assert.NilError(t, cfg.Validate())
	assert.Equal(t, cfg.Comma(), '\t')
}

func TestClampWorkers(t *testing.T) {
	cfg := Defaults()
	cfg.Workers = 16
	cfg.ClampWorkers(4)
	assert.Equal(t, cfg.Workers, 4)

	cfg.ClampWorkers(0)
	assert.Equal(t, cfg.Workers, 4)

	cfg.ClampWorkers(32)
	assert.Equal(t, cfg.Workers, 4)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg, Defaults())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imdb.yaml")
	body := "h_dim: 8\nepochs: 5\noptimizer: adam\nlogging:\n  level: debug\n"
	assert.NilError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("IMDB_EPOCHS", "7")
	t.Setenv("IMDB_LOGGING_LEVEL", "warn")

	cfg, err := Load(viper.New(), path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.HDim, 8)
	assert.Equal(t, cfg.Epochs, 7) // env beats file
	assert.Equal(t, cfg.Optimizer, "adam")
	assert.Equal(t, cfg.Logging.Level, "warn")
	assert.Equal(t, cfg.EDim, 32)
}

func TestLoadFlagOverride(t *testing.T) {
	t.Setenv("IMDB_BATCH_SIZE", "16")
	v := viper.New()
	v.Set("batch_size", 2)

	cfg, err := Load(v, "")
	assert.NilError(t, err)
	assert.Equal(t, cfg.BatchSize, 2)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("IMDB_WORKERS", "0")
	_, err := Load(viper.New(), "")
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}
