package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobayes/internal/errors"
)

var configEnv = []string{
	"LOG_LEVEL", "PORT", "OPS_PORT", "GIN_MODE", "DATABASE_DRIVER", "DATABASE_URL",
	"WORKER_COUNT", "FIT_TIMEOUT", "SAMPLE_TIMEOUT", "SAMPLE_BATCH_SIZE",
	"DEFAULT_SEED", "MAX_ITERATIONS", "TOLERANCE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.OpsPort)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:gobayes.db", cfg.Database.URL)
	assert.Equal(t, 2, cfg.Worker.Count)
	assert.Equal(t, 2*time.Minute, cfg.Worker.FitTimeout)
	assert.Equal(t, 30*time.Second, cfg.Worker.SampleTimeout)
	assert.Equal(t, 1000, cfg.Worker.SampleBatchSize)
	assert.Equal(t, uint64(42), cfg.Inference.DefaultSeed)
	assert.Equal(t, 1000, cfg.Inference.MaxIterations)
	assert.Equal(t, 1e-6, cfg.Inference.Tolerance)

	d := cfg.EngineDefaults()
	assert.Equal(t, uint64(42), d.Seed)
	cc := cfg.ClientConfig()
	assert.Equal(t, 1000, cc.BatchSize)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/gobayes?sslmode=disable")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("FIT_TIMEOUT", "90s")
	t.Setenv("DEFAULT_SEED", "7")
	t.Setenv("TOLERANCE", "1e-4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, 90*time.Second, cfg.Worker.FitTimeout)
	assert.Equal(t, uint64(7), cfg.Inference.DefaultSeed)
	assert.Equal(t, 1e-4, cfg.Inference.Tolerance)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"driver":      {"DATABASE_DRIVER", "mysql"},
		"workers":     {"WORKER_COUNT", "0"},
		"tolerance":   {"TOLERANCE", "-1"},
		"level":       {"LOG_LEVEL", "LOUD"},
		"same ports":  {"OPS_PORT", "8080"},
		"gin mode":    {"GIN_MODE", "verbose"},
		"batch size":  {"SAMPLE_BATCH_SIZE", "-5"},
		"port digits": {"PORT", "http"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadFitOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
priorParams:
  family: beta
  alpha: 2
  beta: 8
maxIterations: 250
tolerance: 0.0001
seed: 99
`), 0o644))

	opts, err := LoadFitOptions(path)
	require.NoError(t, err)
	require.NotNil(t, opts.PriorParams)
	assert.Equal(t, "beta", opts.PriorParams.Family)
	assert.Equal(t, 2.0, opts.PriorParams.Alpha)
	assert.Equal(t, 8.0, opts.PriorParams.Beta)
	assert.Equal(t, 250, opts.MaxIterations)
	assert.Equal(t, 1e-4, opts.Tolerance)
	assert.Equal(t, uint64(99), opts.Seed)
}

func TestLoadFitOptions_Errors(t *testing.T) {
	_, err := LoadFitOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("maxIterations: [1, 2]\n"), 0o644))
	_, err = LoadFitOptions(bad)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidData, errors.GetCode(err))

	negative := filepath.Join(t.TempDir(), "neg.yaml")
	require.NoError(t, os.WriteFile(negative, []byte("tolerance: -0.5\n"), 0o644))
	_, err = LoadFitOptions(negative)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidData, errors.GetCode(err))
}
