package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	domain "gobayes/domain/inference"
	"gobayes/internal"
	"gobayes/internal/errors"
	"gobayes/internal/inference"
	"gobayes/internal/worker"
)

// Config represents the complete application configuration
type Config struct {
	LogLevel  string          `validate:"required,oneof=ERROR WARN WARNING INFO DEBUG TRACE"`
	Server    ServerConfig    `validate:"required"`
	Database  DatabaseConfig  `validate:"required"`
	Worker    WorkerConfig    `validate:"required"`
	Inference InferenceConfig `validate:"required"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required,numeric"`
	OpsPort string `validate:"required,numeric,nefield=Port"`
	GinMode string `validate:"oneof=debug release test"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `validate:"required,oneof=sqlite postgres"`
	URL    string `validate:"required"`
}

// WorkerConfig sizes the execution-context pool and its caller-side timeouts.
type WorkerConfig struct {
	Count           int           `validate:"gte=1,lte=64"`
	FitTimeout      time.Duration `validate:"gt=0"`
	SampleTimeout   time.Duration `validate:"gt=0"`
	SampleBatchSize int           `validate:"gte=1,lte=100000"`
}

// InferenceConfig holds the FitOptions defaults.
type InferenceConfig struct {
	DefaultSeed   uint64
	MaxIterations int     `validate:"gte=1"`
	Tolerance     float64 `validate:"gt=0"`
}

var validate = validator.New()

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		LogLevel:  strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		Server:    loadServerConfig(),
		Database:  loadDatabaseConfig(),
		Worker:    loadWorkerConfig(),
		Inference: loadInferenceConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		OpsPort: getEnvOrDefault("OPS_PORT", "9090"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite"),
		URL:    getEnvOrDefault("DATABASE_URL", "file:gobayes.db"),
	}
}

func loadWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Count:           getEnvIntOrDefault("WORKER_COUNT", 2),
		FitTimeout:      getEnvDurationOrDefault("FIT_TIMEOUT", 2*time.Minute),
		SampleTimeout:   getEnvDurationOrDefault("SAMPLE_TIMEOUT", 30*time.Second),
		SampleBatchSize: getEnvIntOrDefault("SAMPLE_BATCH_SIZE", 1000),
	}
}

func loadInferenceConfig() InferenceConfig {
	return InferenceConfig{
		DefaultSeed:   getEnvUintOrDefault("DEFAULT_SEED", 42),
		MaxIterations: getEnvIntOrDefault("MAX_ITERATIONS", domain.DefaultMaxIterations),
		Tolerance:     getEnvFloatOrDefault("TOLERANCE", domain.DefaultTolerance),
	}
}

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.ConfigInvalid(strings.Join(msgs, "; "))
		}
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Logger builds the leveled logger for LogLevel.
func (c *Config) Logger() *internal.Logger {
	level, _ := internal.ParseLogLevel(c.LogLevel)
	return internal.NewLogger(level)
}

// EngineDefaults converts the inference section for inference.NewEngine.
func (c *Config) EngineDefaults() inference.Defaults {
	return inference.Defaults{
		MaxIterations: c.Inference.MaxIterations,
		Tolerance:     c.Inference.Tolerance,
		Seed:          c.Inference.DefaultSeed,
	}
}

// ClientConfig converts the worker section for worker.NewPool.
func (c *Config) ClientConfig() worker.ClientConfig {
	return worker.ClientConfig{
		FitTimeout:    c.Worker.FitTimeout,
		SampleTimeout: c.Worker.SampleTimeout,
		BatchSize:     c.Worker.SampleBatchSize,
	}
}

// LoadFitOptions reads FitOptions from a YAML file.
func LoadFitOptions(path string) (domain.FitOptions, error) {
	var opts domain.FitOptions
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrapf(err, "read fit options %s", path)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, errors.WithCode(errors.CodeInvalidData, fmt.Errorf("parse fit options %s: %w", path, err))
	}
	if opts.MaxIterations < 0 {
		return opts, errors.InvalidData(fmt.Sprintf("%s: maxIterations must be >= 0 (got %d)", path, opts.MaxIterations))
	}
	if opts.Tolerance < 0 {
		return opts, errors.InvalidData(fmt.Sprintf("%s: tolerance must be >= 0 (got %g)", path, opts.Tolerance))
	}
	return opts, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
