// Package config loads the server configuration from an optional YAML file
// and then from environment variables, which win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	OxiDB     OxiDBConfig     `yaml:"oxidb"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Auth      AuthConfig      `yaml:"auth"`
	Templates TemplatesConfig `yaml:"templates"`
	Grading   GradingConfig   `yaml:"grading"`
	Log       LogConfig       `yaml:"log"`
	Blob      BlobConfig      `yaml:"blob"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
}

type OxiDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	PoolSize int    `yaml:"pool_size"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type TemplatesConfig struct {
	ActivationMode string `yaml:"activation_mode"`
}

type GradingConfig struct {
	Provider       string        `yaml:"provider"`
	OpenAIModel    string        `yaml:"openai_model"`
	OpenAIKey      string        `yaml:"openai_api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	Fallback       bool          `yaml:"fallback"`
	MinAnswerChars int           `yaml:"min_answer_chars"`
	Parallelism    int           `yaml:"parallelism"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	GelfAddr string `yaml:"gelf_addr"`
}

type BlobConfig struct {
	PublicBaseURL string `yaml:"public_base_url"`
	Bucket        string `yaml:"bucket"`
}

const (
	DriverOxiDB  = "oxidb"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"

	ActivationMulti  = "multi"
	ActivationSingle = "single"

	GraderOpenAI    = "openai"
	GraderHeuristic = "heuristic"
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTP:      HTTPConfig{Addr: ":8080"},
		Store:     StoreConfig{Driver: DriverOxiDB},
		OxiDB:     OxiDBConfig{Host: "127.0.0.1", Port: 4444, PoolSize: 3},
		SQLite:    SQLiteConfig{Path: "oxiplan.db"},
		Auth:      AuthConfig{JWTSecret: "oxiplan-dev-secret-change-me"},
		Templates: TemplatesConfig{ActivationMode: ActivationMulti},
		Grading: GradingConfig{
			Provider:       GraderHeuristic,
			OpenAIModel:    "gpt-4.1-mini",
			Timeout:        20 * time.Second,
			Fallback:       true,
			MinAnswerChars: 10,
			Parallelism:    4,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path when it is non-empty, then applies environment
// overrides. A missing file is an error; an empty path is not.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = getEnv("PLAN_ADDR", c.HTTP.Addr)
	c.Store.Driver = getEnv("PLAN_STORE", c.Store.Driver)
	c.OxiDB.Host = getEnv("OXIDB_HOST", c.OxiDB.Host)
	c.OxiDB.Port = getEnvInt("OXIDB_PORT", c.OxiDB.Port)
	c.OxiDB.PoolSize = getEnvInt("PLAN_POOL_SIZE", c.OxiDB.PoolSize)
	c.SQLite.Path = getEnv("PLAN_SQLITE_PATH", c.SQLite.Path)
	c.Auth.JWTSecret = getEnv("PLAN_JWT_SECRET", c.Auth.JWTSecret)
	c.Templates.ActivationMode = getEnv("PLAN_ACTIVATION_MODE", c.Templates.ActivationMode)
	c.Grading.Provider = getEnv("PLAN_GRADER", c.Grading.Provider)
	c.Grading.OpenAIModel = getEnv("OPENAI_MODEL", c.Grading.OpenAIModel)
	c.Grading.OpenAIKey = getEnv("OPENAI_API_KEY", c.Grading.OpenAIKey)
	c.Log.Level = getEnv("PLAN_LOG_LEVEL", c.Log.Level)
	c.Log.GelfAddr = getEnv("PLAN_GELF_ADDR", c.Log.GelfAddr)
	c.Blob.PublicBaseURL = getEnv("PLAN_PUBLIC_URL", c.Blob.PublicBaseURL)
}

// Validate rejects unknown enum values and impossible numbers.
func (c *Config) Validate() error {
	var problems []error
	switch c.Store.Driver {
	case DriverOxiDB, DriverSQLite, DriverMemory:
	default:
		problems = append(problems, errs.Validation("store.driver", "unknown driver %q", c.Store.Driver))
	}
	switch c.Templates.ActivationMode {
	case ActivationMulti, ActivationSingle:
	default:
		problems = append(problems, errs.Validation("templates.activation_mode", "unknown mode %q", c.Templates.ActivationMode))
	}
	switch c.Grading.Provider {
	case GraderOpenAI, GraderHeuristic:
	default:
		problems = append(problems, errs.Validation("grading.provider", "unknown provider %q", c.Grading.Provider))
	}
	if c.Grading.Provider == GraderOpenAI && c.Grading.OpenAIKey == "" && !c.Grading.Fallback {
		problems = append(problems, errs.Validation("grading.openai_api_key", "required when fallback is off"))
	}
	if c.Store.Driver == DriverOxiDB && c.OxiDB.PoolSize < 1 {
		problems = append(problems, errs.Validation("oxidb.pool_size", "must be at least 1"))
	}
	if c.Grading.Parallelism < 1 {
		problems = append(problems, errs.Validation("grading.parallelism", "must be at least 1"))
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, errs.Validation("auth.jwt_secret", "must not be empty"))
	}
	return errors.Join(problems...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}
