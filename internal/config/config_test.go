package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, DriverOxiDB, cfg.Store.Driver)
	assert.Equal(t, ActivationMulti, cfg.Templates.ActivationMode)
	assert.Equal(t, 10, cfg.Grading.MinAnswerChars)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
store:
  driver: sqlite
templates:
  activation_mode: single
grading:
  provider: openai
  openai_api_key: sk-file
  timeout: 5s
`), 0o600))
	t.Setenv("PLAN_STORE", "memory")
	t.Setenv("OXIDB_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ActivationSingle, cfg.Templates.ActivationMode)
	assert.Equal(t, GraderOpenAI, cfg.Grading.Provider)
	assert.Equal(t, 5*time.Second, cfg.Grading.Timeout)
	assert.Equal(t, 4444, cfg.OxiDB.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mongo"
	cfg.Templates.ActivationMode = "some"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.ErrorContains(t, err, "store.driver")
	assert.ErrorContains(t, err, "templates.activation_mode")

	cfg = Default()
	cfg.Grading.Provider = GraderOpenAI
	cfg.Grading.Fallback = false
	assert.ErrorContains(t, cfg.Validate(), "openai_api_key")
}
