package common

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobcopilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: file:yaml.db
poller:
  interval: 10s
  max_attempts: 5
ownership:
  static_owners:
    p1: u1
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_URL", "file:env.db")
	t.Setenv("POLLER_ID", "worker-a")
	t.Setenv("POLLER_MAX_ATTEMPTS", "")
	t.Setenv("POLLER_INTERVAL", "")
	t.Setenv("POLLER_LOCK_TTL_MS", "120000")
	t.Setenv("INGEST_DIRS", " /a, ,/b ")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:env.db", cfg.Database.DSN)
	assert.Equal(t, "worker-a", cfg.Poller.ID)
	assert.Equal(t, 10*time.Second, cfg.Poller.Interval)
	assert.Equal(t, 5, cfg.Poller.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Poller.LeaseTTL)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Ingest.Dirs)
	assert.Equal(t, map[string]string{"p1": "u1"}, cfg.Ownership.StaticOwners)
	assert.Equal(t, 8, cfg.Pipeline.PoolSize)
}

func TestLoadConfig_BadYAMLFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Database.DSN = "postgres://localhost/jobs"
		return &c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"driver":   func(c *Config) { c.Database.Driver = "mysql" },
		"dsn":      func(c *Config) { c.Database.DSN = "" },
		"attempts": func(c *Config) { c.Poller.MaxAttempts = 0 },
		"interval": func(c *Config) { c.Poller.Interval = 0 },
		"pool":     func(c *Config) { c.Pipeline.PoolSize = 0 },
		"ingest":   func(c *Config) { c.Ingest.Dirs = []string{"/tmp"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewAppError("PROFILE_FORBIDDEN", "Profile does not belong to the authenticated user: p1", ErrForbidden))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "Profile does not belong to the authenticated user: p1", MessageOf(err))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.Field("profileId", "", Required)
	v.Field("url", "ftp://x", HTTPURL)
	err := v.Error()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Len(t, v.Errors(), 2)
	assert.Equal(t, "profileId is required; url must be a valid http(s) URL", MessageOf(err))

	assert.NoError(t, NewValidator().Field("url", "https://jobs.example.com/1", HTTPURL).Error())
}

func TestValidationRules(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		rule  ValidationRule
		want  string
	}{
		{"nil is missing", nil, Required, "is required"},
		{"empty bytes are missing", []byte{}, Required, "is required"},
		{"bytes present", []byte("%PDF"), Required, ""},
		{"blank string", "  ", Required, "is required"},
		{"within max", "héllo", MaxLen(5), ""},
		{"over max counts runes", "héllo!", MaxLen(5), "must be at most 5 characters"},
		{"failed check", "XML", Check(false, "must be URL or PASTED"), "must be URL or PASTED"},
		{"passed check", "URL", Check(true, "must be URL or PASTED"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule("field", tt.value)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Message)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
