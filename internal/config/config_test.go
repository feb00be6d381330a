package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Run.ScoreThreshold)
	assert.Equal(t, "reachbot.db", cfg.Database.Path)
	assert.True(t, cfg.Run.EnableConnect)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
run:
  keywords: "site reliability"
  max_profiles: 5
pacing:
  min_delay_ms: 500
  max_delay_ms: 900
trigger:
  enabled: true
  times: ["09:30"]
  days: ["mon", "fri"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "site reliability", cfg.Run.Keywords)
	assert.Equal(t, 5, cfg.Run.MaxProfiles)
	assert.Equal(t, 500, cfg.Pacing.MinDelayMs)

	rule, err := cfg.TriggerRule()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, rule.Days)
}

func TestLoadRejectsBadTriggerTime(t *testing.T) {
	path := writeConfig(t, `
trigger:
  times: ["25:99"]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REACHBOT_DB_PATH", "/tmp/override.db")
	t.Setenv("REACHBOT_HEADLESS", "true")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.True(t, cfg.Pacing.Headless)
}

func TestRunConfigKeywordFallback(t *testing.T) {
	cfg := defaultConfig()
	cfg.Run.Keywords = "default terms"

	rc := cfg.RunConfig("  ")
	assert.Equal(t, "default terms", rc.Keywords)

	rc = cfg.RunConfig("explicit")
	assert.Equal(t, "explicit", rc.Keywords)
	assert.Equal(t, 45*time.Minute, rc.MaxDuration)
}

func TestParseDays(t *testing.T) {
	days, err := ParseDays([]string{"Mon", "tuesday", " wed "})
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday}, days)

	_, err = ParseDays([]string{"noday"})
	assert.Error(t, err)
}

func TestWithinActiveHours(t *testing.T) {
	cfg := defaultConfig() // 09:00-18:00
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	}
	assert.True(t, cfg.WithinActiveHours(at(9, 0)))
	assert.True(t, cfg.WithinActiveHours(at(17, 59)))
	assert.False(t, cfg.WithinActiveHours(at(18, 0)))
	assert.False(t, cfg.WithinActiveHours(at(3, 0)))

	cfg.Pacing.ActiveStart = "22:00"
	cfg.Pacing.ActiveEnd = "06:00"
	assert.True(t, cfg.WithinActiveHours(at(23, 30)))
	assert.True(t, cfg.WithinActiveHours(at(3, 0)))
	assert.False(t, cfg.WithinActiveHours(at(12, 0)))

	cfg.Pacing.ActiveStart = "garbled"
	assert.True(t, cfg.WithinActiveHours(at(12, 0)))
}
