package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CAPWATCH_DB", "")
	t.Setenv("CAPWATCH_TIMEOUT", "")
	t.Setenv("CAPWATCH_USER_AGENT", "")

	path := writeFile(t, `
concurrency: 3
timeout: 20s
threshold: 0
report: report.txt
competitions:
  - name: Autumn Open
    url: https://discgolfmetrix.com/2934567
  - url: https://tjing.se/event/xyz
    platform: tjing
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.ThresholdOrDefault())
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, "report.txt", cfg.Report)
	require.Len(t, cfg.Competitions, 2)
	assert.Equal(t, "https://tjing.se/event/xyz", cfg.Competitions[1].Name)
	assert.Equal(t, PlatformTjing, cfg.Competitions[1].Platform)
}

func TestLoadConfigEnvFillsUnsetFields(t *testing.T) {
	t.Setenv("CAPWATCH_DB", "/var/lib/capwatch.db")
	t.Setenv("CAPWATCH_TIMEOUT", "30")
	t.Setenv("CAPWATCH_USER_AGENT", "bot/2")

	path := writeFile(t, `
database: local.db
competitions:
  - url: https://discgolfmetrix.com/1
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "local.db", cfg.Database)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "bot/2", cfg.UserAgent)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultThreshold, cfg.ThresholdOrDefault())
}

func TestLoadConfigRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"empty":    "concurrency: 2\n",
		"no url":   "competitions:\n  - name: x\n",
		"platform": "competitions:\n  - url: https://a.example\n    platform: ftp\n",
		"dup":      "competitions:\n  - name: a\n    url: https://a.example\n  - name: a\n    url: https://b.example\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestCompetitionDetect(t *testing.T) {
	assert.Equal(t, PlatformTjing, Competition{URL: "https://www.tjing.se/event/1"}.Detect())
	assert.Equal(t, PlatformMetrix, Competition{URL: "https://discgolfmetrix.com/1"}.Detect())
	assert.Equal(t, PlatformMetrix, Competition{URL: "https://tjing.se/e/1", Platform: PlatformMetrix}.Detect())
}
