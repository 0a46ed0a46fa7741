package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chxlky/trello-citydash/internal/dashboard"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[trello]
api_key = "key"
api_token = "token"
board_id = "board1"

[city]
mode = "list"

[dashboard]
upcoming_days = 14
revalidate_seconds = 120
workflow_hints = ["backlog", "doing"]

[auth]
user = "ciudades"
pass = "s3cret"
secret = "0123456789abcdef0123456789abcdef"

[google]
calendar_id = "primary"

[google.service_account]
type = "service_account"
client_email = "bot@example.iam.gserviceaccount.com"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func baseViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.Set("trello.api_key", "key")
	v.Set("trello.api_token", "token")
	v.Set("trello.board_id", "board1")
	return v
}

func TestLoadFromFile(t *testing.T) {
	v, err := New(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "board1", cfg.Trello.BoardID)
	assert.Equal(t, "https://api.trello.com/1", cfg.Trello.BaseURL)
	assert.Equal(t, dashboard.CityModeList, cfg.City.Mode)
	assert.Equal(t, "Ciudad", cfg.City.FieldName)
	assert.Equal(t, 14, cfg.Dashboard.UpcomingDays)
	assert.Equal(t, 2*time.Minute, cfg.Dashboard.Revalidate)
	assert.Equal(t, 30*time.Second, cfg.Dashboard.FetchTimeout)
	assert.Equal(t, []string{"backlog", "doing"}, cfg.Dashboard.Vocabulary.Workflow)
	assert.Equal(t, dashboard.DefaultVocabulary().Undefined, cfg.Dashboard.Vocabulary.Undefined)
	assert.Equal(t, CacheMemory, cfg.Cache.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.NoError(t, cfg.Auth.Validate())
	assert.True(t, cfg.CalendarEnabled())
	assert.JSONEq(t, `{"type":"service_account","client_email":"bot@example.iam.gserviceaccount.com"}`, string(cfg.Google.ServiceAccount))

	opts := cfg.DashboardOptions()
	assert.Equal(t, "trello-dashboard:board1:list:Ciudad:14", opts.CacheKey())
	assert.Equal(t, 30*time.Second, opts.Timeout)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(baseViper())
	require.NoError(t, err)
	assert.Equal(t, dashboard.CityModeAuto, cfg.City.Mode)
	assert.Equal(t, 7, cfg.Dashboard.UpcomingDays)
	assert.Equal(t, time.Minute, cfg.Dashboard.Revalidate)
	assert.False(t, cfg.CalendarEnabled())
	assert.Error(t, cfg.Auth.Validate())
}

func TestLoadReportsEveryProblem(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("city.mode", "region")
	v.Set("dashboard.upcoming_days", 0)
	v.Set("dashboard.revalidate_seconds", "soon")
	v.Set("cache.driver", "memcached")

	_, err := Load(v)
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"trello.api_key is required",
		"trello.api_token is required",
		"trello.board_id is required",
		"city.mode",
		"dashboard.upcoming_days must be between 1 and 60, got 0",
		"dashboard.revalidate_seconds must be an integer",
		"cache.driver must be memory, redis or sqlite",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadBounds(t *testing.T) {
	tests := []struct {
		key   string
		value int
		ok    bool
	}{
		{"dashboard.upcoming_days", 1, true},
		{"dashboard.upcoming_days", 60, true},
		{"dashboard.upcoming_days", 61, false},
		{"dashboard.revalidate_seconds", 14, false},
		{"dashboard.revalidate_seconds", 15, true},
		{"dashboard.revalidate_seconds", 3600, true},
		{"dashboard.revalidate_seconds", 3601, false},
	}
	for _, tt := range tests {
		v := baseViper()
		v.Set(tt.key, tt.value)
		_, err := Load(v)
		if tt.ok {
			assert.NoError(t, err, "%s=%d", tt.key, tt.value)
		} else {
			assert.Error(t, err, "%s=%d", tt.key, tt.value)
		}
	}
}

func TestLoadRedisNeedsURL(t *testing.T) {
	v := baseViper()
	v.Set("cache.driver", "redis")
	_, err := Load(v)
	assert.ErrorContains(t, err, "cache.redis_url")

	v.Set("cache.redis_url", "redis://localhost:6379/0")
	_, err = Load(v)
	assert.NoError(t, err)
}

func TestCalendarNeedsServiceAccount(t *testing.T) {
	v := baseViper()
	v.Set("google.calendar_id", "primary")
	_, err := Load(v)
	assert.ErrorContains(t, err, "google.service_account")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TRELLO_KEY", "legacy-key")
	t.Setenv("TRELLO_TOKEN", "legacy-token")
	t.Setenv("CITYDASH_TRELLO_BOARD_ID", "board-from-env")
	t.Setenv("UPCOMING_DAYS", "21")
	t.Chdir(t.TempDir())

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.Trello.APIKey)
	assert.Equal(t, "legacy-token", cfg.Trello.APIToken)
	assert.Equal(t, "board-from-env", cfg.Trello.BoardID)
	assert.Equal(t, 21, cfg.Dashboard.UpcomingDays)
}

func TestHintListsFromEnvironmentSplitOnCommas(t *testing.T) {
	t.Setenv("TRELLO_KEY", "k")
	t.Setenv("TRELLO_TOKEN", "t")
	t.Setenv("TRELLO_BOARD_ID", "b")
	t.Setenv("CITYDASH_DASHBOARD_WORKFLOW_HINTS", "to do, en progreso ,,hecho")
	t.Chdir(t.TempDir())

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"to do", "en progreso", "hecho"}, cfg.Dashboard.Vocabulary.Workflow)
	assert.Equal(t, dashboard.DefaultVocabulary().Designer, cfg.Dashboard.Vocabulary.Designer)
}

func TestNewFailsOnMissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestAuthValidate(t *testing.T) {
	err := AuthConfig{User: "u", Pass: "p", Secret: "short", SessionTTL: time.Hour}.Validate()
	assert.ErrorContains(t, err, "auth.secret must be at least 32 characters")
}
