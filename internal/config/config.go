package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chxlky/trello-citydash/integrations"
	"github.com/chxlky/trello-citydash/internal/dashboard"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "CITYDASH"

	MinUpcomingDays       = 1
	MaxUpcomingDays       = 60
	MinRevalidateSeconds  = 15
	MaxRevalidateSeconds  = 3600
	MinAuthSecretLength   = 32
	DefaultCityFieldName  = "Ciudad"
	DefaultDatabasePath   = "citydash.db"
	DefaultFetchTimeout   = 30 * time.Second
	DefaultSessionTTL     = 12 * time.Hour
	DefaultUpcomingDays   = 7
	DefaultRevalidateSecs = 60
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

type Config struct {
	Trello    TrelloConfig
	City      CityConfig
	Dashboard DashboardConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Server    ServerConfig
	Log       LogConfig
	Google    GoogleConfig
}

type TrelloConfig struct {
	APIKey   string
	APIToken string
	BoardID  string
	BaseURL  string
}

type CityConfig struct {
	Mode      dashboard.CityMode
	FieldName string
}

type DashboardConfig struct {
	UpcomingDays int
	Revalidate   time.Duration
	FetchTimeout time.Duration
	Vocabulary   dashboard.Vocabulary
}

type CacheConfig struct {
	Driver   string
	RedisURL string
}

type DatabaseConfig struct {
	Path string
}

type AuthConfig struct {
	User       string
	Pass       string
	Secret     string
	SessionTTL time.Duration
}

type ServerConfig struct {
	Port string
	Mode string
}

type LogConfig struct {
	Level string
}

type GoogleConfig struct {
	CalendarID string
	// ServiceAccount is the service account key as JSON.
	ServiceAccount []byte
}

// legacyEnv lists the unprefixed variable names older deployments use.
var legacyEnv = map[string][]string{
	"trello.api_key":               {"TRELLO_KEY", "TRELLO_API_KEY"},
	"trello.api_token":             {"TRELLO_TOKEN"},
	"trello.board_id":              {"TRELLO_BOARD_ID"},
	"auth.user":                    {"AUTH_USER"},
	"auth.pass":                    {"AUTH_PASS"},
	"auth.secret":                  {"AUTH_SECRET"},
	"city.mode":                    {"CITY_MODE"},
	"city.field_name":              {"CITY_FIELD_NAME"},
	"dashboard.upcoming_days":      {"UPCOMING_DAYS"},
	"dashboard.revalidate_seconds": {"TRELLO_REVALIDATE_SECONDS"},
	"log.level":                    {"LOG_LEVEL"},
}

func SetDefaults(v *viper.Viper) {
	vocab := dashboard.DefaultVocabulary()

	v.SetDefault("trello.base_url", integrations.DefaultTrelloBaseURL)
	v.SetDefault("city.mode", string(dashboard.CityModeAuto))
	v.SetDefault("city.field_name", DefaultCityFieldName)
	v.SetDefault("dashboard.upcoming_days", DefaultUpcomingDays)
	v.SetDefault("dashboard.revalidate_seconds", DefaultRevalidateSecs)
	v.SetDefault("dashboard.fetch_timeout", DefaultFetchTimeout)
	v.SetDefault("dashboard.workflow_hints", vocab.Workflow)
	v.SetDefault("dashboard.undefined_hints", vocab.Undefined)
	v.SetDefault("dashboard.designer_hints", vocab.Designer)
	v.SetDefault("cache.driver", CacheMemory)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("auth.session_ttl", DefaultSessionTTL)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "debug")
}

// New returns a viper instance reading config.toml from configFile or the
// working directory, with CITYDASH_ environment overrides.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envs := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// Load validates every key and returns the immutable configuration. All
// problems are reported together.
func Load(v *viper.Viper) (Config, error) {
	var errs []error
	required := func(key string) string {
		s := strings.TrimSpace(v.GetString(key))
		if s == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
		return s
	}
	boundedInt := func(key string, lo, hi int) int {
		n, err := cast.ToIntE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be an integer: %w", key, err))
			return 0
		}
		if n < lo || n > hi {
			errs = append(errs, fmt.Errorf("%s must be between %d and %d, got %d", key, lo, hi, n))
		}
		return n
	}

	var cfg Config
	cfg.Trello = TrelloConfig{
		APIKey:   required("trello.api_key"),
		APIToken: required("trello.api_token"),
		BoardID:  required("trello.board_id"),
		BaseURL:  v.GetString("trello.base_url"),
	}

	mode, err := dashboard.ParseCityMode(v.GetString("city.mode"))
	if err != nil {
		errs = append(errs, fmt.Errorf("city.mode: %w", err))
	}
	cfg.City = CityConfig{Mode: mode, FieldName: required("city.field_name")}

	cfg.Dashboard = DashboardConfig{
		UpcomingDays: boundedInt("dashboard.upcoming_days", MinUpcomingDays, MaxUpcomingDays),
		Revalidate:   time.Duration(boundedInt("dashboard.revalidate_seconds", MinRevalidateSeconds, MaxRevalidateSeconds)) * time.Second,
		FetchTimeout: v.GetDuration("dashboard.fetch_timeout"),
		Vocabulary: dashboard.Vocabulary{
			Workflow:  stringList(v, "dashboard.workflow_hints"),
			Undefined: stringList(v, "dashboard.undefined_hints"),
			Designer:  stringList(v, "dashboard.designer_hints"),
		},
	}
	if cfg.Dashboard.FetchTimeout <= 0 {
		errs = append(errs, errors.New("dashboard.fetch_timeout must be positive"))
	}

	cfg.Cache = CacheConfig{
		Driver:   strings.ToLower(v.GetString("cache.driver")),
		RedisURL: v.GetString("cache.redis_url"),
	}
	switch cfg.Cache.Driver {
	case CacheMemory, CacheSQLite:
	case CacheRedis:
		if cfg.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required when cache.driver is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.driver must be memory, redis or sqlite, got %q", cfg.Cache.Driver))
	}

	cfg.Database = DatabaseConfig{Path: v.GetString("database.path")}
	cfg.Auth = AuthConfig{
		User:       v.GetString("auth.user"),
		Pass:       v.GetString("auth.pass"),
		Secret:     v.GetString("auth.secret"),
		SessionTTL: v.GetDuration("auth.session_ttl"),
	}
	cfg.Server = ServerConfig{Port: v.GetString("server.port"), Mode: v.GetString("server.mode")}
	cfg.Log = LogConfig{Level: v.GetString("log.level")}

	cfg.Google.CalendarID = v.GetString("google.calendar_id")
	if settings := v.Get("google.service_account"); settings != nil {
		jsonBytes, err := json.Marshal(settings)
		if err != nil {
			errs = append(errs, fmt.Errorf("unable to marshal service account settings to JSON: %w", err))
		}
		cfg.Google.ServiceAccount = jsonBytes
	}
	if cfg.Google.CalendarID != "" && len(cfg.Google.ServiceAccount) == 0 {
		errs = append(errs, errors.New("google.service_account is required when google.calendar_id is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// stringList reads a list key. Values from the environment arrive as one
// string and are split on commas so that hints may contain spaces.
func stringList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return cast.ToStringSlice(v.Get(key))
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the login settings the HTTP server needs.
func (c AuthConfig) Validate() error {
	var errs []error
	if c.User == "" {
		errs = append(errs, errors.New("auth.user is required"))
	}
	if c.Pass == "" {
		errs = append(errs, errors.New("auth.pass is required"))
	}
	if len(c.Secret) < MinAuthSecretLength {
		errs = append(errs, fmt.Errorf("auth.secret must be at least %d characters", MinAuthSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	return errors.Join(errs...)
}

// CalendarEnabled reports whether the calendar mirror is configured.
func (c Config) CalendarEnabled() bool {
	return c.Google.CalendarID != ""
}

// DashboardOptions derives the pipeline options.
func (c Config) DashboardOptions() dashboard.Options {
	return dashboard.Options{
		BoardID:       c.Trello.BoardID,
		CityMode:      c.City.Mode,
		CityFieldName: c.City.FieldName,
		UpcomingDays:  c.Dashboard.UpcomingDays,
		Vocabulary:    c.Dashboard.Vocabulary,
		Timeout:       c.Dashboard.FetchTimeout,
	}
}
