package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App             AppConfig
	DB              DBConfig
	Redis           RedisConfig
	Data            DataConfig
	UploadRateLimit UploadRateLimitConfig
	Client          ClientConfig
	Dashboard       DashboardConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Client.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `envconfig:"ENGAGE_APP_ENV" default:"dev"`
	Port           string   `envconfig:"ENGAGE_APP_PORT" default:"8000"`
	LogLevel       string   `envconfig:"ENGAGE_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"ENGAGE_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"ENGAGE_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig points at the optional live engagement source. An empty DSN disables it.
type DBConfig struct {
	DSN         string `envconfig:"ENGAGE_DB_DSN"`
	AutoMigrate bool   `envconfig:"ENGAGE_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"ENGAGE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"ENGAGE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"ENGAGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENGAGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// Enabled reports whether a live database source is configured.
func (d DBConfig) Enabled() bool {
	return strings.TrimSpace(d.DSN) != ""
}

// RedisConfig backs upload rate limiting. Leaving both URL and Address empty disables it.
type RedisConfig struct {
	URL          string        `envconfig:"ENGAGE_REDIS_URL"`
	Address      string        `envconfig:"ENGAGE_REDIS_ADDR"`
	Password     string        `envconfig:"ENGAGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENGAGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENGAGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENGAGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENGAGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENGAGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENGAGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether redis connection settings were provided.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type DataConfig struct {
	MockBatchSize int `envconfig:"ENGAGE_MOCK_BATCH_SIZE" default:"50"`
	MaxUploadMB   int `envconfig:"ENGAGE_MAX_UPLOAD_MB" default:"10"`
	LiveFetchSize int `envconfig:"ENGAGE_LIVE_FETCH_SIZE" default:"500"`
}

// MaxUploadBytes converts the configured upload ceiling to bytes.
func (d DataConfig) MaxUploadBytes() int64 {
	if d.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(d.MaxUploadMB) << 20
}

type UploadRateLimitConfig struct {
	Window time.Duration `envconfig:"ENGAGE_UPLOAD_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"ENGAGE_UPLOAD_RATE_LIMIT" default:"10"`
}

type ClientConfig struct {
	BaseURL       string        `envconfig:"ENGAGE_API_URL" default:"http://localhost:8000"`
	Timeout       time.Duration `envconfig:"ENGAGE_API_TIMEOUT" default:"10s"`
	ClientVersion string        `envconfig:"ENGAGE_CLIENT_VERSION" default:"1.0.0"`
}

func (c ClientConfig) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvAPIURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url, got %q", EnvAPIURL, c.BaseURL)
	}
	return nil
}

type DashboardConfig struct {
	DefaultLimit     int           `envconfig:"ENGAGE_DASHBOARD_DEFAULT_LIMIT" default:"10"`
	SuccessNoticeTTL time.Duration `envconfig:"ENGAGE_DASHBOARD_SUCCESS_TTL" default:"3s"`
	ErrorNoticeTTL   time.Duration `envconfig:"ENGAGE_DASHBOARD_ERROR_TTL" default:"5s"`
	WatchInterval    time.Duration `envconfig:"ENGAGE_DASHBOARD_WATCH_INTERVAL" default:"30s"`
}
