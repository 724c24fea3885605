package config

import (
	"cmp"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs to start. Values come from an
// optional YAML file, with environment variables taking precedence.
type Config struct {
	Port       string `yaml:"port"`
	GinMode    string `yaml:"gin_mode"`
	LogLevel   string `yaml:"log_level"`
	NumWorkers int    `yaml:"num_workers"`

	Postgres PostgresConfig `yaml:"postgres"`
	Quotes   QuotesConfig   `yaml:"quotes"`
	Auth     AuthConfig     `yaml:"auth"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type QuotesConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"-"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	RatePerSec int           `yaml:"rate_per_sec"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"-"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Load reads the YAML file at path (missing file is fine), then overlays
// environment variables and defaults. It fails when a required secret is
// absent: the server must not come up without the quote API key or a JWT
// secret.
func Load(path string) (*Config, error) {
	var cfg Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("can't parse config file %s: %w", path, err)
		}
	}

	cfg.Port = cmp.Or(os.Getenv("PORT"), cfg.Port, "8080")
	cfg.GinMode = cmp.Or(os.Getenv("GIN_MODE"), cfg.GinMode, "debug")
	cfg.LogLevel = cmp.Or(os.Getenv("LOG_LEVEL"), cfg.LogLevel, "info")
	if workers := os.Getenv("NUM_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.NumWorkers = n
		}
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 5
	}

	pg := &cfg.Postgres
	pg.Host = cmp.Or(os.Getenv("DB_HOST"), pg.Host, "localhost")
	pg.Port = cmp.Or(os.Getenv("DB_PORT"), pg.Port, "5432")
	pg.Username = cmp.Or(os.Getenv("DB_USER"), pg.Username, "trader")
	pg.Password = cmp.Or(os.Getenv("DB_PASSWORD"), pg.Password, "trading123")
	pg.DBName = cmp.Or(os.Getenv("DB_NAME"), pg.DBName, "trading_db")
	pg.SSLMode = cmp.Or(os.Getenv("DB_SSL_MODE"), pg.SSLMode, "disable")

	q := &cfg.Quotes
	q.BaseURL = cmp.Or(os.Getenv("FINNHUB_BASE_URL"), q.BaseURL, "https://finnhub.io/api/v1")
	q.APIKey = os.Getenv("API_KEY")
	if q.APIKey == "" {
		return nil, fmt.Errorf("API_KEY is not set; run with API_KEY=<finnhub key>")
	}
	if q.Timeout <= 0 {
		q.Timeout = 5 * time.Second
	}
	if q.CacheTTL <= 0 {
		q.CacheTTL = 10 * time.Second
	}
	if q.RatePerSec <= 0 {
		q.RatePerSec = 10
	}

	a := &cfg.Auth
	a.JWTSecret = os.Getenv("JWT_SECRET")
	if a.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	if a.TokenTTL <= 0 {
		a.TokenTTL = 24 * time.Hour
	}

	return &cfg, nil
}

// ConnString renders the lib/pq connection string.
func (c *PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}
