package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Host       string `yaml:"host"`
	DBName     string `yaml:"dbname"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	AuthSource string `yaml:"authSource"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // mongo | postgres | memory
}

type SiteConfig struct {
	BaseURL string `yaml:"base_url"`
}

type FetcherConfig struct {
	Mode              string        `yaml:"mode"` // headless | static
	UserAgent         string        `yaml:"user_agent"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type SchedulerConfig struct {
	ListingEnabled  bool          `yaml:"listing_enabled"`
	ListingInterval time.Duration `yaml:"listing_interval"`
	StartPage       int           `yaml:"start_page"`
	MaxPage         int           `yaml:"max_page"`
	PageLimit       int           `yaml:"page_limit"`
	OnFailure       string        `yaml:"on_failure"` // skip | retry
	MaxPageRetries  int           `yaml:"max_page_retries"`

	SweepEnabled  bool          `yaml:"sweep_enabled"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	FollowListing bool          `yaml:"follow_listing"`

	DetailBackoff  time.Duration `yaml:"detail_backoff"`
	InsertAttempts int           `yaml:"insert_attempts"`
	BackfillIDs    bool          `yaml:"backfill_ids"`
}

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Mongo       MongoConfig     `yaml:"mongo"`
	Postgres    PostgresConfig  `yaml:"postgres"`
	Store       StoreConfig     `yaml:"store"`
	Site        SiteConfig      `yaml:"site"`
	Fetcher     FetcherConfig   `yaml:"fetcher"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	CORSOrigins string          `yaml:"cors_origins"`
	Debug       bool            `yaml:"debug"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":5000"},
		Mongo: MongoConfig{
			URI:    "mongodb://localhost:27017/",
			DBName: "scraped_data",
		},
		Store: StoreConfig{Driver: "mongo"},
		Fetcher: FetcherConfig{
			Mode:              "headless",
			SettleDelay:       5 * time.Second,
			NavigationTimeout: 45 * time.Second,
			RequestsPerSecond: 1,
		},
		Scheduler: SchedulerConfig{
			ListingEnabled:  true,
			ListingInterval: 5 * time.Second,
			StartPage:       1,
			MaxPage:         1,
			PageLimit:       15,
			OnFailure:       "skip",
			MaxPageRetries:  3,
			SweepEnabled:    true,
			SweepInterval:   10 * time.Second,
			FollowListing:   true,
			DetailBackoff:   3 * time.Second,
			InsertAttempts:  1,
		},
		CORSOrigins: "http://localhost:3000",
	}
}

// LoadConfig reads the yaml file at path on top of Default and applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = v
	}
	if v := os.Getenv("DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case "mongo":
		if c.Mongo.URI == "" && c.Mongo.Host == "" {
			return fmt.Errorf("mongo.uri or mongo.host is required")
		}
		if c.Mongo.DBName == "" {
			return fmt.Errorf("mongo.dbname is required")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported store.driver %q", c.Store.Driver)
	}
	switch c.Fetcher.Mode {
	case "headless", "static":
	default:
		return fmt.Errorf("unsupported fetcher.mode %q", c.Fetcher.Mode)
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	s := c.Scheduler
	if s.PageLimit <= 0 || s.PageLimit > 15 {
		return fmt.Errorf("scheduler.page_limit must be in 1..15")
	}
	if s.StartPage <= 0 {
		return fmt.Errorf("scheduler.start_page must be > 0")
	}
	if s.OnFailure != "skip" && s.OnFailure != "retry" {
		return fmt.Errorf("scheduler.on_failure must be skip or retry")
	}
	if s.ListingEnabled && s.ListingInterval <= 0 {
		return fmt.Errorf("scheduler.listing_interval must be > 0")
	}
	if s.SweepEnabled && s.SweepInterval <= 0 {
		return fmt.Errorf("scheduler.sweep_interval must be > 0")
	}
	if s.InsertAttempts <= 0 {
		return fmt.Errorf("scheduler.insert_attempts must be > 0")
	}
	return nil
}

// MongoURI builds the connection string, preferring an explicit uri.
func (m MongoConfig) MongoURI() string {
	if m.URI != "" {
		return m.URI
	}
	return "mongodb://" + m.Host
}
