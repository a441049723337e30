package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Source   SourceConfig   `mapstructure:"source"`
	Matching MatchingConfig `mapstructure:"matching"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Events   EventsConfig   `mapstructure:"events"`
}

type ServerConfig struct {
	Port       int        `mapstructure:"port"`
	Mode       string     `mapstructure:"mode"`
	AdminToken string     `mapstructure:"admin_token"`
	CORS       CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path + "?_busy_timeout=5000"
}

// Match modes for the alert cycle.
const (
	MatchModeNew = "new"
	MatchModeAll = "all"
)

type WorkerConfig struct {
	Region         string        `mapstructure:"region"`
	Interval       time.Duration `mapstructure:"interval"`
	MatchMode      string        `mapstructure:"match_mode"`
	CandidateLimit int           `mapstructure:"candidate_limit"`
	Embedded       bool          `mapstructure:"embedded"`
	TestMode       bool          `mapstructure:"test_mode"`
}

type SourceConfig struct {
	SearchURLs map[string]string `mapstructure:"search_urls"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	RetryCount int               `mapstructure:"retry_count"`
	UserAgent  string            `mapstructure:"user_agent"`
	// StagingDir, when set, adds a replay of <dir>/<region>/jobs.jsonl to every fetch.
	StagingDir string `mapstructure:"staging_dir"`
}

// SearchURL returns the search page for a region.
func (c *SourceConfig) SearchURL(region string) string {
	return c.SearchURLs[strings.ToLower(region)]
}

type MatchingConfig struct {
	AreaGroupsFile string `mapstructure:"area_groups_file"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Brand    string `mapstructure:"brand"`
}

// Enabled reports whether an SMTP relay is configured.
func (c *SMTPConfig) Enabled() bool {
	return c.Host != "" && (c.From != "" || c.Username != "")
}

type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// Enabled reports whether snapshot archiving is configured.
func (c *StorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type EventsConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment knobs come from the environment
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("server.admin_token", "ADMIN_TOKEN")
	v.BindEnv("worker.region", "WORKER_REGION")
	v.BindEnv("worker.test_mode", "TEST_MODE")
	v.BindEnv("smtp.host", "SMTP_HOST")
	v.BindEnv("smtp.port", "SMTP_PORT")
	v.BindEnv("smtp.username", "SMTP_USERNAME")
	v.BindEnv("smtp.password", "SMTP_PASSWORD")
	v.BindEnv("smtp.from", "EMAIL_FROM")
	v.BindEnv("cache.redis_url", "REDIS_URL")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("events.brokers", "KAFKA_BROKERS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/jobalerts.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("worker.region", "uk")
	v.SetDefault("worker.interval", 60*time.Second)
	v.SetDefault("worker.match_mode", MatchModeNew)
	v.SetDefault("worker.candidate_limit", 200)
	v.SetDefault("source.search_urls", map[string]string{
		"uk": "https://www.jobsatamazon.co.uk/app#/jobSearch",
		"us": "https://hiring.amazon.com/app#/jobSearch",
	})
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.retry_count", 3)
	v.SetDefault("source.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.brand", "Amazon")
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("storage.type", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("events.topic", "job-alert-deliveries")
}

// Validate checks values viper cannot express as types.
func (c *Config) Validate() error {
	switch c.Worker.MatchMode {
	case MatchModeNew, MatchModeAll:
	default:
		return fmt.Errorf("invalid worker.match_mode %q: want %q or %q", c.Worker.MatchMode, MatchModeNew, MatchModeAll)
	}
	if c.Worker.Interval <= 0 {
		return fmt.Errorf("invalid worker.interval %s", c.Worker.Interval)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database.driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("database.url is required for postgres")
	}
	return nil
}
