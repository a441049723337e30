package logger

import (
	"io"
	"os"
	"strconv"
)

// EnvConfig is the logger setup read from LOG_* and APP_ENV.
// Outside APP_ENV=local, lines are also written to a rotating file.
type EnvConfig struct {
	Level       string
	Format      string
	ServiceName string
	Environment string
	// Output, when set, overrides stdout and the log file.
	Output io.Writer

	LogFile     string
	LogFileOnly bool
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	Compress    bool
}

// LoadFromEnv reads EnvConfig from the process environment.
func LoadFromEnv() *EnvConfig {
	env := envReader(os.Getenv)
	return &EnvConfig{
		Level:       env.str("LOG_LEVEL", "info"),
		Format:      env.str("LOG_FORMAT", "json"),
		ServiceName: env.str("SERVICE_NAME", "jobalerts"),
		Environment: env.str("APP_ENV", "local"),
		LogFile:     env.str("LOG_FILE", "/var/log/jobalerts/app.log"),
		LogFileOnly: env.boolean("LOG_FILE_ONLY", false),
		MaxSizeMB:   env.integer("LOG_MAX_SIZE", 100),
		MaxBackups:  env.integer("LOG_MAX_BACKUPS", 7),
		MaxAgeDays:  env.integer("LOG_MAX_AGE", 30),
		Compress:    env.boolean("LOG_COMPRESS", true),
	}
}

// local reports whether logs stay on stdout only.
func (c *EnvConfig) local() bool {
	return c.Environment == "" || c.Environment == "local"
}

type envReader func(string) string

func (get envReader) str(key, def string) string {
	if v := get(key); v != "" {
		return v
	}
	return def
}

// Unparseable values fall back to the default.
func (get envReader) boolean(key string, def bool) bool {
	b, err := strconv.ParseBool(get(key))
	if err != nil {
		return def
	}
	return b
}

func (get envReader) integer(key string, def int) int {
	i, err := strconv.Atoi(get(key))
	if err != nil {
		return def
	}
	return i
}
