package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults for the catalog server
const (
	DefaultDBFile          = "./ook.db"
	DefaultListenAddr      = "127.0.0.1:8000"
	DefaultPageSize        = 20
	DefaultMetadataTimeout = 20 * time.Second
)

// Global configuration variables
var (
	// DBFile is the path of the catalog SQLite database
	DBFile string
	// ListenAddr is the address the HTML server binds to
	ListenAddr string
	// PageSize is the number of rows per listing page
	PageSize int
	// LogLevel is one of debug, info, warn, error
	LogLevel string
	// MetadataTimeout bounds a single ISBN lookup across all providers
	MetadataTimeout time.Duration
	// Providers optionally overrides provider order by name
	Providers []string
)

// SetDefaults registers default values for every known config key.
func SetDefaults() {
	viper.SetDefault("db.file", DefaultDBFile)
	viper.SetDefault("server.listen", DefaultListenAddr)
	viper.SetDefault("server.page_size", DefaultPageSize)
	viper.SetDefault("log.level", "info")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dbfile", "./ook-cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days

	viper.SetDefault("metadata.timeout", DefaultMetadataTimeout.String())
	viper.SetDefault("metadata.providers", []string{})

	viper.SetDefault("datasette.dbfile", "./ook-export.db")
	viper.SetDefault("datasette.database", "ook")
}

// LoadDotEnv reads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}
}

// BindEnv maps well-known environment variables onto config keys.
func BindEnv() {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		"isbndb.api_key":      "ISBNDB_API_KEY",
		"googlebooks.api_key": "GOOGLE_BOOKS_API_KEY",
		"datasette.token":     "DATASETTE_TOKEN",
		"db.file":             "OOK_DB",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			slog.Error("Failed to bind environment variable", "key", key, "env", env, "error", err)
		}
	}
}

// InitConfig copies viper values into the package globals.
func InitConfig() {
	SetDefaults()

	DBFile = viper.GetString("db.file")
	ListenAddr = viper.GetString("server.listen")
	LogLevel = viper.GetString("log.level")

	PageSize = viper.GetInt("server.page_size")
	if PageSize <= 0 {
		PageSize = DefaultPageSize
	}

	MetadataTimeout = DefaultMetadataTimeout
	if raw := viper.GetString("metadata.timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("Invalid metadata timeout, using default", "timeout", raw, "error", err)
		} else {
			MetadataTimeout = d
		}
	}

	Providers = viper.GetStringSlice("metadata.providers")
}

// ParseLogLevel maps a config string onto a slog level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
