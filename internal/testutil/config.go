package testutil

import (
	"testing"
	"time"

	"github.com/lepinkainen/ook/internal/config"
	"github.com/spf13/viper"
)

// ConfigState holds the state of the config package variables.
type ConfigState struct {
	DBFile          string
	ListenAddr      string
	PageSize        int
	LogLevel        string
	MetadataTimeout time.Duration
	Providers       []string
}

// SaveConfigState captures the current state of config package variables.
func SaveConfigState() ConfigState {
	return ConfigState{
		DBFile:          config.DBFile,
		ListenAddr:      config.ListenAddr,
		PageSize:        config.PageSize,
		LogLevel:        config.LogLevel,
		MetadataTimeout: config.MetadataTimeout,
		Providers:       config.Providers,
	}
}

// RestoreConfigState restores the config package variables to a saved state.
func RestoreConfigState(state ConfigState) {
	config.DBFile = state.DBFile
	config.ListenAddr = state.ListenAddr
	config.PageSize = state.PageSize
	config.LogLevel = state.LogLevel
	config.MetadataTimeout = state.MetadataTimeout
	config.Providers = state.Providers
}

// ResetConfig saves the current config state, resets viper, and schedules
// restoration when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	state := SaveConfigState()
	viper.Reset()

	t.Cleanup(func() {
		RestoreConfigState(state)
		viper.Reset()
	})
}

// SetViperValue sets a viper configuration value and schedules cleanup.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)

	viper.Set(key, value)

	t.Cleanup(func() {
		if hadValue {
			viper.Set(key, oldValue)
		}
		// viper has no Unset; callers that need a clean slate use ResetConfig.
	})
}

// DisableResponseCache turns off the provider response cache so HTTP tests
// always reach their test server.
func DisableResponseCache(t *testing.T) {
	t.Helper()
	SetViperValue(t, "cache.enabled", false)
}

// SetupTestCache points the provider response cache at a file inside env.
func SetupTestCache(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("cache", "test-cache.db")
	SetViperValue(t, "cache.enabled", true)
	SetViperValue(t, "cache.dbfile", dbPath)
	SetViperValue(t, "cache.ttl", "24h")

	return dbPath
}
