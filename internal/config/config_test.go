package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestInitConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	InitConfig()

	assert.Equal(t, DefaultDBFile, DBFile)
	assert.Equal(t, DefaultListenAddr, ListenAddr)
	assert.Equal(t, DefaultPageSize, PageSize)
	assert.Equal(t, DefaultMetadataTimeout, MetadataTimeout)
	assert.Empty(t, Providers)
	assert.True(t, viper.GetBool("cache.enabled"))
}

func TestInitConfig_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("db.file", "/tmp/books.db")
	viper.Set("server.page_size", 5)
	viper.Set("metadata.timeout", "3s")
	viper.Set("metadata.providers", []string{"openlibrary", "googlebooks"})

	InitConfig()

	assert.Equal(t, "/tmp/books.db", DBFile)
	assert.Equal(t, 5, PageSize)
	assert.Equal(t, 3*time.Second, MetadataTimeout)
	assert.Equal(t, []string{"openlibrary", "googlebooks"}, Providers)
}

func TestInitConfig_InvalidValuesFallBack(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("server.page_size", -1)
	viper.Set("metadata.timeout", "soon")

	InitConfig()

	assert.Equal(t, DefaultPageSize, PageSize)
	assert.Equal(t, DefaultMetadataTimeout, MetadataTimeout)
}

func TestBindEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("ISBNDB_API_KEY", "secret")

	BindEnv()

	assert.Equal(t, "secret", viper.GetString("isbndb.api_key"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel(""))
}
