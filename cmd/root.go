package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/ook/internal/cache"
	"github.com/lepinkainen/ook/internal/catalog"
	"github.com/lepinkainen/ook/internal/config"
	"github.com/lepinkainen/ook/internal/datastore"
	"github.com/lepinkainen/ook/internal/enrichment/book"
	"github.com/lepinkainen/ook/internal/enrichment/providers"
	"github.com/lepinkainen/ook/internal/web"
)

var (
	runServer = func(ctx context.Context, srv *web.Server, addr string) error {
		return srv.Run(ctx, addr)
	}
	signalContext = func() (context.Context, context.CancelFunc) {
		return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
)

// CLI represents the complete command structure for the ook application
type CLI struct {
	// Global flags override config.yaml when set
	DB       string `help:"Path to the catalog SQLite database"`
	LogLevel string `help:"Log level: debug, info, warn, error"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`
	NoCache     bool   `help:"Bypass the metadata response cache"`

	Serve     ServeCmd     `cmd:"" help:"Serve the catalog over HTTP"`
	Migrate   MigrateCmd   `cmd:"" help:"Apply pending schema migrations"`
	Book      BookCmd      `cmd:"" help:"Add books and refresh their metadata"`
	Cache     CacheCmd     `cmd:"" help:"Manage the metadata response cache"`
	Providers ProvidersCmd `cmd:"" help:"Inspect the ISBN metadata providers"`
	Export    ExportCmd    `cmd:"" help:"Export the catalog to JSON, YAML, SQLite or Datasette"`
}

// ServeCmd represents the serve command
type ServeCmd struct {
	Listen string `short:"l" help:"Address to listen on (defaults to server.listen)"`
}

// MigrateCmd represents the migrate command
type MigrateCmd struct{}

// BookCmd groups the book subcommands
type BookCmd struct {
	Add   BookAddCmd   `cmd:"" help:"Add a book by ISBN and import its metadata"`
	Fetch BookFetchCmd `cmd:"" help:"Re-import metadata for an existing book"`
}

// BookAddCmd represents the book add command
type BookAddCmd struct {
	ISBN       string `arg:"" help:"ISBN-10 or ISBN-13 of the book"`
	Collection int64  `short:"c" help:"Collection id to place the book in"`
}

// BookFetchCmd represents the book fetch command
type BookFetchCmd struct {
	ID int64 `arg:"" help:"Book id"`
}

// CacheCmd groups the cache subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Invalidate all cache entries for a source"`
	Prune      cache.PruneCacheCmd      `cmd:"" help:"Remove expired cache entries"`
}

// ProvidersCmd groups the provider subcommands
type ProvidersCmd struct {
	Ping ProvidersPingCmd `cmd:"" help:"Check that each metadata provider answers"`
}

// ProvidersPingCmd represents the providers ping command
type ProvidersPingCmd struct {
	Names []string `arg:"" optional:"" help:"Providers to check (defaults to metadata.providers, or all)"`
}

// ExportCmd represents the export command
type ExportCmd struct {
	Format    string `short:"F" help:"Output format" enum:"json,yaml,sqlite,datasette" default:"json"`
	Output    string `short:"o" help:"Output file for json, yaml and sqlite (defaults to ./ook.<format> or datasette.dbfile)"`
	Overwrite bool   `help:"Overwrite an existing json or yaml file"`
}

// updateGlobalConfig copies explicitly set flags into viper and refreshes
// the config globals.
func updateGlobalConfig(cli *CLI) {
	if cli.DB != "" {
		viper.Set("db.file", cli.DB)
	}
	if cli.LogLevel != "" {
		viper.Set("log.level", cli.LogLevel)
	}
	if cli.CacheDBFile != "" {
		viper.Set("cache.dbfile", cli.CacheDBFile)
	}
	if cli.CacheTTL != "" {
		viper.Set("cache.ttl", cli.CacheTTL)
	}
	if cli.NoCache {
		viper.Set("cache.enabled", false)
	}
	config.InitConfig()
}

func Execute() {
	initLogging(slog.LevelInfo)
	initConfig()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("ook"),
		kong.Description("A home library catalog with lending and ISBN metadata import."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)
	initLogging(config.ParseLogLevel(config.LogLevel))

	err := ctx.Run()
	if closeErr := cache.ResetGlobalCache(); closeErr != nil {
		slog.Warn("Failed to close cache", "error", closeErr)
	}
	if err != nil {
		var migErr *datastore.MigrationError
		if errors.As(err, &migErr) {
			slog.Error("Database migration failed", "version", migErr.Version, "name", migErr.Name, "error", migErr.Err)
		} else {
			slog.Error("Command failed", "error", err)
		}
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Info("Config file not found, writing default config file...")
			if err := viper.SafeWriteConfig(); err != nil {
				slog.Error("Error writing config file", "error", err)
			}
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}

	// Secrets come from the environment and are bound after the default
	// config is written so they never end up in config.yaml.
	config.LoadDotEnv()
	config.BindEnv()
	config.InitConfig()
}

func initLogging(level slog.Level) {
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// openCatalog opens and migrates the catalog database and wires the
// configured metadata providers into it.
func openCatalog(ctx context.Context) (*catalog.Catalog, func(), error) {
	db, err := openDB(ctx)
	if err != nil {
		return nil, nil, err
	}

	enrichers, err := providers.ByName(config.Providers)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	resolver := book.NewResolver(enrichers...)

	names := make([]string, 0, len(enrichers))
	for _, e := range resolver.Enrichers() {
		names = append(names, e.Name())
	}
	slog.Debug("Metadata providers", "order", names)

	cat := catalog.New(db, catalog.WithMetadata(resolver))
	return cat, func() { _ = db.Close() }, nil
}

func openDB(ctx context.Context) (*sql.DB, error) {
	db, err := datastore.Open(config.DBFile)
	if err != nil {
		return nil, err
	}
	if _, err := datastore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (s *ServeCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	cat, closeDB, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	srv, err := web.New(cat, web.Options{
		PageSize:        config.PageSize,
		MetadataTimeout: config.MetadataTimeout,
	})
	if err != nil {
		return err
	}

	addr := s.Listen
	if addr == "" {
		addr = config.ListenAddr
	}
	return runServer(ctx, srv, addr)
}

func (m *MigrateCmd) Run() error {
	ctx := context.Background()

	db, err := datastore.Open(config.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	version, err := datastore.Migrate(ctx, db)
	if err != nil {
		return err
	}
	slog.Info("Database is up to date", "database", config.DBFile, "version", version)
	return nil
}

func (b *BookAddCmd) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), config.MetadataTimeout)
	defer cancel()

	cat, closeDB, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	bk, err := cat.NewBookFromISBN(ctx, b.ISBN, b.Collection)
	if err != nil {
		return err
	}
	d, err := bk.Data(ctx)
	if err != nil {
		return err
	}

	slog.Info("Book added", "id", bk.ID(), "isbn", d.ISBN, "title", d.Title, "source", d.DataSource)
	return nil
}

func (b *BookFetchCmd) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), config.MetadataTimeout)
	defer cancel()

	cat, closeDB, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	imported, err := cat.Book(b.ID).RefreshMetadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch metadata for book %d: %w", b.ID, err)
	}
	if !imported {
		slog.Info("No metadata found", "id", b.ID)
		return nil
	}

	title, err := cat.Book(b.ID).Title(ctx)
	if err != nil {
		return err
	}
	slog.Info("Book updated", "id", b.ID, "title", title)
	return nil
}

func (p *ProvidersPingCmd) Run() error {
	names := p.Names
	if len(names) == 0 {
		names = config.Providers
	}
	enrichers, err := providers.ByName(names)
	if err != nil {
		return err
	}

	var errs []error
	for _, e := range enrichers {
		ctx, cancel := context.WithTimeout(context.Background(), config.MetadataTimeout)
		err := e.Ping(ctx)
		cancel()
		if err != nil {
			slog.Warn("Provider unreachable", "provider", e.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		slog.Info("Provider reachable", "provider", e.Name())
	}
	return errors.Join(errs...)
}
