package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/lepinkainen/ook/internal/catalog"
	"github.com/lepinkainen/ook/internal/config"
	"github.com/lepinkainen/ook/internal/datastore"
	"github.com/lepinkainen/ook/internal/export"
)

func (e *ExportCmd) Run() error {
	ctx := context.Background()

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	records, err := export.Records(ctx, catalog.New(db))
	if err != nil {
		return err
	}

	switch e.Format {
	case "json":
		_, err = export.WriteJSON(records, e.output("./ook.json"), e.Overwrite)
		return err
	case "yaml":
		_, err = export.WriteYAML(records, e.output("./ook.yaml"), e.Overwrite)
		return err
	case "sqlite":
		path := e.output(viper.GetString("datasette.dbfile"))
		if path == config.DBFile {
			return fmt.Errorf("refusing to export into the catalog database %s", path)
		}
		return export.ToStore(ctx, datastore.NewSQLiteStore(path), "", records)
	case "datasette":
		url := viper.GetString("datasette.url")
		if url == "" {
			return fmt.Errorf("datasette URL is required (set datasette.url in config)")
		}
		client := datastore.NewDatasetteClient(url, viper.GetString("datasette.token"))
		return export.ToStore(ctx, client, viper.GetString("datasette.database"), records)
	default:
		return fmt.Errorf("unknown export format %q", e.Format)
	}
}

func (e *ExportCmd) output(fallback string) string {
	if e.Output != "" {
		return e.Output
	}
	return fallback
}
