package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/engine/mongoengine"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/fetch"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/models"
	"github.com/mongohaul/mongohaul/internal/progress"
	"github.com/mongohaul/mongohaul/internal/report"
)

var (
	exportDBs   []string
	exportColls []string
)

var exportCmd = &cobra.Command{
	Use:   "export <destination>",
	Short: "Pack live databases into a snapshot archive",
	Long: `Export dumps databases from the configured deployment into a snapshot
archive. With no selection flags every non-system database is exported.

The destination may be a local path, s3://bucket/key or
azblob://container/blob. Remote destinations are staged locally and uploaded
after the dump finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringSliceVar(&exportDBs, "db", nil, "database to export (repeatable)")
	exportCmd.Flags().StringSliceVar(&exportColls, "coll", nil, "collection to export as db.collection (repeatable)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureProxyPassword(cfg); err != nil {
		return err
	}

	dbs, colls, err := exportSelection(exportDBs, exportColls)
	if err != nil {
		return err
	}

	loc, err := fetch.ParseLocation(args[0])
	if err != nil {
		return err
	}
	outputPath := loc.Path
	if loc.Kind != fetch.KindLocal {
		stage, serr := os.MkdirTemp("", "mongohaul-export-")
		if serr != nil {
			return fmt.Errorf("create staging directory: %w", serr)
		}
		defer os.RemoveAll(stage)
		outputPath = filepath.Join(stage, loc.Base())
	}

	log := logging.NewDefaultCLILogger()
	bus := events.NewBus(0)
	defer bus.Close()
	eng := mongoengine.New(mongoengine.Options{
		URI:            cfg.Mongo.URI,
		BatchSize:      cfg.Transfer.BatchSize,
		Compressors:    cfg.CompressorList(),
		ConnectTimeout: time.Duration(cfg.Mongo.ConnectTimeoutSeconds) * time.Second,
		SafetyMargin:   cfg.Transfer.DiskSafetyMargin,
	}, bus, log)
	defer eng.Close(context.Background())

	req := engine.ExportRequest{
		Token:       models.NewOpToken("export"),
		OutputPath:  outputPath,
		Databases:   dbs,
		Collections: colls,
	}

	// Export publishes progress on the bus while running synchronously, so
	// the bar is driven from a subscription drained alongside the call.
	watch := bus.Subscribe(events.TypeTransferProgress)
	rep := progress.NewCountProgress()
	uiDone := make(chan struct{})
	go func() {
		defer close(uiDone)
		started := false
		for ev := range watch {
			p, ok := ev.(*events.TransferProgress)
			if !ok || p.Token != req.Token {
				continue
			}
			if !started {
				rep.Start(p.Progress.DocumentsTotal, exportLabel(p.Progress))
				started = true
			}
			rep.SetDescription(exportLabel(p.Progress))
			rep.Update(p.Progress.DocumentsDone)
		}
	}()

	res, err := eng.Export(ctx, req)
	bus.Unsubscribe(watch)
	<-uiDone
	if err != nil {
		rep.Error(err)
		return err
	}
	rep.Finish()

	if loc.Kind != fetch.KindLocal {
		up := progress.NewCLIProgress()
		if err := fetch.New(cfg, log).Put(ctx, outputPath, loc, up); err != nil {
			return fmt.Errorf("upload archive: %w", err)
		}
	}

	fmt.Println(report.Render(res, report.Options{ScopeLabel: args[0]}))
	return nil
}

// exportSelection turns the --db and --coll flags into the request shape:
// databases in flag order, with explicit collections grouped per database.
// Naming a collection implies its database.
func exportSelection(dbFlags, collFlags []string) ([]string, map[string][]string, error) {
	dbs := append([]string(nil), dbFlags...)
	seen := make(map[string]bool, len(dbs))
	for _, db := range dbs {
		seen[db] = true
	}

	var colls map[string][]string
	for _, pair := range collFlags {
		db, coll, ok := strings.Cut(pair, ".")
		if !ok || db == "" || coll == "" {
			return nil, nil, fmt.Errorf("--coll expects db.collection, got %q", pair)
		}
		if colls == nil {
			colls = make(map[string][]string)
		}
		colls[db] = append(colls[db], coll)
		if !seen[db] {
			seen[db] = true
			dbs = append(dbs, db)
		}
	}
	return dbs, colls, nil
}

func exportLabel(p models.Progress) string {
	if p.Database == "" {
		return "exporting"
	}
	return fmt.Sprintf("[%d/%d] %s.%s", p.CollectionIndex, p.CollectionCount, p.Database, p.Collection)
}
