package mongoengine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongohaul/mongohaul/internal/archive"
	"github.com/mongohaul/mongohaul/internal/constants"
	"github.com/mongohaul/mongohaul/internal/diskspace"
	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/models"
)

var systemDatabases = map[string]struct{}{
	"admin":  {},
	"local":  {},
	"config": {},
}

type exportColl struct {
	name  string
	count int64
}

type exportDB struct {
	name  string
	colls []exportColl
}

// Export dumps live data into a new archive. It runs synchronously,
// publishing progress events labeled with the request token, and claims the
// engine's run slot so no import can start mid-dump. Collections are staged
// as JSON-lines files next to the output, preflighted against free disk
// space, then packed with the manifest first.
func (e *Engine) Export(ctx context.Context, req engine.ExportRequest) (*models.Result, error) {
	if req.OutputPath == "" {
		return nil, fmt.Errorf("export needs an output path")
	}
	client, _, err := e.beginRun(ctx)
	if err != nil {
		return nil, err
	}
	defer e.finishRun()

	layout, estimate, totalDocs, err := e.exportLayout(ctx, client, req)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(req.OutputPath), ".mongohaul-export-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	// Staging and output share a filesystem, so one preflight covers both
	// the JSON-lines copies and the compressed archive.
	if err := diskspace.CheckAvailableSpace(filepath.Join(staging, "staged"), estimate, e.opts.SafetyMargin); err != nil {
		return nil, err
	}

	manifest := &archive.Manifest{
		FormatVersion: constants.ManifestFormatVersion,
		CreatedAt:     time.Now().UTC(),
		Source:        redactURI(e.opts.URI),
	}
	res := &models.Result{}
	var files []archive.CollectionFile
	var done int64

	for di, db := range layout {
		mdb := archive.ManifestDatabase{Name: db.name}
		for ci, coll := range db.colls {
			staged := filepath.Join(staging, fmt.Sprintf("%03d_%03d.jsonl", di, ci))
			n, err := e.dumpCollection(ctx, client, db.name, coll.name, staged, req.Token, exportProgress{
				dbIndex: di + 1, dbCount: len(layout),
				collIndex: ci + 1, collCount: len(db.colls),
				done: &done, total: totalDocs,
			})
			if err != nil {
				return nil, err
			}
			mdb.Collections = append(mdb.Collections, archive.ManifestCollection{Name: coll.name, DocumentCount: n})
			files = append(files, archive.CollectionFile{Database: db.name, Collection: coll.name, Path: staged})
			res.Database(db.name).Collection(coll.name).DocumentsInserted = n
		}
		manifest.Databases = append(manifest.Databases, mdb)
	}

	if err := archive.Pack(req.OutputPath, manifest, files); err != nil {
		return nil, err
	}
	e.log.Info().Str("archive", req.OutputPath).Int64("documents", res.TotalInserted()).Msg("export complete")
	return res, nil
}

// exportLayout resolves which collections to dump, a data-size estimate for
// the disk preflight and the document total for progress reporting. Listing
// order is sorted so repeated exports of the same deployment produce the
// same archive layout.
func (e *Engine) exportLayout(ctx context.Context, client *mongo.Client, req engine.ExportRequest) ([]exportDB, int64, int64, error) {
	dbNames := req.Databases
	if len(dbNames) == 0 {
		all, err := client.ListDatabaseNames(ctx, bson.M{})
		if err != nil {
			return nil, 0, 0, fmt.Errorf("list databases: %w", err)
		}
		for _, n := range all {
			if _, sys := systemDatabases[n]; !sys {
				dbNames = append(dbNames, n)
			}
		}
		sort.Strings(dbNames)
	}

	var layout []exportDB
	var estimate, totalDocs int64
	for _, dbName := range dbNames {
		collNames := req.Collections[dbName]
		if len(collNames) == 0 {
			all, err := client.Database(dbName).ListCollectionNames(ctx, bson.M{})
			if err != nil {
				return nil, 0, 0, fmt.Errorf("list collections in %s: %w", dbName, err)
			}
			for _, n := range all {
				if !strings.HasPrefix(n, "system.") {
					collNames = append(collNames, n)
				}
			}
			sort.Strings(collNames)
		}
		if len(collNames) == 0 {
			continue
		}

		db := exportDB{name: dbName}
		for _, collName := range collNames {
			count, err := client.Database(dbName).Collection(collName).CountDocuments(ctx, bson.D{})
			if err != nil {
				return nil, 0, 0, fmt.Errorf("count %s.%s: %w", dbName, collName, err)
			}
			db.colls = append(db.colls, exportColl{name: collName, count: count})
			totalDocs += count

			var stats struct {
				Size int64 `bson:"size"`
			}
			if err := client.Database(dbName).RunCommand(ctx, bson.D{{Key: "collStats", Value: collName}}).Decode(&stats); err == nil {
				estimate += stats.Size
			}
		}
		layout = append(layout, db)
	}
	if len(layout) == 0 {
		return nil, 0, 0, fmt.Errorf("nothing to export")
	}
	return layout, estimate, totalDocs, nil
}

type exportProgress struct {
	dbIndex, dbCount     int
	collIndex, collCount int
	done                 *int64
	total                int64
}

// dumpCollection streams one collection into a staged JSON-lines file in
// canonical extended JSON, one document per line.
func (e *Engine) dumpCollection(ctx context.Context, client *mongo.Client, dbName, collName, path string, token models.OpToken, prog exportProgress) (int64, error) {
	coll := client.Database(dbName).Collection(collName)
	findOpts := options.Find().
		SetBatchSize(int32(e.opts.BatchSize)).
		SetNoCursorTimeout(true)
	cursor, err := coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return 0, fmt.Errorf("read %s.%s: %w", dbName, collName, err)
	}
	defer cursor.Close(ctx)

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("stage %s.%s: %w", dbName, collName, err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)

	publish := func() {
		e.bus.Publish(events.NewTransferProgress(token, models.Progress{
			Phase:           models.PhaseTransferring,
			DatabaseIndex:   prog.dbIndex,
			DatabaseCount:   prog.dbCount,
			CollectionIndex: prog.collIndex,
			CollectionCount: prog.collCount,
			Database:        dbName,
			Collection:      collName,
			DocumentsDone:   *prog.done,
			DocumentsTotal:  prog.total,
		}))
	}
	publish()

	var n int64
	for cursor.Next(ctx) {
		data, err := bson.MarshalExtJSON(cursor.Current, true, false)
		if err != nil {
			return n, fmt.Errorf("encode document from %s.%s: %w", dbName, collName, err)
		}
		if _, err := w.Write(data); err != nil {
			return n, fmt.Errorf("stage %s.%s: %w", dbName, collName, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return n, fmt.Errorf("stage %s.%s: %w", dbName, collName, err)
		}
		n++
		*prog.done++
		if n%constants.ProgressDocInterval == 0 {
			publish()
		}
	}
	if err := cursor.Err(); err != nil {
		return n, fmt.Errorf("read %s.%s: %w", dbName, collName, err)
	}
	if err := w.Flush(); err != nil {
		return n, fmt.Errorf("stage %s.%s: %w", dbName, collName, err)
	}
	publish()
	return n, nil
}
