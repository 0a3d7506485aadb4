package mongoengine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongohaul/mongohaul/internal/archive"
	"github.com/mongohaul/mongohaul/internal/constants"
	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/models"
)

const duplicateKeyCode = 11000

// Execute resolves the plan, claims the engine's single run slot and starts
// the transfer worker. Resolution and connection problems return here as
// dispatch errors; everything after that arrives as events.
func (e *Engine) Execute(ctx context.Context, plan engine.Plan) error {
	works, total, err := e.resolvePlan(plan)
	if err != nil {
		return err
	}
	client, cmds, err := e.beginRun(ctx)
	if err != nil {
		return err
	}
	r := &transferRun{
		e:      e,
		plan:   plan,
		works:  works,
		total:  total,
		client: client,
		cmds:   cmds,
		res:    &models.Result{},
	}
	go r.run()
	return nil
}

// transferRun carries one transfer's state through the worker.
type transferRun struct {
	e      *Engine
	plan   engine.Plan
	works  []dbWork
	total  int64
	client *mongo.Client
	cmds   chan command
	res    *models.Result
	done   int64
}

func (r *transferRun) run() {
	defer r.e.finishRun()
	ctx := context.Background()

	for di := range r.works {
		db := r.works[di]
		for ci := range db.colls {
			cancelled, err := r.importCollection(ctx, di, ci)
			if cancelled {
				r.res.Cancelled = true
				r.res.Partial = r.done < r.total
				r.e.bus.Publish(events.NewTransferCancelled(r.plan.Token, r.res))
				r.e.log.Info().Int64("done", r.done).Int64("total", r.total).Msg("transfer cancelled")
				return
			}
			if err != nil {
				info := models.ErrorInfo{
					Message:    err.Error(),
					Database:   db.name,
					Collection: db.colls[ci].coll,
					Partial:    r.res,
					Remaining:  remainingNames(r.works, di),
				}
				info.Partial.Partial = true
				r.e.bus.Publish(events.NewTransferFailed(r.plan.Token, info))
				r.e.log.Error().Err(err).Str("database", db.name).Str("collection", db.colls[ci].coll).Msg("transfer failed")
				return
			}
		}
	}
	r.e.bus.Publish(events.NewTransferCompleted(r.plan.Token, r.res))
	r.e.log.Info().Int64("inserted", r.res.TotalInserted()).Msg("transfer completed")
}

// importCollection moves one collection: an optional drop phase for replace
// mode, then batched inserts streamed straight from the archive entry.
// Commands are polled at every batch boundary, so pause and cancel take
// effect between batches, never inside one.
func (r *transferRun) importCollection(ctx context.Context, di, ci int) (cancelled bool, err error) {
	cw := r.works[di].colls[ci]
	dest := r.client.Database(cw.destDB).Collection(cw.coll)

	if r.poll() {
		return true, nil
	}
	if r.plan.Mode.Destructive() {
		r.publishProgress(di, ci, models.PhaseDropping)
		existing, err := dest.CountDocuments(ctx, bson.D{})
		if err != nil {
			return false, fmt.Errorf("count existing documents in %s.%s: %w", cw.destDB, cw.coll, err)
		}
		if err := dest.Drop(ctx); err != nil {
			return false, fmt.Errorf("drop %s.%s: %w", cw.destDB, cw.coll, err)
		}
		r.addCounts(cw, 0, 0, existing)
	}
	r.publishProgress(di, ci, models.PhaseTransferring)

	rc, err := archive.OpenCollection(r.plan.ArchivePath, cw.db, cw.coll)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), constants.MaxDocumentBytes)

	batch := make([]interface{}, 0, r.e.opts.BatchSize)
	batchBytes := 0
	lineNo := 0

	flush := func() (bool, error) {
		if len(batch) == 0 {
			return false, nil
		}
		inserted, skipped, err := r.insertBatch(ctx, dest, cw, batch)
		if err != nil {
			return false, err
		}
		r.addCounts(cw, inserted, skipped, 0)
		r.done += int64(len(batch))
		batch = batch[:0]
		batchBytes = 0
		r.publishProgress(di, ci, models.PhaseTransferring)
		return r.poll(), nil
	}

	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var doc bson.D
		if err := bson.UnmarshalExtJSON(line, false, &doc); err != nil {
			return false, fmt.Errorf("decode document %d of %s.%s: %w", lineNo, cw.db, cw.coll, err)
		}
		batch = append(batch, doc)
		batchBytes += len(line)
		if len(batch) >= r.e.opts.BatchSize || batchBytes >= r.e.opts.MaxBatchBytes {
			if cancelled, err := flush(); cancelled || err != nil {
				return cancelled, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("read %s.%s from archive: %w", cw.db, cw.coll, err)
	}
	return flush()
}

// insertBatch writes one batch. In merge mode duplicate keys are tolerated
// and counted as skipped; any other write error aborts the run.
func (r *transferRun) insertBatch(ctx context.Context, dest *mongo.Collection, cw collWork, batch []interface{}) (inserted, skipped int64, err error) {
	opts := options.InsertMany().SetOrdered(false)
	_, err = dest.InsertMany(ctx, batch, opts)
	if err == nil {
		return int64(len(batch)), 0, nil
	}
	if r.plan.Mode == models.ModeMerge {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && bwe.WriteConcernError == nil {
			dups := 0
			for _, we := range bwe.WriteErrors {
				if we.Code != duplicateKeyCode {
					return 0, 0, fmt.Errorf("insert into %s.%s: %w", cw.destDB, cw.coll, err)
				}
				dups++
			}
			return int64(len(batch) - dups), int64(dups), nil
		}
	}
	return 0, 0, fmt.Errorf("insert into %s.%s: %w", cw.destDB, cw.coll, err)
}

func (r *transferRun) addCounts(cw collWork, inserted, skipped, dropped int64) {
	c := r.res.Database(cw.db).Collection(cw.coll)
	c.DocumentsInserted += inserted
	c.DocumentsSkipped += skipped
	c.DocumentsDropped += dropped
}

// poll drains at most one pending command. A pause blocks here, publishing
// the acknowledgement first, until a resume or cancel arrives. Returns true
// when the run should stop.
func (r *transferRun) poll() bool {
	select {
	case cmd := <-r.cmds:
		return r.handleCommand(cmd)
	default:
		return false
	}
}

func (r *transferRun) handleCommand(cmd command) bool {
	switch cmd {
	case cmdCancel:
		return true
	case cmdPause:
		r.e.bus.Publish(events.NewTransferPaused(r.plan.Token))
		r.e.log.Info().Msg("transfer paused")
		for cmd := range r.cmds {
			switch cmd {
			case cmdResume:
				r.e.bus.Publish(events.NewTransferResumed(r.plan.Token))
				r.e.log.Info().Msg("transfer resumed")
				return false
			case cmdCancel:
				return true
			}
		}
		return true
	default:
		return false
	}
}

func (r *transferRun) publishProgress(di, ci int, phase models.Phase) {
	cw := r.works[di].colls[ci]
	r.e.bus.Publish(events.NewTransferProgress(r.plan.Token, models.Progress{
		Phase:           phase,
		DatabaseIndex:   di + 1,
		DatabaseCount:   len(r.works),
		CollectionIndex: ci + 1,
		CollectionCount: len(r.works[di].colls),
		Database:        cw.db,
		Collection:      cw.coll,
		DocumentsDone:   r.done,
		DocumentsTotal:  r.total,
	}))
}
