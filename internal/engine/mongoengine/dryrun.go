package mongoengine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mongohaul/mongohaul/internal/archive"
	"github.com/mongohaul/mongohaul/internal/constants"
	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/models"
)

// DryRun predicts the transfer's effect without writing anything. The scan
// runs in a worker and reports through dry-run events: for merge mode it
// streams archive ids and checks them against the destination, for replace
// mode it counts what each drop would remove.
func (e *Engine) DryRun(ctx context.Context, plan engine.Plan) error {
	works, total, err := e.resolvePlan(plan)
	if err != nil {
		return err
	}
	client, cmds, err := e.beginRun(ctx)
	if err != nil {
		return err
	}
	go func() {
		defer e.finishRun()
		res, cancelled, err := e.scanPlan(context.Background(), client, plan, works, total, cmds, true)
		switch {
		case cancelled:
			e.log.Debug().Str("token", string(plan.Token)).Msg("dry run cancelled")
		case err != nil:
			e.bus.Publish(events.NewDryRunFailed(plan.Token, err.Error()))
		default:
			e.bus.Publish(events.NewDryRunCompleted(plan.Token, res))
		}
	}()
	return nil
}

// DryRunSync answers a narrow plan inline, without the event plane. The
// engine's run slot is still claimed so a transfer cannot start mid-scan.
func (e *Engine) DryRunSync(ctx context.Context, plan engine.Plan) (*models.Result, error) {
	works, total, err := e.resolvePlan(plan)
	if err != nil {
		return nil, err
	}
	client, _, err := e.beginRun(ctx)
	if err != nil {
		return nil, err
	}
	defer e.finishRun()
	res, _, err := e.scanPlan(ctx, client, plan, works, total, nil, false)
	return res, err
}

// scanPlan walks the plan's collections and predicts per-collection counts.
// cmds may be nil for the synchronous variant; publish controls progress
// events.
func (e *Engine) scanPlan(ctx context.Context, client *mongo.Client, plan engine.Plan, works []dbWork, total int64, cmds chan command, publish bool) (*models.Result, bool, error) {
	res := &models.Result{DryRun: true}
	var done int64

	progress := func(di, ci int, phase models.Phase) {
		if !publish {
			return
		}
		cw := works[di].colls[ci]
		e.bus.Publish(events.NewDryRunProgress(plan.Token, models.Progress{
			Phase:           phase,
			DatabaseIndex:   di + 1,
			DatabaseCount:   len(works),
			CollectionIndex: ci + 1,
			CollectionCount: len(works[di].colls),
			Database:        cw.db,
			Collection:      cw.coll,
			DocumentsDone:   done,
			DocumentsTotal:  total,
		}))
	}
	cancelledByCommand := func() bool {
		if cmds == nil {
			return false
		}
		select {
		case cmd := <-cmds:
			return cmd == cmdCancel
		default:
			return false
		}
	}

	for di := range works {
		for ci := range works[di].colls {
			if cancelledByCommand() {
				return nil, true, nil
			}
			cw := works[di].colls[ci]
			dest := client.Database(cw.destDB).Collection(cw.coll)
			c := res.Database(cw.db).Collection(cw.coll)

			if plan.Mode.Destructive() {
				existing, err := dest.CountDocuments(ctx, bson.D{})
				if err != nil {
					return nil, false, fmt.Errorf("count existing documents in %s.%s: %w", cw.destDB, cw.coll, err)
				}
				c.DocumentsDropped = existing
				c.DocumentsInserted = cw.count
				done += cw.count
				progress(di, ci, models.PhaseDropping)
				continue
			}

			inserted, skipped, cancelled, err := e.scanMergeCollection(ctx, dest, plan.ArchivePath, cw, &done, func() {
				progress(di, ci, models.PhaseTransferring)
			}, cmds)
			if cancelled {
				return nil, true, nil
			}
			if err != nil {
				return nil, false, err
			}
			c.DocumentsInserted = inserted
			c.DocumentsSkipped = skipped
		}
	}
	return res, false, nil
}

// scanMergeCollection streams one archive entry's ids and asks the
// destination how many already exist. Documents without an _id always
// insert, since the server assigns them a fresh one.
func (e *Engine) scanMergeCollection(ctx context.Context, dest *mongo.Collection, archivePath string, cw collWork, done *int64, progress func(), cmds chan command) (inserted, skipped int64, cancelled bool, err error) {
	rc, err := archive.OpenCollection(archivePath, cw.db, cw.coll)
	if err != nil {
		return 0, 0, false, err
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), constants.MaxDocumentBytes)

	ids := make([]interface{}, 0, e.opts.BatchSize)
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		existing, err := dest.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return fmt.Errorf("check existing ids in %s.%s: %w", cw.destDB, cw.coll, err)
		}
		skipped += existing
		inserted += int64(len(ids)) - existing
		*done += int64(len(ids))
		ids = ids[:0]
		progress()
		return nil
	}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var doc struct {
			ID interface{} `bson:"_id"`
		}
		if err := bson.UnmarshalExtJSON(line, false, &doc); err != nil {
			return 0, 0, false, fmt.Errorf("decode document %d of %s.%s: %w", lineNo, cw.db, cw.coll, err)
		}
		if doc.ID == nil {
			inserted++
			*done++
			continue
		}
		ids = append(ids, doc.ID)
		if len(ids) >= e.opts.BatchSize {
			if err := flush(); err != nil {
				return 0, 0, false, err
			}
			if cmds != nil {
				select {
				case cmd := <-cmds:
					if cmd == cmdCancel {
						return 0, 0, true, nil
					}
				default:
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, 0, false, fmt.Errorf("read %s.%s from archive: %w", cw.db, cw.coll, err)
	}
	if err := flush(); err != nil {
		return 0, 0, false, err
	}
	return inserted, skipped, false, nil
}
