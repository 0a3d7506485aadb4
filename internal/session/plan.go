package session

import (
	"fmt"

	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/models"
	"github.com/mongohaul/mongohaul/internal/selection"
)

// BuildPlan resolves the user's selection into one of the three dispatch
// shapes. Connection scope with every previewed collection selected becomes
// a whole-database plan; any narrower connection-scope selection becomes a
// collection map; database scope always becomes a single-database plan for
// the scope's source database. Database order follows the preview.
func BuildPlan(preview *models.ArchivePreview, sel selection.Selection, scope models.Scope, mode models.Mode) (engine.Plan, error) {
	if preview == nil {
		return engine.Plan{}, fmt.Errorf("%w: no archive loaded", ErrInvalidState)
	}
	if sel.IsEmpty() {
		return engine.Plan{}, ErrEmptySelection
	}

	plan := engine.Plan{
		ArchivePath: preview.Path,
		Mode:        mode,
		Scope:       scope,
	}

	switch sc := scope.(type) {
	case models.DatabaseScope:
		if sc.SourceDB == "" {
			return engine.Plan{}, ErrNoSourceDatabase
		}
		if preview.Database(sc.SourceDB) == nil {
			return engine.Plan{}, fmt.Errorf("source database %q is not in the archive", sc.SourceDB)
		}
		colls := sel.Collections(preview, sc.SourceDB)
		if len(colls) == 0 {
			return engine.Plan{}, ErrEmptySelection
		}
		plan.Shape = engine.ShapeSingleDatabase
		plan.Databases = []string{sc.SourceDB}
		plan.Collections = map[string][]string{sc.SourceDB: colls}

	case models.ConnectionScope:
		if sel.FullySelected(preview) {
			plan.Shape = engine.ShapeWholeDatabases
			plan.Databases = sel.Databases(preview)
		} else {
			plan.Shape = engine.ShapeCollections
			plan.Databases = sel.Databases(preview)
			plan.Collections = make(map[string][]string, len(plan.Databases))
			for _, db := range plan.Databases {
				plan.Collections[db] = sel.Collections(preview, db)
			}
		}

	default:
		return engine.Plan{}, fmt.Errorf("unknown transfer scope %T", scope)
	}

	return plan, nil
}

// restrictPlan narrows a dispatched plan to the databases still remaining
// after a failure, preserving the original shape and order. remaining must
// be a subset of the plan's databases.
func restrictPlan(prev engine.Plan, remaining []string) (engine.Plan, error) {
	if len(remaining) == 0 {
		return engine.Plan{}, fmt.Errorf("no databases remain to transfer")
	}
	member := make(map[string]struct{}, len(prev.Databases))
	for _, db := range prev.Databases {
		member[db] = struct{}{}
	}
	next := prev
	next.Databases = make([]string, 0, len(remaining))
	for _, db := range remaining {
		if _, ok := member[db]; !ok {
			return engine.Plan{}, fmt.Errorf("database %q was not part of the original plan", db)
		}
		next.Databases = append(next.Databases, db)
	}
	if prev.Collections != nil {
		next.Collections = make(map[string][]string, len(next.Databases))
		for _, db := range next.Databases {
			next.Collections[db] = prev.Collections[db]
		}
	}
	return next, nil
}
