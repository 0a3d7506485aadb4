package mongoengine

import (
	"fmt"

	"github.com/mongohaul/mongohaul/internal/archive"
	"github.com/mongohaul/mongohaul/internal/engine"
)

// collWork is one collection to move, resolved against the manifest.
type collWork struct {
	db     string
	coll   string
	destDB string
	count  int64
}

// dbWork groups a database's collections in manifest order.
type dbWork struct {
	name  string
	colls []collWork
}

// resolvePlan validates the plan against the archive manifest and expands it
// into concrete work units. Any mismatch between plan and archive surfaces
// here, synchronously, before a worker starts.
func (e *Engine) resolvePlan(plan engine.Plan) ([]dbWork, int64, error) {
	if err := plan.Validate(); err != nil {
		return nil, 0, err
	}
	m, err := archive.ReadManifest(plan.ArchivePath)
	if err != nil {
		return nil, 0, err
	}

	destFor := func(db string) (string, error) {
		if plan.Shape != engine.ShapeSingleDatabase {
			return db, nil
		}
		if e.opts.DestinationDB == "" {
			return "", fmt.Errorf("single-database transfer needs a destination database, none configured")
		}
		return e.opts.DestinationDB, nil
	}

	var works []dbWork
	var total int64
	for _, dbName := range plan.Databases {
		mdb := m.Database(dbName)
		if mdb == nil {
			return nil, 0, fmt.Errorf("database %q is not in the archive", dbName)
		}
		dest, err := destFor(dbName)
		if err != nil {
			return nil, 0, err
		}

		work := dbWork{name: dbName}
		if plan.Collections == nil {
			for _, mc := range mdb.Collections {
				work.colls = append(work.colls, collWork{db: dbName, coll: mc.Name, destDB: dest, count: mc.DocumentCount})
				total += mc.DocumentCount
			}
		} else {
			for _, collName := range plan.Collections[dbName] {
				mc := manifestCollection(mdb, collName)
				if mc == nil {
					return nil, 0, fmt.Errorf("collection %s.%s is not in the archive", dbName, collName)
				}
				work.colls = append(work.colls, collWork{db: dbName, coll: mc.Name, destDB: dest, count: mc.DocumentCount})
				total += mc.DocumentCount
			}
		}
		if len(work.colls) == 0 {
			return nil, 0, fmt.Errorf("nothing to transfer for database %q", dbName)
		}
		works = append(works, work)
	}
	return works, total, nil
}

func manifestCollection(db *archive.ManifestDatabase, name string) *archive.ManifestCollection {
	for i := range db.Collections {
		if db.Collections[i].Name == name {
			return &db.Collections[i]
		}
	}
	return nil
}

// remainingNames lists the databases from index i onward, the set a retry
// would cover.
func remainingNames(works []dbWork, i int) []string {
	names := make([]string, 0, len(works)-i)
	for _, w := range works[i:] {
		names = append(names, w.name)
	}
	return names
}
