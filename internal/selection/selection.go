// Package selection models which databases and collections of an archive
// preview are chosen for transfer. Every operation is synchronous, total, and
// touches nothing but the selection itself; validity is always judged against
// the current preview.
package selection

import (
	"github.com/mongohaul/mongohaul/internal/models"
)

// Selection maps database name to the set of chosen collection names.
// Invariants: every entry exists in the current preview, and no database key
// holds an empty set (the key is deleted instead).
type Selection map[string]map[string]struct{}

// State is the tri-state checkbox value of one database.
type State int

const (
	Unchecked State = iota
	Checked
	Indeterminate
)

func (s State) String() string {
	switch s {
	case Checked:
		return "checked"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unchecked"
	}
}

// New returns an empty selection.
func New() Selection {
	return make(Selection)
}

// Clone returns a deep copy.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for db, colls := range s {
		set := make(map[string]struct{}, len(colls))
		for coll := range colls {
			set[coll] = struct{}{}
		}
		out[db] = set
	}
	return out
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool { return len(s) == 0 }

// Has reports whether the collection is selected.
func (s Selection) Has(db, coll string) bool {
	set, ok := s[db]
	if !ok {
		return false
	}
	_, ok = set[coll]
	return ok
}

// ToggleCollection adds or removes one collection. Removing the last
// collection of a database removes the database key. Collections the preview
// does not list are ignored.
func (s Selection) ToggleCollection(p *models.ArchivePreview, db, coll string) {
	if !previewHas(p, db, coll) {
		return
	}
	set, ok := s[db]
	if !ok {
		s[db] = map[string]struct{}{coll: {}}
		return
	}
	if _, selected := set[coll]; selected {
		delete(set, coll)
		if len(set) == 0 {
			delete(s, db)
		}
		return
	}
	set[coll] = struct{}{}
}

// ToggleDatabase flips a whole database: fully checked clears it, anything
// else (unchecked or indeterminate) selects every collection the preview
// lists for it.
func (s Selection) ToggleDatabase(p *models.ArchivePreview, db string) {
	d := p.Database(db)
	if d == nil {
		return
	}
	if s.DatabaseState(p, db) == Checked {
		delete(s, db)
		return
	}
	set := make(map[string]struct{}, len(d.Collections))
	for _, coll := range d.Collections {
		set[coll.Name] = struct{}{}
	}
	if len(set) == 0 {
		delete(s, db)
		return
	}
	s[db] = set
}

// SelectAll selects every collection of every previewed database.
func (s Selection) SelectAll(p *models.ArchivePreview) {
	s.Clear()
	for _, db := range p.Databases {
		set := make(map[string]struct{}, len(db.Collections))
		for _, coll := range db.Collections {
			set[coll.Name] = struct{}{}
		}
		if len(set) > 0 {
			s[db.Name] = set
		}
	}
}

// Clear empties the selection.
func (s Selection) Clear() {
	for db := range s {
		delete(s, db)
	}
}

// DatabaseState returns the tri-state value of one database: Checked when the
// selected set has exactly the collections the preview lists, Unchecked when
// the database is absent, Indeterminate otherwise.
func (s Selection) DatabaseState(p *models.ArchivePreview, db string) State {
	set, ok := s[db]
	if !ok || len(set) == 0 {
		return Unchecked
	}
	d := p.Database(db)
	if d == nil {
		return Indeterminate
	}
	if len(set) != len(d.Collections) {
		return Indeterminate
	}
	for _, coll := range d.Collections {
		if _, selected := set[coll.Name]; !selected {
			return Indeterminate
		}
	}
	return Checked
}

// FullySelected reports whether the selection covers the entire preview:
// every previewed database present, each with exactly its previewed
// collections.
func (s Selection) FullySelected(p *models.ArchivePreview) bool {
	if len(s) != len(p.Databases) {
		return false
	}
	for _, db := range p.Databases {
		if s.DatabaseState(p, db.Name) != Checked {
			return false
		}
	}
	return len(s) > 0
}

// Databases returns the selected database names in preview order.
func (s Selection) Databases(p *models.ArchivePreview) []string {
	var out []string
	for _, db := range p.Databases {
		if _, ok := s[db.Name]; ok {
			out = append(out, db.Name)
		}
	}
	return out
}

// Collections returns the selected collections of one database in preview
// order.
func (s Selection) Collections(p *models.ArchivePreview, db string) []string {
	set, ok := s[db]
	if !ok {
		return nil
	}
	var out []string
	for _, coll := range p.Database(db).Collections {
		if _, selected := set[coll.Name]; selected {
			out = append(out, coll.Name)
		}
	}
	return out
}

// Counts returns how many databases and collections are selected.
func (s Selection) Counts() (databases, collections int) {
	databases = len(s)
	for _, set := range s {
		collections += len(set)
	}
	return databases, collections
}

// DocumentCount sums the previewed document counts of selected collections.
func (s Selection) DocumentCount(p *models.ArchivePreview) int64 {
	var total int64
	for _, db := range p.Databases {
		set, ok := s[db.Name]
		if !ok {
			continue
		}
		for _, coll := range db.Collections {
			if _, selected := set[coll.Name]; selected {
				total += coll.DocumentCount
			}
		}
	}
	return total
}

// Restrict returns a copy holding only the given databases. Used to scope a
// retry to the not-yet-attempted part of a failed run.
func (s Selection) Restrict(dbs []string) Selection {
	keep := make(map[string]struct{}, len(dbs))
	for _, db := range dbs {
		keep[db] = struct{}{}
	}
	out := New()
	for db, colls := range s {
		if _, ok := keep[db]; !ok {
			continue
		}
		set := make(map[string]struct{}, len(colls))
		for coll := range colls {
			set[coll] = struct{}{}
		}
		out[db] = set
	}
	return out
}

func previewHas(p *models.ArchivePreview, db, coll string) bool {
	d := p.Database(db)
	if d == nil {
		return false
	}
	for _, c := range d.Collections {
		if c.Name == coll {
			return true
		}
	}
	return false
}
