package models

// CollectionResult records what happened (or, for a dry run, what would
// happen) to one collection.
type CollectionResult struct {
	Name              string `json:"name"`
	DocumentsInserted int64  `json:"documentsInserted"`
	DocumentsSkipped  int64  `json:"documentsSkipped"`
	DocumentsDropped  int64  `json:"documentsDropped"`
}

// DatabaseResult groups the collection results for one database.
type DatabaseResult struct {
	Name        string             `json:"name"`
	Collections []CollectionResult `json:"collections"`
}

// Result is the outcome of a transfer or dry run. Partial marks results from
// runs that stopped before covering the full selection; Cancelled marks
// operator-initiated stops, which are not failures.
type Result struct {
	Databases []DatabaseResult `json:"databases"`
	Errors    []string         `json:"errors,omitempty"`
	Partial   bool             `json:"partial"`
	Cancelled bool             `json:"cancelled"`
	DryRun    bool             `json:"dryRun"`
}

// TotalInserted sums inserted document counts across the result.
func (r *Result) TotalInserted() int64 {
	return r.total(func(c CollectionResult) int64 { return c.DocumentsInserted })
}

// TotalSkipped sums skipped document counts across the result.
func (r *Result) TotalSkipped() int64 {
	return r.total(func(c CollectionResult) int64 { return c.DocumentsSkipped })
}

// TotalDropped sums dropped document counts across the result.
func (r *Result) TotalDropped() int64 {
	return r.total(func(c CollectionResult) int64 { return c.DocumentsDropped })
}

// CollectionCount returns the number of collection entries in the result.
func (r *Result) CollectionCount() int {
	n := 0
	for _, db := range r.Databases {
		n += len(db.Collections)
	}
	return n
}

func (r *Result) total(f func(CollectionResult) int64) int64 {
	var total int64
	for _, db := range r.Databases {
		for _, coll := range db.Collections {
			total += f(coll)
		}
	}
	return total
}

// Database returns the result entry for the named database, appending a new
// one when absent. Used by engines accumulating results incrementally.
func (r *Result) Database(name string) *DatabaseResult {
	for i := range r.Databases {
		if r.Databases[i].Name == name {
			return &r.Databases[i]
		}
	}
	r.Databases = append(r.Databases, DatabaseResult{Name: name})
	return &r.Databases[len(r.Databases)-1]
}

// Collection returns the collection entry under db, appending when absent.
func (d *DatabaseResult) Collection(name string) *CollectionResult {
	for i := range d.Collections {
		if d.Collections[i].Name == name {
			return &d.Collections[i]
		}
	}
	d.Collections = append(d.Collections, CollectionResult{Name: name})
	return &d.Collections[len(d.Collections)-1]
}

// DropEntry is one namespace a destructive run would drop, with the document
// count it currently holds. Shown verbatim in the confirmation step.
type DropEntry struct {
	Database   string `json:"database"`
	Collection string `json:"collection"`
	Documents  int64  `json:"documents"`
}

// DropSummary lists everything a destructive run would drop, derived from a
// dry-run result.
type DropSummary struct {
	Entries        []DropEntry `json:"entries"`
	TotalDocuments int64       `json:"totalDocuments"`
}

// Drops extracts the drop summary from a dry-run result. Empty when the mode
// was non-destructive or nothing matched.
func (r *Result) Drops() DropSummary {
	var s DropSummary
	for _, db := range r.Databases {
		for _, coll := range db.Collections {
			if coll.DocumentsDropped > 0 {
				s.Entries = append(s.Entries, DropEntry{
					Database:   db.Name,
					Collection: coll.Name,
					Documents:  coll.DocumentsDropped,
				})
				s.TotalDocuments += coll.DocumentsDropped
			}
		}
	}
	return s
}

// MergeResults combines the outcomes of two consecutive runs over disjoint
// work (an interrupted run plus its retry). Per-collection counts are summed
// by name, error lists concatenate, and the later run's completion flags win.
// Either argument may be nil.
func MergeResults(a, b *Result) *Result {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := &Result{
		Partial:   b.Partial,
		Cancelled: b.Cancelled,
		DryRun:    a.DryRun && b.DryRun,
	}
	out.Errors = append(out.Errors, a.Errors...)
	out.Errors = append(out.Errors, b.Errors...)
	for _, src := range []*Result{a, b} {
		for _, db := range src.Databases {
			dst := out.Database(db.Name)
			for _, coll := range db.Collections {
				c := dst.Collection(coll.Name)
				c.DocumentsInserted += coll.DocumentsInserted
				c.DocumentsSkipped += coll.DocumentsSkipped
				c.DocumentsDropped += coll.DocumentsDropped
			}
		}
	}
	return out
}

// ErrorInfo captures a mid-run failure with enough context for the operator
// to choose between retry, skip-and-continue, and dismiss.
type ErrorInfo struct {
	Message    string   `json:"message"`
	Database   string   `json:"database,omitempty"`
	Collection string   `json:"collection,omitempty"`
	Partial    *Result  `json:"partial,omitempty"`
	Remaining  []string `json:"remaining,omitempty"` // databases not yet attempted, in dispatch order
}

// HasProgress reports whether any document made it into the target before the
// failure. Dismissing a failure with progress still surfaces the partial result.
func (e *ErrorInfo) HasProgress() bool {
	return e.Partial != nil && (e.Partial.TotalInserted() > 0 || e.Partial.TotalDropped() > 0)
}
