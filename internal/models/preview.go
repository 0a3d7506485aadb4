// Package models defines the data structures shared across the transfer pipeline.
package models

import "time"

// ArchivePreview describes what a snapshot archive contains, read from its
// manifest without extracting data files. Immutable once fetched; picking a
// different archive replaces it wholesale.
type ArchivePreview struct {
	Path      string            `json:"path"`
	Source    string            `json:"source,omitempty"` // connection label recorded at export time
	CreatedAt time.Time         `json:"createdAt"`
	Databases []DatabasePreview `json:"databases"`
}

// DatabasePreview is one database entry in an archive preview.
type DatabasePreview struct {
	Name        string              `json:"name"`
	Collections []CollectionPreview `json:"collections"`
}

// CollectionPreview is one collection entry with its exported document count.
type CollectionPreview struct {
	Name          string `json:"name"`
	DocumentCount int64  `json:"documentCount"`
}

// Database returns the preview entry for the named database, or nil.
func (p *ArchivePreview) Database(name string) *DatabasePreview {
	for i := range p.Databases {
		if p.Databases[i].Name == name {
			return &p.Databases[i]
		}
	}
	return nil
}

// DatabaseNames returns the database names in preview order.
func (p *ArchivePreview) DatabaseNames() []string {
	names := make([]string, len(p.Databases))
	for i, db := range p.Databases {
		names[i] = db.Name
	}
	return names
}

// TotalDocuments sums the exported document counts across the whole archive.
func (p *ArchivePreview) TotalDocuments() int64 {
	var total int64
	for _, db := range p.Databases {
		for _, coll := range db.Collections {
			total += coll.DocumentCount
		}
	}
	return total
}

// CollectionNames returns the collection names previewed for one database,
// in preview order. Nil when the database is not in the preview.
func (p *ArchivePreview) CollectionNames(db string) []string {
	d := p.Database(db)
	if d == nil {
		return nil
	}
	names := make([]string, len(d.Collections))
	for i, coll := range d.Collections {
		names[i] = coll.Name
	}
	return names
}
