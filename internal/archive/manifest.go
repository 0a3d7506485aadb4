package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/mongohaul/mongohaul/internal/constants"
	"github.com/mongohaul/mongohaul/internal/models"
)

// Manifest is the first entry of every archive. It describes the databases
// and collections inside so a preview never has to scan document data.
type Manifest struct {
	FormatVersion int                `json:"formatVersion"`
	CreatedAt     time.Time          `json:"createdAt"`
	Source        string             `json:"source,omitempty"`
	Databases     []ManifestDatabase `json:"databases"`
}

// ManifestDatabase lists one database's collections.
type ManifestDatabase struct {
	Name        string               `json:"name"`
	Collections []ManifestCollection `json:"collections"`
}

// ManifestCollection records one collection and its document count.
type ManifestCollection struct {
	Name          string `json:"name"`
	DocumentCount int64  `json:"documentCount"`
}

// Validate checks the format version and rejects entry names that could
// escape the archive layout.
func (m *Manifest) Validate() error {
	if m.FormatVersion <= 0 || m.FormatVersion > constants.ManifestFormatVersion {
		return fmt.Errorf("unsupported archive format version %d (this build reads up to %d)",
			m.FormatVersion, constants.ManifestFormatVersion)
	}
	if len(m.Databases) == 0 {
		return fmt.Errorf("archive manifest lists no databases")
	}
	for _, db := range m.Databases {
		if !validName(db.Name) {
			return fmt.Errorf("invalid database name %q in manifest", db.Name)
		}
		if len(db.Collections) == 0 {
			return fmt.Errorf("database %q lists no collections", db.Name)
		}
		for _, coll := range db.Collections {
			if !validName(coll.Name) {
				return fmt.Errorf("invalid collection name %q in database %q", coll.Name, db.Name)
			}
			if coll.DocumentCount < 0 {
				return fmt.Errorf("negative document count for %s.%s", db.Name, coll.Name)
			}
		}
	}
	return nil
}

// Preview converts the manifest into the preview model shown to the user.
func (m *Manifest) Preview(path string) *models.ArchivePreview {
	pv := &models.ArchivePreview{
		Path:      path,
		Source:    m.Source,
		CreatedAt: m.CreatedAt,
		Databases: make([]models.DatabasePreview, 0, len(m.Databases)),
	}
	for _, db := range m.Databases {
		d := models.DatabasePreview{
			Name:        db.Name,
			Collections: make([]models.CollectionPreview, 0, len(db.Collections)),
		}
		for _, coll := range db.Collections {
			d.Collections = append(d.Collections, models.CollectionPreview{
				Name:          coll.Name,
				DocumentCount: coll.DocumentCount,
			})
		}
		pv.Databases = append(pv.Databases, d)
	}
	return pv
}

// TotalDocuments sums every collection's count.
func (m *Manifest) TotalDocuments() int64 {
	var n int64
	for _, db := range m.Databases {
		for _, coll := range db.Collections {
			n += coll.DocumentCount
		}
	}
	return n
}

// Database returns the named database entry or nil.
func (m *Manifest) Database(name string) *ManifestDatabase {
	for i := range m.Databases {
		if m.Databases[i].Name == name {
			return &m.Databases[i]
		}
	}
	return nil
}

// entryName maps a collection to its archive member path.
func entryName(db, coll string) string {
	return db + "/" + coll + ".jsonl"
}

// validName rejects names that would break the db/collection.jsonl layout
// or walk outside it when an archive is unpacked by other tools.
func validName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.ContainsAny(s, "/\\\x00") {
		return false
	}
	return true
}
