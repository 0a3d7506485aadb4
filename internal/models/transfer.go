package models

import "fmt"

// Mode selects how a transfer treats data already present in the target store.
// It is a property of a session, set once per run, never per item.
type Mode string

const (
	// ModeMerge keeps existing data: documents whose _id already exists in the
	// target collection are skipped.
	ModeMerge Mode = "merge"

	// ModeReplace drops matching target databases/collections first, then
	// inserts every selected document fresh.
	ModeReplace Mode = "replace"
)

// Destructive reports whether the mode drops existing data.
func (m Mode) Destructive() bool { return m == ModeReplace }

// Valid reports whether m is one of the two defined modes.
func (m Mode) Valid() bool { return m == ModeMerge || m == ModeReplace }

// Scope is the target of an operation: the whole connection or one database.
// The two cases are a sealed variant so dispatch branches on it exactly once.
type Scope interface {
	isScope()
	fmt.Stringer
}

// ConnectionScope targets every selected database on the connection.
type ConnectionScope struct{}

// DatabaseScope restores one archived database into a single named target.
type DatabaseScope struct {
	SourceDB string
}

func (ConnectionScope) isScope() {}
func (DatabaseScope) isScope()   {}

func (ConnectionScope) String() string { return "connection" }

func (s DatabaseScope) String() string { return "database " + s.SourceDB }

// Phase tags which stage of a destructive transfer is running.
type Phase string

const (
	PhaseDropping     Phase = "dropping"
	PhaseTransferring Phase = "transferring"
)

// Progress is a point-in-time snapshot of a running operation, carried by
// progress events and kept on the session for the UI to render.
type Progress struct {
	Phase           Phase  `json:"phase"`
	DatabaseIndex   int    `json:"databaseIndex"`
	DatabaseCount   int    `json:"databaseCount"`
	CollectionIndex int    `json:"collectionIndex"`
	CollectionCount int    `json:"collectionCount"`
	Database        string `json:"database"`
	Collection      string `json:"collection"`
	DocumentsDone   int64  `json:"documentsDone"`
	DocumentsTotal  int64  `json:"documentsTotal"`
}
