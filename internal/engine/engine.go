// Package engine defines the contract between transfer sessions and the
// backends that move data. A backend implements Engine; the richer
// capabilities (dry run without events, cancellation, pausing, export) are
// optional interfaces discovered at runtime, so a minimal backend still
// works with every caller.
package engine

import (
	"context"
	"fmt"

	"github.com/mongohaul/mongohaul/internal/models"
)

// Shape identifies which dispatch form a plan takes. Whole-database plans
// let the backend stream entire databases without consulting a collection
// list; the other two shapes carry explicit collection sets.
type Shape string

const (
	// ShapeWholeDatabases transfers every collection of each named database.
	ShapeWholeDatabases Shape = "whole-databases"
	// ShapeCollections transfers an explicit database-to-collections map.
	ShapeCollections Shape = "collections"
	// ShapeSingleDatabase transfers one source database into the connected
	// destination database.
	ShapeSingleDatabase Shape = "single-database"
)

// Plan is a fully resolved unit of work handed to a backend. Token labels
// every event the backend publishes for this operation; callers mint it
// before dispatch so no event can outrun its registration.
type Plan struct {
	Token       models.OpToken
	Shape       Shape
	ArchivePath string
	Mode        models.Mode
	Scope       models.Scope

	// Databases lists the databases in dispatch order for every shape.
	Databases []string
	// Collections maps database name to the collections to transfer. It is
	// nil for ShapeWholeDatabases.
	Collections map[string][]string
}

// Validate reports whether the plan is internally consistent.
func (p Plan) Validate() error {
	if p.Token == "" {
		return fmt.Errorf("plan has no operation token")
	}
	if p.ArchivePath == "" {
		return fmt.Errorf("plan has no archive path")
	}
	if !p.Mode.Valid() {
		return fmt.Errorf("plan has invalid mode %q", p.Mode)
	}
	if len(p.Databases) == 0 {
		return fmt.Errorf("plan selects no databases")
	}
	switch p.Shape {
	case ShapeWholeDatabases:
		if p.Collections != nil {
			return fmt.Errorf("whole-database plan must not carry a collection map")
		}
	case ShapeCollections, ShapeSingleDatabase:
		if p.Shape == ShapeSingleDatabase && len(p.Databases) != 1 {
			return fmt.Errorf("single-database plan must name exactly one database, got %d", len(p.Databases))
		}
		for _, db := range p.Databases {
			if len(p.Collections[db]) == 0 {
				return fmt.Errorf("plan selects no collections for database %q", db)
			}
		}
	default:
		return fmt.Errorf("unknown plan shape %q", p.Shape)
	}
	return nil
}

// Engine is the minimal backend surface. Preview is synchronous; DryRun and
// Execute start asynchronous operations whose outcomes arrive as events
// labeled with the plan token. A dispatch rejection is reported through the
// returned error and produces no events.
type Engine interface {
	Preview(ctx context.Context, archivePath string) (*models.ArchivePreview, error)
	DryRun(ctx context.Context, plan Plan) error
	Execute(ctx context.Context, plan Plan) error
}

// SyncDryRunner is implemented by backends that can answer a dry run inline
// for narrow plans instead of going through the event plane.
type SyncDryRunner interface {
	DryRunSync(ctx context.Context, plan Plan) (*models.Result, error)
}

// Canceler is implemented by backends that accept a cancellation request
// for the active operation. Cancellation is cooperative; the backend
// confirms it with a cancelled event.
type Canceler interface {
	CancelActive(ctx context.Context) error
}

// Pauser is implemented by backends that can suspend the active operation
// between work units. Both calls are requests; the backend acknowledges
// with paused and resumed events.
type Pauser interface {
	PauseActive(ctx context.Context) error
	ResumeActive(ctx context.Context) error
}

// ExportRequest names the live data to pack into an archive. An empty
// Databases slice means every database on the connection; Collections may
// narrow individual databases and is nil to take them whole.
type ExportRequest struct {
	Token       models.OpToken
	OutputPath  string
	Databases   []string
	Collections map[string][]string
}

// Exporter is implemented by backends that can write live data out to an
// archive. Export runs synchronously, publishing progress events along the
// way, and returns the counts of what it wrote.
type Exporter interface {
	Export(ctx context.Context, req ExportRequest) (*models.Result, error)
}

// Cancel forwards a cancellation request when the backend supports one and
// is a no-op otherwise.
func Cancel(ctx context.Context, e Engine) error {
	c, ok := e.(Canceler)
	if !ok {
		return nil
	}
	return c.CancelActive(ctx)
}

// Pause requests a pause. ok reports whether the backend supports pausing
// at all; when it does not the call is a no-op.
func Pause(ctx context.Context, e Engine) (ok bool, err error) {
	p, pok := e.(Pauser)
	if !pok {
		return false, nil
	}
	return true, p.PauseActive(ctx)
}

// Resume requests a resume. ok mirrors Pause.
func Resume(ctx context.Context, e Engine) (ok bool, err error) {
	p, pok := e.(Pauser)
	if !pok {
		return false, nil
	}
	return true, p.ResumeActive(ctx)
}

// CanPause reports whether the backend supports pause and resume.
func CanPause(e Engine) bool {
	_, ok := e.(Pauser)
	return ok
}
