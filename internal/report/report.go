// Package report renders transfer outcomes as plain text. Rendering is a
// pure function of the result, so the same result always produces the same
// string; callers print it, log it, or hand a one-line form to desktop
// notifications.
package report

import (
	"fmt"
	"strings"

	"github.com/mongohaul/mongohaul/internal/models"
)

// Options carry the identity lines shown above the breakdown.
type Options struct {
	// ScopeLabel names the destination, either a connection label or a
	// single database name.
	ScopeLabel string
	// ArchivePath is the source archive, omitted from the output when empty.
	ArchivePath string
}

// Render formats a final result with headline, identity, per-collection
// breakdown, totals and errors.
func Render(res *models.Result, opts Options) string {
	if res == nil {
		return "No result.\n"
	}
	var b strings.Builder
	b.WriteString(headline(res))
	b.WriteByte('\n')

	if opts.ArchivePath != "" {
		fmt.Fprintf(&b, "Archive: %s\n", opts.ArchivePath)
	}
	if opts.ScopeLabel != "" {
		fmt.Fprintf(&b, "Target:  %s\n", opts.ScopeLabel)
	}

	if len(res.Databases) > 0 {
		b.WriteByte('\n')
		for _, db := range res.Databases {
			fmt.Fprintf(&b, "%s\n", db.Name)
			for _, coll := range db.Collections {
				fmt.Fprintf(&b, "  %s: %s\n", coll.Name, collectionLine(coll, res.DryRun))
			}
		}
	}

	b.WriteByte('\n')
	fmt.Fprintf(&b, "Totals: %d collections, %d %s, %d %s, %d %s\n",
		res.CollectionCount(),
		res.TotalInserted(), verb(res.DryRun, "inserted", "would be inserted"),
		res.TotalSkipped(), verb(res.DryRun, "skipped", "would be skipped"),
		res.TotalDropped(), verb(res.DryRun, "dropped", "would be dropped"))

	if len(res.Errors) > 0 {
		b.WriteByte('\n')
		b.WriteString("Problems:\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

// RenderFailure formats the failed-state details: what broke, where, what
// completed beforehand and what was never attempted.
func RenderFailure(info *models.ErrorInfo) string {
	if info == nil {
		return "No failure details.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Transfer failed: %s\n", info.Message)
	if info.Database != "" {
		fmt.Fprintf(&b, "  Database:   %s\n", info.Database)
	}
	if info.Collection != "" {
		fmt.Fprintf(&b, "  Collection: %s\n", info.Collection)
	}
	if info.HasProgress() {
		fmt.Fprintf(&b, "Completed before the failure: %d documents in %d collections.\n",
			info.Partial.TotalInserted(), info.Partial.CollectionCount())
	} else {
		b.WriteString("Nothing had been transferred yet.\n")
	}
	if len(info.Remaining) > 0 {
		fmt.Fprintf(&b, "Not yet attempted: %s.\n", strings.Join(info.Remaining, ", "))
	}
	return b.String()
}

// RenderDrops formats the destructive-commit confirmation body with the
// exact collections and document counts that would be dropped.
func RenderDrops(drops models.DropSummary) string {
	if len(drops.Entries) == 0 {
		return "Nothing would be dropped.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Replace mode will drop %d existing documents from %d collections:\n",
		drops.TotalDocuments, len(drops.Entries))
	for _, e := range drops.Entries {
		fmt.Fprintf(&b, "  - %s.%s (%d documents)\n", e.Database, e.Collection, e.Documents)
	}
	return b.String()
}

// OneLine condenses a result into a single sentence for notifications.
func OneLine(res *models.Result) string {
	if res == nil {
		return "No result"
	}
	docs := res.TotalInserted()
	colls := res.CollectionCount()
	switch {
	case res.DryRun:
		return fmt.Sprintf("Dry run: %d documents in %d collections would be transferred", docs, colls)
	case res.Cancelled:
		return fmt.Sprintf("Import cancelled after %d documents", docs)
	case res.Partial || len(res.Errors) > 0:
		return fmt.Sprintf("Import finished with problems: %d documents in %d collections", docs, colls)
	default:
		return fmt.Sprintf("Import complete: %d documents in %d collections", docs, colls)
	}
}

func headline(res *models.Result) string {
	switch {
	case res.DryRun:
		return "Dry run: nothing was written."
	case res.Cancelled:
		return "Transfer cancelled."
	case res.Partial || len(res.Errors) > 0:
		return "Transfer finished with problems."
	default:
		return "Transfer complete."
	}
}

func collectionLine(coll models.CollectionResult, dryRun bool) string {
	parts := []string{fmt.Sprintf("%d %s", coll.DocumentsInserted, verb(dryRun, "inserted", "to insert"))}
	if coll.DocumentsSkipped > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", coll.DocumentsSkipped, verb(dryRun, "skipped", "to skip")))
	}
	if coll.DocumentsDropped > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", coll.DocumentsDropped, verb(dryRun, "dropped", "to drop")))
	}
	return strings.Join(parts, ", ")
}

func verb(dryRun bool, did, would string) string {
	if dryRun {
		return would
	}
	return did
}
