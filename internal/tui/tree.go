package tui

import (
	"fmt"
	"strings"

	"github.com/mongohaul/mongohaul/internal/models"
	"github.com/mongohaul/mongohaul/internal/selection"
	"github.com/mongohaul/mongohaul/internal/session"
)

// row is one visible line of the selection tree: a database heading or an
// indented collection under an expanded database.
type row struct {
	db   string
	coll string // empty for database rows
}

// tree renders the archive preview as a navigable checklist with tri-state
// database checkboxes. The selection itself lives in the session; the tree
// only keeps cursor position and which databases are expanded.
type tree struct {
	preview  *models.ArchivePreview
	expanded map[string]bool
	cursor   int
	rows     []row
}

func newTree(pv *models.ArchivePreview) *tree {
	t := &tree{
		preview:  pv,
		expanded: make(map[string]bool),
	}
	t.rebuild()
	return t
}

// rebuild recomputes the visible rows after an expand or collapse.
func (t *tree) rebuild() {
	t.rows = t.rows[:0]
	for _, db := range t.preview.Databases {
		t.rows = append(t.rows, row{db: db.Name})
		if t.expanded[db.Name] {
			for _, coll := range db.Collections {
				t.rows = append(t.rows, row{db: db.Name, coll: coll.Name})
			}
		}
	}
	if t.cursor >= len(t.rows) {
		t.cursor = len(t.rows) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

func (t *tree) up() {
	if t.cursor > 0 {
		t.cursor--
	}
}

func (t *tree) down() {
	if t.cursor < len(t.rows)-1 {
		t.cursor++
	}
}

// current returns the row under the cursor.
func (t *tree) current() (row, bool) {
	if t.cursor < 0 || t.cursor >= len(t.rows) {
		return row{}, false
	}
	return t.rows[t.cursor], true
}

// toggleExpand flips the database under the cursor between expanded and
// collapsed. On a collection row it collapses the parent.
func (t *tree) toggleExpand() {
	r, ok := t.current()
	if !ok {
		return
	}
	t.expanded[r.db] = !t.expanded[r.db]
	if r.coll != "" {
		// Collapsing from inside: land on the parent row.
		t.expanded[r.db] = false
		for i, candidate := range t.rows {
			if candidate.db == r.db && candidate.coll == "" {
				t.cursor = i
				break
			}
		}
	}
	t.rebuild()
}

// render draws the tree, reading checkbox state from the session.
func (t *tree) render(sess *session.Session) string {
	var b strings.Builder
	for i, r := range t.rows {
		prefix := "  "
		line := ""
		if r.coll == "" {
			marker := "▸"
			if t.expanded[r.db] {
				marker = "▾"
			}
			box := checkbox(sess.DatabaseState(r.db))
			count := len(t.preview.Database(r.db).Collections)
			line = fmt.Sprintf("%s %s %s %s", marker, box, r.db,
				dimStyle.Render(fmt.Sprintf("(%d collections)", count)))
		} else {
			box := "[ ]"
			if sess.CollectionSelected(r.db, r.coll) {
				box = checkedStyle.Render("[x]")
			}
			docs := int64(0)
			if d := t.preview.Database(r.db); d != nil {
				for _, c := range d.Collections {
					if c.Name == r.coll {
						docs = c.DocumentCount
					}
				}
			}
			line = fmt.Sprintf("    %s %s %s", box, r.coll,
				dimStyle.Render(fmt.Sprintf("(%d docs)", docs)))
		}
		if i == t.cursor {
			prefix = cursorStyle.Render("> ")
			line = cursorStyle.Render(stripANSIUnsafe(line))
		}
		b.WriteString(prefix + line + "\n")
	}
	return b.String()
}

func checkbox(st selection.State) string {
	switch st {
	case selection.Checked:
		return checkedStyle.Render("[x]")
	case selection.Indeterminate:
		return warnStyle.Render("[-]")
	default:
		return "[ ]"
	}
}

// stripANSIUnsafe is a cheap reset so the cursor style wins over the nested
// checkbox styles on the highlighted line.
func stripANSIUnsafe(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case inEsc:
			if r == 'm' {
				inEsc = false
			}
		case r == '\x1b':
			inEsc = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
