package selection

import (
	"reflect"
	"testing"

	"github.com/mongohaul/mongohaul/internal/models"
)

func previewAB() *models.ArchivePreview {
	return &models.ArchivePreview{
		Path: "/tmp/demo.mongohaul.tar.gz",
		Databases: []models.DatabasePreview{
			{Name: "A", Collections: []models.CollectionPreview{
				{Name: "x", DocumentCount: 10},
				{Name: "y", DocumentCount: 20},
			}},
			{Name: "B", Collections: []models.CollectionPreview{
				{Name: "z", DocumentCount: 5},
			}},
		},
	}
}

func TestSelectAllThenClearIsEmpty(t *testing.T) {
	p := previewAB()
	s := New()
	s.SelectAll(p)
	if s.IsEmpty() {
		t.Fatal("SelectAll left the selection empty")
	}
	s.Clear()
	if !s.IsEmpty() {
		t.Errorf("Clear left entries behind: %v", s)
	}
}

func TestToggleDatabaseIsSelfInverse(t *testing.T) {
	p := previewAB()

	cases := []struct {
		name  string
		setup func(Selection)
	}{
		{"from empty", func(Selection) {}},
		{"from partial", func(s Selection) { s.ToggleCollection(p, "A", "x") }},
		{"from full", func(s Selection) { s.SelectAll(p) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New()
			tc.setup(s)
			before := s.Clone()
			s.ToggleDatabase(p, "A")
			s.ToggleDatabase(p, "A")
			if !reflect.DeepEqual(s, before) {
				t.Errorf("double toggle changed selection: before %v, after %v", before, s)
			}
		})
	}
}

func TestToggleDatabaseFromIndeterminateSelectsAll(t *testing.T) {
	p := previewAB()
	s := New()
	s.ToggleCollection(p, "A", "x")

	s.ToggleDatabase(p, "A")
	if got := s.DatabaseState(p, "A"); got != Checked {
		t.Errorf("expected checked after toggling indeterminate database, got %s", got)
	}
	if !s.Has("A", "y") {
		t.Error("y not selected after group toggle")
	}
}

func TestToggleDatabaseFromCheckedClears(t *testing.T) {
	p := previewAB()
	s := New()
	s.ToggleDatabase(p, "B")
	s.ToggleDatabase(p, "B")
	if _, ok := s["B"]; ok {
		t.Error("database key still present after clearing toggle")
	}
}

func TestToggleCollectionPrunesEmptySet(t *testing.T) {
	p := previewAB()
	s := New()
	s.ToggleCollection(p, "B", "z")
	s.ToggleCollection(p, "B", "z")
	if _, ok := s["B"]; ok {
		t.Error("empty collection set persisted for database B")
	}
}

func TestToggleCollectionUnknownIsNoOp(t *testing.T) {
	p := previewAB()
	s := New()
	s.ToggleCollection(p, "A", "ghost")
	s.ToggleCollection(p, "nope", "x")
	if !s.IsEmpty() {
		t.Errorf("unknown names mutated the selection: %v", s)
	}
}

func TestDatabaseState(t *testing.T) {
	p := previewAB()
	s := New()

	if got := s.DatabaseState(p, "A"); got != Unchecked {
		t.Errorf("absent database: expected unchecked, got %s", got)
	}

	s.ToggleCollection(p, "A", "x")
	if got := s.DatabaseState(p, "A"); got != Indeterminate {
		t.Errorf("partial database: expected indeterminate, got %s", got)
	}

	s.ToggleCollection(p, "A", "y")
	if got := s.DatabaseState(p, "A"); got != Checked {
		t.Errorf("complete database: expected checked, got %s", got)
	}
}

func TestFullySelected(t *testing.T) {
	p := previewAB()
	s := New()

	if s.FullySelected(p) {
		t.Error("empty selection reported fully selected")
	}

	s.ToggleCollection(p, "A", "x")
	s.ToggleCollection(p, "A", "y")
	s.ToggleCollection(p, "B", "z")
	if !s.FullySelected(p) {
		t.Error("complete selection not reported fully selected")
	}

	s.ToggleCollection(p, "A", "y")
	if s.FullySelected(p) {
		t.Error("partial selection reported fully selected")
	}
}

func TestDatabasesAndCollectionsFollowPreviewOrder(t *testing.T) {
	p := previewAB()
	s := New()
	// Select in reverse order; output must still follow the preview.
	s.ToggleCollection(p, "B", "z")
	s.ToggleCollection(p, "A", "y")
	s.ToggleCollection(p, "A", "x")

	if got := s.Databases(p); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("database order: expected [A B], got %v", got)
	}
	if got := s.Collections(p, "A"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("collection order: expected [x y], got %v", got)
	}
}

func TestCountsAndDocumentCount(t *testing.T) {
	p := previewAB()
	s := New()
	s.ToggleCollection(p, "A", "y")
	s.ToggleCollection(p, "B", "z")

	dbs, colls := s.Counts()
	if dbs != 2 || colls != 2 {
		t.Errorf("expected 2 databases / 2 collections, got %d / %d", dbs, colls)
	}
	if got := s.DocumentCount(p); got != 25 {
		t.Errorf("expected 25 selected documents, got %d", got)
	}
}

func TestRestrict(t *testing.T) {
	p := previewAB()
	s := New()
	s.SelectAll(p)

	got := s.Restrict([]string{"B"})
	if _, ok := got["A"]; ok {
		t.Error("restricted selection still holds database A")
	}
	if !got.Has("B", "z") {
		t.Error("restricted selection lost database B")
	}
	// The original is untouched.
	if !s.Has("A", "x") {
		t.Error("Restrict mutated its receiver")
	}
}
