package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/models"
	"github.com/mongohaul/mongohaul/internal/selection"
)

func planPreview() *models.ArchivePreview {
	return &models.ArchivePreview{
		Path: "/data/dump.mongohaul.tar.gz",
		Databases: []models.DatabasePreview{
			{Name: "accounts", Collections: []models.CollectionPreview{
				{Name: "users", DocumentCount: 40},
				{Name: "orgs", DocumentCount: 10},
			}},
			{Name: "billing", Collections: []models.CollectionPreview{
				{Name: "invoices", DocumentCount: 25},
			}},
		},
	}
}

func TestBuildPlanWholeDatabases(t *testing.T) {
	p := planPreview()
	sel := selection.New()
	sel.SelectAll(p)

	plan, err := BuildPlan(p, sel, models.ConnectionScope{}, models.ModeMerge)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Shape != engine.ShapeWholeDatabases {
		t.Errorf("shape = %q, want %q", plan.Shape, engine.ShapeWholeDatabases)
	}
	if want := []string{"accounts", "billing"}; !reflect.DeepEqual(plan.Databases, want) {
		t.Errorf("databases = %v, want %v", plan.Databases, want)
	}
	if plan.Collections != nil {
		t.Errorf("whole-database plan should not carry a collection map, got %v", plan.Collections)
	}
	if plan.ArchivePath != p.Path {
		t.Errorf("archive path = %q, want %q", plan.ArchivePath, p.Path)
	}
}

func TestBuildPlanPartialSelectionBecomesCollectionMap(t *testing.T) {
	p := planPreview()
	sel := selection.New()
	sel.ToggleCollection(p, "accounts", "users")

	plan, err := BuildPlan(p, sel, models.ConnectionScope{}, models.ModeMerge)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Shape != engine.ShapeCollections {
		t.Errorf("shape = %q, want %q", plan.Shape, engine.ShapeCollections)
	}
	want := map[string][]string{"accounts": {"users"}}
	if !reflect.DeepEqual(plan.Collections, want) {
		t.Errorf("collections = %v, want %v", plan.Collections, want)
	}
	if got := plan.Databases; !reflect.DeepEqual(got, []string{"accounts"}) {
		t.Errorf("databases = %v, want [accounts]", got)
	}
}

func TestBuildPlanDatabaseScope(t *testing.T) {
	p := planPreview()
	sel := selection.New()
	sel.ToggleDatabase(p, "accounts")

	plan, err := BuildPlan(p, sel, models.DatabaseScope{SourceDB: "accounts"}, models.ModeReplace)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Shape != engine.ShapeSingleDatabase {
		t.Errorf("shape = %q, want %q", plan.Shape, engine.ShapeSingleDatabase)
	}
	if !reflect.DeepEqual(plan.Databases, []string{"accounts"}) {
		t.Errorf("databases = %v, want [accounts]", plan.Databases)
	}
	want := map[string][]string{"accounts": {"users", "orgs"}}
	if !reflect.DeepEqual(plan.Collections, want) {
		t.Errorf("collections = %v, want %v", plan.Collections, want)
	}
}

func TestBuildPlanErrors(t *testing.T) {
	p := planPreview()
	full := selection.New()
	full.SelectAll(p)
	onlyBilling := selection.New()
	onlyBilling.ToggleDatabase(p, "billing")

	tests := []struct {
		name  string
		sel   selection.Selection
		scope models.Scope
		want  error
	}{
		{"empty selection", selection.New(), models.ConnectionScope{}, ErrEmptySelection},
		{"no source database", full, models.DatabaseScope{}, ErrNoSourceDatabase},
		{"source outside selection", onlyBilling, models.DatabaseScope{SourceDB: "accounts"}, ErrEmptySelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPlan(p, tt.sel, tt.scope, models.ModeMerge)
			if !errors.Is(err, tt.want) {
				t.Errorf("BuildPlan error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := BuildPlan(p, full, models.DatabaseScope{SourceDB: "missing"}, models.ModeMerge); err == nil {
		t.Error("expected error for source database absent from archive")
	}
	if _, err := BuildPlan(nil, full, models.ConnectionScope{}, models.ModeMerge); err == nil {
		t.Error("expected error without a preview")
	}
}

func TestRestrictPlanKeepsShapeAndOrder(t *testing.T) {
	prev := engine.Plan{
		Shape:       engine.ShapeWholeDatabases,
		ArchivePath: "/data/dump.mongohaul.tar.gz",
		Mode:        models.ModeMerge,
		Scope:       models.ConnectionScope{},
		Databases:   []string{"a", "b", "c"},
	}
	next, err := restrictPlan(prev, []string{"b", "c"})
	if err != nil {
		t.Fatalf("restrictPlan: %v", err)
	}
	if next.Shape != engine.ShapeWholeDatabases {
		t.Errorf("shape changed to %q", next.Shape)
	}
	if !reflect.DeepEqual(next.Databases, []string{"b", "c"}) {
		t.Errorf("databases = %v, want [b c]", next.Databases)
	}

	prev.Shape = engine.ShapeCollections
	prev.Collections = map[string][]string{"a": {"x"}, "b": {"y"}, "c": {"z"}}
	next, err = restrictPlan(prev, []string{"c"})
	if err != nil {
		t.Fatalf("restrictPlan: %v", err)
	}
	want := map[string][]string{"c": {"z"}}
	if !reflect.DeepEqual(next.Collections, want) {
		t.Errorf("collections = %v, want %v", next.Collections, want)
	}
}

func TestRestrictPlanRejectsBadInput(t *testing.T) {
	prev := engine.Plan{Shape: engine.ShapeWholeDatabases, Databases: []string{"a", "b"}}
	if _, err := restrictPlan(prev, nil); err == nil {
		t.Error("expected error for empty remaining list")
	}
	if _, err := restrictPlan(prev, []string{"z"}); err == nil {
		t.Error("expected error for database outside the original plan")
	}
}

func TestPlanValidate(t *testing.T) {
	valid := engine.Plan{
		Token:       models.NewOpToken("import"),
		Shape:       engine.ShapeCollections,
		ArchivePath: "/data/dump.mongohaul.tar.gz",
		Mode:        models.ModeMerge,
		Scope:       models.ConnectionScope{},
		Databases:   []string{"accounts"},
		Collections: map[string][]string{"accounts": {"users"}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid plan rejected: %v", err)
	}

	broken := valid
	broken.Collections = map[string][]string{}
	if err := broken.Validate(); err == nil {
		t.Error("expected error for missing collection list")
	}

	whole := valid
	whole.Shape = engine.ShapeWholeDatabases
	if err := whole.Validate(); err == nil {
		t.Error("expected error for whole-database plan with a collection map")
	}
	whole.Collections = nil
	if err := whole.Validate(); err != nil {
		t.Errorf("whole-database plan rejected: %v", err)
	}
}
