package models

import "testing"

func TestMergeResultsSumsByName(t *testing.T) {
	a := &Result{}
	a.Database("shop").Collection("orders").DocumentsInserted = 10
	a.Errors = append(a.Errors, "first run stopped")

	b := &Result{Partial: true}
	b.Database("shop").Collection("orders").DocumentsInserted = 5
	b.Database("crm").Collection("leads").DocumentsInserted = 3

	out := MergeResults(a, b)
	if got := out.Database("shop").Collection("orders").DocumentsInserted; got != 15 {
		t.Errorf("merged orders inserted = %d, want 15", got)
	}
	if got := out.TotalInserted(); got != 18 {
		t.Errorf("merged total = %d, want 18", got)
	}
	if !out.Partial {
		t.Error("later run's Partial flag should win")
	}
	if len(out.Errors) != 1 {
		t.Errorf("errors = %v, want the carried message", out.Errors)
	}
}

func TestMergeResultsNilArguments(t *testing.T) {
	r := &Result{}
	if MergeResults(nil, r) != r {
		t.Error("MergeResults(nil, r) should return r")
	}
	if MergeResults(r, nil) != r {
		t.Error("MergeResults(r, nil) should return r")
	}
	if MergeResults(nil, nil) != nil {
		t.Error("MergeResults(nil, nil) should be nil")
	}
}

func TestDropsCollectsOnlyDroppingCollections(t *testing.T) {
	r := &Result{DryRun: true}
	r.Database("shop").Collection("orders").DocumentsDropped = 7
	r.Database("shop").Collection("users").DocumentsInserted = 4 // no drops
	r.Database("crm").Collection("leads").DocumentsDropped = 2

	drops := r.Drops()
	if len(drops.Entries) != 2 {
		t.Fatalf("drop entries = %d, want 2", len(drops.Entries))
	}
	if drops.TotalDocuments != 9 {
		t.Errorf("total dropped = %d, want 9", drops.TotalDocuments)
	}
}

func TestHasProgress(t *testing.T) {
	var e ErrorInfo
	if e.HasProgress() {
		t.Error("no partial result means no progress")
	}
	e.Partial = &Result{}
	if e.HasProgress() {
		t.Error("empty partial result means no progress")
	}
	e.Partial.Database("shop").Collection("orders").DocumentsInserted = 1
	if !e.HasProgress() {
		t.Error("inserted documents count as progress")
	}
}
