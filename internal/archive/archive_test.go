package archive

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mongohaul/mongohaul/internal/constants"
)

func stageFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("stage %s: %v", name, err)
	}
	return path
}

func sampleManifest() *Manifest {
	return &Manifest{
		FormatVersion: constants.ManifestFormatVersion,
		CreatedAt:     time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Source:        "localhost:27017",
		Databases: []ManifestDatabase{
			{Name: "accounts", Collections: []ManifestCollection{
				{Name: "users", DocumentCount: 2},
				{Name: "orgs", DocumentCount: 1},
			}},
			{Name: "billing", Collections: []ManifestCollection{
				{Name: "invoices", DocumentCount: 1},
			}},
		},
	}
}

func packSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := []CollectionFile{
		{Database: "accounts", Collection: "users", Path: stageFile(t, dir, "users.jsonl", "{\"_id\":1}\n{\"_id\":2}\n")},
		{Database: "accounts", Collection: "orgs", Path: stageFile(t, dir, "orgs.jsonl", "{\"_id\":10}\n")},
		{Database: "billing", Collection: "invoices", Path: stageFile(t, dir, "invoices.jsonl", "{\"_id\":99}\n")},
	}
	out := filepath.Join(dir, "dump"+constants.ArchiveExt)
	if err := Pack(out, sampleManifest(), files); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return out
}

func TestPackAndReadManifest(t *testing.T) {
	path := packSample(t)

	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.FormatVersion != constants.ManifestFormatVersion {
		t.Errorf("format version = %d, want %d", m.FormatVersion, constants.ManifestFormatVersion)
	}
	if m.Source != "localhost:27017" {
		t.Errorf("source = %q", m.Source)
	}
	if len(m.Databases) != 2 {
		t.Fatalf("databases = %d, want 2", len(m.Databases))
	}
	if got := m.TotalDocuments(); got != 4 {
		t.Errorf("total documents = %d, want 4", got)
	}

	pv := m.Preview(path)
	if pv.Path != path {
		t.Errorf("preview path = %q, want %q", pv.Path, path)
	}
	if got := pv.TotalDocuments(); got != 4 {
		t.Errorf("preview total = %d, want 4", got)
	}
	if db := pv.Database("accounts"); db == nil || len(db.Collections) != 2 {
		t.Errorf("preview accounts entry wrong: %+v", db)
	}
}

func TestOpenCollectionStreamsLines(t *testing.T) {
	path := packSample(t)

	rc, err := OpenCollection(path, "accounts", "users")
	if err != nil {
		t.Fatalf("OpenCollection: %v", err)
	}
	defer rc.Close()

	var lines []string
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(lines) != 2 || lines[0] != "{\"_id\":1}" || lines[1] != "{\"_id\":2}" {
		t.Errorf("lines = %v", lines)
	}
}

func TestOpenCollectionMissing(t *testing.T) {
	path := packSample(t)
	_, err := OpenCollection(path, "accounts", "payments")
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("error = %v, want ErrCollectionNotFound", err)
	}
}

func TestReadManifestRejectsNonArchive(t *testing.T) {
	dir := t.TempDir()
	path := stageFile(t, dir, "plain.txt", "not an archive at all")
	if _, err := ReadManifest(path); err == nil {
		t.Error("expected error for a plain file")
	}
}

func TestReadManifestMissingManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bare.tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	content := []byte("{}\n")
	if err := tw.WriteHeader(&tar.Header{Name: "stray/data.jsonl", Mode: 0o644, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	f.Close()

	if _, err := ReadManifest(path); !errors.Is(err, ErrNoManifest) {
		t.Errorf("error = %v, want ErrNoManifest", err)
	}
}

func TestPackRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	staged := stageFile(t, dir, "x.jsonl", "{}\n")
	m := sampleManifest()
	out := filepath.Join(dir, "bad"+constants.ArchiveExt)

	err := Pack(out, m, []CollectionFile{{Database: "../etc", Collection: "passwd", Path: staged}})
	if err == nil {
		t.Fatal("expected error for traversal-shaped database name")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("partial archive left behind after failed pack")
	}
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"future version", func(m *Manifest) { m.FormatVersion = constants.ManifestFormatVersion + 1 }},
		{"zero version", func(m *Manifest) { m.FormatVersion = 0 }},
		{"no databases", func(m *Manifest) { m.Databases = nil }},
		{"empty database name", func(m *Manifest) { m.Databases[0].Name = "" }},
		{"slash in collection", func(m *Manifest) { m.Databases[0].Collections[0].Name = "a/b" }},
		{"negative count", func(m *Manifest) { m.Databases[0].Collections[0].DocumentCount = -1 }},
		{"database without collections", func(m *Manifest) { m.Databases[0].Collections = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleManifest()
			tt.mutate(m)
			if err := m.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := sampleManifest().Validate(); err != nil {
		t.Errorf("valid manifest rejected: %v", err)
	}
}

func TestValidatePreflight(t *testing.T) {
	path := packSample(t)
	if err := Validate(path); err != nil {
		t.Errorf("Validate on good archive: %v", err)
	}
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.tar.gz")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Validate(empty); err == nil {
		t.Error("expected error for empty archive")
	}
	if err := Validate(filepath.Join(dir, "missing.tar.gz")); err == nil {
		t.Error("expected error for missing archive")
	}
}
