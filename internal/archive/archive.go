// Package archive reads and writes mongohaul transfer archives. An archive
// is a gzip-compressed tar stream whose first entry is manifest.json and
// whose remaining entries are one JSON-lines file per collection, laid out
// as database/collection.jsonl. Imports stream collection entries straight
// out of the tar without unpacking anything to disk.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mongohaul/mongohaul/internal/constants"
)

var (
	// ErrNoManifest marks a file that is readable as a tar stream but does
	// not start with a mongohaul manifest.
	ErrNoManifest = errors.New("archive has no manifest")
	// ErrCollectionNotFound marks a collection the manifest promised but
	// the archive body does not contain.
	ErrCollectionNotFound = errors.New("collection not found in archive")
)

// CollectionFile stages one collection's JSON-lines dump for packing.
type CollectionFile struct {
	Database   string
	Collection string
	Path       string
}

// Pack writes a complete archive: the manifest first, then every staged
// collection file under its database/collection.jsonl name. A failure
// removes the partial output.
func Pack(outputPath string, m *Manifest, files []CollectionFile) (err error) {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("refusing to pack: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finish archive: %w", cerr)
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	if err = writeManifestEntry(tw, m); err != nil {
		return err
	}
	for _, f := range files {
		if !validName(f.Database) || !validName(f.Collection) {
			err = fmt.Errorf("invalid archive member name %s/%s", f.Database, f.Collection)
			return err
		}
		if err = writeCollectionEntry(tw, f); err != nil {
			return err
		}
	}

	if err = tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err = gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	return nil
}

func writeManifestEntry(tw *tar.Writer, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	hdr := &tar.Header{
		Name: constants.ManifestName,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func writeCollectionEntry(tw *tar.Writer, f CollectionFile) error {
	info, err := os.Stat(f.Path)
	if err != nil {
		return fmt.Errorf("failed to stat staged collection %s.%s: %w", f.Database, f.Collection, err)
	}
	hdr := &tar.Header{
		Name: entryName(f.Database, f.Collection),
		Mode: 0o644,
		Size: info.Size(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write entry header for %s.%s: %w", f.Database, f.Collection, err)
	}
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open staged collection %s.%s: %w", f.Database, f.Collection, err)
	}
	defer src.Close()
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("failed to write collection %s.%s: %w", f.Database, f.Collection, err)
	}
	return nil
}

// ReadManifest opens an archive and returns its validated manifest. The
// manifest is expected as the first entry; for robustness the scan tolerates
// leading non-manifest entries written by other tools.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s is not a compressed archive: %w", filepath.Base(path), err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if filepath.Base(hdr.Name) != constants.ManifestName {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return &m, nil
	}
}

// collectionStream keeps the file and gzip reader alive for as long as the
// caller reads the tar entry.
type collectionStream struct {
	r    io.Reader
	gz   *gzip.Reader
	file *os.File
}

func (c *collectionStream) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *collectionStream) Close() error {
	gzErr := c.gz.Close()
	fileErr := c.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// OpenCollection returns a reader over one collection's JSON-lines data.
// The archive is scanned from the start each time; tar has no index, and
// collection entries are read once per transfer anyway.
func OpenCollection(path, db, coll string) (io.ReadCloser, error) {
	if !validName(db) || !validName(coll) {
		return nil, fmt.Errorf("invalid collection reference %s.%s", db, coll)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s is not a compressed archive: %w", filepath.Base(path), err)
	}

	want := entryName(db, coll)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			gz.Close()
			f.Close()
			return nil, fmt.Errorf("%w: %s.%s", ErrCollectionNotFound, db, coll)
		}
		if err != nil {
			gz.Close()
			f.Close()
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Name == want {
			return &collectionStream{r: tr, gz: gz, file: f}, nil
		}
	}
}

// Validate confirms the file exists, is non-empty and carries a readable
// manifest. Used as a cheap preflight before previewing.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to check archive: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("archive %s is empty", path)
	}
	_, err = ReadManifest(path)
	return err
}
