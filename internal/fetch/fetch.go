// Package fetch resolves archive locations to local files. Imports accept a
// local path, an http(s) URL, an s3:// object or an azblob:// blob; exports
// can push a packed archive back to the same remote schemes.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mongohaul/mongohaul/internal/config"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/progress"
)

// Kind tags where an archive location points.
type Kind string

const (
	KindLocal Kind = "local"
	KindHTTP  Kind = "http"
	KindS3    Kind = "s3"
	KindAzure Kind = "azblob"
)

// Location is a parsed archive location.
type Location struct {
	Kind Kind
	// Raw is the original string as the user supplied it.
	Raw string
	// Path is the filesystem path for local locations.
	Path string
	// URL is the full URL for http(s) locations.
	URL string
	// Bucket/Key address s3 objects; Container/Blob address azure blobs.
	Bucket    string
	Key       string
	Container string
	Blob      string
}

// Base returns the file name component of the location, used to name the
// local copy of a fetched archive.
func (l Location) Base() string {
	switch l.Kind {
	case KindLocal:
		return filepath.Base(l.Path)
	case KindHTTP:
		if u, err := url.Parse(l.URL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
			return path.Base(u.Path)
		}
		return "archive.mongohaul.tar.gz"
	case KindS3:
		return path.Base(l.Key)
	case KindAzure:
		return path.Base(l.Blob)
	}
	return "archive.mongohaul.tar.gz"
}

// ParseLocation classifies an archive location string. Anything without a
// recognized scheme is a local path.
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("empty archive location")
	}
	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		if _, err := url.Parse(s); err != nil {
			return Location{}, fmt.Errorf("invalid URL %q: %w", s, err)
		}
		return Location{Kind: KindHTTP, Raw: s, URL: s}, nil

	case strings.HasPrefix(s, "s3://"):
		rest := strings.TrimPrefix(s, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Location{}, fmt.Errorf("s3 location must be s3://bucket/key, got %q", s)
		}
		return Location{Kind: KindS3, Raw: s, Bucket: bucket, Key: key}, nil

	case strings.HasPrefix(s, "azblob://"):
		rest := strings.TrimPrefix(s, "azblob://")
		container, blob, ok := strings.Cut(rest, "/")
		if !ok || container == "" || blob == "" {
			return Location{}, fmt.Errorf("azblob location must be azblob://container/blob, got %q", s)
		}
		return Location{Kind: KindAzure, Raw: s, Container: container, Blob: blob}, nil

	default:
		return Location{Kind: KindLocal, Raw: s, Path: s}, nil
	}
}

// Fetcher retrieves remote archives to local files and pushes local archives
// to remote destinations.
type Fetcher struct {
	cfg *config.Config
	log *logging.Logger
}

// New creates a fetcher using the given proxy and retry configuration.
func New(cfg *config.Config, log *logging.Logger) *Fetcher {
	return &Fetcher{cfg: cfg, log: log}
}

// Fetch materializes the location as a local file and returns its path. Local
// locations are verified and returned as-is; remote ones download into
// destDir with progress on the reporter.
func (f *Fetcher) Fetch(ctx context.Context, loc Location, destDir string, rep progress.Reporter) (string, error) {
	if rep == nil {
		rep = progress.NewNoOpProgress()
	}
	switch loc.Kind {
	case KindLocal:
		if _, err := os.Stat(loc.Path); err != nil {
			return "", fmt.Errorf("archive not readable: %w", err)
		}
		return loc.Path, nil

	case KindHTTP:
		return f.fetchHTTP(ctx, loc, destDir, rep)

	case KindS3:
		return f.fetchS3(ctx, loc, destDir, rep)

	case KindAzure:
		return f.fetchAzure(ctx, loc, destDir, rep)

	default:
		return "", fmt.Errorf("unsupported archive location %q", loc.Raw)
	}
}

// Put uploads a local archive to a remote destination. Local destinations
// are a plain copy.
func (f *Fetcher) Put(ctx context.Context, localPath string, loc Location, rep progress.Reporter) error {
	if rep == nil {
		rep = progress.NewNoOpProgress()
	}
	switch loc.Kind {
	case KindLocal:
		return copyFile(localPath, loc.Path)

	case KindS3:
		return f.putS3(ctx, localPath, loc, rep)

	case KindAzure:
		return f.putAzure(ctx, localPath, loc, rep)

	case KindHTTP:
		return fmt.Errorf("cannot upload an archive to an http(s) URL; use s3:// or azblob://")

	default:
		return fmt.Errorf("unsupported destination %q", loc.Raw)
	}
}

// fetchHTTP downloads over the retrying proxy-aware client.
func (f *Fetcher) fetchHTTP(ctx context.Context, loc Location, destDir string, rep progress.Reporter) (string, error) {
	client, err := NewRetryingClient(f.cfg)
	if err != nil {
		return "", err
	}

	req, err := retryableRequest(ctx, loc.URL)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", loc.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("fetch %s: unexpected status %s", loc.URL, resp.Status)
	}

	rep.Start(resp.ContentLength, "downloading "+loc.Base())
	dest, err := writeToFile(filepath.Join(destDir, loc.Base()), progress.NewReader(resp.Body, rep))
	rep.Finish()
	if err != nil {
		return "", err
	}
	f.log.Info().Str("url", loc.URL).Str("path", dest).Msg("archive downloaded")
	return dest, nil
}

// writeToFile streams r into path via a temp file so partial downloads never
// look like complete archives.
func writeToFile(path string, r io.Reader) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize %s: %w", path, err)
	}
	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	_, err = writeToFile(dst, in)
	return err
}
