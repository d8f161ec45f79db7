// CLAUDE:SUMMARY Galaxy cluster downloader: ETag-aware HTTP fetch with retries, JSON validation, atomic write plus gob snapshot.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/galaxy-registry/pkg/galaxy"
)

// ErrNotModified reports that the upstream cluster file matched the recorded
// entity tag and nothing was written.
var ErrNotModified = errors.New("cluster not modified")

// Fetcher downloads cluster files into a galaxies directory.
type Fetcher struct {
	sources *SourceDB
	dir     string
	client  *http.Client
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher writing into dir, tracking state in sources.
func NewFetcher(sources *SourceDB, dir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		sources: sources,
		dir:     dir,
		client:  &http.Client{Timeout: 5 * time.Minute},
		logger:  logger,
	}
}

// Fetch downloads one galaxy's cluster file, validates it, and writes
// <name>.json plus a <name>.gob snapshot into the galaxies directory.
// Unless force is set, the recorded ETag is sent and an unchanged upstream
// yields ErrNotModified.
func (f *Fetcher) Fetch(ctx context.Context, galaxyName string, force bool) error {
	url, err := f.sources.GetURL(galaxyName)
	if err != nil {
		return err
	}

	etag := ""
	if !force {
		if etag, err = f.sources.GetETag(galaxyName); err != nil {
			return err
		}
	}

	body, newETag, err := f.download(ctx, url, etag)
	if err != nil {
		return err
	}

	// Validate before touching the galaxies dir; a bad upstream file must
	// not clobber a working catalog.
	g, err := galaxy.ParseGalaxy(bytes.NewReader(body), galaxyName)
	if err != nil {
		return fmt.Errorf("galaxy %s: %w", galaxyName, err)
	}
	if len(g.Entries) == 0 {
		return fmt.Errorf("galaxy %s: cluster file has no values", galaxyName)
	}

	jsonPath := filepath.Join(f.dir, galaxyName+".json")
	if err := writeFileAtomic(jsonPath, body); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}
	if err := galaxy.SaveSnapshot(g, filepath.Join(f.dir, galaxyName+".gob")); err != nil {
		return err
	}

	if err := f.sources.RecordFetch(galaxyName, newETag); err != nil {
		return err
	}
	f.logger.Info("galaxy fetched", "galaxy", galaxyName, "entries", len(g.Entries), "version", g.Version)
	return nil
}

// FetchAll fetches every seeded source, continuing past individual failures.
// ErrNotModified is not a failure. Returns the first real error encountered.
func (f *Fetcher) FetchAll(ctx context.Context, force bool) error {
	sources, err := f.sources.ListSources()
	if err != nil {
		return err
	}

	var firstErr error
	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.Fetch(ctx, src.GalaxyName, force)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotModified):
			f.logger.Info("galaxy unchanged", "galaxy", src.GalaxyName)
		default:
			f.logger.Error("galaxy fetch failed", "galaxy", src.GalaxyName, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// download performs the HTTP GET with retries and conditional request support.
func (f *Fetcher) download(ctx context.Context, url, etag string) (body []byte, newETag string, err error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", fmt.Errorf("create request: %w", err)
		}
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			data, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return data, resp.Header.Get("ETag"), nil
		case http.StatusNotModified:
			resp.Body.Close()
			return nil, "", ErrNotModified
		default:
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
		}
	}
	return nil, "", fmt.Errorf("download %s failed after 3 attempts: %w", url, lastErr)
}

// writeFileAtomic writes data to path via a temp file and rename, so readers
// never observe a half-written cluster file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
