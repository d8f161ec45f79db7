package fetcher

import (
	"os"
	"path/filepath"
	"testing"
)

func tempSourceDB(t *testing.T) *SourceDB {
	t.Helper()
	dir := t.TempDir()
	sdb, err := OpenSourceDB(filepath.Join(dir, "sources.db"))
	if err != nil {
		t.Fatalf("OpenSourceDB: %v", err)
	}
	t.Cleanup(func() { sdb.Close() })
	return sdb
}

func TestOpenSourceDB_CreatesTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	sdb, err := OpenSourceDB(path)
	if err != nil {
		t.Fatalf("OpenSourceDB: %v", err)
	}
	defer sdb.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	sources, err := sdb.ListSources()
	if err != nil {
		t.Fatalf("ListSources on empty db: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected 0 sources, got %d", len(sources))
	}
}

func TestSeedAndGetURL(t *testing.T) {
	sdb := tempSourceDB(t)

	sources := []Source{
		{GalaxyName: "malpedia", Description: "d1", URL: "https://example.com/malpedia.json", License: "CC0"},
		{GalaxyName: "tool", Description: "d2", URL: "https://example.com/tool.json", License: "CC0"},
	}
	if err := sdb.Seed(sources); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	url, err := sdb.GetURL("malpedia")
	if err != nil {
		t.Fatalf("GetURL: %v", err)
	}
	if url != "https://example.com/malpedia.json" {
		t.Fatalf("url = %s", url)
	}

	// Seed again must not overwrite manual overrides.
	if err := sdb.SetURL("malpedia", "https://mirror.example.com/malpedia.json"); err != nil {
		t.Fatalf("SetURL: %v", err)
	}
	if err := sdb.Seed(sources); err != nil {
		t.Fatalf("re-Seed: %v", err)
	}
	url, _ = sdb.GetURL("malpedia")
	if url != "https://mirror.example.com/malpedia.json" {
		t.Fatalf("override lost on re-seed: %s", url)
	}
}

func TestSetURL_UnknownGalaxy(t *testing.T) {
	sdb := tempSourceDB(t)
	if err := sdb.SetURL("nope", "https://example.com"); err == nil {
		t.Fatal("expected error for unknown galaxy")
	}
}

func TestRecordFetchAndETag(t *testing.T) {
	sdb := tempSourceDB(t)
	if err := sdb.Seed([]Source{{GalaxyName: "malpedia", Description: "d", URL: "u"}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	etag, err := sdb.GetETag("malpedia")
	if err != nil {
		t.Fatalf("GetETag: %v", err)
	}
	if etag != "" {
		t.Fatalf("initial etag = %q, want empty", etag)
	}

	if err := sdb.RecordFetch("malpedia", `"abc123"`); err != nil {
		t.Fatalf("RecordFetch: %v", err)
	}
	etag, _ = sdb.GetETag("malpedia")
	if etag != `"abc123"` {
		t.Fatalf("etag = %q", etag)
	}

	rows, err := sdb.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if rows[0].LastFetch == nil {
		t.Fatal("LastFetch not recorded")
	}
}

func TestUpdateCheck(t *testing.T) {
	sdb := tempSourceDB(t)
	if err := sdb.Seed([]Source{{GalaxyName: "tool", Description: "d", URL: "u"}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	if err := sdb.UpdateCheck("tool", 404, "HTTP 404"); err != nil {
		t.Fatalf("UpdateCheck: %v", err)
	}

	rows, _ := sdb.ListSources()
	if rows[0].LastStatus == nil || *rows[0].LastStatus != 404 {
		t.Fatalf("LastStatus = %v, want 404", rows[0].LastStatus)
	}
	if rows[0].LastError == nil || *rows[0].LastError != "HTTP 404" {
		t.Fatalf("LastError = %v", rows[0].LastError)
	}

	// Clearing the error on a later healthy check.
	if err := sdb.UpdateCheck("tool", 200, ""); err != nil {
		t.Fatalf("UpdateCheck: %v", err)
	}
	rows, _ = sdb.ListSources()
	if rows[0].LastError != nil {
		t.Fatalf("LastError = %v, want nil after ok check", rows[0].LastError)
	}
}

func TestDefaultSources(t *testing.T) {
	sources := DefaultSources()
	if len(sources) != 6 {
		t.Fatalf("sources = %d, want 6", len(sources))
	}
	seen := map[string]bool{}
	for _, src := range sources {
		seen[src.GalaxyName] = true
		if src.URL == "" || src.Description == "" {
			t.Errorf("incomplete source %+v", src)
		}
	}
	for _, want := range []string{"threat-actor", "mitre-intrusion-set", "malpedia"} {
		if !seen[want] {
			t.Errorf("missing source %s", want)
		}
	}
}
