package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func checkerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestCheckAll_Mixed(t *testing.T) {
	srv200 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv200.Close()

	srv404 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv404.Close()

	srv500 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv500.Close()

	dir := t.TempDir()
	sdb, err := OpenSourceDB(filepath.Join(dir, "sources.db"))
	if err != nil {
		t.Fatalf("OpenSourceDB: %v", err)
	}
	defer sdb.Close()

	sources := []Source{
		{GalaxyName: "ok-galaxy", Description: "OK source", URL: srv200.URL, License: "CC0"},
		{GalaxyName: "notfound-galaxy", Description: "404 source", URL: srv404.URL, License: "CC0"},
		{GalaxyName: "error-galaxy", Description: "500 source", URL: srv500.URL, License: "CC0"},
	}
	if err := sdb.Seed(sources); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	checker := NewChecker(sdb, checkerTestLogger(), time.Hour)
	checker.CheckAll(context.Background())

	rows, err := sdb.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}

	statusByName := make(map[string]int)
	for _, row := range rows {
		if row.LastStatus != nil {
			statusByName[row.GalaxyName] = *row.LastStatus
		}
	}

	if statusByName["ok-galaxy"] != 200 {
		t.Errorf("ok-galaxy: expected 200, got %d", statusByName["ok-galaxy"])
	}
	if statusByName["notfound-galaxy"] != 404 {
		t.Errorf("notfound-galaxy: expected 404, got %d", statusByName["notfound-galaxy"])
	}
	if statusByName["error-galaxy"] != 500 {
		t.Errorf("error-galaxy: expected 500, got %d", statusByName["error-galaxy"])
	}
}

func TestCheckAll_NetworkError(t *testing.T) {
	dir := t.TempDir()
	sdb, err := OpenSourceDB(filepath.Join(dir, "sources.db"))
	if err != nil {
		t.Fatalf("OpenSourceDB: %v", err)
	}
	defer sdb.Close()

	sources := []Source{
		{GalaxyName: "dead-galaxy", Description: "dead", URL: "http://127.0.0.1:1", License: "CC0"},
	}
	if err := sdb.Seed(sources); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	checker := NewChecker(sdb, checkerTestLogger(), time.Hour)
	checker.CheckAll(context.Background())

	rows, _ := sdb.ListSources()
	row := rows[0]
	if row.LastStatus == nil || *row.LastStatus != 0 {
		t.Errorf("expected status 0 for network error, got %v", row.LastStatus)
	}
	if row.LastError == nil || *row.LastError == "" {
		t.Error("expected non-empty last_error for network error")
	}
}

func TestCheckAll_EmptyDB(t *testing.T) {
	dir := t.TempDir()
	sdb, err := OpenSourceDB(filepath.Join(dir, "sources.db"))
	if err != nil {
		t.Fatalf("OpenSourceDB: %v", err)
	}
	defer sdb.Close()

	checker := NewChecker(sdb, checkerTestLogger(), time.Hour)

	// Should not panic on empty DB.
	checker.CheckAll(context.Background())
}

func TestCheckAll_Redirect(t *testing.T) {
	// 301 without following the redirect — recorded as-is, counted as OK (2xx/3xx).
	srv301 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://example.com/new")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv301.Close()

	dir := t.TempDir()
	sdb, err := OpenSourceDB(filepath.Join(dir, "sources.db"))
	if err != nil {
		t.Fatalf("OpenSourceDB: %v", err)
	}
	defer sdb.Close()

	sources := []Source{
		{GalaxyName: "redirect-galaxy", Description: "redirect", URL: srv301.URL, License: "CC0"},
	}
	if err := sdb.Seed(sources); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	checker := NewChecker(sdb, checkerTestLogger(), time.Hour)
	checker.CheckAll(context.Background())

	rows, _ := sdb.ListSources()
	row := rows[0]
	if row.LastStatus == nil || *row.LastStatus != 301 {
		t.Errorf("expected status 301, got %v", row.LastStatus)
	}
}
