// CLAUDE:SUMMARY CLI subcommand that downloads galaxy cluster files from their upstream sources.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/galaxy-registry/pkg/fetcher"
)

func sourcesDBPath(galaxiesDir string) string {
	return filepath.Join(galaxiesDir, "sources.db")
}

func cmdFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	galaxyName := fs.String("galaxy", "", "galaxy to fetch (e.g. threat-actor)")
	all := fs.Bool("all", false, "fetch all known galaxies")
	force := fs.Bool("force", false, "ignore cached ETag and re-download")
	outputDir := fs.String("output-dir", "galaxies", "output directory for galaxy files")
	fs.Parse(args)

	sdb, err := fetcher.OpenSourceDB(sourcesDBPath(*outputDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur ouverture sources.db: %v\n", err)
		os.Exit(1)
	}
	defer sdb.Close()

	if err := sdb.Seed(fetcher.DefaultSources()); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur seed sources: %v\n", err)
		os.Exit(1)
	}

	if !*all && *galaxyName == "" {
		fmt.Println("Sources disponibles :")
		fmt.Println()
		sources, _ := sdb.ListSources()
		for _, src := range sources {
			status := ""
			if src.LastStatus != nil {
				status = fmt.Sprintf("  [%d]", *src.LastStatus)
			}
			fmt.Printf("  %-22s  %s%s\n", src.GalaxyName, src.Description, status)
		}
		fmt.Println()
		fmt.Println("Usage :")
		fmt.Println("  galaxy-registry fetch --galaxy <name> [--output-dir <dir>]")
		fmt.Println("  galaxy-registry fetch --all [--output-dir <dir>]")
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	f := fetcher.NewFetcher(sdb, *outputDir, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if *all {
		sources, err := sdb.ListSources()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
			os.Exit(1)
		}
		failed := 0
		for _, src := range sources {
			fmt.Printf("[%s] Telechargement en cours...\n", src.GalaxyName)
			err := f.Fetch(ctx, src.GalaxyName, *force)
			switch {
			case errors.Is(err, fetcher.ErrNotModified):
				fmt.Printf("[%s] Inchange\n", src.GalaxyName)
			case err != nil:
				fmt.Fprintf(os.Stderr, "[%s] ERREUR: %v\n", src.GalaxyName, err)
				failed++
			default:
				fmt.Printf("[%s] OK\n", src.GalaxyName)
			}
		}
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	fmt.Printf("[%s] Telechargement en cours...\n", *galaxyName)
	err = f.Fetch(ctx, *galaxyName, *force)
	switch {
	case errors.Is(err, fetcher.ErrNotModified):
		fmt.Printf("[%s] Inchange\n", *galaxyName)
	case err != nil:
		fmt.Fprintf(os.Stderr, "[%s] ERREUR: %v\n", *galaxyName, err)
		os.Exit(1)
	default:
		fmt.Printf("[%s] OK -> %s/%s.json\n", *galaxyName, *outputDir, *galaxyName)
	}
}
