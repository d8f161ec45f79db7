package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/galaxy-registry/pkg/galaxy"
	"github.com/hazyhaar/galaxy-registry/pkg/mcpquic"
	"github.com/mark3labs/mcp-go/mcp"
)

// cmdQuery resolves labels against local galaxy files, or against a
// running server over MCP/QUIC with --remote.
// Reads labels from args, or from stdin lines when none are given.
func cmdQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	galaxiesDir := fs.String("galaxies-dir", "galaxies", "directory containing galaxy files")
	galaxiesFilter := fs.String("galaxies", "", "comma-separated galaxy names (all when empty)")
	partial := fs.Bool("partial", false, "include substring matches")
	compound := fs.Bool("compound", false, "split labels on separators before resolving")
	normMode := fs.String("normalizer", "compact", "normalization mode (compact, compact_ascii, none)")
	remote := fs.String("remote", "", "server address (host:port); query over MCP/QUIC instead of local files")
	fs.Parse(args)

	labels := fs.Args()
	if len(labels) == 0 {
		labels = readLines(os.Stdin)
	}

	if *remote != "" {
		queryRemote(*remote, labels, *galaxiesFilter, *partial, *compound)
		return
	}

	res := galaxy.NewResolver(*galaxiesDir, galaxy.WithNormalizer(galaxy.GetNormalizer(*normMode)))
	if err := res.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur chargement galaxies: %v\n", err)
		os.Exit(1)
	}
	if res.GalaxyCount() == 0 {
		fmt.Fprintf(os.Stderr, "Aucune galaxie dans %s (lancer 'galaxy-registry fetch --all' d'abord)\n", *galaxiesDir)
		os.Exit(1)
	}

	opts := &galaxy.ResolveOptions{IncludePartial: *partial}
	if *galaxiesFilter != "" {
		for _, name := range strings.Split(*galaxiesFilter, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.Galaxies = append(opts.Galaxies, name)
			}
		}
	}

	for _, label := range labels {
		if *compound {
			for _, result := range res.ResolveCompound(label, opts) {
				printResult(result)
			}
			continue
		}
		printResult(res.Resolve(label, opts))
	}
}

func queryRemote(addr string, labels []string, galaxiesFilter string, partial, compound bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := mcpquic.NewClient(addr, nil)
	if err := client.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur connexion %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer client.Close()

	tool := "resolve_name"
	labelArg := "query"
	if compound {
		tool = "resolve_compound"
		labelArg = "label"
	}

	for _, label := range labels {
		args := map[string]any{labelArg: label}
		if galaxiesFilter != "" {
			args["galaxies"] = galaxiesFilter
		}
		if partial && !compound {
			args["partial"] = "1"
		}

		result, err := client.CallTool(ctx, tool, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: ERREUR: %v\n", label, err)
			continue
		}
		for _, content := range result.Content {
			if text, ok := content.(mcp.TextContent); ok {
				fmt.Printf("%s: %s\n", label, text.Text)
			}
		}
	}
}

func printResult(result *galaxy.ResolveResult) {
	if len(result.Matches) == 0 {
		fmt.Printf("%s: (aucune correspondance)\n", result.Query)
		return
	}
	tags := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		tags = append(tags, m.Tag)
	}
	fmt.Printf("%s: %s\n", result.Query, strings.Join(tags, " "))
}

func readLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
