package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/galaxy-registry/pkg/api"
	"github.com/hazyhaar/galaxy-registry/pkg/chassis"
	"github.com/hazyhaar/galaxy-registry/pkg/fetcher"
	"github.com/hazyhaar/galaxy-registry/pkg/galaxy"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"
)

type config struct {
	Addr          string `yaml:"addr"`
	GalaxiesDir   string `yaml:"galaxies_dir"`
	CertFile      string `yaml:"cert_file"`
	KeyFile       string `yaml:"key_file"`
	Normalizer    string `yaml:"normalizer"`
	CheckInterval string `yaml:"check_interval"` // e.g. "6h", empty = disabled
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "fetch":
		cmdFetch(os.Args[2:])
	case "query":
		cmdQuery(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: galaxy-registry <command>\n\nCommands:\n  serve   Start the resolver server (HTTP + MCP over QUIC)\n  fetch   Download galaxy clusters from their sources\n  query   Resolve a label against local galaxies\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := loadConfig(*cfgPath, logger)

	// Load galaxies.
	res := galaxy.NewResolver(cfg.GalaxiesDir, galaxy.WithNormalizer(galaxy.GetNormalizer(cfg.Normalizer)))
	if err := res.Load(); err != nil {
		logger.Error("failed to load galaxies", "error", err)
		os.Exit(1)
	}
	logger.Info("galaxies loaded", "count", res.GalaxyCount(), "entries", res.TotalEntries())

	// HTTP router + MCP tools share the same endpoints.
	router := api.NewRouter(res)

	mcpSrv := server.NewMCPServer(
		"galaxy-registry",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	api.RegisterMCPTools(mcpSrv, res)

	srv, err := chassis.New(chassis.Config{
		Addr:      cfg.Addr,
		CertFile:  cfg.CertFile,
		KeyFile:   cfg.KeyFile,
		Handler:   router,
		MCPServer: mcpSrv,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("chassis init failed", "error", err)
		os.Exit(1)
	}

	// SIGHUP: hot reload galaxies.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, reloading galaxies")
			if err := res.Reload(); err != nil {
				logger.Error("reload failed", "error", err)
			} else {
				logger.Info("galaxies reloaded", "count", res.GalaxyCount(), "entries", res.TotalEntries())
			}
		}
	}()

	// Optional background source availability checks.
	if cfg.CheckInterval != "" {
		interval, err := time.ParseDuration(cfg.CheckInterval)
		if err != nil {
			logger.Error("invalid check_interval", "value", cfg.CheckInterval, "error", err)
			os.Exit(1)
		}
		sdb, err := fetcher.OpenSourceDB(sourcesDBPath(cfg.GalaxiesDir))
		if err != nil {
			logger.Error("open sources.db failed", "error", err)
			os.Exit(1)
		}
		defer sdb.Close()
		checker := fetcher.NewChecker(sdb, logger, interval)
		go checker.Start(ctx)
	}

	go func() {
		logger.Info("galaxy-registry listening", "addr", cfg.Addr)
		if err := srv.Start(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Stop(shutdownCtx)
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := config{
		Addr:        ":8443",
		GalaxiesDir: "galaxies",
		Normalizer:  "compact",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}
