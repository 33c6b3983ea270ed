package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/JdHeer/kbc-p3dh/internal/batch"
	"github.com/JdHeer/kbc-p3dh/internal/config"
	"github.com/JdHeer/kbc-p3dh/internal/files"
	"github.com/JdHeer/kbc-p3dh/internal/infrastructure"
	"github.com/JdHeer/kbc-p3dh/internal/ingest"
	"github.com/JdHeer/kbc-p3dh/internal/mapping"
	"github.com/JdHeer/kbc-p3dh/internal/merge"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

func main() {
	dbPath := flag.String("db", "", "SQLite database file (defaults to data/p3dh.db relative to executable)")
	mappingDir := flag.String("mapping", "", "directory holding the annotated mapping workbooks (defaults to data/mapping relative to executable)")
	rebuild := flag.Bool("rebuild", false, "drop and recreate all tables before ingesting")
	scan := flag.Bool("scan", false, "treat arguments as roots and ingest every download folder found under them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	paths, err := cfg.ResolvedPaths()
	if err != nil {
		logger.Error("Failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Flags override the configured locations.
	if *dbPath == "" {
		*dbPath = paths.DBFile
	}
	if *mappingDir == "" {
		*mappingDir = paths.MappingDir
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		logger.Error("Failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Starting P3DH ingestion",
		slog.String("db", *dbPath),
		slog.String("mapping_dir", *mappingDir),
		slog.Bool("rebuild", *rebuild),
		slog.Bool("scan", *scan))

	folders, err := resolveFolders(*scan, flag.Args(), paths.DownloadsDir)
	if err != nil {
		logger.Error("Failed to resolve download folders", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Progress lines go to stdout for a human watching the run; the
	// structured log carries the same facts for everything else.
	fmt.Printf("Found %d download folders\n", len(folders))

	if len(folders) == 0 {
		logger.Warn("No download folders to ingest",
			slog.Bool("scan", *scan),
			slog.Any("args", flag.Args()))
		fmt.Println("Nothing to ingest")
		return
	}

	st, err := store.Open(*dbPath, logger)
	if err != nil {
		logger.Error("Failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// An interrupt stops the run between folders; a partition write is
	// never abandoned halfway.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warn("Interrupt received, finishing current folder", slog.String("signal", sig.String()))
		cancel()
	}()

	if *rebuild {
		logger.Info("Rebuilding database", slog.String("db", *dbPath))
		fmt.Println("Rebuilding database: all tables dropped and recreated")
		if err := st.RebuildAll(ctx); err != nil {
			logger.Error("Rebuild failed", slog.String("error", err.Error()))
			st.Close()
			os.Exit(1)
		}
	}

	tables := domain.Defaults()
	service := ingest.NewService(
		batch.NewResolver(tables, *mappingDir, logger),
		mapping.NewExtractor(tables, logger),
		merge.NewEngine(tables),
		st,
		logger,
	)

	summary := service.Run(ctx, folders)
	printRunSummary(os.Stdout, summary)

	if err := st.Close(); err != nil {
		logger.Warn("Database close failed", slog.String("error", err.Error()))
	}

	// Folder failures skip only that folder, but a run where nothing
	// succeeded has produced no data and must fail loudly.
	if len(summary.Folders) == 0 {
		logger.Error("Ingestion run produced no data", slog.Int("failed", len(summary.Failed)))
		os.Exit(1)
	}
}

// resolveFolders turns the positional arguments into the list of download
// folders to ingest. In scan mode each argument is a root to search under;
// with no arguments at all the configured downloads directory is scanned.
func resolveFolders(scanRoots bool, args []string, downloadsDir string) ([]string, error) {
	if len(args) == 0 {
		scanRoots = true
		args = []string{downloadsDir}
	}
	if !scanRoots {
		return args, nil
	}

	var folders []string
	for _, root := range args {
		found, err := files.DiscoverBatchDirs(root)
		if err != nil {
			return nil, err
		}
		folders = append(folders, found...)
	}
	return folders, nil
}

// printRunSummary writes the human-readable outcome of an ingestion run.
func printRunSummary(w io.Writer, summary ingest.RunSummary) {
	for _, fs := range summary.Folders {
		fmt.Fprintf(w, "Ingested %s (%s %s %s): %d definitions, %d facts read, %d matched, %d unmatched, %d inserted\n",
			fs.Folder, fs.Batch.Entity, fs.Batch.RefPeriod, fs.Batch.Module,
			fs.Definitions, fs.FactsRead, fs.Matched, fs.Unmatched, fs.Inserted)
	}
	for _, failure := range summary.Failed {
		fmt.Fprintf(w, "Failed %s: %v\n", failure.Folder, failure.Err)
	}
	fmt.Fprintf(w, "Run %s complete: %d folders ingested, %d failed in %s\n",
		summary.RunID, len(summary.Folders), len(summary.Failed),
		summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Database totals: %d facts, %d entities, %d periods, %d templates\n",
		summary.Totals.Facts, summary.Totals.Entities, summary.Totals.Periods, summary.Totals.Templates)
}
