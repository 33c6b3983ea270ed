// Package ingest orchestrates the per-folder pipeline: resolve the batch
// context, locate and extract the mapping workbook, read the fact files,
// merge, and replace the store partition. A failing folder aborts only
// itself; the run carries on with the rest.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JdHeer/kbc-p3dh/internal/batch"
	"github.com/JdHeer/kbc-p3dh/internal/facts"
	"github.com/JdHeer/kbc-p3dh/internal/mapping"
	"github.com/JdHeer/kbc-p3dh/internal/merge"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// Storage is the slice of the persistence layer the orchestrator uses.
type Storage interface {
	ReplacePartition(ctx context.Context, batch domain.BatchContext, defs []domain.DatapointDefinition, raws []domain.RawFact, merged []domain.MergedFact) (int, error)
	Totals(ctx context.Context) (store.Totals, error)
}

// Service runs the ingestion pipeline. Folders are processed strictly
// sequentially; the partition transaction is the only atomicity boundary.
type Service struct {
	resolver  *batch.Resolver
	extractor *mapping.Extractor
	engine    *merge.Engine
	store     Storage
	logger    *slog.Logger
}

// NewService creates an ingestion service from its pipeline stages.
func NewService(resolver *batch.Resolver, extractor *mapping.Extractor, engine *merge.Engine, storage Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:  resolver,
		extractor: extractor,
		engine:    engine,
		store:     storage,
		logger:    logger,
	}
}

// IngestFolder runs the full pipeline for one download folder and
// replaces its partition in the store. Errors leave the store unchanged
// for that partition.
func (s *Service) IngestFolder(ctx context.Context, folder string) (domain.BatchSummary, error) {
	bc, err := s.resolver.Resolve(folder)
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("resolve batch %s: %w", folder, err)
	}

	workbook, err := s.resolver.MappingWorkbook(bc.Module)
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("locate mapping workbook for module %q: %w", bc.Module, err)
	}

	defs, err := s.extractor.ExtractWorkbook(workbook)
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("extract schema from %s: %w", workbook, err)
	}

	raws, err := facts.ReadDir(folder)
	if err != nil {
		return domain.BatchSummary{}, err
	}

	result := s.engine.Merge(bc, defs, raws)

	inserted, err := s.store.ReplacePartition(ctx, bc, defs, raws, result.Facts)
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("persist partition: %w", err)
	}

	summary := domain.BatchSummary{
		Folder:      folder,
		Batch:       bc,
		Workbook:    filepath.Base(workbook),
		Definitions: len(defs),
		FactsRead:   len(raws),
		Matched:     result.Matched,
		Unmatched:   result.Unmatched,
		Inserted:    inserted,
	}

	s.logger.InfoContext(ctx, "folder ingested",
		slog.String("folder", folder),
		slog.String("entity", bc.Entity),
		slog.String("ref_period", bc.RefPeriod),
		slog.String("module", bc.Module),
		slog.String("workbook", summary.Workbook),
		slog.Int("definitions", summary.Definitions),
		slog.Int("facts_read", summary.FactsRead),
		slog.Int("matched", summary.Matched),
		slog.Int("unmatched", summary.Unmatched),
		slog.Int("inserted", summary.Inserted),
	)
	return summary, nil
}

// FolderFailure records a folder that could not be ingested and why.
type FolderFailure struct {
	Folder string
	Err    error
}

// RunSummary aggregates one ingester invocation across folders.
type RunSummary struct {
	RunID   string
	Folders []domain.BatchSummary
	Failed  []FolderFailure
	Totals  store.Totals
	Elapsed time.Duration
}

// Run ingests every folder in order. A folder that fails is recorded and
// skipped so one malformed batch cannot block the others. Cancelling the
// context stops the run between folders, never inside a partition write.
func (s *Service) Run(ctx context.Context, folders []string) RunSummary {
	started := time.Now()
	runID := uuid.NewString()
	log := s.logger.With(slog.String("run_id", runID))
	log.InfoContext(ctx, "ingestion run started", slog.Int("folders", len(folders)))

	summary := RunSummary{RunID: runID}
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			summary.Failed = append(summary.Failed, FolderFailure{Folder: folder, Err: err})
			continue
		}
		fs, err := s.IngestFolder(ctx, folder)
		if err != nil {
			log.ErrorContext(ctx, "folder failed",
				slog.String("folder", folder),
				slog.String("error", err.Error()),
			)
			summary.Failed = append(summary.Failed, FolderFailure{Folder: folder, Err: err})
			continue
		}
		summary.Folders = append(summary.Folders, fs)
	}

	if totals, err := s.store.Totals(ctx); err != nil {
		log.WarnContext(ctx, "store totals unavailable", slog.String("error", err.Error()))
	} else {
		summary.Totals = totals
	}
	summary.Elapsed = time.Since(started)

	log.InfoContext(ctx, "ingestion run finished",
		slog.Int("succeeded", len(summary.Folders)),
		slog.Int("failed", len(summary.Failed)),
		slog.Int("db_facts", summary.Totals.Facts),
		slog.Duration("elapsed", summary.Elapsed),
	)
	return summary
}
