package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/JdHeer/kbc-p3dh/internal/exporter"
	"github.com/JdHeer/kbc-p3dh/internal/infrastructure"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// exportPageSize is the store page size used when streaming an export.
// Exports are unbounded by default, so they page through the store
// instead of loading the whole result set.
const exportPageSize = 5000

// FactsReader is the read-side store surface the facts service consumes.
type FactsReader interface {
	QueryFacts(ctx context.Context, f store.Filter) ([]domain.MergedFact, error)
	CountFacts(ctx context.Context, f store.Filter) (int, error)
	GetFact(ctx context.Context, id int64) (domain.MergedFact, error)
	Totals(ctx context.Context) (store.Totals, error)
	ListEntities(ctx context.Context) ([]string, error)
	ListPeriods(ctx context.Context) ([]string, error)
	ListTemplates(ctx context.Context) ([]string, error)
	ListGroups(ctx context.Context) ([]string, error)
}

// FactPage is one page of a filtered fact query. Total counts every
// match, ignoring limit and offset.
type FactPage struct {
	Facts  []domain.MergedFact `json:"facts"`
	Total  int                 `json:"total"`
	Offset int                 `json:"offset"`
}

// FactsService answers read queries over the merged fact store.
type FactsService struct {
	reader  FactsReader
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewFactsService creates a facts service. metrics may be nil, in which
// case query metrics are not recorded.
func NewFactsService(reader FactsReader, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *FactsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactsService{
		reader:  reader,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "facts_service")),
	}
}

// Query returns one page of merged facts matching the filter, plus the
// unpaged match count.
func (s *FactsService) Query(ctx context.Context, f store.Filter) (*FactPage, error) {
	start := time.Now()

	facts, err := s.reader.QueryFacts(ctx, f)
	if err != nil {
		return nil, s.fail(ctx, "facts.query", start, err)
	}
	total, err := s.reader.CountFacts(ctx, f)
	if err != nil {
		return nil, s.fail(ctx, "facts.query", start, err)
	}

	infrastructure.RecordQueryMetrics(ctx, s.metrics, "facts.query", int64(len(facts)), time.Since(start), nil)
	s.logger.DebugContext(ctx, "fact query served",
		slog.Int("returned", len(facts)),
		slog.Int("total", total))
	return &FactPage{Facts: facts, Total: total, Offset: f.Offset}, nil
}

// Get returns one merged fact by id. Missing ids surface as
// store.ErrNotFound for the handler to map.
func (s *FactsService) Get(ctx context.Context, id int64) (domain.MergedFact, error) {
	start := time.Now()

	fact, err := s.reader.GetFact(ctx, id)
	if err != nil {
		return domain.MergedFact{}, s.fail(ctx, "facts.get", start, err)
	}

	infrastructure.RecordQueryMetrics(ctx, s.metrics, "facts.get", 1, time.Since(start), nil)
	return fact, nil
}

// Export streams every fact matching the filter to w as CSV and returns
// the number of rows written. A positive filter limit caps the export;
// otherwise all matches are written, paged through the store.
func (s *FactsService) Export(ctx context.Context, f store.Filter, w io.Writer) (int, error) {
	start := time.Now()

	fw, err := exporter.NewFactWriter(w)
	if err != nil {
		return 0, s.fail(ctx, "facts.export", start, err)
	}

	remaining := f.Limit
	offset := f.Offset
	written := 0
	for {
		page := f
		page.Offset = offset
		page.Limit = exportPageSize
		if remaining > 0 && remaining < exportPageSize {
			page.Limit = remaining
		}

		facts, err := s.reader.QueryFacts(ctx, page)
		if err != nil {
			return written, s.fail(ctx, "facts.export", start, err)
		}
		for i := range facts {
			if err := fw.Write(facts[i]); err != nil {
				return written, s.fail(ctx, "facts.export", start, err)
			}
			written++
		}
		if err := fw.Flush(); err != nil {
			return written, s.fail(ctx, "facts.export", start, err)
		}

		if len(facts) < page.Limit {
			break
		}
		offset += len(facts)
		if remaining > 0 {
			remaining -= len(facts)
			if remaining <= 0 {
				break
			}
		}
	}

	duration := time.Since(start)
	infrastructure.RecordQueryMetrics(ctx, s.metrics, "facts.export", int64(written), duration, nil)
	if s.metrics != nil {
		s.metrics.ExportsTotal.Add(ctx, 1)
	}
	infrastructure.AddSpanEvent(ctx, "facts.export.completed", map[string]interface{}{
		"rows": written,
	})
	s.logger.InfoContext(ctx, "export completed",
		slog.Int("rows", written),
		slog.Duration("duration", duration))
	return written, nil
}

// Summary aggregates store-wide totals.
func (s *FactsService) Summary(ctx context.Context) (store.Totals, error) {
	start := time.Now()

	totals, err := s.reader.Totals(ctx)
	if err != nil {
		return store.Totals{}, s.fail(ctx, "facts.summary", start, err)
	}

	infrastructure.RecordQueryMetrics(ctx, s.metrics, "facts.summary", 0, time.Since(start), nil)
	return totals, nil
}

// Entities lists the distinct reporting entities in the store.
func (s *FactsService) Entities(ctx context.Context) ([]string, error) {
	return s.list(ctx, "entities", s.reader.ListEntities)
}

// Periods lists the distinct reference periods in the store.
func (s *FactsService) Periods(ctx context.Context) ([]string, error) {
	return s.list(ctx, "periods", s.reader.ListPeriods)
}

// Templates lists the distinct template codes in the store.
func (s *FactsService) Templates(ctx context.Context) ([]string, error) {
	return s.list(ctx, "templates", s.reader.ListTemplates)
}

// Groups lists the distinct template groups in the store.
func (s *FactsService) Groups(ctx context.Context) ([]string, error) {
	return s.list(ctx, "groups", s.reader.ListGroups)
}

func (s *FactsService) list(ctx context.Context, endpoint string, fn func(context.Context) ([]string, error)) ([]string, error) {
	start := time.Now()

	values, err := fn(ctx)
	if err != nil {
		return nil, s.fail(ctx, endpoint, start, err)
	}

	// served stays zero: dimension values are not facts
	infrastructure.RecordQueryMetrics(ctx, s.metrics, endpoint, 0, time.Since(start), nil)
	return values, nil
}

// fail records the failure on the query metrics and the active span,
// logs it, and returns the error unchanged so sentinel checks still work.
func (s *FactsService) fail(ctx context.Context, endpoint string, start time.Time, err error) error {
	infrastructure.RecordQueryMetrics(ctx, s.metrics, endpoint, 0, time.Since(start), err)
	infrastructure.RecordError(ctx, err)
	s.logger.ErrorContext(ctx, "store read failed",
		slog.String("endpoint", endpoint),
		slog.String("error", err.Error()))
	return err
}
