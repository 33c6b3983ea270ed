package http

import (
	"context"
	"io"

	"github.com/JdHeer/kbc-p3dh/internal/services"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// FactsServiceInterface defines the fact operations the handlers consume
type FactsServiceInterface interface {
	Query(ctx context.Context, f store.Filter) (*services.FactPage, error)
	Get(ctx context.Context, id int64) (domain.MergedFact, error)
	Export(ctx context.Context, f store.Filter, w io.Writer) (int, error)
	Summary(ctx context.Context) (store.Totals, error)
	Entities(ctx context.Context) ([]string, error)
	Periods(ctx context.Context) ([]string, error)
	Templates(ctx context.Context) ([]string, error)
	Groups(ctx context.Context) ([]string, error)
}
