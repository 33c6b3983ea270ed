// Package performance holds load-shaped tests for the merge hot path,
// the partition writer and the query API. Correctness edge cases live
// with their packages; these exist to catch gross throughput regressions
// and to prove the read path behaves under concurrent access.
package performance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JdHeer/kbc-p3dh/internal/merge"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func benchContext() domain.BatchContext {
	return domain.BatchContext{
		Entity:    "KBC Group",
		LEI:       "213800MBWEIJDM5CU638",
		RefPeriod: "2024-Q4",
		Module:    "findis",
		Currency:  "EUR",
	}
}

func makeDefinitions(n int) []domain.DatapointDefinition {
	defs := make([]domain.DatapointDefinition, n)
	for i := range defs {
		defs[i] = domain.DatapointDefinition{
			DatapointID:   fmt.Sprintf("dp%06d", i),
			Template:      "K_61.00",
			TemplateTitle: "Key Metrics (KM1)",
			RowCode:       fmt.Sprintf("%04d", i%500),
			RowLabel:      fmt.Sprintf("Row %d", i),
			ColCode:       "0010",
			ColLabel:      "Amount",
			ColHeader:     "Own funds",
			Unit:          domain.UnitMonetary,
		}
	}
	return defs
}

// makeRawFacts builds n facts keyed to makeDefinitions; every tenth fact
// uses an identifier no definition carries, so merges exercise the
// unmatched path too.
func makeRawFacts(n int) []domain.RawFact {
	raws := make([]domain.RawFact, n)
	for i := range raws {
		id := fmt.Sprintf("dp%06d", i)
		if i%10 == 0 {
			id = fmt.Sprintf("dx%06d", i)
		}
		raws[i] = domain.RawFact{
			DatapointID: id,
			FactValue:   strconv.Itoa(i * 1000),
			SourceFile:  "k_61.00",
		}
	}
	return raws
}

// seedStore opens a fresh store holding n merged facts.
func seedStore(tb testing.TB, n int) *store.Store {
	tb.Helper()
	st, err := store.Open(filepath.Join(tb.TempDir(), "perf.db"), discardLogger())
	require.NoError(tb, err)
	tb.Cleanup(func() { st.Close() })

	bc := benchContext()
	result := merge.NewEngine(domain.Defaults()).Merge(bc, makeDefinitions(n), makeRawFacts(n))
	_, err = st.ReplacePartition(context.Background(), bc, nil, nil, result.Facts)
	require.NoError(tb, err)
	return st
}

func BenchmarkMergeEngine(b *testing.B) {
	engine := merge.NewEngine(domain.Defaults())
	bc := benchContext()

	for _, size := range []int{1000, 10000} {
		defs := makeDefinitions(size)
		raws := makeRawFacts(size)
		b.Run(fmt.Sprintf("facts_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				res := engine.Merge(bc, defs, raws)
				if len(res.Facts) != size {
					b.Fatalf("merged %d facts, want %d", len(res.Facts), size)
				}
			}
		})
	}
}

func BenchmarkReplacePartition(b *testing.B) {
	st, err := store.Open(filepath.Join(b.TempDir(), "bench.db"), discardLogger())
	require.NoError(b, err)
	defer st.Close()

	bc := benchContext()
	defs := makeDefinitions(1000)
	raws := makeRawFacts(1000)
	merged := merge.NewEngine(domain.Defaults()).Merge(bc, defs, raws).Facts
	ctx := context.Background()

	b.ResetTimer()
	// Replacing the same partition every iteration is the re-delivery
	// path: delete then bulk insert inside one transaction.
	for i := 0; i < b.N; i++ {
		if _, err := st.ReplacePartition(ctx, bc, defs, raws, merged); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkQueryFacts(b *testing.B) {
	st := seedStore(b, 5000)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter store.Filter
	}{
		{"by_partition", store.Filter{LEI: "213800MBWEIJDM5CU638", RefPeriod: "2024-Q4", Module: "findis"}},
		{"by_row_label_substring", store.Filter{RowLabel: "Row 42"}},
		{"paged", store.Filter{Limit: 100, Offset: 2500}},
	}
	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := st.QueryFacts(ctx, tc.filter); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
