// Package integration exercises the pipeline across component borders:
// real download folders on disk, a real mapping workbook, a real SQLite
// store. Unit-level edge cases live with their packages; these tests
// verify that the pieces still agree with each other.
package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JdHeer/kbc-p3dh/internal/batch"
	"github.com/JdHeer/kbc-p3dh/internal/files"
	"github.com/JdHeer/kbc-p3dh/internal/ingest"
	"github.com/JdHeer/kbc-p3dh/internal/mapping"
	"github.com/JdHeer/kbc-p3dh/internal/merge"
	"github.com/JdHeer/kbc-p3dh/internal/store"
	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

const kbcLEI = "213800MBWEIJDM5CU638"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setCells(t *testing.T, f *excelize.File, sheet string, rows [][]interface{}) {
	t.Helper()
	for ri, row := range rows {
		for ci, val := range row {
			if val == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}
}

// writeMappingWorkbook drops a findis-family annotated layout workbook
// into mappingDir: one K_61.00 template with four datapoints across two
// reportable rows.
func writeMappingWorkbook(t *testing.T, mappingDir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), "TOC")
	setCells(t, f, "TOC", [][]interface{}{
		{"Table of contents"},
		{nil, "K_61.00", "Key Metrics (KM1)"},
	})

	_, err := f.NewSheet("K_61.00")
	require.NoError(t, err)
	setCells(t, f, "K_61.00", [][]interface{}{
		{"EU KM1 - Key metrics"},
		{}, {}, {},
		{nil, nil, nil, "Own funds"},
		{nil, nil, nil, "Gross", nil, "Net"},
		{},
		{nil, "Rows", nil, "0010", "0020", "0030"},
		{nil, "Total capital", "0010", "1111\n€£$", "2222 %", "3333"},
		{nil, "Tier 1 capital", "0020", "4444\n€£$"},
		{nil, "Main Property", "9999", "5555"},
	})

	path := filepath.Join(mappingDir, "FINDISPILLAR3_202412.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

// writeDownloadFolder builds one provider download folder under root:
// parameters.csv, the findis report descriptor and one fact file.
func writeDownloadFolder(t *testing.T, root, name, lei, period string, facts [][2]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	params := fmt.Sprintf("name,value\nentityID,lei:%s.CON\nrefPeriod,%s\nbaseCurrency,EUR\n", lei, period)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parameters.csv"), []byte(params), 0o644))

	report := `{"documentInfo":{"extends":["http://www.eba.europa.eu/xbrl/crr/fws/p3/its-005-2021/2024-07-31/mod/findis.json"]}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.json"), []byte(report), 0o644))

	var sb strings.Builder
	sb.WriteString("datapoint,factValue\n")
	for _, row := range facts {
		fmt.Fprintf(&sb, "%s,%s\n", row[0], row[1])
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k_61.00.csv"), []byte(sb.String()), 0o644))
	return dir
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "p3dh.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newIngestService(st *store.Store, mappingDir string) *ingest.Service {
	tables := domain.Defaults()
	logger := discardLogger()
	return ingest.NewService(
		batch.NewResolver(tables, mappingDir, logger),
		mapping.NewExtractor(tables, logger),
		merge.NewEngine(tables),
		st,
		logger,
	)
}

// setupPipeline builds the full fixture set: mapping dir with workbook,
// one download folder, a store and the service wired over them.
func setupPipeline(t *testing.T) (*ingest.Service, *store.Store, string) {
	t.Helper()
	tempDir := t.TempDir()
	mappingDir := filepath.Join(tempDir, "mapping")
	require.NoError(t, os.MkdirAll(mappingDir, 0o755))
	writeMappingWorkbook(t, mappingDir)

	folder := writeDownloadFolder(t, filepath.Join(tempDir, "downloads"), "2024-Q4", kbcLEI, "2024-Q4", [][2]string{
		{"dp1111", "1500000"},
		{"dp2222", "0.155"},
		{"dp9999", "42"},
	})

	st := openStore(t)
	return newIngestService(st, mappingDir), st, folder
}

func TestIngestFolderEndToEnd(t *testing.T) {
	svc, st, folder := setupPipeline(t)
	ctx := context.Background()

	summary, err := svc.IngestFolder(ctx, folder)
	require.NoError(t, err)

	assert.Equal(t, "KBC Group", summary.Batch.Entity)
	assert.Equal(t, kbcLEI, summary.Batch.LEI)
	assert.Equal(t, "2024-Q4", summary.Batch.RefPeriod)
	assert.Equal(t, "findis", summary.Batch.Module)
	assert.Equal(t, "EUR", summary.Batch.Currency)
	assert.Equal(t, "FINDISPILLAR3_202412.xlsx", summary.Workbook)
	assert.Equal(t, 4, summary.Definitions)
	assert.Equal(t, 3, summary.FactsRead)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 3, summary.Inserted)

	queried, err := st.QueryFacts(ctx, store.Filter{Entity: "KBC Group"})
	require.NoError(t, err)
	require.Len(t, queried, 3)

	byID := make(map[string]domain.MergedFact, len(queried))
	for _, f := range queried {
		byID[f.DatapointID] = f
	}

	matched := byID["dp1111"]
	assert.True(t, matched.Matched())
	assert.Equal(t, "K_61.00", matched.Template)
	assert.Equal(t, "Key Metrics (KM1)", matched.TemplateTitle)
	assert.Equal(t, "0010", matched.RowCode)
	assert.Equal(t, "Total capital", matched.RowLabel)
	assert.Equal(t, "Own funds", matched.ColHeader)
	assert.Equal(t, domain.UnitMonetary, matched.Unit)
	assert.Equal(t, "Key Metrics (EU KM1)", matched.TemplateGroup)
	require.NotNil(t, matched.ValueNumeric)
	assert.Equal(t, 1500000.0, *matched.ValueNumeric)
	require.NotNil(t, matched.ValueScaled)
	assert.InDelta(t, 1.5, *matched.ValueScaled, 1e-9)

	// The unmatched datapoint is persisted schemaless, not dropped.
	unmatched := byID["dp9999"]
	assert.False(t, unmatched.Matched())
	assert.Equal(t, "42", unmatched.FactValue)
	assert.Equal(t, domain.UnitUnknown, unmatched.Unit)
	assert.Equal(t, "k_61.00", unmatched.SourceFile)
}

func TestReingestReplacesPartition(t *testing.T) {
	svc, st, folder := setupPipeline(t)
	ctx := context.Background()

	_, err := svc.IngestFolder(ctx, folder)
	require.NoError(t, err)

	// The provider re-delivers the folder with a corrected fact file.
	facts := "datapoint,factValue\ndp1111,1600000\ndp4444,900000\n"
	require.NoError(t, os.WriteFile(filepath.Join(folder, "k_61.00.csv"), []byte(facts), 0o644))

	summary, err := svc.IngestFolder(ctx, folder)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)

	totals, err := st.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Facts, "old partition rows must be replaced, not appended to")

	queried, err := st.QueryFacts(ctx, store.Filter{DatapointID: "dp1111"})
	require.NoError(t, err)
	require.Len(t, queried, 1)
	require.NotNil(t, queried[0].ValueNumeric)
	assert.Equal(t, 1600000.0, *queried[0].ValueNumeric)
}

func TestRunIsolatesBrokenFolder(t *testing.T) {
	svc, st, folder := setupPipeline(t)
	ctx := context.Background()

	// A folder without a report descriptor has no module and cannot be
	// dispatched to a workbook.
	broken := writeDownloadFolder(t, filepath.Dir(folder), "2024-Q3", kbcLEI, "2024-Q3", [][2]string{
		{"dp1111", "7"},
	})
	require.NoError(t, os.Remove(filepath.Join(broken, "report.json")))

	summary := svc.Run(ctx, []string{broken, folder})

	require.Len(t, summary.Folders, 1)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, broken, summary.Failed[0].Folder)
	assert.ErrorIs(t, summary.Failed[0].Err, batch.ErrUnknownModule)
	assert.NotEmpty(t, summary.RunID)

	totals, err := st.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, totals.Facts, "the healthy folder must still land")
}

func TestDiscoveryFeedsRun(t *testing.T) {
	svc, st, folder := setupPipeline(t)
	ctx := context.Background()

	downloads := filepath.Dir(folder)
	writeDownloadFolder(t, downloads, "2024-Q3", kbcLEI, "2024-Q3", [][2]string{
		{"dp4444", "800000"},
	})

	// A stray directory without fact files must not be picked up.
	require.NoError(t, os.MkdirAll(filepath.Join(downloads, "incoming"), 0o755))

	dirs, err := files.DiscoverBatchDirs(downloads)
	require.NoError(t, err)
	require.Len(t, dirs, 2)

	summary := svc.Run(ctx, dirs)
	require.Empty(t, summary.Failed)
	require.Len(t, summary.Folders, 2)

	totals, err := st.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, totals.Facts)
	assert.Equal(t, 1, totals.Entities)
	assert.Equal(t, 2, totals.Periods)

	periods, err := st.ListPeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-Q3", "2024-Q4"}, periods)
}
