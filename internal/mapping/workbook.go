// Package mapping parses EBA annotated table layout workbooks into flat
// datapoint definitions: one record per reportable (row, column) cell of
// every template sheet. The workbook structure is semi-regular; header
// blocks are located by structural scan rather than fixed offsets.
package mapping

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// tocSheet maps template short codes to display titles; it is not a
// template itself.
const tocSheet = "TOC"

// Extractor converts annotated layout workbooks into datapoint
// definitions using injected reference tables for unit resolution.
type Extractor struct {
	tables domain.ReferenceTables
	logger *slog.Logger
}

// NewExtractor creates an extractor. A nil logger falls back to the
// process default.
func NewExtractor(tables domain.ReferenceTables, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{tables: tables, logger: logger}
}

// ExtractWorkbook parses every template sheet of the workbook at path and
// returns the deduplicated definition set. A sheet whose header block
// cannot be located is skipped with a warning; it never aborts the other
// sheets. The returned set is unique by (datapoint, template), first
// occurrence winning, because parametrised sheets repeat identical
// mappings.
func (e *Extractor) ExtractWorkbook(path string) ([]domain.DatapointDefinition, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping workbook %s: %w", path, err)
	}
	defer f.Close()

	toc := e.parseTOC(f)

	var all []domain.DatapointDefinition
	for _, name := range f.GetSheetList() {
		if name == tocSheet {
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			e.logger.Warn("failed to read sheet, skipping",
				slog.String("sheet", name),
				slog.String("error", err.Error()))
			continue
		}
		all = append(all, e.extractSheet(sheetRows(rows), name, toc)...)
	}

	defs := dedupe(all)
	e.logger.Info("mapping workbook parsed",
		slog.String("workbook", path),
		slog.Int("datapoints", len(defs)))
	return defs, nil
}

// parseTOC reads the table-of-contents sheet. Rows are shaped
// [ignored, code, title, ...]; rows missing either field are skipped.
// A workbook without a TOC still parses; titles fall back per sheet.
func (e *Extractor) parseTOC(f *excelize.File) map[string]string {
	rows, err := f.GetRows(tocSheet)
	if err != nil {
		e.logger.Warn("mapping workbook has no TOC sheet, titles fall back to sheet names",
			slog.String("error", err.Error()))
		return map[string]string{}
	}
	toc := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		code := strings.TrimSpace(row[1])
		title := strings.TrimSpace(row[2])
		if code != "" && title != "" {
			toc[code] = title
		}
	}
	return toc
}

func (e *Extractor) extractSheet(rows sheetRows, sheet string, toc map[string]string) []domain.DatapointDefinition {
	layout, ok := LocateHeaderBlock(rows)
	if !ok {
		e.logger.Warn("header block not found, skipping sheet", slog.String("sheet", sheet))
		return nil
	}

	title := toc[sheet]
	if title == "" {
		title = rows.cell(0, 0)
	}
	if title == "" {
		title = sheet
	}

	cols := resolveColumns(rows, layout)

	var defs []domain.DatapointDefinition
	for ri := layout.DataStart; ri < len(rows); ri++ {
		if rows.rowLen(ri) < firstDataCol+1 {
			continue
		}
		rowLabel := rows.cell(ri, rowLabelCol)
		if rowLabel == sentinelRowLabel {
			break
		}
		// Rows without a row code are section headers within the data
		// block; they do not terminate it.
		rowCode := rows.cell(ri, rowCodeCol)
		if rowCode == "" {
			continue
		}

		for ci := firstDataCol; ci < rows.rowLen(ri); ci++ {
			dpID, unit, ok := parseDatapointCell(rows.cell(ri, ci), e.tables)
			if !ok {
				continue
			}
			idx := ci - firstDataCol
			if idx >= len(cols) || cols[idx] == nil {
				continue
			}
			col := cols[idx]
			defs = append(defs, domain.DatapointDefinition{
				DatapointID:   dpID,
				Template:      sheet,
				TemplateTitle: title,
				RowCode:       rowCode,
				RowLabel:      rowLabel,
				ColCode:       col.code,
				ColLabel:      col.label,
				ColParent:     col.parent,
				ColHeader:     col.header,
				ColGroup:      col.group,
				ColSub:        col.sub,
				Unit:          unit,
			})
		}
	}
	return defs
}

func dedupe(defs []domain.DatapointDefinition) []domain.DatapointDefinition {
	seen := make(map[domain.DefinitionKey]struct{}, len(defs))
	unique := make([]domain.DatapointDefinition, 0, len(defs))
	for _, d := range defs {
		if _, dup := seen[d.Key()]; dup {
			continue
		}
		seen[d.Key()] = struct{}{}
		unique = append(unique, d)
	}
	return unique
}
