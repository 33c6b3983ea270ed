package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// insertChunkSize keeps each bulk INSERT under SQLite's bound-parameter
// limit; merged rows bind 22 parameters each.
const insertChunkSize = 500

const insertDefinitionSQL = `
INSERT INTO definitions (
	datapoint_id, template, template_title, row_code, row_label,
	col_code, col_label, col_parent, col_header, col_group, col_sub,
	unit, module
) VALUES (
	:datapoint_id, :template, :template_title, :row_code, :row_label,
	:col_code, :col_label, :col_parent, :col_header, :col_group, :col_sub,
	:unit, :module
)`

const insertRawFactSQL = `
INSERT INTO raw_facts (datapoint_id, fact_value, source_file, lei, ref_period, module)
VALUES (:datapoint_id, :fact_value, :source_file, :lei, :ref_period, :module)`

const insertMergedFactSQL = `
INSERT INTO merged_facts (
	entity, lei, ref_period, module, currency,
	template, template_title, row_code, row_label,
	col_code, col_label, col_parent, col_header, col_group, col_sub,
	source_file, datapoint_id, value_numeric, fact_value, value_scaled,
	unit, template_group
) VALUES (
	:entity, :lei, :ref_period, :module, :currency,
	:template, :template_title, :row_code, :row_label,
	:col_code, :col_label, :col_parent, :col_header, :col_group, :col_sub,
	:source_file, :datapoint_id, :value_numeric, :fact_value, :value_scaled,
	:unit, :template_group
)`

// definitionRow and rawFactRow widen the domain types with the partition
// columns they are stored under.
type definitionRow struct {
	domain.DatapointDefinition
	Module string `db:"module"`
}

type rawFactRow struct {
	domain.RawFact
	LEI       string `db:"lei"`
	RefPeriod string `db:"ref_period"`
	Module    string `db:"module"`
}

// ReplacePartition atomically replaces everything stored for the batch's
// partition: merged and raw facts scoped by (lei, ref_period, module),
// definitions scoped by module. It returns the number of merged facts
// inserted. On error the partition is left exactly as it was.
func (s *Store) ReplacePartition(ctx context.Context, batch domain.BatchContext, defs []domain.DatapointDefinition, raws []domain.RawFact, merged []domain.MergedFact) (int, error) {
	p := batch.Partition()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin partition transaction: %w", err)
	}
	defer tx.Rollback()

	deletes := []struct {
		query string
		args  []any
	}{
		{"DELETE FROM merged_facts WHERE lei = ? AND ref_period = ? AND module = ?", []any{p.LEI, p.RefPeriod, p.Module}},
		{"DELETE FROM raw_facts WHERE lei = ? AND ref_period = ? AND module = ?", []any{p.LEI, p.RefPeriod, p.Module}},
		{"DELETE FROM definitions WHERE module = ?", []any{p.Module}},
	}
	for _, d := range deletes {
		if _, err := tx.ExecContext(ctx, d.query, d.args...); err != nil {
			return 0, fmt.Errorf("clear partition %s/%s/%s: %w", p.LEI, p.RefPeriod, p.Module, err)
		}
	}

	defRows := make([]any, len(defs))
	for i, d := range defs {
		defRows[i] = definitionRow{DatapointDefinition: d, Module: p.Module}
	}
	rawRows := make([]any, len(raws))
	for i, r := range raws {
		rawRows[i] = rawFactRow{RawFact: r, LEI: p.LEI, RefPeriod: p.RefPeriod, Module: p.Module}
	}
	mergedRows := make([]any, len(merged))
	for i, m := range merged {
		mergedRows[i] = m
	}

	if err := insertChunked(ctx, tx, insertDefinitionSQL, defRows); err != nil {
		return 0, fmt.Errorf("insert definitions: %w", err)
	}
	if err := insertChunked(ctx, tx, insertRawFactSQL, rawRows); err != nil {
		return 0, fmt.Errorf("insert raw facts: %w", err)
	}
	if err := insertChunked(ctx, tx, insertMergedFactSQL, mergedRows); err != nil {
		return 0, fmt.Errorf("insert merged facts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit partition %s/%s/%s: %w", p.LEI, p.RefPeriod, p.Module, err)
	}

	s.logger.InfoContext(ctx, "partition replaced",
		slog.String("lei", p.LEI),
		slog.String("ref_period", p.RefPeriod),
		slog.String("module", p.Module),
		slog.Int("definitions", len(defs)),
		slog.Int("raw_facts", len(raws)),
		slog.Int("merged_facts", len(merged)),
	)
	return len(merged), nil
}

func insertChunked(ctx context.Context, tx *sqlx.Tx, query string, rows []any) error {
	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}
