package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

const (
	defaultQueryLimit = 500
	maxQueryLimit     = 10000
)

// mergedColumns is the stable select order for merged facts.
var mergedColumns = []string{
	"id", "entity", "lei", "ref_period", "module", "currency",
	"template", "template_title", "row_code", "row_label",
	"col_code", "col_label", "col_parent", "col_header", "col_group", "col_sub",
	"source_file", "datapoint_id", "value_numeric", "fact_value", "value_scaled",
	"unit", "template_group",
}

// Filter narrows a merged-fact query. Zero-valued fields are ignored;
// the label filters match substrings, everything else matches exactly.
type Filter struct {
	Entity        string
	LEI           string
	RefPeriod     string
	Module        string
	Template      string
	TemplateGroup string
	RowLabel      string
	ColLabel      string
	DatapointID   string
	Limit         int
	Offset        int
}

func (f Filter) apply(sb *sqlbuilder.SelectBuilder) {
	exact := []struct{ column, value string }{
		{"entity", f.Entity},
		{"lei", f.LEI},
		{"ref_period", f.RefPeriod},
		{"module", f.Module},
		{"template", f.Template},
		{"template_group", f.TemplateGroup},
		{"datapoint_id", f.DatapointID},
	}
	var where []string
	for _, eq := range exact {
		if eq.value != "" {
			where = append(where, sb.Equal(eq.column, eq.value))
		}
	}
	if f.RowLabel != "" {
		where = append(where, sb.Like("row_label", "%"+f.RowLabel+"%"))
	}
	if f.ColLabel != "" {
		where = append(where, sb.Like("col_label", "%"+f.ColLabel+"%"))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
}

// QueryFacts returns merged facts matching the filter in insertion order,
// capped at the filter limit (default 500, hard max 10000).
func (s *Store) QueryFacts(ctx context.Context, f Filter) ([]domain.MergedFact, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(mergedColumns...)
	sb.From("merged_facts")
	f.apply(sb)
	sb.OrderBy("id")

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = defaultQueryLimit
	case limit > maxQueryLimit:
		limit = maxQueryLimit
	}
	sb.Limit(limit)
	if f.Offset > 0 {
		sb.Offset(f.Offset)
	}

	query, args := sb.Build()
	facts := []domain.MergedFact{}
	if err := s.db.SelectContext(ctx, &facts, query, args...); err != nil {
		return nil, fmt.Errorf("query merged facts: %w", err)
	}
	return facts, nil
}

// CountFacts returns how many merged facts match the filter, ignoring
// limit and offset.
func (s *Store) CountFacts(ctx context.Context, f Filter) (int, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("merged_facts")
	f.apply(sb)

	query, args := sb.Build()
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count merged facts: %w", err)
	}
	return count, nil
}

// GetFact returns one merged fact by its insert id, or ErrNotFound.
func (s *Store) GetFact(ctx context.Context, id int64) (domain.MergedFact, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(mergedColumns...)
	sb.From("merged_facts")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var fact domain.MergedFact
	if err := s.db.GetContext(ctx, &fact, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MergedFact{}, fmt.Errorf("fact %d: %w", id, ErrNotFound)
		}
		return domain.MergedFact{}, fmt.Errorf("get fact %d: %w", id, err)
	}
	return fact, nil
}

// Totals summarizes the whole store for the summary endpoint and the
// post-ingestion report. Unmatched facts have an empty template, which
// is excluded from the template count.
type Totals struct {
	Facts     int `json:"facts" db:"facts"`
	Entities  int `json:"entities" db:"entities"`
	Periods   int `json:"periods" db:"periods"`
	Templates int `json:"templates" db:"templates"`
}

// Totals aggregates store-wide counts over merged facts.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	const query = `
	SELECT
		COUNT(*)                               AS facts,
		COUNT(DISTINCT entity)                 AS entities,
		COUNT(DISTINCT ref_period)             AS periods,
		COUNT(DISTINCT NULLIF(template, ''))   AS templates
	FROM merged_facts`

	var t Totals
	if err := s.db.GetContext(ctx, &t, query); err != nil {
		return Totals{}, fmt.Errorf("aggregate totals: %w", err)
	}
	return t, nil
}

// ListEntities returns the distinct entity names in the store, sorted.
func (s *Store) ListEntities(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, "entity")
}

// ListPeriods returns the distinct reference periods in the store, sorted.
func (s *Store) ListPeriods(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, "ref_period")
}

// ListTemplates returns the distinct template codes in the store, sorted.
// Unmatched facts carry no template and are excluded.
func (s *Store) ListTemplates(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, "template")
}

// ListGroups returns the distinct template groups in the store, sorted.
func (s *Store) ListGroups(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, "template_group")
}

func (s *Store) listDistinct(ctx context.Context, column string) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Distinct().Select(column)
	sb.From("merged_facts")
	sb.Where(sb.NotEqual(column, ""))
	sb.OrderBy(column)

	query, args := sb.Build()
	values := []string{}
	if err := s.db.SelectContext(ctx, &values, query, args...); err != nil {
		return nil, fmt.Errorf("list distinct %s: %w", column, err)
	}
	return values, nil
}
