package store

import (
	"context"
	"fmt"
)

// schemaDDL creates the three tables and their indexes. merged_facts
// mirrors the merge output column for column. definitions carry the
// module they were extracted for and raw_facts the full partition
// triple, which is what lets partition replacement cover all three
// tables in one transaction.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS definitions (
	datapoint_id   TEXT NOT NULL,
	template       TEXT NOT NULL,
	template_title TEXT NOT NULL DEFAULT '',
	row_code       TEXT NOT NULL DEFAULT '',
	row_label      TEXT NOT NULL DEFAULT '',
	col_code       TEXT NOT NULL DEFAULT '',
	col_label      TEXT NOT NULL DEFAULT '',
	col_parent     TEXT NOT NULL DEFAULT '',
	col_header     TEXT NOT NULL DEFAULT '',
	col_group      TEXT NOT NULL DEFAULT '',
	col_sub        TEXT NOT NULL DEFAULT '',
	unit           TEXT NOT NULL DEFAULT 'unknown',
	module         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (datapoint_id, template, module)
);

CREATE INDEX IF NOT EXISTS idx_definitions_datapoint
	ON definitions(datapoint_id);

CREATE TABLE IF NOT EXISTS raw_facts (
	datapoint_id TEXT NOT NULL,
	fact_value   TEXT NOT NULL DEFAULT '',
	source_file  TEXT NOT NULL DEFAULT '',
	lei          TEXT NOT NULL DEFAULT '',
	ref_period   TEXT NOT NULL DEFAULT '',
	module       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_raw_facts_partition
	ON raw_facts(lei, ref_period, module);

CREATE TABLE IF NOT EXISTS merged_facts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	entity         TEXT NOT NULL DEFAULT '',
	lei            TEXT NOT NULL DEFAULT '',
	ref_period     TEXT NOT NULL DEFAULT '',
	module         TEXT NOT NULL DEFAULT '',
	currency       TEXT NOT NULL DEFAULT '',
	template       TEXT NOT NULL DEFAULT '',
	template_title TEXT NOT NULL DEFAULT '',
	row_code       TEXT NOT NULL DEFAULT '',
	row_label      TEXT NOT NULL DEFAULT '',
	col_code       TEXT NOT NULL DEFAULT '',
	col_label      TEXT NOT NULL DEFAULT '',
	col_parent     TEXT NOT NULL DEFAULT '',
	col_header     TEXT NOT NULL DEFAULT '',
	col_group      TEXT NOT NULL DEFAULT '',
	col_sub        TEXT NOT NULL DEFAULT '',
	source_file    TEXT NOT NULL DEFAULT '',
	datapoint_id   TEXT NOT NULL,
	value_numeric  REAL,
	fact_value     TEXT NOT NULL DEFAULT '',
	value_scaled   REAL,
	unit           TEXT NOT NULL DEFAULT 'unknown',
	template_group TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_merged_facts_entity
	ON merged_facts(entity);
CREATE INDEX IF NOT EXISTS idx_merged_facts_ref_period
	ON merged_facts(ref_period);
CREATE INDEX IF NOT EXISTS idx_merged_facts_template
	ON merged_facts(template);
CREATE INDEX IF NOT EXISTS idx_merged_facts_datapoint
	ON merged_facts(datapoint_id);
CREATE INDEX IF NOT EXISTS idx_merged_facts_entity_period
	ON merged_facts(entity, ref_period);
CREATE INDEX IF NOT EXISTS idx_merged_facts_module
	ON merged_facts(module);
CREATE INDEX IF NOT EXISTS idx_merged_facts_template_group
	ON merged_facts(template_group);
CREATE INDEX IF NOT EXISTS idx_merged_facts_source_file
	ON merged_facts(source_file);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RebuildAll drops and recreates every table. Used by the ingester's
// rebuild mode, where the whole database is reconstructed from the
// download folders still on disk.
func (s *Store) RebuildAll(ctx context.Context) error {
	for _, table := range []string{"merged_facts", "raw_facts", "definitions"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	if err := s.migrate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "database rebuilt")
	return nil
}
