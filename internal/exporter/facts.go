// Package exporter renders merged facts as CSV for the download endpoint
// and ad-hoc extracts.
//
// Output starts with a UTF-8 BOM so Excel detects the encoding, followed
// by a header row in merged-fact column order. Numeric values are written
// with the minimal digits that survive a ParseFloat round trip.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// factHeader lists the export columns in merged-fact table order.
var factHeader = []string{
	"id", "entity", "lei", "ref_period", "module", "currency",
	"template", "template_title", "row_code", "row_label",
	"col_code", "col_label", "col_parent", "col_header", "col_group", "col_sub",
	"source_file", "datapoint_id", "value_numeric", "fact_value", "value_scaled",
	"unit", "template_group",
}

// FactWriter streams merged facts as CSV rows to an underlying writer.
type FactWriter struct {
	csv *csv.Writer
}

// NewFactWriter writes the BOM and the header row and returns a writer
// ready to stream fact rows.
func NewFactWriter(w io.Writer) (*FactWriter, error) {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return nil, fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(factHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &FactWriter{csv: cw}, nil
}

// Write appends one fact row.
func (fw *FactWriter) Write(f domain.MergedFact) error {
	return fw.csv.Write(factRow(f))
}

// Flush writes buffered rows through and reports any deferred write error.
func (fw *FactWriter) Flush() error {
	fw.csv.Flush()
	return fw.csv.Error()
}

// WriteFacts writes the complete fact set to w, header included.
func WriteFacts(w io.Writer, facts []domain.MergedFact) error {
	fw, err := NewFactWriter(w)
	if err != nil {
		return err
	}
	for i := range facts {
		if err := fw.Write(facts[i]); err != nil {
			return fmt.Errorf("write fact %d: %w", facts[i].ID, err)
		}
	}
	return fw.Flush()
}

// factRow converts a merged fact to a CSV row in factHeader order.
func factRow(f domain.MergedFact) []string {
	return []string{
		formatInt(f.ID),
		f.Entity,
		f.LEI,
		f.RefPeriod,
		f.Module,
		f.Currency,
		f.Template,
		f.TemplateTitle,
		f.RowCode,
		f.RowLabel,
		f.ColCode,
		f.ColLabel,
		f.ColParent,
		f.ColHeader,
		f.ColGroup,
		f.ColSub,
		f.SourceFile,
		f.DatapointID,
		formatNumeric(f.ValueNumeric),
		f.FactValue,
		formatNumeric(f.ValueScaled),
		string(f.Unit),
		f.TemplateGroup,
	}
}
