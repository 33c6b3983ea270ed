package domain

// RawFact represents one reported value exactly as read from a fact CSV:
// an opaque datapoint identifier, the verbatim value string, and the stem
// of the file it came from. Raw facts are never validated at read time;
// numeric coercion happens during the merge.
type RawFact struct {
	DatapointID string `json:"datapoint_id" db:"datapoint_id"`
	FactValue   string `json:"fact_value" db:"fact_value"`
	SourceFile  string `json:"source_file" db:"source_file"`
}

// MergedFact represents one reported value joined with its schema
// definition and the batch context it was ingested under. Schema fields
// are empty when the datapoint has no definition (an unmatched fact);
// unmatched facts are still persisted and counted, never dropped.
type MergedFact struct {
	ID            int64    `json:"id,omitempty" db:"id"`
	Entity        string   `json:"entity" db:"entity"`
	LEI           string   `json:"lei" db:"lei"`
	RefPeriod     string   `json:"ref_period" db:"ref_period"`
	Module        string   `json:"module" db:"module"`
	Currency      string   `json:"currency" db:"currency"`
	Template      string   `json:"template" db:"template"`
	TemplateTitle string   `json:"template_title" db:"template_title"`
	RowCode       string   `json:"row_code" db:"row_code"`
	RowLabel      string   `json:"row_label" db:"row_label"`
	ColCode       string   `json:"col_code" db:"col_code"`
	ColLabel      string   `json:"col_label" db:"col_label"`
	ColParent     string   `json:"col_parent" db:"col_parent"`
	ColHeader     string   `json:"col_header" db:"col_header"`
	ColGroup      string   `json:"col_group" db:"col_group"`
	ColSub        string   `json:"col_sub" db:"col_sub"`
	SourceFile    string   `json:"source_file" db:"source_file"`
	DatapointID   string   `json:"datapoint_id" db:"datapoint_id"`
	ValueNumeric  *float64 `json:"value_numeric" db:"value_numeric"`
	FactValue     string   `json:"fact_value" db:"fact_value"`
	ValueScaled   *float64 `json:"value_scaled" db:"value_scaled"`
	Unit          Unit     `json:"unit" db:"unit"`
	TemplateGroup string   `json:"template_group" db:"template_group"`
}

// Matched reports whether the fact found a schema definition.
func (m MergedFact) Matched() bool {
	return m.Template != ""
}
