package domain

// Unit classifies what a datapoint cell measures, derived from the
// marker text embedded in the annotated table layout.
type Unit string

const (
	UnitMonetary   Unit = "monetary"
	UnitPercentage Unit = "percentage"
	UnitCount      Unit = "count"
	UnitDate       Unit = "date"
	UnitUnknown    Unit = "unknown"
)

// DatapointDefinition represents one reportable cell position in an
// annotated table layout: the template sheet it belongs to, its row and
// column context, and the unit marker attached to the cell.
type DatapointDefinition struct {
	DatapointID   string `json:"datapoint_id" db:"datapoint_id"`
	Template      string `json:"template" db:"template"`
	TemplateTitle string `json:"template_title" db:"template_title"`
	RowCode       string `json:"row_code" db:"row_code"`
	RowLabel      string `json:"row_label" db:"row_label"`
	ColCode       string `json:"col_code" db:"col_code"`
	ColLabel      string `json:"col_label" db:"col_label"`
	ColParent     string `json:"col_parent" db:"col_parent"`
	ColHeader     string `json:"col_header" db:"col_header"`
	ColGroup      string `json:"col_group" db:"col_group"`
	ColSub        string `json:"col_sub" db:"col_sub"`
	Unit          Unit   `json:"unit" db:"unit"`
}

// Key returns the identity pair used for deduplication. The same numeric
// datapoint ID may legitimately recur across templates (parametrised
// sheets) but must resolve to exactly one mapping within a template.
func (d DatapointDefinition) Key() DefinitionKey {
	return DefinitionKey{DatapointID: d.DatapointID, Template: d.Template}
}

// DefinitionKey is the (datapoint, template) identity of a definition.
type DefinitionKey struct {
	DatapointID string
	Template    string
}
