// Package api contains API contract definitions for the disclosure
// ingestion service. Version v1 represents the current stable API version.
package api

// FactsQuery carries the query-string filters accepted by the facts
// endpoints. All fields are optional; zero values mean no filter. The
// label filters match substrings, everything else matches exactly.
type FactsQuery struct {
	Entity    string `json:"entity" query:"entity" validate:"omitempty,max=256"`
	LEI       string `json:"lei" query:"lei" validate:"omitempty,max=64"`
	Period    string `json:"period" query:"period" validate:"omitempty,max=32"`
	Module    string `json:"module" query:"module" validate:"omitempty,max=64"`
	Template  string `json:"template" query:"template" validate:"omitempty,max=64"`
	Group     string `json:"group" query:"group" validate:"omitempty,max=64"`
	RowLabel  string `json:"row_label" query:"row_label" validate:"omitempty,max=256"`
	ColLabel  string `json:"col_label" query:"col_label" validate:"omitempty,max=256"`
	Datapoint string `json:"datapoint" query:"datapoint" validate:"omitempty,max=32"`
	Limit     int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=10000"`
	Offset    int    `json:"offset" query:"offset" validate:"min=0"`
}
