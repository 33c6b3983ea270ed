package domain

// BatchContext represents the run-level metadata attached uniformly to
// every fact ingested from one download folder: who reported, for which
// period, under which disclosure module, in which base currency.
type BatchContext struct {
	Entity    string `json:"entity" db:"entity"`
	LEI       string `json:"lei" db:"lei"`
	RefPeriod string `json:"ref_period" db:"ref_period"`
	Module    string `json:"module" db:"module"`
	Currency  string `json:"currency" db:"currency"`
}

// Partition returns the idempotent-replacement key for this batch. Facts
// stored under the same triple are deleted before a re-ingestion inserts.
func (b BatchContext) Partition() Partition {
	return Partition{LEI: b.LEI, RefPeriod: b.RefPeriod, Module: b.Module}
}

// Partition is the unit of replacement in the persisted store.
type Partition struct {
	LEI       string `json:"lei"`
	RefPeriod string `json:"ref_period"`
	Module    string `json:"module"`
}

// BatchSummary represents the outcome counts of one ingested folder,
// reported so operators can judge data quality without reading logs.
type BatchSummary struct {
	Folder      string       `json:"folder"`
	Batch       BatchContext `json:"batch"`
	Workbook    string       `json:"workbook"`
	Definitions int          `json:"definitions"`
	FactsRead   int          `json:"facts_read"`
	Matched     int          `json:"matched"`
	Unmatched   int          `json:"unmatched"`
	Inserted    int          `json:"inserted"`
}
