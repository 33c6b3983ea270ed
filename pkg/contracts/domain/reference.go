package domain

import (
	"sort"
	"strings"
)

// ReferenceTables holds the static lookup data the pipeline depends on:
// unit markers, well-known LEIs, module keyword to mapping-workbook
// dispatch, and template friendly-group names. The tables are injected
// into the components that need them so tests can substitute smaller
// ones; Defaults returns the production set.
type ReferenceTables struct {
	// UnitMarkers maps a marker substring found in a datapoint cell to
	// its unit. Markers are checked in order; first hit wins.
	UnitMarkers []UnitMarker
	// LEINames maps a normalized LEI to a short entity display name.
	LEINames map[string]string
	// ModuleWorkbooks maps a module keyword to the substring identifying
	// that module's mapping workbook file name.
	ModuleWorkbooks map[string]string
	// TemplateGroups maps an upper-cased template short code to its
	// friendly group label.
	TemplateGroups map[string]string
}

// UnitMarker pairs a cell-text marker with the unit it denotes.
type UnitMarker struct {
	Marker string
	Unit   Unit
}

// Defaults returns the production reference tables.
func Defaults() ReferenceTables {
	return ReferenceTables{
		UnitMarkers: []UnitMarker{
			{Marker: "€£$", Unit: UnitMonetary},
			{Marker: "%", Unit: UnitPercentage},
			{Marker: "#", Unit: UnitCount},
			{Marker: "yyyy-mm-dd", Unit: UnitDate},
		},
		LEINames: map[string]string{
			"BFXS5XCH7N0Y05NIXW11": "ABN AMRO",
			"6V5X0Z0Y1OCLKZXOI394": "ABN AMRO (solo)",
			"213800MBWEIJDM5CU638": "KBC Group",
			"LSGM84136ACA92XCN876": "ING Group",
			"JLS56RAMYQZECFUF2G44": "Rabobank",
			"DG3RU1DBUFHT4ZF9WN62": "BNP Paribas",
			"R0MUWSFPU8MPRO8K5P83": "HSBC",
			"529900HNOAA1KXQJUQ27": "Deutsche Bank",
			"O2RNE8IBXP4R0TD8PU41": "Goldman Sachs",
			"5493006MHB84DD0ZWV18": "Barclays",
			"B4TYDEB6GKMZO031MB27": "UBS",
		},
		ModuleWorkbooks: map[string]string{
			"findis": "FINDISPILLAR3",
			"codi":   "CODISPILLAR3",
			"irrbb":  "IRRBBDISPILLAR3",
			"esg":    "ESGDISPILLAR3",
			"gsii":   "GSIIDISPILLAR3",
			"mrel":   "MRELTLACDISPILLAR3",
			"rem":    "REMDISPILLAR3",
			"p3dh":   "P3DHPILLAR3",
		},
		TemplateGroups: buildTemplateGroups(map[string][]string{
			"Key Metrics (EU KM1)":              {"K_61.00"},
			"RWA Overview (EU OV1)":             {"K_60.00.a", "K_60.00.b"},
			"Capital Composition (EU CC1/CC2)":  {"K_63.01.a", "K_63.01.b", "K_63.01.c", "K_63.01.d", "K_63.01.e"},
			"Leverage & MREL (EU LR/TLAC)":      {"K_63.02.a", "K_63.02.b", "K_63.02.c"},
			"Credit Risk RWEA Flows (EU CR8)":   {"K_28.00"},
			"Credit Risk (EU CR1)":              {"K_07.00"},
			"Market Risk RWEA Flows (EU MR2-B)": {"K_12.00"},
			"IRRBB (EU IRRBB1)":                 {"K_68.00"},
			"Liquidity – LCR (EU LIQ1)":         {"K_73.00.a", "K_73.00.b"},
			"Liquidity – NSFR (EU LIQ2)":        {"K_73.00.c", "K_73.00.d", "K_73.00.e"},
			"Qualitative Disclosures":           {"K_00.02"},
		}),
	}
}

func buildTemplateGroups(groups map[string][]string) map[string]string {
	byTemplate := make(map[string]string, len(groups)*2)
	for group, templates := range groups {
		for _, t := range templates {
			byTemplate[strings.ToUpper(t)] = group
		}
	}
	return byTemplate
}

// UnitFor resolves the unit marker embedded in a datapoint cell's text.
// Cells without a recognized marker report UnitUnknown.
func (t ReferenceTables) UnitFor(cellText string) Unit {
	for _, m := range t.UnitMarkers {
		if strings.Contains(cellText, m.Marker) {
			return m.Unit
		}
	}
	return UnitUnknown
}

// EntityName resolves a normalized LEI to its display name. Unknown LEIs
// pass through unchanged; identity resolution never fails a batch.
func (t ReferenceTables) EntityName(lei string) string {
	if name, ok := t.LEINames[lei]; ok {
		return name
	}
	return lei
}

// WorkbookFamily returns the mapping-workbook file substring for a module
// keyword. The keyword match is a case-insensitive substring match so
// descriptor variants like "findis2" or "p3dh-amd" still dispatch.
// Keywords are tried in sorted order to keep dispatch deterministic.
func (t ReferenceTables) WorkbookFamily(module string) (string, bool) {
	key := strings.ToLower(strings.Trim(module, "/"))
	keywords := make([]string, 0, len(t.ModuleWorkbooks))
	for keyword := range t.ModuleWorkbooks {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	for _, keyword := range keywords {
		if strings.Contains(key, keyword) {
			return t.ModuleWorkbooks[keyword], true
		}
	}
	return "", false
}

// GroupFor maps a template source-file stem to its friendly group label,
// falling back to the stem itself so the group is never empty.
func (t ReferenceTables) GroupFor(stem string) string {
	if group, ok := t.TemplateGroups[strings.ToUpper(stem)]; ok {
		return group
	}
	return stem
}
