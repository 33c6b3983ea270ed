package mapping

import (
	"regexp"
	"strings"

	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// Annotated table layouts place the column-code row at different offsets
// depending on the template family, so the header block is located by
// structure: the first row within the scan window whose fourth cell is a
// strict 4-digit code.
const (
	scanStart       = 3
	scanEnd         = 12
	fallbackCodeRow = 7
	firstDataCol    = 3

	rowLabelCol = 1
	rowCodeCol  = 2

	// sentinelRowLabel marks the end of the data block; rows after it are
	// sheet metadata, not reportable rows.
	sentinelRowLabel = "Main Property"

	// dimensionMarker prefixes group/header labels of non-data columns
	// that carry dimension properties instead of datapoints.
	dimensionMarker = "(q"
)

var colCodeRe = regexp.MustCompile(`^\d{4}$`)

// BlockLayout describes where a sheet's header and data blocks sit.
type BlockLayout struct {
	HeaderRow int
	GroupRow  int
	SubRow    int
	CodeRow   int
	DataStart int
}

// LocateHeaderBlock finds the column-code row of an annotated layout
// sheet and derives the header rows above it. It reports false for
// sheets too short to hold a header block; callers skip those sheets.
func LocateHeaderBlock(rows sheetRows) (BlockLayout, bool) {
	if len(rows) < 5 {
		return BlockLayout{}, false
	}

	codeRow := -1
	end := len(rows)
	if end > scanEnd {
		end = scanEnd
	}
	for ri := scanStart; ri < end; ri++ {
		if colCodeRe.MatchString(rows.cell(ri, firstDataCol)) {
			codeRow = ri
			break
		}
	}
	if codeRow < 0 {
		// Standard layouts put the codes at row index 7.
		codeRow = fallbackCodeRow
		if len(rows) <= fallbackCodeRow {
			codeRow = len(rows) - 1
		}
	}

	return BlockLayout{
		HeaderRow: codeRow - 3,
		GroupRow:  codeRow - 2,
		SubRow:    codeRow - 1,
		CodeRow:   codeRow,
		DataStart: codeRow + 1,
	}, true
}

// sheetRows wraps the ragged [][]string a workbook sheet yields with
// bounds-checked access, so short rows read as empty cells instead of
// panicking.
type sheetRows [][]string

func (r sheetRows) cell(row, col int) string {
	if row < 0 || row >= len(r) {
		return ""
	}
	cells := r[row]
	if col < 0 || col >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col])
}

func (r sheetRows) rowLen(row int) int {
	if row < 0 || row >= len(r) {
		return 0
	}
	return len(r[row])
}

// column carries the resolved label context of one data column.
type column struct {
	code   string
	label  string
	parent string
	header string
	group  string
	sub    string
}

// resolveColumns folds the three header rows and the code row into a
// column map, carrying the last seen header and group labels rightward
// to model merged spreadsheet cells. Dimension-property columns yield a
// nil entry; their position is preserved so data cells line up.
func resolveColumns(rows sheetRows, layout BlockLayout) []*column {
	maxLen := rows.rowLen(layout.HeaderRow)
	for _, ri := range []int{layout.GroupRow, layout.SubRow, layout.CodeRow} {
		if n := rows.rowLen(ri); n > maxLen {
			maxLen = n
		}
	}

	var cols []*column
	lastHeader, lastGroup := "", ""
	for ci := firstDataCol; ci < maxLen; ci++ {
		h := rows.cell(layout.HeaderRow, ci)
		g := rows.cell(layout.GroupRow, ci)
		s := rows.cell(layout.SubRow, ci)
		c := rows.cell(layout.CodeRow, ci)

		if strings.HasPrefix(g, dimensionMarker) || strings.HasPrefix(h, dimensionMarker) {
			cols = append(cols, nil)
			continue
		}

		if h != "" {
			lastHeader = h
		}
		if g != "" {
			lastGroup = g
		}

		label := s
		if label == "" {
			label = g
		}
		if label == "" {
			label = h
		}

		parent := ""
		switch {
		case s != "":
			parent = lastGroup
		case g != "":
			parent = lastHeader
		}

		cols = append(cols, &column{
			code:   c,
			label:  label,
			parent: parent,
			header: lastHeader,
			group:  lastGroup,
			sub:    s,
		})
	}
	return cols
}

// parseDatapointCell extracts the datapoint ID and unit from a data cell
// such as "3530270\n€£$". Cells without leading digits carry no
// datapoint and report false.
func parseDatapointCell(text string, tables domain.ReferenceTables) (string, domain.Unit, bool) {
	text = strings.TrimSpace(text)
	digits := leadingDigits(text)
	if digits == "" {
		return "", domain.UnitUnknown, false
	}
	return "dp" + digits, tables.UnitFor(text), true
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
