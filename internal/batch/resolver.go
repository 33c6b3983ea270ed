// Package batch resolves the run-level metadata of one P3DH download
// folder: reporting entity, reference period, disclosure module and base
// currency. The resolved context is attached uniformly to every fact
// ingested from that folder.
package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

var (
	// ErrUnknownModule reports a module keyword with no entry in the
	// dispatch table. Fatal for that batch only.
	ErrUnknownModule = errors.New("module has no mapping workbook family")
	// ErrMappingNotFound reports a dispatched module whose workbook file
	// is absent from the mapping directory.
	ErrMappingNotFound = errors.New("mapping workbook not found")
)

const (
	parametersFile = "parameters.csv"
	reportFile     = "report.json"

	paramEntityID     = "entityID"
	paramRefPeriod    = "refPeriod"
	paramBaseCurrency = "baseCurrency"

	defaultCurrency = "EUR"
	unknownValue    = "UNKNOWN"
)

var (
	leiPrefixRe = regexp.MustCompile(`(?i)^(rs:|lei:)`)
	// Module keyword as it appears in descriptor URLs like
	// ".../mod/findis.json".
	moduleRe = regexp.MustCompile(`/mod/(\w+)\.json`)
)

// Resolver derives batch contexts from folder metadata using injected
// reference tables, and locates the mapping workbook for a module.
type Resolver struct {
	tables     domain.ReferenceTables
	mappingDir string
	logger     *slog.Logger
}

// NewResolver creates a resolver reading mapping workbooks from
// mappingDir.
func NewResolver(tables domain.ReferenceTables, mappingDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tables: tables, mappingDir: mappingDir, logger: logger}
}

// Resolve reads parameters.csv and report.json in folder. Missing
// metadata files resolve to fallback values rather than failing: the
// batch may still be ingestable, and module dispatch decides later
// whether it is.
func (r *Resolver) Resolve(folder string) (domain.BatchContext, error) {
	params, err := r.readParameters(folder)
	if err != nil {
		return domain.BatchContext{}, err
	}
	module, err := r.readModule(folder)
	if err != nil {
		return domain.BatchContext{}, err
	}

	rawID := params[paramEntityID]
	if rawID == "" {
		rawID = unknownValue
	}
	lei := NormalizeLEI(rawID)

	bc := domain.BatchContext{
		Entity:    r.tables.EntityName(lei),
		LEI:       lei,
		RefPeriod: paramOr(params, paramRefPeriod, unknownValue),
		Module:    module,
		Currency:  paramOr(params, paramBaseCurrency, defaultCurrency),
	}

	r.logger.Debug("batch context resolved",
		slog.String("folder", folder),
		slog.String("entity", bc.Entity),
		slog.String("lei", bc.LEI),
		slog.String("ref_period", bc.RefPeriod),
		slog.String("module", bc.Module))
	return bc, nil
}

// MappingWorkbook locates the workbook file for the batch's module by
// dispatching the keyword to a file-name family, then globbing the
// mapping directory for it.
func (r *Resolver) MappingWorkbook(module string) (string, error) {
	family, ok := r.tables.WorkbookFamily(module)
	if !ok {
		return "", fmt.Errorf("module %q: %w", module, ErrUnknownModule)
	}
	paths, err := filepath.Glob(filepath.Join(r.mappingDir, "*.xlsx"))
	if err != nil {
		return "", fmt.Errorf("failed to list mapping workbooks in %s: %w", r.mappingDir, err)
	}
	for _, path := range paths {
		if strings.Contains(filepath.Base(path), family) {
			return path, nil
		}
	}
	return "", fmt.Errorf("module %q wants a %s workbook in %s: %w",
		module, family, r.mappingDir, ErrMappingNotFound)
}

// NormalizeLEI strips protocol-like prefixes (rs:, lei:) and anything
// after the first dot (consolidation-scope qualifiers like .CON), then
// trims whitespace. "lei:549300ABC123.CON" normalizes to "549300ABC123".
func NormalizeLEI(raw string) string {
	clean := leiPrefixRe.ReplaceAllString(raw, "")
	if i := strings.Index(clean, "."); i >= 0 {
		clean = clean[:i]
	}
	return strings.TrimSpace(clean)
}

// readParameters reads the name,value pairs of parameters.csv. A missing
// file yields an empty set.
func (r *Resolver) readParameters(folder string) (map[string]string, error) {
	path := filepath.Join(folder, parametersFile)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	nameIdx, valueIdx := -1, -1
	for i, h := range header {
		switch strings.TrimPrefix(strings.TrimSpace(h), "\ufeff") {
		case "name":
			nameIdx = i
		case "value":
			valueIdx = i
		}
	}
	if nameIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("%s is missing the name/value columns", path)
	}

	params := map[string]string{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		params[record[nameIdx]] = record[valueIdx]
	}
	return params, nil
}

// readModule extracts the module keyword from report.json's
// documentInfo.extends URLs. A missing descriptor yields an empty module;
// dispatch will reject the batch if the module stays unresolved.
func (r *Resolver) readModule(folder string) (string, error) {
	path := filepath.Join(folder, reportFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc struct {
		DocumentInfo struct {
			Extends []string `json:"extends"`
		} `json:"documentInfo"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, url := range doc.DocumentInfo.Extends {
		if m := moduleRe.FindStringSubmatch(url); m != nil {
			return m[1], nil
		}
	}
	return "", nil
}

func paramOr(params map[string]string, key, fallback string) string {
	if v := params[key]; v != "" {
		return v
	}
	return fallback
}
