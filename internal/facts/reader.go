// Package facts reads the numbered CSV fact files delivered in a P3DH
// download folder. Values pass through verbatim; numeric coercion is the
// merge engine's job.
package facts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// ErrNoFactFiles reports a folder with no fact files at all. A folder
// whose files parse but hold zero rows is not this error; there was
// still something to ingest.
var ErrNoFactFiles = errors.New("no fact files found")

const (
	factFilePattern = "k_*.csv"

	datapointColumn = "datapoint"
	valueColumn     = "factValue"
)

// ReadDir reads every fact file in dir, in file-name order, tagging each
// row with its file stem.
func ReadDir(dir string) ([]domain.RawFact, error) {
	paths, err := filepath.Glob(filepath.Join(dir, factFilePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list fact files in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("folder %s: %w", dir, ErrNoFactFiles)
	}

	var all []domain.RawFact
	for _, path := range paths {
		rows, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

// ReadFile reads one fact file. The header row must carry the datapoint
// and factValue columns; their order does not matter.
func ReadFile(path string) ([]domain.RawFact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fact file %s: %w", path, err)
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("fact file %s is empty", path)
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	dpIdx, valIdx := -1, -1
	for i, name := range header {
		switch strings.TrimPrefix(strings.TrimSpace(name), "\ufeff") {
		case datapointColumn:
			dpIdx = i
		case valueColumn:
			valIdx = i
		}
	}
	if dpIdx < 0 || valIdx < 0 {
		return nil, fmt.Errorf("fact file %s is missing required columns %q and %q",
			path, datapointColumn, valueColumn)
	}

	var facts []domain.RawFact
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		facts = append(facts, domain.RawFact{
			DatapointID: record[dpIdx],
			FactValue:   record[valIdx],
			SourceFile:  stem,
		})
	}
	return facts, nil
}
