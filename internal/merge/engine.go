// Package merge left-joins raw facts to datapoint definitions and
// attaches the batch context. Every raw fact yields exactly one merged
// fact: unmatched datapoints keep empty schema fields and are counted,
// never dropped.
package merge

import (
	"strconv"
	"strings"

	"github.com/JdHeer/kbc-p3dh/pkg/contracts/domain"
)

// Merged values get a millions-denominated convenience column.
const scaledDivisor = 1e6

// Engine joins facts to definitions. The reference tables supply the
// template friendly-group labels.
type Engine struct {
	tables domain.ReferenceTables
}

// NewEngine creates a merge engine.
func NewEngine(tables domain.ReferenceTables) *Engine {
	return &Engine{tables: tables}
}

// Result carries the merged rows plus the ingestion-quality counts
// operators use to judge a batch.
type Result struct {
	Facts     []domain.MergedFact
	Matched   int
	Unmatched int
}

// Merge joins every raw fact against the definition set under the given
// batch context. Numeric coercion never fails a row: values that do not
// parse keep a nil numeric and the verbatim string.
func (e *Engine) Merge(bc domain.BatchContext, defs []domain.DatapointDefinition, raws []domain.RawFact) Result {
	idx := buildIndex(defs)

	res := Result{Facts: make([]domain.MergedFact, 0, len(raws))}
	for _, rf := range raws {
		mf := domain.MergedFact{
			Entity:        bc.Entity,
			LEI:           bc.LEI,
			RefPeriod:     bc.RefPeriod,
			Module:        bc.Module,
			Currency:      bc.Currency,
			SourceFile:    rf.SourceFile,
			DatapointID:   rf.DatapointID,
			FactValue:     rf.FactValue,
			Unit:          domain.UnitUnknown,
			TemplateGroup: e.tables.GroupFor(rf.SourceFile),
		}

		if v, err := strconv.ParseFloat(strings.TrimSpace(rf.FactValue), 64); err == nil {
			scaled := v / scaledDivisor
			mf.ValueNumeric = &v
			mf.ValueScaled = &scaled
		}

		if def, ok := idx.lookup(rf.DatapointID, rf.SourceFile); ok {
			mf.Template = def.Template
			mf.TemplateTitle = def.TemplateTitle
			mf.RowCode = def.RowCode
			mf.RowLabel = def.RowLabel
			mf.ColCode = def.ColCode
			mf.ColLabel = def.ColLabel
			mf.ColParent = def.ColParent
			mf.ColHeader = def.ColHeader
			mf.ColGroup = def.ColGroup
			mf.ColSub = def.ColSub
			mf.Unit = def.Unit
			res.Matched++
		} else {
			res.Unmatched++
		}

		res.Facts = append(res.Facts, mf)
	}
	return res
}

// definitionIndex resolves a datapoint to its definition, preferring the
// definition whose template matches the fact's source file (parametrised
// sheets can define the same ID in several templates) and falling back
// to the first definition seen.
type definitionIndex struct {
	first      map[string]domain.DatapointDefinition
	byTemplate map[domain.DefinitionKey]domain.DatapointDefinition
}

func buildIndex(defs []domain.DatapointDefinition) definitionIndex {
	idx := definitionIndex{
		first:      make(map[string]domain.DatapointDefinition, len(defs)),
		byTemplate: make(map[domain.DefinitionKey]domain.DatapointDefinition, len(defs)),
	}
	for _, d := range defs {
		if _, ok := idx.first[d.DatapointID]; !ok {
			idx.first[d.DatapointID] = d
		}
		key := domain.DefinitionKey{DatapointID: d.DatapointID, Template: strings.ToUpper(d.Template)}
		if _, ok := idx.byTemplate[key]; !ok {
			idx.byTemplate[key] = d
		}
	}
	return idx
}

func (ix definitionIndex) lookup(dpID, sourceFile string) (domain.DatapointDefinition, bool) {
	key := domain.DefinitionKey{DatapointID: dpID, Template: strings.ToUpper(sourceFile)}
	if d, ok := ix.byTemplate[key]; ok {
		return d, true
	}
	d, ok := ix.first[dpID]
	return d, ok
}
