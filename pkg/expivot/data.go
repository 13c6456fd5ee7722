package expivot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/expivot-go/pkg/expivot/models"
	"github.com/ukaji3/expivot-go/pkg/expivot/parser"
)

// sourceRef is a cache source resolved to a sheet area. The first row of
// Range is the header row; records start on the row below.
type sourceRef struct {
	Sheet string
	Range models.CellRange
}

// Data returns the cached records of the named table as a grid. The cache
// records are read on the first call for the cache and reused afterwards.
// rng restricts the grid to part of the source range, e.g. "B1:C20" or
// "Data!B1:C20"; an empty rng returns the whole source range.
func (r *Registry) Data(name, rng string) (*models.Grid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	table, ok := r.tables[name]
	if !ok {
		return nil, notFound("pivot table", name)
	}
	entry := r.caches[table.CacheID]

	src, err := r.resolveSource(name, entry)
	if err != nil {
		return nil, err
	}
	if err := r.materialize(name, entry, src); err != nil {
		return nil, err
	}
	return project(table, entry, src, rng)
}

// resolveSource maps the cache source to a sheet area. The result is kept
// on the entry so the workbook is consulted once per cache.
func (r *Registry) resolveSource(table string, entry *cacheEntry) (*sourceRef, error) {
	if entry.source != nil {
		return entry.source, nil
	}

	cache := entry.cache
	var (
		src *sourceRef
		err error
	)
	switch cache.SourceType {
	case models.SourceWorksheet:
		sheet, ref := parser.SplitSheetRef(cache.SourceRange)
		if sheet == "" {
			sheet = cache.SourceSheet
		}
		src, err = r.sheetRange(table, sheet, ref)
	case models.SourceTable:
		src, err = r.namedRange(table, cache)
	default:
		err = NewSourceError(table, fmt.Sprintf("%s source", cache.SourceType))
	}
	if err != nil {
		return nil, err
	}
	entry.source = src
	return src, nil
}

func (r *Registry) sheetRange(table, sheet, ref string) (*sourceRef, error) {
	if sheet == "" {
		return nil, NewSourceError(table, "source has no sheet")
	}
	canonical, ok := r.workbook.LookupSheet(sheet)
	if !ok {
		return nil, NewSourceError(table, fmt.Sprintf("sheet %q not in workbook", sheet))
	}
	area, err := parser.ParseRange(ref)
	if err != nil {
		return nil, NewSourceError(table, fmt.Sprintf("source range %q: %v", ref, err))
	}
	return &sourceRef{Sheet: canonical, Range: area}, nil
}

// namedRange resolves a table or defined name source through the workbook
// cells. Tables win over defined names of the same name.
func (r *Registry) namedRange(table string, cache *models.PivotCache) (*sourceRef, error) {
	name := cache.SourceName
	if r.live == nil {
		return nil, NewSourceError(table, fmt.Sprintf("named source %q needs an open workbook", name))
	}
	f, err := r.live()
	if err != nil {
		return nil, NewSourceError(table, fmt.Sprintf("open workbook: %v", err))
	}

	for _, sheet := range r.workbook.SheetNames() {
		tables, err := f.GetTables(sheet)
		if err != nil {
			continue
		}
		for _, t := range tables {
			if strings.EqualFold(t.Name, name) {
				return r.sheetRange(table, sheet, t.Range)
			}
		}
	}

	for _, dn := range f.GetDefinedName() {
		if !strings.EqualFold(dn.Name, name) {
			continue
		}
		if dn.Scope != "Workbook" && !strings.EqualFold(dn.Scope, cache.SourceSheet) {
			continue
		}
		sheet, ref, ok := parser.RangeFromFormula(dn.RefersTo)
		if !ok {
			return nil, NewSourceError(table, fmt.Sprintf("defined name %q is not a plain range: %s", name, dn.RefersTo))
		}
		return r.sheetRange(table, sheet, ref)
	}

	return nil, NewSourceError(table, fmt.Sprintf("no table or defined name %q", name))
}

// materialize loads the cache records exactly once. Without a records part
// the source range is read from the live worksheet when allowed.
func (r *Registry) materialize(table string, entry *cacheEntry, src *sourceRef) error {
	if entry.state == models.StateRecordsMaterialized {
		return nil
	}

	cache := entry.cache
	log := r.log.WithFields(logrus.Fields{"cache_id": cache.ID, "table": table})

	if cache.RecordsPart != "" {
		rc, err := r.archive.Open(cache.RecordsPart)
		switch {
		case err == nil:
			set := parser.ParseCacheRecords(rc, cache.Fields)
			rc.Close()
			r.freeze(entry, cacheHeader(cache), set.Records, set.Rows, false)
			for _, re := range set.Errors {
				r.diagnose(models.Diagnostic{
					Part:    cache.RecordsPart,
					Table:   table,
					CacheID: cache.ID,
					Row:     re.Row,
					Message: re.Error(),
					Err:     re,
				})
			}
			log.WithFields(logrus.Fields{
				"rows":     len(set.Records),
				"skipped":  set.Skipped(),
				"declared": cache.DeclaredRecords,
			}).Debug("pivot cache records materialized")
			return nil
		case errors.Is(err, parser.ErrPartNotFound):
			r.diagnose(models.Diagnostic{
				Part:    cache.RecordsPart,
				Table:   table,
				CacheID: cache.ID,
				Row:     -1,
				Message: err.Error(),
				Err:     err,
			})
		default:
			return fmt.Errorf("pivot table %q: %w", table, err)
		}
	}

	if !r.fallback {
		return NewSourceError(table, "cache stores no records")
	}
	if r.live == nil {
		return NewSourceError(table, "cache stores no records and the workbook cells are not available")
	}
	f, err := r.live()
	if err != nil {
		return NewSourceError(table, fmt.Sprintf("open workbook: %v", err))
	}
	header, records, err := parser.ReadRange(f, src.Sheet, src.Range)
	if err != nil {
		return NewSourceError(table, fmt.Sprintf("read %s!%s: %v", src.Sheet, src.Range.Ref, err))
	}
	r.freeze(entry, header, records, nil, true)
	log.WithField("rows", len(records)).Debug("pivot cache read from worksheet")
	return nil
}

// freeze assigns the records slot and moves the cache to its final state.
// rows gives the source row ordinal of each record; nil means records are
// contiguous.
func (r *Registry) freeze(entry *cacheEntry, header []string, records []models.Record, rows []int, live bool) {
	entry.cache.Records = records
	entry.header = header
	entry.rows = rows
	entry.live = live
	entry.state = models.StateRecordsMaterialized
	r.materializations++
}

// cacheHeader names the record columns: one per database field.
func cacheHeader(cache *models.PivotCache) []string {
	var header []string
	for _, i := range cache.DatabaseFields() {
		header = append(header, cache.Fields[i].Name)
	}
	return header
}

// project cuts the requested area out of the materialized records. Column j
// of a record sits at sheet column Range.C1+j and the record with source
// ordinal n at sheet row Range.R1+1+n, so skipped rows keep their place.
// The header row is always included.
func project(table *models.PivotTable, entry *cacheEntry, src *sourceRef, rng string) (*models.Grid, error) {
	base := src.Range
	want := base
	if rng != "" {
		sheet, ref := parser.SplitSheetRef(rng)
		if sheet != "" && !strings.EqualFold(sheet, src.Sheet) {
			return nil, fmt.Errorf("%w: %q is not on source sheet %q", ErrInvalidRange, rng, src.Sheet)
		}
		area, err := parser.ParseRange(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRange, rng, err)
		}
		if !base.Contains(area) {
			return nil, fmt.Errorf("%w: %s outside source %s", ErrInvalidRange, area.Ref, base.Ref)
		}
		want = area
	}

	var cols []int
	for j := range entry.header {
		if c := base.C1 + j; c >= want.C1 && c <= want.C2 {
			cols = append(cols, j)
		}
	}

	ref, err := parser.FormatRange(want.C1, want.R1, want.C2, want.R2)
	if err != nil {
		ref = want.Ref
	}
	grid := &models.Grid{
		Table:   table.Name,
		CacheID: entry.cache.ID,
		Sheet:   src.Sheet,
		Range:   ref,
		Header:  make([]string, len(cols)),
		Rows:    [][]models.Value{},
		Live:    entry.live,
	}
	for k, j := range cols {
		grid.Header[k] = entry.header[j]
	}

	for i, record := range entry.cache.Records {
		ordinal := i
		if i < len(entry.rows) {
			ordinal = entry.rows[i]
		}
		row := base.R1 + 1 + ordinal
		if row < want.R1 || row > want.R2 {
			continue
		}
		out := make([]models.Value, len(cols))
		for k, j := range cols {
			if j < len(record) {
				out[k] = record[j]
			} else {
				out[k] = models.Blank()
			}
		}
		grid.Rows = append(grid.Rows, out)
	}
	return grid, nil
}
