package expivot

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tiendc/go-deepcopy"
	"github.com/ukaji3/expivot-go/pkg/expivot/models"
	"github.com/ukaji3/expivot-go/pkg/expivot/parser"
	"github.com/xuri/excelize/v2"
)

// liveOpener returns the workbook opened for cell level reads.
type liveOpener func() (*excelize.File, error)

// cacheEntry is the registry's view of one pivot cache.
type cacheEntry struct {
	cache  *models.PivotCache
	state  models.CacheState
	tables []string
	header []string
	rows   []int
	live   bool
	source *sourceRef
}

// Registry holds the pivot tables and caches discovered in a workbook.
// Table metadata is parsed eagerly; cache records are read once, on the
// first Data call that needs them. A Registry is safe for concurrent use.
type Registry struct {
	log      logrus.FieldLogger
	archive  parser.Archive
	workbook *parser.WorkbookInfo
	live     liveOpener
	fallback bool

	mu               sync.Mutex
	names            []string
	tables           map[string]*models.PivotTable
	caches           map[int]*cacheEntry
	cacheOrder       []int
	diagnostics      []models.Diagnostic
	materializations int
	closed           bool
}

// Discover scans a package for pivot tables. The returned registry reads
// source ranges only from cache records, never from live cells.
// Discovery fails only when the workbook part cannot be read; broken pivot
// parts are excluded and listed in a *PartialDiscoveryError returned with
// the registry.
func Discover(archive parser.Archive, opts Options) (*Registry, error) {
	return discover(archive, opts, opts.logger(), nil)
}

func discover(archive parser.Archive, opts Options, log logrus.FieldLogger, live liveOpener) (*Registry, error) {
	resolver := parser.NewResolver(archive)
	wb, err := parser.LoadWorkbook(archive, resolver)
	if err != nil {
		return nil, fmt.Errorf("load workbook: %w", err)
	}

	r := &Registry{
		log:      log,
		archive:  archive,
		workbook: wb,
		live:     live,
		fallback: opts.ShouldFallBackToLive(),
		tables:   make(map[string]*models.PivotTable),
		caches:   make(map[int]*cacheEntry),
	}
	d := &discovery{
		Registry:   r,
		resolver:   resolver,
		cacheParts: make(map[int]string),
		failed:     make(map[int]error),
	}
	for _, pc := range wb.PivotCaches {
		if pc.Part != "" {
			d.cacheParts[pc.CacheID] = pc.Part
		}
	}

	for _, ref := range d.tableParts() {
		d.addTable(ref.sheet, ref.part)
	}
	for _, pc := range wb.PivotCaches {
		if pc.Part == "" {
			continue
		}
		if _, ok := r.caches[pc.CacheID]; ok {
			continue
		}
		if _, ok := d.failed[pc.CacheID]; ok {
			continue
		}
		if _, err := d.loadCache(pc.CacheID, pc.Part); err != nil {
			d.exclude(pc.Part, "", err)
		}
	}

	r.log.WithFields(logrus.Fields{
		"tables":   len(r.names),
		"caches":   len(r.caches),
		"excluded": len(d.errs),
	}).Debug("pivot discovery finished")

	if len(d.errs) > 0 {
		return r, &PartialDiscoveryError{Errors: d.errs}
	}
	return r, nil
}

// discovery carries the state of a single discovery pass.
type discovery struct {
	*Registry
	resolver   *parser.Resolver
	cacheParts map[int]string
	failed     map[int]error
	errs       []*parser.PartError
}

type tablePart struct {
	sheet string
	part  string
}

// tableParts lists pivot table parts reachable from sheets, in workbook
// sheet order, followed by parts no sheet links to.
func (d *discovery) tableParts() []tablePart {
	var refs []tablePart
	seen := make(map[string]bool)

	for _, sheet := range d.workbook.Sheets {
		if sheet.Part == "" {
			continue
		}
		rels, err := d.resolver.ByType(sheet.Part, parser.RelPivotTable)
		if err != nil {
			d.exclude(parser.RelsPath(sheet.Part), "", err)
			continue
		}
		for _, rel := range rels {
			key := strings.ToLower(rel.Target)
			if seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, tablePart{sheet: sheet.Name, part: rel.Target})
		}
	}

	dir := path.Join(path.Dir(d.workbook.Part), "pivotTables") + "/"
	for _, name := range d.archive.Parts() {
		if path.Dir(name)+"/" != dir || !strings.HasSuffix(name, ".xml") {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		d.log.WithField("part", name).Debug("pivot table part not linked from any sheet")
		refs = append(refs, tablePart{part: name})
	}
	return refs
}

// addTable parses one table part and links it to its cache. Any structural
// error excludes the table alone.
func (d *discovery) addTable(sheet, part string) {
	table, err := d.parseTable(part)
	if err != nil {
		d.exclude(part, "", err)
		return
	}
	if _, dup := d.tables[table.Name]; dup {
		d.exclude(part, table.Name, fmt.Errorf("duplicate pivot table name %q", table.Name))
		return
	}
	table.SheetName = sheet
	table.Part = part

	cachePart, err := d.cachePartFor(table)
	if err != nil {
		d.exclude(part, table.Name, err)
		return
	}

	entry, err := d.loadCache(table.CacheID, cachePart)
	if err != nil {
		d.exclude(cachePart, table.Name, err)
		return
	}
	if !strings.EqualFold(entry.cache.Part, cachePart) {
		d.diagnose(models.Diagnostic{
			Part:    part,
			Table:   table.Name,
			CacheID: table.CacheID,
			Row:     -1,
			Message: fmt.Sprintf("cache id %d already bound to %s, ignoring %s", table.CacheID, entry.cache.Part, cachePart),
		})
	}

	resolveTable(table, entry.cache)
	entry.tables = append(entry.tables, table.Name)
	d.tables[table.Name] = table
	d.names = append(d.names, table.Name)

	d.log.WithFields(logrus.Fields{
		"table":    table.Name,
		"sheet":    sheet,
		"cache_id": table.CacheID,
	}).Debug("pivot table discovered")
}

func (d *discovery) parseTable(part string) (*models.PivotTable, error) {
	data, err := parser.ReadPart(d.archive, part)
	if err != nil {
		return nil, err
	}
	return parser.ParsePivotTable(bytes.NewReader(data))
}

// cachePartFor finds the cache definition of a table: its own relationship
// first, then the workbook's cacheId mapping.
func (d *discovery) cachePartFor(table *models.PivotTable) (string, error) {
	rels, err := d.resolver.ByType(table.Part, parser.RelPivotCacheDefinition)
	if err != nil {
		return "", err
	}
	if len(rels) > 0 {
		if wbPart, ok := d.cacheParts[table.CacheID]; ok && !strings.EqualFold(wbPart, rels[0].Target) {
			d.diagnose(models.Diagnostic{
				Part:    table.Part,
				Table:   table.Name,
				CacheID: table.CacheID,
				Row:     -1,
				Message: fmt.Sprintf("workbook maps cache id %d to %s, table links %s", table.CacheID, wbPart, rels[0].Target),
			})
		}
		return rels[0].Target, nil
	}
	if wbPart, ok := d.cacheParts[table.CacheID]; ok {
		return wbPart, nil
	}
	return "", fmt.Errorf("%w: no cache definition for cache id %d", parser.ErrPartNotFound, table.CacheID)
}

// loadCache returns the cache entry for id, parsing its definition on first
// reference. Tables sharing a cache id share the entry.
func (d *discovery) loadCache(id int, part string) (*cacheEntry, error) {
	if entry, ok := d.caches[id]; ok {
		return entry, nil
	}
	if err, ok := d.failed[id]; ok {
		return nil, err
	}

	cache, err := d.parseCache(part)
	if err != nil {
		d.failed[id] = err
		return nil, err
	}
	cache.ID = id
	cache.Part = part

	records, err := d.resolver.ByType(part, parser.RelPivotCacheRecords)
	if err != nil {
		d.diagnose(models.Diagnostic{Part: part, CacheID: id, Row: -1, Message: err.Error(), Err: err})
	} else if len(records) > 0 {
		cache.RecordsPart = records[0].Target
	}

	entry := &cacheEntry{cache: cache, state: models.StateMetadataParsed}
	d.caches[id] = entry
	d.cacheOrder = append(d.cacheOrder, id)
	return entry, nil
}

func (d *discovery) parseCache(part string) (*models.PivotCache, error) {
	data, err := parser.ReadPart(d.archive, part)
	if err != nil {
		return nil, err
	}
	return parser.ParsePivotCache(bytes.NewReader(data))
}

// exclude records a part that could not be used.
func (d *discovery) exclude(part, table string, err error) {
	var pe *parser.PartError
	if !errors.As(err, &pe) || pe.Part != part {
		pe = parser.NewPartError(part, err)
	}
	d.errs = append(d.errs, pe)
	d.diagnose(models.Diagnostic{Part: part, Table: table, CacheID: -1, Row: -1, Message: err.Error(), Err: err})
}

// resolveTable fills names and labels the table definition leaves to the cache.
func resolveTable(table *models.PivotTable, cache *models.PivotCache) {
	table.SourceRange = cache.SourceRange
	table.SourceSheet = cache.SourceSheet
	if cache.SourceType == models.SourceTable {
		table.SourceRange = cache.SourceName
	}

	for i := range table.Fields {
		field := &table.Fields[i]
		var cf *models.PivotCacheField
		if i < len(cache.Fields) {
			cf = &cache.Fields[i]
		}
		if field.Name == "" {
			if cf != nil {
				field.Name = cf.Name
			} else {
				field.Name = fmt.Sprintf("Field%d", i+1)
			}
		}
		for j := range field.Items {
			field.Items[j].Label = itemLabel(field.Items[j], cf)
		}
	}

	for i := range table.DataFields {
		df := &table.DataFields[i]
		df.Name = table.Fields[df.FieldIndex].Name
		if df.DisplayName == "" {
			df.DisplayName = df.Name
		}
	}

	for i := range table.Filters {
		pf := &table.Filters[i]
		field := table.Fields[pf.FieldIndex]
		if pf.Name == "" {
			pf.Name = field.Name
		}
		if pf.Item >= 0 && pf.Item < len(field.Items) {
			pf.Values = []string{field.Items[pf.Item].Label}
		}
	}
}

// itemLabel picks the display text of an item: its custom caption, the
// shared item it indexes, or its item type for subtotal and grand rows.
func itemLabel(item models.PivotItem, cf *models.PivotCacheField) string {
	if item.CustomName != "" {
		return item.CustomName
	}
	if cf != nil && item.CacheIndex >= 0 && item.CacheIndex < len(cf.SharedItems) {
		return cf.SharedItems[item.CacheIndex].String()
	}
	if item.Type != "" && item.Type != "data" {
		return "(" + item.Type + ")"
	}
	if item.CacheIndex >= 0 {
		return fmt.Sprintf("#%d", item.CacheIndex)
	}
	return ""
}

// diagnose appends a diagnostic and logs it. Callers hold r.mu or run
// before the registry is shared.
func (r *Registry) diagnose(diag models.Diagnostic) {
	r.diagnostics = append(r.diagnostics, diag)

	fields := logrus.Fields{"part": diag.Part}
	if diag.Table != "" {
		fields["table"] = diag.Table
	}
	if diag.CacheID >= 0 {
		fields["cache_id"] = diag.CacheID
	}
	if diag.Row >= 0 {
		fields["row"] = diag.Row
	}
	r.log.WithFields(fields).Warn(diag.Message)
}

// Names returns the table names in discovery order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// TablesInSheet returns the names of the tables placed on a sheet, in
// discovery order. Sheet names match ignoring case; "" selects tables not
// linked from any sheet.
func (r *Registry) TablesInSheet(sheet string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, name := range r.names {
		if strings.EqualFold(r.tables[name].SheetName, sheet) {
			names = append(names, name)
		}
	}
	return names
}

// Len returns the number of discovered tables.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Get returns a copy of the named table definition.
func (r *Registry) Get(name string) (*models.PivotTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	table, ok := r.tables[name]
	if !ok {
		return nil, notFound("pivot table", name)
	}
	var out models.PivotTable
	if err := deepcopy.Copy(&out, *table); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tables returns copies of all table definitions in discovery order.
func (r *Registry) Tables() ([]*models.PivotTable, error) {
	var out []*models.PivotTable
	for _, name := range r.Names() {
		table, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, table)
	}
	return out, nil
}

// Cache returns a copy of the cache definition without its records.
func (r *Registry) Cache(id int) (*models.PivotCache, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	entry, ok := r.caches[id]
	if !ok {
		return nil, notFound("pivot cache", fmt.Sprint(id))
	}
	return copyCacheShell(entry.cache)
}

// Caches returns copies of all cache definitions in discovery order.
func (r *Registry) Caches() ([]*models.PivotCache, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	out := make([]*models.PivotCache, 0, len(r.cacheOrder))
	for _, id := range r.cacheOrder {
		cache, err := copyCacheShell(r.caches[id].cache)
		if err != nil {
			return nil, err
		}
		out = append(out, cache)
	}
	return out, nil
}

func copyCacheShell(cache *models.PivotCache) (*models.PivotCache, error) {
	shell := *cache
	shell.Records = nil
	var out models.PivotCache
	if err := deepcopy.Copy(&out, shell); err != nil {
		return nil, err
	}
	return &out, nil
}

// CacheSummaries returns a compact listing of the caches.
func (r *Registry) CacheSummaries() []models.CacheSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.CacheSummary, 0, len(r.cacheOrder))
	for _, id := range r.cacheOrder {
		entry := r.caches[id]
		c := entry.cache
		fields := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = f.Name
		}
		source := c.SourceRange
		if c.SourceType == models.SourceTable {
			source = c.SourceName
		}
		if c.SourceSheet != "" && source != "" {
			source = c.SourceSheet + "!" + source
		}
		out = append(out, models.CacheSummary{
			ID:              id,
			SourceType:      c.SourceType,
			Source:          source,
			Fields:          fields,
			Tables:          append([]string{}, entry.tables...),
			DeclaredRecords: c.DeclaredRecords,
			State:           entry.state,
		})
	}
	return out
}

// State returns the lifecycle state of a cache. Unknown ids are undiscovered.
func (r *Registry) State(cacheID int) models.CacheState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.caches[cacheID]; ok {
		return entry.state
	}
	return models.StateUndiscovered
}

// Materializations returns how many caches have had their records loaded.
func (r *Registry) Materializations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.materializations
}

// Diagnostics returns the recoverable problems recorded so far.
func (r *Registry) Diagnostics() []models.Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Diagnostic(nil), r.diagnostics...)
}

func (r *Registry) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.tables = nil
	r.caches = nil
	r.cacheOrder = nil
	r.names = nil
}
