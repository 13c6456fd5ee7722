package models

// Grid is the tabular projection of a pivot table's cached data.
type Grid struct {
	// Table is the pivot table name.
	Table string `json:"table"`
	// CacheID is the cache that backs the grid.
	CacheID int `json:"cache_id"`
	// Sheet is the source sheet name.
	Sheet string `json:"sheet,omitempty"`
	// Range is the projected A1 range.
	Range string `json:"range"`
	// Header holds the field names of the projected columns.
	Header []string `json:"header"`
	// Rows holds the projected records.
	Rows [][]Value `json:"rows"`
	// Live is set when rows were read from the worksheet instead of the cache records.
	Live bool `json:"live,omitempty"`
}

// Diagnostic is a recoverable problem met during discovery or materialization.
type Diagnostic struct {
	// Part is the package path involved.
	Part string `json:"part"`
	// Table is the affected pivot table name, if known.
	Table string `json:"table,omitempty"`
	// CacheID is the affected cache id, -1 if unknown.
	CacheID int `json:"cache_id"`
	// Row is the 0-based record index for row-level problems, -1 otherwise.
	Row int `json:"row"`
	// Message is the error text.
	Message string `json:"message"`
	// Err is the underlying error.
	Err error `json:"-"`
}

// CacheSummary is a compact view of a cache for listings.
type CacheSummary struct {
	// ID is the cache id.
	ID int `json:"id"`
	// SourceType tags the data source.
	SourceType SourceType `json:"source_type"`
	// Source is the source reference text.
	Source string `json:"source,omitempty"`
	// Fields are the field names.
	Fields []string `json:"fields"`
	// Tables are the names of tables sharing the cache.
	Tables []string `json:"tables"`
	// DeclaredRecords is the recordCount attribute.
	DeclaredRecords int `json:"declared_records"`
	// State is the lifecycle state.
	State CacheState `json:"state"`
}
