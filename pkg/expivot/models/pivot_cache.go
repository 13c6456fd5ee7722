package models

// SourceType tags where a pivot cache takes its data from.
type SourceType string

const (
	// SourceWorksheet is a sheet range (worksheetSource@ref).
	SourceWorksheet SourceType = "worksheet"
	// SourceTable is a named table or defined name (worksheetSource@name).
	SourceTable SourceType = "table"
	// SourceExternal is an external connection.
	SourceExternal SourceType = "external"
	// SourceConsolidation is a multiple consolidation range.
	SourceConsolidation SourceType = "consolidation"
	// SourceUnsupported covers scenario and unrecognized sources.
	SourceUnsupported SourceType = "unsupported"
)

// CacheState is the lifecycle state of a pivot cache within a registry.
type CacheState string

const (
	StateUndiscovered        CacheState = "undiscovered"
	StateMetadataParsed      CacheState = "metadata_parsed"
	StateRecordsMaterialized CacheState = "records_materialized"
)

// PivotCacheField is one column of a pivot cache with its shared items.
type PivotCacheField struct {
	// Name is the column name.
	Name string `json:"name"`
	// Types are the declared and observed value kinds.
	Types []ValueKind `json:"types,omitempty"`
	// NumFmtID is the number format id.
	NumFmtID int `json:"num_fmt_id,omitempty"`
	// Formula is set for calculated fields.
	Formula string `json:"formula,omitempty"`
	// Database is false for calculated fields, which have no record column.
	Database bool `json:"database"`
	// SharedItems is the value dictionary referenced by record indices.
	SharedItems []Value `json:"shared_items,omitempty"`
}

// HasType reports whether k is among the field types.
func (f PivotCacheField) HasType(k ValueKind) bool {
	for _, t := range f.Types {
		if t == k {
			return true
		}
	}
	return false
}

// PivotCache is a pivot cache definition plus its lazily loaded records.
type PivotCache struct {
	// ID is the workbook cache id shared by the referencing tables.
	ID int `json:"id"`
	// Part is the package path of the cache definition part.
	Part string `json:"part"`
	// RecordsPart is the package path of the records part, empty when absent.
	RecordsPart string `json:"records_part,omitempty"`
	// SourceType tags the data source.
	SourceType SourceType `json:"source_type"`
	// SourceRange is the worksheetSource ref.
	SourceRange string `json:"source_range,omitempty"`
	// SourceSheet is the worksheetSource sheet.
	SourceSheet string `json:"source_sheet,omitempty"`
	// SourceName is the worksheetSource name (table or defined name).
	SourceName string `json:"source_name,omitempty"`
	// DeclaredRecords is the recordCount attribute.
	DeclaredRecords int `json:"declared_records"`
	// SaveData is false when the producer did not store records.
	SaveData bool `json:"save_data"`
	// RefreshOnLoad asks consumers to refresh the cache when opening.
	RefreshOnLoad bool `json:"refresh_on_load,omitempty"`
	// RefreshedBy is the user name of the last refresh.
	RefreshedBy string `json:"refreshed_by,omitempty"`
	// RefreshedDate is the serial date of the last refresh.
	RefreshedDate float64 `json:"refreshed_date,omitempty"`
	// Fields is the authoritative field dictionary.
	Fields []PivotCacheField `json:"fields"`
	// Records are populated once on first data access, nil before.
	Records []Record `json:"-"`
}

// DatabaseFields returns the indices of fields that occupy a record column.
func (c *PivotCache) DatabaseFields() []int {
	idx := make([]int, 0, len(c.Fields))
	for i, f := range c.Fields {
		if f.Database {
			idx = append(idx, i)
		}
	}
	return idx
}
