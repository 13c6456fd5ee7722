package models

// FieldType tags the axis a pivot field is placed on.
type FieldType string

const (
	FieldRow     FieldType = "row"
	FieldColumn  FieldType = "column"
	FieldPage    FieldType = "page"
	FieldData    FieldType = "data"
	FieldHidden  FieldType = "hidden"
	FieldUnknown FieldType = "unknown"
)

// AxisFieldType maps a pivotField axis attribute to a FieldType.
// An empty axis yields FieldHidden; unrecognized values yield FieldUnknown.
func AxisFieldType(axis string) FieldType {
	switch axis {
	case "":
		return FieldHidden
	case "axisRow":
		return FieldRow
	case "axisCol":
		return FieldColumn
	case "axisPage":
		return FieldPage
	case "axisValues":
		return FieldData
	}
	return FieldUnknown
}

// Aggregation is the summary function of a data field.
type Aggregation string

const (
	AggSum       Aggregation = "sum"
	AggCount     Aggregation = "count"
	AggAverage   Aggregation = "average"
	AggMax       Aggregation = "max"
	AggMin       Aggregation = "min"
	AggProduct   Aggregation = "product"
	AggCountNums Aggregation = "countNums"
	AggStdDev    Aggregation = "stdDev"
	AggStdDevP   Aggregation = "stdDevp"
	AggVar       Aggregation = "var"
	AggVarP      Aggregation = "varp"
	AggUnknown   Aggregation = "unknown"
)

// ParseAggregation maps a dataField subtotal attribute to an Aggregation.
// The attribute defaults to sum when absent.
func ParseAggregation(s string) Aggregation {
	switch s {
	case "", "sum":
		return AggSum
	case "avg", "average":
		return AggAverage
	}
	switch a := Aggregation(s); a {
	case AggCount, AggMax, AggMin, AggProduct, AggCountNums,
		AggStdDev, AggStdDevP, AggVar, AggVarP:
		return a
	}
	return AggUnknown
}

// PivotItem is one display item of a pivot field.
type PivotItem struct {
	// Label is the resolved display text.
	Label string `json:"label"`
	// CacheIndex is the shared item index (x attribute), -1 when absent.
	CacheIndex int `json:"cache_index"`
	// Type is the item type (t attribute), e.g. "default" for subtotals.
	Type string `json:"type,omitempty"`
	// CustomName is the user supplied caption (n attribute).
	CustomName string `json:"custom_name,omitempty"`
	// Hidden reports whether the item is filtered out (h attribute).
	Hidden bool `json:"hidden,omitempty"`
}

// PivotField is a field local to a pivot table, positionally aligned with
// the cache fields.
type PivotField struct {
	// Name is the field name, taken from the cache when not overridden.
	Name string `json:"name"`
	// FieldType is the axis tag.
	FieldType FieldType `json:"field_type"`
	// DataField reports whether the field also feeds the data area.
	DataField bool `json:"data_field,omitempty"`
	// Items are the display items used for axis labels.
	Items []PivotItem `json:"items,omitempty"`
}

// Labels returns the display labels of the field items.
func (f PivotField) Labels() []string {
	labels := make([]string, len(f.Items))
	for i, item := range f.Items {
		labels[i] = item.Label
	}
	return labels
}

// PivotDataField is a field placed on the data axis with its aggregation.
type PivotDataField struct {
	// Name is the underlying field name.
	Name string `json:"name"`
	// FieldIndex is the index into PivotTable.Fields.
	FieldIndex int `json:"field_index"`
	// Aggregation is the summary function.
	Aggregation Aggregation `json:"aggregation"`
	// DisplayName is the caption override (e.g. "Sum of Sales").
	DisplayName string `json:"display_name,omitempty"`
	// BaseField is the base field index for "show values as", -1 if unset.
	BaseField int `json:"base_field"`
	// BaseItem is the base item index for "show values as", -1 if unset.
	BaseItem int `json:"base_item"`
	// NumFmtID is the number format id, 0 if unset.
	NumFmtID int `json:"num_fmt_id,omitempty"`
}

// PivotFilter is a page (report filter) field.
type PivotFilter struct {
	// FieldIndex is the index into PivotTable.Fields.
	FieldIndex int `json:"field_index"`
	// Name is the field name.
	Name string `json:"name"`
	// Item is the selected item index, -1 when all items are shown.
	Item int `json:"item"`
	// Values are the selected labels; empty means all.
	Values []string `json:"values,omitempty"`
}

// CellRange is a rectangular cell area with 1-based inclusive bounds.
type CellRange struct {
	// Ref is the A1 reference text.
	Ref string `json:"ref"`
	// C1 is the start column.
	C1 int `json:"c1"`
	// R1 is the start row.
	R1 int `json:"r1"`
	// C2 is the end column.
	C2 int `json:"c2"`
	// R2 is the end row.
	R2 int `json:"r2"`
}

// Contains reports whether o lies entirely within r.
func (r CellRange) Contains(o CellRange) bool {
	return o.C1 >= r.C1 && o.C2 <= r.C2 && o.R1 >= r.R1 && o.R2 <= r.R2
}

// PivotTable is a parsed pivot table definition.
type PivotTable struct {
	// Name is the pivot table name, unique within a workbook.
	Name string `json:"name"`
	// SheetName is the sheet hosting the table, empty when not linked from a sheet.
	SheetName string `json:"sheet_name"`
	// Part is the package path of the definition part.
	Part string `json:"part"`
	// Location is the anchor area of the rendered table.
	Location CellRange `json:"location"`
	// SourceRange is the cache source reference, when the source is a worksheet range.
	SourceRange string `json:"source_range,omitempty"`
	// SourceSheet is the cache source sheet name.
	SourceSheet string `json:"source_sheet,omitempty"`
	// CacheID is the lookup key of the shared PivotCache.
	CacheID int `json:"cache_id"`
	// DataCaption is the caption of the synthetic values field.
	DataCaption string `json:"data_caption,omitempty"`
	// Fields are the table fields in cache order.
	Fields []PivotField `json:"fields"`
	// RowFields are indices into Fields.
	RowFields []int `json:"row_fields"`
	// ColumnFields are indices into Fields.
	ColumnFields []int `json:"column_fields"`
	// DataFields are the aggregated fields.
	DataFields []PivotDataField `json:"data_fields"`
	// Filters are the page fields.
	Filters []PivotFilter `json:"filters"`
	// ValuesOnRows is set when the synthetic values field sits on the row axis.
	ValuesOnRows bool `json:"values_on_rows,omitempty"`
	// ValuesOnColumns is set when the synthetic values field sits on the column axis.
	ValuesOnColumns bool `json:"values_on_columns,omitempty"`
}

// FieldNames returns the names of the given field indices.
func (t *PivotTable) FieldNames(indices []int) []string {
	names := make([]string, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(t.Fields) {
			names = append(names, t.Fields[i].Name)
		}
	}
	return names
}
