// Package output serializes pivot extraction results.
package output

import (
	"encoding/json"
	"io"

	"github.com/ukaji3/expivot-go/pkg/expivot/models"
)

// ToJSON serializes any result value to JSON.
func ToJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// TableToJSON serializes a pivot table definition.
func TableToJSON(table *models.PivotTable, pretty bool) ([]byte, error) {
	return ToJSON(table, pretty)
}

// GridToJSON serializes a data grid.
func GridToJSON(grid *models.Grid, pretty bool) ([]byte, error) {
	return ToJSON(grid, pretty)
}

// GridRecords converts a grid into one JSON object per row, keyed by header.
// Duplicate header names keep the rightmost value.
func GridRecords(grid *models.Grid) []map[string]models.Value {
	out := make([]map[string]models.Value, 0, len(grid.Rows))
	for _, row := range grid.Rows {
		rec := make(map[string]models.Value, len(grid.Header))
		for i, name := range grid.Header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Write serializes v to w followed by a newline.
func Write(w io.Writer, v any, pretty bool) error {
	data, err := ToJSON(v, pretty)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
