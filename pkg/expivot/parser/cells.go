package parser

import (
	"strconv"
	"strings"

	"github.com/ukaji3/expivot-go/pkg/expivot/models"
	"github.com/xuri/excelize/v2"
)

// errorLiterals are the worksheet error values.
var errorLiterals = map[string]bool{
	"#NULL!":  true,
	"#DIV/0!": true,
	"#VALUE!": true,
	"#REF!":   true,
	"#NAME?":  true,
	"#NUM!":   true,
	"#N/A":    true,
}

// ReadRange reads a pivot source range from a live worksheet. The first row
// of the range is the header; every following row becomes a record with one
// value per range column. Trailing empty rows below the used area are not
// returned.
func ReadRange(f *excelize.File, sheetName string, rng models.CellRange) ([]string, []models.Record, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, err
	}

	width := rng.C2 - rng.C1 + 1
	header := make([]string, width)
	var records []models.Record

	for rowIdx := rng.R1 - 1; rowIdx < len(rows) && rowIdx < rng.R2; rowIdx++ {
		row := rows[rowIdx]
		if rowIdx == rng.R1-1 {
			for c := 0; c < width; c++ {
				if col := rng.C1 - 1 + c; col < len(row) {
					header[c] = strings.TrimSpace(row[col])
				}
			}
			continue
		}

		record := make(models.Record, width)
		for c := 0; c < width; c++ {
			record[c] = models.Blank()
			if col := rng.C1 - 1 + c; col < len(row) {
				record[c] = parseValue(row[col])
			}
		}
		records = append(records, record)
	}

	return header, records, nil
}

// parseValue converts a formatted cell string to a typed value.
// Numbers become KindNumber, TRUE/FALSE become KindBool, worksheet error
// literals become KindError and everything else is text.
func parseValue(s string) models.Value {
	if s == "" {
		return models.Blank()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return models.Number(f)
	}
	switch s {
	case "TRUE":
		return models.Bool(true)
	case "FALSE":
		return models.Bool(false)
	}
	if errorLiterals[s] {
		return models.Error(s)
	}
	return models.String(s)
}
