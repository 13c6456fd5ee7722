package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ukaji3/expivot-go/pkg/expivot/models"
)

// RecordSet is the decoded content of a pivot cache records part.
type RecordSet struct {
	// Records are the rows that decoded cleanly, one value per database field.
	Records []models.Record
	// Rows holds the 0-based <r> position of each record, so Rows[i] is the
	// source row of Records[i] even after skipped rows.
	Rows []int
	// Declared is the count attribute of the records part, -1 when absent.
	Declared int
	// Errors lists the skipped rows and, when Truncated, the stream error.
	Errors []RecordError
	// Truncated is set when the stream ended on an XML error.
	Truncated bool
}

// Skipped returns the number of rows dropped by row-level errors.
func (s *RecordSet) Skipped() int {
	n := len(s.Errors)
	if s.Truncated {
		n--
	}
	return n
}

// ParseCacheRecords streams a records part and decodes every <r> row against
// the cache fields. Cells map positionally onto the database fields; shorter
// rows are padded with blanks. Rows with a bad shared item index or too many
// cells are skipped and reported. A malformed stream stops decoding and keeps
// the rows read so far.
func ParseCacheRecords(r io.Reader, fields []models.PivotCacheField) *RecordSet {
	columns := make([]int, 0, len(fields))
	for i, f := range fields {
		if f.Database {
			columns = append(columns, i)
		}
	}

	set := &RecordSet{Declared: -1}
	decoder := newDecoder(r)

	var (
		row    models.Record
		rowErr *RecordError
		inRow  bool
		rowIdx int
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			set.Truncated = true
			set.Errors = append(set.Errors, RecordError{Row: rowIdx, Field: -1, Err: malformed(err)})
			break
		}

		switch t := token.(type) {
		case xml.StartElement:
			if !inRow {
				switch t.Name.Local {
				case "pivotCacheRecords":
					set.Declared = attrInt(t, "count", -1)
				case "r":
					inRow = true
					row = make(models.Record, 0, len(columns))
					rowErr = nil
				}
				continue
			}
			if rowErr == nil {
				row, rowErr = appendCell(row, t, fields, columns, rowIdx)
			}
			// Inline values may carry <x> or <tpls> children; they belong to the cell.
			if err := skipElement(decoder); err != nil {
				set.Truncated = true
				set.Errors = append(set.Errors, RecordError{Row: rowIdx, Field: -1, Err: malformed(err)})
				return set
			}

		case xml.EndElement:
			if !inRow || t.Name.Local != "r" {
				continue
			}
			inRow = false
			if rowErr != nil {
				set.Errors = append(set.Errors, *rowErr)
			} else {
				for len(row) < len(columns) {
					row = append(row, models.Blank())
				}
				set.Records = append(set.Records, row)
				set.Rows = append(set.Rows, rowIdx)
			}
			rowIdx++
		}
	}

	return set
}

// appendCell decodes one cell of a record row. Elements that are not cache
// values are ignored.
func appendCell(row models.Record, se xml.StartElement, fields []models.PivotCacheField, columns []int, rowIdx int) (models.Record, *RecordError) {
	var v models.Value
	if se.Name.Local != "x" {
		var ok bool
		if v, ok = parseItem(se); !ok {
			return row, nil
		}
	}
	pos := len(row)
	if pos >= len(columns) {
		return row, &RecordError{Row: rowIdx, Field: -1, Err: ErrRecordTooWide}
	}
	if se.Name.Local == "x" {
		var err error
		if v, err = sharedItem(se, &fields[columns[pos]]); err != nil {
			return row, &RecordError{Row: rowIdx, Field: columns[pos], Err: err}
		}
	}
	return append(row, v), nil
}

// sharedItem resolves an <x v="i"/> cell against the field dictionary.
func sharedItem(se xml.StartElement, field *models.PivotCacheField) (models.Value, error) {
	v, _ := attr(se, "v")
	idx, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || idx < 0 || idx >= len(field.SharedItems) {
		return models.Value{}, fmt.Errorf("%w: %q with %d shared items in %q",
			ErrInvalidSharedItemIndex, v, len(field.SharedItems), field.Name)
	}
	return field.SharedItems[idx], nil
}
