package parser

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/ukaji3/expivot-go/pkg/expivot/models"
)

// valuesField is the x index of the synthetic "Values" field on an axis.
const valuesField = -2

// ParsePivotTable decodes a pivot table definition part. Field names and
// item labels are left unresolved when the part does not carry them; they
// come from the pivot cache. Every axis index is checked against the field
// list.
func ParsePivotTable(r io.Reader) (*models.PivotTable, error) {
	decoder := newDecoder(r)
	table := &models.PivotTable{
		RowFields:    []int{},
		ColumnFields: []int{},
		DataFields:   []models.PivotDataField{},
		Filters:      []models.PivotFilter{},
	}
	var rowX, colX []int
	sawRoot, sawCacheID, sawLocation := false, false, false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}
		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "pivotTableDefinition":
			sawRoot = true
			table.Name, _ = attr(se, "name")
			table.DataCaption, _ = attr(se, "dataCaption")
			if v, ok := attr(se, "cacheId"); ok {
				id, err := strconv.Atoi(strings.TrimSpace(v))
				if err != nil || id < 0 {
					return nil, &AttributeError{Element: "pivotTableDefinition", Attribute: "cacheId", Value: v}
				}
				table.CacheID = id
				sawCacheID = true
			}
		case "location":
			ref, _ := attr(se, "ref")
			if ref == "" {
				continue
			}
			loc, err := ParseRange(ref)
			if err != nil {
				return nil, &AttributeError{Element: "location", Attribute: "ref", Value: ref}
			}
			table.Location = loc
			sawLocation = true
		case "pivotField":
			field, err := parsePivotField(decoder, se)
			if err != nil {
				return nil, err
			}
			table.Fields = append(table.Fields, field)
		case "rowFields":
			if rowX, err = parseFieldIndices(decoder); err != nil {
				return nil, err
			}
		case "colFields":
			if colX, err = parseFieldIndices(decoder); err != nil {
				return nil, err
			}
		case "pageField":
			table.Filters = append(table.Filters, models.PivotFilter{
				FieldIndex: attrInt(se, "fld", -1),
				Name:       attrString(se, "name"),
				Item:       attrInt(se, "item", -1),
			})
		case "dataField":
			table.DataFields = append(table.DataFields, models.PivotDataField{
				FieldIndex:  attrInt(se, "fld", -1),
				Aggregation: models.ParseAggregation(attrString(se, "subtotal")),
				DisplayName: attrString(se, "name"),
				BaseField:   attrInt(se, "baseField", -1),
				BaseItem:    attrInt(se, "baseItem", -1),
				NumFmtID:    attrInt(se, "numFmtId", 0),
			})
		case "rowItems", "colItems", "formats", "conditionalFormats", "chartFormats",
			"pivotHierarchies", "pivotTableStyleInfo", "filters", "extLst":
			if err := skipElement(decoder); err != nil {
				return nil, malformed(err)
			}
		}
	}

	if !sawRoot {
		return nil, malformed(errors.New("no pivotTableDefinition element"))
	}
	if table.Name == "" {
		return nil, &AttributeError{Element: "pivotTableDefinition", Attribute: "name"}
	}
	if !sawCacheID {
		return nil, &AttributeError{Element: "pivotTableDefinition", Attribute: "cacheId"}
	}
	if !sawLocation {
		return nil, &AttributeError{Element: "location", Attribute: "ref"}
	}

	if err := projectAxes(table, rowX, colX); err != nil {
		return nil, err
	}
	return table, nil
}

// projectAxes validates the axis indices and fills the projections.
func projectAxes(table *models.PivotTable, rowX, colX []int) error {
	n := len(table.Fields)
	check := func(axis string, i int) error {
		if i < 0 || i >= n {
			return &AxisError{Axis: axis, Index: i, Fields: n}
		}
		return nil
	}

	for _, x := range rowX {
		if x == valuesField {
			table.ValuesOnRows = true
			continue
		}
		if err := check("rowFields", x); err != nil {
			return err
		}
		table.RowFields = append(table.RowFields, x)
	}
	for _, x := range colX {
		if x == valuesField {
			table.ValuesOnColumns = true
			continue
		}
		if err := check("colFields", x); err != nil {
			return err
		}
		table.ColumnFields = append(table.ColumnFields, x)
	}
	for _, df := range table.DataFields {
		if err := check("dataFields", df.FieldIndex); err != nil {
			return err
		}
	}
	for _, pf := range table.Filters {
		if err := check("pageFields", pf.FieldIndex); err != nil {
			return err
		}
	}
	return nil
}

// parsePivotField parses a pivotField element with its items.
func parsePivotField(decoder *xml.Decoder, start xml.StartElement) (models.PivotField, error) {
	axis, _ := attr(start, "axis")
	field := models.PivotField{
		Name:      attrString(start, "name"),
		FieldType: models.AxisFieldType(axis),
		DataField: attrBool(start, "dataField", false),
	}
	if field.FieldType == models.FieldHidden && field.DataField {
		field.FieldType = models.FieldData
	}

	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return field, malformed(err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "item" {
				field.Items = append(field.Items, models.PivotItem{
					CacheIndex: attrInt(t, "x", -1),
					Type:       attrString(t, "t"),
					CustomName: attrString(t, "n"),
					Hidden:     attrBool(t, "h", false),
				})
			}
		case xml.EndElement:
			depth--
		}
	}

	return field, nil
}

// parseFieldIndices reads the x attributes of a rowFields or colFields list.
// A field without x yields -1, which fails validation.
func parseFieldIndices(decoder *xml.Decoder) ([]int, error) {
	var indices []int
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return nil, malformed(err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "field" {
				indices = append(indices, attrInt(t, "x", -1))
			}
		case xml.EndElement:
			depth--
		}
	}
	return indices, nil
}

func attrString(se xml.StartElement, local string) string {
	v, _ := attr(se, local)
	return v
}
