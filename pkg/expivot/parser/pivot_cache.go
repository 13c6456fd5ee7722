package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ukaji3/expivot-go/pkg/expivot/models"
)

// sourceTypes maps cacheSource@type to a SourceType.
var sourceTypes = map[string]models.SourceType{
	"worksheet":     models.SourceWorksheet,
	"external":      models.SourceExternal,
	"consolidation": models.SourceConsolidation,
}

// ParsePivotCache decodes a pivot cache definition part into a cache shell:
// source, field dictionary and shared items. Records are not read here.
// The cache ID is left at zero; it is assigned by the workbook.
func ParsePivotCache(r io.Reader) (*models.PivotCache, error) {
	decoder := newDecoder(r)
	cache := &models.PivotCache{
		SourceType: models.SourceUnsupported,
		SaveData:   true,
	}
	sawRoot, external := false, false

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
		case "pivotCacheDefinition":
			sawRoot = true
			cache.DeclaredRecords = attrInt(se, "recordCount", 0)
			cache.SaveData = attrBool(se, "saveData", true)
			cache.RefreshOnLoad = attrBool(se, "refreshOnLoad", false)
			cache.RefreshedBy, _ = attr(se, "refreshedBy")
			if v, ok := attr(se, "refreshedDate"); ok {
				cache.RefreshedDate, _ = strconv.ParseFloat(v, 64)
			}
		case "cacheSource":
			t, _ := attr(se, "type")
			if st, ok := sourceTypes[t]; ok {
				cache.SourceType = st
			} else {
				cache.SourceType = models.SourceUnsupported
			}
		case "worksheetSource":
			cache.SourceRange, _ = attr(se, "ref")
			cache.SourceSheet, _ = attr(se, "sheet")
			cache.SourceName, _ = attr(se, "name")
			if _, ok := attr(se, "id"); ok {
				// r:id points at another workbook
				external = true
			}
		case "cacheField":
			field, err := parseCacheField(decoder, se)
			if err != nil {
				return nil, err
			}
			if field.Name == "" {
				field.Name = fmt.Sprintf("Field%d", len(cache.Fields)+1)
			}
			cache.Fields = append(cache.Fields, field)
		case "extLst":
			if err := skipElement(decoder); err != nil {
				return nil, malformed(err)
			}
		}
	}

	if !sawRoot {
		return nil, malformed(errors.New("no pivotCacheDefinition element"))
	}
	switch {
	case cache.SourceType != models.SourceWorksheet:
	case external:
		cache.SourceType = models.SourceExternal
	case cache.SourceRange == "" && cache.SourceName != "":
		cache.SourceType = models.SourceTable
	}
	return cache, nil
}

// parseCacheField parses a cacheField element and its shared items.
func parseCacheField(decoder *xml.Decoder, start xml.StartElement) (models.PivotCacheField, error) {
	field := models.PivotCacheField{
		NumFmtID: attrInt(start, "numFmtId", 0),
		Database: attrBool(start, "databaseField", true),
	}
	field.Name, _ = attr(start, "name")
	field.Formula, _ = attr(start, "formula")
	field.Name = strings.TrimSpace(field.Name)

	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return field, malformed(err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sharedItems":
				field.Types = sharedItemTypes(t)
				items, err := parseSharedItems(decoder)
				if err != nil {
					return field, err
				}
				field.SharedItems = items
				for _, item := range items {
					field.Types = addKind(field.Types, item.Kind)
				}
			default:
				if err := skipElement(decoder); err != nil {
					return field, malformed(err)
				}
			}
		case xml.EndElement:
			depth--
		}
	}

	return field, nil
}

// parseSharedItems reads the value dictionary up to </sharedItems>.
func parseSharedItems(decoder *xml.Decoder) ([]models.Value, error) {
	var items []models.Value
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return items, malformed(err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if v, ok := parseItem(t); ok {
				items = append(items, v)
			}
			if err := skipElement(decoder); err != nil {
				return items, malformed(err)
			}
		case xml.EndElement:
			depth--
		}
	}
	return items, nil
}
