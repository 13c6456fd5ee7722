package parser

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/ukaji3/expivot-go/pkg/expivot/models"
)

// parseItem decodes an inline cache value element: s, n, b, d, e or m.
// It reports false for any other element.
func parseItem(se xml.StartElement) (models.Value, bool) {
	v, _ := attr(se, "v")
	switch se.Name.Local {
	case "m":
		return models.Blank(), true
	case "s":
		return models.String(v), true
	case "n":
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return models.Number(f), true
		}
		return models.String(v), true
	case "b":
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true":
			return models.Bool(true), true
		}
		return models.Bool(false), true
	case "d":
		return models.Date(v), true
	case "e":
		return models.Error(v), true
	}
	return models.Value{}, false
}

// sharedItemTypes derives the declared value kinds from sharedItems flags.
// Defaults follow the schema: containsString and containsSemiMixedTypes are
// true unless stated otherwise.
func sharedItemTypes(se xml.StartElement) []models.ValueKind {
	var kinds []models.ValueKind
	if attrBool(se, "containsString", true) && attrBool(se, "containsSemiMixedTypes", true) {
		kinds = append(kinds, models.KindString)
	}
	if attrBool(se, "containsNumber", false) || attrBool(se, "containsInteger", false) {
		kinds = append(kinds, models.KindNumber)
	}
	if attrBool(se, "containsDate", false) {
		kinds = append(kinds, models.KindDate)
	}
	if attrBool(se, "containsBoolean", false) {
		kinds = append(kinds, models.KindBool)
	}
	if attrBool(se, "containsBlank", false) {
		kinds = append(kinds, models.KindBlank)
	}
	return kinds
}

func addKind(kinds []models.ValueKind, k models.ValueKind) []models.ValueKind {
	for _, existing := range kinds {
		if existing == k {
			return kinds
		}
	}
	return append(kinds, k)
}
