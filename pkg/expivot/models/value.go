// Package models defines data structures for pivot table extraction.
package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// ValueKind tags the type of a cached cell value.
type ValueKind string

const (
	// KindBlank is a missing value (<m/> or an elided trailing field).
	KindBlank ValueKind = "blank"
	// KindNumber is a numeric value (<n/>).
	KindNumber ValueKind = "number"
	// KindString is a text value (<s/>).
	KindString ValueKind = "string"
	// KindBool is a boolean value (<b/>).
	KindBool ValueKind = "bool"
	// KindDate is an ISO-8601 date time value (<d/>).
	KindDate ValueKind = "date"
	// KindError is an error literal such as #N/A (<e/>).
	KindError ValueKind = "error"
)

// DateLayout is the layout used by pivot caches for <d v="..."/> items.
const DateLayout = "2006-01-02T15:04:05"

// Value is a single typed cell of a pivot cache.
// Dates and error literals keep their original text in Text.
type Value struct {
	// Kind is the value type tag.
	Kind ValueKind `json:"kind"`
	// Number holds the numeric value for KindNumber.
	Number float64 `json:"number,omitempty"`
	// Text holds the value for KindString, KindDate and KindError.
	Text string `json:"text,omitempty"`
	// Bool holds the value for KindBool.
	Bool bool `json:"bool,omitempty"`
}

// Blank returns a blank value.
func Blank() Value { return Value{Kind: KindBlank} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// String returns a text value.
func String(s string) Value { return Value{Kind: KindString, Text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Date returns a date value holding its cache representation.
func Date(s string) Value { return Value{Kind: KindDate, Text: s} }

// Error returns an error literal value.
func Error(s string) Value { return Value{Kind: KindError, Text: s} }

// IsBlank reports whether the value is missing.
func (v Value) IsBlank() bool { return v.Kind == KindBlank || v.Kind == "" }

// Time parses a KindDate value.
func (v Value) Time() (time.Time, error) {
	return time.Parse(DateLayout, v.Text)
}

// String renders the value as display text.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindString, KindDate, KindError:
		return v.Text
	}
	return ""
}

// MarshalJSON writes the value as a plain JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Number)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindString, KindDate, KindError:
		return json.Marshal(v.Text)
	}
	return []byte("null"), nil
}

// Record is one row of a pivot cache, one value per database field.
type Record []Value
