package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrPartNotFound indicates the package has no part at the given path.
	ErrPartNotFound = errors.New("part not found")
	// ErrMalformedXML indicates a part could not be parsed as XML.
	ErrMalformedXML = errors.New("malformed xml")
	// ErrMalformedRelationships indicates a .rels part could not be parsed.
	ErrMalformedRelationships = errors.New("malformed relationships")
	// ErrMissingRequiredAttribute indicates a required attribute is absent or invalid.
	ErrMissingRequiredAttribute = errors.New("missing required attribute")
	// ErrInvalidAxisIndex indicates an axis projection points outside the field list.
	ErrInvalidAxisIndex = errors.New("invalid axis index")
	// ErrInvalidSharedItemIndex indicates a record references a missing shared item.
	ErrInvalidSharedItemIndex = errors.New("invalid shared item index")
	// ErrRecordTooWide indicates a record has more cells than the cache has fields.
	ErrRecordTooWide = errors.New("record has more cells than cache fields")
)

// PartError ties an error to the package part that caused it.
type PartError struct {
	Part string
	Err  error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("%s: %v", e.Part, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

// NewPartError creates a new PartError.
func NewPartError(part string, err error) *PartError {
	return &PartError{Part: part, Err: err}
}

// AttributeError reports a missing or unusable attribute.
type AttributeError struct {
	Element   string
	Attribute string
	Value     string
}

func (e *AttributeError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%v: %s@%s=%q", ErrMissingRequiredAttribute, e.Element, e.Attribute, e.Value)
	}
	return fmt.Sprintf("%v: %s@%s", ErrMissingRequiredAttribute, e.Element, e.Attribute)
}

func (e *AttributeError) Unwrap() error {
	return ErrMissingRequiredAttribute
}

// AxisError reports an axis projection index outside the field list.
type AxisError struct {
	Axis   string
	Index  int
	Fields int
}

func (e *AxisError) Error() string {
	return fmt.Sprintf("%v: %s index %d with %d fields", ErrInvalidAxisIndex, e.Axis, e.Index, e.Fields)
}

func (e *AxisError) Unwrap() error {
	return ErrInvalidAxisIndex
}

// RecordError is a row-level decode problem. The row is skipped.
type RecordError struct {
	// Row is the 0-based position of the row in the records part.
	Row int
	// Field is the 0-based cache field index, -1 when not field specific.
	Field int
	Err   error
}

func (e RecordError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("record %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("record %d field %d: %v", e.Row, e.Field, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}
