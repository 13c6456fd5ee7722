package expivot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ukaji3/expivot-go/pkg/expivot/parser"
)

// ErrNotFound indicates no pivot table or cache with the requested key was discovered.
var ErrNotFound = errors.New("not found")

// ErrSourceUnavailable indicates a cache source cannot be resolved to live worksheet data.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrInvalidRange indicates a requested range is unparsable or outside the source.
var ErrInvalidRange = errors.New("invalid range")

// ErrClosed indicates the workbook handle was closed.
var ErrClosed = errors.New("workbook closed")

// Errors raised while parsing parts, re-exported for errors.Is checks.
var (
	ErrPartNotFound             = parser.ErrPartNotFound
	ErrMalformedXML             = parser.ErrMalformedXML
	ErrMalformedRelationships   = parser.ErrMalformedRelationships
	ErrMissingRequiredAttribute = parser.ErrMissingRequiredAttribute
	ErrInvalidAxisIndex         = parser.ErrInvalidAxisIndex
	ErrInvalidSharedItemIndex   = parser.ErrInvalidSharedItemIndex
	ErrRecordTooWide            = parser.ErrRecordTooWide
)

// PartialDiscoveryError lists the parts that were excluded during discovery.
// The registry returned alongside it holds everything that did parse.
type PartialDiscoveryError struct {
	Errors []*parser.PartError
}

func (e *PartialDiscoveryError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, pe := range e.Errors {
		parts[i] = pe.Error()
	}
	return fmt.Sprintf("partial discovery, %d part(s) excluded: %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes the per-part causes to errors.Is and errors.As.
func (e *PartialDiscoveryError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}

// SourceError explains why a table's data could not be produced.
type SourceError struct {
	Table  string
	Reason string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("pivot table %q: %s: %v", e.Table, e.Reason, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a SourceError wrapping ErrSourceUnavailable.
func NewSourceError(table, reason string) *SourceError {
	return &SourceError{Table: table, Reason: reason, Err: ErrSourceUnavailable}
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}
