// Package expivot discovers pivot tables in xlsx packages and materializes
// their cached data on demand.
package expivot

import (
	"github.com/sirupsen/logrus"
)

// Options configures how a workbook is opened and queried.
type Options struct {
	// Logger receives discovery and materialization diagnostics.
	// If nil, the logrus standard logger is used.
	Logger logrus.FieldLogger
	// Password opens encrypted workbooks for live source reads.
	Password string
	// LiveFallback allows Data to read the source range from the worksheet
	// when a cache stores no records. If nil, defaults to true.
	LiveFallback *bool
}

// DefaultOptions returns default options.
func DefaultOptions() Options {
	return Options{}
}

// ShouldFallBackToLive returns whether Data may read live worksheet cells.
func (o Options) ShouldFallBackToLive() bool {
	if o.LiveFallback != nil {
		return *o.LiveFallback
	}
	return true
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}
