// Package parser provides OOXML part parsing for pivot tables and caches.
package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// Archive gives access to the parts of an OOXML package. Open must allow the
// same part to be read any number of times.
type Archive interface {
	Open(name string) (io.ReadCloser, error)
	Parts() []string
}

// ZipArchive is an Archive backed by a zip reader.
type ZipArchive struct {
	files map[string]*zip.File
	fold  map[string]*zip.File
	names []string
}

// NewZipArchive indexes the entries of r.
func NewZipArchive(r *zip.Reader) *ZipArchive {
	a := &ZipArchive{
		files: make(map[string]*zip.File, len(r.File)),
		fold:  make(map[string]*zip.File, len(r.File)),
	}
	for _, f := range r.File {
		name := strings.TrimPrefix(f.Name, "/")
		if _, dup := a.files[name]; dup {
			continue
		}
		a.files[name] = f
		a.fold[strings.ToLower(name)] = f
		a.names = append(a.names, name)
	}
	sort.Strings(a.names)
	return a
}

// Open opens a part by name. Part names are matched case-insensitively as a
// fallback, since OOXML part names are case-insensitive.
func (a *ZipArchive) Open(name string) (io.ReadCloser, error) {
	name = strings.TrimPrefix(name, "/")
	f, ok := a.files[name]
	if !ok {
		f, ok = a.fold[strings.ToLower(name)]
	}
	if !ok {
		return nil, NewPartError(name, ErrPartNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, NewPartError(name, err)
	}
	return rc, nil
}

// Parts returns all part names in sorted order.
func (a *ZipArchive) Parts() []string {
	return append([]string(nil), a.names...)
}

// ReadPart reads a whole part into memory.
func ReadPart(a Archive, name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// newDecoder returns an XML decoder that understands non UTF-8 encodings
// declared in the XML prolog.
func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return d
}

// malformed wraps a decoder error as ErrMalformedXML.
func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedXML, err)
}

// attr returns the value of the attribute with the given local name.
func attr(se xml.StartElement, local string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// attrInt returns an integer attribute, or def when absent or invalid.
func attrInt(se xml.StartElement, local string, def int) int {
	v, ok := attr(se, local)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// attrBool returns a boolean attribute, or def when absent.
func attrBool(se xml.StartElement, local string, def bool) bool {
	v, ok := attr(se, local)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true":
		return true
	case "0", "false":
		return false
	}
	return def
}

// skipElement consumes tokens up to the end of the element just started.
func skipElement(decoder *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		switch token.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}
