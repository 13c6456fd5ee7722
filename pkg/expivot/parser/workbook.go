package parser

import (
	"io"
	"strconv"
	"strings"
)

// DefaultWorkbookPart is used when the package root has no officeDocument edge.
const DefaultWorkbookPart = "xl/workbook.xml"

// xlsxWorkbook maps the parts of the workbook element needed to reach pivot
// tables and caches.
type xlsxWorkbook struct {
	Sheets []struct {
		Name    string `xml:"name,attr"`
		SheetID string `xml:"sheetId,attr"`
		ID      string `xml:"id,attr"`
	} `xml:"sheets>sheet"`
	PivotCaches []struct {
		CacheID string `xml:"cacheId,attr"`
		ID      string `xml:"id,attr"`
	} `xml:"pivotCaches>pivotCache"`
}

// SheetRef is a sheet declared in the workbook part.
type SheetRef struct {
	Name  string
	RelID string
	// Part is the worksheet part path, empty until resolved.
	Part string
}

// PivotCacheRef maps a workbook cache id to a cache definition edge.
type PivotCacheRef struct {
	CacheID int
	RelID   string
	// Part is the cache definition part path, empty until resolved.
	Part string
}

// WorkbookInfo is the decoded workbook part.
type WorkbookInfo struct {
	Part        string
	Sheets      []SheetRef
	PivotCaches []PivotCacheRef
}

// SheetNames returns the sheet names in workbook order.
func (w *WorkbookInfo) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// LookupSheet returns the workbook spelling of a sheet name, ignoring case.
func (w *WorkbookInfo) LookupSheet(name string) (string, bool) {
	for _, s := range w.Sheets {
		if strings.EqualFold(s.Name, name) {
			return s.Name, true
		}
	}
	return "", false
}

// ParseWorkbook decodes a workbook part. Cache entries with a non numeric
// cacheId are dropped.
func ParseWorkbook(r io.Reader) (*WorkbookInfo, error) {
	var wb xlsxWorkbook
	if err := newDecoder(r).Decode(&wb); err != nil {
		return nil, malformed(err)
	}

	info := &WorkbookInfo{}
	for _, s := range wb.Sheets {
		if s.Name == "" {
			continue
		}
		info.Sheets = append(info.Sheets, SheetRef{Name: s.Name, RelID: s.ID})
	}
	for _, pc := range wb.PivotCaches {
		id, err := strconv.Atoi(strings.TrimSpace(pc.CacheID))
		if err != nil || pc.ID == "" {
			continue
		}
		info.PivotCaches = append(info.PivotCaches, PivotCacheRef{CacheID: id, RelID: pc.ID})
	}
	return info, nil
}

// LoadWorkbook locates the workbook part through the package root
// relationships and resolves its sheets and pivot caches to part paths.
func LoadWorkbook(archive Archive, resolver *Resolver) (*WorkbookInfo, error) {
	part := DefaultWorkbookPart
	docs, err := resolver.ByType("", RelOfficeDocument)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		part = docs[0].Target
	}

	rc, err := archive.Open(part)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	info, err := ParseWorkbook(rc)
	if err != nil {
		return nil, NewPartError(part, err)
	}
	info.Part = part

	for i, s := range info.Sheets {
		rel, ok, err := resolver.ByID(part, s.RelID)
		if err != nil {
			return nil, err
		}
		if ok && rel.Is(RelWorksheet) {
			info.Sheets[i].Part = rel.Target
		}
	}
	for i, pc := range info.PivotCaches {
		rel, ok, err := resolver.ByID(part, pc.RelID)
		if err != nil {
			return nil, err
		}
		if ok && rel.Is(RelPivotCacheDefinition) {
			info.PivotCaches[i].Part = rel.Target
		}
	}
	return info, nil
}
