package parser

import (
	"errors"
	"testing"
)

const testRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`

const testWorkbook = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets>
<sheet name="Data" sheetId="1" r:id="rId1"/>
<sheet name="Report" sheetId="2" r:id="rId2"/>
</sheets>
<pivotCaches>
<pivotCache cacheId="3" r:id="rId3"/>
<pivotCache cacheId="x" r:id="rId9"/>
</pivotCaches>
</workbook>`

const testWorkbookRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="http://purl.oclc.org/ooxml/officeDocument/relationships/worksheet" Target="/xl/worksheets/sheet2.xml"/>
<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/pivotCacheDefinition" Target="pivotCache/pivotCacheDefinition1.xml"/>
<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>
</Relationships>`

func TestRelsPath(t *testing.T) {
	tests := []struct {
		owner    string
		expected string
	}{
		{"", "_rels/.rels"},
		{"xl/workbook.xml", "xl/_rels/workbook.xml.rels"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/_rels/sheet1.xml.rels"},
	}

	for _, tt := range tests {
		if got := RelsPath(tt.owner); got != tt.expected {
			t.Errorf("RelsPath(%q) = %q, expected %q", tt.owner, got, tt.expected)
		}
	}
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		owner    string
		target   string
		expected string
	}{
		{"", "xl/workbook.xml", "xl/workbook.xml"},
		{"xl/workbook.xml", "worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet2.xml", "../pivotTables/pivotTable1.xml", "xl/pivotTables/pivotTable1.xml"},
		{"xl/workbook.xml", "/xl/worksheets/sheet2.xml", "xl/worksheets/sheet2.xml"},
		{"xl/workbook.xml", "worksheets\\sheet3.xml", "xl/worksheets/sheet3.xml"},
	}

	for _, tt := range tests {
		if got := ResolveTarget(tt.owner, tt.target); got != tt.expected {
			t.Errorf("ResolveTarget(%q, %q) = %q, expected %q", tt.owner, tt.target, got, tt.expected)
		}
	}
}

func TestResolverByType(t *testing.T) {
	a := newTestArchive(t, map[string]string{
		"xl/_rels/workbook.xml.rels": testWorkbookRels,
	})
	r := NewResolver(a)

	sheets, err := r.ByType("xl/workbook.xml", RelWorksheet)
	if err != nil {
		t.Fatalf("ByType failed: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("Expected 2 worksheet edges (transitional and strict), got %d", len(sheets))
	}
	if sheets[1].Target != "xl/worksheets/sheet2.xml" {
		t.Errorf("Expected absolute target resolved, got %q", sheets[1].Target)
	}

	links, err := r.ByType("xl/workbook.xml", "hyperlink")
	if err != nil {
		t.Fatalf("ByType failed: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("Expected external edges to be skipped, got %v", links)
	}
}

func TestResolverByID(t *testing.T) {
	a := newTestArchive(t, map[string]string{
		"xl/_rels/workbook.xml.rels": testWorkbookRels,
	})
	r := NewResolver(a)

	rel, ok, err := r.ByID("xl/workbook.xml", "rId3")
	if err != nil || !ok {
		t.Fatalf("ByID(rId3) = %v, %v, %v", rel, ok, err)
	}
	if !rel.Is(RelPivotCacheDefinition) {
		t.Errorf("Expected pivotCacheDefinition edge, got type %q", rel.Type)
	}
	if rel.Target != "xl/pivotCache/pivotCacheDefinition1.xml" {
		t.Errorf("Unexpected target %q", rel.Target)
	}

	if _, ok, err := r.ByID("xl/workbook.xml", "rId42"); ok || err != nil {
		t.Errorf("Expected missing id to report false, nil; got %v, %v", ok, err)
	}
}

func TestResolverMissingRels(t *testing.T) {
	r := NewResolver(newTestArchive(t, map[string]string{}))

	rels, err := r.Relationships("xl/worksheets/sheet1.xml")
	if err != nil {
		t.Fatalf("Expected no error for a part without rels, got %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("Expected no edges, got %v", rels)
	}
}

func TestResolverMalformedRels(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `<Relationships><Relationship Id="rId1"`},
		{"missing target", `<Relationships><Relationship Id="rId1" Type="x/worksheet"/></Relationships>`},
		{"wrong root", `<Types/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestArchive(t, map[string]string{"xl/_rels/workbook.xml.rels": tt.content})
			_, err := NewResolver(a).Relationships("xl/workbook.xml")
			if !errors.Is(err, ErrMalformedRelationships) {
				t.Fatalf("Expected ErrMalformedRelationships, got %v", err)
			}
			var pe *PartError
			if !errors.As(err, &pe) || pe.Part != "xl/_rels/workbook.xml.rels" {
				t.Errorf("Expected PartError for the rels part, got %v", err)
			}
		})
	}
}

func TestLoadWorkbook(t *testing.T) {
	a := newTestArchive(t, map[string]string{
		"_rels/.rels":                testRootRels,
		"xl/workbook.xml":            testWorkbook,
		"xl/_rels/workbook.xml.rels": testWorkbookRels,
	})

	info, err := LoadWorkbook(a, NewResolver(a))
	if err != nil {
		t.Fatalf("LoadWorkbook failed: %v", err)
	}

	if info.Part != "xl/workbook.xml" {
		t.Errorf("Part = %q", info.Part)
	}
	names := info.SheetNames()
	if len(names) != 2 || names[0] != "Data" || names[1] != "Report" {
		t.Errorf("SheetNames() = %v", names)
	}
	if info.Sheets[0].Part != "xl/worksheets/sheet1.xml" {
		t.Errorf("Sheet part = %q", info.Sheets[0].Part)
	}
	if name, ok := info.LookupSheet("report"); !ok || name != "Report" {
		t.Errorf("LookupSheet(%q) = %q, %v", "report", name, ok)
	}
	if _, ok := info.LookupSheet("Summary"); ok {
		t.Error("Expected LookupSheet to miss an unknown sheet")
	}

	if len(info.PivotCaches) != 1 {
		t.Fatalf("Expected non numeric cacheId to be dropped, got %v", info.PivotCaches)
	}
	pc := info.PivotCaches[0]
	if pc.CacheID != 3 || pc.Part != "xl/pivotCache/pivotCacheDefinition1.xml" {
		t.Errorf("PivotCaches[0] = %+v", pc)
	}
}

func TestLoadWorkbookMissing(t *testing.T) {
	a := newTestArchive(t, map[string]string{"_rels/.rels": testRootRels})

	_, err := LoadWorkbook(a, NewResolver(a))
	if !errors.Is(err, ErrPartNotFound) {
		t.Errorf("Expected ErrPartNotFound, got %v", err)
	}
}
