package expivot

import (
	"archive/zip"
	"bytes"
	"io"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/ukaji3/expivot-go/pkg/expivot/parser"
)

const relsHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`

const relType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"

// salesParts returns a package with two pivot tables on the Report sheet,
// SalesSummary and SalesByRegion, sharing cache 3 built from Data!A1:C4.
func salesParts() map[string]string {
	return map[string]string{
		"_rels/.rels": relsHeader +
			`<Relationship Id="rId1" Type="` + relType + `officeDocument" Target="xl/workbook.xml"/></Relationships>`,

		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Data" sheetId="1" r:id="rId1"/><sheet name="Report" sheetId="2" r:id="rId2"/></sheets>
<pivotCaches><pivotCache cacheId="3" r:id="rId3"/></pivotCaches>
</workbook>`,

		"xl/_rels/workbook.xml.rels": relsHeader +
			`<Relationship Id="rId1" Type="` + relType + `worksheet" Target="worksheets/sheet1.xml"/>` +
			`<Relationship Id="rId2" Type="` + relType + `worksheet" Target="worksheets/sheet2.xml"/>` +
			`<Relationship Id="rId3" Type="` + relType + `pivotCacheDefinition" Target="pivotCache/pivotCacheDefinition1.xml"/>` +
			`</Relationships>`,

		"xl/worksheets/sheet1.xml": `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData/></worksheet>`,
		"xl/worksheets/sheet2.xml": `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData/></worksheet>`,

		"xl/worksheets/_rels/sheet2.xml.rels": relsHeader +
			`<Relationship Id="rId1" Type="` + relType + `pivotTable" Target="../pivotTables/pivotTable1.xml"/>` +
			`<Relationship Id="rId2" Type="` + relType + `pivotTable" Target="../pivotTables/pivotTable2.xml"/>` +
			`</Relationships>`,

		"xl/pivotTables/pivotTable1.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<pivotTableDefinition xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" name="SalesSummary" cacheId="3" dataCaption="Values">
<location ref="A3:B6" firstHeaderRow="1" firstDataRow="1" firstDataCol="1"/>
<pivotFields count="3">
<pivotField axis="axisRow" showAll="0"><items count="3"><item x="0"/><item x="1"/><item t="default"/></items></pivotField>
<pivotField axis="axisPage" showAll="0"><items count="3"><item x="0"/><item x="1"/><item t="default"/></items></pivotField>
<pivotField dataField="1" showAll="0"/>
</pivotFields>
<rowFields count="1"><field x="0"/></rowFields>
<pageFields count="1"><pageField fld="1" item="1" hier="-1"/></pageFields>
<dataFields count="1"><dataField name="Sum of Sales" fld="2" baseField="0" baseItem="0"/></dataFields>
</pivotTableDefinition>`,

		"xl/pivotTables/_rels/pivotTable1.xml.rels": relsHeader +
			`<Relationship Id="rId1" Type="` + relType + `pivotCacheDefinition" Target="../pivotCache/pivotCacheDefinition1.xml"/></Relationships>`,

		"xl/pivotTables/pivotTable2.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<pivotTableDefinition xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" name="SalesByRegion" cacheId="3" dataCaption="Values">
<location ref="E3:G6" firstHeaderRow="1" firstDataRow="2" firstDataCol="1"/>
<pivotFields count="3">
<pivotField axis="axisRow" showAll="0"><items count="3"><item x="1" n="Southern"/><item x="0"/><item t="default"/></items></pivotField>
<pivotField axis="axisCol" showAll="0"><items count="3"><item x="0"/><item x="1"/><item t="default"/></items></pivotField>
<pivotField dataField="1" showAll="0"/>
</pivotFields>
<rowFields count="1"><field x="0"/></rowFields>
<colFields count="2"><field x="1"/><field x="-2"/></colFields>
<dataFields count="2"><dataField name="Sales" fld="2"/><dataField name="Orders" fld="2" subtotal="count"/></dataFields>
</pivotTableDefinition>`,

		"xl/pivotTables/_rels/pivotTable2.xml.rels": relsHeader +
			`<Relationship Id="rId1" Type="` + relType + `pivotCacheDefinition" Target="../pivotCache/pivotCacheDefinition1.xml"/></Relationships>`,

		"xl/pivotCache/pivotCacheDefinition1.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<pivotCacheDefinition xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" r:id="rId1" recordCount="3">
<cacheSource type="worksheet"><worksheetSource ref="A1:C4" sheet="Data"/></cacheSource>
<cacheFields count="3">
<cacheField name="Region" numFmtId="0"><sharedItems count="2"><s v="North"/><s v="South"/></sharedItems></cacheField>
<cacheField name="Product" numFmtId="0"><sharedItems count="2"><s v="Apple"/><s v="Pear"/></sharedItems></cacheField>
<cacheField name="Sales" numFmtId="0"><sharedItems containsSemiMixedTypes="0" containsString="0" containsNumber="1"/></cacheField>
</cacheFields>
</pivotCacheDefinition>`,

		"xl/pivotCache/_rels/pivotCacheDefinition1.xml.rels": relsHeader +
			`<Relationship Id="rId1" Type="` + relType + `pivotCacheRecords" Target="pivotCacheRecords1.xml"/></Relationships>`,

		"xl/pivotCache/pivotCacheRecords1.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<pivotCacheRecords xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="3">
<r><x v="0"/><x v="0"/><n v="10"/></r>
<r><x v="1"/><x v="1"/><n v="20"/></r>
<r><x v="0"/><x v="1"/><n v="30"/></r>
</pivotCacheRecords>`,
	}
}

// zipParts writes the parts into an in-memory zip.
func zipParts(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create part %s: %v", name, err)
		}
		if _, err := io.WriteString(w, parts[name]); err != nil {
			t.Fatalf("Failed to write part %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// openParts opens a workbook over the parts with a captured logger.
func openParts(t *testing.T, parts map[string]string) (*Workbook, *test.Hook) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	data := zipParts(t, parts)
	wb, err := OpenReader(bytes.NewReader(data), int64(len(data)), Options{Logger: logger})
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb, hook
}

// mustPivots returns the registry and fails on any discovery error.
func mustPivots(t *testing.T, wb *Workbook) *Registry {
	t.Helper()

	reg, err := wb.Pivots()
	if err != nil {
		t.Fatalf("Pivots failed: %v", err)
	}
	return reg
}

// openArchive indexes the parts without a workbook handle.
func openArchive(t *testing.T, parts map[string]string) parser.Archive {
	t.Helper()

	data := zipParts(t, parts)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to read zip: %v", err)
	}
	return parser.NewZipArchive(zr)
}

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}
