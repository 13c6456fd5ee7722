package parser

import (
	"testing"

	"github.com/ukaji3/expivot-go/pkg/expivot/models"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		ref      string
		expected models.CellRange
	}{
		{"A1:D10", models.CellRange{Ref: "A1:D10", C1: 1, R1: 1, C2: 4, R2: 10}},
		{"$B$2:$C$5", models.CellRange{Ref: "$B$2:$C$5", C1: 2, R1: 2, C2: 3, R2: 5}},
		{"C3", models.CellRange{Ref: "C3", C1: 3, R1: 3, C2: 3, R2: 3}},
		{"D10:A1", models.CellRange{Ref: "D10:A1", C1: 1, R1: 1, C2: 4, R2: 10}},
		{"A:C", models.CellRange{Ref: "A:C", C1: 1, R1: 1, C2: 3, R2: maxRows}},
	}

	for _, tt := range tests {
		got, err := ParseRange(tt.ref)
		if err != nil {
			t.Errorf("ParseRange(%q) failed: %v", tt.ref, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseRange(%q) = %+v, expected %+v", tt.ref, got, tt.expected)
		}
	}
}

func TestParseRangeInvalid(t *testing.T) {
	for _, ref := range []string{"", "A1:B2:C3", "1A", "!!"} {
		if _, err := ParseRange(ref); err == nil {
			t.Errorf("ParseRange(%q) expected error", ref)
		}
	}
}

func TestFormatRange(t *testing.T) {
	tests := []struct {
		c1, r1, c2, r2 int
		expected       string
	}{
		{1, 1, 4, 10, "A1:D10"},
		{27, 2, 28, 3, "AA2:AB3"},
		{2, 2, 2, 2, "B2"},
	}

	for _, tt := range tests {
		got, err := FormatRange(tt.c1, tt.r1, tt.c2, tt.r2)
		if err != nil {
			t.Errorf("FormatRange failed: %v", err)
			continue
		}
		if got != tt.expected {
			t.Errorf("FormatRange(%d, %d, %d, %d) = %q, expected %q", tt.c1, tt.r1, tt.c2, tt.r2, got, tt.expected)
		}
	}
}

func TestSplitSheetRef(t *testing.T) {
	tests := []struct {
		ref   string
		sheet string
		rng   string
	}{
		{"Data!A1:B2", "Data", "A1:B2"},
		{"'Sales Data'!$A$1:$D$10", "Sales Data", "$A$1:$D$10"},
		{"'Bob''s'!C3", "Bob's", "C3"},
		{"=Sheet1!A:A", "Sheet1", "A:A"},
		{"A1:B2", "", "A1:B2"},
	}

	for _, tt := range tests {
		sheet, rng := SplitSheetRef(tt.ref)
		if sheet != tt.sheet || rng != tt.rng {
			t.Errorf("SplitSheetRef(%q) = %q, %q, expected %q, %q", tt.ref, sheet, rng, tt.sheet, tt.rng)
		}
	}
}

func TestRangeFromFormula(t *testing.T) {
	tests := []struct {
		formula string
		sheet   string
		rng     string
		ok      bool
	}{
		{"Data!$A$1:$D$10", "Data", "$A$1:$D$10", true},
		{"='Sales Data'!$A$1:$C$4", "Sales Data", "$A$1:$C$4", true},
		{"OFFSET(Data!$A$1,0,0,COUNTA(Data!$A:$A),4)", "", "", false},
		{"Data!$A$1:$B$2+1", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		sheet, rng, ok := RangeFromFormula(tt.formula)
		if ok != tt.ok || sheet != tt.sheet || rng != tt.rng {
			t.Errorf("RangeFromFormula(%q) = %q, %q, %v, expected %q, %q, %v",
				tt.formula, sheet, rng, ok, tt.sheet, tt.rng, tt.ok)
		}
	}
}
