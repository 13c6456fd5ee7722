package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ukaji3/expivot-go/pkg/expivot/models"
	"github.com/xuri/efp"
	"github.com/xuri/excelize/v2"
)

// maxRows is the last worksheet row, used for whole column references.
const maxRows = 1048576

// ParseRange parses an A1 style reference such as A1:D10, $A$1:$D$10, B2 or
// the whole column form A:D into a CellRange.
func ParseRange(ref string) (models.CellRange, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(ref), "$", "")
	if clean == "" {
		return models.CellRange{}, fmt.Errorf("empty range reference")
	}

	parts := strings.Split(clean, ":")
	if len(parts) > 2 {
		return models.CellRange{}, fmt.Errorf("invalid range reference %q", ref)
	}
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}

	c1, r1, err := parseCorner(parts[0], 1)
	if err != nil {
		return models.CellRange{}, err
	}
	c2, r2, err := parseCorner(parts[1], maxRows)
	if err != nil {
		return models.CellRange{}, err
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	if r1 > r2 {
		r1, r2 = r2, r1
	}

	return models.CellRange{Ref: strings.TrimSpace(ref), C1: c1, R1: r1, C2: c2, R2: r2}, nil
}

// parseCorner parses a cell name, or a bare column name using row.
func parseCorner(s string, row int) (int, int, error) {
	if s != "" && strings.IndexFunc(s, unicode.IsDigit) < 0 {
		col, err := excelize.ColumnNameToNumber(s)
		if err != nil {
			return 0, 0, err
		}
		return col, row, nil
	}
	return excelize.CellNameToCoordinates(s)
}

// FormatRange renders coordinates as an A1:B2 reference.
func FormatRange(c1, r1, c2, r2 int) (string, error) {
	start, err := excelize.CoordinatesToCellName(c1, r1)
	if err != nil {
		return "", err
	}
	end, err := excelize.CoordinatesToCellName(c2, r2)
	if err != nil {
		return "", err
	}
	if start == end {
		return start, nil
	}
	return start + ":" + end, nil
}

// SplitSheetRef splits a qualified reference like 'Sales Data'!$A$1:$D$10 into
// the sheet name and the range. References without a sheet return "" as sheet.
func SplitSheetRef(ref string) (sheet, rng string) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "=")
	idx := strings.LastIndex(ref, "!")
	if idx < 0 {
		return "", ref
	}
	sheet = ref[:idx]
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, ref[idx+1:]
}

// RangeFromFormula extracts the range operand of a defined name formula.
// It reports false when the formula is not a single range reference, for
// example OFFSET based dynamic names.
func RangeFromFormula(formula string) (sheet, rng string, ok bool) {
	ps := efp.ExcelParser()
	tokens := ps.Parse(strings.TrimPrefix(strings.TrimSpace(formula), "="))
	var operand string
	for _, token := range tokens {
		if token.TType == efp.TokenTypeOperand && token.TSubType == efp.TokenSubTypeRange {
			if operand != "" {
				return "", "", false
			}
			operand = token.TValue
			continue
		}
		return "", "", false
	}
	if operand == "" {
		return "", "", false
	}
	sheet, rng = SplitSheetRef(operand)
	if _, err := ParseRange(rng); err != nil {
		return "", "", false
	}
	return sheet, rng, true
}
