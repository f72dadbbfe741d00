package sheet

import (
	"fmt"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// Encode writes rows as a single sheet with the columns SNO, DATE, NAME,
// PHONE and AMOUNT. The sheet name only applies to workbooks.
func Encode(f Format, sheetName string, rows []domain.Values) ([]byte, error) {
	switch f {
	case CSV:
		return encodeCSV(rows)
	case XLSX:
		return encodeWorkbook(sheetName, rows)
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, f)
}

func encodeCSV(rows []domain.Values) ([]byte, error) {
	records := make([]record, len(rows))
	for i, v := range rows {
		records[i] = fromValues(v)
	}
	out, err := csvutil.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CSV: %w", err)
	}
	return out, nil
}

func encodeWorkbook(sheetName string, rows []domain.Values) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := SheetName(sheetName)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	head := header()
	if err := f.SetSheetRow(name, "A1", &head); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, v := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		line := make([]string, len(domain.Fields))
		for j, fld := range domain.Fields {
			line[j] = v.Get(fld)
		}
		if err := f.SetSheetRow(name, cell, &line); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SheetName makes name usable as a worksheet title: at most 31 characters
// and none of : \ / ? * [ ].
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "Sheet1"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}
