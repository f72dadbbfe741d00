package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// Decode reads the first sheet of data. The first row is the header; its
// names are trimmed and uppercased, and columns other than the known fields
// are dropped. Rows without any known value are skipped.
func Decode(f Format, data []byte) ([]domain.Values, error) {
	var (
		table [][]string
		err   error
	)
	switch f {
	case XLSX:
		table, err = readWorkbook(data)
	case CSV:
		table, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, err
	}
	if len(table) < 2 {
		return nil, nil
	}

	dec, err := csvutil.NewDecoder(&tableReader{rows: table[1:], width: len(table[0])}, normalizeHeader(table[0])...)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	var out []domain.Values
	for {
		var r record
		if err := dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		v := r.values()
		if v.IsBlank() {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// normalizeHeader uppercases names, names empty cells __EMPTY_i and suffixes
// repeated names with _1, _2 so only the first copy maps onto a field.
func normalizeHeader(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.ToUpper(strings.TrimSpace(h))
		if h == "" {
			h = "__EMPTY_" + strconv.Itoa(i)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = h + "_" + strconv.Itoa(n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

// tableReader feeds an in-memory table to csvutil, padding or cutting every
// row to the header width.
type tableReader struct {
	rows  [][]string
	width int
	next  int
}

func (t *tableReader) Read() ([]string, error) {
	if t.next >= len(t.rows) {
		return nil, io.EOF
	}
	row := t.rows[t.next]
	t.next++
	out := make([]string, t.width)
	copy(out, row)
	return out, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	table, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return table, nil
}

// readWorkbook returns the formatted cell text of the first sheet. Numeric
// cells under a DATE header are read as spreadsheet date serials and shown
// as d-Mon-yyyy.
func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	dateCol := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), string(domain.FieldDate)) {
			dateCol = i
			break
		}
	}
	if dateCol < 0 {
		return rows, nil
	}
	raw, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	for i := 1; i < len(rows) && i < len(raw); i++ {
		if dateCol >= len(rows[i]) || dateCol >= len(raw[i]) {
			continue
		}
		serial, err := strconv.ParseFloat(strings.TrimSpace(raw[i][dateCol]), 64)
		if err != nil || serial <= 0 {
			continue
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			continue
		}
		rows[i][dateCol] = domain.FormatDate(t)
	}
	return rows, nil
}
