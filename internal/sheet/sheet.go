// Package sheet reads and writes contribution spreadsheets.
package sheet

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// Format is a supported spreadsheet encoding.
type Format string

const (
	XLSX Format = "xlsx"
	CSV  Format = "csv"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ParseFormat maps a format name onto a Format. Empty means XLSX.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", XLSX:
		return XLSX, nil
	case CSV:
		return CSV, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, s)
}

// Detect picks the format of an uploaded file from its content, falling back
// to the file extension. Legacy binary workbooks are rejected.
func Detect(filename string, data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return XLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return "", fmt.Errorf("%w: legacy .xls workbook, save as .xlsx", domain.ErrUnsupportedFormat)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", "":
		return CSV, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(filename))
}

// Ext is the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// ContentType is the MIME type served for exports.
func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename names an export, e.g. Christmas_2024_5-Dec-2024.xlsx.
func Filename(eventName string, year int, now time.Time, f Format) string {
	return fmt.Sprintf("%s_%d_%s%s", eventName, year, domain.FormatDate(now), f.Ext())
}

// record is the column layout shared by import and export.
type record struct {
	SNO    string `csv:"SNO"`
	DATE   string `csv:"DATE"`
	NAME   string `csv:"NAME"`
	PHONE  string `csv:"PHONE"`
	AMOUNT string `csv:"AMOUNT"`
}

func (r record) values() domain.Values {
	return domain.Values{SNO: r.SNO, Date: r.DATE, Name: r.NAME, Phone: r.PHONE, Amount: r.AMOUNT}
}

func fromValues(v domain.Values) record {
	return record{SNO: v.SNO, DATE: v.Date, NAME: v.Name, PHONE: v.Phone, AMOUNT: v.Amount}
}

// header lists the export columns in table order.
func header() []string {
	out := make([]string, len(domain.Fields))
	for i, f := range domain.Fields {
		out[i] = string(f)
	}
	return out
}
