package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field enumerates the display columns of a contribution row.
type Field string

const (
	FieldSNO    Field = "SNO"
	FieldDate   Field = "DATE"
	FieldName   Field = "NAME"
	FieldPhone  Field = "PHONE"
	FieldAmount Field = "AMOUNT"
)

// Fields lists the display columns in table order.
var Fields = []Field{FieldSNO, FieldDate, FieldName, FieldPhone, FieldAmount}

// ParseField maps a column name onto a known field, ignoring case and
// surrounding whitespace.
func ParseField(s string) (Field, bool) {
	f := Field(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Fields {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Numeric reports whether values of the field sort as numbers.
func (f Field) Numeric() bool {
	return f == FieldSNO || f == FieldAmount
}

// Values holds the user-editable columns of a contribution.
type Values struct {
	SNO    string `json:"SNO"`
	Date   string `json:"DATE"`
	Name   string `json:"NAME"`
	Phone  string `json:"PHONE"`
	Amount string `json:"AMOUNT"`
}

// Get returns the value stored under f.
func (v Values) Get(f Field) string {
	switch f {
	case FieldSNO:
		return v.SNO
	case FieldDate:
		return v.Date
	case FieldName:
		return v.Name
	case FieldPhone:
		return v.Phone
	case FieldAmount:
		return v.Amount
	}
	return ""
}

// Set stores s under f. Unknown fields are ignored.
func (v *Values) Set(f Field, s string) {
	switch f {
	case FieldSNO:
		v.SNO = s
	case FieldDate:
		v.Date = s
	case FieldName:
		v.Name = s
	case FieldPhone:
		v.Phone = s
	case FieldAmount:
		v.Amount = s
	}
}

// IsBlank reports whether every column is empty.
func (v Values) IsBlank() bool {
	for _, f := range Fields {
		if strings.TrimSpace(v.Get(f)) != "" {
			return false
		}
	}
	return true
}

// Joined concatenates every column separated by a space.
func (v Values) Joined() string {
	parts := make([]string, len(Fields))
	for i, f := range Fields {
		parts[i] = v.Get(f)
	}
	return strings.Join(parts, " ")
}

// Stamp records when and by whom a lifecycle step happened.
type Stamp struct {
	At *time.Time `json:"at,omitempty"`
	By string     `json:"by,omitempty"`
}

// IsZero reports whether the stamp was never set.
func (s Stamp) IsZero() bool { return s.At == nil && s.By == "" }

// Contribution is one row of a partition ledger.
type Contribution struct {
	ID string `json:"id"`
	Values
	// Sno is the integer form of SNO used for ordering and counter bookkeeping.
	Sno      int64 `json:"sno"`
	Added    Stamp `json:"added"`
	Updated  Stamp `json:"updated"`
	Uploaded Stamp `json:"uploaded"`
}

// Payload returns the audit snapshot of the contribution.
func (c Contribution) Payload() map[string]any {
	out := map[string]any{
		"id":  c.ID,
		"sno": c.Sno,
	}
	for _, f := range Fields {
		out[string(f)] = c.Get(f)
	}
	return out
}

// ParseSno reads a leading integer from s the way a lenient spreadsheet
// reader would: surrounding whitespace and trailing garbage are ignored.
// Only positive values are accepted.
func ParseSno(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// FormatDate renders t the way the ledger displays dates, e.g. 5-Dec-2024.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d-%s-%d", t.Day(), t.Format("Jan"), t.Year())
}
