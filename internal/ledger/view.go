package ledger

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// Direction is the sort order of a view.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Query selects, orders and aggregates the rows of a view.
type Query struct {
	Search    string
	SortKey   domain.Field
	Direction Direction
}

// DefaultQuery orders by SNO ascending without filtering.
var DefaultQuery = Query{SortKey: domain.FieldSNO, Direction: Asc}

// ParseQuery builds a query from request parameters. Empty sort parameters
// fall back to DefaultQuery.
func ParseQuery(search, sortKey, direction string) (Query, error) {
	q := DefaultQuery
	q.Search = search
	if strings.TrimSpace(sortKey) != "" {
		f, ok := domain.ParseField(sortKey)
		if !ok {
			return Query{}, fmt.Errorf("%w: unknown sort key %q", domain.ErrInvalidInput, sortKey)
		}
		q.SortKey = f
	}
	switch Direction(strings.ToLower(strings.TrimSpace(direction))) {
	case "", Asc:
		q.Direction = Asc
	case Desc:
		q.Direction = Desc
	default:
		return Query{}, fmt.Errorf("%w: unknown sort direction %q", domain.ErrInvalidInput, direction)
	}
	return q, nil
}

// View is a projection of the cached rows.
type View struct {
	Rows  []domain.Contribution
	Count int
	// Total sums AMOUNT over the filtered rows.
	Total decimal.Decimal
}

// Project filters, sorts and totals rows without touching the input slice.
func Project(rows []domain.Contribution, q Query) View {
	filtered := Filter(rows, q.Search)
	return View{
		Rows:  Sort(filtered, q.SortKey, q.Direction),
		Count: len(filtered),
		Total: Total(filtered),
	}
}

// Filter keeps the rows whose joined column values contain search, ignoring
// case. An empty search keeps everything.
func Filter(rows []domain.Contribution, search string) []domain.Contribution {
	if search == "" {
		return slices.Clone(rows)
	}
	needle := strings.ToLower(search)
	out := make([]domain.Contribution, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Joined()), needle) {
			out = append(out, r)
		}
	}
	return out
}

// Sort returns a stably sorted copy of rows. SNO and AMOUNT compare by their
// numeric value, every other field compares as text. An empty key keeps the
// input order.
func Sort(rows []domain.Contribution, key domain.Field, dir Direction) []domain.Contribution {
	out := slices.Clone(rows)
	if key == "" {
		return out
	}
	cmp := func(a, b domain.Contribution) int {
		return strings.Compare(a.Get(key), b.Get(key))
	}
	if key.Numeric() {
		cmp = func(a, b domain.Contribution) int {
			return Amount(a.Get(key)).Cmp(Amount(b.Get(key)))
		}
	}
	if dir == Desc {
		asc := cmp
		cmp = func(a, b domain.Contribution) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

// Total sums the AMOUNT column of rows.
func Total(rows []domain.Contribution) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(Amount(r.Amount))
	}
	return sum
}

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.\-]`)
	numericPrefix = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)
)

// Amount extracts the numeric value of a cell. Every character other than
// digits, dots and minus signs is dropped, then the longest leading decimal
// is read; anything unreadable is zero. "₹1,200" reads as 1200.
func Amount(s string) decimal.Decimal {
	m := numericPrefix.FindString(nonNumeric.ReplaceAllString(s, ""))
	if m == "" {
		return decimal.Zero
	}
	m = strings.TrimSuffix(m, ".")
	switch {
	case strings.HasPrefix(m, "-."):
		m = "-0" + m[1:]
	case strings.HasPrefix(m, "."):
		m = "0" + m
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatTotal renders an amount in the currency's display format, e.g.
// ₹1,200.00 for INR.
func FormatTotal(total decimal.Decimal, currency string) string {
	cur := *money.New(0, currency).Currency()
	minor := total.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
