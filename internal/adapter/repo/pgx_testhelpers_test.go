package repo

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// call records one statement sent to the fake executor.
type call struct {
	query string
	args  []any
}

// fakeSQL is a scripted infra.SQLBatchExecutor. Rows are returned for the
// next Query or QueryRow call in order; err fails every call.
type fakeSQL struct {
	calls   []call
	batches [][][]any
	results [][][]any
	err     error
}

func (f *fakeSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{query: query, args: args})
	return pgconn.NewCommandTag("OK"), f.err
}

func (f *fakeSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	rows, err := f.Query(ctx, query, args...)
	if err != nil {
		return simpleRow{err: err}
	}
	r := rows.(*testRows)
	if len(r.data) == 0 {
		return simpleRow{err: pgx.ErrNoRows}
	}
	return simpleRow{values: r.data[0]}
}

func (f *fakeSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, call{query: query, args: args})
	if f.err != nil {
		return nil, f.err
	}
	var data [][]any
	if len(f.results) > 0 {
		data, f.results = f.results[0], f.results[1:]
	}
	return &testRows{data: data, next: -1}, nil
}

func (f *fakeSQL) ExecBatch(ctx context.Context, query string, argLists [][]any) error {
	f.calls = append(f.calls, call{query: query})
	f.batches = append(f.batches, argLists)
	return f.err
}

// marker returns the first line of the last statement.
func (f *fakeSQL) marker() string {
	if len(f.calls) == 0 {
		return ""
	}
	line, _, _ := strings.Cut(f.calls[len(f.calls)-1].query, "\n")
	return line
}

// assign copies values into scan destinations. A nil value leaves the
// destination at its zero value.
func assign(values []any, dest ...any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: column %d: %T into %s", i, v, target.Type())
		}
		target.Set(val)
	}
	return nil
}

type simpleRow struct {
	values []any
	err    error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest...)
}

type testRows struct {
	data [][]any
	next int
}

func (r *testRows) Close()                                       {}
func (r *testRows) Err() error                                   { return nil }
func (r *testRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *testRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *testRows) Conn() *pgx.Conn                              { return nil }
func (r *testRows) RawValues() [][]byte                          { return nil }

func (r *testRows) Next() bool {
	r.next++
	return r.next < len(r.data)
}

func (r *testRows) Scan(dest ...any) error { return assign(r.data[r.next], dest...) }

func (r *testRows) Values() ([]any, error) { return r.data[r.next], nil }
