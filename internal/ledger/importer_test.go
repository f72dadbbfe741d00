package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/adapter/memory"
	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

func blankSno(n int) []domain.Values {
	out := make([]domain.Values, n)
	for i := range out {
		out[i] = domain.Values{Name: fmt.Sprintf("member %d", i), Amount: "10"}
	}
	return out
}

func seqID() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("doc-%06d", n.Add(1)) }
}

func TestPlanImportAssignsFromLastKnown(t *testing.T) {
	const last = 41
	now := time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC)
	plan := planImport(blankSno(5), last, domain.Stamp{At: &now, By: "editor@church.org"}, seqID())

	for i, r := range plan.rows {
		want := int64(last + 1 + i)
		if r.Sno != want {
			t.Fatalf("row %d sno = %d, want %d", i, r.Sno, want)
		}
		if r.SNO != fmt.Sprint(want) {
			t.Fatalf("row %d SNO = %q, want %d", i, r.SNO, want)
		}
		if r.Uploaded.By != "editor@church.org" || r.Uploaded.At == nil {
			t.Fatalf("row %d uploaded stamp = %+v", i, r.Uploaded)
		}
	}
	if plan.last != last+5 {
		t.Fatalf("last = %d, want %d", plan.last, last+5)
	}
}

func TestPlanImportKeepsExplicitSno(t *testing.T) {
	values := []domain.Values{
		{SNO: "20", Name: "Grace"},
		{SNO: "", Name: "John"},
		{SNO: "abc", Name: "Mary"},
		{SNO: "-3", Name: "Paul"},
		{SNO: "7", Name: "Ruth"},
	}
	plan := planImport(values, 4, domain.Stamp{}, seqID())
	want := []int64{20, 5, 6, 7, 7}
	for i, r := range plan.rows {
		if r.Sno != want[i] {
			t.Fatalf("row %d sno = %d, want %d", i, r.Sno, want[i])
		}
	}
	if plan.last != 20 {
		t.Fatalf("last = %d, want 20", plan.last)
	}
}

func TestPlanImportBatchSizes(t *testing.T) {
	for _, k := range []int{0, 1, 499, 500, 501, 1000, 1234} {
		t.Run(fmt.Sprint(k), func(t *testing.T) {
			plan := planImport(blankSno(k), 0, domain.Stamp{}, seqID())
			want := (k + domain.MaxBatchOps - 1) / domain.MaxBatchOps
			if len(plan.batches) != want {
				t.Fatalf("batches = %d, want %d", len(plan.batches), want)
			}
			total := 0
			for i, b := range plan.batches {
				if len(b) > domain.MaxBatchOps {
					t.Fatalf("batch %d has %d rows", i, len(b))
				}
				total += len(b)
			}
			if total != k {
				t.Fatalf("batched rows = %d, want %d", total, k)
			}
		})
	}
}

func TestImporterCommitCollectsFailures(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	boom := errors.New("boom")
	st.SetFaults(memory.Faults{Batch: func(seq int) error {
		if seq == 0 {
			return boom
		}
		return nil
	}})
	plan := planImport(blankSno(1100), 0, domain.Stamp{}, st.NewID)
	im := NewImporter(st, 2, zerolog.Nop())

	failed, failedRows, err := im.commit(ctx, christmas, plan.batches)
	if failed != 1 {
		t.Fatalf("failed batches = %d, want 1", failed)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	rows, _ := st.List(ctx, christmas)
	if len(rows)+failedRows != 1100 {
		t.Fatalf("stored %d + failed %d rows, want 1100", len(rows), failedRows)
	}
}
