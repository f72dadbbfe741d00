package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/metrics"
)

// ImportResult reports the aggregate outcome of a bulk import. Per-row
// failures are not retained.
type ImportResult struct {
	Rows          int   `json:"rows"`
	Batches       int   `json:"batches"`
	FailedBatches int   `json:"failedBatches"`
	FailedRows    int   `json:"failedRows"`
	Counter       int64 `json:"counter"`
}

// Committed returns how many rows landed in the store.
func (r ImportResult) Committed() int { return r.Rows - r.FailedRows }

// importPlan is the normalized form of one import before any write.
type importPlan struct {
	rows    []domain.Contribution
	batches [][]domain.Contribution
	// last is the counter value to reserve once all batches were attempted.
	last int64
}

// planImport assigns sno values and splits rows into commit batches.
//
// A row whose SNO parses as a positive integer keeps it. Every other row gets
// the next value of a running counter that starts at last. The returned
// counter covers both, so no committed sno ends up above it.
func planImport(values []domain.Values, last int64, stamp domain.Stamp, newID func() string) importPlan {
	plan := importPlan{rows: make([]domain.Contribution, 0, len(values))}
	running := last
	highest := last
	for _, v := range values {
		sno, ok := domain.ParseSno(v.SNO)
		if !ok {
			running++
			sno = running
		}
		if sno > highest {
			highest = sno
		}
		v.SNO = fmt.Sprint(sno)
		plan.rows = append(plan.rows, domain.Contribution{
			ID:       newID(),
			Values:   v,
			Sno:      sno,
			Uploaded: stamp,
		})
	}
	plan.last = highest
	plan.batches = chunk(plan.rows, domain.MaxBatchOps)
	return plan
}

func chunk(rows []domain.Contribution, size int) [][]domain.Contribution {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]domain.Contribution, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end:end])
	}
	return out
}

// Importer commits planned batches concurrently. Batches are independent:
// one failing batch neither cancels nor rolls back the others.
type Importer struct {
	repo        domain.ContributionRepository
	concurrency int
	logger      zerolog.Logger
}

// NewImporter creates an importer running at most concurrency commits at a
// time. Non-positive concurrency means unbounded.
func NewImporter(repo domain.ContributionRepository, concurrency int, logger zerolog.Logger) *Importer {
	return &Importer{
		repo:        repo,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "importer").Logger(),
	}
}

// commit attempts every batch and reports how many failed and how many rows
// they carried. The first failure is returned for logging.
func (im *Importer) commit(ctx context.Context, p domain.Partition, batches [][]domain.Contribution) (failedBatches, failedRows int, firstErr error) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if im.concurrency > 0 {
		g.SetLimit(im.concurrency)
	}
	for i, batch := range batches {
		g.Go(func() error {
			started := time.Now()
			err := im.repo.CommitBatch(ctx, p, batch)
			metrics.BatchCommitDuration.Observe(time.Since(started).Seconds())
			if err != nil {
				metrics.ImportBatchesTotal.WithLabelValues("error").Inc()
				im.logger.Error().Err(err).
					Str("partition", p.Label()).
					Int("batch", i).
					Int("rows", len(batch)).
					Msg("batch commit failed")
				mu.Lock()
				failedBatches++
				failedRows += len(batch)
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			metrics.ImportBatchesTotal.WithLabelValues("ok").Inc()
			metrics.ImportRowsTotal.Add(float64(len(batch)))
			return nil
		})
	}
	_ = g.Wait()
	return failedBatches, failedRows, firstErr
}

// errAllBatchesFailed marks an import in which nothing was written.
var errAllBatchesFailed = errors.New("every batch failed")
