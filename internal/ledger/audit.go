package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/metrics"
)

// Auditor appends audit entries in the background.
//
// Every entry is written by its own goroutine after the primary mutation has
// already committed. A failed write is logged and counted but never rolled
// back against the mutation and never reported to the caller, so a successful
// mutation can end up without an audit entry. This gap is accepted.
type Auditor struct {
	repo    domain.AuditRepository
	logger  zerolog.Logger
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

// NewAuditor creates a recorder. A zero timeout means 10 seconds.
func NewAuditor(repo domain.AuditRepository, logger zerolog.Logger, timeout time.Duration) *Auditor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Auditor{
		repo:    repo,
		logger:  logger.With().Str("component", "audit").Logger(),
		timeout: timeout,
		now:     time.Now,
	}
}

// Record schedules one audit entry and returns immediately. The write
// outlives cancellation of ctx.
func (a *Auditor) Record(ctx context.Context, action domain.AuditAction, p domain.Partition, payload, previous map[string]any, actor domain.Actor) {
	entry := domain.AuditEntry{
		ID:           uuid.NewString(),
		Action:       action,
		Partition:    p.Label(),
		Data:         payload,
		PreviousData: previous,
		UserEmail:    actor.StampName(),
		UserName:     actor.DisplayLabel(),
		Timestamp:    a.now(),
	}
	detached := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(detached, a.timeout)
		defer cancel()
		if err := a.repo.Append(ctx, &entry); err != nil {
			metrics.AuditWritesTotal.WithLabelValues("error").Inc()
			a.logger.Error().Err(err).
				Str("action", string(entry.Action)).
				Str("event", entry.Partition).
				Str("user", entry.UserEmail).
				Msg("audit log failed")
			return
		}
		metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
	}()
}

// Wait blocks until every scheduled entry has been attempted.
func (a *Auditor) Wait() {
	a.wg.Wait()
}
