// Package backend connects the configured store to the ledger contracts.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/adapter/memory"
	"github.com/24981a0558-joel/manna-contribution/internal/adapter/repo"
	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/infra"
	"github.com/24981a0558-joel/manna-contribution/internal/ledger"
)

// Backend is an opened store.
type Backend struct {
	Stores  ledger.Stores
	Users   domain.UserRepository
	Kind    string
	ping    func(ctx context.Context) error
	closers []func() error
}

// Ping reports whether the store is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the store connections in reverse order of opening.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// Open connects the store selected by cfg.Store. With migrate set the
// PostgreSQL schema is applied before use.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, migrate bool) (*Backend, error) {
	switch cfg.Store {
	case infra.StoreMemory:
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		st := memory.New()
		return &Backend{
			Stores: ledger.Stores{Contributions: st, Feed: st, Counters: st, Audit: st},
			Users:  memory.NewUsers(),
			Kind:   infra.StoreMemory,
		}, nil
	case infra.StorePostgres:
		return openPostgres(ctx, cfg, logger, migrate)
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func openPostgres(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, migrate bool) (*Backend, error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		Kind:    infra.StorePostgres,
		ping:    pool.Ping,
		closers: []func() error{func() error { pool.Close(); return nil }},
	}
	if migrate {
		if err := infra.Migrate(ctx, pool, logger); err != nil {
			_ = b.Close()
			return nil, err
		}
	}

	runner := infra.NewSQLRunner(pool, logger)
	contributions := repo.NewContributionRepository(runner)
	feed, err := repo.NewFeed(cfg.DatabaseURL, contributions, logger)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.closers = append(b.closers, feed.Close)
	b.Stores = ledger.Stores{
		Contributions: contributions,
		Feed:          feed,
		Counters:      repo.NewCounterRepository(runner),
		Audit:         repo.NewAuditRepository(runner),
	}
	b.Users = repo.NewUserRepository(runner)
	return b, nil
}
