package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/access"
	"github.com/24981a0558-joel/manna-contribution/internal/backend"
	"github.com/24981a0558-joel/manna-contribution/internal/catalog"
	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/infra"
	"github.com/24981a0558-joel/manna-contribution/internal/ledger"
)

// env is the connected store every command works on.
type env struct {
	cfg    *infra.Config
	logger zerolog.Logger
	store  *backend.Backend
}

func openEnv(ctx context.Context, migrate bool) (*env, error) {
	cfg, err := infra.LoadToolConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	logger := infra.NewLogger(cfg.AppEnv, level)
	store, err := backend.Open(ctx, cfg, logger, migrate)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) close() { _ = e.store.Close() }

// actor is the operator. Terminal access to the database already implies
// full control, so the operator acts as admin.
func (e *env) actor() domain.Actor {
	return domain.Actor{Identity: domain.Identity{Email: *operator, DisplayName: *operator}, Role: domain.UserRoleAdmin}
}

func (e *env) directory() *access.Directory {
	return access.NewDirectory(e.store.Users, e.logger)
}

func (e *env) service() *ledger.Service {
	return ledger.NewService(e.store.Stores, catalog.Default(), e.logger, ledger.Options{
		ImportConcurrency: e.cfg.ImportConcurrency,
		AuditTimeout:      e.cfg.AuditTimeout,
		AuditListLimit:    e.cfg.AuditListLimit,
		WriteTimeout:      e.cfg.WriteTimeout,
	})
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
}
