package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/access"
	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/ledger"
	"github.com/24981a0558-joel/manna-contribution/internal/middleware"
)

// IdentityVerifier exchanges an identity provider token for the account it
// was issued to.
type IdentityVerifier interface {
	Identity(ctx context.Context, token string) (domain.Identity, error)
}

type App struct {
	Logger     zerolog.Logger
	Ledger     *ledger.Service
	Directory  *access.Directory
	Resolver   *access.Resolver
	Verifier   IdentityVerifier
	JWTSecret  string
	SessionTTL time.Duration
	Currency   string
	// MaxUpload bounds the size of an imported spreadsheet.
	MaxUpload int64
	// Heartbeat is the interval of keep-alive comments on event streams.
	Heartbeat time.Duration
	// Ping probes the store for the health endpoint; nil skips the probe.
	Ping      func(ctx context.Context) error
	StoreKind string

	now func() time.Time
}

func NewApp(logger zerolog.Logger, svc *ledger.Service, dir *access.Directory, resolver *access.Resolver, verifier IdentityVerifier) *App {
	return &App{
		Logger:     logger.With().Str("component", "http").Logger(),
		Ledger:     svc,
		Directory:  dir,
		Resolver:   resolver,
		Verifier:   verifier,
		SessionTTL: 12 * time.Hour,
		Currency:   "INR",
		MaxUpload:  20 << 20,
		Heartbeat:  25 * time.Second,
		now:        time.Now,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (a *App) actor(r *http.Request) domain.Actor {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}

// fail maps a ledger error onto a response. Errors outside the known
// taxonomy are answered with fallback, which distinguishes failed reads
// (503 unavailable) from failed writes (502 write_failed).
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		a.error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrSelfDeletion):
		a.error(w, http.StatusConflict, "self_deletion", "You cannot delete your own account")
	case errors.Is(err, domain.ErrUnsupportedFormat):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_format", err.Error())
	case errors.Is(err, domain.ErrEmptyFile):
		a.error(w, http.StatusUnprocessableEntity, "no_data", "No data")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrSubscription), errors.Is(err, domain.ErrClosed):
		a.logFailure(r, err)
		a.error(w, http.StatusServiceUnavailable, "unavailable", "Error fetching data")
	case fallback == http.StatusServiceUnavailable:
		a.logFailure(r, err)
		a.error(w, http.StatusServiceUnavailable, "unavailable", "Error fetching data")
	default:
		a.logFailure(r, err)
		a.error(w, http.StatusBadGateway, "write_failed", "Error saving data")
	}
}

func (a *App) logFailure(r *http.Request, err error) {
	a.Logger.Error().Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
}
