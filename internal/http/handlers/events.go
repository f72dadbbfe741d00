package handlers

import (
	"net/http"
	"strconv"

	"github.com/24981a0558-joel/manna-contribution/internal/catalog"
	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/ledger"
)

type eventsResponse struct {
	Events []catalog.Event `json:"events"`
	Years  []int           `json:"years"`
}

// Events lists the church events and the years that can be opened.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	cat := a.Ledger.Catalog()
	a.json(w, http.StatusOK, eventsResponse{Events: cat.Events, Years: cat.Range.Years()})
}

type dashboardResponse struct {
	ledger.Dashboard
	FormattedTotal string `json:"formattedTotal"`
}

// Dashboard totals every event of ?year=, defaulting to the current year.
func (a *App) Dashboard(w http.ResponseWriter, r *http.Request) {
	year := a.now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid year")
			return
		}
		year = y
	}
	d, err := a.Ledger.Dashboard(r.Context(), year)
	if err != nil {
		a.fail(w, r, err, http.StatusServiceUnavailable)
		return
	}
	a.json(w, http.StatusOK, dashboardResponse{Dashboard: d, FormattedTotal: ledger.FormatTotal(d.Amount, a.Currency)})
}

// AuditLog lists recent audit entries, optionally filtered by ?action=.
func (a *App) AuditLog(w http.ResponseWriter, r *http.Request) {
	action, ok := domain.ParseAuditAction(r.URL.Query().Get("action"))
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown action")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		limit = n
	}
	entries, err := a.Ledger.AuditLog(r.Context(), a.actor(r), action, limit)
	if err != nil {
		a.fail(w, r, err, http.StatusServiceUnavailable)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": entries})
}
