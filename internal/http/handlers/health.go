package handlers

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// Health answers 503 when the store cannot be reached so a load balancer
// stops routing to the instance.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: a.StoreKind}
	if a.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ping(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("health check failed")
			resp.Status = "degraded"
			a.json(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	a.json(w, http.StatusOK, resp)
}
