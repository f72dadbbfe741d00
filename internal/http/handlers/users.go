package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

type userRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (a *App) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Directory.List(r.Context(), a.actor(r))
	if err != nil {
		a.fail(w, r, err, http.StatusServiceUnavailable)
		return
	}
	if users == nil {
		users = []domain.AuthorizedUser{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": users})
}

// PutUser grants a role to an email, replacing any earlier grant.
func (a *App) PutUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	u, err := a.Directory.Upsert(r.Context(), a.actor(r), req.Email, req.Name, req.Role)
	if err != nil {
		a.fail(w, r, err, http.StatusBadGateway)
		return
	}
	a.json(w, http.StatusOK, u)
}

func (a *App) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.Directory.Delete(r.Context(), a.actor(r), chi.URLParam(r, "key")); err != nil {
		a.fail(w, r, err, http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
