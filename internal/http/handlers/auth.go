package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/middleware"
)

type googleVerifyRequest struct {
	IDToken string `json:"id_token"`
}

type googleVerifyResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      userProfileDTO `json:"user"`
}

type userProfileDTO struct {
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Role        domain.UserRole `json:"role"`
	RoleLabel   string          `json:"role_label"`
	Locale      string          `json:"locale"`
	Permissions permissionsDTO  `json:"permissions"`
}

type permissionsDTO struct {
	Edit        bool `json:"edit"`
	Delete      bool `json:"delete"`
	ManageUsers bool `json:"manage_users"`
	ViewAudit   bool `json:"view_audit"`
}

func profile(actor domain.Actor, locale string) userProfileDTO {
	return userProfileDTO{
		Email:     actor.Email,
		Name:      actor.DisplayLabel(),
		Role:      actor.Role,
		RoleLabel: actor.Role.Label(),
		Locale:    locale,
		Permissions: permissionsDTO{
			Edit:        actor.Role.CanEdit(),
			Delete:      actor.Role.CanDelete(),
			ManageUsers: actor.Role.CanManageUsers(),
			ViewAudit:   actor.Role.CanViewAudit(),
		},
	}
}

// AuthGoogle exchanges a Google ID token for a session token.
func (a *App) AuthGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.IDToken == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id_token required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	id, err := a.Verifier.Identity(ctx, req.IDToken)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("google verify failed")
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid google token")
		return
	}
	actor, err := a.Resolver.Resolve(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, http.StatusServiceUnavailable)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	claims := middleware.NewSession(id, locale, a.now(), a.SessionTTL)
	token, err := middleware.SignJWT(a.JWTSecret, claims)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	a.Logger.Info().Str("user", actor.StampName()).Str("role", string(actor.Role)).Msg("signed in")
	a.json(w, http.StatusOK, googleVerifyResponse{
		Token:     token,
		ExpiresAt: time.Unix(claims.Exp, 0).UTC(),
		User:      profile(actor, locale),
	})
}

// Me describes the signed-in user and what the role allows.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, profile(a.actor(r), middleware.LocaleFromContext(r.Context())))
}
