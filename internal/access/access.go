// Package access resolves signed-in identities to roles and manages the list
// of authorized users.
package access

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// Policy decides the role of identities missing from the access list.
type Policy struct {
	// DefaultRole applies to signed-in users without an entry.
	DefaultRole domain.UserRole
	// admins holds the email keys that always resolve as admin.
	admins map[string]struct{}
}

// NewPolicy builds a policy. An invalid default role is an error so a typo
// cannot silently grant access.
func NewPolicy(defaultRole string, bootstrapAdmins []string) (Policy, error) {
	role, ok := domain.ParseRole(defaultRole)
	if !ok {
		return Policy{}, fmt.Errorf("%w: default role %q", domain.ErrInvalidInput, defaultRole)
	}
	p := Policy{DefaultRole: role, admins: make(map[string]struct{}, len(bootstrapAdmins))}
	for _, email := range bootstrapAdmins {
		if email = strings.TrimSpace(email); email != "" {
			p.admins[domain.EmailKey(email)] = struct{}{}
		}
	}
	return p, nil
}

// IsBootstrapAdmin reports whether key always resolves as admin.
func (p Policy) IsBootstrapAdmin(key string) bool {
	_, ok := p.admins[key]
	return ok
}

// Resolver turns an identity into an actor.
type Resolver struct {
	users  domain.UserRepository
	policy Policy
	logger zerolog.Logger
}

func NewResolver(users domain.UserRepository, policy Policy, logger zerolog.Logger) *Resolver {
	return &Resolver{users: users, policy: policy, logger: logger.With().Str("component", "access").Logger()}
}

// Resolve looks the identity up by email key. Unknown users get the policy
// default; a failing lookup is an error rather than a guess.
func (r *Resolver) Resolve(ctx context.Context, id domain.Identity) (domain.Actor, error) {
	if strings.TrimSpace(id.Email) == "" {
		return domain.Actor{}, domain.ErrUnauthorized
	}
	actor := domain.Actor{Identity: id, Role: r.policy.DefaultRole}
	key := actor.Key()
	if r.policy.IsBootstrapAdmin(key) {
		actor.Role = domain.UserRoleAdmin
		return actor, nil
	}

	u, err := r.users.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return actor, nil
	case err != nil:
		return domain.Actor{}, fmt.Errorf("resolve role: %w", err)
	}
	if actor.DisplayName == "" {
		actor.DisplayName = u.Name
	}
	role, ok := domain.ParseRole(string(u.Role))
	if !ok {
		r.logger.Warn().Str("user", key).Str("role", string(u.Role)).Msg("stored role invalid, using default")
		return actor, nil
	}
	actor.Role = role
	return actor, nil
}

// Directory manages the authorized user list. Every operation needs an admin.
type Directory struct {
	users  domain.UserRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewDirectory(users domain.UserRepository, logger zerolog.Logger) *Directory {
	return &Directory{users: users, logger: logger.With().Str("component", "users").Logger(), now: time.Now}
}

func requireAdmin(actor domain.Actor) error {
	if !actor.Role.CanManageUsers() {
		return fmt.Errorf("%w: %s cannot manage users", domain.ErrPermissionDenied, actor.Role.Label())
	}
	return nil
}

// List returns every authorized user ordered by email.
func (d *Directory) List(ctx context.Context, actor domain.Actor) ([]domain.AuthorizedUser, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return d.users.List(ctx)
}

// Upsert adds or replaces the entry of email.
func (d *Directory) Upsert(ctx context.Context, actor domain.Actor, email, name, role string) (domain.AuthorizedUser, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.AuthorizedUser{}, err
	}
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.AuthorizedUser{}, fmt.Errorf("%w: email %q", domain.ErrInvalidInput, email)
	}
	r, ok := domain.ParseRole(role)
	if !ok {
		return domain.AuthorizedUser{}, fmt.Errorf("%w: role %q", domain.ErrInvalidInput, role)
	}
	u := domain.AuthorizedUser{
		Key:       domain.EmailKey(email),
		Email:     strings.ToLower(email),
		Name:      strings.TrimSpace(name),
		Role:      r,
		UpdatedAt: d.now().UTC(),
		UpdatedBy: actor.StampName(),
	}
	if err := d.users.Upsert(ctx, &u); err != nil {
		return domain.AuthorizedUser{}, fmt.Errorf("save user: %w", err)
	}
	d.logger.Info().Str("user", u.Key).Str("role", string(u.Role)).Str("by", u.UpdatedBy).Msg("user saved")
	return u, nil
}

// Delete removes an entry. Admins cannot remove their own entry.
func (d *Directory) Delete(ctx context.Context, actor domain.Actor, key string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	key = domain.EmailKey(key)
	if key == "" {
		return fmt.Errorf("%w: user key required", domain.ErrInvalidInput)
	}
	if key == actor.Key() {
		return domain.ErrSelfDeletion
	}
	if err := d.users.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	d.logger.Info().Str("user", key).Str("by", actor.StampName()).Msg("user removed")
	return nil
}
