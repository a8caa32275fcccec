// internal/auth/policy.go
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
)

// Capability is what a route demands of its caller.
type Capability string

const (
	CapAuthenticated    Capability = "authenticated"
	CapSelf             Capability = "self"
	CapSelfOrAdmin      Capability = "self-or-admin"
	CapOwnerOrModerator Capability = "owner-or-moderator"
	CapModerator        Capability = "moderator"
	CapAdmin            Capability = "admin"
)

// Requirement binds a capability to the request it guards. SubjectEmail is
// the email named by the path for self checks; OwnerEmail is the owner of
// the targeted record.
type Requirement struct {
	Capability   Capability
	SubjectEmail string
	OwnerEmail   string
}

type Decision struct {
	Allowed bool
	Role    models.Role
	Reason  string
}

// RoleLookup resolves the current role of an email. Unknown emails are plain
// users.
type RoleLookup interface {
	RoleOf(ctx context.Context, email string) (models.Role, error)
}

type storeRoles struct {
	users store.UserStore
}

func NewStoreRoleLookup(users store.UserStore) RoleLookup {
	return &storeRoles{users: users}
}

func (r *storeRoles) RoleOf(ctx context.Context, email string) (models.Role, error) {
	user, err := r.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return user.EffectiveRole(), nil
}

// Engine decides allow/deny as a pure function of identity, stored role and
// requirement. The role is read fresh for every decision so revocations
// apply on the next request.
type Engine struct {
	roles RoleLookup
}

func NewEngine(roles RoleLookup) *Engine {
	return &Engine{roles: roles}
}

func (e *Engine) Authorize(ctx context.Context, identity *Identity, req Requirement) (Decision, error) {
	if identity == nil || identity.Email == "" {
		return Decision{Reason: "no verified identity"}, nil
	}

	self := req.SubjectEmail != "" && normalizeEmail(req.SubjectEmail) == identity.Email
	owner := req.OwnerEmail != "" && normalizeEmail(req.OwnerEmail) == identity.Email

	switch req.Capability {
	case CapAuthenticated:
		return Decision{Allowed: true}, nil
	case CapSelf:
		if self {
			return Decision{Allowed: true}, nil
		}
		return Decision{Reason: "caller may only access their own record"}, nil
	}

	role, err := e.roles.RoleOf(ctx, identity.Email)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve role: %w", err)
	}
	decision := Decision{Role: role}

	switch req.Capability {
	case CapSelfOrAdmin:
		decision.Allowed = self || role.AtLeast(models.RoleAdmin)
		if !decision.Allowed {
			decision.Reason = "requires the account owner or an admin"
		}
	case CapOwnerOrModerator:
		decision.Allowed = owner || role.AtLeast(models.RoleModerator)
		if !decision.Allowed {
			decision.Reason = "requires the listing owner or a moderator"
		}
	case CapModerator:
		decision.Allowed = role.AtLeast(models.RoleModerator)
		if !decision.Allowed {
			decision.Reason = "requires moderator role"
		}
	case CapAdmin:
		decision.Allowed = role.AtLeast(models.RoleAdmin)
		if !decision.Allowed {
			decision.Reason = "requires admin role"
		}
	default:
		decision.Reason = fmt.Sprintf("unknown capability %q", req.Capability)
	}
	return decision, nil
}
