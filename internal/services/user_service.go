// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

type UserService struct {
	users store.UserStore
}

type UpsertUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=255"`
	Photo string `json:"photo" validate:"omitempty,max=2048"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user moderator admin"`
}

type UserListParams struct {
	utils.PaginationParams
	Role string
}

func NewUserService(users store.UserStore) *UserService {
	return &UserService{users: users}
}

// UpsertUser creates the profile on first sign-in. Repeat calls refresh name
// and photo without touching role, subscription or created_at.
func (s *UserService) UpsertUser(ctx context.Context, req *UpsertUserRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	user, err := s.users.Upsert(ctx, &models.User{
		Email: req.Email,
		Name:  req.Name,
		Photo: req.Photo,
		Role:  models.RoleUser,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, email string) (*models.User, error) {
	return s.users.GetByEmail(ctx, normalizeEmail(email))
}

func (s *UserService) ListUsers(ctx context.Context, params UserListParams) ([]models.User, int64, error) {
	filter := store.UserFilter{
		Page:   toPage(params.PaginationParams),
		Search: params.Search,
	}
	if params.Role != "" {
		role, err := models.ParseRole(params.Role)
		if err != nil {
			return nil, 0, invalid("%v", err)
		}
		filter.Role = role
	}
	return s.users.List(ctx, filter)
}

func (s *UserService) GetRole(ctx context.Context, email string) (models.Role, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	return user.EffectiveRole(), nil
}

// Subscribe marks the account as a paying subscriber.
func (s *UserService) Subscribe(ctx context.Context, email string) (store.MutationResult, error) {
	return s.users.SetSubscribed(ctx, normalizeEmail(email))
}

// SetRole overwrites the role of the user addressed by id (or email) and
// records who changed it.
func (s *UserService) SetRole(ctx context.Context, actor Actor, idOrEmail string, role string) (*models.User, store.MutationResult, error) {
	newRole, err := models.ParseRole(role)
	if err != nil {
		return nil, store.MutationResult{}, invalid("%v", err)
	}

	target, err := s.resolve(ctx, idOrEmail)
	if err != nil {
		return nil, store.MutationResult{}, err
	}

	user, result, err := s.users.SetRole(ctx, target.ID, newRole, actor.audit(models.AuditActionRoleChanged))
	if err != nil {
		return nil, store.MutationResult{}, err
	}

	if result.ModifiedCount > 0 {
		logrus.WithFields(logrus.Fields{
			"actor":    actor.Email,
			"target":   user.Email,
			"old_role": target.Role,
			"new_role": newRole,
		}).Info("User role changed")
	}
	return user, result, nil
}

// EnsureRole creates the account if needed and grants role. Used to seed
// admins from configuration.
func (s *UserService) EnsureRole(ctx context.Context, email string, role models.Role) error {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.users.Upsert(ctx, &models.User{Email: email, Role: models.RoleUser})
	}
	if err != nil {
		return err
	}
	_, _, err = s.users.SetRole(ctx, user.ID, role, SystemActor.audit(models.AuditActionRoleChanged))
	return err
}

func (s *UserService) resolve(ctx context.Context, idOrEmail string) (*models.User, error) {
	if id, err := uuid.Parse(idOrEmail); err == nil {
		return s.users.GetByID(ctx, id)
	}
	return s.users.GetByEmail(ctx, normalizeEmail(idOrEmail))
}
