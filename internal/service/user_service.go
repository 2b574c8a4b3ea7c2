package service

import (
	"context"
	"strings"

	"rentacar/internal/config"
	"rentacar/internal/domain"
	"rentacar/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserAdminPatch is what an administrator may change on an account.
type UserAdminPatch struct {
	Name     *string      `json:"name,omitempty"`
	Phone    *string      `json:"phone,omitempty"`
	Role     *models.Role `json:"role,omitempty"`
	IsActive *bool        `json:"is_active,omitempty"`
}

// UserService is the user administration back office. Users leave it
// without credentials.
type UserService struct {
	repo   domain.UserRepository
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

func (s *UserService) GetAllUsers(ctx context.Context, v AdminVerifier) ([]*models.User, error) {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.GetAllUsers(ctx)
	if err != nil {
		return nil, domain.Persistence(err, "could not load users")
	}
	out := make([]*models.User, len(users))
	for i, u := range users {
		out[i] = u.Redacted()
	}
	return out, nil
}

func (s *UserService) GetUserByID(ctx context.Context, v AdminVerifier, id int64) (*models.User, error) {
	if _, err := v.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, domain.Persistence(err, "could not load user")
	}
	return user.Redacted(), nil
}

// UpdateUser changes profile, role or activation. Administrators cannot
// demote or deactivate themselves.
func (s *UserService) UpdateUser(ctx context.Context, v AdminVerifier, id int64, patch UserAdminPatch) (*models.User, error) {
	admin, err := v.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	up := models.UserPatch{Phone: patch.Phone, Role: patch.Role, IsActive: patch.IsActive}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.Validation("name must not be empty")
		}
		up.Name = &name
	}
	if patch.Role != nil && *patch.Role != models.RoleUser && *patch.Role != models.RoleAdmin {
		return nil, domain.Validation("unknown role %q", *patch.Role)
	}
	if admin.ID == id {
		if patch.Role != nil && *patch.Role != models.RoleAdmin {
			return nil, domain.Validation("you cannot remove your own administrator role")
		}
		if patch.IsActive != nil && !*patch.IsActive {
			return nil, domain.Validation("you cannot deactivate your own account")
		}
	}

	user, err := s.repo.UpdateUser(ctx, id, up)
	if err != nil {
		return nil, domain.Persistence(err, "could not update user")
	}
	s.logger.Info().Int64("admin_id", admin.ID).Int64("user_id", id).Msg("user updated")
	return user.Redacted(), nil
}

func (s *UserService) DeleteUser(ctx context.Context, v AdminVerifier, id int64) error {
	admin, err := v.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	if admin.ID == id {
		return domain.Validation("you cannot delete your own account")
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return domain.Persistence(err, "could not delete user")
	}
	s.logger.Info().Int64("admin_id", admin.ID).Int64("user_id", id).Msg("user deleted")
	return nil
}

// EnsureAdmin creates the bootstrap administrator if the email is unused.
func (s *UserService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Email == "" {
		return nil
	}
	email := normalizeEmail(cfg.Email)
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.Persistence(err, "could not look up administrator")
	}
	if existing != nil {
		if !existing.IsAdmin() {
			s.logger.Warn().Str("email", email).Msg("bootstrap administrator email belongs to a regular user")
		}
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Persistence(err, "could not create administrator")
	}
	name := cfg.Name
	if name == "" {
		name = "Administrator"
	}
	admin := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     name,
		Role:     models.RoleAdmin,
		IsActive: true,
		Avatar:   models.AvatarBaseURL + email,
	}
	if err := s.repo.CreateUser(ctx, admin); err != nil {
		return domain.Persistence(err, "could not create administrator")
	}
	s.logger.Info().Str("email", email).Msg("bootstrap administrator created")
	return nil
}
