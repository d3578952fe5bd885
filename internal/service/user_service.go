package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

// UserInput carries user create/update fields. Nil pointers mean "unchanged"
// on update.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// UserService exposes user administration. Creation, deletion and role
// changes are super_admin only; users may edit their own profile.
type UserService interface {
	List(ctx context.Context, caller auth.Identity) ([]model.User, error)
	Get(ctx context.Context, caller auth.Identity, id uint) (*model.User, error)
	Create(ctx context.Context, caller auth.Identity, input UserInput) (*model.User, error)
	Update(ctx context.Context, caller auth.Identity, id uint, input UserInput) (*model.User, error)
	Delete(ctx context.Context, caller auth.Identity, id uint) error
}

type userService struct {
	repo repository.UserRepository
}

// NewUserService builds a UserService.
func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

// List is available to super admins and developers (who pick members when
// creating projects); clients see no user directory.
func (s *userService) List(ctx context.Context, caller auth.Identity) ([]model.User, error) {
	if caller.IsClient() {
		return nil, apperrors.ErrForbidden
	}
	return s.repo.List(ctx)
}

func (s *userService) Get(ctx context.Context, caller auth.Identity, id uint) (*model.User, error) {
	if !caller.IsSuperAdmin() && caller.UserID != id {
		return nil, apperrors.ErrForbidden
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) Create(ctx context.Context, caller auth.Identity, input UserInput) (*model.User, error) {
	if !caller.IsSuperAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if !input.Role.Valid() {
		return nil, apperrors.ErrInvalidRole
	}

	existing, err := s.repo.FindByEmail(ctx, input.Email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrEmailTaken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hashed),
		Role:         input.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Update edits a user. Only a super_admin may edit another user or change a
// role; a user never changes their own role.
func (s *userService) Update(ctx context.Context, caller auth.Identity, id uint, input UserInput) (*model.User, error) {
	if !caller.IsSuperAdmin() && caller.UserID != id {
		return nil, apperrors.ErrForbidden
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Email != "" && input.Email != user.Email {
		existing, err := s.repo.FindByEmail(ctx, input.Email)
		if err == nil && existing != nil && existing.ID != id {
			return nil, apperrors.ErrEmailTaken
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check email: %w", err)
		}
		user.Email = input.Email
	}
	if input.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}
	if input.Role != "" && input.Role != user.Role {
		if !caller.IsSuperAdmin() {
			return nil, apperrors.ErrForbidden
		}
		if !input.Role.Valid() {
			return nil, apperrors.ErrInvalidRole
		}
		user.Role = input.Role
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, caller auth.Identity, id uint) error {
	if !caller.IsSuperAdmin() {
		return apperrors.ErrForbidden
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return err
	}
	return s.repo.Delete(ctx, id)
}
