package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/validation"
)

// ProfileUpdate carries the self-service editable fields. Nil fields
// are left unchanged.
type ProfileUpdate struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type UserService struct {
	userRepository    repository.UserRepository
	energyRepository  repository.EnergyRepository
	sessionRepository repository.SessionRepository
	authService       *AuthService
}

func NewUserService(
	userRepository repository.UserRepository,
	energyRepository repository.EnergyRepository,
	sessionRepository repository.SessionRepository,
	authService *AuthService,
) *UserService {
	return &UserService{
		userRepository:    userRepository,
		energyRepository:  energyRepository,
		sessionRepository: sessionRepository,
		authService:       authService,
	}
}

func (s *UserService) ByID(id string) (*model.User, error) {
	user, err := s.userRepository.ByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes name, username and/or email, enforcing
// uniqueness on the latter two.
func (s *UserService) UpdateProfile(userID string, update ProfileUpdate) (*model.User, error) {
	user, err := s.ByID(userID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if err := validation.ValidateName(name); err != nil {
			return nil, apperr.Validation(err.Error())
		}
		user.Name = name
	}

	if update.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*update.Username))
		if err := validation.ValidateUsername(username); err != nil {
			return nil, apperr.Validation(err.Error())
		}
		user.Username = username
	}

	if update.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*update.Email))
		if err := validation.ValidateEmail(email); err != nil {
			return nil, apperr.Validation(err.Error())
		}
		user.Email = email
	}

	err = s.userRepository.Update(user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, apperr.Conflict("username already taken")
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	slog.Info("profile updated", "user_id", user.ID)
	return user, nil
}

// ChangePassword verifies the current password, sets the new one and
// revokes every other session.
func (s *UserService) ChangePassword(userID, currentPassword, newPassword string) error {
	user, err := s.ByID(userID)
	if err != nil {
		return err
	}

	if !user.HasPassword() {
		return apperr.Forbidden("this account signs in with " + user.Provider)
	}

	err = s.authService.ComparePassword(currentPassword, *user.PasswordHash)
	if err != nil {
		return apperr.Authentication("current password is incorrect")
	}

	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperr.Validation(err.Error())
	}

	hash, err := s.authService.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = &hash
	err = s.userRepository.Update(user)
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	err = s.sessionRepository.DeleteByUser(user.ID)
	if err != nil {
		slog.Warn("failed to revoke sessions after password change", "error", err, "user_id", user.ID)
	}

	slog.Info("password changed", "user_id", user.ID)
	return nil
}

// DeleteAccount removes the user and everything they own. Local
// accounts must confirm with their password; social accounts have none
// to confirm.
func (s *UserService) DeleteAccount(userID, password string) error {
	user, err := s.ByID(userID)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		err = s.authService.ComparePassword(password, *user.PasswordHash)
		if err != nil {
			return apperr.Authentication("password is incorrect")
		}
	}

	if err := s.energyRepository.DeleteByUser(userID); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	if err := s.sessionRepository.DeleteByUser(userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.userRepository.Delete(userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("account deleted", "user_id", userID)
	return nil
}
