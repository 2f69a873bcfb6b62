package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/repository"
)

// SystemStats is the admin dashboard summary.
type SystemStats struct {
	TotalUsers        int            `json:"totalUsers"`
	ActiveUsers       int            `json:"activeUsers"`
	UsersByRole       map[string]int `json:"usersByRole"`
	TotalEntries      int            `json:"totalEntries"`
	TotalSubscribers  int            `json:"totalSubscribers"`
	ActiveSubscribers int            `json:"activeSubscribers"`
	RecentUsers       []*model.User  `json:"recentUsers"`
}

type AdminService struct {
	userRepository       repository.UserRepository
	energyRepository     repository.EnergyRepository
	subscriberRepository repository.SubscriberRepository
	sessionRepository    repository.SessionRepository
}

func NewAdminService(
	userRepository repository.UserRepository,
	energyRepository repository.EnergyRepository,
	subscriberRepository repository.SubscriberRepository,
	sessionRepository repository.SessionRepository,
) *AdminService {
	return &AdminService{
		userRepository:       userRepository,
		energyRepository:     energyRepository,
		subscriberRepository: subscriberRepository,
		sessionRepository:    sessionRepository,
	}
}

func (s *AdminService) SystemStats() (*SystemStats, error) {
	totalUsers, err := s.userRepository.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	activeUsers, err := s.userRepository.CountActive()
	if err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}
	usersByRole, err := s.userRepository.CountByRole()
	if err != nil {
		return nil, fmt.Errorf("failed to count users by role: %w", err)
	}
	totalEntries, err := s.energyRepository.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	totalSubscribers, err := s.subscriberRepository.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count subscribers: %w", err)
	}
	activeSubscribers, err := s.subscriberRepository.CountActive()
	if err != nil {
		return nil, fmt.Errorf("failed to count active subscribers: %w", err)
	}
	recentUsers, err := s.userRepository.Recent(5)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent users: %w", err)
	}

	return &SystemStats{
		TotalUsers:        totalUsers,
		ActiveUsers:       activeUsers,
		UsersByRole:       usersByRole,
		TotalEntries:      totalEntries,
		TotalSubscribers:  totalSubscribers,
		ActiveSubscribers: activeSubscribers,
		RecentUsers:       recentUsers,
	}, nil
}

func (s *AdminService) ListUsers(filter repository.UserFilter) ([]*model.User, int, error) {
	users, total, err := s.userRepository.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// UpdateRole changes a user's role. Granting superadmin takes a
// superadmin actor; no admin can change their own role.
func (s *AdminService) UpdateRole(actor *model.User, targetID, role string) (*model.User, error) {
	switch role {
	case model.RoleUser, model.RoleAdmin, model.RoleSuperadmin:
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown role %q", role))
	}

	if role == model.RoleSuperadmin && actor.Role != model.RoleSuperadmin {
		return nil, apperr.Forbidden("only superadmins can grant the superadmin role")
	}
	if actor.ID == targetID {
		return nil, apperr.Forbidden("cannot change your own role")
	}

	user, err := s.userRepository.ByID(targetID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = role
	err = s.userRepository.Update(user)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	slog.Info("user role updated", "actor_id", actor.ID, "user_id", user.ID, "role", role)
	return user, nil
}

// ToggleActive flips a user's active flag. Deactivation also revokes
// every live session, so the account drops out immediately.
func (s *AdminService) ToggleActive(actor *model.User, targetID string) (*model.User, error) {
	if actor.ID == targetID {
		return nil, apperr.Forbidden("cannot deactivate your own account")
	}

	user, err := s.userRepository.ByID(targetID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.IsActive = !user.IsActive
	err = s.userRepository.Update(user)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if !user.IsActive {
		if err := s.sessionRepository.DeleteByUser(user.ID); err != nil {
			slog.Warn("failed to revoke sessions on deactivation", "error", err, "user_id", user.ID)
		}
	}

	slog.Info("user active flag toggled", "actor_id", actor.ID, "user_id", user.ID, "is_active", user.IsActive)
	return user, nil
}

// DeleteUser removes a user with all their entries and sessions.
func (s *AdminService) DeleteUser(actor *model.User, targetID string) error {
	if actor.ID == targetID {
		return apperr.Forbidden("cannot delete your own account")
	}

	_, err := s.userRepository.ByID(targetID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("user")
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.energyRepository.DeleteByUser(targetID); err != nil {
		return fmt.Errorf("failed to delete user entries: %w", err)
	}
	if err := s.sessionRepository.DeleteByUser(targetID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	if err := s.userRepository.Delete(targetID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", "actor_id", actor.ID, "user_id", targetID)
	return nil
}
