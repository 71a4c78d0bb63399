package app

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"birthday_notification_bot/internal/domain/user"
	idb "birthday_notification_bot/internal/infra/database"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrUserAlreadyExists = fmt.Errorf("user with this Telegram ID already exists")
var ErrInvalidBirthDate = fmt.Errorf("birth date must be in YYYY-MM-DD format")
var ErrInvalidTarget = fmt.Errorf("target must be a Telegram ID or @username")

// AdminChecker reports whether a Telegram ID belongs to a configured admin.
// Satisfied by config.AppConfig.
type AdminChecker interface {
	IsAdmin(telegramID int64) bool
}

// AdminService handles the user-management command surface: adding and
// removing group members and toggling their flags. A performer is an admin if
// they are listed in the configuration or flagged is_admin in the store.
type AdminService struct {
	userRepo user.Repository
	admins   AdminChecker
}

func NewAdminService(ur user.Repository, admins AdminChecker) *AdminService {
	return &AdminService{
		userRepo: ur,
		admins:   admins,
	}
}

func (s *AdminService) authorize(ctx context.Context, performerID int64) error {
	if s.admins.IsAdmin(performerID) {
		return nil
	}
	performer, err := s.userRepo.GetByTelegramID(ctx, performerID)
	if err == nil && performer.IsAdmin {
		return nil
	}
	return ErrAdminNotAuthorized
}

// ResolveTelegramID turns a command target argument into a Telegram ID.
// A numeric argument is returned as-is; an @username argument is resolved
// against the store.
func (s *AdminService) ResolveTelegramID(ctx context.Context, raw string) (int64, error) {
	if strings.HasPrefix(raw, "@") {
		target, err := s.userRepo.GetByUsername(ctx, raw)
		if err != nil {
			if err == idb.ErrUserNotFound {
				return 0, idb.ErrUserNotFound
			}
			return 0, fmt.Errorf("failed to resolve username %s: %w", raw, err)
		}
		return target.TelegramID, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidTarget
	}
	return id, nil
}

// AddUser handles the business logic for adding a new group member.
func (s *AdminService) AddUser(ctx context.Context, performerID, newTelegramID int64, username, firstName, lastNameValue, birthDate string) (*user.User, error) {
	if err := s.authorize(ctx, performerID); err != nil {
		return nil, err
	}

	if _, err := time.Parse("2006-01-02", birthDate); err != nil {
		return nil, ErrInvalidBirthDate
	}

	// Check if user already exists by Telegram ID
	_, err := s.userRepo.GetByTelegramID(ctx, newTelegramID)
	if err == nil { // User found, so already exists
		return nil, ErrUserAlreadyExists
	}
	if err != idb.ErrUserNotFound { // Another error occurred during lookup
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	newUser := &user.User{
		TelegramID:             newTelegramID,
		Username:               nullString(username),
		FirstName:              firstName,
		LastName:               nullString(lastNameValue),
		BirthDate:              birthDate,
		IsSubscribed:           true, // New members participate by default
		IsNotificationsEnabled: true,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if err == idb.ErrDuplicateTelegramID {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user in repository: %w", err)
	}

	return newUser, nil
}

// RemoveUser deletes a group member entirely. The original system removed
// rows rather than soft-deleting; reminders about a removed person simply
// stop, and their audit log entries remain.
func (s *AdminService) RemoveUser(ctx context.Context, performerID, targetTelegramID int64) (*user.User, error) {
	if err := s.authorize(ctx, performerID); err != nil {
		return nil, err
	}

	target, err := s.userRepo.GetByTelegramID(ctx, targetTelegramID)
	if err != nil {
		if err == idb.ErrUserNotFound {
			return nil, idb.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by Telegram ID for removal: %w", err)
	}

	if err := s.userRepo.Delete(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("failed to delete user in repository: %w", err)
	}
	return target, nil
}

// ListUsers returns all group members ordered by upcoming birthday.
func (s *AdminService) ListUsers(ctx context.Context, performerID int64) ([]*user.User, error) {
	if err := s.authorize(ctx, performerID); err != nil {
		return nil, err
	}
	return s.userRepo.ListAll(ctx)
}

// ToggleSubscribed flips whether a member is celebrated and receives group
// reminders. Returns the new value.
func (s *AdminService) ToggleSubscribed(ctx context.Context, performerID, targetTelegramID int64) (bool, error) {
	return s.toggleFlag(ctx, performerID, targetTelegramID, func(u *user.User) *bool { return &u.IsSubscribed })
}

// ToggleNotifications flips whether a member receives anything at all.
// Returns the new value.
func (s *AdminService) ToggleNotifications(ctx context.Context, performerID, targetTelegramID int64) (bool, error) {
	return s.toggleFlag(ctx, performerID, targetTelegramID, func(u *user.User) *bool { return &u.IsNotificationsEnabled })
}

// PromoteAdmin grants the target store-level admin rights. Returns the new value.
func (s *AdminService) PromoteAdmin(ctx context.Context, performerID, targetTelegramID int64) (bool, error) {
	return s.toggleFlag(ctx, performerID, targetTelegramID, func(u *user.User) *bool { return &u.IsAdmin })
}

func (s *AdminService) toggleFlag(ctx context.Context, performerID, targetTelegramID int64, field func(*user.User) *bool) (bool, error) {
	if err := s.authorize(ctx, performerID); err != nil {
		return false, err
	}

	target, err := s.userRepo.GetByTelegramID(ctx, targetTelegramID)
	if err != nil {
		if err == idb.ErrUserNotFound {
			return false, idb.ErrUserNotFound
		}
		return false, fmt.Errorf("failed to get user by Telegram ID: %w", err)
	}

	flag := field(target)
	*flag = !*flag
	if err := s.userRepo.Update(ctx, target); err != nil {
		return false, fmt.Errorf("failed to update user in repository: %w", err)
	}
	return *flag, nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
