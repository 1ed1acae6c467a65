package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// UserService handles user administration: listing, partial updates,
// suspension, deletion, and the gameplay ranking.
//
// The bootstrap administrator (user ID 1) can never be deleted,
// suspended, or demoted, so the system always retains at least one
// admin.
type UserService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return users, nil
}

// UpdateUserInput carries optional field updates; nil leaves a field
// unchanged. The whole patch is validated before any write and applied
// atomically.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Role     *string
	Avatar   *string
	Status   *string

	// Clan sets the clan membership; SetClan distinguishes "leave
	// unchanged" (false) from "set to Clan, possibly nil" (true).
	Clan    *string
	SetClan bool
}

// Update applies a partial update to a user. Demoting the root
// administrator is rejected.
func (s *UserService) Update(ctx context.Context, userID int64, input UpdateUserInput) (*domain.User, error) {
	patch := repository.UserPatch{
		Avatar:  input.Avatar,
		Status:  input.Status,
		Clan:    input.Clan,
		SetClan: input.SetClan,
	}

	if input.Username != nil {
		trimmed := strings.TrimSpace(*input.Username)
		if len(trimmed) < 3 || len(trimmed) > 32 {
			return nil, ErrInvalidUsername
		}
		patch.Username = &trimmed
	}
	if input.Email != nil {
		trimmed := strings.TrimSpace(*input.Email)
		if _, err := mail.ParseAddress(trimmed); err != nil {
			return nil, ErrInvalidEmail
		}
		patch.Email = &trimmed
	}
	if input.Role != nil {
		role := domain.Role(*input.Role)
		if !role.Valid() {
			return nil, ErrInvalidRole
		}
		if userID == domain.RootUserID && role != domain.RoleAdmin {
			return nil, domain.ErrRootUserProtected
		}
		patch.Role = &role
	}

	if err := s.users.ApplyPatch(ctx, userID, patch); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.ErrUserNotFound
		case errors.Is(err, domain.ErrUserAlreadyExists):
			return nil, err
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to update user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", userID).Msg("user updated")
	return user, nil
}

// SetActive suspends or reinstates an account. Suspension revokes all
// of the user's sessions, which invalidates them immediately, not at
// next expiry. The root administrator cannot be suspended.
func (s *UserService) SetActive(ctx context.Context, userID int64, active bool) error {
	if userID == domain.RootUserID && !active {
		return domain.ErrRootUserProtected
	}

	if err := s.users.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to set active flag")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !active {
		if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to revoke sessions")
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	}

	s.logger.Info().
		Int64("user_id", userID).
		Bool("active", active).
		Msg("user active flag changed")

	return nil
}

// Delete removes an account with its stats, comments, likes, messages
// and sessions. The root administrator cannot be deleted.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	if userID == domain.RootUserID {
		return domain.ErrRootUserProtected
	}

	// Sessions cascade with the row, but the redis store keeps them
	// outside the database; revoke explicitly first.
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to revoke sessions")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to delete user")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Msg("user deleted")
	return nil
}

// ChangePassword replaces a user's password.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to update password")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Msg("password changed")
	return nil
}

// RankedEntry is one row of the ranking, ordered by score.
type RankedEntry struct {
	User  *domain.User      `json:"user"`
	Stats *domain.UserStats `json:"stats"`
	Score int               `json:"score"`
}

// Ranking returns active players ordered by score, best first.
func (s *UserService) Ranking(ctx context.Context) ([]*RankedEntry, error) {
	ranked, err := s.users.Ranking(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to get ranking")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	entries := make([]*RankedEntry, 0, len(ranked))
	for _, r := range ranked {
		entries = append(entries, &RankedEntry{
			User:  r.User,
			Stats: r.Stats,
			Score: r.Stats.Score(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	return entries, nil
}
