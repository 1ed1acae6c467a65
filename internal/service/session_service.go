package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/metrics"
	"github.com/tacops-cl/community-server/internal/repository"
)

const minPasswordLength = 6

// SessionService handles authentication and the session lifecycle:
// login, registration, validity checks, extension, and logout.
//
// Every failure path of a validity check collapses into
// domain.ErrSessionInvalid; a caller cannot tell a missing session from
// an expired or revoked one.
type SessionService struct {
	sessions repository.SessionRepository
	users    repository.UserRepository

	ttl              time.Duration
	autoExtendWindow time.Duration

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewSessionService creates a new SessionService. metrics may be nil.
func NewSessionService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	ttl time.Duration,
	autoExtendWindow time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:         sessions,
		users:            users,
		ttl:              ttl,
		autoExtendWindow: autoExtendWindow,
		metrics:          m,
		logger:           logger.With().Str("service", "session").Logger(),
	}
}

// LoginInput contains login credentials.
type LoginInput struct {
	Username string
	Password string
}

// LoginOutput contains the authenticated user and their new session.
type LoginOutput struct {
	User    *domain.User
	Session *domain.Session
}

// Login verifies credentials and opens a new session. Unknown usernames
// and wrong passwords are reported identically.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug().Str("username", input.Username).Msg("user not found during login")
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to look up user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.logger.Debug().Str("username", input.Username).Msg("invalid password during login")
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Str("username", input.Username).Msg("inactive user attempted login")
		return nil, domain.ErrUserInactive
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user logged in")

	return &LoginOutput{User: user, Session: session}, nil
}

// RegisterInput contains the data needed to create an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// RegisterOutput contains the new user and their auto-login session.
type RegisterOutput struct {
	User    *domain.User
	Session *domain.Session
}

// Register creates a new player account and logs it in immediately.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if err := s.validateRegisterInput(input); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to check user existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: username or email taken", domain.ErrUserAlreadyExists)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Username, input.Email, string(passwordHash))

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			// Lost a race with another registration.
			return nil, err
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.users.CreateStats(ctx, user.ID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create user stats")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user registered")

	return &RegisterOutput{User: user, Session: session}, nil
}

// openSession issues a fresh session token and marks the user online.
func (s *SessionService) openSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	session := domain.NewSession(uuid.NewString(), user, s.ttl)

	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.users.SetOnline(ctx, user.ID, true); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to set online flag")
	}
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to touch last login")
	}

	if s.metrics != nil {
		s.metrics.SessionsCreatedTotal.Inc()
	}

	return session, nil
}

// Validate checks a session token and returns the session and its
// user. Expired sessions are removed on sight. A check that finds less
// than the auto-extend window remaining pushes the expiry forward to
// now+TTL, so an active client never hits the hard deadline.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.Session, *domain.User, error) {
	if token == "" {
		return nil, nil, domain.ErrSessionInvalid
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, domain.ErrSessionInvalid
		}
		s.logger.Error().Err(err).Msg("failed to get session")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	now := time.Now().UTC()
	if session.Expired(now) {
		// Lazy expiry: the row outlived its validity, remove it now.
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete expired session")
		}
		if s.metrics != nil {
			s.metrics.SessionsExpiredTotal.Inc()
		}
		return nil, nil, domain.ErrSessionInvalid
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Owner is gone; the session dies with them.
			_ = s.sessions.Delete(ctx, token)
			return nil, nil, domain.ErrSessionInvalid
		}
		s.logger.Error().Err(err).Int64("user_id", session.UserID).Msg("failed to get session user")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !user.CanAuthenticate() {
		_ = s.sessions.Delete(ctx, token)
		return nil, nil, domain.ErrSessionInvalid
	}

	// Every successful validity check counts as activity.
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to touch last login")
	}

	if s.autoExtendWindow > 0 && session.Remaining(now) < s.autoExtendWindow {
		newExpiry := now.Add(s.ttl)
		err := s.sessions.UpdateExpiry(ctx, token, newExpiry)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// Destroyed between Get and UpdateExpiry; the destroy wins.
			return nil, nil, domain.ErrSessionInvalid
		case err != nil:
			s.logger.Error().Err(err).Msg("failed to auto-extend session")
			return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		session.ExpiresAt = newExpiry
	}

	return session, user, nil
}

// ExtendOutput contains the rotated session.
type ExtendOutput struct {
	Session *domain.Session
}

// Extend explicitly renews a session: the expiry moves to now+TTL and
// the token is rotated, invalidating the old one. Concurrent extensions
// of the same token resolve to exactly one winner; the loser's token is
// already gone and reports an invalid session.
func (s *SessionService) Extend(ctx context.Context, token string) (*ExtendOutput, error) {
	if token == "" {
		return nil, domain.ErrSessionInvalid
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSessionInvalid
		}
		s.logger.Error().Err(err).Msg("failed to get session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	now := time.Now().UTC()
	if session.Expired(now) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete expired session")
		}
		if s.metrics != nil {
			s.metrics.SessionsExpiredTotal.Inc()
		}
		return nil, domain.ErrSessionInvalid
	}

	// Same owner checks as Validate: a renewal must not outlive a
	// deleted or suspended account.
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.sessions.Delete(ctx, token)
			return nil, domain.ErrSessionInvalid
		}
		s.logger.Error().Err(err).Int64("user_id", session.UserID).Msg("failed to get session user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !user.CanAuthenticate() {
		_ = s.sessions.Delete(ctx, token)
		return nil, domain.ErrSessionInvalid
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to touch last login")
	}

	newToken := uuid.NewString()
	newExpiry := now.Add(s.ttl)

	err = s.sessions.Rotate(ctx, token, newToken, newExpiry)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSessionInvalid
		}
		s.logger.Error().Err(err).Msg("failed to rotate session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	session.Token = newToken
	session.ExpiresAt = newExpiry

	s.logger.Debug().
		Int64("user_id", session.UserID).
		Msg("session extended")

	return &ExtendOutput{Session: session}, nil
}

// Logout destroys a session. Destroying an unknown or already-destroyed
// token succeeds; logout is idempotent.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		s.logger.Error().Err(err).Msg("failed to get session during logout")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete session")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.users.SetOnline(ctx, session.UserID, false); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", session.UserID).Msg("failed to clear online flag")
	}

	s.logger.Info().
		Int64("user_id", session.UserID).
		Str("username", session.Username).
		Msg("user logged out")

	return nil
}

// RevokeUserSessions destroys every session belonging to a user. Called
// when an account is suspended or deleted.
func (s *SessionService) RevokeUserSessions(ctx context.Context, userID int64) error {
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to revoke user sessions")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

func (s *SessionService) validateRegisterInput(input RegisterInput) error {
	if len(input.Username) < 3 || len(input.Username) > 32 {
		return ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
