package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/lock"
	"github.com/tacops-cl/community-server/internal/repository"
)

// ClanService handles clan management. Clan tags are canonicalized to
// upper case everywhere; a tag change rewrites every member's clan
// field in the same transaction as the clan row.
type ClanService struct {
	clans  repository.ClanRepository
	locker lock.Locker
	logger zerolog.Logger
}

// NewClanService creates a new ClanService.
func NewClanService(clans repository.ClanRepository, locker lock.Locker, logger zerolog.Logger) *ClanService {
	return &ClanService{
		clans:  clans,
		locker: locker,
		logger: logger.With().Str("service", "clan").Logger(),
	}
}

// CreateClanInput contains the data for a new clan.
type CreateClanInput struct {
	Name        string
	Tag         string
	Logo        string
	Description string
}

// Create creates a clan with a canonical tag.
func (s *ClanService) Create(ctx context.Context, input CreateClanInput) (*domain.Clan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrClanNameEmpty
	}

	tag := domain.NormalizeClanTag(input.Tag)
	if err := domain.ValidateClanTag(tag); err != nil {
		return nil, err
	}

	exists, err := s.clans.ExistsByNameOrTag(ctx, name, tag, 0)
	if err != nil {
		s.logger.Error().Err(err).Str("tag", tag).Msg("failed to check clan existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: name or tag taken", domain.ErrClanAlreadyExists)
	}

	clan := &domain.Clan{
		Name:        name,
		Tag:         tag,
		Logo:        input.Logo,
		Description: input.Description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.clans.Create(ctx, clan); err != nil {
		if errors.Is(err, domain.ErrClanAlreadyExists) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("tag", tag).Msg("failed to create clan")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("clan_id", clan.ID).
		Str("tag", clan.Tag).
		Msg("clan created")

	return clan, nil
}

// GetByID retrieves a clan.
func (s *ClanService) GetByID(ctx context.Context, id int64) (*domain.Clan, error) {
	clan, err := s.clans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrClanNotFound
		}
		s.logger.Error().Err(err).Int64("clan_id", id).Msg("failed to get clan")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return clan, nil
}

// List returns all clans with member counts.
func (s *ClanService) List(ctx context.Context) ([]*domain.Clan, error) {
	clans, err := s.clans.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list clans")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return clans, nil
}

// UpdateClanInput carries optional field updates; nil leaves a field
// unchanged.
type UpdateClanInput struct {
	Name        *string
	Tag         *string
	Logo        *string
	Description *string
}

// Update applies a partial update. A tag change cascades to every
// member atomically: no observer ever sees a member referencing a tag
// that doesn't exist. The per-clan lock serializes concurrent updates
// of the same clan.
func (s *ClanService) Update(ctx context.Context, clanID int64, input UpdateClanInput) (*domain.Clan, error) {
	key := lock.Keys.ClanUpdate(clanID)
	acquired, err := s.locker.AcquireWithRetry(ctx, key, 10*time.Second, 10, 100*time.Millisecond)
	if err != nil {
		s.logger.Error().Err(err).Int64("clan_id", clanID).Msg("failed to acquire clan lock")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrInternalError, repository.ErrLockNotAcquired)
	}
	defer func() {
		if _, err := s.locker.Release(ctx, key); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release clan lock")
		}
	}()

	current, err := s.GetByID(ctx, clanID)
	if err != nil {
		return nil, err
	}

	patch := repository.ClanPatch{
		Logo:        input.Logo,
		Description: input.Description,
	}

	name := current.Name
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return nil, ErrClanNameEmpty
		}
		patch.Name = &trimmed
		name = trimmed
	}

	tag := current.Tag
	if input.Tag != nil {
		normalized := domain.NormalizeClanTag(*input.Tag)
		if err := domain.ValidateClanTag(normalized); err != nil {
			return nil, err
		}
		patch.Tag = &normalized
		tag = normalized
	}

	if patch.Name != nil || patch.Tag != nil {
		exists, err := s.clans.ExistsByNameOrTag(ctx, name, tag, clanID)
		if err != nil {
			s.logger.Error().Err(err).Int64("clan_id", clanID).Msg("failed to check clan existence")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if exists {
			return nil, fmt.Errorf("%w: name or tag taken", domain.ErrClanAlreadyExists)
		}
	}

	if err := s.clans.ApplyPatch(ctx, clanID, current.Tag, patch); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.ErrClanNotFound
		case errors.Is(err, domain.ErrClanAlreadyExists):
			return nil, err
		}
		s.logger.Error().Err(err).Int64("clan_id", clanID).Msg("failed to update clan")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if patch.Tag != nil && *patch.Tag != current.Tag {
		s.logger.Info().
			Int64("clan_id", clanID).
			Str("old_tag", current.Tag).
			Str("new_tag", *patch.Tag).
			Msg("clan tag changed, members cascaded")
	}

	return s.GetByID(ctx, clanID)
}

// Delete removes a clan and clears its members' clan field.
func (s *ClanService) Delete(ctx context.Context, clanID int64) error {
	if err := s.clans.Delete(ctx, clanID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrClanNotFound
		}
		s.logger.Error().Err(err).Int64("clan_id", clanID).Msg("failed to delete clan")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("clan_id", clanID).Msg("clan deleted")
	return nil
}
