package service

import (
	"context"
	"fmt"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
)

// PreferenceServiceOptions groups dependencies for PreferenceService.
type PreferenceServiceOptions struct {
	Repo core.PreferenceRepository
}

// PreferenceService reads and writes the per-user settings toggles.
type PreferenceService struct {
	repo core.PreferenceRepository
}

// NewPreferenceService constructs a new PreferenceService.
func NewPreferenceService(opts PreferenceServiceOptions) *PreferenceService {
	if opts.Repo == nil {
		panic("PreferenceRepository is required")
	}
	return &PreferenceService{repo: opts.Repo}
}

// Get returns the user's preferences with defaults for anything never stored.
func (s *PreferenceService) Get(ctx context.Context, userID string) (model.Preferences, error) {
	if userID == "" {
		return model.DefaultPreferences(), nil
	}
	stored, err := s.repo.Load(ctx, userID)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	return model.ApplyStored(stored), nil
}

// Set stores one toggle and returns the resulting preferences.
func (s *PreferenceService) Set(ctx context.Context, userID, name string, value bool) (model.Preferences, error) {
	if userID == "" {
		return model.Preferences{}, apperrors.NotAuthenticated()
	}
	pref, ok := model.ParsePreferenceName(name)
	if !ok {
		return model.Preferences{}, apperrors.ValidationField("name", fmt.Sprintf("unknown preference %q", name))
	}
	if err := s.repo.Store(ctx, userID, pref, value); err != nil {
		return model.Preferences{}, fmt.Errorf("store preference: %w", err)
	}
	return s.Get(ctx, userID)
}

// Clear forgets everything stored for the user.
func (s *PreferenceService) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := s.repo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	return nil
}
