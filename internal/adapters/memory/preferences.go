package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/domain/model"
)

var _ core.PreferenceRepository = (*PreferenceRepo)(nil)

// PreferenceRepo stores preference toggles per user in memory.
type PreferenceRepo struct {
	mu    sync.RWMutex
	prefs map[string]map[model.PreferenceName]bool
}

// NewPreferenceRepo returns an empty store.
func NewPreferenceRepo() *PreferenceRepo {
	return &PreferenceRepo{prefs: make(map[string]map[model.PreferenceName]bool)}
}

func (r *PreferenceRepo) Load(_ context.Context, userID string) (map[model.PreferenceName]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.prefs[userID]), nil
}

func (r *PreferenceRepo) Store(_ context.Context, userID string, name model.PreferenceName, value bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prefs[userID] == nil {
		r.prefs[userID] = make(map[model.PreferenceName]bool)
	}
	r.prefs[userID][name] = value
	return nil
}

func (r *PreferenceRepo) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prefs, userID)
	return nil
}
