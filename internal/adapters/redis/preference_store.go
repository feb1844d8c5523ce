package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/domain/model"
)

var _ core.PreferenceRepository = (*PreferenceStore)(nil)

// PreferenceStore keeps each user's toggles in a hash at "prefs:<userID>".
// Fields are preference names; values are "true" or "false".
type PreferenceStore struct {
	client redis.UniversalClient
	prefix string
}

// NewPreferenceStore creates a preference store using the default key prefix.
func NewPreferenceStore(client redis.UniversalClient) *PreferenceStore {
	return &PreferenceStore{client: client, prefix: "prefs:"}
}

func (s *PreferenceStore) key(userID string) string { return s.prefix + userID }

// Load returns the stored toggles. Fields that are not known preferences or do not
// parse as booleans are skipped so the default applies.
func (s *PreferenceStore) Load(ctx context.Context, userID string) (map[model.PreferenceName]bool, error) {
	raw, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make(map[model.PreferenceName]bool, len(raw))
	for field, val := range raw {
		name, ok := model.ParsePreferenceName(field)
		if !ok {
			continue
		}
		b, parseErr := strconv.ParseBool(val)
		if parseErr != nil {
			continue
		}
		out[name] = b
	}
	return out, nil
}

func (s *PreferenceStore) Store(ctx context.Context, userID string, name model.PreferenceName, value bool) error {
	if err := s.client.HSet(ctx, s.key(userID), string(name), strconv.FormatBool(value)).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *PreferenceStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
