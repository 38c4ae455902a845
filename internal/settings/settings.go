package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pearstock/backend/internal/cache"
	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
)

type Store interface {
	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, userID string, value []byte) error
}

func SuggestedSizesKey(userID string) string {
	return "suggested_sizes_" + userID
}

func NotificationPrefsKey(userID string) string {
	return "notification_prefs_" + userID
}

// Resolver reads per-user settings through a cache. A missing record
// resolves to the defaults.
type Resolver struct {
	repo  Store
	cache cache.SettingsCache
	ttl   time.Duration
}

func NewResolver(repo Store, settingsCache cache.SettingsCache, ttl time.Duration) *Resolver {
	if settingsCache == nil {
		settingsCache = cache.NoopSettingsCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{repo: repo, cache: settingsCache, ttl: ttl}
}

func (r *Resolver) SuggestedSizes(ctx context.Context, userID string) (domain.SizeTargets, error) {
	defaults := domain.DefaultSizeTargets()
	if userID == "" {
		return defaults, nil
	}

	raw, found, err := r.load(ctx, SuggestedSizesKey(userID))
	if err != nil || !found {
		return defaults, err
	}

	var targets domain.SizeTargets
	if err := json.Unmarshal(raw, &targets); err != nil || len(targets) == 0 {
		log.Printf("[settings] WARN: unreadable suggested sizes for user=%s, using defaults: %v", userID, err)
		return defaults, nil
	}
	return targets, nil
}

func (r *Resolver) NotificationPrefs(ctx context.Context, userID string) (domain.NotificationPrefs, error) {
	prefs := domain.DefaultNotificationPrefs()
	if userID == "" {
		return prefs, nil
	}

	raw, found, err := r.load(ctx, NotificationPrefsKey(userID))
	if err != nil || !found {
		return prefs, err
	}

	if err := json.Unmarshal(raw, &prefs); err != nil {
		log.Printf("[settings] WARN: unreadable notification prefs for user=%s, using defaults: %v", userID, err)
		return domain.DefaultNotificationPrefs(), nil
	}
	if prefs.MutedCreators == nil {
		prefs.MutedCreators = []string{}
	}
	return prefs, nil
}

func (r *Resolver) SaveSuggestedSizes(ctx context.Context, userID string, targets domain.SizeTargets) error {
	if userID == "" {
		return store.Invalid("user_id", "required")
	}
	fields := map[string]string{}
	for size, qty := range targets {
		if !domain.IsKnownSize(size) {
			fields["suggested_sizes."+size] = "unknown size"
			continue
		}
		if qty < 0 {
			fields["suggested_sizes."+size] = "must not be negative"
		}
	}
	if len(fields) > 0 {
		return &store.ValidationError{Fields: fields}
	}
	return r.save(ctx, SuggestedSizesKey(userID), userID, targets)
}

func (r *Resolver) SaveNotificationPrefs(ctx context.Context, userID string, prefs domain.NotificationPrefs) error {
	if userID == "" {
		return store.Invalid("user_id", "required")
	}
	if prefs.MutedCreators == nil {
		prefs.MutedCreators = []string{}
	}
	return r.save(ctx, NotificationPrefsKey(userID), userID, prefs)
}

func (r *Resolver) load(ctx context.Context, key string) ([]byte, bool, error) {
	cached, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[settings] WARN: cache read failed key=%s: %v", key, err)
	} else if ok {
		return cached, true, nil
	}

	raw, err := r.repo.GetSetting(ctx, key)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, store.Wrap(err)
	}

	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		log.Printf("[settings] WARN: cache write failed key=%s: %v", key, err)
	}
	return raw, true, nil
}

func (r *Resolver) save(ctx context.Context, key string, userID string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	if err := r.repo.PutSetting(ctx, key, userID, payload); err != nil {
		return store.Wrap(err)
	}
	if err := r.cache.Delete(ctx, key); err != nil {
		log.Printf("[settings] WARN: cache invalidation failed key=%s: %v", key, err)
	}
	return nil
}
