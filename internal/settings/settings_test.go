package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/store/memory"
)

type mapCache struct {
	values  map[string][]byte
	deletes int
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	delete(c.values, key)
	c.deletes++
	return nil
}

func TestMissingRecordsResolveToDefaults(t *testing.T) {
	r := NewResolver(memory.New(), nil, 0)

	prefs, err := r.NotificationPrefs(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("prefs: %v", err)
	}
	if !prefs.ReceiveSaleNotifications || !prefs.ReceiveOrderNotifications || len(prefs.MutedCreators) != 0 {
		t.Fatalf("expected receive-everything defaults, got %+v", prefs)
	}

	targets, err := r.SuggestedSizes(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if targets["37"] != 3 || targets["34"] != 0 {
		t.Fatalf("expected default targets, got %v", targets)
	}
}

func TestSaveInvalidatesCache(t *testing.T) {
	repo := memory.New()
	c := &mapCache{values: map[string][]byte{}}
	r := NewResolver(repo, c, time.Minute)
	ctx := context.Background()

	if err := r.SaveNotificationPrefs(ctx, "user-1", domain.NotificationPrefs{ReceiveOrderNotifications: true, MutedCreators: []string{"user-2"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	prefs, err := r.NotificationPrefs(ctx, "user-1")
	if err != nil {
		t.Fatalf("prefs: %v", err)
	}
	if prefs.ReceiveSaleNotifications || !prefs.Mutes("user-2") {
		t.Fatalf("unexpected prefs %+v", prefs)
	}
	if _, cached := c.values[NotificationPrefsKey("user-1")]; !cached {
		t.Fatalf("expected prefs to be cached after read")
	}

	if err := r.SaveNotificationPrefs(ctx, "user-1", domain.DefaultNotificationPrefs()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, cached := c.values[NotificationPrefsKey("user-1")]; cached {
		t.Fatalf("expected cache entry to be dropped on save")
	}
	prefs, _ = r.NotificationPrefs(ctx, "user-1")
	if !prefs.ReceiveSaleNotifications || prefs.Mutes("user-2") {
		t.Fatalf("expected fresh prefs after save, got %+v", prefs)
	}
}

func TestSaveSuggestedSizesRejectsUnknownSizes(t *testing.T) {
	r := NewResolver(memory.New(), nil, 0)

	err := r.SaveSuggestedSizes(context.Background(), "user-1", domain.SizeTargets{"45": 2, "36": -1})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *store.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected two offending fields, got %v", err)
	}
}

func TestPartialPrefsKeepDefaultFlags(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	if err := repo.PutSetting(ctx, NotificationPrefsKey("user-1"), "user-1", []byte(`{"mutedCreators":["user-9"]}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	prefs, err := NewResolver(repo, nil, 0).NotificationPrefs(ctx, "user-1")
	if err != nil {
		t.Fatalf("prefs: %v", err)
	}
	if !prefs.ReceiveSaleNotifications || !prefs.Mutes("user-9") {
		t.Fatalf("unexpected prefs %+v", prefs)
	}
}
