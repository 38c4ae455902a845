package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/inventory"
	"pearstock/backend/internal/notify"
	"pearstock/backend/internal/replenishment"
	"pearstock/backend/internal/settings"
	"pearstock/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service runs the order and sale lifecycle on top of a Repository. It does
// not check roles; callers resolve and authorize the actor first.
type Service struct {
	repo      store.Repository
	snapshots *inventory.Reader
	planner   *replenishment.Planner
	settings  *settings.Resolver
	publisher notify.Publisher
	now       func() time.Time

	// known holds the last actor synced per user id.
	known sync.Map
}

func New(repo store.Repository, resolver *settings.Resolver, publisher notify.Publisher, deadlineDays int) *Service {
	if resolver == nil {
		resolver = settings.NewResolver(repo, nil, 0)
	}
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}

	snapshots := inventory.NewReader(repo)
	return &Service{
		repo:      repo,
		snapshots: snapshots,
		planner:   replenishment.NewPlanner(snapshots, repo, resolver, deadlineDays),
		settings:  resolver,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		return domain.Actor{}, store.Invalid("actor", "required")
	}
	return actor, nil
}

// SyncActor records the verified actor as a user so staff fan-out can find
// it. Each distinct (id, name, role) is written once per process.
func (s *Service) SyncActor(ctx context.Context, actor domain.Actor) {
	if strings.TrimSpace(actor.UserID) == "" {
		return
	}
	if seen, ok := s.known.Load(actor.UserID); ok && seen.(domain.Actor) == actor {
		return
	}

	username := strings.TrimSpace(actor.Username)
	if username == "" {
		username = actor.UserID
	}
	err := s.repo.UpsertUser(ctx, domain.User{
		ID:        actor.UserID,
		Username:  username,
		Role:      actor.Role,
		CreatedAt: s.now(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to sync user %s: %v", actor.UserID, err)
		return
	}
	s.known.Store(actor.UserID, actor)
}

// replan runs a full replenishment pass after a committed stock change.
// Failures are logged; the caller's write already succeeded.
func (s *Service) replan(ctx context.Context, userID string, affected *domain.Affected) *domain.ReplenishmentResult {
	result, err := s.planner.Plan(ctx, userID)
	if err != nil {
		log.Printf("[service] WARN: replenishment run failed user=%s: %v", userID, err)
		return nil
	}
	affected.Merge(result.Affected)
	return &result
}

func (s *Service) checkItem(ctx context.Context, userID string, v domain.Variation, affected *domain.Affected) *domain.ReplenishmentResult {
	result, err := s.planner.CheckItem(ctx, userID, v.Reference, v.Color, v.Size, v.Stock)
	if err != nil {
		log.Printf("[service] WARN: replenishment check failed ref=%s color=%s size=%s: %v", v.Reference, v.Color, v.Size, err)
		return nil
	}
	affected.Merge(result.Affected)
	return &result
}

func normalizeLimit(limit int, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}
