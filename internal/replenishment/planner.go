package replenishment

import (
	"context"
	"log"
	"sort"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

const DefaultDeadlineDays = 5

type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) ([]domain.SnapshotEntry, error)
	LoadPair(ctx context.Context, reference string, color string) (domain.SnapshotEntry, bool, error)
}

type OrderStore interface {
	ListOrdersByKind(ctx context.Context, kind domain.OrderKind, statuses []domain.OrderStatus) ([]domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	UpdateOrderItems(ctx context.Context, id string, items []domain.OrderItem, at time.Time) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) ([]string, error)
}

type TargetSource interface {
	SuggestedSizes(ctx context.Context, userID string) (domain.SizeTargets, error)
}

// Planner keeps the single pending system replenishment order in line with
// current stock. It holds no state between calls.
type Planner struct {
	snapshots SnapshotLoader
	orders    OrderStore
	targets   TargetSource
	deadline  time.Duration
	now       func() time.Time
}

func NewPlanner(snapshots SnapshotLoader, orders OrderStore, targets TargetSource, deadlineDays int) *Planner {
	if deadlineDays < 1 {
		deadlineDays = DefaultDeadlineDays
	}
	return &Planner{
		snapshots: snapshots,
		orders:    orders,
		targets:   targets,
		deadline:  time.Duration(deadlineDays) * 24 * time.Hour,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Plan recomputes the deficit plan for every pair and upserts or deletes the
// pending stock order to match it.
func (p *Planner) Plan(ctx context.Context, userID string) (domain.ReplenishmentResult, error) {
	targets, err := p.resolveTargets(ctx, userID)
	if err != nil {
		return domain.ReplenishmentResult{}, err
	}
	snapshot, err := p.snapshots.LoadSnapshot(ctx)
	if err != nil {
		return domain.ReplenishmentResult{}, store.Wrap(err)
	}
	state, err := p.loadStockOrders(ctx)
	if err != nil {
		return domain.ReplenishmentResult{}, err
	}

	items := ComputeDeficits(snapshot, targets, state.suppressed)
	return p.reconcile(ctx, state, items)
}

// CheckItem re-plans a single (reference, color) pair after one size changed
// to newStock. Only that pair's entry in the pending order is touched.
func (p *Planner) CheckItem(ctx context.Context, userID string, reference string, color string, size string, newStock int) (domain.ReplenishmentResult, error) {
	if !domain.IsKnownSize(size) {
		return domain.ReplenishmentResult{}, store.Invalid("size", "unknown size "+size)
	}
	if newStock < 0 {
		return domain.ReplenishmentResult{}, store.Invalid("stock", "must not be negative")
	}

	targets, err := p.resolveTargets(ctx, userID)
	if err != nil {
		return domain.ReplenishmentResult{}, err
	}
	state, err := p.loadStockOrders(ctx)
	if err != nil {
		return domain.ReplenishmentResult{}, err
	}

	key := domain.PairKey{Reference: reference, Color: color}
	var item domain.OrderItem
	needed := false
	if !state.suppressed[key] {
		entry, found, err := p.snapshots.LoadPair(ctx, reference, color)
		if err != nil {
			return domain.ReplenishmentResult{}, store.Wrap(err)
		}
		// A pair without variations is never planned, so only drop its entry.
		if found {
			stock := make(map[string]int, len(entry.SizeStock)+1)
			for s, qty := range entry.SizeStock {
				stock[s] = qty
			}
			stock[size] = newStock
			entry.SizeStock = stock
			item, needed = deficitFor(entry, targets)
		}
	}

	var current []domain.OrderItem
	if state.pending != nil {
		current = state.pending.Items
	}
	items := make([]domain.OrderItem, 0, len(current)+1)
	for _, existing := range current {
		if existing.Key() != key {
			items = append(items, existing)
		}
	}
	if needed {
		items = append(items, item)
	}
	sortItems(items)

	return p.reconcile(ctx, state, items)
}

// ComputeDeficits returns one item per pair with at least one size below
// its target. Pairs in suppressed are skipped.
func ComputeDeficits(snapshot []domain.SnapshotEntry, targets domain.SizeTargets, suppressed map[domain.PairKey]bool) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(snapshot))
	for _, entry := range snapshot {
		if suppressed[entry.Key()] {
			continue
		}
		if item, ok := deficitFor(entry, targets); ok {
			items = append(items, item)
		}
	}
	sortItems(items)
	return items
}

func deficitFor(entry domain.SnapshotEntry, targets domain.SizeTargets) (domain.OrderItem, bool) {
	sizes := make(map[string]int, len(domain.Sizes))
	for _, size := range domain.Sizes {
		needed := targets[size] - entry.SizeStock[size]
		if needed > 0 {
			sizes[size] = needed
		}
	}
	if len(sizes) == 0 {
		return domain.OrderItem{}, false
	}
	return domain.OrderItem{Reference: entry.Reference, Color: entry.Color, Sizes: sizes}, true
}

type stockOrders struct {
	pending    *domain.Order
	suppressed map[domain.PairKey]bool
	affected   domain.Affected
}

func (p *Planner) loadStockOrders(ctx context.Context) (stockOrders, error) {
	orders, err := p.orders.ListOrdersByKind(ctx, domain.OrderKindSystemReplenishment, []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusInProcess,
	})
	if err != nil {
		return stockOrders{}, store.Wrap(err)
	}

	state := stockOrders{suppressed: make(map[domain.PairKey]bool)}
	pending := make([]domain.Order, 0, 1)
	for _, order := range orders {
		switch order.Status {
		case domain.OrderStatusInProcess:
			for _, item := range order.Items {
				state.suppressed[item.Key()] = true
			}
		case domain.OrderStatusPending:
			pending = append(pending, order)
		}
	}
	if len(pending) == 0 {
		return state, nil
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	keep := pending[0]
	state.pending = &keep

	// Concurrent runs can race into creating two pending orders; fold them
	// back into the oldest.
	for _, extra := range pending[1:] {
		removed, err := p.orders.DeleteOrder(ctx, extra.ID)
		if err != nil && !store.IsNotFound(err) {
			return stockOrders{}, store.Wrap(err)
		}
		log.Printf("[replenishment] removed duplicate pending stock order %s (kept %s)", extra.ID, keep.ID)
		state.affected.Merge(domain.Affected{OrderIDs: []string{extra.ID}, NotificationIDs: removed})
	}
	return state, nil
}

func (p *Planner) reconcile(ctx context.Context, state stockOrders, items []domain.OrderItem) (domain.ReplenishmentResult, error) {
	result := domain.ReplenishmentResult{Items: items, Affected: state.affected}
	if result.Items == nil {
		result.Items = []domain.OrderItem{}
	}

	if len(items) == 0 {
		if state.pending == nil {
			result.Action = domain.ReplenishmentUnchanged
			return result, nil
		}
		removed, err := p.orders.DeleteOrder(ctx, state.pending.ID)
		if err != nil && !store.IsNotFound(err) {
			return domain.ReplenishmentResult{}, store.Wrap(err)
		}
		result.Action = domain.ReplenishmentDeleted
		result.OrderID = state.pending.ID
		result.Affected.Merge(domain.Affected{OrderIDs: []string{state.pending.ID}, NotificationIDs: removed})
		return result, nil
	}

	now := p.now()
	if state.pending == nil {
		created, err := p.orders.CreateOrder(ctx, domain.Order{
			ID:           xid.New("ord"),
			Kind:         domain.OrderKindSystemReplenishment,
			ClientName:   domain.StockClientName,
			Status:       domain.OrderStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
			Deadline:     now.Add(p.deadline),
			Observations: domain.ReplenishmentObservation,
			Items:        items,
		})
		if err != nil {
			return domain.ReplenishmentResult{}, store.Wrap(err)
		}
		result.Action = domain.ReplenishmentCreated
		result.OrderID = created.ID
		result.Affected.Merge(domain.Affected{OrderIDs: []string{created.ID}})
		return result, nil
	}

	result.OrderID = state.pending.ID
	if sameItems(state.pending.Items, items) {
		result.Action = domain.ReplenishmentUnchanged
		return result, nil
	}
	if _, err := p.orders.UpdateOrderItems(ctx, state.pending.ID, items, now); err != nil {
		return domain.ReplenishmentResult{}, store.Wrap(err)
	}
	result.Action = domain.ReplenishmentUpdated
	result.Affected.Merge(domain.Affected{OrderIDs: []string{state.pending.ID}})
	return result, nil
}

func (p *Planner) resolveTargets(ctx context.Context, userID string) (domain.SizeTargets, error) {
	if p.targets == nil {
		return domain.DefaultSizeTargets(), nil
	}
	targets, err := p.targets.SuggestedSizes(ctx, userID)
	if err != nil {
		return nil, store.Wrap(err)
	}
	if len(targets) == 0 {
		return domain.DefaultSizeTargets(), nil
	}
	return targets, nil
}

func sortItems(items []domain.OrderItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Reference == items[j].Reference {
			return items[i].Color < items[j].Color
		}
		return items[i].Reference < items[j].Reference
	})
}

func sameItems(a []domain.OrderItem, b []domain.OrderItem) bool {
	if len(a) != len(b) {
		return false
	}
	index := make(map[domain.PairKey]domain.OrderItem, len(a))
	for _, item := range a {
		index[item.Key()] = item
	}
	for _, item := range b {
		other, ok := index[item.Key()]
		if !ok || other.Observation != item.Observation || len(other.Sizes) != len(item.Sizes) {
			return false
		}
		for size, qty := range item.Sizes {
			if other.Sizes[size] != qty {
				return false
			}
		}
	}
	return true
}
