package replenishment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/inventory"
	"pearstock/backend/internal/store/memory"
)

type fixedTargets domain.SizeTargets

func (f fixedTargets) SuggestedSizes(context.Context, string) (domain.SizeTargets, error) {
	return domain.SizeTargets(f), nil
}

func emptyStock(color string) []domain.Variation {
	out := make([]domain.Variation, 0, len(domain.Sizes))
	for _, size := range domain.Sizes {
		out = append(out, domain.Variation{Color: color, Size: size})
	}
	return out
}

func newPlannerFixture(t *testing.T, products ...domain.Product) (*Planner, *memory.Store) {
	t.Helper()
	repo := memory.New()
	for _, product := range products {
		_, err := repo.CreateProduct(context.Background(), product)
		require.NoError(t, err)
	}
	planner := NewPlanner(inventory.NewReader(repo), repo, nil, 0)
	return planner, repo
}

func pendingStockOrders(t *testing.T, repo *memory.Store) []domain.Order {
	t.Helper()
	orders, err := repo.ListOrdersByKind(context.Background(), domain.OrderKindSystemReplenishment, []domain.OrderStatus{domain.OrderStatusPending})
	require.NoError(t, err)
	return orders
}

func TestComputeDeficitsSkipsSizesWithoutShortfall(t *testing.T) {
	snapshot := []domain.SnapshotEntry{{
		Reference: "MC1",
		Color:     "ROJO",
		SizeStock: map[string]int{"34": 0, "35": 0, "36": 0, "37": 0, "38": 0, "39": 0, "40": 0, "41": 0},
	}}

	items := ComputeDeficits(snapshot, domain.DefaultSizeTargets(), nil)
	require.Len(t, items, 1)
	require.Equal(t, "MC1", items[0].Reference)
	require.Equal(t, "ROJO", items[0].Color)
	require.Equal(t, map[string]int{"35": 1, "36": 2, "37": 3, "38": 3, "39": 2, "40": 1}, items[0].Sizes)
}

func TestComputeDeficitsTreatsMissingSizesAsZero(t *testing.T) {
	snapshot := []domain.SnapshotEntry{{Reference: "MC2", Color: "BLANCO", SizeStock: map[string]int{"37": 5}}}

	items := ComputeDeficits(snapshot, domain.SizeTargets{"36": 1, "37": 2}, nil)
	require.Len(t, items, 1)
	require.Equal(t, map[string]int{"36": 1}, items[0].Sizes)
}

func TestComputeDeficitsHonoursSuppressedPairs(t *testing.T) {
	snapshot := []domain.SnapshotEntry{
		{Reference: "MC1", Color: "ROJO", SizeStock: map[string]int{}},
		{Reference: "MC1", Color: "NEGRO", SizeStock: map[string]int{}},
	}
	suppressed := map[domain.PairKey]bool{{Reference: "MC1", Color: "ROJO"}: true}

	items := ComputeDeficits(snapshot, domain.DefaultSizeTargets(), suppressed)
	require.Len(t, items, 1)
	require.Equal(t, "NEGRO", items[0].Color)
}

func TestPlanCreatesPendingStockOrder(t *testing.T) {
	planner, repo := newPlannerFixture(t, domain.Product{Reference: "MC1", Variations: emptyStock("ROJO")})
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	planner.now = func() time.Time { return fixed }

	result, err := planner.Plan(context.Background(), "user-admin")
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentCreated, result.Action)
	require.Equal(t, []string{result.OrderID}, result.Affected.OrderIDs)

	orders := pendingStockOrders(t, repo)
	require.Len(t, orders, 1)
	order := orders[0]
	require.Equal(t, domain.StockClientName, order.ClientName)
	require.Equal(t, domain.OrderKindSystemReplenishment, order.Kind)
	require.Equal(t, domain.ReplenishmentObservation, order.Observations)
	require.Equal(t, fixed.Add(5*24*time.Hour), order.Deadline)
	require.Empty(t, order.CreatedBy)
	require.Len(t, order.Items, 1)
	require.Equal(t, map[string]int{"35": 1, "36": 2, "37": 3, "38": 3, "39": 2, "40": 1}, order.Items[0].Sizes)
}

func TestPlanIsIdempotent(t *testing.T) {
	planner, repo := newPlannerFixture(t,
		domain.Product{Reference: "MC1", Variations: emptyStock("ROJO")},
		domain.Product{Reference: "BT7", Variations: emptyStock("CAFE")},
	)
	ctx := context.Background()

	first, err := planner.Plan(ctx, "")
	require.NoError(t, err)
	before := pendingStockOrders(t, repo)
	require.Len(t, before, 1)

	second, err := planner.Plan(ctx, "")
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentUnchanged, second.Action)
	require.Equal(t, first.OrderID, second.OrderID)
	require.Empty(t, second.Affected.OrderIDs)

	after := pendingStockOrders(t, repo)
	require.Len(t, after, 1)
	require.Equal(t, before[0].UpdatedAt, after[0].UpdatedAt)
	require.Equal(t, before[0].Items, after[0].Items)
}

func TestPlanOverwritesItemsAndDeletesWhenSatisfied(t *testing.T) {
	planner, repo := newPlannerFixture(t, domain.Product{Reference: "MC1", Variations: emptyStock("ROJO")})
	ctx := context.Background()

	created, err := planner.Plan(ctx, "")
	require.NoError(t, err)

	product, err := repo.GetProductByReference(ctx, "MC1")
	require.NoError(t, err)
	for _, v := range product.Variations {
		if v.Size == "37" {
			_, _, err := repo.SetVariationStock(ctx, v.ID, 3)
			require.NoError(t, err)
		}
	}

	updated, err := planner.Plan(ctx, "")
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentUpdated, updated.Action)
	require.Equal(t, created.OrderID, updated.OrderID)
	require.NotContains(t, updated.Items[0].Sizes, "37")

	for _, v := range product.Variations {
		_, _, err := repo.SetVariationStock(ctx, v.ID, 5)
		require.NoError(t, err)
	}

	deleted, err := planner.Plan(ctx, "")
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentDeleted, deleted.Action)
	require.Equal(t, created.OrderID, deleted.OrderID)
	require.Empty(t, pendingStockOrders(t, repo))

	_, err = repo.GetOrder(ctx, created.OrderID)
	require.Error(t, err)
}

func TestPlanSkipsPairsWithInProcessStockOrder(t *testing.T) {
	planner, repo := newPlannerFixture(t, domain.Product{
		Reference:  "MC1",
		Variations: append(emptyStock("ROJO"), emptyStock("NEGRO")...),
	})
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.CreateOrder(ctx, domain.Order{
		ID:         "ord-in-process",
		Kind:       domain.OrderKindSystemReplenishment,
		ClientName: domain.StockClientName,
		Status:     domain.OrderStatusInProcess,
		CreatedAt:  now,
		UpdatedAt:  now,
		Items:      []domain.OrderItem{{Reference: "MC1", Color: "ROJO", Sizes: map[string]int{"37": 3}}},
	})
	require.NoError(t, err)

	result, err := planner.Plan(ctx, "")
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, "NEGRO", result.Items[0].Color)

	inProcess, err := repo.GetOrder(ctx, "ord-in-process")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"37": 3}, inProcess.Items[0].Sizes)
}

func TestPlanCollapsesDuplicatePendingOrders(t *testing.T) {
	planner, repo := newPlannerFixture(t, domain.Product{Reference: "MC1", Variations: emptyStock("ROJO")})
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"ord-older", "ord-newer"} {
		_, err := repo.CreateOrder(ctx, domain.Order{
			ID:         id,
			Kind:       domain.OrderKindSystemReplenishment,
			ClientName: domain.StockClientName,
			Status:     domain.OrderStatusPending,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			Items:      []domain.OrderItem{{Reference: "OLD", Color: "X", Sizes: map[string]int{"36": 1}}},
		})
		require.NoError(t, err)
	}

	result, err := planner.Plan(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "ord-older", result.OrderID)
	require.Contains(t, result.Affected.OrderIDs, "ord-newer")

	orders := pendingStockOrders(t, repo)
	require.Len(t, orders, 1)
	require.Equal(t, "ord-older", orders[0].ID)
	require.Equal(t, "MC1", orders[0].Items[0].Reference)
}

func TestPlanUsesConfiguredTargets(t *testing.T) {
	repo := memory.New()
	_, err := repo.CreateProduct(context.Background(), domain.Product{Reference: "MC1", Variations: emptyStock("ROJO")})
	require.NoError(t, err)
	planner := NewPlanner(inventory.NewReader(repo), repo, fixedTargets{"41": 4}, 2)

	result, err := planner.Plan(context.Background(), "user-produccion")
	require.NoError(t, err)
	require.Equal(t, []domain.OrderItem{{Reference: "MC1", Color: "ROJO", Sizes: map[string]int{"41": 4}}}, result.Items)
}

func TestCheckItemMatchesFullPlan(t *testing.T) {
	planner, repo := newPlannerFixture(t,
		domain.Product{Reference: "MC1", Variations: emptyStock("ROJO")},
		domain.Product{Reference: "MC2", Variations: emptyStock("BLANCO")},
	)
	ctx := context.Background()

	_, err := planner.Plan(ctx, "")
	require.NoError(t, err)

	product, err := repo.GetProductByReference(ctx, "MC2")
	require.NoError(t, err)
	var target domain.Variation
	for _, v := range product.Variations {
		if v.Size == "38" {
			target = v
		}
	}
	_, _, err = repo.SetVariationStock(ctx, target.ID, 7)
	require.NoError(t, err)

	incremental, err := planner.CheckItem(ctx, "", "MC2", "BLANCO", "38", 7)
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentUpdated, incremental.Action)

	full, err := planner.Plan(ctx, "")
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentUnchanged, full.Action)
	require.Equal(t, incremental.Items, full.Items)

	orders := pendingStockOrders(t, repo)
	require.Len(t, orders, 1)
	count := 0
	for _, item := range orders[0].Items {
		if item.Reference == "MC2" && item.Color == "BLANCO" {
			count++
			require.NotContains(t, item.Sizes, "38")
		}
	}
	require.Equal(t, 1, count)
}

func TestCheckItemRemovesSatisfiedPairAndDeletesEmptyOrder(t *testing.T) {
	variations := make([]domain.Variation, 0, len(domain.Sizes))
	for _, size := range domain.Sizes {
		variations = append(variations, domain.Variation{Color: "ROJO", Size: size, Stock: 5})
	}
	variations[3].Stock = 0 // size 37
	planner, repo := newPlannerFixture(t, domain.Product{Reference: "MC1", Variations: variations})
	ctx := context.Background()

	created, err := planner.CheckItem(ctx, "", "MC1", "ROJO", "37", 0)
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentCreated, created.Action)
	require.Equal(t, map[string]int{"37": 3}, created.Items[0].Sizes)

	deleted, err := planner.CheckItem(ctx, "", "MC1", "ROJO", "37", 3)
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentDeleted, deleted.Action)
	require.Empty(t, pendingStockOrders(t, repo))
}

func TestCheckItemRejectsUnknownSize(t *testing.T) {
	planner, _ := newPlannerFixture(t)

	_, err := planner.CheckItem(context.Background(), "", "MC1", "ROJO", "50", 1)
	require.Error(t, err)
}

func TestCheckItemLeavesPairsWithoutVariationsOut(t *testing.T) {
	variations := make([]domain.Variation, 0, len(domain.Sizes))
	for _, size := range domain.Sizes {
		variations = append(variations, domain.Variation{Color: "ROJO", Size: size, Stock: 5})
	}
	planner, repo := newPlannerFixture(t, domain.Product{Reference: "MC1", Variations: variations})
	ctx := context.Background()

	full, err := planner.Plan(ctx, "")
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentUnchanged, full.Action)

	result, err := planner.CheckItem(ctx, "", "GHOST", "AZUL", "36", 0)
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentUnchanged, result.Action)
	require.Empty(t, pendingStockOrders(t, repo))
}

func TestCheckItemDropsStaleEntryForPairWithoutVariations(t *testing.T) {
	planner, repo := newPlannerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.CreateOrder(ctx, domain.Order{
		ID:         "ord-stale",
		Kind:       domain.OrderKindSystemReplenishment,
		ClientName: domain.StockClientName,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		Deadline:   now.Add(24 * time.Hour),
		Items:      []domain.OrderItem{{Reference: "GHOST", Color: "AZUL", Sizes: map[string]int{"36": 2}}},
	})
	require.NoError(t, err)

	result, err := planner.CheckItem(ctx, "", "GHOST", "AZUL", "36", 0)
	require.NoError(t, err)
	require.Equal(t, domain.ReplenishmentDeleted, result.Action)
	require.Equal(t, "ord-stale", result.OrderID)
	require.Empty(t, pendingStockOrders(t, repo))
}
