package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/store/memory"
)

var (
	adminActor      = domain.Actor{UserID: "u-admin", Username: "admin", Role: domain.RoleAdmin}
	productionActor = domain.Actor{UserID: "u-prod", Username: "produccion", Role: domain.RoleProduction}
	sellerActor     = domain.Actor{UserID: "u-seller", Username: "vendedor", Role: domain.RoleSeller}
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	repo := memory.New()
	for _, actor := range []domain.Actor{adminActor, productionActor, sellerActor} {
		repo.PutUser(domain.User{ID: actor.UserID, Username: actor.Username, Role: actor.Role, Active: true})
	}
	repo.PutCustomer(domain.Customer{ID: "cust-1", Name: "Calzado Luna"})

	product := domain.Product{Reference: "MC1", RetailPriceCents: 120000, WholesalePriceCents: 95000}
	for _, size := range domain.Sizes {
		stock := 5
		if size == "35" {
			stock = 2
		}
		product.Variations = append(product.Variations, domain.Variation{Color: "ROJO", Size: size, Stock: stock})
	}
	if _, err := repo.CreateProduct(context.Background(), product); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	return New(repo, nil, nil, 5), repo
}

func as(actor domain.Actor) context.Context {
	return WithActor(context.Background(), actor)
}

func stockOf(t *testing.T, repo *memory.Store, barcode string) int {
	t.Helper()
	v, err := repo.GetVariationByBarcode(context.Background(), barcode)
	if err != nil {
		t.Fatalf("lookup %s: %v", barcode, err)
	}
	return v.Stock
}

func saleRequest(sizes map[string]int) domain.SaleCreateRequest {
	return domain.SaleCreateRequest{
		CustomerID: "cust-1",
		Kind:       domain.SaleKindRetail,
		Items:      []domain.SaleLine{{Reference: "mc1", Color: "rojo", Sizes: sizes}},
	}
}

func orderRequest() domain.OrderCreateRequest {
	return domain.OrderCreateRequest{
		ClientName: "Calzado Luna",
		Deadline:   "2026-11-02",
		Items: []domain.OrderItem{
			{Reference: "MC1", Color: "ROJO", Sizes: map[string]int{"36": 2, "37": 1}},
		},
	}
}

func countNotifications(t *testing.T, repo *memory.Store, userID string, kind domain.NotificationType) int {
	t.Helper()
	items, err := repo.ListNotifications(context.Background(), userID, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	count := 0
	for _, n := range items {
		if n.Type == kind {
			count++
		}
	}
	return count
}

func TestCreateSaleThenRejectRestoresStock(t *testing.T) {
	svc, repo := newTestService(t)

	before := map[string]int{
		"MC1-ROJO-35": stockOf(t, repo, "MC1-ROJO-35"),
		"MC1-ROJO-38": stockOf(t, repo, "MC1-ROJO-38"),
	}

	resp, err := svc.CreateSale(as(sellerActor), saleRequest(map[string]int{"35": 1, "38": 3}))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if resp.Sale.Status != domain.SaleStatusPending {
		t.Fatalf("expected pending sale, got %s", resp.Sale.Status)
	}
	if resp.Sale.TotalCents != 4*120000 {
		t.Fatalf("expected retail total %d, got %d", 4*120000, resp.Sale.TotalCents)
	}
	if got := stockOf(t, repo, "MC1-ROJO-38"); got != 2 {
		t.Fatalf("expected eager reservation to leave 2, got %d", got)
	}

	if _, err := svc.RejectSale(as(adminActor), resp.Sale.ID); err != nil {
		t.Fatalf("reject sale failed: %v", err)
	}
	for barcode, want := range before {
		if got := stockOf(t, repo, barcode); got != want {
			t.Fatalf("expected %s restored to %d, got %d", barcode, want, got)
		}
	}
	if _, err := svc.GetSale(context.Background(), resp.Sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected rejected sale to be gone, got %v", err)
	}
	if n := countNotifications(t, repo, adminActor.UserID, domain.NotificationSalePending); n != 0 {
		t.Fatalf("expected pending notification removed on reject, found %d", n)
	}
}

func TestCreateSaleFailsOnceStockIsExhausted(t *testing.T) {
	svc, repo := newTestService(t)

	if _, err := svc.CreateSale(as(sellerActor), saleRequest(map[string]int{"35": 2})); err != nil {
		t.Fatalf("first sale failed: %v", err)
	}
	if got := stockOf(t, repo, "MC1-ROJO-35"); got != 0 {
		t.Fatalf("expected stock 0 after first sale, got %d", got)
	}

	_, err := svc.CreateSale(as(sellerActor), saleRequest(map[string]int{"35": 1}))
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var shortage *store.InsufficientStockError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected InsufficientStockError, got %T", err)
	}
	if sizes := shortage.Sizes(); len(sizes) != 1 || sizes[0] != "35" {
		t.Fatalf("expected shortage on size 35, got %v", sizes)
	}
	if got := stockOf(t, repo, "MC1-ROJO-35"); got != 0 {
		t.Fatalf("failed sale must not touch stock, got %d", got)
	}
}

func TestCreateSaleNamesEveryShortSize(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.CreateSale(as(sellerActor), saleRequest(map[string]int{"35": 3, "36": 9, "37": 1}))
	var shortage *store.InsufficientStockError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if sizes := shortage.Sizes(); len(sizes) != 2 || sizes[0] != "35" || sizes[1] != "36" {
		t.Fatalf("expected sizes 35 and 36, got %v", sizes)
	}
	if got := stockOf(t, repo, "MC1-ROJO-37"); got != 5 {
		t.Fatalf("expected untouched stock on 37, got %d", got)
	}
}

func TestCreateSaleRejectsUnknownCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	req := saleRequest(map[string]int{"36": 1})
	req.CustomerID = "cust-missing"
	if _, err := svc.CreateSale(as(sellerActor), req); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateSaleValidatesRequest(t *testing.T) {
	svc, _ := newTestService(t)

	req := saleRequest(map[string]int{"44": 1})
	req.Kind = "barter"
	_, err := svc.CreateSale(as(sellerActor), req)
	var invalid *store.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := invalid.Fields["kind"]; !ok {
		t.Fatalf("expected kind to be reported, got %v", invalid.Fields)
	}
}

func TestWholesaleSaleUsesWholesalePrice(t *testing.T) {
	svc, _ := newTestService(t)

	req := saleRequest(map[string]int{"39": 2})
	req.Kind = domain.SaleKindWholesale
	resp, err := svc.CreateSale(as(sellerActor), req)
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if resp.Sale.TotalCents != 2*95000 || resp.Sale.Items[0].UnitPriceCents != 95000 {
		t.Fatalf("expected wholesale pricing, got %+v", resp.Sale)
	}
}

func TestSalePendingRespectsReceiveSaleNotifications(t *testing.T) {
	svc, repo := newTestService(t)

	prefs := domain.DefaultNotificationPrefs()
	prefs.ReceiveSaleNotifications = false
	if _, err := svc.UpdateSettings(as(productionActor), domain.SettingsUpdateRequest{NotificationPrefs: &prefs}); err != nil {
		t.Fatalf("update settings failed: %v", err)
	}

	resp, err := svc.CreateSale(as(sellerActor), saleRequest(map[string]int{"36": 1}))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if n := countNotifications(t, repo, productionActor.UserID, domain.NotificationSalePending); n != 0 {
		t.Fatalf("expected no sale notification for opted-out user, got %d", n)
	}
	if n := countNotifications(t, repo, adminActor.UserID, domain.NotificationSalePending); n != 1 {
		t.Fatalf("expected admin to be notified once, got %d", n)
	}
	if len(resp.Affected.NotificationIDs) != 1 {
		t.Fatalf("expected one notification id, got %v", resp.Affected.NotificationIDs)
	}
}

func TestMutedCreatorIsSuppressed(t *testing.T) {
	svc, repo := newTestService(t)

	prefs := domain.DefaultNotificationPrefs()
	prefs.MutedCreators = []string{sellerActor.UserID}
	if _, err := svc.UpdateSettings(as(adminActor), domain.SettingsUpdateRequest{NotificationPrefs: &prefs}); err != nil {
		t.Fatalf("update settings failed: %v", err)
	}

	if _, err := svc.CreateOrder(as(sellerActor), orderRequest()); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if n := countNotifications(t, repo, adminActor.UserID, domain.NotificationOrderCreated); n != 0 {
		t.Fatalf("expected muted creator to be suppressed, got %d", n)
	}
	if n := countNotifications(t, repo, productionActor.UserID, domain.NotificationOrderCreated); n != 1 {
		t.Fatalf("expected production to be notified, got %d", n)
	}
}

func TestApproveSaleNotifiesCreatorAndClearsPending(t *testing.T) {
	svc, repo := newTestService(t)

	created, err := svc.CreateSale(as(sellerActor), saleRequest(map[string]int{"36": 1}))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	approved, err := svc.ApproveSale(as(adminActor), created.Sale.ID)
	if err != nil {
		t.Fatalf("approve sale failed: %v", err)
	}
	if approved.Sale.Status != domain.SaleStatusConfirmed || approved.Sale.ApprovedBy != adminActor.UserID || approved.Sale.ApprovedAt == nil {
		t.Fatalf("unexpected approved sale %+v", approved.Sale)
	}
	if n := countNotifications(t, repo, adminActor.UserID, domain.NotificationSalePending); n != 0 {
		t.Fatalf("expected pending notifications cleared, got %d", n)
	}
	if n := countNotifications(t, repo, sellerActor.UserID, domain.NotificationSaleConfirmed); n != 1 {
		t.Fatalf("expected creator to get a confirmation, got %d", n)
	}

	if _, err := svc.RejectSale(as(adminActor), created.Sale.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected confirmed sale reject to fail, got %v", err)
	}
	if _, err := svc.ApproveSale(as(adminActor), created.Sale.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected second approve to fail, got %v", err)
	}
}

func TestDeleteConfirmedSaleKeepsStock(t *testing.T) {
	svc, repo := newTestService(t)

	created, err := svc.CreateSale(as(sellerActor), saleRequest(map[string]int{"40": 2}))
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := svc.ApproveSale(as(adminActor), created.Sale.ID); err != nil {
		t.Fatalf("approve sale failed: %v", err)
	}
	if _, err := svc.DeleteSale(as(adminActor), created.Sale.ID); err != nil {
		t.Fatalf("delete sale failed: %v", err)
	}
	if got := stockOf(t, repo, "MC1-ROJO-40"); got != 3 {
		t.Fatalf("expected delete to leave stock at 3, got %d", got)
	}
}

func TestCompleteOrderOnPendingFails(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateOrder(as(sellerActor), orderRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if _, err := svc.CompleteOrder(as(productionActor), created.Order.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	got, err := svc.GetOrder(context.Background(), created.Order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if got.Status != domain.OrderStatusPending || !got.UpdatedAt.Equal(created.Order.UpdatedAt) || got.CompletedAt != nil {
		t.Fatalf("expected order unchanged, got %+v", got)
	}
}

func TestAcceptOrderTwiceFails(t *testing.T) {
	svc, repo := newTestService(t)

	created, err := svc.CreateOrder(as(sellerActor), orderRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	accepted, err := svc.AcceptOrder(as(productionActor), created.Order.ID)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if accepted.Order.Status != domain.OrderStatusInProcess || accepted.Order.AcceptedAt == nil {
		t.Fatalf("unexpected accepted order %+v", accepted.Order)
	}

	_, err = svc.AcceptOrder(as(productionActor), created.Order.ID)
	var transition *store.InvalidTransitionError
	if !errors.As(err, &transition) || transition.From != string(domain.OrderStatusInProcess) {
		t.Fatalf("expected invalid transition from in_process, got %v", err)
	}
	got, _ := svc.GetOrder(context.Background(), created.Order.ID)
	if got.Status != domain.OrderStatusInProcess || !got.UpdatedAt.Equal(accepted.Order.UpdatedAt) {
		t.Fatalf("expected order unchanged, got %+v", got)
	}

	completed, err := svc.CompleteOrder(as(productionActor), created.Order.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Order.Status != domain.OrderStatusCompleted || completed.Order.CompletedAt == nil {
		t.Fatalf("unexpected completed order %+v", completed.Order)
	}
	if n := countNotifications(t, repo, sellerActor.UserID, domain.NotificationOrderStatusChanged); n != 2 {
		t.Fatalf("expected creator notified of both transitions, got %d", n)
	}
}

func TestAcceptMissingOrder(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.AcceptOrder(as(adminActor), "ord-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateOrderRequiresFields(t *testing.T) {
	svc, _ := newTestService(t)

	req := orderRequest()
	req.ClientName = "  "
	req.Items = nil
	_, err := svc.CreateOrder(as(sellerActor), req)
	var invalid *store.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"client_name", "items"} {
		if _, ok := invalid.Fields[field]; !ok {
			t.Fatalf("expected %s to be reported, got %v", field, invalid.Fields)
		}
	}
}

func TestDeleteOrderRemovesNotifications(t *testing.T) {
	svc, repo := newTestService(t)

	created, err := svc.CreateOrder(as(sellerActor), orderRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if len(created.Affected.NotificationIDs) != 2 {
		t.Fatalf("expected admin and production notified, got %v", created.Affected.NotificationIDs)
	}

	affected, err := svc.DeleteOrder(as(adminActor), created.Order.ID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(affected.NotificationIDs) != 2 {
		t.Fatalf("expected both notifications removed, got %v", affected.NotificationIDs)
	}
	if n := countNotifications(t, repo, adminActor.UserID, domain.NotificationOrderCreated); n != 0 {
		t.Fatalf("expected no leftover notifications, got %d", n)
	}
}

func TestUpdateOrderRejectsCompleted(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateOrder(as(sellerActor), orderRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	edit := domain.OrderUpdateRequest{
		ClientName: "Calzado Luna SAS",
		Deadline:   "2026-11-10",
		Items:      []domain.OrderItem{{Reference: "mc1", Color: "negro", Sizes: map[string]int{"38": 4}}},
	}
	updated, err := svc.UpdateOrder(as(sellerActor), created.Order.ID, edit)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Order.ClientName != "Calzado Luna SAS" || updated.Order.Items[0].Color != "NEGRO" {
		t.Fatalf("unexpected updated order %+v", updated.Order)
	}

	if _, err := svc.AcceptOrder(as(adminActor), created.Order.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := svc.CompleteOrder(as(adminActor), created.Order.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := svc.UpdateOrder(as(sellerActor), created.Order.ID, edit); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected completed order edit to fail, got %v", err)
	}
}

func TestScanBarcodeMaintainsStockOrder(t *testing.T) {
	svc, repo := newTestService(t)

	resp, err := svc.ScanBarcode(as(productionActor), domain.ScanRequest{Barcode: "mc1-rojo-35", Delta: -2})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if resp.Variation.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", resp.Variation.Stock)
	}
	if resp.Movement == nil || resp.Movement.Type != domain.MovementExit || resp.Movement.Quantity != 2 {
		t.Fatalf("expected exit movement of 2, got %+v", resp.Movement)
	}
	if resp.Replenishment == nil || resp.Replenishment.Action != domain.ReplenishmentCreated {
		t.Fatalf("expected stock order to be created, got %+v", resp.Replenishment)
	}

	orders, err := repo.ListOrdersByKind(context.Background(), domain.OrderKindSystemReplenishment, nil)
	if err != nil {
		t.Fatalf("list stock orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ClientName != domain.StockClientName || orders[0].Items[0].Sizes["35"] != 1 {
		t.Fatalf("unexpected stock orders %+v", orders)
	}

	back, err := svc.SetStock(as(productionActor), resp.Variation.ID, domain.StockSetRequest{Stock: 4, Reason: "conteo"})
	if err != nil {
		t.Fatalf("set stock failed: %v", err)
	}
	if back.Replenishment == nil || back.Replenishment.Action != domain.ReplenishmentDeleted {
		t.Fatalf("expected stock order to be removed, got %+v", back.Replenishment)
	}

	movements, err := svc.ListMovements(context.Background(), 10)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements.Movements) != 2 || movements.Movements[0].Method != domain.MovementManual {
		t.Fatalf("unexpected movements %+v", movements.Movements)
	}
}

func TestScanBarcodeCannotGoNegative(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.ScanBarcode(as(productionActor), domain.ScanRequest{Barcode: "MC1-ROJO-35", Delta: -3})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := stockOf(t, repo, "MC1-ROJO-35"); got != 2 {
		t.Fatalf("expected stock unchanged, got %d", got)
	}
}

func TestSuggestedSizesDriveReplenishment(t *testing.T) {
	svc, _ := newTestService(t)

	targets := domain.SizeTargets{"34": 6}
	if _, err := svc.UpdateSettings(as(adminActor), domain.SettingsUpdateRequest{SuggestedSizes: targets}); err != nil {
		t.Fatalf("update settings failed: %v", err)
	}
	result, err := svc.RunReplenishment(as(adminActor))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Items) != 1 || len(result.Items[0].Sizes) != 1 || result.Items[0].Sizes["34"] != 1 {
		t.Fatalf("expected one unit of size 34, got %+v", result.Items)
	}

	other, err := svc.RunReplenishment(as(productionActor))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if other.Action != domain.ReplenishmentDeleted {
		t.Fatalf("expected default targets to clear the order, got %s", other.Action)
	}
}

func TestOperationsRequireActor(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreateOrder(context.Background(), orderRequest()); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected missing actor to be rejected, got %v", err)
	}
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ListOrders(context.Background(), "archived", 10); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNotificationInboxIsPerUser(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreateOrder(as(sellerActor), orderRequest()); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	inbox, err := svc.ListNotifications(as(adminActor), 0)
	if err != nil || len(inbox.Notifications) != 1 {
		t.Fatalf("expected one notification, got %v %v", inbox, err)
	}
	id := inbox.Notifications[0].ID

	if _, err := svc.MarkNotificationRead(as(productionActor), id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected other users to be refused, got %v", err)
	}
	read, err := svc.MarkNotificationRead(as(adminActor), id)
	if err != nil || !read.Read {
		t.Fatalf("expected notification marked read, got %+v %v", read, err)
	}
	if _, err := svc.DeleteNotification(as(adminActor), id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestServiceUsesInjectedClock(t *testing.T) {
	svc, _ := newTestService(t)
	fixed := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	resp, err := svc.CreateOrder(as(sellerActor), orderRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if !resp.Order.CreatedAt.Equal(fixed) {
		t.Fatalf("expected created_at %s, got %s", fixed, resp.Order.CreatedAt)
	}
}
