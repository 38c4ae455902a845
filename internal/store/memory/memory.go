package memory

import (
	"context"
	"log"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

type setting struct {
	userID string
	value  []byte
}

type Store struct {
	mu                   sync.RWMutex
	products             map[string]domain.Product
	productIDByReference map[string]string
	variations           map[string]domain.Variation
	variationIDByBarcode map[string]string
	movements            []domain.InventoryMovement
	orders               map[string]domain.Order
	customers            map[string]domain.Customer
	sales                map[string]domain.Sale
	notifications        map[string]domain.Notification
	users                map[string]domain.User
	settings             map[string]setting
}

func New() *Store {
	return &Store{
		products:             make(map[string]domain.Product),
		productIDByReference: make(map[string]string),
		variations:           make(map[string]domain.Variation),
		variationIDByBarcode: make(map[string]string),
		movements:            make([]domain.InventoryMovement, 0, 64),
		orders:               make(map[string]domain.Order),
		customers:            make(map[string]domain.Customer),
		sales:                make(map[string]domain.Sale),
		notifications:        make(map[string]domain.Notification),
		users:                make(map[string]domain.User),
		settings:             make(map[string]setting),
	}
}

// NewSeeded returns a store with demo users, customers and a small catalog
// for dev mode. It is never used when DATABASE_URL is set.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, u := range []domain.User{
		{ID: "user-admin", Username: "admin", Role: domain.RoleAdmin},
		{ID: "user-produccion", Username: "produccion", Role: domain.RoleProduction},
		{ID: "user-vendedor", Username: "vendedor", Role: domain.RoleSeller},
		{ID: "user-lector", Username: "lector", Role: domain.RoleReader},
	} {
		u.Active = true
		u.CreatedAt = now
		s.PutUser(u)
	}

	s.PutCustomer(domain.Customer{ID: "cust-mostrador", Name: "Mostrador", City: "Bucaramanga"})
	s.PutCustomer(domain.Customer{ID: "cust-calzado-luna", Name: "Calzado Luna", Document: "900123456", City: "Cucuta"})

	catalog := []struct {
		reference string
		retail    int64
		wholesale int64
		colors    []string
	}{
		{"MC1", 12000000, 9500000, []string{"ROJO", "NEGRO"}},
		{"MC2", 13500000, 10500000, []string{"BLANCO"}},
		{"BT7", 18900000, 15000000, []string{"CAFE", "NEGRO"}},
	}
	for _, item := range catalog {
		product := domain.Product{
			Reference:           item.reference,
			RetailPriceCents:    item.retail,
			WholesalePriceCents: item.wholesale,
		}
		for _, color := range item.colors {
			for i, size := range domain.Sizes {
				product.Variations = append(product.Variations, domain.Variation{
					Color: color,
					Size:  size,
					Stock: (i + len(color)) % 4,
				})
			}
		}
		if _, err := s.CreateProduct(context.Background(), product); err != nil {
			log.Printf("[memory-store] WARN: failed to seed product %s: %v", item.reference, err)
		}
	}

	return s
}

// PutUser inserts or replaces a user. Users are managed outside this backend.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// PutCustomer inserts or replaces a customer.
func (s *Store) PutCustomer(customer domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = customer
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		products = append(products, s.withVariationsLocked(product))
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Reference < products[j].Reference
	})
	return products, nil
}

func (s *Store) GetProductByReference(_ context.Context, reference string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.productIDByReference[reference]
	if !ok {
		return nil, store.NotFound("product", reference)
	}
	product := s.withVariationsLocked(s.products[id])
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Reference == "" {
		return nil, store.Invalid("reference", "required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productIDByReference[product.Reference]; exists {
		return nil, store.Invalid("reference", "already exists")
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	variations := make([]domain.Variation, 0, len(product.Variations))
	barcodes := make(map[string]bool, len(product.Variations))
	for _, v := range product.Variations {
		if !domain.IsKnownSize(v.Size) {
			return nil, store.Invalid("variations.size", "unknown size "+v.Size)
		}
		if v.Stock < 0 {
			return nil, store.Invalid("variations.stock", "must not be negative")
		}
		if v.ID == "" {
			v.ID = xid.New("var")
		}
		v.ProductID = product.ID
		v.Reference = product.Reference
		v.Barcode = domain.BarcodeFor(product.Reference, v.Color, v.Size)
		if _, taken := s.variationIDByBarcode[v.Barcode]; taken || barcodes[v.Barcode] {
			return nil, store.Invalid("variations.barcode", "duplicate barcode "+v.Barcode)
		}
		barcodes[v.Barcode] = true
		variations = append(variations, v)
	}

	stored := product
	stored.Variations = nil
	s.products[product.ID] = stored
	s.productIDByReference[product.Reference] = product.ID
	for _, v := range variations {
		s.variations[v.ID] = v
		s.variationIDByBarcode[v.Barcode] = v.ID
	}

	created := s.withVariationsLocked(stored)
	return &created, nil
}

func (s *Store) GetVariation(_ context.Context, id string) (*domain.Variation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variations[id]
	if !ok {
		return nil, store.NotFound("variation", id)
	}
	return &v, nil
}

func (s *Store) GetVariationByBarcode(_ context.Context, barcode string) (*domain.Variation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.variationIDByBarcode[barcode]
	if !ok {
		return nil, store.NotFound("variation", barcode)
	}
	v := s.variations[id]
	return &v, nil
}

func (s *Store) AdjustVariationStock(_ context.Context, id string, delta int) (*domain.Variation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variations[id]
	if !ok {
		return nil, 0, store.NotFound("variation", id)
	}
	previous := v.Stock
	if previous+delta < 0 {
		return nil, previous, &store.InsufficientStockError{Shortages: []store.Shortage{{
			Reference: v.Reference,
			Color:     v.Color,
			Size:      v.Size,
			Requested: -delta,
			Available: previous,
		}}}
	}
	v.Stock = previous + delta
	s.variations[id] = v
	return &v, previous, nil
}

func (s *Store) SetVariationStock(_ context.Context, id string, stock int) (*domain.Variation, int, error) {
	if stock < 0 {
		return nil, 0, store.Invalid("stock", "must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variations[id]
	if !ok {
		return nil, 0, store.NotFound("variation", id)
	}
	previous := v.Stock
	v.Stock = stock
	s.variations[id] = v
	return &v, previous, nil
}

func (s *Store) CreateMovement(_ context.Context, movement domain.InventoryMovement) error {
	if err := store.ValidateMovement(movement); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, movement)
	return nil
}

func (s *Store) ListMovements(_ context.Context, limit int) ([]domain.InventoryMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.InventoryMovement, 0, len(s.movements))
	for i := len(s.movements) - 1; i >= 0; i-- {
		out = append(out, s.movements[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if err := store.ValidateOrderItems(order.Items); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if _, exists := s.orders[order.ID]; exists {
		return nil, store.Invalid("id", "already exists")
	}
	stored := cloneOrder(order)
	s.orders[order.ID] = stored
	created := cloneOrder(stored)
	return &created, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.NotFound("order", id)
	}
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) ListOrders(_ context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if status != "" && order.Status != status {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) ListOrdersByKind(_ context.Context, kind domain.OrderKind, statuses []domain.OrderStatus) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, 4)
	for _, order := range s.orders {
		if order.Kind != kind {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, order.Status) {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *Store) UpdateOrderItems(_ context.Context, id string, items []domain.OrderItem, at time.Time) (*domain.Order, error) {
	if err := store.ValidateOrderItems(items); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.NotFound("order", id)
	}
	order.Items = cloneItems(items)
	order.UpdatedAt = at
	s.orders[id] = order
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if err := store.ValidateOrderItems(order.Items); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[order.ID]
	if !ok {
		return nil, store.NotFound("order", order.ID)
	}
	existing.ClientName = order.ClientName
	existing.Deadline = order.Deadline
	existing.Observations = order.Observations
	existing.Items = cloneItems(order.Items)
	existing.UpdatedAt = order.UpdatedAt
	s.orders[order.ID] = existing
	out := cloneOrder(existing)
	return &out, nil
}

func (s *Store) TransitionOrder(_ context.Context, id string, from domain.OrderStatus, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.NotFound("order", id)
	}
	if order.Status != from {
		return nil, &store.InvalidTransitionError{Entity: "order", ID: id, From: string(order.Status), To: string(to)}
	}

	order.Status = to
	order.UpdatedAt = at
	stamp := at
	switch to {
	case domain.OrderStatusInProcess:
		order.AcceptedAt = &stamp
	case domain.OrderStatusCompleted:
		order.CompletedAt = &stamp
	}
	s.orders[id] = order
	out := cloneOrder(order)
	return &out, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return nil, store.NotFound("order", id)
	}
	delete(s.orders, id)
	return s.deleteNotificationsLocked(store.NotificationFilter{OrderID: id}), nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.NotFound("customer", id)
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.Invalid("name", "required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.Invalid("id", "already exists")
	}
	customer.LastSaleAt = nil
	s.customers[customer.ID] = customer
	return &customer, nil
}

// ListCustomers returns customers by name with the date of their newest
// confirmed sale.
func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lastSale := make(map[string]time.Time)
	for _, sale := range s.sales {
		if sale.Status != domain.SaleStatusConfirmed {
			continue
		}
		if current, ok := lastSale[sale.CustomerID]; !ok || sale.CreatedAt.After(current) {
			lastSale[sale.CustomerID] = sale.CreatedAt
		}
	}

	out := make([]domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		if at, ok := lastSale[customer.ID]; ok {
			customer.LastSaleAt = &at
		}
		out = append(out, customer)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.Invalid("name", "required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customer.ID]; !ok {
		return nil, store.NotFound("customer", customer.ID)
	}
	customer.LastSaleAt = nil
	s.customers[customer.ID] = customer
	return &customer, nil
}

// DeleteCustomer refuses to remove a customer that still has sales.
func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.NotFound("customer", id)
	}
	for _, sale := range s.sales {
		if sale.CustomerID == id {
			return store.Invalid("customer_id", "customer has sales")
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.Invalid("items", "at least one item required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requested := make(map[string]int, len(sale.Items))
	order := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.Invalid("items.qty", "must be positive")
		}
		if _, ok := s.variations[item.VariationID]; !ok {
			return nil, store.NotFound("variation", item.VariationID)
		}
		if _, seen := requested[item.VariationID]; !seen {
			order = append(order, item.VariationID)
		}
		requested[item.VariationID] += item.Qty
	}

	shortages := make([]store.Shortage, 0)
	for _, id := range order {
		v := s.variations[id]
		if v.Stock < requested[id] {
			shortages = append(shortages, store.Shortage{
				Reference: v.Reference,
				Color:     v.Color,
				Size:      v.Size,
				Requested: requested[id],
				Available: v.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &store.InsufficientStockError{Shortages: shortages}
	}

	for _, id := range order {
		v := s.variations[id]
		v.Stock -= requested[id]
		s.variations[id] = v
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	stored := cloneSale(sale)
	s.sales[sale.ID] = stored
	out := cloneSale(stored)
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.NotFound("sale", id)
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, status domain.SaleStatus, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if status != "" && sale.Status != status {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	sort.Slice(sales, func(i, j int) bool {
		if sales[i].CreatedAt.Equal(sales[j].CreatedAt) {
			return sales[i].ID > sales[j].ID
		}
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) ApproveSale(_ context.Context, id string, approverID string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.NotFound("sale", id)
	}
	if sale.Status != domain.SaleStatusPending {
		return nil, &store.InvalidTransitionError{Entity: "sale", ID: id, From: string(sale.Status), To: string(domain.SaleStatusConfirmed)}
	}
	stamp := at
	sale.Status = domain.SaleStatusConfirmed
	sale.ApprovedBy = approverID
	sale.ApprovedAt = &stamp
	s.sales[id] = sale
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) RejectSale(_ context.Context, id string) (*domain.Sale, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, nil, store.NotFound("sale", id)
	}
	if sale.Status != domain.SaleStatusPending {
		return nil, nil, &store.InvalidTransitionError{Entity: "sale", ID: id, From: string(sale.Status), To: "rejected"}
	}

	for _, item := range sale.Items {
		v, ok := s.variations[item.VariationID]
		if !ok {
			log.Printf("[memory-store] WARN: variation %s of sale %s no longer exists, stock not restored", item.VariationID, id)
			continue
		}
		v.Stock += item.Qty
		s.variations[item.VariationID] = v
	}
	delete(s.sales, id)
	removed := s.deleteNotificationsLocked(store.NotificationFilter{SaleID: id})
	return &sale, removed, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) (*domain.Sale, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, nil, store.NotFound("sale", id)
	}
	delete(s.sales, id)
	removed := s.deleteNotificationsLocked(store.NotificationFilter{SaleID: id})
	return &sale, removed, nil
}

func (s *Store) CreateNotifications(_ context.Context, notifications []domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifications {
		if n.UserID == "" || n.Type == "" {
			return store.Invalid("notification", "user and type required")
		}
	}
	for _, n := range notifications {
		if n.ID == "" {
			n.ID = xid.New("ntf")
		}
		s.notifications[n.ID] = n
	}
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Notification, 0, 16)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string, userID string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return nil, store.NotFound("notification", id)
	}
	n.Read = true
	s.notifications[id] = n
	return &n, nil
}

func (s *Store) DeleteNotification(_ context.Context, id string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return store.NotFound("notification", id)
	}
	delete(s.notifications, id)
	return nil
}

func (s *Store) DeleteNotifications(_ context.Context, filter store.NotificationFilter) ([]string, error) {
	if filter.SaleID == "" && filter.OrderID == "" {
		return nil, store.Invalid("filter", "sale or order required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteNotificationsLocked(filter), nil
}

// UpsertUser records a user seen through the identity provider. An existing
// user keeps its active flag and creation time.
func (s *Store) UpsertUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.ID]; ok {
		user.Active = existing.Active
		user.CreatedAt = existing.CreatedAt
	} else {
		user.Active = true
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) ListUsersByRoles(_ context.Context, roles []string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Active && slices.Contains(roles, u.Role) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *Store) GetSetting(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.settings[key]
	if !ok {
		return nil, store.NotFound("setting", key)
	}
	return slices.Clone(entry.value), nil
}

func (s *Store) PutSetting(_ context.Context, key string, userID string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return store.Invalid("key", "required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = setting{userID: userID, value: slices.Clone(value)}
	return nil
}

func (s *Store) withVariationsLocked(product domain.Product) domain.Product {
	variations := make([]domain.Variation, 0, len(domain.Sizes))
	for _, v := range s.variations {
		if v.ProductID == product.ID {
			variations = append(variations, v)
		}
	}
	sort.Slice(variations, func(i, j int) bool {
		if variations[i].Color == variations[j].Color {
			return sizeIndex(variations[i].Size) < sizeIndex(variations[j].Size)
		}
		return variations[i].Color < variations[j].Color
	})
	product.Variations = variations
	return product
}

func (s *Store) deleteNotificationsLocked(filter store.NotificationFilter) []string {
	removed := make([]string, 0, 2)
	for id, n := range s.notifications {
		if filter.SaleID != "" && n.SaleID != filter.SaleID {
			continue
		}
		if filter.OrderID != "" && n.OrderID != filter.OrderID {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		delete(s.notifications, id)
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return removed
}

func sizeIndex(size string) int {
	return slices.Index(domain.Sizes, size)
}

func cloneItems(items []domain.OrderItem) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		sizes := make(map[string]int, len(item.Sizes))
		for size, qty := range item.Sizes {
			sizes[size] = qty
		}
		item.Sizes = sizes
		out = append(out, item)
	}
	return out
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = cloneItems(src.Items)
	if src.AcceptedAt != nil {
		at := *src.AcceptedAt
		dst.AcceptedAt = &at
	}
	if src.CompletedAt != nil {
		at := *src.CompletedAt
		dst.CompletedAt = &at
	}
	return dst
}

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	dst.Items = slices.Clone(src.Items)
	if src.ApprovedAt != nil {
		at := *src.ApprovedAt
		dst.ApprovedAt = &at
	}
	return dst
}
