package store

import (
	"context"
	"time"

	"pearstock/backend/internal/domain"
)

// NotificationFilter selects notifications linked to a sale or an order.
// Empty fields match anything; Type narrows the match further.
type NotificationFilter struct {
	SaleID  string
	OrderID string
	Type    domain.NotificationType
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByReference(ctx context.Context, reference string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetVariation(ctx context.Context, id string) (*domain.Variation, error)
	GetVariationByBarcode(ctx context.Context, barcode string) (*domain.Variation, error)
	AdjustVariationStock(ctx context.Context, id string, delta int) (*domain.Variation, int, error)
	SetVariationStock(ctx context.Context, id string, stock int) (*domain.Variation, int, error)
	CreateMovement(ctx context.Context, movement domain.InventoryMovement) error
	ListMovements(ctx context.Context, limit int) ([]domain.InventoryMovement, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error)
	ListOrdersByKind(ctx context.Context, kind domain.OrderKind, statuses []domain.OrderStatus) ([]domain.Order, error)
	UpdateOrderItems(ctx context.Context, id string, items []domain.OrderItem, at time.Time) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	TransitionOrder(ctx context.Context, id string, from domain.OrderStatus, to domain.OrderStatus, at time.Time) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) ([]string, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, status domain.SaleStatus, limit int) ([]domain.Sale, error)
	ApproveSale(ctx context.Context, id string, approverID string, at time.Time) (*domain.Sale, error)
	RejectSale(ctx context.Context, id string) (*domain.Sale, []string, error)
	DeleteSale(ctx context.Context, id string) (*domain.Sale, []string, error)

	CreateNotifications(ctx context.Context, notifications []domain.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string, userID string) (*domain.Notification, error)
	DeleteNotification(ctx context.Context, id string, userID string) error
	DeleteNotifications(ctx context.Context, filter NotificationFilter) ([]string, error)

	UpsertUser(ctx context.Context, user domain.User) error
	ListUsersByRoles(ctx context.Context, roles []string) ([]domain.User, error)
	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, userID string, value []byte) error
}
