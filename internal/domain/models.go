package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	RoleAdmin      = "admin"
	RoleProduction = "produccion"
	RoleSeller     = "vendedor"
	RoleReader     = "lector"
)

// Sizes is the ordered size run every product is stocked in.
var Sizes = []string{"34", "35", "36", "37", "38", "39", "40", "41"}

func IsKnownSize(size string) bool {
	for _, known := range Sizes {
		if known == size {
			return true
		}
	}
	return false
}

func BarcodeFor(reference string, color string, size string) string {
	return fmt.Sprintf("%s-%s-%s", reference, color, size)
}

func NormalizeReference(reference string) string {
	return strings.ToUpper(strings.TrimSpace(reference))
}

func NormalizeColor(color string) string {
	return strings.ToUpper(strings.TrimSpace(color))
}

type Actor struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (a Actor) DisplayName() string {
	if a.Username != "" {
		return a.Username
	}
	return a.UserID
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Customer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
	City     string `json:"city,omitempty"`
	Address  string `json:"address,omitempty"`
	Notes    string `json:"notes,omitempty"`

	// LastSaleAt is the creation time of the newest confirmed sale. Only
	// filled by listings.
	LastSaleAt *time.Time `json:"last_sale_at,omitempty"`
}

type CustomerCreateRequest struct {
	Name     string `json:"name" validate:"required"`
	Document string `json:"document" validate:"required"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
}

type CustomerUpdateRequest struct {
	Name     string `json:"name" validate:"required"`
	Document string `json:"document" validate:"required"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
}

type CustomerListResponse struct {
	Customers []Customer `json:"customers"`
}

type Product struct {
	ID                  string      `json:"id"`
	Reference           string      `json:"reference"`
	ImageURL            string      `json:"image_url,omitempty"`
	RetailPriceCents    int64       `json:"retail_price_cents"`
	WholesalePriceCents int64       `json:"wholesale_price_cents"`
	CreatedAt           time.Time   `json:"created_at"`
	Variations          []Variation `json:"variations"`
}

func (p Product) PriceFor(kind SaleKind) int64 {
	if kind == SaleKindWholesale {
		return p.WholesalePriceCents
	}
	return p.RetailPriceCents
}

type Variation struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Reference string `json:"reference"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Stock     int    `json:"stock"`
	Barcode   string `json:"barcode"`
}

type VariationInput struct {
	Color string `json:"color" validate:"required"`
	Size  string `json:"size" validate:"required,shoesize"`
	Stock int    `json:"stock" validate:"gte=0"`
}

type ProductCreateRequest struct {
	Reference           string           `json:"reference" validate:"required"`
	ImageURL            string           `json:"image_url"`
	RetailPriceCents    int64            `json:"retail_price_cents" validate:"gte=0"`
	WholesalePriceCents int64            `json:"wholesale_price_cents" validate:"gte=0"`
	Variations          []VariationInput `json:"variations" validate:"required,min=1,dive"`
}

// SnapshotEntry is the stock of one (reference, color) pair across sizes.
type SnapshotEntry struct {
	Reference    string            `json:"reference"`
	Color        string            `json:"color"`
	SizeStock    map[string]int    `json:"size_stock"`
	VariationIDs map[string]string `json:"variation_ids"`
}

type PairKey struct {
	Reference string
	Color     string
}

func (e SnapshotEntry) Key() PairKey {
	return PairKey{Reference: e.Reference, Color: e.Color}
}

type SnapshotResponse struct {
	Entries []SnapshotEntry `json:"entries"`
}

// SizeTargets maps a size to the number of pairs that should be on hand.
type SizeTargets map[string]int

func DefaultSizeTargets() SizeTargets {
	return SizeTargets{
		"34": 0,
		"35": 1,
		"36": 2,
		"37": 3,
		"38": 3,
		"39": 2,
		"40": 1,
		"41": 0,
	}
}

type OrderKind string

const (
	OrderKindCustomer            OrderKind = "customer"
	OrderKindSystemReplenishment OrderKind = "system_replenishment"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusInProcess OrderStatus = "in_process"
	OrderStatusCompleted OrderStatus = "completed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProcess, OrderStatusCompleted:
		return true
	}
	return false
}

const (
	StockClientName          = "Stock"
	ReplenishmentObservation = "automatic stock replenishment"
)

type OrderItem struct {
	Reference   string         `json:"reference" validate:"required"`
	Color       string         `json:"color" validate:"required"`
	Sizes       map[string]int `json:"sizes" validate:"required,min=1"`
	Observation string         `json:"observation,omitempty"`
}

func (i OrderItem) Key() PairKey {
	return PairKey{Reference: i.Reference, Color: i.Color}
}

type Order struct {
	ID           string      `json:"id"`
	Kind         OrderKind   `json:"kind"`
	ClientName   string      `json:"client_name"`
	CreatedBy    string      `json:"created_by,omitempty"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	AcceptedAt   *time.Time  `json:"accepted_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Deadline     time.Time   `json:"deadline"`
	Observations string      `json:"observations,omitempty"`
	Items        []OrderItem `json:"items"`
}

type OrderCreateRequest struct {
	ClientName   string      `json:"client_name" validate:"required"`
	Deadline     string      `json:"deadline" validate:"required,datetime=2006-01-02"`
	Observations string      `json:"observations"`
	Items        []OrderItem `json:"items" validate:"required,min=1,dive"`
}

type OrderUpdateRequest struct {
	ClientName   string      `json:"client_name" validate:"required"`
	Deadline     string      `json:"deadline" validate:"required,datetime=2006-01-02"`
	Observations string      `json:"observations"`
	Items        []OrderItem `json:"items" validate:"required,min=1,dive"`
}

type OrderResponse struct {
	Order    Order    `json:"order"`
	Affected Affected `json:"affected"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type SaleKind string

const (
	SaleKindRetail    SaleKind = "retail"
	SaleKindWholesale SaleKind = "wholesale"
)

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusConfirmed SaleStatus = "confirmed"
)

type SaleItem struct {
	VariationID    string `json:"variation_id"`
	Reference      string `json:"reference"`
	Color          string `json:"color"`
	Size           string `json:"size"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Sale struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Kind       SaleKind   `json:"kind"`
	Status     SaleStatus `json:"status"`
	TotalCents int64      `json:"total_cents"`
	CreatedBy  string     `json:"created_by"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Items      []SaleItem `json:"items"`
}

func (s Sale) TotalPairs() int {
	total := 0
	for _, item := range s.Items {
		total += item.Qty
	}
	return total
}

// SaleLine requests quantities per size for one (reference, color) pair.
type SaleLine struct {
	Reference string         `json:"reference" validate:"required"`
	Color     string         `json:"color" validate:"required"`
	Sizes     map[string]int `json:"sizes" validate:"required,min=1"`
}

type SaleCreateRequest struct {
	CustomerID string     `json:"customer_id" validate:"required"`
	Kind       SaleKind   `json:"kind" validate:"required,oneof=retail wholesale"`
	Items      []SaleLine `json:"items" validate:"required,min=1,dive"`
}

type SaleResponse struct {
	Sale     Sale     `json:"sale"`
	Affected Affected `json:"affected"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type NotificationType string

const (
	NotificationSalePending        NotificationType = "sale_pending"
	NotificationSaleConfirmed      NotificationType = "sale_confirmed"
	NotificationOrderCreated       NotificationType = "order_created"
	NotificationOrderStatusChanged NotificationType = "order_status_changed"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	OrderID   string           `json:"order_id,omitempty"`
	SaleID    string           `json:"sale_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
}

type NotificationPrefs struct {
	ReceiveSaleNotifications  bool     `json:"receiveSaleNotifications"`
	ReceiveOrderNotifications bool     `json:"receiveOrderNotifications"`
	MutedCreators             []string `json:"mutedCreators"`
}

func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{
		ReceiveSaleNotifications:  true,
		ReceiveOrderNotifications: true,
		MutedCreators:             []string{},
	}
}

func (p NotificationPrefs) Mutes(userID string) bool {
	if userID == "" {
		return false
	}
	for _, muted := range p.MutedCreators {
		if muted == userID {
			return true
		}
	}
	return false
}

type SettingsResponse struct {
	SuggestedSizes    SizeTargets       `json:"suggested_sizes"`
	NotificationPrefs NotificationPrefs `json:"notification_prefs"`
}

type SettingsUpdateRequest struct {
	SuggestedSizes    SizeTargets        `json:"suggested_sizes,omitempty"`
	NotificationPrefs *NotificationPrefs `json:"notification_prefs,omitempty"`
}

type MovementType string

const (
	MovementEntry MovementType = "entry"
	MovementExit  MovementType = "exit"
)

type MovementMethod string

const (
	MovementManual MovementMethod = "manual"
	MovementScan   MovementMethod = "scan"
)

type MovementDetail struct {
	Reference     string `json:"reference"`
	Color         string `json:"color"`
	Size          string `json:"size"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
	Reason        string `json:"reason,omitempty"`
}

type InventoryMovement struct {
	ID          string         `json:"id"`
	VariationID string         `json:"variation_id"`
	UserID      string         `json:"user_id"`
	Type        MovementType   `json:"type"`
	Quantity    int            `json:"quantity"`
	Method      MovementMethod `json:"method"`
	Detail      MovementDetail `json:"detail"`
	CreatedAt   time.Time      `json:"created_at"`
}

type MovementListResponse struct {
	Movements []InventoryMovement `json:"movements"`
}

type StockSetRequest struct {
	Stock  int    `json:"stock" validate:"gte=0"`
	Reason string `json:"reason"`
}

// ScanRequest adds (positive delta) or removes (negative delta) units by barcode.
type ScanRequest struct {
	Barcode string `json:"barcode" validate:"required"`
	Delta   int    `json:"delta" validate:"ne=0"`
}

type StockChangeResponse struct {
	Variation     Variation            `json:"variation"`
	Movement      *InventoryMovement   `json:"movement,omitempty"`
	Replenishment *ReplenishmentResult `json:"replenishment,omitempty"`
	Affected      Affected             `json:"affected"`
}

type ProductResponse struct {
	Product       Product              `json:"product"`
	Replenishment *ReplenishmentResult `json:"replenishment,omitempty"`
	Affected      Affected             `json:"affected"`
}

type ReplenishmentAction string

const (
	ReplenishmentCreated   ReplenishmentAction = "created"
	ReplenishmentUpdated   ReplenishmentAction = "updated"
	ReplenishmentDeleted   ReplenishmentAction = "deleted"
	ReplenishmentUnchanged ReplenishmentAction = "unchanged"
)

type ReplenishmentResult struct {
	Action   ReplenishmentAction `json:"action"`
	OrderID  string              `json:"order_id,omitempty"`
	Items    []OrderItem         `json:"items"`
	Affected Affected            `json:"affected"`
}

// Affected lists the ids a mutating operation touched so callers can push
// updates through their own channel.
type Affected struct {
	OrderIDs        []string `json:"order_ids,omitempty"`
	SaleIDs         []string `json:"sale_ids,omitempty"`
	VariationIDs    []string `json:"variation_ids,omitempty"`
	NotificationIDs []string `json:"notification_ids,omitempty"`
}

func (a *Affected) Merge(other Affected) {
	a.OrderIDs = appendUnique(a.OrderIDs, other.OrderIDs...)
	a.SaleIDs = appendUnique(a.SaleIDs, other.SaleIDs...)
	a.VariationIDs = appendUnique(a.VariationIDs, other.VariationIDs...)
	a.NotificationIDs = appendUnique(a.NotificationIDs, other.NotificationIDs...)
}

func appendUnique(dst []string, values ...string) []string {
	for _, value := range values {
		if value == "" {
			continue
		}
		seen := false
		for _, existing := range dst {
			if existing == value {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, value)
		}
	}
	return dst
}
