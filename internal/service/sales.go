package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

// CreateSale reserves stock for every requested size and records the sale
// as pending. Stock is checked before anything is written; the repository
// re-checks and decrements atomically with the sale insert.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Items = normalizeSaleLines(req.Items)
	if err := validateStruct(req); err != nil {
		return domain.SaleResponse{}, err
	}
	if err := validateSaleLines(req.Items); err != nil {
		return domain.SaleResponse{}, err
	}

	customer, err := s.repo.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	items, err := s.resolveSaleItems(ctx, req.Kind, req.Items)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	var total int64
	for _, item := range items {
		total += item.SubtotalCents
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		ID:         xid.New("sale"),
		CustomerID: customer.ID,
		Kind:       req.Kind,
		Status:     domain.SaleStatusPending,
		TotalCents: total,
		CreatedBy:  actor.UserID,
		CreatedAt:  s.now(),
		Items:      items,
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}

	affected := domain.Affected{SaleIDs: []string{created.ID}, VariationIDs: variationIDs(created.Items)}
	affected.NotificationIDs = s.notifyStaff(ctx, notice{
		kind: domain.NotificationSalePending,
		message: fmt.Sprintf("El usuario %s acaba de realizar una venta al cliente %s. Cantidad de referencias: %d. Cantidad de pares: %d.",
			actor.DisplayName(), customer.Name, len(req.Items), created.TotalPairs()),
		actorID: actor.UserID,
		saleID:  created.ID,
	})
	s.replan(ctx, actor.UserID, &affected)

	return domain.SaleResponse{Sale: *created, Affected: affected}, nil
}

func (s *Service) ApproveSale(ctx context.Context, id string) (domain.SaleResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	sale, err := s.repo.ApproveSale(ctx, id, actor.UserID, s.now())
	if err != nil {
		return domain.SaleResponse{}, err
	}

	affected := domain.Affected{SaleIDs: []string{sale.ID}}
	removed, err := s.repo.DeleteNotifications(ctx, store.NotificationFilter{SaleID: sale.ID, Type: domain.NotificationSalePending})
	if err != nil {
		log.Printf("[service] WARN: failed to clear pending notifications sale=%s: %v", sale.ID, err)
	}
	affected.NotificationIDs = append(affected.NotificationIDs, removed...)

	if sale.CreatedBy != actor.UserID {
		affected.Merge(domain.Affected{NotificationIDs: s.notifyUser(ctx, sale.CreatedBy, notice{
			kind:    domain.NotificationSaleConfirmed,
			message: fmt.Sprintf("La venta de %s ya fue confirmada por %s.", s.customerName(ctx, sale.CustomerID), actor.DisplayName()),
			actorID: actor.UserID,
			saleID:  sale.ID,
		})})
	}
	return domain.SaleResponse{Sale: *sale, Affected: affected}, nil
}

// RejectSale returns the reserved units to the variations they were taken
// from and deletes the sale and its notifications.
func (s *Service) RejectSale(ctx context.Context, id string) (domain.SaleResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	sale, removed, err := s.repo.RejectSale(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	affected := domain.Affected{
		SaleIDs:         []string{sale.ID},
		VariationIDs:    variationIDs(sale.Items),
		NotificationIDs: removed,
	}
	s.replan(ctx, actor.UserID, &affected)
	return domain.SaleResponse{Sale: *sale, Affected: affected}, nil
}

// DeleteSale removes a sale in any state without touching stock.
func (s *Service) DeleteSale(ctx context.Context, id string) (domain.SaleResponse, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.SaleResponse{}, err
	}
	sale, removed, err := s.repo.DeleteSale(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	return domain.SaleResponse{
		Sale:     *sale,
		Affected: domain.Affected{SaleIDs: []string{sale.ID}, NotificationIDs: removed},
	}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, status string, limit int) (domain.SaleListResponse, error) {
	filter := domain.SaleStatus(strings.TrimSpace(status))
	if filter != "" && filter != domain.SaleStatusPending && filter != domain.SaleStatusConfirmed {
		return domain.SaleListResponse{}, store.Invalid("status", "must be pending or confirmed")
	}
	sales, err := s.repo.ListSales(ctx, filter, normalizeLimit(limit, 100))
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

// resolveSaleItems maps each requested size to its variation, prices it and
// collects every shortage before failing.
func (s *Service) resolveSaleItems(ctx context.Context, kind domain.SaleKind, lines []domain.SaleLine) ([]domain.SaleItem, error) {
	items := make([]domain.SaleItem, 0, len(lines)*2)
	shortages := make([]store.Shortage, 0)
	for _, line := range lines {
		product, err := s.repo.GetProductByReference(ctx, line.Reference)
		if err != nil {
			return nil, err
		}

		bySize := make(map[string]domain.Variation, len(domain.Sizes))
		for _, v := range product.Variations {
			if v.Color == line.Color {
				bySize[v.Size] = v
			}
		}

		price := product.PriceFor(kind)
		for _, size := range domain.Sizes {
			qty, ok := line.Sizes[size]
			if !ok {
				continue
			}
			v, ok := bySize[size]
			if !ok {
				return nil, store.NotFound("variation", domain.BarcodeFor(line.Reference, line.Color, size))
			}
			if v.Stock < qty {
				shortages = append(shortages, store.Shortage{
					Reference: v.Reference,
					Color:     v.Color,
					Size:      size,
					Requested: qty,
					Available: v.Stock,
				})
				continue
			}
			items = append(items, domain.SaleItem{
				VariationID:    v.ID,
				Reference:      v.Reference,
				Color:          v.Color,
				Size:           size,
				Qty:            qty,
				UnitPriceCents: price,
				SubtotalCents:  price * int64(qty),
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &store.InsufficientStockError{Shortages: shortages}
	}
	return items, nil
}

func (s *Service) customerName(ctx context.Context, customerID string) string {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		log.Printf("[service] WARN: customer lookup failed id=%s: %v", customerID, err)
		return customerID
	}
	return customer.Name
}

func normalizeSaleLines(lines []domain.SaleLine) []domain.SaleLine {
	out := make([]domain.SaleLine, 0, len(lines))
	for _, line := range lines {
		line.Reference = domain.NormalizeReference(line.Reference)
		line.Color = domain.NormalizeColor(line.Color)
		sizes := make(map[string]int, len(line.Sizes))
		for size, qty := range line.Sizes {
			if qty == 0 {
				continue
			}
			sizes[strings.TrimSpace(size)] += qty
		}
		line.Sizes = sizes
		out = append(out, line)
	}
	return out
}

func validateSaleLines(lines []domain.SaleLine) error {
	fields := map[string]string{}
	seen := make(map[domain.PairKey]bool, len(lines))
	for i, line := range lines {
		prefix := fmt.Sprintf("items[%d]", i)
		for size, qty := range line.Sizes {
			if !domain.IsKnownSize(size) {
				fields[prefix+".sizes."+size] = "unknown size"
				continue
			}
			if qty < 1 {
				fields[prefix+".sizes."+size] = "quantity must be positive"
			}
		}
		key := domain.PairKey{Reference: line.Reference, Color: line.Color}
		if seen[key] {
			fields[prefix] = "duplicate reference and color"
		}
		seen[key] = true
	}
	if len(fields) > 0 {
		return &store.ValidationError{Fields: fields}
	}
	return nil
}

func variationIDs(items []domain.SaleItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !slices.Contains(ids, item.VariationID) {
			ids = append(ids, item.VariationID)
		}
	}
	return ids
}
