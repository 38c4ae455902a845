package service

import (
	"context"
	"log"
	"strings"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/xid"
)

func (s *Service) Snapshot(ctx context.Context) (domain.SnapshotResponse, error) {
	entries, err := s.snapshots.LoadSnapshot(ctx)
	if err != nil {
		return domain.SnapshotResponse{}, err
	}
	return domain.SnapshotResponse{Entries: entries}, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.ProductResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductResponse{}, err
	}

	req.Reference = domain.NormalizeReference(req.Reference)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	for i := range req.Variations {
		req.Variations[i].Color = domain.NormalizeColor(req.Variations[i].Color)
		req.Variations[i].Size = strings.TrimSpace(req.Variations[i].Size)
	}
	if err := validateStruct(req); err != nil {
		return domain.ProductResponse{}, err
	}

	product := domain.Product{
		Reference:           req.Reference,
		ImageURL:            req.ImageURL,
		RetailPriceCents:    req.RetailPriceCents,
		WholesalePriceCents: req.WholesalePriceCents,
		CreatedAt:           s.now(),
		Variations:          make([]domain.Variation, 0, len(req.Variations)),
	}
	for _, v := range req.Variations {
		product.Variations = append(product.Variations, domain.Variation{Color: v.Color, Size: v.Size, Stock: v.Stock})
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.ProductResponse{}, err
	}

	affected := domain.Affected{}
	for _, v := range created.Variations {
		affected.VariationIDs = append(affected.VariationIDs, v.ID)
	}
	replenishment := s.replan(ctx, actor.UserID, &affected)
	return domain.ProductResponse{Product: *created, Replenishment: replenishment, Affected: affected}, nil
}

// SetStock overwrites a variation's stock from a manual count.
func (s *Service) SetStock(ctx context.Context, variationID string, req domain.StockSetRequest) (domain.StockChangeResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.StockChangeResponse{}, err
	}
	if err := validateStruct(req); err != nil {
		return domain.StockChangeResponse{}, err
	}

	v, previous, err := s.repo.SetVariationStock(ctx, variationID, req.Stock)
	if err != nil {
		return domain.StockChangeResponse{}, err
	}
	return s.afterStockChange(ctx, actor, *v, previous, domain.MovementManual, strings.TrimSpace(req.Reason)), nil
}

// ScanBarcode adds or removes units of the variation behind a barcode.
func (s *Service) ScanBarcode(ctx context.Context, req domain.ScanRequest) (domain.StockChangeResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.StockChangeResponse{}, err
	}
	req.Barcode = strings.ToUpper(strings.TrimSpace(req.Barcode))
	if err := validateStruct(req); err != nil {
		return domain.StockChangeResponse{}, err
	}

	found, err := s.repo.GetVariationByBarcode(ctx, req.Barcode)
	if err != nil {
		return domain.StockChangeResponse{}, err
	}
	v, previous, err := s.repo.AdjustVariationStock(ctx, found.ID, req.Delta)
	if err != nil {
		return domain.StockChangeResponse{}, err
	}
	return s.afterStockChange(ctx, actor, *v, previous, domain.MovementScan, ""), nil
}

func (s *Service) afterStockChange(ctx context.Context, actor domain.Actor, v domain.Variation, previous int, method domain.MovementMethod, reason string) domain.StockChangeResponse {
	resp := domain.StockChangeResponse{
		Variation: v,
		Affected:  domain.Affected{VariationIDs: []string{v.ID}},
	}
	if v.Stock == previous {
		return resp
	}

	movement := domain.InventoryMovement{
		ID:          xid.New("mov"),
		VariationID: v.ID,
		UserID:      actor.UserID,
		Type:        domain.MovementEntry,
		Quantity:    v.Stock - previous,
		Method:      method,
		Detail: domain.MovementDetail{
			Reference:     v.Reference,
			Color:         v.Color,
			Size:          v.Size,
			PreviousStock: previous,
			NewStock:      v.Stock,
			Reason:        reason,
		},
		CreatedAt: s.now(),
	}
	if movement.Quantity < 0 {
		movement.Type = domain.MovementExit
		movement.Quantity = -movement.Quantity
	}
	if err := s.repo.CreateMovement(ctx, movement); err != nil {
		log.Printf("[service] WARN: failed to record movement variation=%s: %v", v.ID, err)
	} else {
		resp.Movement = &movement
	}

	resp.Replenishment = s.checkItem(ctx, actor.UserID, v, &resp.Affected)
	return resp
}

func (s *Service) ListMovements(ctx context.Context, limit int) (domain.MovementListResponse, error) {
	movements, err := s.repo.ListMovements(ctx, normalizeLimit(limit, 100))
	if err != nil {
		return domain.MovementListResponse{}, err
	}
	return domain.MovementListResponse{Movements: movements}, nil
}
