package store

import (
	"fmt"

	"pearstock/backend/internal/domain"
)

// ValidateOrderItems checks order items before they are persisted.
func ValidateOrderItems(items []domain.OrderItem) error {
	fields := map[string]string{}
	seen := make(map[domain.PairKey]bool, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("items[%d]", i)
		if item.Reference == "" {
			fields[prefix+".reference"] = "required"
		}
		if item.Color == "" {
			fields[prefix+".color"] = "required"
		}
		if len(item.Sizes) == 0 {
			fields[prefix+".sizes"] = "at least one size required"
		}
		for size, qty := range item.Sizes {
			if !domain.IsKnownSize(size) {
				fields[prefix+".sizes."+size] = "unknown size"
				continue
			}
			if qty < 1 {
				fields[prefix+".sizes."+size] = "quantity must be positive"
			}
		}
		if seen[item.Key()] {
			fields[prefix] = "duplicate reference and color"
		}
		seen[item.Key()] = true
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func ValidateMovement(movement domain.InventoryMovement) error {
	fields := map[string]string{}
	if movement.VariationID == "" {
		fields["variation_id"] = "required"
	}
	if movement.Quantity < 1 {
		fields["quantity"] = "must be positive"
	}
	if movement.Type != domain.MovementEntry && movement.Type != domain.MovementExit {
		fields["type"] = "must be entry or exit"
	}
	if movement.Method != domain.MovementManual && movement.Method != domain.MovementScan {
		fields["method"] = "must be manual or scan"
	}
	if movement.Detail.Size != "" && !domain.IsKnownSize(movement.Detail.Size) {
		fields["detail.size"] = "unknown size"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
