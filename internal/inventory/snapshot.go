package inventory

import (
	"context"
	"sort"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
)

type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByReference(ctx context.Context, reference string) (*domain.Product, error)
}

// Reader builds read-only stock views grouped by (reference, color).
type Reader struct {
	products ProductSource
}

func NewReader(products ProductSource) *Reader {
	return &Reader{products: products}
}

// LoadSnapshot returns every (reference, color) pair ordered by reference
// then color. Products without variations are left out.
func (r *Reader) LoadSnapshot(ctx context.Context) ([]domain.SnapshotEntry, error) {
	products, err := r.products.ListProducts(ctx)
	if err != nil {
		return nil, store.Wrap(err)
	}

	entries := make([]domain.SnapshotEntry, 0, len(products)*2)
	for _, product := range products {
		entries = append(entries, group(product)...)
	}
	sortEntries(entries)
	return entries, nil
}

// LoadPair reads a single product and returns the entry for one color.
func (r *Reader) LoadPair(ctx context.Context, reference string, color string) (domain.SnapshotEntry, bool, error) {
	product, err := r.products.GetProductByReference(ctx, reference)
	if err != nil {
		if store.IsNotFound(err) {
			return domain.SnapshotEntry{}, false, nil
		}
		return domain.SnapshotEntry{}, false, store.Wrap(err)
	}

	for _, entry := range group(*product) {
		if entry.Color == color {
			return entry, true, nil
		}
	}
	return domain.SnapshotEntry{}, false, nil
}

func group(product domain.Product) []domain.SnapshotEntry {
	byColor := make(map[string]*domain.SnapshotEntry, 2)
	colors := make([]string, 0, 2)
	for _, v := range product.Variations {
		entry, ok := byColor[v.Color]
		if !ok {
			entry = &domain.SnapshotEntry{
				Reference:    product.Reference,
				Color:        v.Color,
				SizeStock:    make(map[string]int, len(domain.Sizes)),
				VariationIDs: make(map[string]string, len(domain.Sizes)),
			}
			byColor[v.Color] = entry
			colors = append(colors, v.Color)
		}
		entry.SizeStock[v.Size] = v.Stock
		entry.VariationIDs[v.Size] = v.ID
	}

	sort.Strings(colors)
	out := make([]domain.SnapshotEntry, 0, len(colors))
	for _, color := range colors {
		out = append(out, *byColor[color])
	}
	return out
}

func sortEntries(entries []domain.SnapshotEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Reference == entries[j].Reference {
			return entries[i].Color < entries[j].Color
		}
		return entries[i].Reference < entries[j].Reference
	})
}
