package cart

import (
	"fmt"

	"fleamarket-service/internal/models"
)

// Cart maps product id to the desired quantity. A line with quantity <= 0
// never appears in a cart returned by this package.
type Cart map[string]int

// Line is a cart entry resolved against the catalog
type Line struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Subtotal int64          `json:"subtotal"`
}

// Summary is the derived view of a cart
type Summary struct {
	Lines       []Line `json:"lines"`
	TotalAmount int64  `json:"totalAmount"`
	TotalItems  int    `json:"totalItems"`
}

// IsEmpty reports whether the summary has nothing to pay for
func (s Summary) IsEmpty() bool {
	return s.TotalItems == 0
}

// Snapshot freezes the summary into order lines
func (s Summary) Snapshot() models.OrderLines {
	lines := make(models.OrderLines, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, models.OrderLine{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			UnitPrice: l.Product.Price,
			Quantity:  l.Quantity,
		})
	}
	return lines
}

// Clone returns an independent copy of the cart
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for id, qty := range c {
		if qty > 0 {
			out[id] = qty
		}
	}
	return out
}

// UpdateQuantity sets (not increments) the quantity of productID and returns
// the new cart. A quantity of zero removes the line. The input is untouched.
func UpdateQuantity(c Cart, productID string, quantity int) (Cart, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", models.ErrValidation)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0, got %d", models.ErrValidation, quantity)
	}
	if quantity > models.MaxLineQuantity {
		return nil, fmt.Errorf("%w: quantity must be <= %d, got %d", models.ErrValidation, models.MaxLineQuantity, quantity)
	}

	next := c.Clone()
	if quantity == 0 {
		delete(next, productID)
		return next, nil
	}
	next[productID] = quantity
	return next, nil
}

// Catalog is the read side of the product catalog the aggregator needs
type Catalog interface {
	Products() []models.Product
}

// DeriveSummary resolves the cart against the catalog. Product ids missing
// from the catalog are skipped. Lines follow catalog order.
func DeriveSummary(c Cart, catalog Catalog) Summary {
	summary := Summary{Lines: []Line{}}
	for _, p := range catalog.Products() {
		qty, ok := c[p.ID]
		if !ok || qty <= 0 {
			continue
		}
		subtotal := p.Price * int64(qty)
		summary.Lines = append(summary.Lines, Line{Product: p, Quantity: qty, Subtotal: subtotal})
		summary.TotalAmount += subtotal
		summary.TotalItems += qty
	}
	return summary
}
