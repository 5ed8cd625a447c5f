package cart

import (
	"context"
	"errors"
	"testing"

	"fleamarket-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog []models.Product

func (c stubCatalog) Products() []models.Product { return c }

var testCatalog = stubCatalog{
	{ID: "A", Name: "Iced tea", Price: 3000},
	{ID: "B", Name: "Bracelet", Price: 5900},
	{ID: "C", Name: "Americano", Price: 2500},
}

func TestUpdateQuantitySetsValue(t *testing.T) {
	c, err := UpdateQuantity(Cart{}, "A", 2)
	require.NoError(t, err)
	c, err = UpdateQuantity(c, "A", 5)
	require.NoError(t, err)

	assert.Equal(t, 5, c["A"])
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	c := Cart{"A": 2, "B": 1}

	next, err := UpdateQuantity(c, "A", 0)
	require.NoError(t, err)

	_, present := next["A"]
	assert.False(t, present)
	assert.Equal(t, 2, c["A"], "input cart must not be mutated")

	summary := DeriveSummary(next, testCatalog)
	assert.Equal(t, 1, summary.TotalItems)
	assert.Equal(t, int64(5900), summary.TotalAmount)
	require.Len(t, summary.Lines, 1)
	assert.Equal(t, "B", summary.Lines[0].Product.ID)
}

func TestUpdateQuantityRejectsNegative(t *testing.T) {
	_, err := UpdateQuantity(Cart{}, "A", -1)
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = UpdateQuantity(Cart{}, "", 1)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestUpdateQuantityRejectsAboveLimit(t *testing.T) {
	c, err := UpdateQuantity(Cart{}, "A", models.MaxLineQuantity)
	require.NoError(t, err)
	assert.Equal(t, models.MaxLineQuantity, c["A"])

	_, err = UpdateQuantity(c, "A", 4_000_000_000_000_000)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Equal(t, models.MaxLineQuantity, c["A"])
}

func TestDeriveSummary(t *testing.T) {
	summary := DeriveSummary(Cart{"B": 1, "A": 2}, testCatalog)

	assert.Equal(t, int64(11900), summary.TotalAmount)
	assert.Equal(t, 3, summary.TotalItems)
	require.Len(t, summary.Lines, 2)
	assert.Equal(t, "A", summary.Lines[0].Product.ID)
	assert.Equal(t, int64(6000), summary.Lines[0].Subtotal)
}

func TestDeriveSummarySkipsUnknownProducts(t *testing.T) {
	summary := DeriveSummary(Cart{"A": 1, "gone": 4}, testCatalog)

	assert.Equal(t, int64(3000), summary.TotalAmount)
	assert.Equal(t, 1, summary.TotalItems)
}

func TestDeriveSummaryEmpty(t *testing.T) {
	summary := DeriveSummary(Cart{}, testCatalog)

	assert.True(t, summary.IsEmpty())
	assert.Zero(t, summary.TotalAmount)
	assert.NotNil(t, summary.Lines)
}

func TestSnapshot(t *testing.T) {
	lines := DeriveSummary(Cart{"A": 2, "B": 1}, testCatalog).Snapshot()

	require.Len(t, lines, 2)
	assert.Equal(t, models.OrderLine{ProductID: "A", Name: "Iced tea", UnitPrice: 3000, Quantity: 2}, lines[0])
	assert.Equal(t, int64(11900), lines.Total())
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	c, err := s.LoadCart(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, c)

	require.NoError(t, s.SaveCart(ctx, "s1", Cart{"A": 1}))
	c, err = s.LoadCart(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, Cart{"A": 1}, c)

	c["A"] = 9
	again, _ := s.LoadCart(ctx, "s1")
	assert.Equal(t, 1, again["A"])

	require.NoError(t, s.ClearCart(ctx, "s1"))
	c, _ = s.LoadCart(ctx, "s1")
	assert.Empty(t, c)
}
