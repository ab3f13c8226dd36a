package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/avelir/storefront/internal/domain/order"
)

func TestRenderer_ProducesPDF(t *testing.T) {
	o := &order.Order{
		ID:         "ord-1",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		Address:    "12 Analytical Lane",
		PostalCode: "10115",
		City:       "Berlin",
		Created:    time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Discount:   10,
		Items: []order.Item{
			{ProductID: "p1", ProductName: "Pistachio Baklava", Price: decimal.RequireFromString("19.99"), Quantity: 2},
			{ProductID: "p2", ProductName: "Classic Tiramisu", Price: decimal.RequireFromString("5.50"), Quantity: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer("Storefront").Render(o, &buf))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	require.Greater(t, buf.Len(), 500)
}

func TestRenderer_NoDiscountLine(t *testing.T) {
	o := &order.Order{
		ID:      "ord-2",
		Created: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Items: []order.Item{
			{ProductID: "p1", ProductName: "Macaron Mix of Five", Price: decimal.RequireFromString("8.00"), Quantity: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer("Storefront").Render(o, &buf))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
