package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOrder_Totals(t *testing.T) {
	tests := []struct {
		name         string
		items        []Item
		discount     int
		wantBefore   string
		wantDiscount string
		wantTotal    string
	}{
		{
			name:         "no items",
			discount:     0,
			wantBefore:   "0",
			wantDiscount: "0",
			wantTotal:    "0",
		},
		{
			name: "no discount matches subtotal",
			items: []Item{
				{ProductID: "p1", Price: dec("19.99"), Quantity: 2},
				{ProductID: "p2", Price: dec("4.50"), Quantity: 1},
			},
			discount:     0,
			wantBefore:   "44.48",
			wantDiscount: "0",
			wantTotal:    "44.48",
		},
		{
			name: "ten percent on 39.98",
			items: []Item{
				{ProductID: "p1", Price: dec("19.99"), Quantity: 2},
			},
			discount:     10,
			wantBefore:   "39.98",
			wantDiscount: "3.998",
			wantTotal:    "35.98",
		},
		{
			name: "twenty percent on a hundred",
			items: []Item{
				{ProductID: "p1", Price: dec("50.00"), Quantity: 2},
			},
			discount:     20,
			wantBefore:   "100.00",
			wantDiscount: "20",
			wantTotal:    "80.00",
		},
		{
			name: "hundred percent",
			items: []Item{
				{ProductID: "p1", Price: dec("7.77"), Quantity: 3},
			},
			discount:     100,
			wantBefore:   "23.31",
			wantDiscount: "23.31",
			wantTotal:    "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Discount: tt.discount, Items: tt.items}

			assert.True(t, dec(tt.wantBefore).Equal(o.TotalBeforeDiscount()),
				"before: want %s got %s", tt.wantBefore, o.TotalBeforeDiscount())
			assert.True(t, dec(tt.wantDiscount).Equal(o.DiscountAmount()),
				"discount: want %s got %s", tt.wantDiscount, o.DiscountAmount())
			assert.True(t, dec(tt.wantTotal).Equal(o.TotalCost()),
				"total: want %s got %s", tt.wantTotal, o.TotalCost())
		})
	}
}

func TestOrder_ZeroDiscountIsExactZero(t *testing.T) {
	o := &Order{Items: []Item{{Price: dec("19.99"), Quantity: 3}}}
	// Exactly the additive identity, not a rounded near-zero.
	assert.Equal(t, "0", o.DiscountAmount().String())
	assert.True(t, o.TotalCost().Equal(o.TotalBeforeDiscount().Round(2)))
}

func TestItem_Cost(t *testing.T) {
	it := Item{Price: dec("2.49"), Quantity: 4}
	assert.True(t, dec("9.96").Equal(it.Cost()))
}
