// Package invoice renders staff-facing PDF invoices for orders.
package invoice

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/avelir/storefront/internal/domain/order"
)

// Renderer produces PDF invoices from order snapshots.
type Renderer struct {
	shopName string
}

// NewRenderer returns a renderer stamping the given shop name on every
// invoice.
func NewRenderer(shopName string) *Renderer {
	return &Renderer{shopName: shopName}
}

// Render writes a single-page PDF invoice for the order. All amounts come
// from the order's frozen snapshot.
func (r *Renderer) Render(o *order.Order, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, r.shopName)
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Invoice for order %s", o.ID))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", o.Created.Format("2006-01-02")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 6, "Billed to")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, fmt.Sprintf("%s %s", o.FirstName, o.LastName))
	pdf.Ln(5)
	pdf.Cell(0, 5, o.Address)
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("%s %s", o.PostalCode, o.City))
	pdf.Ln(5)
	pdf.Cell(0, 5, o.Email)
	pdf.Ln(10)

	r.renderItems(pdf, o)
	r.renderTotals(pdf, o)

	return pdf.Output(w)
}

func (r *Renderer) renderItems(pdf *fpdf.Fpdf, o *order.Order) {
	const (
		nameW  = 90.0
		priceW = 30.0
		qtyW   = 20.0
		costW  = 30.0
		rowH   = 7.0
	)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(nameW, rowH, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(priceW, rowH, "Unit price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(qtyW, rowH, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(costW, rowH, "Cost", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range o.Items {
		pdf.CellFormat(nameW, rowH, it.ProductName, "", 0, "L", false, 0, "")
		pdf.CellFormat(priceW, rowH, it.Price.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(qtyW, rowH, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(costW, rowH, it.Cost().StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *Renderer) renderTotals(pdf *fpdf.Fpdf, o *order.Order) {
	const (
		labelW = 140.0
		valueW = 30.0
		rowH   = 6.0
	)

	row := func(label string, value decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(labelW, rowH, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(valueW, rowH, value.StringFixed(2), "", 1, "R", false, 0, "")
	}

	row("Subtotal", o.TotalBeforeDiscount(), false)
	if o.Discount > 0 {
		row(fmt.Sprintf("Discount (%d%%)", o.Discount), o.DiscountAmount().Neg(), false)
	}
	row("Total", o.TotalCost(), true)
}
