package services

import (
	"context"

	"opsuite/pkg/authclient"
	"opsuite/pkg/export"
	"opsuite/pkg/listing"
)

// ExportPurchaseOrders renders every purchase order matching q, unpaginated.
func (s *FinanceService) ExportPurchaseOrders(ctx context.Context, actor authclient.Identity, q listing.Query) ([]byte, error) {
	items, err := s.PurchaseOrders.List(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	q = q.Normalize()
	items = listing.Sort(listing.Filter(items, q, purchaseOrderSpec), q, purchaseOrderSpec)

	orders := export.Sheet{
		Name:    "Purchase Orders",
		Headers: []string{"PO Number", "Vendor", "Status", "Delivery", "Subtotal", "Tax", "Total", "Expected", "Created"},
		Widths:  []float64{20, 30, 18, 20, 14, 12, 14, 14, 20},
	}
	lines := export.Sheet{
		Name:    "Items",
		Headers: []string{"PO Number", "Description", "SKU", "Quantity", "Unit Price", "Amount"},
		Widths:  []float64{20, 40, 16, 10, 14, 14},
	}
	for _, po := range items {
		var expected any
		if po.ExpectedDate != nil {
			expected = po.ExpectedDate.Format("2006-01-02")
		}
		orders.Rows = append(orders.Rows, []any{
			po.PONumber, po.Vendor.Name, string(po.Status), string(po.DeliveryStatus),
			po.Subtotal.InexactFloat64(), po.Tax.InexactFloat64(), po.Total.InexactFloat64(),
			expected, po.CreatedAt.Format("2006-01-02 15:04"),
		})
		for _, it := range po.Items {
			lines.Rows = append(lines.Rows, []any{
				po.PONumber, it.Description, it.SKU,
				it.Quantity.InexactFloat64(), it.UnitPrice.InexactFloat64(), it.Amount.InexactFloat64(),
			})
		}
	}
	return export.XLSX(orders, lines)
}

func (s *FinanceService) ExportExpenses(ctx context.Context, actor authclient.Identity, q listing.Query) ([]byte, error) {
	items, err := s.Expenses.List(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	q = q.Normalize()
	items = listing.Sort(listing.Filter(items, q, expenseSpec), q, expenseSpec)

	sheet := export.Sheet{
		Name:    "Expenses",
		Headers: []string{"Title", "Category", "Amount", "Incurred On", "Status", "Submitted By", "Reviewed By", "Receipt"},
		Widths:  []float64{30, 14, 14, 14, 12, 26, 26, 10},
	}
	for _, e := range items {
		reviewer := ""
		if e.Review != nil {
			reviewer = e.Review.By
		}
		receipt := "no"
		if e.Receipt != nil {
			receipt = "yes"
		}
		sheet.Rows = append(sheet.Rows, []any{
			e.Title, e.Category, e.Amount.InexactFloat64(), e.IncurredOn.Format("2006-01-02"),
			string(e.Status), e.SubmittedBy, reviewer, receipt,
		})
	}
	return export.XLSX(sheet)
}
