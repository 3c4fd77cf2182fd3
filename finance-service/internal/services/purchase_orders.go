package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/listing"
	"opsuite/pkg/notify"
	"opsuite/pkg/sanitize"
)

var purchaseOrderSpec = listing.Spec[models.PurchaseOrder]{
	SearchFields: func(po models.PurchaseOrder) []string {
		fields := []string{po.PONumber, po.Vendor.Name, po.Vendor.Email, po.Notes}
		for _, it := range po.Items {
			fields = append(fields, it.Description, it.SKU)
		}
		return fields
	},
	Status: func(po models.PurchaseOrder) string { return string(po.Status) },
	Sorters: map[string]func(a, b models.PurchaseOrder) int{
		"created_at":      listing.ByTime(func(po models.PurchaseOrder) time.Time { return po.CreatedAt }),
		"updated_at":      listing.ByTime(func(po models.PurchaseOrder) time.Time { return po.UpdatedAt }),
		"po_number":       listing.ByString(func(po models.PurchaseOrder) string { return po.PONumber }),
		"vendor":          listing.ByString(func(po models.PurchaseOrder) string { return po.Vendor.Name }),
		"status":          listing.ByString(func(po models.PurchaseOrder) string { return string(po.Status) }),
		"delivery_status": listing.ByString(func(po models.PurchaseOrder) string { return string(po.DeliveryStatus) }),
		"total":           listing.ByDecimal(func(po models.PurchaseOrder) decimal.Decimal { return po.Total }),
	},
	DefaultSort: "created_at",
}

func cleanPO(in *models.PurchaseOrderInput) {
	in.Notes = sanitize.Text(in.Notes)
	for i := range in.Items {
		in.Items[i].Description = sanitize.Text(in.Items[i].Description)
	}
}

func (s *FinanceService) CreatePurchaseOrder(ctx context.Context, actor authclient.Identity, in models.PurchaseOrderInput) (*models.PurchaseOrder, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	cleanPO(&in)
	no, err := s.number(ctx, actor.TenantID, "PO")
	if err != nil {
		return nil, err
	}
	po := &models.PurchaseOrder{
		Base:           models.Base{TenantID: actor.TenantID},
		PONumber:       no,
		Status:         models.PODraft,
		DeliveryStatus: models.NotDelivered,
		RequestedBy:    actor.UserID,
	}
	po.Apply(in)
	if err := s.PurchaseOrders.Create(ctx, po); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return po, nil
}

func (s *FinanceService) UpdatePurchaseOrder(ctx context.Context, actor authclient.Identity, id string, in models.PurchaseOrderInput) (*models.PurchaseOrder, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	cleanPO(&in)
	po, err := find(ctx, s.PurchaseOrders, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if po.Status != models.PODraft {
		return nil, fmt.Errorf("%w: only draft purchase orders can be edited", apperr.ErrConflict)
	}
	po.Apply(in)
	if err := s.PurchaseOrders.Update(ctx, po); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return po, nil
}

func (s *FinanceService) GetPurchaseOrder(ctx context.Context, actor authclient.Identity, id string) (*models.PurchaseOrder, error) {
	return find(ctx, s.PurchaseOrders, actor.TenantID, id)
}

func (s *FinanceService) ListPurchaseOrders(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.PurchaseOrder], error) {
	items, err := s.PurchaseOrders.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.PurchaseOrder]{}, err
	}
	return listing.Apply(items, q, purchaseOrderSpec), nil
}

func (s *FinanceService) SubmitPurchaseOrder(ctx context.Context, actor authclient.Identity, id string) (*models.PurchaseOrder, error) {
	po, err := s.movePO(ctx, actor, id, models.POPendingApproval, "")
	if err != nil {
		return nil, err
	}
	s.announce(ctx, po.TenantID, authclient.RoleFinance, "purchase_order_submitted", "Purchase order awaiting approval",
		fmt.Sprintf("%s for %s (%s) needs approval.", po.PONumber, po.Vendor.Name, po.Total.StringFixed(2)),
		map[string]string{"purchase_order_id": po.ID.Hex()})
	return po, nil
}

func (s *FinanceService) ApprovePurchaseOrder(ctx context.Context, actor authclient.Identity, id, note string) (*models.PurchaseOrder, error) {
	po, err := s.movePO(ctx, actor, id, models.POApproved, note)
	if err != nil {
		return nil, err
	}
	s.tellRequester(ctx, po, "approved")
	return po, nil
}

func (s *FinanceService) RejectPurchaseOrder(ctx context.Context, actor authclient.Identity, id, note string) (*models.PurchaseOrder, error) {
	po, err := s.movePO(ctx, actor, id, models.PORejected, note)
	if err != nil {
		return nil, err
	}
	s.tellRequester(ctx, po, "rejected")
	return po, nil
}

func (s *FinanceService) MarkOrdered(ctx context.Context, actor authclient.Identity, id string) (*models.PurchaseOrder, error) {
	return s.movePO(ctx, actor, id, models.POOrdered, "")
}

// CancelPurchaseOrder cancels an order. Ordered goods that already started
// arriving can no longer be cancelled.
func (s *FinanceService) CancelPurchaseOrder(ctx context.Context, actor authclient.Identity, id, note string) (*models.PurchaseOrder, error) {
	return s.movePO(ctx, actor, id, models.POCancelled, note)
}

// UpdateDelivery advances the delivery status of an ordered purchase order.
func (s *FinanceService) UpdateDelivery(ctx context.Context, actor authclient.Identity, id string, to models.DeliveryStatus) (*models.PurchaseOrder, error) {
	po, err := find(ctx, s.PurchaseOrders, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if po.Status != models.POOrdered {
		return nil, fmt.Errorf("%w: delivery can only change once the order is placed", apperr.ErrConflict)
	}
	if !po.DeliveryStatus.CanAdvanceTo(to) {
		return nil, fmt.Errorf("%w: delivery cannot move from %s to %s", apperr.ErrInvalidTransition, po.DeliveryStatus, to)
	}
	po.DeliveryStatus = to
	if to == models.Delivered {
		now := s.now()
		po.DeliveredAt = &now
	}
	if err := s.PurchaseOrders.Update(ctx, po); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	if to == models.Delivered {
		s.announce(ctx, po.TenantID, authclient.RoleWarehouse, "purchase_order_delivered", "Purchase order delivered",
			fmt.Sprintf("%s from %s has been delivered.", po.PONumber, po.Vendor.Name),
			map[string]string{"purchase_order_id": po.ID.Hex()})
	}
	return po, nil
}

func (s *FinanceService) movePO(ctx context.Context, actor authclient.Identity, id string, to models.POStatus, note string) (*models.PurchaseOrder, error) {
	po, err := find(ctx, s.PurchaseOrders, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !po.Status.CanMoveTo(to) {
		return nil, fmt.Errorf("%w: purchase order cannot move from %s to %s", apperr.ErrInvalidTransition, po.Status, to)
	}
	if to == models.POCancelled && po.DeliveryStatus != models.NotDelivered {
		return nil, fmt.Errorf("%w: goods have already been delivered", apperr.ErrConflict)
	}
	switch to {
	case models.POApproved:
		po.ApprovedBy = actor.UserID
		po.Review = s.review(actor.UserID, sanitize.Text(note))
	case models.PORejected, models.POCancelled:
		po.Review = s.review(actor.UserID, sanitize.Text(note))
	}
	po.Status = to
	if err := s.PurchaseOrders.Update(ctx, po); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return po, nil
}

func (s *FinanceService) tellRequester(ctx context.Context, po *models.PurchaseOrder, verb string) {
	s.send(ctx, notify.Request{
		TenantID: po.TenantID,
		UserID:   po.RequestedBy,
		Title:    "Purchase order " + verb,
		Message:  fmt.Sprintf("%s for %s was %s.", po.PONumber, po.Vendor.Name, verb),
		Type:     "purchase_order_" + verb,
		Metadata: map[string]string{"purchase_order_id": po.ID.Hex()},
	})
}
