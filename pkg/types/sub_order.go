package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
)

// OrderItem is an immutable line-item snapshot taken at purchase time. Later
// catalog price changes never affect it.
type OrderItem struct {
	ProductID     uuid.UUID `json:"product_id"`
	Name          string    `json:"name"`
	UnitPriceKobo int64     `json:"unit_price_kobo"`
	Qty           int       `json:"qty"`
}

// TotalKobo returns price times quantity for the line.
func (i OrderItem) TotalKobo() int64 {
	return i.UnitPriceKobo * int64(i.Qty)
}

// ShippingSnapshot freezes the shipping method quoted at checkout.
type ShippingSnapshot struct {
	Method   string `json:"method"`
	Carrier  string `json:"carrier,omitempty"`
	FeeKobo  int64  `json:"fee_kobo"`
	EstaDays int    `json:"eta_days,omitempty"`
}

// Escrow holds the per-sub-order fund state. At most one of Released/Refunded
// may ever be true.
type Escrow struct {
	Held         bool       `json:"held"`
	Released     bool       `json:"released"`
	Refunded     bool       `json:"refunded"`
	ReleasedAt   *time.Time `json:"released_at,omitempty"`
	RefundReason string     `json:"refund_reason,omitempty"`
}

// StatusHistoryEntry is one append-only record of a delivery status change.
type StatusHistoryEntry struct {
	Status enums.DeliveryStatus `json:"status"`
	At     time.Time            `json:"at"`
	Notes  string               `json:"notes,omitempty"`
}

// ReturnRequest is a buyer-initiated return embedded in its sub-order.
type ReturnRequest struct {
	ID             uuid.UUID          `json:"id"`
	ProductID      uuid.UUID          `json:"product_id"`
	Qty            int                `json:"qty"`
	Reason         string             `json:"reason"`
	Status         enums.ReturnStatus `json:"status"`
	RequestedAt    time.Time          `json:"requested_at"`
	ApprovedAt     *time.Time         `json:"approved_at,omitempty"`
	RefundKobo     int64              `json:"refund_kobo"`
	EvidenceImages []string           `json:"evidence_images,omitempty"`
}

// SubOrder is the portion of a multi-seller order belonging to one store. It
// is embedded in the order aggregate and addressed by id within it; all
// mutation happens through the parent order's transaction.
type SubOrder struct {
	ID                uuid.UUID            `json:"id"`
	StoreID           uuid.UUID            `json:"store_id"`
	Items             []OrderItem          `json:"items"`
	Shipping          ShippingSnapshot     `json:"shipping"`
	SubtotalKobo      int64                `json:"subtotal_kobo"`
	TotalKobo         int64                `json:"total_kobo"`
	DeliveryStatus    enums.DeliveryStatus `json:"delivery_status"`
	Escrow            Escrow               `json:"escrow"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	ReturnDeadline    *time.Time           `json:"return_deadline,omitempty"`
	DeliveryConfirmed bool                 `json:"delivery_confirmed"`
	StatusHistory     []StatusHistoryEntry `json:"status_history"`
	Returns           []ReturnRequest      `json:"returns,omitempty"`
}

// AppendHistory records a status change. History is append-only.
func (s *SubOrder) AppendHistory(status enums.DeliveryStatus, at time.Time, notes string) {
	s.StatusHistory = append(s.StatusHistory, StatusHistoryEntry{
		Status: status,
		At:     at,
		Notes:  notes,
	})
}

// ReturnByID finds an embedded return request.
func (s *SubOrder) ReturnByID(id uuid.UUID) *ReturnRequest {
	for i := range s.Returns {
		if s.Returns[i].ID == id {
			return &s.Returns[i]
		}
	}
	return nil
}

// OrderedQty sums the ordered quantity across line items.
func (s *SubOrder) OrderedQty() int {
	total := 0
	for _, item := range s.Items {
		total += item.Qty
	}
	return total
}

// RefundedQty sums quantities across returns that reached refunded.
func (s *SubOrder) RefundedQty() int {
	total := 0
	for _, ret := range s.Returns {
		if ret.Status == enums.ReturnStatusRefunded {
			total += ret.Qty
		}
	}
	return total
}

// ItemByProduct finds the line item for a product id.
func (s *SubOrder) ItemByProduct(productID uuid.UUID) *OrderItem {
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return &s.Items[i]
		}
	}
	return nil
}

// SubOrders is the jsonb-embedded collection stored on the order row.
type SubOrders []SubOrder

// ByID returns a pointer into the slice for in-place mutation.
func (s SubOrders) ByID(id uuid.UUID) *SubOrder {
	for i := range s {
		if s[i].ID == id {
			return &s[i]
		}
	}
	return nil
}
