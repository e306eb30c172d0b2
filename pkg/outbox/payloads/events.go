package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
)

// OrderCreatedEvent signals a paid checkout materialized into an order.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID   `json:"order_id"`
	BuyerID          uuid.UUID   `json:"buyer_id"`
	StoreIDs         []uuid.UUID `json:"store_ids"`
	SubOrderIDs      []uuid.UUID `json:"sub_order_ids"`
	PaymentReference string      `json:"payment_reference"`
	TotalKobo        int64       `json:"total_kobo"`
}

// OrderPaymentFailedEvent records a gateway transaction that verified as failed.
type OrderPaymentFailedEvent struct {
	OrderID          uuid.UUID             `json:"order_id"`
	BuyerID          uuid.UUID             `json:"buyer_id"`
	PaymentReference string                `json:"payment_reference"`
	Gateway          enums.PaymentGateway  `json:"gateway"`
	GatewayStatus    enums.GatewayTxStatus `json:"gateway_status"`
	FailureReason    string                `json:"failure_reason,omitempty"`
}

// DeliveryUpdatedEvent is emitted on every sub-order delivery transition.
type DeliveryUpdatedEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	SubOrderID     uuid.UUID            `json:"sub_order_id"`
	StoreID        uuid.UUID            `json:"store_id"`
	PreviousStatus enums.DeliveryStatus `json:"previous_status"`
	Status         enums.DeliveryStatus `json:"status"`
	UpdatedBy      uuid.UUID            `json:"updated_by"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// FundsReleasedEvent is emitted when escrow lands in a seller wallet.
type FundsReleasedEvent struct {
	ReleaseID      uuid.UUID            `json:"release_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	SubOrderID     uuid.UUID            `json:"sub_order_id"`
	StoreID        uuid.UUID            `json:"store_id"`
	AmountKobo     int64                `json:"amount_kobo"`
	CommissionKobo int64                `json:"commission_kobo"`
	Trigger        enums.ReleaseTrigger `json:"trigger"`
	ReleasedAt     time.Time            `json:"released_at"`
}

// FundsReversedEvent is emitted when an admin claws back a completed release.
type FundsReversedEvent struct {
	ReleaseID  uuid.UUID `json:"release_id"`
	OrderID    uuid.UUID `json:"order_id"`
	SubOrderID uuid.UUID `json:"sub_order_id"`
	StoreID    uuid.UUID `json:"store_id"`
	AmountKobo int64     `json:"amount_kobo"`
	Reason     string    `json:"reason"`
	ReversedAt time.Time `json:"reversed_at"`
}

// RefundProcessedEvent is emitted when a return completes and escrow is refunded.
type RefundProcessedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	SubOrderID uuid.UUID `json:"sub_order_id"`
	ReturnID   uuid.UUID `json:"return_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	StoreID    uuid.UUID `json:"store_id"`
	AmountKobo int64     `json:"amount_kobo"`
	Reason     string    `json:"reason,omitempty"`
	RefundedAt time.Time `json:"refunded_at"`
}

// ReturnRequestedEvent tells the seller a buyer opened a return window claim.
type ReturnRequestedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	SubOrderID  uuid.UUID `json:"sub_order_id"`
	ReturnID    uuid.UUID `json:"return_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	StoreID     uuid.UUID `json:"store_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}
