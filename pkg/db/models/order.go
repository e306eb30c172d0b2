package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/tobiafolabi/nairamart-backend/pkg/db/types"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

// Order is the aggregate root for a multi-seller purchase. Sub-orders are
// embedded jsonb, not separate rows: every child mutation rides the parent
// row's transaction, which keeps escrow and status flips atomic.
type Order struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index:ix_orders_user"`
	IdempotencyKey   string               `gorm:"column:idempotency_key;not null;uniqueIndex:ux_orders_idempotency_key"`
	PaymentGateway   enums.PaymentGateway `gorm:"column:payment_gateway;type:payment_gateway;not null"`
	PaymentReference string               `gorm:"column:payment_reference;not null;index:ix_orders_payment_reference"`
	PaymentStatus    enums.PaymentStatus  `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentChannel   *string              `gorm:"column:payment_channel"`
	StoreIDs         dbtypes.UUIDArray    `gorm:"column:store_ids;type:uuid[]"`
	Currency         enums.Currency       `gorm:"column:currency;type:text;not null;default:'NGN'"`
	SubtotalKobo     int64                `gorm:"column:subtotal_kobo;not null"`
	ShippingKobo     int64                `gorm:"column:shipping_kobo;not null;default:0"`
	TotalKobo        int64                `gorm:"column:total_kobo;not null"`
	ShippingAddress  *types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	SubOrders        types.SubOrders      `gorm:"column:sub_orders;type:jsonb;serializer:json"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// SubOrder returns the embedded sub-order for in-place mutation, or nil.
func (o *Order) SubOrder(id uuid.UUID) *types.SubOrder {
	return o.SubOrders.ByID(id)
}

// AllSubOrdersRefunded reports whether every sub-order has left fulfillment
// through a refund, which is when the order's payment status itself flips.
func (o *Order) AllSubOrdersRefunded() bool {
	if len(o.SubOrders) == 0 {
		return false
	}
	for i := range o.SubOrders {
		if o.SubOrders[i].DeliveryStatus != enums.DeliveryStatusRefunded {
			return false
		}
	}
	return true
}
