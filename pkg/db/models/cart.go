package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

// CartItem is a priced line in a checkout-ready cart snapshot.
type CartItem struct {
	ProductID     uuid.UUID `json:"product_id"`
	StoreID       uuid.UUID `json:"store_id"`
	Name          string    `json:"name"`
	UnitPriceKobo int64     `json:"unit_price_kobo"`
	Qty           int       `json:"qty"`
}

// CartShippingQuote is the per-store shipping quote frozen at checkout.
type CartShippingQuote struct {
	StoreID uuid.UUID              `json:"store_id"`
	Quote   types.ShippingSnapshot `json:"quote"`
}

// Cart is the buyer's checkout snapshot: line items already priced and
// shipping quoted. The idempotency key is derived from the cart at checkout
// time so it survives gateway retries, unlike the per-attempt reference.
type Cart struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:ix_carts_user"`
	IdempotencyKey  string              `gorm:"column:idempotency_key;not null;uniqueIndex:ux_carts_idempotency_key"`
	Status          enums.CartStatus    `gorm:"column:status;type:cart_status;not null;default:'active'"`
	Items           []CartItem          `gorm:"column:items;type:jsonb;serializer:json"`
	ShippingQuotes  []CartShippingQuote `gorm:"column:shipping_quotes;type:jsonb;serializer:json"`
	ShippingAddress *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Currency        enums.Currency      `gorm:"column:currency;type:text;not null;default:'NGN'"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// SubtotalKobo sums the priced lines.
func (c *Cart) SubtotalKobo() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPriceKobo * int64(item.Qty)
	}
	return total
}

// ShippingKobo sums the per-store shipping quotes.
func (c *Cart) ShippingKobo() int64 {
	var total int64
	for _, quote := range c.ShippingQuotes {
		total += quote.Quote.FeeKobo
	}
	return total
}

// QuoteForStore returns the shipping quote for a store, zero value if absent.
func (c *Cart) QuoteForStore(storeID uuid.UUID) types.ShippingSnapshot {
	for _, quote := range c.ShippingQuotes {
		if quote.StoreID == storeID {
			return quote.Quote
		}
	}
	return types.ShippingSnapshot{}
}
