package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
)

// Wallet holds a store's settled balance. Only fund release and refund
// processing mutate it, always alongside a WalletTransaction.
type Wallet struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID         uuid.UUID      `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_wallets_store"`
	BalanceKobo     int64          `gorm:"column:balance_kobo;not null;default:0"`
	PendingKobo     int64          `gorm:"column:pending_kobo;not null;default:0"`
	TotalEarnedKobo int64          `gorm:"column:total_earned_kobo;not null;default:0"`
	Currency        enums.Currency `gorm:"column:currency;type:text;not null;default:'NGN'"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
