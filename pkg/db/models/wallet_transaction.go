package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
)

// WalletTransaction is the append-only trail behind every wallet balance
// mutation. Balance reconciliation replays these rows.
type WalletTransaction struct {
	ID          uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID    uuid.UUID                     `gorm:"column:wallet_id;type:uuid;not null;index:ix_wallet_transactions_wallet"`
	StoreID     uuid.UUID                     `gorm:"column:store_id;type:uuid;not null;index:ix_wallet_transactions_store"`
	Type        enums.WalletTransactionType   `gorm:"column:type;type:wallet_transaction_type;not null"`
	Source      enums.WalletTransactionSource `gorm:"column:source;type:wallet_transaction_source;not null"`
	AmountKobo  int64                         `gorm:"column:amount_kobo;not null"`
	Description string                        `gorm:"column:description;not null"`
	OrderID     *uuid.UUID                    `gorm:"column:order_id;type:uuid"`
	SubOrderID  *uuid.UUID                    `gorm:"column:sub_order_id;type:uuid"`
	CreatedAt   time.Time                     `gorm:"column:created_at;autoCreateTime"`
}
