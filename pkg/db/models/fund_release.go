package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

// FundRelease tracks the settlement of one sub-order's escrow into the
// seller's wallet. Exactly one record exists per sub-order.
type FundRelease struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_fund_releases_sub_order,priority:1"`
	SubOrderID    uuid.UUID               `gorm:"column:sub_order_id;type:uuid;not null;uniqueIndex:ux_fund_releases_sub_order,priority:2"`
	StoreID       uuid.UUID               `gorm:"column:store_id;type:uuid;not null;index:ix_fund_releases_store"`
	Status        enums.ReleaseStatus     `gorm:"column:status;type:release_status;not null;default:'pending'"`
	Trigger       enums.ReleaseTrigger    `gorm:"column:trigger;type:release_trigger;not null;default:'system'"`
	ReleaseRules  types.ReleaseRules      `gorm:"column:release_rules;type:jsonb;serializer:json"`
	ConditionsMet types.ReleaseConditions `gorm:"column:conditions_met;type:jsonb;serializer:json"`
	Settlement    *types.Settlement       `gorm:"column:settlement;type:jsonb;serializer:json"`
	Risk          types.RiskIndicators    `gorm:"column:risk_indicators;type:jsonb;serializer:json"`
	AdminNotes    *string                 `gorm:"column:admin_notes"`
	LastError     *string                 `gorm:"column:last_error"`

	OrderPlacedAt            time.Time  `gorm:"column:order_placed_at;not null"`
	DeliveryConfirmedAt      *time.Time `gorm:"column:delivery_confirmed_at"`
	BuyerProtectionExpiresAt time.Time  `gorm:"column:buyer_protection_expires_at;not null"`
	ScheduledReleaseAt       time.Time  `gorm:"column:scheduled_release_at;not null"`
	ActualReleasedAt         *time.Time `gorm:"column:actual_released_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
