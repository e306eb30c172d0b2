package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

// Store carries the seller attributes the settlement core consumes: trust
// tier, verification state, and risk flags. Catalog and profile data live in
// other services.
type Store struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string                   `gorm:"column:name;not null"`
	Tier               enums.StoreTier          `gorm:"column:tier;type:store_tier;not null;default:'new'"`
	VerificationStatus enums.VerificationStatus `gorm:"column:verification_status;type:verification_status;not null;default:'pending'"`
	Risk               types.RiskIndicators     `gorm:"column:risk_indicators;type:jsonb;serializer:json"`
	ContactEmail       string                   `gorm:"column:contact_email"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
