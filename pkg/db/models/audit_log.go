package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is the write-only record of privileged actions. Nothing in the
// settlement core reads it back.
type AuditLog struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorUserID    uuid.UUID       `gorm:"column:actor_user_id;type:uuid;not null"`
	ActorRole      string          `gorm:"column:actor_role;not null"`
	Action         string          `gorm:"column:action;not null"`
	EntityType     string          `gorm:"column:entity_type;not null"`
	EntityID       uuid.UUID       `gorm:"column:entity_id;type:uuid;not null"`
	PreviousStatus string          `gorm:"column:previous_status"`
	NewStatus      string          `gorm:"column:new_status"`
	Notes          string          `gorm:"column:notes"`
	Metadata       json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
