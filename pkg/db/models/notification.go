package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
)

// Notification is an in-app message shown to a store's dashboard. Rows are
// written by the event consumer and aged out by the cleanup job.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID   uuid.UUID              `gorm:"column:store_id;type:uuid;not null;index:ix_notifications_store"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	Link      *string                `gorm:"column:link"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
