package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
)

// Record captures one privileged action for the audit trail.
type Record struct {
	ActorUserID    uuid.UUID
	ActorRole      string
	Action         string
	EntityType     string
	EntityID       uuid.UUID
	PreviousStatus string
	NewStatus      string
	Notes          string
	Metadata       map[string]any
}

func (r Record) validate() error {
	if r.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	}
	if r.Action == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "audit action required")
	}
	if r.EntityType == "" || r.EntityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "audit entity required")
	}
	return nil
}

// Service appends audit log rows. The trail is write-only from the
// application's point of view.
type Service struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewService validates dependencies and builds the audit service.
func NewService(db *gorm.DB, logg *logger.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{db: db, logger: logg}, nil
}

// Write appends an audit row outside any transaction.
func (s *Service) Write(ctx context.Context, record Record) error {
	return s.write(ctx, s.db, record)
}

// WriteTx appends an audit row inside the caller's transaction so the trail
// commits with the action it documents.
func (s *Service) WriteTx(ctx context.Context, tx *gorm.DB, record Record) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "audit write requires a transaction")
	}
	return s.write(ctx, tx, record)
}

func (s *Service) write(ctx context.Context, db *gorm.DB, record Record) error {
	if err := record.validate(); err != nil {
		return err
	}

	var metadata json.RawMessage
	if len(record.Metadata) > 0 {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal audit metadata")
		}
		metadata = raw
	}

	row := &models.AuditLog{
		ID:             uuid.New(),
		ActorUserID:    record.ActorUserID,
		ActorRole:      record.ActorRole,
		Action:         record.Action,
		EntityType:     record.EntityType,
		EntityID:       record.EntityID,
		PreviousStatus: record.PreviousStatus,
		NewStatus:      record.NewStatus,
		Notes:          record.Notes,
		Metadata:       metadata,
	}
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write audit log")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"action":      record.Action,
		"entity_type": record.EntityType,
		"entity_id":   record.EntityID.String(),
	}), "audit log written")
	return nil
}
