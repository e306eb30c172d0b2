package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	Update(ctx context.Context, store *models.Store) error
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Store, error)
}

// Service exposes the seller attributes the settlement core consumes.
type Service struct {
	repo   repository
	settle config.SettlementConfig
}

// NewService validates dependencies and builds the store service.
func NewService(repo repository, settle config.SettlementConfig) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stores repository required")
	}
	return &Service{repo: repo, settle: settle}, nil
}

// Get loads a store, mapping missing rows to NOT_FOUND.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	return store, nil
}

// ReleaseRulesFor snapshots the hold rules for a store at order time. The
// snapshot is frozen on the fund release so later tier changes don't move
// already-scheduled payouts.
func (s *Service) ReleaseRulesFor(ctx context.Context, storeID uuid.UUID) (types.ReleaseRules, error) {
	store, err := s.Get(ctx, storeID)
	if err != nil {
		return types.ReleaseRules{}, err
	}
	return s.RulesForStore(store), nil
}

// RulesForStore derives hold rules from an already-loaded store row.
func (s *Service) RulesForStore(store *models.Store) types.ReleaseRules {
	return types.ReleaseRules{
		StoreTier:          store.Tier,
		VerificationStatus: store.VerificationStatus,
		HoldDays:           s.holdDaysForTier(store.Tier),
	}
}

func (s *Service) holdDaysForTier(tier enums.StoreTier) int {
	base := s.settle.ReturnWindowDays
	if base <= 0 {
		base = 7
	}
	switch tier {
	case enums.StoreTierTrusted:
		if s.settle.TrustedHoldDays > 0 {
			return s.settle.TrustedHoldDays
		}
		return base
	case enums.StoreTierNew:
		return base + s.settle.NewStoreExtraHoldDays
	case enums.StoreTierFlagged:
		return base + s.settle.FlaggedExtraHoldDays
	default:
		return base
	}
}

// UpdateTier moves a store to a new trust tier.
func (s *Service) UpdateTier(ctx context.Context, storeID uuid.UUID, tier enums.StoreTier) (*models.Store, error) {
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid store tier")
	}
	store, err := s.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.Tier == tier {
		return store, nil
	}
	store.Tier = tier
	if err := s.repo.Update(ctx, store); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update store tier")
	}
	return store, nil
}

// UpdateVerification moves a store's verification status.
func (s *Service) UpdateVerification(ctx context.Context, storeID uuid.UUID, status enums.VerificationStatus) (*models.Store, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid verification status")
	}
	store, err := s.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.VerificationStatus == status {
		return store, nil
	}
	store.VerificationStatus = status
	if err := s.repo.Update(ctx, store); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update store verification")
	}
	return store, nil
}
