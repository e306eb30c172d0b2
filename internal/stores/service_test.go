package stores

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
)

type stubRepo struct {
	stores  map[uuid.UUID]*models.Store
	updated []*models.Store
	findErr error
}

func newStubRepo(stores ...*models.Store) *stubRepo {
	byID := make(map[uuid.UUID]*models.Store, len(stores))
	for _, store := range stores {
		byID[store.ID] = store
	}
	return &stubRepo{stores: byID}
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	store, ok := s.stores[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return store, nil
}

func (s *stubRepo) Update(ctx context.Context, store *models.Store) error {
	s.updated = append(s.updated, store)
	return nil
}

func (s *stubRepo) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Store, error) {
	return s.FindByID(context.Background(), id)
}

func testSettlementConfig() config.SettlementConfig {
	return config.SettlementConfig{
		ReturnWindowDays:      7,
		NewStoreExtraHoldDays: 7,
		FlaggedExtraHoldDays:  14,
		TrustedHoldDays:       3,
	}
}

func TestGetNotFound(t *testing.T) {
	svc, err := NewService(newStubRepo(), testSettlementConfig())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeNotFound, domainErr.Code())
}

func TestReleaseRulesForTiers(t *testing.T) {
	cases := []struct {
		tier     enums.StoreTier
		holdDays int
	}{
		{enums.StoreTierNew, 14},
		{enums.StoreTierStandard, 7},
		{enums.StoreTierTrusted, 3},
		{enums.StoreTierFlagged, 21},
	}

	for _, tc := range cases {
		store := &models.Store{
			ID:                 uuid.New(),
			Name:               "Ade Electronics",
			Tier:               tc.tier,
			VerificationStatus: enums.VerificationStatusVerified,
		}
		svc, err := NewService(newStubRepo(store), testSettlementConfig())
		require.NoError(t, err)

		rules, err := svc.ReleaseRulesFor(context.Background(), store.ID)
		require.NoError(t, err)
		require.Equal(t, tc.tier, rules.StoreTier)
		require.Equal(t, enums.VerificationStatusVerified, rules.VerificationStatus)
		require.Equal(t, tc.holdDays, rules.HoldDays, "tier %s", tc.tier)
	}
}

func TestUpdateTier(t *testing.T) {
	store := &models.Store{ID: uuid.New(), Name: "Ade Electronics", Tier: enums.StoreTierNew}
	repo := newStubRepo(store)
	svc, err := NewService(repo, testSettlementConfig())
	require.NoError(t, err)

	updated, err := svc.UpdateTier(context.Background(), store.ID, enums.StoreTierStandard)
	require.NoError(t, err)
	require.Equal(t, enums.StoreTierStandard, updated.Tier)
	require.Len(t, repo.updated, 1)

	// no-op when tier unchanged
	_, err = svc.UpdateTier(context.Background(), store.ID, enums.StoreTierStandard)
	require.NoError(t, err)
	require.Len(t, repo.updated, 1)

	_, err = svc.UpdateTier(context.Background(), store.ID, enums.StoreTier("platinum"))
	require.Error(t, err)
}

func TestUpdateVerification(t *testing.T) {
	store := &models.Store{ID: uuid.New(), Name: "Ade Electronics", VerificationStatus: enums.VerificationStatusPending}
	repo := newStubRepo(store)
	svc, err := NewService(repo, testSettlementConfig())
	require.NoError(t, err)

	updated, err := svc.UpdateVerification(context.Background(), store.ID, enums.VerificationStatusVerified)
	require.NoError(t, err)
	require.Equal(t, enums.VerificationStatusVerified, updated.VerificationStatus)

	_, err = svc.UpdateVerification(context.Background(), store.ID, enums.VerificationStatus("checked"))
	require.Error(t, err)
}
