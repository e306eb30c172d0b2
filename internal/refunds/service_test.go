package refunds

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/internal/audit"
	ordersvc "github.com/tobiafolabi/nairamart-backend/internal/orders"
	"github.com/tobiafolabi/nairamart-backend/internal/wallets"
	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox"
	"github.com/tobiafolabi/nairamart-backend/pkg/pagination"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

func TestReturnTransitions(t *testing.T) {
	cases := []struct {
		from enums.ReturnStatus
		to   enums.ReturnStatus
		want bool
	}{
		{enums.ReturnStatusRequested, enums.ReturnStatusApproved, true},
		{enums.ReturnStatusRequested, enums.ReturnStatusRejected, true},
		{enums.ReturnStatusRequested, enums.ReturnStatusRefunded, false},
		{enums.ReturnStatusApproved, enums.ReturnStatusInTransit, true},
		{enums.ReturnStatusInTransit, enums.ReturnStatusReceived, true},
		{enums.ReturnStatusReceived, enums.ReturnStatusRefunded, true},
		{enums.ReturnStatusRejected, enums.ReturnStatusApproved, false},
		{enums.ReturnStatusRefunded, enums.ReturnStatusRequested, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Allowed(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

type fakeOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newFakeOrdersRepo(orders ...*models.Order) *fakeOrdersRepo {
	byID := make(map[uuid.UUID]*models.Order, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
	}
	return &fakeOrdersRepo{orders: byID}
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) ordersvc.Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeOrdersRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) Save(ctx context.Context, order *models.Order) error {
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrdersRepo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) ListByStore(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	return nil, nil
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range f.events {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	f.events = append(f.events, event)
	return nil
}

type fakeAudit struct {
	records []audit.Record
}

func (f *fakeAudit) WriteTx(ctx context.Context, tx *gorm.DB, record audit.Record) error {
	f.records = append(f.records, record)
	return nil
}

type fakeLedger struct {
	deltas map[uuid.UUID]int64
	debits []wallets.Entry
}

func (f *fakeLedger) Debit(ctx context.Context, tx *gorm.DB, entry wallets.Entry) (*models.WalletTransaction, error) {
	f.debits = append(f.debits, entry)
	return &models.WalletTransaction{
		ID:         uuid.New(),
		StoreID:    entry.StoreID,
		Type:       enums.WalletTransactionTypeDebit,
		Source:     entry.Source,
		AmountKobo: entry.AmountKobo,
	}, nil
}

func (f *fakeLedger) AdjustPending(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, deltaKobo int64) error {
	if f.deltas == nil {
		f.deltas = make(map[uuid.UUID]int64)
	}
	f.deltas[storeID] += deltaKobo
	return nil
}

type fixture struct {
	svc    *Service
	repo   *fakeOrdersRepo
	outbox *fakeOutbox
	audits *fakeAudit
	ledger *fakeLedger
}

func newFixture(t *testing.T, orders ...*models.Order) *fixture {
	t.Helper()
	repo := newFakeOrdersRepo(orders...)
	ob := &fakeOutbox{}
	audits := &fakeAudit{}
	ledger := &fakeLedger{}
	logg := logger.New(logger.Options{ServiceName: "refunds-test", Level: zerolog.ErrorLevel, Output: io.Discard})
	svc, err := NewService(repo, fakeTx{}, ob, audits, ledger,
		config.SettlementConfig{ReturnWindowDays: 7, MaxReturnEvidence: 4}, logg)
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, outbox: ob, audits: audits, ledger: ledger}
}

func deliveredOrder(qty int) (*models.Order, *types.SubOrder, types.OrderItem) {
	subID := uuid.New()
	storeID := uuid.New()
	deliveredAt := time.Now().UTC().Add(-24 * time.Hour)
	deadline := deliveredAt.AddDate(0, 0, 7)
	item := types.OrderItem{
		ProductID:     uuid.New(),
		Name:          "Ankara fabric bundle",
		UnitPriceKobo: 150_000,
		Qty:           qty,
	}
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		PaymentStatus: enums.PaymentStatusPaid,
		StoreIDs:      []uuid.UUID{storeID},
		SubOrders: types.SubOrders{{
			ID:             subID,
			StoreID:        storeID,
			Items:          []types.OrderItem{item},
			SubtotalKobo:   item.TotalKobo(),
			TotalKobo:      item.TotalKobo(),
			DeliveryStatus: enums.DeliveryStatusDelivered,
			Escrow:         types.Escrow{Held: true},
			DeliveredAt:    &deliveredAt,
			ReturnDeadline: &deadline,
		}},
	}
	return order, order.SubOrder(subID), item
}

func buyerOf(order *models.Order) types.Actor {
	return types.Actor{UserID: order.UserID, Role: enums.MemberRoleBuyer}
}

func sellerOf(sub *types.SubOrder) types.Actor {
	storeID := sub.StoreID
	return types.Actor{UserID: uuid.New(), StoreID: &storeID, Role: enums.MemberRoleSeller}
}

func TestRequestReturn(t *testing.T) {
	order, sub, item := deliveredOrder(2)
	fx := newFixture(t, order)

	ret, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID:      item.ProductID,
		Qty:            1,
		Reason:         "torn on arrival",
		EvidenceImages: []string{"img1.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, enums.ReturnStatusRequested, ret.Status)
	require.Equal(t, int64(150_000), ret.RefundKobo)

	stored := fx.repo.orders[order.ID].SubOrder(sub.ID)
	require.Len(t, stored.Returns, 1)
	require.Len(t, fx.outbox.events, 1)
	require.Equal(t, enums.EventReturnRequested, fx.outbox.events[0].EventType)
}

func TestRequestReturnWindowClosed(t *testing.T) {
	order, sub, item := deliveredOrder(1)
	expired := time.Now().UTC().Add(-time.Hour)
	sub.ReturnDeadline = &expired
	fx := newFixture(t, order)

	_, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "changed my mind",
	})
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeStateConflict, domainErr.Code())
}

func TestRequestReturnNotDelivered(t *testing.T) {
	order, sub, item := deliveredOrder(1)
	sub.DeliveryStatus = enums.DeliveryStatusShipped
	fx := newFixture(t, order)

	_, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "never arrived",
	})
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeStateConflict, domainErr.Code())
}

func TestRequestReturnTooMuchEvidence(t *testing.T) {
	order, sub, item := deliveredOrder(1)
	fx := newFixture(t, order)

	_, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID:      item.ProductID,
		Qty:            1,
		Reason:         "damaged",
		EvidenceImages: []string{"a", "b", "c", "d", "e"},
	})
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeValidation, domainErr.Code())
}

func TestRequestReturnQtyExceedsOrdered(t *testing.T) {
	order, sub, item := deliveredOrder(2)
	fx := newFixture(t, order)
	buyer := buyerOf(order)

	_, err := fx.svc.RequestReturn(context.Background(), buyer, order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "damaged",
	})
	require.NoError(t, err)

	// one unit already claimed; two more exceeds the remaining quantity
	_, err = fx.svc.RequestReturn(context.Background(), buyer, order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       2,
		Reason:    "damaged",
	})
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeValidation, domainErr.Code())
}

func advanceToReceived(t *testing.T, fx *fixture, order *models.Order, sub *types.SubOrder, returnID uuid.UUID) {
	t.Helper()
	seller := sellerOf(sub)
	for _, status := range []enums.ReturnStatus{
		enums.ReturnStatusApproved,
		enums.ReturnStatusInTransit,
		enums.ReturnStatusReceived,
	} {
		_, err := fx.svc.UpdateReturnStatus(context.Background(), seller, order.ID, sub.ID, returnID, status, "")
		require.NoError(t, err)
	}
}

func TestRefundFlow(t *testing.T) {
	order, sub, item := deliveredOrder(1)
	fx := newFixture(t, order)

	ret, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "torn on arrival",
	})
	require.NoError(t, err)

	advanceToReceived(t, fx, order, sub, ret.ID)

	updated, err := fx.svc.UpdateReturnStatus(context.Background(), sellerOf(sub), order.ID, sub.ID, ret.ID, enums.ReturnStatusRefunded, "inspected, approved")
	require.NoError(t, err)
	require.Equal(t, enums.ReturnStatusRefunded, updated.Status)

	stored := fx.repo.orders[order.ID].SubOrder(sub.ID)
	require.True(t, stored.Escrow.Refunded)
	require.Equal(t, "torn on arrival", stored.Escrow.RefundReason)

	// full quantity refunded: sub-order leaves fulfillment via Returned
	require.Equal(t, enums.DeliveryStatusRefunded, stored.DeliveryStatus)
	histLen := len(stored.StatusHistory)
	require.GreaterOrEqual(t, histLen, 2)
	require.Equal(t, enums.DeliveryStatusReturned, stored.StatusHistory[histLen-2].Status)
	require.Equal(t, enums.DeliveryStatusRefunded, stored.StatusHistory[histLen-1].Status)

	// store wallet debited and the debit recorded in the trail
	require.Len(t, fx.ledger.debits, 1)
	debit := fx.ledger.debits[0]
	require.Equal(t, sub.StoreID, debit.StoreID)
	require.Equal(t, int64(150_000), debit.AmountKobo)
	require.Equal(t, enums.WalletTransactionSourceRefund, debit.Source)
	require.NotNil(t, debit.SubOrderID)
	require.Equal(t, sub.ID, *debit.SubOrderID)

	// pending escrow drawn down
	require.Equal(t, int64(-150_000), fx.ledger.deltas[sub.StoreID])

	// the whole order is refunded, so the payment status flips with it
	require.Equal(t, enums.PaymentStatusRefunded, fx.repo.orders[order.ID].PaymentStatus)

	// event + audit trail
	var refundEvents int
	for _, event := range fx.outbox.events {
		if event.EventType == enums.EventRefundProcessed {
			refundEvents++
		}
	}
	require.Equal(t, 1, refundEvents)
	require.NotEmpty(t, fx.audits.records)
}

func TestRefundAgainstReleasedEscrowConflicts(t *testing.T) {
	order, sub, item := deliveredOrder(1)
	fx := newFixture(t, order)

	ret, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "damaged",
	})
	require.NoError(t, err)
	advanceToReceived(t, fx, order, sub, ret.ID)

	// funds hit the seller wallet in the meantime
	now := time.Now().UTC()
	sub.Escrow.Released = true
	sub.Escrow.ReleasedAt = &now

	_, err = fx.svc.UpdateReturnStatus(context.Background(), sellerOf(sub), order.ID, sub.ID, ret.ID, enums.ReturnStatusRefunded, "")
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeConflict, domainErr.Code())

	stored := fx.repo.orders[order.ID].SubOrder(sub.ID)
	require.False(t, stored.Escrow.Refunded)
	require.Empty(t, fx.ledger.debits)
}

func TestPartialRefundMovesSubOrderToReturned(t *testing.T) {
	order, sub, item := deliveredOrder(2)
	fx := newFixture(t, order)

	ret, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "one unit damaged",
	})
	require.NoError(t, err)
	advanceToReceived(t, fx, order, sub, ret.ID)

	_, err = fx.svc.UpdateReturnStatus(context.Background(), sellerOf(sub), order.ID, sub.ID, ret.ID, enums.ReturnStatusRefunded, "")
	require.NoError(t, err)

	stored := fx.repo.orders[order.ID].SubOrder(sub.ID)

	// escrow may only flip in Returned, Canceled or FailedDelivery; a
	// partially refunded sub-order lands in Returned and stays there
	require.Equal(t, enums.DeliveryStatusReturned, stored.DeliveryStatus)
	require.True(t, stored.Escrow.Refunded)

	require.Len(t, fx.ledger.debits, 1)
	require.Equal(t, int64(150_000), fx.ledger.debits[0].AmountKobo)
	require.Equal(t, enums.PaymentStatusPaid, fx.repo.orders[order.ID].PaymentStatus)

	// the second unit is still returnable while the window is open
	_, err = fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "second unit also damaged",
	})
	require.NoError(t, err)
}

func TestRefundIsIdempotentPerReturn(t *testing.T) {
	order, sub, item := deliveredOrder(1)
	fx := newFixture(t, order)

	ret, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "damaged",
	})
	require.NoError(t, err)
	advanceToReceived(t, fx, order, sub, ret.ID)

	_, err = fx.svc.UpdateReturnStatus(context.Background(), sellerOf(sub), order.ID, sub.ID, ret.ID, enums.ReturnStatusRefunded, "")
	require.NoError(t, err)

	_, err = fx.svc.UpdateReturnStatus(context.Background(), sellerOf(sub), order.ID, sub.ID, ret.ID, enums.ReturnStatusRefunded, "")
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeConflict, domainErr.Code())
	require.Equal(t, int64(-150_000), fx.ledger.deltas[sub.StoreID])
	require.Len(t, fx.ledger.debits, 1)
}

func TestUpdateReturnStatusForbiddenForOtherStore(t *testing.T) {
	order, sub, item := deliveredOrder(1)
	fx := newFixture(t, order)

	ret, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "damaged",
	})
	require.NoError(t, err)

	otherStore := uuid.New()
	_, err = fx.svc.UpdateReturnStatus(context.Background(),
		types.Actor{UserID: uuid.New(), StoreID: &otherStore, Role: enums.MemberRoleSeller},
		order.ID, sub.ID, ret.ID, enums.ReturnStatusApproved, "")
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeForbidden, domainErr.Code())
}

func TestUpdateReturnStatusIllegalJump(t *testing.T) {
	order, sub, item := deliveredOrder(1)
	fx := newFixture(t, order)

	ret, err := fx.svc.RequestReturn(context.Background(), buyerOf(order), order.ID, sub.ID, ReturnInput{
		ProductID: item.ProductID,
		Qty:       1,
		Reason:    "damaged",
	})
	require.NoError(t, err)

	_, err = fx.svc.UpdateReturnStatus(context.Background(), sellerOf(sub), order.ID, sub.ID, ret.ID, enums.ReturnStatusRefunded, "")
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeStateConflict, domainErr.Code())
}
