package checkout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/internal/carts"
	"github.com/tobiafolabi/nairamart-backend/internal/orders"
	"github.com/tobiafolabi/nairamart-backend/internal/payments"
	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox"
	"github.com/tobiafolabi/nairamart-backend/pkg/pagination"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

type fakeCartsRepo struct {
	carts map[uuid.UUID]*models.Cart
}

func newFakeCartsRepo() *fakeCartsRepo {
	return &fakeCartsRepo{carts: make(map[uuid.UUID]*models.Cart)}
}

func (f *fakeCartsRepo) WithTx(tx *gorm.DB) carts.Repository { return f }

func (f *fakeCartsRepo) Create(ctx context.Context, cart *models.Cart) error {
	f.carts[cart.ID] = cart
	return nil
}

func (f *fakeCartsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	cart, ok := f.carts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cart, nil
}

func (f *fakeCartsRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeCartsRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	for _, cart := range f.carts {
		if cart.UserID == userID && cart.Status == enums.CartStatusActive {
			return cart, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartsRepo) Save(ctx context.Context, cart *models.Cart) error {
	f.carts[cart.ID] = cart
	return nil
}

type fakeOrdersRepo struct {
	orders    map[uuid.UUID]*models.Order
	createErr error
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.orders {
		if existing.IdempotencyKey == order.IdempotencyKey {
			return errors.New(`duplicate key value violates unique constraint "ux_orders_idempotency_key"`)
		}
	}
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
	for _, order := range f.orders {
		if order.IdempotencyKey == key {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.PaymentReference == reference {
			return order, nil
		}
	}
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

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range f.events {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	f.events = append(f.events, event)
	return nil
}

type fakePending struct {
	deltas map[uuid.UUID]int64
}

func (f *fakePending) AdjustPending(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, deltaKobo int64) error {
	if f.deltas == nil {
		f.deltas = make(map[uuid.UUID]int64)
	}
	f.deltas[storeID] += deltaKobo
	return nil
}

type fixture struct {
	svc     *Service
	carts   *fakeCartsRepo
	orders  *fakeOrdersRepo
	outbox  *fakeOutbox
	pending *fakePending
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{
		ServiceName: "checkout-test",
		Level:       zerolog.ErrorLevel,
		Output:      io.Discard,
	})
	cartsRepo := newFakeCartsRepo()
	ordersRepo := newFakeOrdersRepo()
	ob := &fakeOutbox{}
	pending := &fakePending{}
	svc, err := NewService(cartsRepo, ordersRepo, fakeTx{}, ob, pending, logg)
	require.NoError(t, err)
	return &fixture{svc: svc, carts: cartsRepo, orders: ordersRepo, outbox: ob, pending: pending}
}

var (
	storeA = uuid.New()
	storeB = uuid.New()
)

func twoStoreCart() *models.Cart {
	return &models.Cart{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		IdempotencyKey: "cart-" + uuid.NewString(),
		Status:         enums.CartStatusActive,
		Currency:       enums.CurrencyNGN,
		Items: []models.CartItem{
			{ProductID: uuid.New(), StoreID: storeA, Name: "Ankara fabric bundle", UnitPriceKobo: 150000, Qty: 2},
			{ProductID: uuid.New(), StoreID: storeB, Name: "Leather sandals", UnitPriceKobo: 220000, Qty: 1},
			{ProductID: uuid.New(), StoreID: storeA, Name: "Adire scarf", UnitPriceKobo: 50000, Qty: 1},
		},
		ShippingQuotes: []models.CartShippingQuote{
			{StoreID: storeA, Quote: types.ShippingSnapshot{Method: "standard", FeeKobo: 25000}},
			{StoreID: storeB, Quote: types.ShippingSnapshot{Method: "standard", FeeKobo: 15000}},
		},
	}
}

func verifiedFor(cart *models.Cart) *payments.VerifiedTransaction {
	paidAt := time.Now().UTC()
	return &payments.VerifiedTransaction{
		Gateway:    enums.PaymentGatewayPaystack,
		Reference:  BuildPaymentReference(cart.ID),
		Status:     enums.GatewayTxStatusSuccess,
		AmountKobo: cart.SubtotalKobo() + cart.ShippingKobo(),
		Currency:   "NGN",
		Channel:    "card",
		PaidAt:     &paidAt,
	}
}

func TestMaterializeCreatesOrder(t *testing.T) {
	f := newFixture(t)
	cart := twoStoreCart()
	f.carts.carts[cart.ID] = cart

	result, err := f.svc.Materialize(context.Background(), verifiedFor(cart))
	require.NoError(t, err)
	require.True(t, result.Created)

	order := result.Order
	assert.Equal(t, cart.IdempotencyKey, order.IdempotencyKey)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, int64(570000), order.SubtotalKobo)
	assert.Equal(t, int64(40000), order.ShippingKobo)
	assert.Equal(t, int64(610000), order.TotalKobo)

	require.Len(t, order.SubOrders, 2)
	subA := order.SubOrders[0]
	assert.Equal(t, storeA, subA.StoreID)
	assert.Len(t, subA.Items, 2)
	assert.Equal(t, int64(350000), subA.SubtotalKobo)
	assert.Equal(t, int64(375000), subA.TotalKobo)
	assert.Equal(t, enums.DeliveryStatusOrderPlaced, subA.DeliveryStatus)
	assert.True(t, subA.Escrow.Held)
	require.Len(t, subA.StatusHistory, 1)

	subB := order.SubOrders[1]
	assert.Equal(t, storeB, subB.StoreID)
	assert.Equal(t, int64(235000), subB.TotalKobo)

	assert.Equal(t, enums.CartStatusConverted, cart.Status)
	assert.Equal(t, int64(375000), f.pending.deltas[storeA])
	assert.Equal(t, int64(235000), f.pending.deltas[storeB])

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventOrderCreated, f.outbox.events[0].EventType)
	assert.Equal(t, order.ID, f.outbox.events[0].AggregateID)
}

func TestMaterializeReplayReturnsExistingOrder(t *testing.T) {
	f := newFixture(t)
	cart := twoStoreCart()
	f.carts.carts[cart.ID] = cart
	verified := verifiedFor(cart)

	first, err := f.svc.Materialize(context.Background(), verified)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.svc.Materialize(context.Background(), verified)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	// escrow was held exactly once
	assert.Equal(t, int64(375000), f.pending.deltas[storeA])
	assert.Len(t, f.outbox.events, 1)
}

func TestMaterializeRetryAfterNewReferenceSameCart(t *testing.T) {
	f := newFixture(t)
	cart := twoStoreCart()
	f.carts.carts[cart.ID] = cart

	first, err := f.svc.Materialize(context.Background(), verifiedFor(cart))
	require.NoError(t, err)

	// a second attempt minted its own reference but resolves to the same cart
	second, err := f.svc.Materialize(context.Background(), verifiedFor(cart))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Order.ID, second.Order.ID)
}

func TestMaterializeLosingRaceAdoptsWinner(t *testing.T) {
	f := newFixture(t)
	cart := twoStoreCart()
	f.carts.carts[cart.ID] = cart

	// winner's row exists although this goroutine saw the cart as active
	winner := &models.Order{ID: uuid.New(), IdempotencyKey: cart.IdempotencyKey}
	f.orders.orders[winner.ID] = winner

	result, err := f.svc.Materialize(context.Background(), verifiedFor(cart))
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, winner.ID, result.Order.ID)
}

func TestMaterializeAmountMismatch(t *testing.T) {
	f := newFixture(t)
	cart := twoStoreCart()
	f.carts.carts[cart.ID] = cart
	verified := verifiedFor(cart)
	verified.AmountKobo -= 1000

	_, err := f.svc.Materialize(context.Background(), verified)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	assert.Equal(t, enums.CartStatusActive, cart.Status)
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.pending.deltas)
}

func TestMaterializeRejectsNonSuccessStatus(t *testing.T) {
	f := newFixture(t)
	cart := twoStoreCart()
	f.carts.carts[cart.ID] = cart
	verified := verifiedFor(cart)
	verified.Status = enums.GatewayTxStatusPending

	_, err := f.svc.Materialize(context.Background(), verified)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestMaterializeUnknownReference(t *testing.T) {
	f := newFixture(t)
	verified := &payments.VerifiedTransaction{
		Reference:  "stripe_ch_3abc",
		Status:     enums.GatewayTxStatusSuccess,
		AmountKobo: 1000,
	}
	_, err := f.svc.Materialize(context.Background(), verified)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestMaterializeCartNotFound(t *testing.T) {
	f := newFixture(t)
	verified := &payments.VerifiedTransaction{
		Reference:  BuildPaymentReference(uuid.New()),
		Status:     enums.GatewayTxStatusSuccess,
		AmountKobo: 1000,
	}
	_, err := f.svc.Materialize(context.Background(), verified)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestRecordPaymentFailureEmitsEvent(t *testing.T) {
	f := newFixture(t)
	cart := twoStoreCart()
	f.carts.carts[cart.ID] = cart

	verified := verifiedFor(cart)
	verified.Status = enums.GatewayTxStatusFailed

	err := f.svc.RecordPaymentFailure(context.Background(), verified, "insufficient funds")
	require.NoError(t, err)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventOrderPaymentFailed, f.outbox.events[0].EventType)
	assert.Equal(t, cart.ID, f.outbox.events[0].AggregateID)
	assert.Equal(t, enums.CartStatusActive, cart.Status)
}

func TestRecordPaymentFailureStaleAfterConversion(t *testing.T) {
	f := newFixture(t)
	cart := twoStoreCart()
	f.carts.carts[cart.ID] = cart

	_, err := f.svc.Materialize(context.Background(), verifiedFor(cart))
	require.NoError(t, err)

	failed := verifiedFor(cart)
	failed.Status = enums.GatewayTxStatusAbandoned
	require.NoError(t, f.svc.RecordPaymentFailure(context.Background(), failed, "abandoned"))

	// only the order_created event; the stale failure emitted nothing
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventOrderCreated, f.outbox.events[0].EventType)
}

func TestBuildAndParseReferenceRoundTrip(t *testing.T) {
	cartID := uuid.New()
	ref := BuildPaymentReference(cartID)
	parsed, err := ParseCartReference(ref)
	require.NoError(t, err)
	assert.Equal(t, cartID, parsed)

	ref2 := BuildPaymentReference(cartID)
	assert.NotEqual(t, ref, ref2)
}
