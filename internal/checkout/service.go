package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/internal/carts"
	"github.com/tobiafolabi/nairamart-backend/internal/orders"
	"github.com/tobiafolabi/nairamart-backend/internal/payments"
	dbpkg "github.com/tobiafolabi/nairamart-backend/pkg/db"
	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pendingAdjuster interface {
	AdjustPending(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, deltaKobo int64) error
}

// Service materializes verified gateway transactions into order aggregates.
// The orders table's idempotency-key unique index is the concurrency guard:
// whichever webhook or poll loses the race adopts the winner's order.
type Service struct {
	carts   carts.Repository
	orders  orders.Repository
	tx      txRunner
	outbox  outboxPublisher
	wallets pendingAdjuster
	logger  *logger.Logger
}

// NewService validates dependencies and builds the checkout service.
func NewService(
	cartsRepo carts.Repository,
	ordersRepo orders.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	ledger pendingAdjuster,
	logg *logger.Logger,
) (*Service, error) {
	if cartsRepo == nil {
		return nil, fmt.Errorf("carts repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		carts:   cartsRepo,
		orders:  ordersRepo,
		tx:      tx,
		outbox:  outboxSvc,
		wallets: ledger,
		logger:  logg,
	}, nil
}

// MaterializeResult reports the order a verified transaction settled into and
// whether this call created it.
type MaterializeResult struct {
	Order   *models.Order
	Created bool
}

// Materialize converts a successfully verified transaction into an order, in
// one transaction. Re-invocation with the same cart returns the existing
// order: the unique index on the idempotency key makes the loser of any race
// see a conflict it can resolve by reading the winner's row.
func (s *Service) Materialize(ctx context.Context, verified *payments.VerifiedTransaction) (*MaterializeResult, error) {
	if verified == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verified transaction required")
	}
	if verified.Status != enums.GatewayTxStatusSuccess {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot materialize a %s transaction", verified.Status))
	}

	cartID, err := ParseCartReference(verified.Reference)
	if err != nil {
		return nil, err
	}

	var result *MaterializeResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartsRepo := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		cart, err := cartsRepo.FindByIDForUpdate(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found for payment reference")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		if cart.Status == enums.CartStatusConverted {
			existing, err := ordersRepo.FindByIdempotencyKey(ctx, cart.IdempotencyKey)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing order")
			}
			result = &MaterializeResult{Order: existing, Created: false}
			return nil
		}
		if len(cart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart has no items")
		}

		subtotal := cart.SubtotalKobo()
		shipping := cart.ShippingKobo()
		total := subtotal + shipping
		if verified.AmountKobo != total {
			return pkgerrors.New(pkgerrors.CodeConflict, "paid amount does not match cart total").
				WithDetails(map[string]any{
					"paid_kobo":     verified.AmountKobo,
					"expected_kobo": total,
				})
		}
		if verified.Currency != "" && verified.Currency != string(cart.Currency) {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("transaction currency %s does not match cart currency %s", verified.Currency, cart.Currency))
		}

		now := time.Now().UTC()
		subOrders := buildSubOrders(cart, now)

		var channel *string
		if verified.Channel != "" {
			ch := verified.Channel
			channel = &ch
		}
		order := &models.Order{
			ID:               uuid.New(),
			UserID:           cart.UserID,
			IdempotencyKey:   cart.IdempotencyKey,
			PaymentGateway:   verified.Gateway,
			PaymentReference: verified.Reference,
			PaymentStatus:    enums.PaymentStatusPaid,
			PaymentChannel:   channel,
			StoreIDs:         storeIDsOf(subOrders),
			Currency:         cart.Currency,
			SubtotalKobo:     subtotal,
			ShippingKobo:     shipping,
			TotalKobo:        total,
			ShippingAddress:  cart.ShippingAddress,
			SubOrders:        subOrders,
		}

		if err := ordersRepo.Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_orders_idempotency_key") {
				existing, findErr := ordersRepo.FindByIdempotencyKey(ctx, cart.IdempotencyKey)
				if findErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load winning order")
				}
				result = &MaterializeResult{Order: existing, Created: false}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		cart.Status = enums.CartStatusConverted
		if err := cartsRepo.Save(ctx, cart); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart converted")
		}

		for _, sub := range subOrders {
			if err := s.wallets.AdjustPending(ctx, tx, sub.StoreID, sub.TotalKobo); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:          order.ID,
				BuyerID:          order.UserID,
				StoreIDs:         order.StoreIDs,
				SubOrderIDs:      subOrderIDsOf(subOrders),
				PaymentReference: order.PaymentReference,
				TotalKobo:        order.TotalKobo,
			},
			Version: 1,
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order created event")
		}

		result = &MaterializeResult{Order: order, Created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"order_id":   result.Order.ID.String(),
			"cart_id":    cartID.String(),
			"total_kobo": result.Order.TotalKobo,
			"gateway":    verified.Gateway.String(),
		}), "order materialized")
	}
	return result, nil
}

// RecordPaymentFailure notes a terminally failed checkout attempt. Nothing is
// materialized; the cart stays active for another attempt.
func (s *Service) RecordPaymentFailure(ctx context.Context, verified *payments.VerifiedTransaction, reason string) error {
	cartID, err := ParseCartReference(verified.Reference)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.carts.WithTx(tx).FindByID(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found for payment reference")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if cart.Status == enums.CartStatusConverted {
			// a later attempt already succeeded; the failure is stale
			return nil
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   cart.ID,
			Data: payloads.OrderPaymentFailedEvent{
				BuyerID:          cart.UserID,
				PaymentReference: verified.Reference,
				Gateway:          verified.Gateway,
				GatewayStatus:    verified.Status,
				FailureReason:    reason,
			},
			Version: 1,
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue payment failed event")
		}

		s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
			"cart_id":   cart.ID.String(),
			"reference": verified.Reference,
			"status":    verified.Status.String(),
		}), "payment attempt failed")
		return nil
	})
}
