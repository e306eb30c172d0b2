package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/internal/wallets"
	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox/payloads"
	"github.com/tobiafolabi/nairamart-backend/pkg/pagination"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type releaseRuleSource interface {
	ReleaseRulesFor(ctx context.Context, storeID uuid.UUID) (types.ReleaseRules, error)
}

// releaseLifecycle is the slice of the fund release engine the delivery state
// machine drives: a pending record on Delivered, and the buyer confirmation
// condition flag.
type releaseLifecycle interface {
	CreatePendingTx(ctx context.Context, tx *gorm.DB, order *models.Order, sub *types.SubOrder, rules types.ReleaseRules, deliveredAt time.Time) (*models.FundRelease, error)
	MarkDeliveryConfirmedTx(ctx context.Context, tx *gorm.DB, orderID, subOrderID uuid.UUID, at time.Time) error
}

type walletLedger interface {
	Debit(ctx context.Context, tx *gorm.DB, entry wallets.Entry) (*models.WalletTransaction, error)
	AdjustPending(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, deltaKobo int64) error
}

// Service owns the order aggregate: reads plus the sub-order delivery state
// machine. Order creation itself lives in the checkout materializer.
type Service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	rules    releaseRuleSource
	releases releaseLifecycle
	wallets  walletLedger
	logger   *logger.Logger
}

// NewService validates dependencies and builds the orders service.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	rules releaseRuleSource,
	releases releaseLifecycle,
	ledger walletLedger,
	logg *logger.Logger,
) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if rules == nil {
		return nil, fmt.Errorf("release rule source required")
	}
	if releases == nil {
		return nil, fmt.Errorf("release lifecycle required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		rules:    rules,
		releases: releases,
		wallets:  ledger,
		logger:   logg,
	}, nil
}

// Get loads an order the actor is allowed to see: the buyer who placed it, a
// seller whose store participates, or an admin.
func (s *Service) Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListForBuyer pages through the actor's own orders.
func (s *Service) ListForBuyer(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.Order, string, error) {
	orders, err := s.repo.ListByUser(ctx, actor.UserID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return paginate(orders, params)
}

// ListForStore pages through orders that include the store. Sellers are
// restricted to their own store; admins may pass any.
func (s *Service) ListForStore(ctx context.Context, actor types.Actor, storeID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if !actor.IsAdmin() && !actor.IsSellerFor(storeID) {
		return nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this store")
	}
	orders, err := s.repo.ListByStore(ctx, storeID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list store orders")
	}
	return paginate(orders, params)
}

// StatusUpdate carries one requested delivery transition.
type StatusUpdate struct {
	OrderID    uuid.UUID
	SubOrderID uuid.UUID
	Status     enums.DeliveryStatus
	Notes      string
}

// UpdateDeliveryStatus moves one sub-order through the delivery state machine.
// The transition table is enforced inside the aggregate's row lock; reaching
// Delivered stamps the return deadline and opens the pending fund release.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, actor types.Actor, update StatusUpdate) (*models.Order, error) {
	if !update.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery status %q", update.Status))
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, update.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		sub := order.SubOrder(update.SubOrderID)
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
		}
		if !actor.IsAdmin() && !actor.IsSellerFor(sub.StoreID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this store")
		}

		previous := sub.DeliveryStatus
		if !Allowed(previous, update.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move sub-order from %s to %s", previous, update.Status)).
				WithDetails(map[string]any{"from": previous, "to": update.Status})
		}

		now := time.Now().UTC()

		// the move to Refunded settles escrow first, while the sub-order
		// is still in its pre-refund status
		if update.Status == enums.DeliveryStatusRefunded {
			if err := s.refundEscrow(ctx, tx, order, sub, update.Notes, now); err != nil {
				return err
			}
		}

		sub.DeliveryStatus = update.Status
		sub.AppendHistory(update.Status, now, update.Notes)

		if update.Status == enums.DeliveryStatusRefunded && order.AllSubOrdersRefunded() {
			order.PaymentStatus = enums.PaymentStatusRefunded
		}

		if update.Status == enums.DeliveryStatusDelivered {
			if err := s.onDelivered(ctx, tx, order, sub, now); err != nil {
				return err
			}
		}

		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDeliveryUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, StoreID: actor.StoreID, Role: actor.Role.String()},
			Data: payloads.DeliveryUpdatedEvent{
				OrderID:        order.ID,
				SubOrderID:     sub.ID,
				StoreID:        sub.StoreID,
				PreviousStatus: previous,
				Status:         update.Status,
				UpdatedBy:      actor.UserID,
				UpdatedAt:      now,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue delivery event")
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"order_id":     update.OrderID.String(),
		"sub_order_id": update.SubOrderID.String(),
		"status":       update.Status.String(),
	}), "delivery status updated")
	return updated, nil
}

// onDelivered stamps delivery time and the tier-modulated return deadline,
// then opens the pending fund release with the rules snapshotted now.
func (s *Service) onDelivered(ctx context.Context, tx *gorm.DB, order *models.Order, sub *types.SubOrder, now time.Time) error {
	rules, err := s.rules.ReleaseRulesFor(ctx, sub.StoreID)
	if err != nil {
		return err
	}
	deadline := now.AddDate(0, 0, rules.HoldDays)
	sub.DeliveredAt = &now
	sub.ReturnDeadline = &deadline

	if _, err := s.releases.CreatePendingTx(ctx, tx, order, sub, rules, now); err != nil {
		return err
	}
	return nil
}

// refundEscrow settles held escrow back to the buyer when a sub-order is moved
// to Refunded outside the return workflow (cancellations and failed
// deliveries). It debits the store wallet for whatever the return workflow has
// not already refunded and draws the pending figure down by the same amount.
func (s *Service) refundEscrow(ctx context.Context, tx *gorm.DB, order *models.Order, sub *types.SubOrder, reason string, now time.Time) error {
	if sub.Escrow.Released {
		return pkgerrors.New(pkgerrors.CodeConflict, "escrow already released to seller; use a payout reversal")
	}

	remaining := sub.TotalKobo - refundedKobo(sub)
	if sub.Escrow.Refunded && remaining <= 0 {
		// the return workflow already settled the money
		return nil
	}
	if !sub.Escrow.Held {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no escrow held for this sub-order")
	}

	if reason == "" {
		reason = fmt.Sprintf("refunded from %s", sub.DeliveryStatus)
	}
	sub.Escrow.Refunded = true
	if sub.Escrow.RefundReason == "" {
		sub.Escrow.RefundReason = reason
	}

	if remaining > 0 {
		if _, err := s.wallets.Debit(ctx, tx, wallets.Entry{
			StoreID:     sub.StoreID,
			AmountKobo:  remaining,
			Source:      enums.WalletTransactionSourceRefund,
			Description: fmt.Sprintf("refund for sub-order %s", sub.ID),
			OrderID:     &order.ID,
			SubOrderID:  &sub.ID,
		}); err != nil {
			return err
		}
		if err := s.wallets.AdjustPending(ctx, tx, sub.StoreID, -remaining); err != nil {
			return err
		}
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventRefundProcessed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   sub.ID,
		Data: payloads.RefundProcessedEvent{
			OrderID:    order.ID,
			SubOrderID: sub.ID,
			BuyerID:    order.UserID,
			StoreID:    sub.StoreID,
			AmountKobo: remaining,
			Reason:     reason,
			RefundedAt: now,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue refund processed event")
	}
	return nil
}

// refundedKobo sums amounts the return workflow has already refunded.
func refundedKobo(sub *types.SubOrder) int64 {
	var total int64
	for _, ret := range sub.Returns {
		if ret.Status == enums.ReturnStatusRefunded {
			total += ret.RefundKobo
		}
	}
	return total
}

// ConfirmDelivery records the buyer's explicit receipt confirmation. It flips
// the release engine's deliveryConfirmed condition; it is not a status move.
func (s *Service) ConfirmDelivery(ctx context.Context, actor types.Actor, orderID, subOrderID uuid.UUID) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
		}

		sub := order.SubOrder(subOrderID)
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
		}
		if sub.DeliveryStatus != enums.DeliveryStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sub-order is not delivered")
		}
		if sub.DeliveryConfirmed {
			updated = order
			return nil
		}

		now := time.Now().UTC()
		sub.DeliveryConfirmed = true
		if err := s.releases.MarkDeliveryConfirmedTx(ctx, tx, order.ID, sub.ID, now); err != nil {
			return err
		}
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func authorizeRead(actor types.Actor, order *models.Order) error {
	if actor.IsAdmin() || order.UserID == actor.UserID {
		return nil
	}
	for _, storeID := range order.StoreIDs {
		if actor.IsSellerFor(storeID) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order not visible to this actor")
}

func paginate(orders []models.Order, params pagination.Params) ([]models.Order, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	nextCursor := ""
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return orders, nextCursor, nil
}
