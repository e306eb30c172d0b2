package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/internal/audit"
	"github.com/tobiafolabi/nairamart-backend/internal/orders"
	"github.com/tobiafolabi/nairamart-backend/internal/wallets"
	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox"
	"github.com/tobiafolabi/nairamart-backend/pkg/outbox/payloads"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditTrail interface {
	WriteTx(ctx context.Context, tx *gorm.DB, record audit.Record) error
}

type walletLedger interface {
	Debit(ctx context.Context, tx *gorm.DB, entry wallets.Entry) (*models.WalletTransaction, error)
	AdjustPending(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, deltaKobo int64) error
}

// Service runs the return/refund workflow: buyers open returns on delivered
// sub-orders, stores review them, and the refunded step settles escrow back
// to the buyer.
type Service struct {
	orders  orders.Repository
	tx      txRunner
	outbox  outboxPublisher
	audits  auditTrail
	wallets walletLedger
	settle  config.SettlementConfig
	logger  *logger.Logger
}

// NewService validates dependencies and builds the refunds service.
func NewService(
	ordersRepo orders.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	audits auditTrail,
	ledger walletLedger,
	settle config.SettlementConfig,
	logg *logger.Logger,
) (*Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit trail required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		orders:  ordersRepo,
		tx:      tx,
		outbox:  outboxSvc,
		audits:  audits,
		wallets: ledger,
		settle:  settle,
		logger:  logg,
	}, nil
}

// ReturnInput is a buyer's request to return part of a delivered sub-order.
type ReturnInput struct {
	ProductID      uuid.UUID
	Qty            int
	Reason         string
	EvidenceImages []string
}

func (s *Service) maxEvidence() int {
	if s.settle.MaxReturnEvidence > 0 {
		return s.settle.MaxReturnEvidence
	}
	return 4
}

// RequestReturn opens a return on a delivered sub-order line item. The window
// closes at the sub-order's return deadline.
func (s *Service) RequestReturn(ctx context.Context, actor types.Actor, orderID, subOrderID uuid.UUID, input ReturnInput) (*types.ReturnRequest, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return quantity must be positive")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}
	if len(input.EvidenceImages) > s.maxEvidence() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("at most %d evidence images allowed", s.maxEvidence()))
	}

	var created *types.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
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
		// a partial refund moves the sub-order to Returned; the remaining
		// items stay returnable until the window closes
		if sub.DeliveryStatus != enums.DeliveryStatusDelivered && sub.DeliveryStatus != enums.DeliveryStatusReturned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "returns are only accepted on delivered sub-orders")
		}

		now := time.Now().UTC()
		if sub.ReturnDeadline == nil || now.After(*sub.ReturnDeadline) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return window has closed")
		}

		item := sub.ItemByProduct(input.ProductID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not in sub-order")
		}
		if input.Qty > item.Qty-openReturnQty(sub, input.ProductID) {
			return pkgerrors.New(pkgerrors.CodeValidation, "return quantity exceeds what was ordered")
		}

		ret := types.ReturnRequest{
			ID:             uuid.New(),
			ProductID:      input.ProductID,
			Qty:            input.Qty,
			Reason:         input.Reason,
			Status:         enums.ReturnStatusRequested,
			RequestedAt:    now,
			RefundKobo:     item.UnitPriceKobo * int64(input.Qty),
			EvidenceImages: input.EvidenceImages,
		}
		sub.Returns = append(sub.Returns, ret)

		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateReturn,
			AggregateID:   ret.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: payloads.ReturnRequestedEvent{
				OrderID:     order.ID,
				SubOrderID:  sub.ID,
				ReturnID:    ret.ID,
				BuyerID:     order.UserID,
				StoreID:     sub.StoreID,
				Reason:      input.Reason,
				RequestedAt: now,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue return requested event")
		}

		created = &ret
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"order_id":     orderID.String(),
		"sub_order_id": subOrderID.String(),
		"return_id":    created.ID.String(),
	}), "return requested")
	return created, nil
}

// openReturnQty sums quantities across this product's returns that are still
// alive (anything but rejected).
func openReturnQty(sub *types.SubOrder, productID uuid.UUID) int {
	total := 0
	for _, ret := range sub.Returns {
		if ret.ProductID == productID && ret.Status != enums.ReturnStatusRejected {
			total += ret.Qty
		}
	}
	return total
}

// UpdateReturnStatus moves a return through store review. The refunded step is
// the financial one: escrow flips to refunded and, when the whole sub-order is
// covered, its delivery status moves to refunded as well.
func (s *Service) UpdateReturnStatus(ctx context.Context, actor types.Actor, orderID, subOrderID, returnID uuid.UUID, newStatus enums.ReturnStatus, notes string) (*types.ReturnRequest, error) {
	if !newStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid return status %q", newStatus))
	}

	var updated *types.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		sub := order.SubOrder(subOrderID)
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
		}
		if !actor.IsAdmin() && !actor.IsSellerFor(sub.StoreID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this store")
		}

		ret := sub.ReturnByID(returnID)
		if ret == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		if ret.Status == newStatus {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("return is already %s", newStatus))
		}
		if !Allowed(ret.Status, newStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move return from %s to %s", ret.Status, newStatus)).
				WithDetails(map[string]any{"from": ret.Status, "to": newStatus})
		}

		now := time.Now().UTC()
		previous := ret.Status

		if newStatus == enums.ReturnStatusRefunded {
			if err := s.finalizeRefund(ctx, tx, order, sub, ret, now); err != nil {
				return err
			}
		}

		ret.Status = newStatus
		if newStatus == enums.ReturnStatusApproved {
			ret.ApprovedAt = &now
		}

		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}

		updated = ret
		return s.audits.WriteTx(ctx, tx, audit.Record{
			ActorUserID:    actor.UserID,
			ActorRole:      actor.Role.String(),
			Action:         "return.update_status",
			EntityType:     "return_request",
			EntityID:       ret.ID,
			PreviousStatus: previous.String(),
			NewStatus:      newStatus.String(),
			Notes:          notes,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// finalizeRefund performs the money-touching part of the refunded transition.
// Escrow must still be held: once funds reached the seller wallet the refund
// path is closed and the clawback goes through an admin reversal instead.
func (s *Service) finalizeRefund(ctx context.Context, tx *gorm.DB, order *models.Order, sub *types.SubOrder, ret *types.ReturnRequest, now time.Time) error {
	if sub.Escrow.Released {
		return pkgerrors.New(pkgerrors.CodeConflict, "escrow already released to seller; use a payout reversal")
	}
	if !sub.Escrow.Held {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no escrow held for this sub-order")
	}

	// escrow flips in Returned, never straight out of Delivered
	if sub.DeliveryStatus == enums.DeliveryStatusDelivered {
		sub.DeliveryStatus = enums.DeliveryStatusReturned
		sub.AppendHistory(enums.DeliveryStatusReturned, now, "return received by store")
	}
	switch sub.DeliveryStatus {
	case enums.DeliveryStatusReturned, enums.DeliveryStatusCanceled, enums.DeliveryStatusFailedDelivery:
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot refund escrow while sub-order is %s", sub.DeliveryStatus))
	}

	sub.Escrow.Refunded = true
	sub.Escrow.RefundReason = ret.Reason

	if _, err := s.wallets.Debit(ctx, tx, wallets.Entry{
		StoreID:     sub.StoreID,
		AmountKobo:  ret.RefundKobo,
		Source:      enums.WalletTransactionSourceRefund,
		Description: fmt.Sprintf("refund for return %s", ret.ID),
		OrderID:     &order.ID,
		SubOrderID:  &sub.ID,
	}); err != nil {
		return err
	}
	if err := s.wallets.AdjustPending(ctx, tx, sub.StoreID, -ret.RefundKobo); err != nil {
		return err
	}

	// fully refunded sub-orders leave the fulfillment flow
	if sub.RefundedQty()+ret.Qty >= sub.OrderedQty() && orders.Allowed(sub.DeliveryStatus, enums.DeliveryStatusRefunded) {
		sub.DeliveryStatus = enums.DeliveryStatusRefunded
		sub.AppendHistory(enums.DeliveryStatusRefunded, now, "all items refunded")
		markOrderRefunded(order)
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventRefundProcessed,
		AggregateType: enums.AggregateReturn,
		AggregateID:   ret.ID,
		Data: payloads.RefundProcessedEvent{
			OrderID:    order.ID,
			SubOrderID: sub.ID,
			ReturnID:   ret.ID,
			BuyerID:    order.UserID,
			StoreID:    sub.StoreID,
			AmountKobo: ret.RefundKobo,
			Reason:     ret.Reason,
			RefundedAt: now,
		},
		Version: 1,
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue refund processed event")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"return_id":   ret.ID.String(),
		"amount_kobo": ret.RefundKobo,
	}), "refund processed")
	return nil
}

// markOrderRefunded flips the order's payment status once every sub-order has
// been fully refunded.
func markOrderRefunded(order *models.Order) {
	if order.AllSubOrdersRefunded() {
		order.PaymentStatus = enums.PaymentStatusRefunded
	}
}
