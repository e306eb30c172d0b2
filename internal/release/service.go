package release

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
	dbpkg "github.com/tobiafolabi/nairamart-backend/pkg/db"
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
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type walletLedger interface {
	Credit(ctx context.Context, tx *gorm.DB, entry wallets.Entry) (*models.WalletTransaction, error)
	Debit(ctx context.Context, tx *gorm.DB, entry wallets.Entry) (*models.WalletTransaction, error)
	AdjustPending(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, deltaKobo int64) error
}

type auditTrail interface {
	WriteTx(ctx context.Context, tx *gorm.DB, record audit.Record) error
}

// Service is the fund release engine: it owns the pending → ready →
// processing → released lifecycle and the admin overrides around it.
type Service struct {
	repo    Repository
	orders  orders.Repository
	wallets walletLedger
	tx      txRunner
	outbox  outboxPublisher
	audits  auditTrail
	settle  config.SettlementConfig
	logger  *logger.Logger
}

// NewService validates dependencies and builds the release engine.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	ledger walletLedger,
	tx txRunner,
	outboxSvc outboxPublisher,
	audits auditTrail,
	settle config.SettlementConfig,
	logg *logger.Logger,
) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("release repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
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
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:    repo,
		orders:  ordersRepo,
		wallets: ledger,
		tx:      tx,
		outbox:  outboxSvc,
		audits:  audits,
		settle:  settle,
		logger:  logg,
	}, nil
}

// CreatePendingTx opens the fund release record for a freshly delivered
// sub-order. The (order, sub-order) unique index makes it idempotent: a
// concurrent or repeated call lands on the existing record.
func (s *Service) CreatePendingTx(ctx context.Context, tx *gorm.DB, order *models.Order, sub *types.SubOrder, rules types.ReleaseRules, deliveredAt time.Time) (*models.FundRelease, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fund release creation requires a transaction")
	}

	expiry := deliveredAt.AddDate(0, 0, rules.HoldDays)
	release := &models.FundRelease{
		ID:         uuid.New(),
		OrderID:    order.ID,
		SubOrderID: sub.ID,
		StoreID:    sub.StoreID,
		Status:     enums.ReleaseStatusPending,
		Trigger:    enums.ReleaseTriggerSystem,
		ReleaseRules: types.ReleaseRules{
			StoreTier:          rules.StoreTier,
			VerificationStatus: rules.VerificationStatus,
			HoldDays:           rules.HoldDays,
		},
		ConditionsMet: types.ReleaseConditions{
			PaymentCleared:       order.PaymentStatus == enums.PaymentStatusPaid,
			VerificationComplete: rules.VerificationStatus == enums.VerificationStatusVerified,
			DeliveryConfirmed:    sub.DeliveryConfirmed,
		},
		Risk:                     riskFor(rules),
		OrderPlacedAt:            order.CreatedAt,
		BuyerProtectionExpiresAt: expiry,
		ScheduledReleaseAt:       expiry,
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, release); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_fund_releases_sub_order") {
			return repo.FindBySubOrder(ctx, order.ID, sub.ID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fund release")
	}
	return release, nil
}

func riskFor(rules types.ReleaseRules) types.RiskIndicators {
	if rules.StoreTier == enums.StoreTierFlagged {
		return types.RiskIndicators{HighRisk: true, Flags: []string{"flagged_store"}}
	}
	return types.RiskIndicators{}
}

// MarkDeliveryConfirmedTx flips the buyer-confirmation condition on the
// sub-order's release record. Terminal releases are left untouched.
func (s *Service) MarkDeliveryConfirmedTx(ctx context.Context, tx *gorm.DB, orderID, subOrderID uuid.UUID, at time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "delivery confirmation requires a transaction")
	}
	repo := s.repo.WithTx(tx)
	release, err := repo.FindBySubOrderForUpdate(ctx, orderID, subOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "fund release not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
	}
	if release.Status.IsTerminal() || release.ConditionsMet.DeliveryConfirmed {
		return nil
	}
	release.ConditionsMet.DeliveryConfirmed = true
	release.DeliveryConfirmedAt = &at
	if err := repo.Save(ctx, release); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save fund release")
	}
	return nil
}

// Get loads a fund release visible to the actor.
func (s *Service) Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.FundRelease, error) {
	release, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsSellerFor(release.StoreID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "fund release not visible to this actor")
	}
	return release, nil
}

// ListForStore pages a store's fund releases, newest first.
func (s *Service) ListForStore(ctx context.Context, actor types.Actor, storeID uuid.UUID, params pagination.Params) ([]models.FundRelease, string, error) {
	if !actor.IsAdmin() && !actor.IsSellerFor(storeID) {
		return nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this store")
	}
	releases, err := s.repo.ListByStore(ctx, storeID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fund releases")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	nextCursor := ""
	if len(releases) > limit {
		releases = releases[:limit]
		last := releases[len(releases)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return releases, nextCursor, nil
}

// EvaluateAndAdvance pushes one release as far through its lifecycle as its
// conditions and schedule allow. It is idempotent: terminal or not-yet-due
// records are a no-op, so the worker may re-invoke it freely.
func (s *Service) EvaluateAndAdvance(ctx context.Context, releaseID uuid.UUID) (*models.FundRelease, error) {
	var result *models.FundRelease
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		release, err := repo.FindByIDForUpdate(ctx, releaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fund release not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
		}
		result = release

		now := time.Now().UTC()
		switch release.Status {
		case enums.ReleaseStatusReleased, enums.ReleaseStatusReversed, enums.ReleaseStatusProcessing:
			return nil
		case enums.ReleaseStatusPending:
			// the protection window expiring counts as confirmation
			if !release.ConditionsMet.DeliveryConfirmed && !now.Before(release.BuyerProtectionExpiresAt) {
				release.ConditionsMet.DeliveryConfirmed = true
				release.DeliveryConfirmedAt = &now
			}
			if !release.ConditionsMet.AllMet() {
				return repo.Save(ctx, release)
			}
			release.Status = enums.ReleaseStatusReady
		case enums.ReleaseStatusFailed:
			release.Status = enums.ReleaseStatusReady
		}

		if now.Before(release.ScheduledReleaseAt) {
			return repo.Save(ctx, release)
		}
		return s.payoutTx(ctx, tx, release, now, release.Trigger)
	})
	if err != nil {
		if markErr := s.markFailed(ctx, releaseID, err); markErr != nil {
			s.logger.Error(ctx, "failed to record release failure", markErr)
		}
		return nil, err
	}
	return result, nil
}

// payoutTx is the single money-moving step: escrow flip, wallet credit,
// settlement freeze and the released status all commit together.
func (s *Service) payoutTx(ctx context.Context, tx *gorm.DB, release *models.FundRelease, now time.Time, trigger enums.ReleaseTrigger) error {
	ordersRepo := s.orders.WithTx(tx)
	order, err := ordersRepo.FindByIDForUpdate(ctx, release.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payout")
	}
	sub := order.SubOrder(release.SubOrderID)
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "sub-order missing from order aggregate")
	}
	if sub.DeliveryStatus != enums.DeliveryStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "sub-order is not delivered")
	}
	if sub.Escrow.Refunded {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already refunded")
	}
	if sub.Escrow.Released || !sub.Escrow.Held {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow not held for release")
	}

	settlement := computeSettlement(sub, s.settle)
	release.Status = enums.ReleaseStatusProcessing

	if settlement.AmountKobo > 0 {
		_, err = s.wallets.Credit(ctx, tx, wallets.Entry{
			StoreID:     release.StoreID,
			AmountKobo:  settlement.AmountKobo,
			Source:      enums.WalletTransactionSourceFundRelease,
			Description: fmt.Sprintf("payout for sub-order %s", release.SubOrderID),
			OrderID:     &release.OrderID,
			SubOrderID:  &release.SubOrderID,
		})
		if err != nil {
			return err
		}
	}
	if err := s.wallets.AdjustPending(ctx, tx, release.StoreID, -sub.TotalKobo); err != nil {
		return err
	}

	sub.Escrow.Released = true
	sub.Escrow.ReleasedAt = &now
	if err := ordersRepo.Save(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order escrow")
	}

	release.Settlement = &settlement
	release.Trigger = trigger
	release.Status = enums.ReleaseStatusReleased
	release.ActualReleasedAt = &now
	release.LastError = nil
	if err := s.repo.WithTx(tx).Save(ctx, release); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save fund release")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventFundsReleased,
		AggregateType: enums.AggregateFundRelease,
		AggregateID:   release.ID,
		Data: payloads.FundsReleasedEvent{
			ReleaseID:      release.ID,
			OrderID:        release.OrderID,
			SubOrderID:     release.SubOrderID,
			StoreID:        release.StoreID,
			AmountKobo:     settlement.AmountKobo,
			CommissionKobo: settlement.CommissionKobo,
			Trigger:        trigger,
			ReleasedAt:     now,
		},
		Version: 1,
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue funds released event")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"release_id":  release.ID.String(),
		"store_id":    release.StoreID.String(),
		"amount_kobo": settlement.AmountKobo,
		"trigger":     trigger.String(),
	}), "funds released")
	return nil
}

// markFailed records a payout failure in its own transaction so the reason
// survives the rollback that produced it.
func (s *Service) markFailed(ctx context.Context, releaseID uuid.UUID, cause error) error {
	if domainErr := pkgerrors.As(cause); domainErr != nil && domainErr.Code() == pkgerrors.CodeNotFound {
		return nil
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		release, err := repo.FindByIDForUpdate(ctx, releaseID)
		if err != nil {
			return err
		}
		if release.Status.IsTerminal() {
			return nil
		}
		msg := cause.Error()
		release.Status = enums.ReleaseStatusFailed
		release.LastError = &msg
		return repo.Save(ctx, release)
	})
}

// Approve is the admin override for a pending release: it promotes the record
// to ready regardless of outstanding conditions.
func (s *Service) Approve(ctx context.Context, actor types.Actor, releaseID uuid.UUID, notes string) (*models.FundRelease, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var result *models.FundRelease
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		release, err := repo.FindByIDForUpdate(ctx, releaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fund release not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
		}
		if release.Status != enums.ReleaseStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("approve requires pending status, found %s", release.Status))
		}

		previous := release.Status
		release.Status = enums.ReleaseStatusReady
		release.Trigger = enums.ReleaseTriggerAdminApproved
		appendAdminNotes(release, notes)
		if err := repo.Save(ctx, release); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save fund release")
		}

		result = release
		return s.audits.WriteTx(ctx, tx, audit.Record{
			ActorUserID:    actor.UserID,
			ActorRole:      actor.Role.String(),
			Action:         "fund_release.approve",
			EntityType:     "fund_release",
			EntityID:       release.ID,
			PreviousStatus: previous.String(),
			NewStatus:      release.Status.String(),
			Notes:          notes,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForceRelease pays out a ready release immediately, skipping the schedule.
// Any other status is a state conflict, released included.
func (s *Service) ForceRelease(ctx context.Context, actor types.Actor, releaseID uuid.UUID, notes string) (*models.FundRelease, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var result *models.FundRelease
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		release, err := repo.FindByIDForUpdate(ctx, releaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fund release not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
		}
		if release.Status != enums.ReleaseStatusReady {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("force-release requires ready status, found %s", release.Status))
		}

		previous := release.Status
		now := time.Now().UTC()
		appendAdminNotes(release, notes)
		if err := s.payoutTx(ctx, tx, release, now, enums.ReleaseTriggerAdminForced); err != nil {
			return err
		}

		result = release
		return s.audits.WriteTx(ctx, tx, audit.Record{
			ActorUserID:    actor.UserID,
			ActorRole:      actor.Role.String(),
			Action:         "fund_release.force_release",
			EntityType:     "fund_release",
			EntityID:       release.ID,
			PreviousStatus: previous.String(),
			NewStatus:      release.Status.String(),
			Notes:          notes,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reverse claws back a completed payout: the wallet is debited by the settled
// amount and the record moves released → reversed.
func (s *Service) Reverse(ctx context.Context, actor types.Actor, releaseID uuid.UUID, reason string) (*models.FundRelease, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reversal reason required")
	}

	var result *models.FundRelease
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		release, err := repo.FindByIDForUpdate(ctx, releaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fund release not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
		}
		if release.Status != enums.ReleaseStatusReleased {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("reverse requires released status, found %s", release.Status))
		}
		if release.Settlement == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "released record missing settlement")
		}

		now := time.Now().UTC()
		if release.Settlement.AmountKobo > 0 {
			_, err = s.wallets.Debit(ctx, tx, wallets.Entry{
				StoreID:     release.StoreID,
				AmountKobo:  release.Settlement.AmountKobo,
				Source:      enums.WalletTransactionSourceReversal,
				Description: fmt.Sprintf("reversal of release %s: %s", release.ID, reason),
				OrderID:     &release.OrderID,
				SubOrderID:  &release.SubOrderID,
			})
			if err != nil {
				return err
			}
		}

		previous := release.Status
		release.Status = enums.ReleaseStatusReversed
		appendAdminNotes(release, reason)
		if err := repo.Save(ctx, release); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save fund release")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventFundsReversed,
			AggregateType: enums.AggregateFundRelease,
			AggregateID:   release.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: payloads.FundsReversedEvent{
				ReleaseID:  release.ID,
				OrderID:    release.OrderID,
				SubOrderID: release.SubOrderID,
				StoreID:    release.StoreID,
				AmountKobo: release.Settlement.AmountKobo,
				Reason:     reason,
				ReversedAt: now,
			},
			Version: 1,
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue funds reversed event")
		}

		result = release
		return s.audits.WriteTx(ctx, tx, audit.Record{
			ActorUserID:    actor.UserID,
			ActorRole:      actor.Role.String(),
			Action:         "fund_release.reverse",
			EntityType:     "fund_release",
			EntityID:       release.ID,
			PreviousStatus: previous.String(),
			NewStatus:      release.Status.String(),
			Notes:          reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddNotes appends admin commentary without touching the lifecycle.
func (s *Service) AddNotes(ctx context.Context, actor types.Actor, releaseID uuid.UUID, notes string) (*models.FundRelease, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes required")
	}

	var result *models.FundRelease
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		release, err := repo.FindByIDForUpdate(ctx, releaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fund release not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
		}
		appendAdminNotes(release, notes)
		if err := repo.Save(ctx, release); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save fund release")
		}

		result = release
		return s.audits.WriteTx(ctx, tx, audit.Record{
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role.String(),
			Action:      "fund_release.add_notes",
			EntityType:  "fund_release",
			EntityID:    release.ID,
			Notes:       notes,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Due lists releases the worker should evaluate now.
func (s *Service) Due(ctx context.Context, now time.Time, limit int) ([]models.FundRelease, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.repo.ListDue(ctx, now, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due releases")
	}
	return due, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.FundRelease, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "release id required")
	}
	release, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fund release not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
	}
	return release, nil
}

func appendAdminNotes(release *models.FundRelease, notes string) {
	if notes == "" {
		return
	}
	if release.AdminNotes == nil || *release.AdminNotes == "" {
		release.AdminNotes = &notes
		return
	}
	combined := *release.AdminNotes + "\n" + notes
	release.AdminNotes = &combined
}
