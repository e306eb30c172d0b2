package wallets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tobiafolabi/nairamart-backend/pkg/db/models"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
	"github.com/tobiafolabi/nairamart-backend/pkg/pagination"
)

// Entry describes a single balance mutation. Every Credit or Debit writes a
// matching WalletTransaction row so the trail replays to the balance.
type Entry struct {
	StoreID     uuid.UUID
	AmountKobo  int64
	Source      enums.WalletTransactionSource
	Description string
	OrderID     *uuid.UUID
	SubOrderID  *uuid.UUID
}

func (e Entry) validate() error {
	if e.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if e.AmountKobo <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !e.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet transaction source %q", e.Source))
	}
	return nil
}

// Service mutates store wallets. Credit and Debit always run inside the
// caller's transaction so the wallet mutation commits or rolls back with the
// fund release or refund that caused it.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService validates dependencies and builds the wallet service.
func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallets repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logger: logg}, nil
}

// Credit adds funds to the store's wallet inside tx, creating the wallet on
// first credit. Fund release credits also accrue TotalEarnedKobo.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet credit requires a transaction")
	}
	if err := entry.validate(); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByStoreForUpdate(ctx, entry.StoreID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
		}
		wallet = &models.Wallet{
			ID:       uuid.New(),
			StoreID:  entry.StoreID,
			Currency: enums.CurrencyNGN,
		}
		if err := repo.Create(ctx, wallet); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
		}
	}

	wallet.BalanceKobo += entry.AmountKobo
	if entry.Source == enums.WalletTransactionSourceFundRelease {
		wallet.TotalEarnedKobo += entry.AmountKobo
	}
	if err := repo.Save(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wallet")
	}

	txn := s.buildTransaction(wallet, entry, enums.WalletTransactionTypeCredit)
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record wallet credit")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"store_id":    entry.StoreID.String(),
		"amount_kobo": entry.AmountKobo,
		"source":      entry.Source.String(),
	}), "wallet credited")
	return txn, nil
}

// Debit removes funds from the store's wallet inside tx. A reversal claws
// back a prior credit, so it needs an existing wallet with sufficient balance.
// A refund debit settles escrow that never reached the spendable balance: it
// opens the wallet if needed and may drive it negative, with the deficit
// netting against the store's next release.
func (s *Service) Debit(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet debit requires a transaction")
	}
	if err := entry.validate(); err != nil {
		return nil, err
	}
	isRefund := entry.Source == enums.WalletTransactionSourceRefund

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByStoreForUpdate(ctx, entry.StoreID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
		}
		if !isRefund {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "store has no wallet to debit")
		}
		wallet = &models.Wallet{
			ID:       uuid.New(),
			StoreID:  entry.StoreID,
			Currency: enums.CurrencyNGN,
		}
		if err := repo.Create(ctx, wallet); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
		}
	}

	if !isRefund && wallet.BalanceKobo < entry.AmountKobo {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("insufficient wallet balance: have %d kobo, need %d kobo", wallet.BalanceKobo, entry.AmountKobo))
	}

	wallet.BalanceKobo -= entry.AmountKobo
	if err := repo.Save(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wallet")
	}

	txn := s.buildTransaction(wallet, entry, enums.WalletTransactionTypeDebit)
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record wallet debit")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"store_id":    entry.StoreID.String(),
		"amount_kobo": entry.AmountKobo,
		"source":      entry.Source.String(),
	}), "wallet debited")
	return txn, nil
}

func (s *Service) buildTransaction(wallet *models.Wallet, entry Entry, txnType enums.WalletTransactionType) *models.WalletTransaction {
	return &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		StoreID:     entry.StoreID,
		Type:        txnType,
		Source:      entry.Source,
		AmountKobo:  entry.AmountKobo,
		Description: entry.Description,
		OrderID:     entry.OrderID,
		SubOrderID:  entry.SubOrderID,
	}
}

// AdjustPending moves the wallet's pending figure, which mirrors escrow held
// for the store. Pending is informational: it never appears in the transaction
// trail and clamps at zero.
func (s *Service) AdjustPending(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, deltaKobo int64) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "pending adjustment requires a transaction")
	}
	if storeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if deltaKobo == 0 {
		return nil
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByStoreForUpdate(ctx, storeID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
		}
		if deltaKobo < 0 {
			return nil
		}
		wallet = &models.Wallet{
			ID:          uuid.New(),
			StoreID:     storeID,
			PendingKobo: deltaKobo,
			Currency:    enums.CurrencyNGN,
		}
		if err := repo.Create(ctx, wallet); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
		}
		return nil
	}

	wallet.PendingKobo += deltaKobo
	if wallet.PendingKobo < 0 {
		wallet.PendingKobo = 0
	}
	if err := repo.Save(ctx, wallet); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wallet")
	}
	return nil
}

// GetByStore loads a store's wallet. Stores that have never been credited
// get a zero-balance view rather than NOT_FOUND.
func (s *Service) GetByStore(ctx context.Context, storeID uuid.UUID) (*models.Wallet, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	wallet, err := s.repo.FindByStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.Wallet{StoreID: storeID, Currency: enums.CurrencyNGN}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

// ListTransactions returns a page of the store's transaction trail plus the
// cursor for the next page.
func (s *Service) ListTransactions(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	if storeID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}

	txns, err := s.repo.ListTransactions(ctx, storeID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	nextCursor := ""
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return txns, nextCursor, nil
}
