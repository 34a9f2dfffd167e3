package businessflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	"github.com/reelbux/reelbux/utils"
	"gorm.io/gorm"
)

// WalletFlow exposes wallet balance reads, ledger history, and the
// distro-to-spendable transfer.
type WalletFlow interface {
	GetWalletBalance(ctx context.Context, req *dto.GetWalletBalanceRequest, metadata *ClientMetadata) (*dto.GetWalletBalanceResponse, error)
	GetTransactionHistory(ctx context.Context, req *dto.GetTransactionHistoryRequest, metadata *ClientMetadata) (*dto.TransactionHistoryResponse, error)
	TransferDistroToReelBux(ctx context.Context, req *dto.TransferDistroRequest, metadata *ClientMetadata) (*dto.TransferDistroResponse, error)
}

// WalletFlowImpl implements the wallet business flow
type WalletFlowImpl struct {
	customerRepo repository.CustomerRepository
	walletRepo   repository.WalletRepository
	txRepo       repository.TransactionRepository
	auditRepo    repository.AuditLogRepository
	db           *gorm.DB
}

// NewWalletFlow creates a new wallet flow instance
func NewWalletFlow(
	customerRepo repository.CustomerRepository,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) WalletFlow {
	return &WalletFlowImpl{
		customerRepo: customerRepo,
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		auditRepo:    auditRepo,
		db:           db,
	}
}

// GetWalletBalance returns both balances, creating the wallet on first read
func (w *WalletFlowImpl) GetWalletBalance(ctx context.Context, req *dto.GetWalletBalanceRequest, metadata *ClientMetadata) (*dto.GetWalletBalanceResponse, error) {
	customer, err := getCustomer(ctx, w.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("WALLET_BALANCE_FAILED", "Wallet balance lookup failed", err)
	}

	wallet, err := w.walletRepo.GetOrCreate(ctx, customer.ID)
	if err != nil {
		return nil, NewBusinessError("WALLET_BALANCE_FAILED", "Wallet balance lookup failed", err)
	}

	return &dto.GetWalletBalanceResponse{
		WalletUUID:     wallet.UUID.String(),
		ReelBuxBalance: wallet.ReelBuxBalance,
		DistroBalance:  wallet.DistroBalance,
		Currency:       utils.USDCurrency,
		UpdatedAt:      wallet.UpdatedAt,
	}, nil
}

// GetTransactionHistory returns a filtered, paginated view of the ledger
func (w *WalletFlowImpl) GetTransactionHistory(ctx context.Context, req *dto.GetTransactionHistoryRequest, metadata *ClientMetadata) (*dto.TransactionHistoryResponse, error) {
	if err := validatePagination(req.Page, req.PageSize); err != nil {
		return nil, NewBusinessError("TRANSACTION_HISTORY_FAILED", "Transaction history lookup failed", err)
	}
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return nil, NewBusinessError("TRANSACTION_HISTORY_FAILED", "Transaction history lookup failed", ErrStartDateAfterEndDate)
	}

	customer, err := getCustomer(ctx, w.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_HISTORY_FAILED", "Transaction history lookup failed", err)
	}

	filter := models.TransactionFilter{
		CustomerID:    utils.ToPtr(customer.ID),
		CreatedAfter:  req.StartDate,
		CreatedBefore: req.EndDate,
	}
	if req.Source != nil {
		filter.Source = utils.ToPtr(models.TransactionSource(*req.Source))
	}
	if req.Kind != nil {
		filter.Kind = utils.ToPtr(models.TransactionKind(*req.Kind))
	}
	if req.Status != nil {
		filter.Status = utils.ToPtr(models.PaymentStatus(*req.Status))
	}

	offset := int((req.Page - 1) * req.PageSize)
	limit := int(req.PageSize)
	transactions, err := w.txRepo.ByFilter(ctx, filter, "created_at DESC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_HISTORY_FAILED", "Transaction history lookup failed", err)
	}

	total, err := w.txRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_HISTORY_FAILED", "Transaction history lookup failed", err)
	}

	items := make([]dto.TransactionHistoryItem, 0, len(transactions))
	for _, tx := range transactions {
		operation := dto.TransactionKindDisplay[tx.Kind]
		if operation == "" {
			operation = string(tx.Kind)
		}
		items = append(items, dto.TransactionHistoryItem{
			UUID:        tx.UUID.String(),
			Source:      string(tx.Source),
			Kind:        string(tx.Kind),
			Operation:   operation,
			Status:      string(tx.Status),
			BalanceKind: string(tx.BalanceKind),
			Amount:      tx.Amount,
			Currency:    tx.Currency,
			Description: tx.Description,
			FilmID:      tx.FilmID,
			ExternalRef: tx.ExternalReference,
			DateTime:    tx.CreatedAt,
		})
	}

	return &dto.TransactionHistoryResponse{
		Items:      items,
		Pagination: dto.NewPaginationInfo(req.Page, req.PageSize, uint(total)),
	}, nil
}

// TransferDistroToReelBux moves affiliate earnings into the spendable
// balance. Both ledger legs share one correlation id so the move reads
// as a single event.
func (w *WalletFlowImpl) TransferDistroToReelBux(ctx context.Context, req *dto.TransferDistroRequest, metadata *ClientMetadata) (*dto.TransferDistroResponse, error) {
	var customer models.Customer
	var response *dto.TransferDistroResponse

	err := repository.WithTransaction(ctx, w.db, func(txCtx context.Context) error {
		var err error
		customer, err = getCustomer(txCtx, w.customerRepo, req.CustomerID)
		if err != nil {
			return err
		}

		if !req.Amount.IsPositive() {
			return ErrInvalidAmount
		}

		wallet, err := w.walletRepo.ByCustomerIDForUpdate(txCtx, customer.ID)
		if err != nil {
			return err
		}

		if !wallet.CanDebit(models.BalanceKindDistro, req.Amount) {
			return ErrInsufficientFunds
		}

		wallet.Debit(models.BalanceKindDistro, req.Amount)
		wallet.Credit(models.BalanceKindReelBux, req.Amount)
		if err := w.walletRepo.UpdateBalances(txCtx, wallet); err != nil {
			return err
		}

		correlationID := uuid.New()
		debitLeg := &models.Transaction{
			CorrelationID: correlationID,
			Source:        models.TransactionSourceSystem,
			Kind:          models.TransactionKindTransfer,
			BalanceKind:   models.BalanceKindDistro,
			Status:        models.PaymentStatusCompleted,
			Amount:        req.Amount,
			Currency:      utils.USDCurrency,
			CustomerID:    customer.ID,
			WalletID:      utils.ToPtr(wallet.ID),
			Description:   "Transfer from distro balance",
			CreatedAt:     utils.UTCNow(),
			UpdatedAt:     utils.UTCNow(),
		}
		if err := w.txRepo.Save(txCtx, debitLeg); err != nil {
			return err
		}

		creditLeg := &models.Transaction{
			CorrelationID: correlationID,
			Source:        models.TransactionSourceSystem,
			Kind:          models.TransactionKindTransfer,
			BalanceKind:   models.BalanceKindReelBux,
			Status:        models.PaymentStatusCompleted,
			Amount:        req.Amount,
			Currency:      utils.USDCurrency,
			CustomerID:    customer.ID,
			WalletID:      utils.ToPtr(wallet.ID),
			Description:   "Transfer to ReelBux balance",
			CreatedAt:     utils.UTCNow(),
			UpdatedAt:     utils.UTCNow(),
		}
		if err := w.txRepo.Save(txCtx, creditLeg); err != nil {
			return err
		}

		response = &dto.TransferDistroResponse{
			TransferUUID:   creditLeg.UUID.String(),
			ReelBuxBalance: wallet.ReelBuxBalance,
			DistroBalance:  wallet.DistroBalance,
		}
		return nil
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, w.auditRepo, &customer, models.AuditActionDistroTransfer, fmt.Sprintf("distro transfer of %s failed", req.Amount), false, &errMsg, metadata)
		return nil, NewBusinessError("DISTRO_TRANSFER_FAILED", "Distro transfer failed", err)
	}

	_ = createAuditLog(ctx, w.auditRepo, &customer, models.AuditActionDistroTransfer, fmt.Sprintf("transferred %s from distro to ReelBux", req.Amount), true, nil, metadata)

	return response, nil
}
