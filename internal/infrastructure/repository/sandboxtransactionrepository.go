package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"iapgate/internal/domain/purchase"
	"iapgate/internal/infrastructure/persistence/mappers"
	"iapgate/internal/infrastructure/persistence/models"
	"iapgate/internal/shared/db"
	"iapgate/internal/shared/logger"
)

type SandboxTransactionRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.SandboxTransactionMapper
	logger logger.Interface
}

func NewSandboxTransactionRepository(database *gorm.DB, logger logger.Interface) purchase.LedgerRepository {
	return &SandboxTransactionRepositoryImpl{
		db:     database,
		mapper: mappers.NewSandboxTransactionMapper(),
		logger: logger,
	}
}

func (r *SandboxTransactionRepositoryImpl) Create(ctx context.Context, entry *purchase.LedgerEntry) error {
	model, err := r.mapper.ToModel(entry)
	if err != nil {
		r.logger.Errorw("failed to map ledger entry to model", "error", err)
		return fmt.Errorf("failed to map ledger entry: %w", err)
	}

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create sandbox transaction", "transaction_id", entry.TransactionID, "error", err)
		return fmt.Errorf("failed to create sandbox transaction: %w", err)
	}

	r.logger.Infow("sandbox transaction recorded",
		"transaction_id", model.TransactionID,
		"product_id", model.ProductID,
	)
	return nil
}

func (r *SandboxTransactionRepositoryImpl) History(ctx context.Context) ([]*purchase.LedgerEntry, error) {
	var list []*models.SandboxTransactionModel

	if err := db.GetTxFromContext(ctx, r.db).Scopes(db.PurchaseOrder()).Find(&list).Error; err != nil {
		r.logger.Errorw("failed to list sandbox transactions", "error", err)
		return nil, fmt.Errorf("failed to list sandbox transactions: %w", err)
	}

	return r.mapper.ToEntities(list)
}

func (r *SandboxTransactionRepositoryImpl) FindByReceipt(ctx context.Context, receipt string) (*purchase.LedgerEntry, error) {
	var model models.SandboxTransactionModel

	if err := db.GetTxFromContext(ctx, r.db).Where("receipt = ?", receipt).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchase.ErrLedgerEntryNotFound
		}
		r.logger.Errorw("failed to get sandbox transaction by receipt", "error", err)
		return nil, fmt.Errorf("failed to get sandbox transaction: %w", err)
	}

	return r.mapper.ToEntity(&model)
}

func (r *SandboxTransactionRepositoryImpl) FindByTransactionID(ctx context.Context, transactionID string) (*purchase.LedgerEntry, error) {
	var model models.SandboxTransactionModel

	if err := db.GetTxFromContext(ctx, r.db).Where("transaction_id = ?", transactionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchase.ErrLedgerEntryNotFound
		}
		r.logger.Errorw("failed to get sandbox transaction", "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("failed to get sandbox transaction: %w", err)
	}

	return r.mapper.ToEntity(&model)
}

func (r *SandboxTransactionRepositoryImpl) MarkFinished(ctx context.Context, transactionID string, at time.Time) error {
	finishedAt := at.UTC()
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.SandboxTransactionModel{}).
		Where("transaction_id = ?", transactionID).
		Updates(map[string]any{
			"finished":    true,
			"finished_at": finishedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to finish sandbox transaction", "transaction_id", transactionID, "error", result.Error)
		return fmt.Errorf("failed to finish sandbox transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return purchase.ErrLedgerEntryNotFound
	}

	r.logger.Debugw("sandbox transaction finished", "transaction_id", transactionID)
	return nil
}

func (r *SandboxTransactionRepositoryImpl) ListUnfinished(ctx context.Context) ([]*purchase.LedgerEntry, error) {
	var list []*models.SandboxTransactionModel

	if err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.Unfinished(), db.PurchaseOrder()).
		Find(&list).Error; err != nil {
		r.logger.Errorw("failed to list unfinished sandbox transactions", "error", err)
		return nil, fmt.Errorf("failed to list unfinished sandbox transactions: %w", err)
	}

	return r.mapper.ToEntities(list)
}

func (r *SandboxTransactionRepositoryImpl) Delete(ctx context.Context, transactionID string) error {
	result := db.GetTxFromContext(ctx, r.db).
		Where("transaction_id = ?", transactionID).
		Delete(&models.SandboxTransactionModel{})
	if result.Error != nil {
		r.logger.Errorw("failed to delete sandbox transaction", "transaction_id", transactionID, "error", result.Error)
		return fmt.Errorf("failed to delete sandbox transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return purchase.ErrLedgerEntryNotFound
	}

	r.logger.Infow("sandbox transaction deleted", "transaction_id", transactionID)
	return nil
}
