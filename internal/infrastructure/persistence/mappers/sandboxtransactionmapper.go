package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"iapgate/internal/domain/purchase"
	"iapgate/internal/infrastructure/persistence/models"
)

// SandboxTransactionMapper converts between ledger entries and models.
type SandboxTransactionMapper interface {
	ToModel(entry *purchase.LedgerEntry) (*models.SandboxTransactionModel, error)
	ToEntity(model *models.SandboxTransactionModel) (*purchase.LedgerEntry, error)
	ToEntities(models []*models.SandboxTransactionModel) ([]*purchase.LedgerEntry, error)
}

type sandboxTransactionMapper struct{}

func NewSandboxTransactionMapper() SandboxTransactionMapper {
	return sandboxTransactionMapper{}
}

func (sandboxTransactionMapper) ToModel(entry *purchase.LedgerEntry) (*models.SandboxTransactionModel, error) {
	if entry == nil {
		return nil, nil
	}

	var metadata datatypes.JSON
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = datatypes.JSON(raw)
	}

	return &models.SandboxTransactionModel{
		TransactionID: entry.TransactionID,
		ProductID:     entry.ProductID,
		Receipt:       entry.Receipt,
		PurchasedAt:   entry.PurchasedAt.UTC(),
		ExpiresAt:     entry.ExpiresAt,
		Finished:      entry.Finished,
		FinishedAt:    entry.FinishedAt,
		Metadata:      metadata,
	}, nil
}

func (sandboxTransactionMapper) ToEntity(model *models.SandboxTransactionModel) (*purchase.LedgerEntry, error) {
	if model == nil {
		return nil, nil
	}

	var metadata map[string]string
	if len(model.Metadata) > 0 {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata of %s: %w", model.TransactionID, err)
		}
	}

	return &purchase.LedgerEntry{
		Transaction: purchase.Transaction{
			TransactionID: model.TransactionID,
			ProductID:     model.ProductID,
			Receipt:       model.Receipt,
			PurchasedAt:   model.PurchasedAt,
		},
		ExpiresAt:  model.ExpiresAt,
		Finished:   model.Finished,
		FinishedAt: model.FinishedAt,
		Metadata:   metadata,
	}, nil
}

func (m sandboxTransactionMapper) ToEntities(list []*models.SandboxTransactionModel) ([]*purchase.LedgerEntry, error) {
	entries := make([]*purchase.LedgerEntry, 0, len(list))
	for _, model := range list {
		entry, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
