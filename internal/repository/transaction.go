package repository

import (
	"context"

	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	GetByID(ctx context.Context, id string) (*entity.Transaction, error)
	GetByHash(ctx context.Context, network, txHash string) (*entity.Transaction, error)
	GetPendingByTicketID(ctx context.Context, ticketID string) ([]entity.Transaction, error)
	GetListByUser(ctx context.Context, address string) ([]entity.Transaction, error)

	// UpdateStatus moves a transaction from one status to another. It returns
	// gorm.ErrRecordNotFound if the transaction is not in the from status.
	UpdateStatus(ctx context.Context, id string, from, to entity.TransactionStatus) error
}

type transactionRepository struct{}

func NewTransactionRepository() *transactionRepository {
	return &transactionRepository{}
}

func (r *transactionRepository) Create(ctx context.Context, tx *entity.Transaction) error {
	return xcontext.DB(ctx).Create(tx).Error
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*entity.Transaction, error) {
	var result entity.Transaction
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *transactionRepository) GetByHash(ctx context.Context, network, txHash string) (*entity.Transaction, error) {
	var result entity.Transaction
	err := xcontext.DB(ctx).
		Where("network=? AND transaction_hash=? AND type=?", network, txHash, entity.TransactionPurchase).
		Order("created_at DESC").
		Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *transactionRepository) GetPendingByTicketID(ctx context.Context, ticketID string) ([]entity.Transaction, error) {
	var result []entity.Transaction
	err := xcontext.DB(ctx).
		Find(&result, "ticket_id=? AND status=?", ticketID, entity.TransactionPending).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *transactionRepository) GetListByUser(ctx context.Context, address string) ([]entity.Transaction, error) {
	var result []entity.Transaction
	err := xcontext.DB(ctx).Where("user_address=?", address).
		Order("created_at DESC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *transactionRepository) UpdateStatus(
	ctx context.Context, id string, from, to entity.TransactionStatus,
) error {
	tx := xcontext.DB(ctx).Model(&entity.Transaction{}).
		Where("id=? AND status=?", id, from).
		Update("status", to)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
