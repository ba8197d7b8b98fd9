package repository

import (
	"context"
	"fmt"
	"strings"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, transaction *entity.Transaction) error
	Get(ctx context.Context, param dto.GetTransactionsParam) ([]entity.Transaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{
		db: db,
	}
}

func (r *transactionRepository) Create(ctx context.Context, transaction *entity.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *transactionRepository) Get(ctx context.Context, param dto.GetTransactionsParam) ([]entity.Transaction, error) {
	var transactions []entity.Transaction

	if param.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	qFilter := []string{"user_id = ?"}
	qFilterParam := []interface{}{param.UserID}

	if param.Symbol != nil {
		qFilter = append(qFilter, "symbol = ?")
		qFilterParam = append(qFilterParam, *param.Symbol)
	}

	if param.Market != nil {
		qFilter = append(qFilter, "market = ?")
		qFilterParam = append(qFilterParam, *param.Market)
	}

	if err := r.db.WithContext(ctx).
		Where(strings.Join(qFilter, " AND "), qFilterParam...).
		Order("trade_date ASC, id ASC").
		Find(&transactions).Error; err != nil {
		return nil, err
	}

	return transactions, nil
}
