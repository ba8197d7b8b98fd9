package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-stock-valuation/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ValuationRepository is the append-only valuation history.
type ValuationRepository interface {
	Append(ctx context.Context, record *entity.ValuationRecord) error
	Latest(ctx context.Context, symbol string, market entity.Market) (*entity.ValuationRecord, error)
	History(ctx context.Context, symbol string, market entity.Market, limit int) ([]entity.ValuationRecord, error)
}

type valuationRepository struct {
	db *gorm.DB
}

func NewValuationRepository(db *gorm.DB) ValuationRepository {
	return &valuationRepository{
		db: db,
	}
}

// Append inserts record in its own transaction. The latest row for the symbol is
// locked so two writers cannot interleave, and records must arrive in time order.
func (r *valuationRepository) Append(ctx context.Context, record *entity.ValuationRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest entity.ValuationRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("symbol = ? AND market = ?", record.Symbol, record.Market).
			Order("analysis_date DESC").
			Limit(1).
			Take(&latest).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to read latest valuation: %w", err)
		}
		if err == nil && !record.AnalysisDate.After(latest.AnalysisDate) {
			return fmt.Errorf("%w: %s %s at %s", ErrOutOfOrder, record.Market, record.Symbol, record.AnalysisDate)
		}

		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to insert valuation: %w", err)
		}
		return nil
	})
}

// Latest returns the newest record, or nil when the symbol has never been valued.
func (r *valuationRepository) Latest(ctx context.Context, symbol string, market entity.Market) (*entity.ValuationRecord, error) {
	var record entity.ValuationRecord
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND market = ?", symbol, market).
		Order("analysis_date DESC").
		Limit(1).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *valuationRepository) History(ctx context.Context, symbol string, market entity.Market, limit int) ([]entity.ValuationRecord, error) {
	var records []entity.ValuationRecord
	q := r.db.WithContext(ctx).
		Where("symbol = ? AND market = ?", symbol, market).
		Order("analysis_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
