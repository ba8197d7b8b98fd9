package repository

import (
	"context"

	"golang-stock-valuation/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertSnapshotRepository stores the last state the alert policy evaluated per user.
type AlertSnapshotRepository interface {
	GetByUser(ctx context.Context, userID string) ([]entity.AlertSnapshot, error)
	// Replace upserts rows and removes the user's rows whose market:symbol key is not in keep.
	Replace(ctx context.Context, userID string, rows []entity.AlertSnapshot, keep []string) error
}

type alertSnapshotRepository struct {
	db *gorm.DB
}

func NewAlertSnapshotRepository(db *gorm.DB) AlertSnapshotRepository {
	return &alertSnapshotRepository{
		db: db,
	}
}

func (r *alertSnapshotRepository) GetByUser(ctx context.Context, userID string) ([]entity.AlertSnapshot, error) {
	var rows []entity.AlertSnapshot
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *alertSnapshotRepository) Replace(ctx context.Context, userID string, rows []entity.AlertSnapshot, keep []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("user_id = ?", userID)
		if len(keep) > 0 {
			del = del.Where("CONCAT(market, ':', symbol) NOT IN ?", keep)
		}
		if err := del.Delete(&entity.AlertSnapshot{}).Error; err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "market"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"price", "pnl_percent", "margin_of_safety", "updated_at"}),
		}).Create(&rows).Error
	})
}
