package ratings

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyshare/studyshare-backend/pkg/db/models"
)

// Repository exposes rating persistence plus the aggregate query the rating
// recompute relies on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, rating *models.Rating) error
	FindByUserAndContribution(ctx context.Context, userID, contributionID uuid.UUID) (*models.Rating, error)
	Delete(ctx context.Context, userID, contributionID uuid.UUID) (int64, error)
	Average(ctx context.Context, contributionID uuid.UUID) (decimal.NullDecimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ratings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts the rating or, when the (user, contribution) pair already
// rated, overwrites the stored value in place. The unique index is the only
// concurrency guard needed here.
func (r *repository) Upsert(ctx context.Context, rating *models.Rating) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "contribution_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(rating).Error
}

func (r *repository) FindByUserAndContribution(ctx context.Context, userID, contributionID uuid.UUID) (*models.Rating, error) {
	var rating models.Rating
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND contribution_id = ?", userID, contributionID).
		First(&rating).Error
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *repository) Delete(ctx context.Context, userID, contributionID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND contribution_id = ?", userID, contributionID).
		Delete(&models.Rating{})
	return result.RowsAffected, result.Error
}

// Average computes the mean rating value for a contribution straight from the
// rating rows. No rows yields a null decimal.
func (r *repository) Average(ctx context.Context, contributionID uuid.UUID) (decimal.NullDecimal, error) {
	var avg decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Where("contribution_id = ?", contributionID).
		Select("AVG(value)").
		Scan(&avg).Error
	return avg, err
}
