package enrollments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyshare/studyshare-backend/pkg/db/models"
	"github.com/studyshare/studyshare-backend/pkg/enums"
)

// Repository exposes enrollment persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Save(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Enrollment, error)
	FindByUserAndContribution(ctx context.Context, userID, contributionID uuid.UUID) (*models.Enrollment, error)
	ListCompletedByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)
	ListCompletedByContribution(ctx context.Context, contributionID uuid.UUID) ([]models.Enrollment, error)
	HasCompletedEnrollment(ctx context.Context, userID, contributionID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an enrollments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Create(enrollment).Error
}

func (r *repository) Save(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Save(enrollment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).First(&enrollment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *repository) FindByUserAndContribution(ctx context.Context, userID, contributionID uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND contribution_id = ?", userID, contributionID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *repository) ListCompletedByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	var rows []models.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND payment_status = ?", userID, enums.PaymentStatusCompleted).
		Order("enrolled_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListCompletedByContribution(ctx context.Context, contributionID uuid.UUID) ([]models.Enrollment, error) {
	var rows []models.Enrollment
	err := r.db.WithContext(ctx).
		Where("contribution_id = ? AND payment_status = ?", contributionID, enums.PaymentStatusCompleted).
		Order("enrolled_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) HasCompletedEnrollment(ctx context.Context, userID, contributionID uuid.UUID) (bool, error) {
	_, err := r.findWithStatus(ctx, userID, contributionID, enums.PaymentStatusCompleted)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) findWithStatus(ctx context.Context, userID, contributionID uuid.UUID, status enums.PaymentStatus) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND contribution_id = ? AND payment_status = ?", userID, contributionID, status).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}
