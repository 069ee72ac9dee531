package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/studyshare/studyshare-backend/pkg/enums"
)

// Enrollment records a user's access grant to a contribution and carries the
// payment lifecycle state. The (user, contribution) pair is unique at the
// storage layer; concurrent enrollment attempts race on that index, not on
// application locks.
type Enrollment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_enrollments_user_contribution"`
	ContributionID   uuid.UUID           `gorm:"column:contribution_id;type:uuid;not null;uniqueIndex:idx_enrollments_user_contribution"`
	AmountPaid       decimal.Decimal     `gorm:"column:amount_paid;type:numeric(10,2);not null"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;not null;default:PENDING"`
	PaymentReference *string             `gorm:"column:payment_reference"`
	PaymentMethod    *string             `gorm:"column:payment_method"`
	EnrolledAt       time.Time           `gorm:"column:enrolled_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *Enrollment) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
