package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rating is a single user's score for a contribution, 0 to 5. A user rates a
// contribution at most once; re-submission overwrites the value in place.
type Rating struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_ratings_user_contribution"`
	ContributionID uuid.UUID       `gorm:"column:contribution_id;type:uuid;not null;uniqueIndex:idx_ratings_user_contribution"`
	Value          decimal.Decimal `gorm:"column:value;type:numeric(2,1);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Rating) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
