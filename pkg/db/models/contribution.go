package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Contribution is a sellable or free bundle of educational content. Rating is
// derived: it always holds the rounded mean of the current rating rows, or
// null when none exist.
type Contribution struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Title          string              `gorm:"column:title;not null"`
	Description    string              `gorm:"column:description"`
	Price          decimal.NullDecimal `gorm:"column:price;type:numeric(10,2)"`
	Rating         decimal.NullDecimal `gorm:"column:rating;type:numeric(3,2)"`
	UniversityID   *uuid.UUID          `gorm:"column:university_id;type:uuid;index"`
	DepartmentID   *uuid.UUID          `gorm:"column:department_id;type:uuid;index"`
	MajorSubjectID *uuid.UUID          `gorm:"column:major_subject_id;type:uuid;index"`
	Tags           []ContributionTag   `gorm:"foreignKey:ContributionID;constraint:OnDelete:CASCADE"`
	Videos         []ContributionVideo `gorm:"foreignKey:ContributionID;constraint:OnDelete:CASCADE"`
	Notes          []ContributionNote  `gorm:"foreignKey:ContributionID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Contribution) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsFree reports whether enrollment requires no payment. A null or zero price
// both mean free.
func (c *Contribution) IsFree() bool {
	return !c.Price.Valid || c.Price.Decimal.IsZero()
}
