package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContributionVideo struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ContributionID uuid.UUID `gorm:"column:contribution_id;type:uuid;not null;index"`
	Title          string    `gorm:"column:title;not null"`
	URL            string    `gorm:"column:url"`
	Position       int       `gorm:"column:position;not null;default:0"`
}

func (v *ContributionVideo) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
