package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContributionTag struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ContributionID uuid.UUID `gorm:"column:contribution_id;type:uuid;not null;index"`
	Name           string    `gorm:"column:name;not null"`
}

func (t *ContributionTag) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
