package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContributionNote struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ContributionID uuid.UUID `gorm:"column:contribution_id;type:uuid;not null;index"`
	Title          string    `gorm:"column:title"`
	FileURL        string    `gorm:"column:file_url"`
	Position       int       `gorm:"column:position;not null;default:0"`
}

func (n *ContributionNote) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
