package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account that can author contributions, enroll, and rate.
type User struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Username       string     `gorm:"column:username;not null;uniqueIndex"`
	Email          string     `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash   string     `gorm:"column:password_hash;not null"`
	UniversityID   *uuid.UUID `gorm:"column:university_id;type:uuid"`
	DepartmentID   *uuid.UUID `gorm:"column:department_id;type:uuid"`
	MajorSubjectID *uuid.UUID `gorm:"column:major_subject_id;type:uuid"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
