package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/studyshare/studyshare-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	UniversityID   *uuid.UUID `json:"university_id,omitempty"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	MajorSubjectID *uuid.UUID `json:"major_subject_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username       string
	Email          string
	PasswordHash   string
	UniversityID   *uuid.UUID
	DepartmentID   *uuid.UUID
	MajorSubjectID *uuid.UUID
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		UniversityID:   u.UniversityID,
		DepartmentID:   u.DepartmentID,
		MajorSubjectID: u.MajorSubjectID,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Username:       c.Username,
		Email:          c.Email,
		PasswordHash:   c.PasswordHash,
		UniversityID:   c.UniversityID,
		DepartmentID:   c.DepartmentID,
		MajorSubjectID: c.MajorSubjectID,
	}
}
