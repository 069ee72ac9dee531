package auth

import (
	"github.com/google/uuid"

	"github.com/studyshare/studyshare-backend/internal/users"
)

// RegisterRequest carries a signup submission.
type RegisterRequest struct {
	Username       string     `json:"username" validate:"required,min=3,max=64"`
	Email          string     `json:"email" validate:"required,email"`
	Password       string     `json:"password" validate:"required,min=8"`
	UniversityID   *uuid.UUID `json:"university_id,omitempty"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	MajorSubjectID *uuid.UUID `json:"major_subject_id,omitempty"`
}

// LoginRequest carries a credential pair. Username also accepts the email.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by login and register.
type TokenResponse struct {
	AccessToken string         `json:"access_token"`
	User        *users.UserDTO `json:"user"`
}
