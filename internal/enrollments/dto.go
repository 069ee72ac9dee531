package enrollments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/studyshare/studyshare-backend/pkg/db/models"
	"github.com/studyshare/studyshare-backend/pkg/enums"
)

// EnrollmentDTO is the transport shape for enrollment reads.
type EnrollmentDTO struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"user_id"`
	ContributionID   uuid.UUID           `json:"contribution_id"`
	AmountPaid       decimal.Decimal     `json:"amount_paid"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	PaymentReference *string             `json:"payment_reference,omitempty"`
	PaymentMethod    *string             `json:"payment_method,omitempty"`
	EnrolledAt       time.Time           `json:"enrolled_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func FromModel(m *models.Enrollment) *EnrollmentDTO {
	if m == nil {
		return nil
	}
	return &EnrollmentDTO{
		ID:               m.ID,
		UserID:           m.UserID,
		ContributionID:   m.ContributionID,
		AmountPaid:       m.AmountPaid,
		PaymentStatus:    m.PaymentStatus,
		PaymentReference: m.PaymentReference,
		PaymentMethod:    m.PaymentMethod,
		EnrolledAt:       m.EnrolledAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// RequestResult is what an enrollment request returns. PaymentURL is set only
// when the caller must finish checkout at the gateway.
type RequestResult struct {
	Enrollment *EnrollmentDTO `json:"enrollment"`
	PaymentURL string         `json:"payment_url,omitempty"`
}
