package ratings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/studyshare/studyshare-backend/pkg/db/models"
)

// RatingDTO is the transport shape for rating reads.
type RatingDTO struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	ContributionID uuid.UUID       `json:"contribution_id"`
	Value          decimal.Decimal `json:"rating"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func FromModel(m *models.Rating) *RatingDTO {
	if m == nil {
		return nil
	}
	return &RatingDTO{
		ID:             m.ID,
		UserID:         m.UserID,
		ContributionID: m.ContributionID,
		Value:          m.Value,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// SubmitRatingRequest is the body for rating submissions. The value range is
// checked in the service so the caller gets a field-level message.
type SubmitRatingRequest struct {
	Rating decimal.Decimal `json:"rating" validate:"required"`
}
