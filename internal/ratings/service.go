package ratings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/studyshare/studyshare-backend/internal/cache"
	"github.com/studyshare/studyshare-backend/internal/catalog"
	"github.com/studyshare/studyshare-backend/pkg/db/models"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

var (
	minRating = decimal.Zero
	maxRating = decimal.NewFromInt(5)
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// enrollmentChecker gates rating submission on a completed enrollment.
type enrollmentChecker interface {
	HasCompletedEnrollment(ctx context.Context, userID, contributionID uuid.UUID) (bool, error)
}

// Service accepts and removes ratings, keeping the contribution's aggregate
// rating in step within the same transaction.
type Service interface {
	Submit(ctx context.Context, userID, contributionID uuid.UUID, value decimal.Decimal) (*RatingDTO, error)
	Delete(ctx context.Context, userID, contributionID uuid.UUID) error
}

type service struct {
	repo          Repository
	contributions catalog.Repository
	enrollments   enrollmentChecker
	tx            txRunner
	invalidator   *cache.Invalidator
	logger        *logger.Logger
}

// ServiceParams bundles the dependencies required to build a rating service.
type ServiceParams struct {
	Repo          Repository
	Contributions catalog.Repository
	Enrollments   enrollmentChecker
	Tx            txRunner
	Invalidator   *cache.Invalidator
	Logger        *logger.Logger
}

// NewService builds a rating service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ratings repository required")
	}
	if params.Contributions == nil {
		return nil, fmt.Errorf("contributions repository required")
	}
	if params.Enrollments == nil {
		return nil, fmt.Errorf("enrollment checker required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Invalidator == nil {
		return nil, fmt.Errorf("cache invalidator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          params.Repo,
		contributions: params.Contributions,
		enrollments:   params.Enrollments,
		tx:            params.Tx,
		invalidator:   params.Invalidator,
		logger:        params.Logger,
	}, nil
}

// Submit records the caller's rating for a contribution, overwriting any
// earlier one, and recomputes the contribution's aggregate in the same
// transaction. Only users with a completed enrollment may rate.
func (s *service) Submit(ctx context.Context, userID, contributionID uuid.UUID, value decimal.Decimal) (*RatingDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if value.LessThan(minRating) || value.GreaterThan(maxRating) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 0 and 5").
			WithDetails(map[string]any{"rating": value.String()})
	}

	if _, err := s.contributions.FindByID(ctx, contributionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contribution not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contribution")
	}

	enrolled, err := s.enrollments.HasCompletedEnrollment(ctx, userID, contributionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check enrollment")
	}
	if !enrolled {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only enrolled users can rate a contribution")
	}

	var saved *models.Rating
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rating := &models.Rating{
			UserID:         userID,
			ContributionID: contributionID,
			Value:          value,
		}
		if err := repo.Upsert(ctx, rating); err != nil {
			return err
		}
		// Re-read so the DTO reflects the surviving row when the upsert hit
		// an existing one.
		row, err := repo.FindByUserAndContribution(ctx, userID, contributionID)
		if err != nil {
			return err
		}
		saved = row
		return s.recompute(ctx, repo, s.contributions.WithTx(tx), contributionID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save rating")
	}

	s.invalidator.OnRatingWrite(ctx, contributionID)
	return FromModel(saved), nil
}

// Delete removes the caller's rating and recomputes the aggregate, setting it
// back to null when no ratings remain.
func (s *service) Delete(ctx context.Context, userID, contributionID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deleted, err := repo.Delete(ctx, userID, contributionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete rating")
		}
		if deleted == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "rating not found")
		}
		return s.recompute(ctx, repo, s.contributions.WithTx(tx), contributionID)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete rating")
	}

	s.invalidator.OnRatingWrite(ctx, contributionID)
	return nil
}

// recompute derives the aggregate purely from the rating rows: mean rounded
// to two decimal places, null when none exist.
func (s *service) recompute(ctx context.Context, repo Repository, contributions catalog.Repository, contributionID uuid.UUID) error {
	avg, err := repo.Average(ctx, contributionID)
	if err != nil {
		return err
	}
	if avg.Valid {
		avg.Decimal = avg.Decimal.Round(2)
	}
	return contributions.UpdateRating(ctx, contributionID, avg)
}
