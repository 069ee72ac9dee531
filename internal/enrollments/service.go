package enrollments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/studyshare/studyshare-backend/internal/cache"
	"github.com/studyshare/studyshare-backend/pkg/config"
	"github.com/studyshare/studyshare-backend/pkg/db"
	"github.com/studyshare/studyshare-backend/pkg/db/models"
	"github.com/studyshare/studyshare-backend/pkg/enums"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
	"github.com/studyshare/studyshare-backend/pkg/sslcommerz"
)

const (
	// FreeEnrollmentReference marks rows completed without a payment.
	FreeEnrollmentReference = "FREE_ENROLLMENT"
	// SandboxReferencePrefix marks rows auto-completed in sandbox mode.
	SandboxReferencePrefix = "SANDBOX_"

	methodFree       = "FREE"
	methodSandbox    = "SANDBOX"
	methodSSLCommerz = "SSLCOMMERZ"

	enrollmentsUniqueConstraint = "idx_enrollments_user_contribution"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// contributionLoader resolves the contribution an enrollment targets.
type contributionLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
}

// Service drives the enrollment payment lifecycle.
type Service interface {
	RequestEnrollment(ctx context.Context, userID, contributionID uuid.UUID) (*RequestResult, error)
	HandlePaymentSuccess(ctx context.Context, enrollmentID uuid.UUID, validationID string) (*EnrollmentDTO, error)
	HandlePaymentFail(ctx context.Context, enrollmentID uuid.UUID) (*EnrollmentDTO, error)
	HandlePaymentCancel(ctx context.Context, enrollmentID uuid.UUID) (*EnrollmentDTO, error)
	ListUserEnrollments(ctx context.Context, userID uuid.UUID) ([]EnrollmentDTO, error)
	GetEnrollment(ctx context.Context, userID, enrollmentID uuid.UUID) (*EnrollmentDTO, error)
}

type service struct {
	repo          Repository
	contributions contributionLoader
	tx            txRunner
	gateway       sslcommerz.Gateway
	invalidator   *cache.Invalidator
	store         cache.Store
	cacheCfg      config.CacheConfig
	gatewayCfg    config.SSLCommerzConfig
	logger        *logger.Logger
}

// ServiceParams bundles the dependencies required to build an enrollment service.
type ServiceParams struct {
	Repo          Repository
	Contributions contributionLoader
	Tx            txRunner
	Gateway       sslcommerz.Gateway
	Invalidator   *cache.Invalidator
	Store         cache.Store
	CacheConfig   config.CacheConfig
	GatewayConfig config.SSLCommerzConfig
	Logger        *logger.Logger
}

// NewService builds an enrollment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("enrollments repository required")
	}
	if params.Contributions == nil {
		return nil, fmt.Errorf("contribution loader required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Invalidator == nil {
		return nil, fmt.Errorf("cache invalidator required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          params.Repo,
		contributions: params.Contributions,
		tx:            params.Tx,
		gateway:       params.Gateway,
		invalidator:   params.Invalidator,
		store:         params.Store,
		cacheCfg:      params.CacheConfig,
		gatewayCfg:    params.GatewayConfig,
		logger:        params.Logger,
	}, nil
}

// RequestEnrollment creates or revives the caller's enrollment for a
// contribution. Free contributions complete immediately; paid ones open a
// gateway session keyed by the enrollment id.
func (s *service) RequestEnrollment(ctx context.Context, userID, contributionID uuid.UUID) (*RequestResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	contribution, err := s.contributions.FindByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contribution not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contribution")
	}
	if contribution.UserID == userID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot enroll in own contribution")
	}

	enrollment, err := s.repo.FindByUserAndContribution(ctx, userID, contributionID)
	switch {
	case err == nil:
		return s.resumeExisting(ctx, contribution, enrollment)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.createNew(ctx, contribution, userID)
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load enrollment")
	}
}

func (s *service) resumeExisting(ctx context.Context, contribution *models.Contribution, enrollment *models.Enrollment) (*RequestResult, error) {
	if enrollment.PaymentStatus == enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyEnrolled, "already enrolled")
	}

	// A contribution that went free since the first attempt completes the
	// row outright, whatever state it was left in.
	if contribution.IsFree() {
		return s.completeFree(ctx, enrollment)
	}

	// Failed and cancelled attempts revive in place; either way the row is
	// refreshed to the contribution's current price before opening a session.
	enrollment.PaymentStatus = enums.PaymentStatusPending
	enrollment.PaymentReference = nil
	enrollment.PaymentMethod = nil
	enrollment.AmountPaid = contribution.Price.Decimal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Save(ctx, enrollment)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revive enrollment")
	}
	s.invalidator.OnEnrollmentWrite(ctx, enrollment.UserID, enrollment.ContributionID)

	return s.openSession(ctx, contribution, enrollment)
}

func (s *service) completeFree(ctx context.Context, enrollment *models.Enrollment) (*RequestResult, error) {
	reference := FreeEnrollmentReference
	method := methodFree
	enrollment.PaymentStatus = enums.PaymentStatusCompleted
	enrollment.PaymentReference = &reference
	enrollment.PaymentMethod = &method
	enrollment.AmountPaid = decimal.Zero

	if err := s.saveAndInvalidate(ctx, enrollment); err != nil {
		return nil, err
	}
	return &RequestResult{Enrollment: FromModel(enrollment)}, nil
}

func (s *service) createNew(ctx context.Context, contribution *models.Contribution, userID uuid.UUID) (*RequestResult, error) {
	enrollment := &models.Enrollment{
		UserID:         userID,
		ContributionID: contribution.ID,
		AmountPaid:     decimal.Zero,
		PaymentStatus:  enums.PaymentStatusPending,
	}
	if contribution.IsFree() {
		reference := FreeEnrollmentReference
		method := methodFree
		enrollment.PaymentStatus = enums.PaymentStatusCompleted
		enrollment.PaymentReference = &reference
		enrollment.PaymentMethod = &method
	} else {
		enrollment.AmountPaid = contribution.Price.Decimal
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, enrollment)
	})
	if err != nil {
		if db.IsUniqueViolation(err, enrollmentsUniqueConstraint) {
			// Lost a concurrent race: pick up the row the winner created.
			existing, findErr := s.repo.FindByUserAndContribution(ctx, userID, contribution.ID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load racing enrollment")
			}
			return s.resumeExisting(ctx, contribution, existing)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create enrollment")
	}

	s.invalidator.OnEnrollmentWrite(ctx, userID, contribution.ID)

	if contribution.IsFree() {
		return &RequestResult{Enrollment: FromModel(enrollment)}, nil
	}
	return s.openSession(ctx, contribution, enrollment)
}

func (s *service) openSession(ctx context.Context, contribution *models.Contribution, enrollment *models.Enrollment) (*RequestResult, error) {
	session, err := s.gateway.CreateSession(ctx, sslcommerz.PaymentData{
		TransactionID:   enrollment.ID.String(),
		Amount:          enrollment.AmountPaid,
		Currency:        s.gatewayCfg.Currency,
		SuccessURL:      s.callbackURL("success", enrollment.ID),
		FailURL:         s.callbackURL("fail", enrollment.ID),
		CancelURL:       s.callbackURL("cancel", enrollment.ID),
		ProductName:     contribution.Title,
		ProductCategory: "education",
	})
	if err != nil {
		// The pending row stays; the caller can retry and reuse it.
		return nil, err
	}
	return &RequestResult{
		Enrollment: FromModel(enrollment),
		PaymentURL: session.GatewayPageURL,
	}, nil
}

// HandlePaymentSuccess completes a pending enrollment. In sandbox mode the
// row auto-completes with a sandbox reference; in production the gateway must
// validate the transaction first. Completed rows are returned unchanged, so
// replayed callbacks are harmless.
func (s *service) HandlePaymentSuccess(ctx context.Context, enrollmentID uuid.UUID, validationID string) (*EnrollmentDTO, error) {
	enrollment, err := s.loadForCallback(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.PaymentStatus.IsTerminalSuccess() {
		return FromModel(enrollment), nil
	}

	var reference, method string
	if s.gatewayCfg.Sandbox {
		reference = SandboxReferencePrefix + enrollment.ID.String()
		method = methodSandbox
	} else {
		if strings.TrimSpace(validationID) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation id is required")
		}
		validation, err := s.gateway.ValidateTransaction(ctx, validationID)
		if err != nil {
			// Could not reach a verdict; leave the row untouched.
			return nil, err
		}
		if !validation.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeGateway, "payment could not be verified").
				WithDetails(map[string]any{"status": validation.Status})
		}
		reference = validationID
		method = methodSSLCommerz
	}

	enrollment.PaymentStatus = enums.PaymentStatusCompleted
	enrollment.PaymentReference = &reference
	enrollment.PaymentMethod = &method

	if err := s.saveAndInvalidate(ctx, enrollment); err != nil {
		return nil, err
	}
	return FromModel(enrollment), nil
}

// HandlePaymentFail marks a pending enrollment failed. Completed rows ignore
// the callback.
func (s *service) HandlePaymentFail(ctx context.Context, enrollmentID uuid.UUID) (*EnrollmentDTO, error) {
	return s.transitionTerminal(ctx, enrollmentID, enums.PaymentStatusFailed)
}

// HandlePaymentCancel marks a pending enrollment cancelled. Completed rows
// ignore the callback.
func (s *service) HandlePaymentCancel(ctx context.Context, enrollmentID uuid.UUID) (*EnrollmentDTO, error) {
	return s.transitionTerminal(ctx, enrollmentID, enums.PaymentStatusCancelled)
}

func (s *service) transitionTerminal(ctx context.Context, enrollmentID uuid.UUID, status enums.PaymentStatus) (*EnrollmentDTO, error) {
	enrollment, err := s.loadForCallback(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.PaymentStatus.IsTerminalSuccess() {
		return FromModel(enrollment), nil
	}
	if enrollment.PaymentStatus == status {
		return FromModel(enrollment), nil
	}

	enrollment.PaymentStatus = status
	if err := s.saveAndInvalidate(ctx, enrollment); err != nil {
		return nil, err
	}
	return FromModel(enrollment), nil
}

// ListUserEnrollments returns the caller's completed enrollments, cached
// under the user's enrollment key.
func (s *service) ListUserEnrollments(ctx context.Context, userID uuid.UUID) ([]EnrollmentDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	key := cache.UserEnrollmentsKey(userID)
	if cached, found, err := s.store.Get(ctx, key); err == nil && found {
		var dtos []EnrollmentDTO
		if err := json.Unmarshal([]byte(cached), &dtos); err == nil {
			return dtos, nil
		}
		_ = s.store.Del(ctx, key)
	} else if err != nil {
		s.logger.Error(ctx, "cache read failed, falling through", err)
	}

	rows, err := s.repo.ListCompletedByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list enrollments")
	}

	dtos := make([]EnrollmentDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}

	if encoded, err := json.Marshal(dtos); err == nil {
		if err := s.store.Set(ctx, key, string(encoded), s.cacheCfg.ListTTL); err != nil {
			s.logger.Error(ctx, "cache write failed", err)
		}
	}
	return dtos, nil
}

// GetEnrollment returns one enrollment of any status, but only to its owner.
func (s *service) GetEnrollment(ctx context.Context, userID, enrollmentID uuid.UUID) (*EnrollmentDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	enrollment, err := s.loadForCallback(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "enrollment not found")
	}
	return FromModel(enrollment), nil
}

func (s *service) loadForCallback(ctx context.Context, enrollmentID uuid.UUID) (*models.Enrollment, error) {
	if enrollmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enrollment id required")
	}
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "enrollment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load enrollment")
	}
	return enrollment, nil
}

func (s *service) saveAndInvalidate(ctx context.Context, enrollment *models.Enrollment) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Save(ctx, enrollment)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save enrollment")
	}
	s.invalidator.OnEnrollmentWrite(ctx, enrollment.UserID, enrollment.ContributionID)
	return nil
}

func (s *service) callbackURL(outcome string, enrollmentID uuid.UUID) string {
	base := strings.TrimRight(s.gatewayCfg.CallbackBaseURL, "/")
	return fmt.Sprintf("%s/api/payment/%s/%s/", base, outcome, enrollmentID)
}
