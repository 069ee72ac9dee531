package enrollments

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
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

type fakeGateway struct {
	sessionCalls    []sslcommerz.PaymentData
	sessionResponse *sslcommerz.SessionResponse
	sessionErr      error

	validateCalls []string
	validation    *sslcommerz.ValidationResponse
	validationErr error
}

func (g *fakeGateway) CreateSession(_ context.Context, data sslcommerz.PaymentData) (*sslcommerz.SessionResponse, error) {
	g.sessionCalls = append(g.sessionCalls, data)
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	if g.sessionResponse != nil {
		return g.sessionResponse, nil
	}
	return &sslcommerz.SessionResponse{
		Status:         sslcommerz.SessionStatusSuccess,
		SessionKey:     "fake-session",
		GatewayPageURL: "https://sandbox.sslcommerz.example/pay/fake-session",
	}, nil
}

func (g *fakeGateway) ValidateTransaction(_ context.Context, validationID string) (*sslcommerz.ValidationResponse, error) {
	g.validateCalls = append(g.validateCalls, validationID)
	if g.validationErr != nil {
		return nil, g.validationErr
	}
	if g.validation != nil {
		return g.validation, nil
	}
	return &sslcommerz.ValidationResponse{Status: "VALID", ValidationID: validationID}, nil
}

type fakeContributionLoader struct {
	items map[uuid.UUID]*models.Contribution
}

func (l *fakeContributionLoader) FindByID(_ context.Context, id uuid.UUID) (*models.Contribution, error) {
	contribution, ok := l.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return contribution, nil
}

type enrollmentTestEnv struct {
	conn    *gorm.DB
	svc     Service
	gateway *fakeGateway
	loader  *fakeContributionLoader
	store   *cache.MemoryStore
}

func setupEnrollmentService(t *testing.T, sandbox bool) enrollmentTestEnv {
	t.Helper()

	conn := setupEnrollmentsTestDB(t)
	store := cache.NewMemoryStore()
	logg := logger.New(logger.Options{ServiceName: "enrollments-test", Level: zerolog.ErrorLevel})

	invalidator, err := cache.NewInvalidator(store, logg)
	require.NoError(t, err)

	gateway := &fakeGateway{}
	loader := &fakeContributionLoader{items: map[uuid.UUID]*models.Contribution{}}

	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		Contributions: loader,
		Tx:            db.NewWithConn(conn),
		Gateway:       gateway,
		Invalidator:   invalidator,
		Store:         store,
		CacheConfig:   config.CacheConfig{ListTTL: time.Minute, DetailTTL: 5 * time.Minute},
		GatewayConfig: config.SSLCommerzConfig{
			StoreID:         "teststore",
			StorePassword:   "testpass",
			Sandbox:         sandbox,
			CallbackBaseURL: "https://studyshare.example.com",
			Currency:        "BDT",
		},
		Logger: logg,
	})
	require.NoError(t, err)

	return enrollmentTestEnv{conn: conn, svc: svc, gateway: gateway, loader: loader, store: store}
}

func (env enrollmentTestEnv) addContribution(ownerID uuid.UUID, price string) *models.Contribution {
	contribution := &models.Contribution{
		ID:     uuid.New(),
		UserID: ownerID,
		Title:  "signal processing notes",
	}
	if price != "" {
		contribution.Price = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	env.loader.items[contribution.ID] = contribution
	return contribution
}

func (env enrollmentTestEnv) reload(t *testing.T, id uuid.UUID) *models.Enrollment {
	t.Helper()
	var row models.Enrollment
	require.NoError(t, env.conn.First(&row, "id = ?", id).Error)
	return &row
}

func TestRequestEnrollmentFreeCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "")
	userID := uuid.New()

	result, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Empty(t, result.PaymentURL, "free enrollments never touch the gateway")
	require.Empty(t, env.gateway.sessionCalls)

	require.Equal(t, enums.PaymentStatusCompleted, result.Enrollment.PaymentStatus)
	require.NotNil(t, result.Enrollment.PaymentReference)
	require.Equal(t, FreeEnrollmentReference, *result.Enrollment.PaymentReference)
	require.NotNil(t, result.Enrollment.PaymentMethod)
	require.Equal(t, "FREE", *result.Enrollment.PaymentMethod)

	row := env.reload(t, result.Enrollment.ID)
	require.Equal(t, enums.PaymentStatusCompleted, row.PaymentStatus)
}

func TestRequestEnrollmentPaidOpensGatewaySession(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "150.00")
	userID := uuid.New()

	result, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, result.Enrollment.PaymentStatus)
	require.Equal(t, "https://sandbox.sslcommerz.example/pay/fake-session", result.PaymentURL)

	require.Len(t, env.gateway.sessionCalls, 1)
	call := env.gateway.sessionCalls[0]
	require.Equal(t, result.Enrollment.ID.String(), call.TransactionID, "transaction id is the enrollment id")
	require.True(t, call.Amount.Equal(decimal.RequireFromString("150.00")))
	require.Equal(t, "BDT", call.Currency)
	require.Equal(t,
		fmt.Sprintf("https://studyshare.example.com/api/payment/success/%s/", result.Enrollment.ID),
		call.SuccessURL)
	require.Equal(t,
		fmt.Sprintf("https://studyshare.example.com/api/payment/fail/%s/", result.Enrollment.ID),
		call.FailURL)
	require.Equal(t,
		fmt.Sprintf("https://studyshare.example.com/api/payment/cancel/%s/", result.Enrollment.ID),
		call.CancelURL)

	row := env.reload(t, result.Enrollment.ID)
	require.Equal(t, enums.PaymentStatusPending, row.PaymentStatus)
	require.True(t, row.AmountPaid.Equal(decimal.RequireFromString("150.00")))
}

func TestRequestEnrollmentOwnerRejected(t *testing.T) {
	env := setupEnrollmentService(t, true)
	ownerID := uuid.New()
	contribution := env.addContribution(ownerID, "99.00")

	_, err := env.svc.RequestEnrollment(context.Background(), ownerID, contribution.ID)
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeValidation, domainErr.Code())
}

func TestRequestEnrollmentContributionNotFound(t *testing.T) {
	env := setupEnrollmentService(t, true)

	_, err := env.svc.RequestEnrollment(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeNotFound, domainErr.Code())
}

func TestRequestEnrollmentAlreadyCompletedRejected(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "99.00")
	userID := uuid.New()

	seedEnrollment(t, env.conn, userID, contribution.ID, enums.PaymentStatusCompleted, time.Now())

	_, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeAlreadyEnrolled, domainErr.Code())
	require.Equal(t, http.StatusBadRequest, pkgerrors.MetadataFor(domainErr.Code()).HTTPStatus,
		"duplicate enrollment is a plain bad request on the wire")
	require.Empty(t, env.gateway.sessionCalls)
}

func TestRequestEnrollmentReusesPendingRow(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "99.00")
	userID := uuid.New()

	first, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)

	second, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Equal(t, first.Enrollment.ID, second.Enrollment.ID, "retries reuse the pending row")
	require.NotEmpty(t, second.PaymentURL)

	var count int64
	require.NoError(t, env.conn.Model(&models.Enrollment{}).
		Where("user_id = ?", userID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRequestEnrollmentRevivesFailedAttempt(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "99.00")
	userID := uuid.New()

	reference := "VAL123"
	method := "SSLCOMMERZ"
	stale := &models.Enrollment{
		UserID:           userID,
		ContributionID:   contribution.ID,
		AmountPaid:       decimal.RequireFromString("99.00"),
		PaymentStatus:    enums.PaymentStatusFailed,
		PaymentReference: &reference,
		PaymentMethod:    &method,
	}
	require.NoError(t, env.conn.Create(stale).Error)

	result, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Equal(t, stale.ID, result.Enrollment.ID, "failed attempts revive in place")
	require.Equal(t, enums.PaymentStatusPending, result.Enrollment.PaymentStatus)
	require.Nil(t, result.Enrollment.PaymentReference)
	require.Nil(t, result.Enrollment.PaymentMethod)
	require.NotEmpty(t, result.PaymentURL)

	row := env.reload(t, stale.ID)
	require.Equal(t, enums.PaymentStatusPending, row.PaymentStatus)
	require.Nil(t, row.PaymentReference)
}

func TestRequestEnrollmentFailedRowCompletesWhenContributionGoesFree(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "100.00")
	userID := uuid.New()

	first, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Len(t, env.gateway.sessionCalls, 1)

	_, err = env.svc.HandlePaymentFail(ctx, first.Enrollment.ID)
	require.NoError(t, err)

	// The owner drops the price to free before the user tries again.
	contribution.Price = decimal.NullDecimal{}

	result, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Len(t, env.gateway.sessionCalls, 1, "free contribution must not contact the gateway")
	require.Equal(t, first.Enrollment.ID, result.Enrollment.ID)
	require.Empty(t, result.PaymentURL)
	require.Equal(t, enums.PaymentStatusCompleted, result.Enrollment.PaymentStatus)
	require.NotNil(t, result.Enrollment.PaymentReference)
	require.Equal(t, FreeEnrollmentReference, *result.Enrollment.PaymentReference)

	row := env.reload(t, first.Enrollment.ID)
	require.Equal(t, enums.PaymentStatusCompleted, row.PaymentStatus)
	require.True(t, row.AmountPaid.IsZero(), "nothing is owed for a now-free contribution")
}

func TestRequestEnrollmentPendingRowCompletesWhenContributionGoesFree(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "100.00")
	userID := uuid.New()

	_, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Len(t, env.gateway.sessionCalls, 1)

	contribution.Price = decimal.NullDecimal{}

	result, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Len(t, env.gateway.sessionCalls, 1, "free contribution must not contact the gateway")
	require.Equal(t, enums.PaymentStatusCompleted, result.Enrollment.PaymentStatus)
	require.Equal(t, FreeEnrollmentReference, *result.Enrollment.PaymentReference)
	require.Equal(t, "FREE", *result.Enrollment.PaymentMethod)
}

func TestRequestEnrollmentRevivesAtCurrentPrice(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "99.00")
	userID := uuid.New()

	first, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)

	_, err = env.svc.HandlePaymentCancel(ctx, first.Enrollment.ID)
	require.NoError(t, err)

	contribution.Price = decimal.NewNullDecimal(decimal.RequireFromString("150.00"))

	result, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Equal(t, first.Enrollment.ID, result.Enrollment.ID)
	require.Equal(t, enums.PaymentStatusPending, result.Enrollment.PaymentStatus)

	require.Len(t, env.gateway.sessionCalls, 2)
	require.True(t, env.gateway.sessionCalls[1].Amount.Equal(decimal.RequireFromString("150.00")),
		"revived attempts charge the current price, not the stale snapshot")
	row := env.reload(t, first.Enrollment.ID)
	require.True(t, row.AmountPaid.Equal(decimal.RequireFromString("150.00")))
}

func TestRequestEnrollmentGatewayFailureKeepsPendingRow(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	contribution := env.addContribution(uuid.New(), "99.00")
	userID := uuid.New()

	env.gateway.sessionErr = pkgerrors.New(pkgerrors.CodeDependency, "gateway unreachable")
	_, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.Error(t, err)

	row, findErr := NewRepository(env.conn).FindByUserAndContribution(ctx, userID, contribution.ID)
	require.NoError(t, findErr, "the pending row survives a gateway outage")
	require.Equal(t, enums.PaymentStatusPending, row.PaymentStatus)

	env.gateway.sessionErr = nil
	retry, err := env.svc.RequestEnrollment(ctx, userID, contribution.ID)
	require.NoError(t, err)
	require.Equal(t, row.ID, retry.Enrollment.ID)
	require.NotEmpty(t, retry.PaymentURL)
}

func TestHandlePaymentSuccessSandbox(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	userID := uuid.New()
	pending := seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusPending, time.Now())

	dto, err := env.svc.HandlePaymentSuccess(ctx, pending.ID, "")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, dto.PaymentStatus)
	require.NotNil(t, dto.PaymentReference)
	require.Equal(t, SandboxReferencePrefix+pending.ID.String(), *dto.PaymentReference)
	require.NotNil(t, dto.PaymentMethod)
	require.Equal(t, "SANDBOX", *dto.PaymentMethod)
	require.Empty(t, env.gateway.validateCalls, "sandbox skips gateway validation")

	// Replayed callbacks return the completed row unchanged.
	replay, err := env.svc.HandlePaymentSuccess(ctx, pending.ID, "")
	require.NoError(t, err)
	require.Equal(t, *dto.PaymentReference, *replay.PaymentReference)
}

func TestHandlePaymentSuccessProductionValidates(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, false)
	userID := uuid.New()
	pending := seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusPending, time.Now())

	// Missing validation id is rejected outright.
	_, err := env.svc.HandlePaymentSuccess(ctx, pending.ID, "  ")
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeValidation, domainErr.Code())

	// A failed validation leaves the row pending.
	env.gateway.validation = &sslcommerz.ValidationResponse{Status: "INVALID_TRANSACTION"}
	_, err = env.svc.HandlePaymentSuccess(ctx, pending.ID, "VAL-BAD")
	require.Error(t, err)
	domainErr = pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeGateway, domainErr.Code())
	require.Equal(t, enums.PaymentStatusPending, env.reload(t, pending.ID).PaymentStatus)

	// A confirmed validation completes the enrollment.
	env.gateway.validation = &sslcommerz.ValidationResponse{Status: "VALIDATED"}
	dto, err := env.svc.HandlePaymentSuccess(ctx, pending.ID, "VAL-GOOD")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, dto.PaymentStatus)
	require.Equal(t, "VAL-GOOD", *dto.PaymentReference)
	require.Equal(t, "SSLCOMMERZ", *dto.PaymentMethod)
	require.Equal(t, []string{"VAL-BAD", "VAL-GOOD"}, env.gateway.validateCalls)
}

func TestHandlePaymentFailAndCancel(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	userID := uuid.New()

	failing := seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusPending, time.Now())
	failed, err := env.svc.HandlePaymentFail(ctx, failing.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, failed.PaymentStatus)

	// Repeating the same callback is a no-op.
	again, err := env.svc.HandlePaymentFail(ctx, failing.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, again.PaymentStatus)

	cancelling := seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusPending, time.Now())
	cancelled, err := env.svc.HandlePaymentCancel(ctx, cancelling.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCancelled, cancelled.PaymentStatus)

	// Completed rows ignore late fail callbacks.
	done := seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusCompleted, time.Now())
	still, err := env.svc.HandlePaymentFail(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, still.PaymentStatus)
}

func TestHandlePaymentCallbackUnknownEnrollment(t *testing.T) {
	env := setupEnrollmentService(t, true)

	_, err := env.svc.HandlePaymentSuccess(context.Background(), uuid.New(), "")
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeNotFound, domainErr.Code())
}

func TestListUserEnrollmentsServesFromCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	userID := uuid.New()

	seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusCompleted, time.Now())
	pending := seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusPending, time.Now())

	first, err := env.svc.ListUserEnrollments(ctx, userID)
	require.NoError(t, err)
	require.Len(t, first, 1, "pending rows are not listed")

	// A direct DB write bypasses invalidation, so the cached list stays stale.
	seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusCompleted, time.Now())
	stale, err := env.svc.ListUserEnrollments(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stale, 1, "second read must come from cache")

	// Completing a payment through the service drops the cached list.
	_, err = env.svc.HandlePaymentSuccess(ctx, pending.ID, "")
	require.NoError(t, err)

	fresh, err := env.svc.ListUserEnrollments(ctx, userID)
	require.NoError(t, err)
	require.Len(t, fresh, 3)
}

func TestGetEnrollmentOwnerOnly(t *testing.T) {
	ctx := context.Background()
	env := setupEnrollmentService(t, true)
	userID := uuid.New()
	row := seedEnrollment(t, env.conn, userID, uuid.New(), enums.PaymentStatusPending, time.Now())

	dto, err := env.svc.GetEnrollment(ctx, userID, row.ID)
	require.NoError(t, err)
	require.Equal(t, row.ID, dto.ID)

	_, err = env.svc.GetEnrollment(ctx, uuid.New(), row.ID)
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeNotFound, domainErr.Code(), "strangers cannot probe enrollment ids")
}
