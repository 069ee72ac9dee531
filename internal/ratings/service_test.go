package ratings

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studyshare/studyshare-backend/internal/cache"
	"github.com/studyshare/studyshare-backend/internal/catalog"
	"github.com/studyshare/studyshare-backend/pkg/db"
	"github.com/studyshare/studyshare-backend/pkg/db/models"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

type stubEnrollmentChecker struct {
	enrolled map[uuid.UUID]bool
}

func (s *stubEnrollmentChecker) HasCompletedEnrollment(_ context.Context, userID, _ uuid.UUID) (bool, error) {
	return s.enrolled[userID], nil
}

type ratingTestEnv struct {
	conn    *gorm.DB
	svc     Service
	checker *stubEnrollmentChecker
}

func setupRatingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS contributions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC,
  rating NUMERIC,
  university_id TEXT,
  department_id TEXT,
  major_subject_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
		`CREATE TABLE IF NOT EXISTS contribution_tags (
  id TEXT PRIMARY KEY,
  contribution_id TEXT NOT NULL,
  name TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS contribution_videos (
  id TEXT PRIMARY KEY,
  contribution_id TEXT NOT NULL,
  title TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  position INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS contribution_notes (
  id TEXT PRIMARY KEY,
  contribution_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  file_url TEXT NOT NULL DEFAULT '',
  position INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS ratings (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  contribution_id TEXT NOT NULL,
  value NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_ratings_user_contribution ON ratings(user_id, contribution_id)`,
	}
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func setupRatingService(t *testing.T) ratingTestEnv {
	t.Helper()

	conn := setupRatingsTestDB(t)
	store := cache.NewMemoryStore()
	logg := logger.New(logger.Options{ServiceName: "ratings-test", Level: zerolog.ErrorLevel})

	invalidator, err := cache.NewInvalidator(store, logg)
	require.NoError(t, err)

	checker := &stubEnrollmentChecker{enrolled: map[uuid.UUID]bool{}}

	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		Contributions: catalog.NewRepository(conn),
		Enrollments:   checker,
		Tx:            db.NewWithConn(conn),
		Invalidator:   invalidator,
		Logger:        logg,
	})
	require.NoError(t, err)

	return ratingTestEnv{conn: conn, svc: svc, checker: checker}
}

func (env ratingTestEnv) seedContribution(t *testing.T) uuid.UUID {
	t.Helper()
	contribution := &models.Contribution{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Title:  "linear algebra notes",
	}
	require.NoError(t, env.conn.Create(contribution).Error)
	return contribution.ID
}

func (env ratingTestEnv) enrolledUser() uuid.UUID {
	userID := uuid.New()
	env.checker.enrolled[userID] = true
	return userID
}

func (env ratingTestEnv) aggregate(t *testing.T, contributionID uuid.UUID) decimal.NullDecimal {
	t.Helper()
	var row models.Contribution
	require.NoError(t, env.conn.First(&row, "id = ?", contributionID).Error)
	return row.Rating
}

func TestSubmitRecomputesAggregate(t *testing.T) {
	ctx := context.Background()
	env := setupRatingService(t)
	contributionID := env.seedContribution(t)

	first := env.enrolledUser()
	dto, err := env.svc.Submit(ctx, first, contributionID, decimal.RequireFromString("4.5"))
	require.NoError(t, err)
	require.True(t, dto.Value.Equal(decimal.RequireFromString("4.5")))

	agg := env.aggregate(t, contributionID)
	require.True(t, agg.Valid)
	require.True(t, agg.Decimal.Equal(decimal.RequireFromString("4.5")))

	second := env.enrolledUser()
	_, err = env.svc.Submit(ctx, second, contributionID, decimal.RequireFromString("3.5"))
	require.NoError(t, err)

	agg = env.aggregate(t, contributionID)
	require.True(t, agg.Valid)
	require.True(t, agg.Decimal.Equal(decimal.RequireFromString("4")), "mean of 4.5 and 3.5")
}

func TestResubmissionOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	env := setupRatingService(t)
	contributionID := env.seedContribution(t)
	userID := env.enrolledUser()

	first, err := env.svc.Submit(ctx, userID, contributionID, decimal.RequireFromString("4.5"))
	require.NoError(t, err)

	second, err := env.svc.Submit(ctx, userID, contributionID, decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	require.True(t, second.Value.Equal(decimal.RequireFromString("2.5")))
	require.Equal(t, first.ID, second.ID, "resubmission keeps the original row")

	var count int64
	require.NoError(t, env.conn.Model(&models.Rating{}).
		Where("contribution_id = ?", contributionID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	agg := env.aggregate(t, contributionID)
	require.True(t, agg.Valid)
	require.True(t, agg.Decimal.Equal(decimal.RequireFromString("2.5")))
}

func TestDeleteClearsAggregateWhenLastRatingGoes(t *testing.T) {
	ctx := context.Background()
	env := setupRatingService(t)
	contributionID := env.seedContribution(t)

	first := env.enrolledUser()
	second := env.enrolledUser()
	_, err := env.svc.Submit(ctx, first, contributionID, decimal.RequireFromString("4.5"))
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, second, contributionID, decimal.RequireFromString("3.5"))
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, first, contributionID))
	agg := env.aggregate(t, contributionID)
	require.True(t, agg.Valid)
	require.True(t, agg.Decimal.Equal(decimal.RequireFromString("3.5")))

	require.NoError(t, env.svc.Delete(ctx, second, contributionID))
	agg = env.aggregate(t, contributionID)
	require.False(t, agg.Valid, "no ratings left means no aggregate")
}

func TestDeleteMissingRatingIsNotFound(t *testing.T) {
	env := setupRatingService(t)
	contributionID := env.seedContribution(t)

	err := env.svc.Delete(context.Background(), uuid.New(), contributionID)
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeNotFound, domainErr.Code())
}

func TestSubmitRequiresCompletedEnrollment(t *testing.T) {
	env := setupRatingService(t)
	contributionID := env.seedContribution(t)

	_, err := env.svc.Submit(context.Background(), uuid.New(), contributionID, decimal.RequireFromString("5"))
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeForbidden, domainErr.Code())

	agg := env.aggregate(t, contributionID)
	require.False(t, agg.Valid, "rejected submissions leave no trace")
}

func TestSubmitRejectsOutOfRangeValue(t *testing.T) {
	env := setupRatingService(t)
	contributionID := env.seedContribution(t)
	userID := env.enrolledUser()

	for _, value := range []string{"-0.5", "5.5"} {
		_, err := env.svc.Submit(context.Background(), userID, contributionID, decimal.RequireFromString(value))
		require.Error(t, err, value)
		domainErr := pkgerrors.As(err)
		require.NotNil(t, domainErr)
		require.Equal(t, pkgerrors.CodeValidation, domainErr.Code())
	}
}

func TestSubmitUnknownContribution(t *testing.T) {
	env := setupRatingService(t)
	userID := env.enrolledUser()

	_, err := env.svc.Submit(context.Background(), userID, uuid.New(), decimal.RequireFromString("4"))
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeNotFound, domainErr.Code())
}
