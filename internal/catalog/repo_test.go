package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studyshare/studyshare-backend/pkg/db/models"
	"github.com/studyshare/studyshare-backend/pkg/pagination"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
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
	}
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func seedContribution(t *testing.T, conn *gorm.DB, userID uuid.UUID, title string, createdAt time.Time, mutate func(*models.Contribution)) *models.Contribution {
	t.Helper()
	contribution := &models.Contribution{
		UserID:    userID,
		Title:     title,
		CreatedAt: createdAt,
	}
	if mutate != nil {
		mutate(contribution)
	}
	require.NoError(t, conn.Create(contribution).Error)
	return contribution
}

func TestListEqualityFilters(t *testing.T) {
	ctx := context.Background()
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)

	userA := uuid.New()
	userB := uuid.New()
	buet := uuid.New()
	du := uuid.New()
	now := time.Now()

	seedContribution(t, conn, userA, "dsp lectures", now, func(c *models.Contribution) { c.UniversityID = &buet })
	seedContribution(t, conn, userA, "circuits notes", now.Add(time.Minute), func(c *models.Contribution) { c.UniversityID = &du })
	seedContribution(t, conn, userB, "algorithms pack", now.Add(2*time.Minute), func(c *models.Contribution) { c.UniversityID = &buet })

	rows, total, err := repo.List(ctx, ListParams{UniversityID: &buet})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, buet, *row.UniversityID)
	}

	rows, total, err = repo.List(ctx, ListParams{UserID: &userA})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 2)

	rows, total, err = repo.List(ctx, ListParams{UniversityID: &buet, UserID: &userB})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "algorithms pack", rows[0].Title)
}

func TestListTagFilterCaseInsensitiveDistinct(t *testing.T) {
	ctx := context.Background()
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)

	userID := uuid.New()
	now := time.Now()

	tagged := seedContribution(t, conn, userID, "signal processing", now, nil)
	require.NoError(t, conn.Create(&[]models.ContributionTag{
		{ContributionID: tagged.ID, Name: "DSP"},
		{ContributionID: tagged.ID, Name: "dsp-advanced"},
	}).Error)

	other := seedContribution(t, conn, userID, "thermodynamics", now.Add(time.Minute), nil)
	require.NoError(t, conn.Create(&models.ContributionTag{ContributionID: other.ID, Name: "heat"}).Error)

	rows, total, err := repo.List(ctx, ListParams{Tag: "dSp"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total, "two matching tags on one row must count once")
	require.Len(t, rows, 1)
	require.Equal(t, tagged.ID, rows[0].ID)
	require.Len(t, rows[0].Tags, 2, "page rows are hydrated with all relations")
}

func TestListPaginationNewestFirst(t *testing.T) {
	ctx := context.Background()
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)

	userID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		seedContribution(t, conn, userID, fmt.Sprintf("item %02d", i), base.Add(time.Duration(i)*time.Minute), nil)
	}

	firstPage, total, err := repo.List(ctx, ListParams{Page: pagination.Params{Limit: 10, Offset: 0}})
	require.NoError(t, err)
	require.EqualValues(t, 25, total)
	require.Len(t, firstPage, 10)
	require.Equal(t, "item 24", firstPage[0].Title, "newest row comes first")

	secondPage, _, err := repo.List(ctx, ListParams{Page: pagination.Params{Limit: 10, Offset: 10}})
	require.NoError(t, err)
	require.Len(t, secondPage, 10)

	seen := map[uuid.UUID]bool{}
	for _, row := range firstPage {
		seen[row.ID] = true
	}
	for _, row := range secondPage {
		require.False(t, seen[row.ID], "pages must not overlap")
	}

	lastPage, _, err := repo.List(ctx, ListParams{Page: pagination.Params{Limit: 10, Offset: 20}})
	require.NoError(t, err)
	require.Len(t, lastPage, 5)
}

func TestReplaceAssociations(t *testing.T) {
	ctx := context.Background()
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)

	contribution := seedContribution(t, conn, uuid.New(), "replaceable", time.Now(), nil)
	require.NoError(t, conn.Create(&models.ContributionTag{ContributionID: contribution.ID, Name: "old"}).Error)
	require.NoError(t, conn.Create(&models.ContributionVideo{ContributionID: contribution.ID, Title: "old video"}).Error)

	err := repo.ReplaceAssociations(ctx, contribution.ID,
		[]models.ContributionTag{{Name: "new-a"}, {Name: "new-b"}},
		nil,
		[]models.ContributionNote{{Title: "summary", FileURL: "files/summary.pdf"}},
	)
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, contribution.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Tags, 2)
	require.Empty(t, reloaded.Videos)
	require.Len(t, reloaded.Notes, 1)
	require.Equal(t, "summary", reloaded.Notes[0].Title)
}

func TestUpdateRating(t *testing.T) {
	ctx := context.Background()
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)

	contribution := seedContribution(t, conn, uuid.New(), "rated", time.Now(), nil)

	value := decimal.NullDecimal{Decimal: decimal.RequireFromString("4.00"), Valid: true}
	require.NoError(t, repo.UpdateRating(ctx, contribution.ID, value))

	reloaded, err := repo.FindByID(ctx, contribution.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Rating.Valid)
	require.True(t, reloaded.Rating.Decimal.Equal(decimal.RequireFromString("4")))

	require.NoError(t, repo.UpdateRating(ctx, contribution.ID, decimal.NullDecimal{}))
	reloaded, err = repo.FindByID(ctx, contribution.ID)
	require.NoError(t, err)
	require.False(t, reloaded.Rating.Valid, "clearing the aggregate stores NULL")
}

func TestDeleteRemovesAssociations(t *testing.T) {
	ctx := context.Background()
	conn := setupCatalogTestDB(t)
	repo := NewRepository(conn)

	contribution := seedContribution(t, conn, uuid.New(), "doomed", time.Now(), nil)
	require.NoError(t, conn.Create(&models.ContributionTag{ContributionID: contribution.ID, Name: "tag"}).Error)

	require.NoError(t, repo.Delete(ctx, contribution.ID))

	_, err := repo.FindByID(ctx, contribution.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var tagCount int64
	require.NoError(t, conn.Model(&models.ContributionTag{}).Where("contribution_id = ?", contribution.ID).Count(&tagCount).Error)
	require.Zero(t, tagCount)
}
