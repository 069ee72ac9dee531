package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/studyshare/studyshare-backend/pkg/db/models"
)

// Repository exposes contribution persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contribution *models.Contribution) error
	Save(ctx context.Context, contribution *models.Contribution) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
	ReplaceAssociations(ctx context.Context, contributionID uuid.UUID, tags []models.ContributionTag, videos []models.ContributionVideo, notes []models.ContributionNote) error
	List(ctx context.Context, params ListParams) ([]models.Contribution, int64, error)
	UpdateRating(ctx context.Context, id uuid.UUID, rating decimal.NullDecimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, contribution *models.Contribution) error {
	return r.db.WithContext(ctx).Create(contribution).Error
}

// Save persists scalar column changes. Associations are handled explicitly
// through ReplaceAssociations.
func (r *repository) Save(ctx context.Context, contribution *models.Contribution) error {
	return r.db.WithContext(ctx).
		Omit("Tags", "Videos", "Notes").
		Save(contribution).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Select("Tags", "Videos", "Notes").
		Delete(&models.Contribution{ID: id}).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	var contribution models.Contribution
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Preload("Videos", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&contribution, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &contribution, nil
}

// ReplaceAssociations swaps a contribution's tags, videos, and notes for the
// provided sets. Runs inside the caller's transaction.
func (r *repository) ReplaceAssociations(ctx context.Context, contributionID uuid.UUID, tags []models.ContributionTag, videos []models.ContributionVideo, notes []models.ContributionNote) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("contribution_id = ?", contributionID).Delete(&models.ContributionTag{}).Error; err != nil {
		return err
	}
	if err := db.Where("contribution_id = ?", contributionID).Delete(&models.ContributionVideo{}).Error; err != nil {
		return err
	}
	if err := db.Where("contribution_id = ?", contributionID).Delete(&models.ContributionNote{}).Error; err != nil {
		return err
	}
	for i := range tags {
		tags[i].ContributionID = contributionID
	}
	for i := range videos {
		videos[i].ContributionID = contributionID
	}
	for i := range notes {
		notes[i].ContributionID = contributionID
	}
	if len(tags) > 0 {
		if err := db.Create(&tags).Error; err != nil {
			return err
		}
	}
	if len(videos) > 0 {
		if err := db.Create(&videos).Error; err != nil {
			return err
		}
	}
	if len(notes) > 0 {
		if err := db.Create(&notes).Error; err != nil {
			return err
		}
	}
	return nil
}

// List runs the filtered page query in two phases: a scalar query resolves
// the page rows and total, then relations are loaded for the page only.
func (r *repository) List(ctx context.Context, params ListParams) ([]models.Contribution, int64, error) {
	page := params.Page.Normalize()

	var total int64
	if err := r.listQuery(ctx, params).
		Distinct("contributions.id").
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Contribution
	err := r.listQuery(ctx, params).
		Distinct("contributions.*").
		Order("contributions.created_at DESC, contributions.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return rows, total, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var hydrated []models.Contribution
	err = r.db.WithContext(ctx).
		Preload("Tags").
		Preload("Videos", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id IN ?", ids).
		Find(&hydrated).Error
	if err != nil {
		return nil, 0, err
	}

	byID := make(map[uuid.UUID]models.Contribution, len(hydrated))
	for _, row := range hydrated {
		byID[row.ID] = row
	}
	ordered := make([]models.Contribution, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, total, nil
}

func (r *repository) UpdateRating(ctx context.Context, id uuid.UUID, rating decimal.NullDecimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Contribution{}).
		Where("id = ?", id).
		UpdateColumn("rating", rating).Error
}

func (r *repository) listQuery(ctx context.Context, params ListParams) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Contribution{})
	if params.UniversityID != nil {
		query = query.Where("contributions.university_id = ?", *params.UniversityID)
	}
	if params.DepartmentID != nil {
		query = query.Where("contributions.department_id = ?", *params.DepartmentID)
	}
	if params.MajorSubjectID != nil {
		query = query.Where("contributions.major_subject_id = ?", *params.MajorSubjectID)
	}
	if params.UserID != nil {
		query = query.Where("contributions.user_id = ?", *params.UserID)
	}
	if tag := strings.TrimSpace(params.Tag); tag != "" {
		query = query.
			Joins("JOIN contribution_tags ON contribution_tags.contribution_id = contributions.id").
			Where("LOWER(contribution_tags.name) LIKE ?", "%"+strings.ToLower(tag)+"%")
	}
	return query
}
