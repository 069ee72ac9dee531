package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/studyshare/studyshare-backend/internal/cache"
	"github.com/studyshare/studyshare-backend/pkg/config"
	"github.com/studyshare/studyshare-backend/pkg/db/models"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
	"github.com/studyshare/studyshare-backend/pkg/metrics"
	"github.com/studyshare/studyshare-backend/pkg/pagination"
)

const (
	cacheGroupList   = "contribution_list"
	cacheGroupDetail = "contribution_detail"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// enrollmentChecker answers whether a viewer holds a completed enrollment.
type enrollmentChecker interface {
	HasCompletedEnrollment(ctx context.Context, userID, contributionID uuid.UUID) (bool, error)
}

// Service defines catalog operations beyond repository reads.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	GetDetail(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*ContributionDTO, error)
	Create(ctx context.Context, userID uuid.UUID, req CreateContributionRequest) (*ContributionDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, req UpdateContributionRequest) (*ContributionDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type service struct {
	repo        Repository
	tx          txRunner
	store       cache.Store
	invalidator *cache.Invalidator
	enrollments enrollmentChecker
	cacheCfg    config.CacheConfig
	cacheStats  *metrics.CacheMetrics
	logger      *logger.Logger
}

// ServiceParams bundles the dependencies required to build a catalog service.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Store        cache.Store
	Invalidator  *cache.Invalidator
	Enrollments  enrollmentChecker
	CacheConfig  config.CacheConfig
	CacheMetrics *metrics.CacheMetrics
	Logger       *logger.Logger
}

// NewService builds a catalog service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if params.Invalidator == nil {
		return nil, fmt.Errorf("cache invalidator required")
	}
	if params.Enrollments == nil {
		return nil, fmt.Errorf("enrollment checker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		store:       params.Store,
		invalidator: params.Invalidator,
		enrollments: params.Enrollments,
		cacheCfg:    params.CacheConfig,
		cacheStats:  params.CacheMetrics,
		logger:      params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	params.Page = params.Page.Normalize()
	key := params.CacheKey()

	if cached, ok := s.cacheGet(ctx, key, cacheGroupList); ok {
		var result ListResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			return &result, nil
		}
		// Unreadable entry: drop it and fall through to the database.
		_ = s.store.Del(ctx, key)
	}

	rows, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contributions")
	}

	items := make([]ContributionDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i], false, false))
	}
	result := &ListResult{
		Items: items,
		Meta:  pagination.NewMeta(params.Page, total),
	}

	s.cacheSet(ctx, key, result, s.cacheCfg.ListTTL)
	return result, nil
}

func (s *service) GetDetail(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*ContributionDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contribution id required")
	}
	key := cache.DetailKey(id, viewerID)

	if cached, ok := s.cacheGet(ctx, key, cacheGroupDetail); ok {
		var dto ContributionDTO
		if err := json.Unmarshal([]byte(cached), &dto); err == nil {
			return &dto, nil
		}
		_ = s.store.Del(ctx, key)
	}

	contribution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contribution not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contribution")
	}

	isOwner := viewerID != nil && *viewerID == contribution.UserID
	isEnrolled := false
	if viewerID != nil && *viewerID != uuid.Nil && !isOwner {
		isEnrolled, err = s.enrollments.HasCompletedEnrollment(ctx, *viewerID, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check enrollment")
		}
	}
	includeContent := isOwner || isEnrolled || contribution.IsFree()

	dto := FromModel(contribution, includeContent, isEnrolled)
	s.cacheSet(ctx, key, dto, s.cacheCfg.DetailTTL)
	return dto, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateContributionRequest) (*ContributionDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validatePrice(req.Price); err != nil {
		return nil, err
	}

	contribution := &models.Contribution{
		UserID:         userID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Price:          toNullDecimal(req.Price),
		UniversityID:   req.UniversityID,
		DepartmentID:   req.DepartmentID,
		MajorSubjectID: req.MajorSubjectID,
		Tags:           tagModels(req.Tags),
		Videos:         videoModels(req.Videos),
		Notes:          noteModels(req.Notes),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, contribution)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contribution")
	}

	s.invalidator.OnContributionWrite(ctx, contribution.ID)
	return FromModel(contribution, true, false), nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, req UpdateContributionRequest) (*ContributionDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validatePrice(req.Price); err != nil {
		return nil, err
	}

	contribution, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	contribution.Title = strings.TrimSpace(req.Title)
	contribution.Description = req.Description
	contribution.Price = toNullDecimal(req.Price)
	contribution.UniversityID = req.UniversityID
	contribution.DepartmentID = req.DepartmentID
	contribution.MajorSubjectID = req.MajorSubjectID

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Save(ctx, contribution); err != nil {
			return err
		}
		return repo.ReplaceAssociations(ctx, contribution.ID,
			tagModels(req.Tags), videoModels(req.Videos), noteModels(req.Notes))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update contribution")
	}

	s.invalidator.OnContributionWrite(ctx, contribution.ID)

	updated, err := s.repo.FindByID(ctx, contribution.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload contribution")
	}
	return FromModel(updated, true, false), nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := s.loadOwned(ctx, userID, id); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete contribution")
	}

	s.invalidator.OnContributionWrite(ctx, id)
	return nil
}

func (s *service) loadOwned(ctx context.Context, userID, id uuid.UUID) (*models.Contribution, error) {
	contribution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contribution not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contribution")
	}
	if contribution.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "contribution does not belong to user")
	}
	return contribution, nil
}

func (s *service) cacheGet(ctx context.Context, key, group string) (string, bool) {
	value, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Error(ctx, "cache read failed, falling through", err)
		s.cacheStats.IncMiss(group)
		return "", false
	}
	if !found {
		s.cacheStats.IncMiss(group)
		return "", false
	}
	s.cacheStats.IncHit(group)
	return value, true
}

func (s *service) cacheSet(ctx context.Context, key string, payload any, ttl time.Duration) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error(ctx, "cache encode failed", err)
		return
	}
	if err := s.store.Set(ctx, key, string(encoded), ttl); err != nil {
		s.logger.Error(ctx, "cache write failed", err)
	}
}

func validatePrice(price *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return nil
}

func toNullDecimal(price *decimal.Decimal) decimal.NullDecimal {
	if price == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *price, Valid: true}
}

func tagModels(names []string) []models.ContributionTag {
	tags := make([]models.ContributionTag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tags = append(tags, models.ContributionTag{Name: name})
	}
	return tags
}

func videoModels(inputs []VideoInput) []models.ContributionVideo {
	videos := make([]models.ContributionVideo, 0, len(inputs))
	for _, input := range inputs {
		videos = append(videos, models.ContributionVideo{Title: input.Title, URL: input.URL, Position: input.Position})
	}
	return videos
}

func noteModels(inputs []NoteInput) []models.ContributionNote {
	notes := make([]models.ContributionNote, 0, len(inputs))
	for _, input := range inputs {
		notes = append(notes, models.ContributionNote{Title: input.Title, FileURL: input.FileURL, Position: input.Position})
	}
	return notes
}
