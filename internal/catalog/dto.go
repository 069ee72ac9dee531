package catalog

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/studyshare/studyshare-backend/internal/cache"
	"github.com/studyshare/studyshare-backend/pkg/db/models"
	"github.com/studyshare/studyshare-backend/pkg/pagination"
)

// TagDTO is one label attached to a contribution.
type TagDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// VideoDTO is one video entry of a contribution's content.
type VideoDTO struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Position int       `json:"position"`
}

// NoteDTO is one note/document entry of a contribution's content.
type NoteDTO struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	FileURL  string    `json:"file_url"`
	Position int       `json:"position"`
}

// ContributionDTO is the transport shape for catalog reads. Videos and Notes
// are only populated when the viewer may access the content.
type ContributionDTO struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	Rating         *decimal.Decimal `json:"rating"`
	UniversityID   *uuid.UUID       `json:"university_id,omitempty"`
	DepartmentID   *uuid.UUID       `json:"department_id,omitempty"`
	MajorSubjectID *uuid.UUID       `json:"major_subject_id,omitempty"`
	Tags           []TagDTO         `json:"tags"`
	Videos         []VideoDTO       `json:"videos,omitempty"`
	Notes          []NoteDTO        `json:"notes,omitempty"`
	IsFree         bool             `json:"is_free"`
	IsEnrolled     bool             `json:"is_enrolled"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// FromModel renders a contribution row. Content (videos/notes) is included
// only when includeContent is set.
func FromModel(m *models.Contribution, includeContent, isEnrolled bool) *ContributionDTO {
	if m == nil {
		return nil
	}
	dto := &ContributionDTO{
		ID:             m.ID,
		UserID:         m.UserID,
		Title:          m.Title,
		Description:    m.Description,
		UniversityID:   m.UniversityID,
		DepartmentID:   m.DepartmentID,
		MajorSubjectID: m.MajorSubjectID,
		Tags:           make([]TagDTO, 0, len(m.Tags)),
		IsFree:         m.IsFree(),
		IsEnrolled:     isEnrolled,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Price.Valid {
		price := m.Price.Decimal
		dto.Price = &price
	}
	if m.Rating.Valid {
		rating := m.Rating.Decimal
		dto.Rating = &rating
	}
	for _, tag := range m.Tags {
		dto.Tags = append(dto.Tags, TagDTO{ID: tag.ID, Name: tag.Name})
	}
	if includeContent {
		dto.Videos = make([]VideoDTO, 0, len(m.Videos))
		for _, video := range m.Videos {
			dto.Videos = append(dto.Videos, VideoDTO{ID: video.ID, Title: video.Title, URL: video.URL, Position: video.Position})
		}
		dto.Notes = make([]NoteDTO, 0, len(m.Notes))
		for _, note := range m.Notes {
			dto.Notes = append(dto.Notes, NoteDTO{ID: note.ID, Title: note.Title, FileURL: note.FileURL, Position: note.Position})
		}
	}
	return dto
}

// VideoInput is one video entry of a create/update submission.
type VideoInput struct {
	Title    string `json:"title" validate:"required"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// NoteInput is one note entry of a create/update submission.
type NoteInput struct {
	Title    string `json:"title"`
	FileURL  string `json:"file_url"`
	Position int    `json:"position"`
}

// CreateContributionRequest carries a new contribution. Update reuses the
// same shape with full-replace semantics.
type CreateContributionRequest struct {
	Title          string           `json:"title" validate:"required,max=255"`
	Description    string           `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	UniversityID   *uuid.UUID       `json:"university_id,omitempty"`
	DepartmentID   *uuid.UUID       `json:"department_id,omitempty"`
	MajorSubjectID *uuid.UUID       `json:"major_subject_id,omitempty"`
	Tags           []string         `json:"tags" validate:"dive,required,max=64"`
	Videos         []VideoInput     `json:"videos" validate:"dive"`
	Notes          []NoteInput      `json:"notes" validate:"dive"`
}

// UpdateContributionRequest replaces every mutable field of a contribution.
type UpdateContributionRequest = CreateContributionRequest

// ListParams are the filter and page inputs of the public listing.
type ListParams struct {
	UniversityID   *uuid.UUID
	DepartmentID   *uuid.UUID
	MajorSubjectID *uuid.UUID
	UserID         *uuid.UUID
	Tag            string
	Page           pagination.Params
}

// CacheFilters renders the params as the sorted key/value set the cache key
// is derived from.
func (p ListParams) CacheFilters() map[string]string {
	page := p.Page.Normalize()
	filters := map[string]string{
		"limit":  strconv.Itoa(page.Limit),
		"offset": strconv.Itoa(page.Offset),
	}
	if p.UniversityID != nil {
		filters["university"] = p.UniversityID.String()
	}
	if p.DepartmentID != nil {
		filters["department"] = p.DepartmentID.String()
	}
	if p.MajorSubjectID != nil {
		filters["major_subject"] = p.MajorSubjectID.String()
	}
	if p.UserID != nil {
		filters["user"] = p.UserID.String()
	}
	if p.Tag != "" {
		filters["tag"] = p.Tag
	}
	return filters
}

// CacheKey is the list cache key for these params.
func (p ListParams) CacheKey() string {
	return cache.ListKey(p.CacheFilters())
}

// ListResult is one page of the catalog plus its pagination metadata.
type ListResult struct {
	Items []ContributionDTO `json:"items"`
	Meta  pagination.Meta   `json:"meta"`
}
