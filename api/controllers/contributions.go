package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyshare/studyshare-backend/api/middleware"
	"github.com/studyshare/studyshare-backend/api/responses"
	"github.com/studyshare/studyshare-backend/api/validators"
	"github.com/studyshare/studyshare-backend/internal/catalog"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

// ContributionsList serves the public catalog with filters and pagination.
func ContributionsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := listParamsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "contributions fetched", result)
	}
}

// MyContributions lists only the caller's own contributions.
func MyContributions(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		params, err := listParamsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.UserID = &userID

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "contributions fetched", result)
	}
}

// ContributionDetail serves one contribution. Videos and notes appear only
// for the owner, enrolled viewers, or free contributions.
func ContributionDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var viewerID *uuid.UUID
		if callerID, ok := middleware.UserIDFromContext(r.Context()); ok {
			viewerID = &callerID
		}

		dto, err := svc.GetDetail(r.Context(), id, viewerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "contribution fetched", dto)
	}
}

func ContributionCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var body catalog.CreateContributionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, "contribution created", dto)
	}
}

// ContributionUpdate replaces the contribution and its tags, videos, and
// notes wholesale. Owner only.
func ContributionUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body catalog.UpdateContributionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Update(r.Context(), userID, id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "contribution updated", dto)
	}
}

func ContributionDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "contribution deleted", nil)
	}
}

func listParamsFromQuery(r *http.Request) (catalog.ListParams, error) {
	var params catalog.ListParams

	page, err := validators.ParsePagination(r)
	if err != nil {
		return params, err
	}
	params.Page = page

	for _, q := range []struct {
		key  string
		dest **uuid.UUID
	}{
		{"university", &params.UniversityID},
		{"department", &params.DepartmentID},
		{"major_subject", &params.MajorSubjectID},
		{"user", &params.UserID},
	} {
		id, err := validators.ParseQueryUUID(r, q.key)
		if err != nil {
			return params, err
		}
		*q.dest = id
	}

	params.Tag = r.URL.Query().Get("tag")
	return params, nil
}
