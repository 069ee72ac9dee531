package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyshare/studyshare-backend/api/middleware"
	"github.com/studyshare/studyshare-backend/api/responses"
	"github.com/studyshare/studyshare-backend/api/validators"
	"github.com/studyshare/studyshare-backend/internal/enrollments"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

// EnrollmentCreate requests enrollment in a contribution. Free contributions
// complete on the spot; paid ones return a gateway URL to finish checkout.
func EnrollmentCreate(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		contributionID, err := validators.ParsePathUUID(chi.URLParam(r, "contribution_id"), "contribution_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RequestEnrollment(r.Context(), userID, contributionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, "enrollment requested", result)
	}
}

// EnrollmentsList returns the caller's completed enrollments.
func EnrollmentsList(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		list, err := svc.ListUserEnrollments(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "enrollments fetched", list)
	}
}

// EnrollmentDetail returns one of the caller's enrollments, any status.
func EnrollmentDetail(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		enrollmentID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.GetEnrollment(r.Context(), userID, enrollmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "enrollment fetched", dto)
	}
}
