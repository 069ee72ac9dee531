package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyshare/studyshare-backend/api/middleware"
	"github.com/studyshare/studyshare-backend/api/responses"
	"github.com/studyshare/studyshare-backend/api/validators"
	"github.com/studyshare/studyshare-backend/internal/ratings"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

// RatingSubmit records or overwrites the caller's rating for a contribution.
// Only users with a completed enrollment may rate.
func RatingSubmit(svc ratings.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body ratings.SubmitRatingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Submit(r.Context(), userID, contributionID, body.Rating)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "rating saved", dto)
	}
}

// RatingDelete removes the caller's rating and recomputes the aggregate.
func RatingDelete(svc ratings.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.Delete(r.Context(), userID, contributionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "rating removed", nil)
	}
}
