package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyshare/studyshare-backend/api/responses"
	"github.com/studyshare/studyshare-backend/api/validators"
	"github.com/studyshare/studyshare-backend/internal/enrollments"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

// PaymentSuccess is the gateway's success callback. The val_id it posts is
// verified against the gateway before the enrollment completes.
func PaymentSuccess(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrollmentID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		validationID := r.FormValue("val_id")

		dto, err := svc.HandlePaymentSuccess(r.Context(), enrollmentID, validationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "payment successful", dto)
	}
}

func PaymentFail(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrollmentID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.HandlePaymentFail(r.Context(), enrollmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "payment failed", dto)
	}
}

func PaymentCancel(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrollmentID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.HandlePaymentCancel(r.Context(), enrollmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "payment cancelled", dto)
	}
}
