package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/studyshare/studyshare-backend/api/responses"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

// HealthTarget is any dependency the readiness probe should ping.
type HealthTarget interface {
	Ping(ctx context.Context) error
}

func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, "live", map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when both the database and the cache answer
// a ping.
func HealthReady(database, cache HealthTarget, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if database != nil {
			if err := database.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cache unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, "ready", map[string]string{"status": "ready"})
	}
}
