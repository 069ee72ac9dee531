package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studyshare/studyshare-backend/api/controllers"
	"github.com/studyshare/studyshare-backend/api/middleware"
	"github.com/studyshare/studyshare-backend/internal/auth"
	"github.com/studyshare/studyshare-backend/internal/catalog"
	"github.com/studyshare/studyshare-backend/internal/enrollments"
	"github.com/studyshare/studyshare-backend/internal/ratings"
	"github.com/studyshare/studyshare-backend/pkg/config"
	"github.com/studyshare/studyshare-backend/pkg/db"
	"github.com/studyshare/studyshare-backend/pkg/logger"
	"github.com/studyshare/studyshare-backend/pkg/metrics"
	"github.com/studyshare/studyshare-backend/pkg/redis"
)

// Deps carries everything the router needs. All services are required; the
// ping targets and metrics may be nil in tests.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *db.Client
	Redis       *redis.Client
	HTTPMetrics *metrics.HTTPMetrics
	Registry    *prometheus.Registry

	Auth        auth.Service
	Catalog     catalog.Service
	Enrollments enrollments.Service
	Ratings     ratings.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		var database, cacheStore controllers.HealthTarget
		if deps.DB != nil {
			database = deps.DB
		}
		if deps.Redis != nil {
			cacheStore = deps.Redis
		}
		r.Get("/ready", controllers.HealthReady(database, cacheStore, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register/", controllers.AuthRegister(deps.Auth, logg))
			r.Post("/login/", controllers.AuthLogin(deps.Auth, logg))
		})

		r.Route("/all-contributions", func(r chi.Router) {
			r.Get("/", controllers.ContributionsList(deps.Catalog, logg))
			r.With(middleware.OptionalAuth(cfg.JWT, logg)).
				Get("/{id}/", controllers.ContributionDetail(deps.Catalog, logg))
		})

		// Gateway callbacks: the payment provider posts here, no auth.
		r.Route("/payment", func(r chi.Router) {
			r.Post("/success/{id}/", controllers.PaymentSuccess(deps.Enrollments, logg))
			r.Post("/fail/{id}/", controllers.PaymentFail(deps.Enrollments, logg))
			r.Post("/cancel/{id}/", controllers.PaymentCancel(deps.Enrollments, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/profile/", controllers.AuthProfile(deps.Auth, logg))

			r.Route("/contributions", func(r chi.Router) {
				r.Post("/", controllers.ContributionCreate(deps.Catalog, logg))
				r.Put("/{id}/", controllers.ContributionUpdate(deps.Catalog, logg))
				r.Delete("/{id}/", controllers.ContributionDelete(deps.Catalog, logg))
			})
			r.Get("/my-contributions/", controllers.MyContributions(deps.Catalog, logg))

			r.Post("/create-enrollments/{contribution_id}/", controllers.EnrollmentCreate(deps.Enrollments, logg))
			r.Route("/enrollments", func(r chi.Router) {
				r.Get("/", controllers.EnrollmentsList(deps.Enrollments, logg))
				r.Get("/{id}/", controllers.EnrollmentDetail(deps.Enrollments, logg))
			})

			r.Route("/ratings/{contribution_id}", func(r chi.Router) {
				r.Post("/", controllers.RatingSubmit(deps.Ratings, logg))
				r.Delete("/", controllers.RatingDelete(deps.Ratings, logg))
			})
		})
	})

	return r
}
