package routes

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/musicportal-backend/api/controllers"
	"github.com/angelmondragon/musicportal-backend/api/middleware"
	"github.com/angelmondragon/musicportal-backend/internal/accounts"
	"github.com/angelmondragon/musicportal-backend/internal/auth"
	"github.com/angelmondragon/musicportal-backend/internal/catalog"
	"github.com/angelmondragon/musicportal-backend/internal/registration"
	"github.com/angelmondragon/musicportal-backend/pkg/auth/session"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/musicportal-backend/pkg/redis"
)

// requestStore is the Redis surface the HTTP layer uses for rate limiting,
// idempotency and readiness.
type requestStore interface {
	pkgredis.IdempotencyStore
	middleware.RateLimitStore
	Ping(ctx context.Context) error
}

// songFiles is the on-disk song root served under the public prefix.
type songFiles interface {
	Ping(ctx context.Context) error
	Dir() string
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store requestStore,
	files songFiles,
	sessionManager session.AccessSessionChecker,
	metricsHandler http.Handler,
	authService auth.Service,
	registrationService registration.Service,
	accountService accounts.Service,
	queryService catalog.QueryService,
	songService catalog.SongService,
	genreService catalog.GenreService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.RateLimit{
		Name:        "login",
		Window:      cfg.AuthRateLimit.LoginWindow,
		PerIP:       cfg.AuthRateLimit.LoginIPLimit,
		PerUsername: cfg.AuthRateLimit.LoginUsernameLimit,
	}
	registerPolicy := middleware.RateLimit{
		Name:        "register",
		Window:      cfg.AuthRateLimit.RegisterWindow,
		PerIP:       cfg.AuthRateLimit.RegisterIPLimit,
		PerUsername: cfg.AuthRateLimit.RegisterUsernameLimit,
	}

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if store != nil {
		deps["redis"] = store
	}
	if files != nil {
		deps["storage"] = files
	}

	requireAuth := middleware.Auth(cfg.JWT, sessionManager, logg)
	idempotentUpload := middleware.Idempotency(store, logg, middleware.UploadIdempotencyTTL)
	idempotentDecision := middleware.Idempotency(store, logg, middleware.DecisionIdempotencyTTL)
	maxUpload := cfg.Storage.MaxUploadBytes()

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	if files != nil {
		prefix := publicPrefix(cfg.Storage.PublicPrefix)
		r.Handle(prefix+"/*", songFileServer(prefix, files.Dir()))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, store, logg)).Post("/login", controllers.AuthLogin(authService, logg))
			r.With(
				middleware.AuthRateLimit(registerPolicy, store, logg),
				middleware.OptionalAuth(cfg.JWT, sessionManager, logg),
			).Post("/register", controllers.AuthRegister(registrationService, logg))
			r.Post("/logout", controllers.AuthLogout(authService, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(authService, cfg.JWT, logg))
		})

		r.Get("/genres", controllers.GenreList(genreService, logg))

		r.Route("/songs", func(r chi.Router) {
			r.Get("/", controllers.SongQuery(queryService, cfg.Catalog.MaxPageSize, logg))
			r.Get("/{songId}", controllers.SongGet(songService, logg))
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.With(idempotentUpload).Post("/", controllers.SongUpload(songService, maxUpload, logg))
				r.Patch("/{songId}", controllers.SongUpdate(songService, maxUpload, logg))
				r.Delete("/{songId}", controllers.SongDelete(songService, logg))
			})
		})

		r.With(requireAuth).Get("/me", controllers.MeProfile(accountService, songService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireRole(logg, enums.RoleAdministrator))

		r.Route("/registrations", func(r chi.Router) {
			r.Get("/", controllers.AdminRegistrationList(registrationService, logg))
			r.Get("/{requestId}", controllers.AdminRegistrationGet(registrationService, logg))
			r.With(idempotentDecision).Post("/{requestId}/approve", controllers.AdminRegistrationApprove(registrationService, logg))
			r.With(idempotentDecision).Post("/{requestId}/reject", controllers.AdminRegistrationReject(registrationService, logg))
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminUserList(accountService, logg))
			r.Get("/{userId}", controllers.AdminUserGet(accountService, logg))
			r.Put("/{userId}", controllers.AdminUserUpdate(accountService, logg))
			r.Delete("/{userId}", controllers.AdminUserDelete(accountService, logg))
		})
		r.Route("/genres", func(r chi.Router) {
			r.Post("/", controllers.AdminGenreCreate(genreService, logg))
			r.Put("/{genreId}", controllers.AdminGenreRename(genreService, logg))
			r.Delete("/{genreId}", controllers.AdminGenreDelete(genreService, logg))
		})
	})

	return r
}

func publicPrefix(prefix string) string {
	p := "/" + strings.Trim(strings.TrimSpace(prefix), "/")
	if p == "/" {
		return "/songs"
	}
	return p
}

// songFileServer serves stored files but never directory listings or dot
// files, which cover in-flight uploads and readiness probes.
func songFileServer(prefix, dir string) http.Handler {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || strings.Contains(r.URL.Path, "/.") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
