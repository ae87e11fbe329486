package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sessionkit/auth-api/internal/config"
	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/ratelimit"
	"github.com/sessionkit/auth-api/internal/service"
	"github.com/sessionkit/auth-api/internal/transport/http/guard"
	"github.com/sessionkit/auth-api/internal/transport/http/handlers"
	"github.com/sessionkit/auth-api/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.

	AllowedOrigins []string
	// TrustProxy включает chi middleware.RealIP: IP клиента берётся из
	// X-Forwarded-For/X-Real-IP. Только за доверенным прокси.
	TrustProxy    bool
	SecureCookies bool
	RateLimit     config.RateLimitConfig

	// Ready отвечает на /healthz; nil — всегда готов.
	Ready func() bool
}

// NewRouter собирает http.Handler с chi, мидлварами, гардами и пробами.
func NewRouter(svc *service.Service, limiter *ratelimit.Limiter, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.RequestID(),
		middleware.Recover(),
	)
	if opts.TrustProxy {
		root.Use(chimw.RealIP)
	}
	root.Use(
		middleware.Logging(opts.Logger),
		middleware.Metrics(),
		cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	registerProbes(root, opts.Ready)

	h := handlers.New(svc, handlers.CookieOptions{Secure: opts.SecureCookies})
	rules := newRouteRules(opts.RateLimit)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, svc, limiter, rules)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, svc, limiter, rules)
	return root
}

// routeRules — правила ограничения частоты из конфигурации.
type routeRules struct {
	throttlers []ratelimit.Rule
	login      ratelimit.Rule
	register   ratelimit.Rule
}

// newRouteRules строит правила; при выключенном rate limit все они пустые.
func newRouteRules(c config.RateLimitConfig) routeRules {
	if !c.Enabled {
		return routeRules{}
	}

	return routeRules{
		throttlers: []ratelimit.Rule{
			{Name: "burst", Limit: c.BurstLimit, TTL: c.BurstTTL, Message: c.Message},
			{Name: "sustained", Limit: c.SustainedLimit, TTL: c.SustainedTTL, Message: c.Message},
			{Name: "hourly", Limit: c.HourlyLimit, TTL: c.HourlyTTL, Message: c.Message},
		},
		login:    ratelimit.Rule{Name: "login", Limit: c.LoginLimit, TTL: c.LoginTTL},
		register: ratelimit.Rule{Name: "register", Limit: c.RegisterLimit, TTL: c.RegisterTTL},
	}
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов
// вместе с их гардами.
func registerRoutes(r chi.Router, h *handlers.Handlers, svc *service.Service, limiter *ratelimit.Limiter, rules routeRules) {
	r.Group(func(r chi.Router) {
		r.Use(guard.Throttle(limiter, rules.throttlers...))

		// auth
		r.With(guard.RateLimit(limiter, rules.login), guard.Authenticate(guard.Local(svc))).
			Post("/auth/login", h.Login)
		r.With(guard.Authenticate(guard.Refresh(svc))).
			Post("/auth/refresh", h.Refresh)
		r.With(guard.RateLimit(limiter, rules.register)).
			Post("/auth/register", h.Register)

		r.Group(func(r chi.Router) {
			r.Use(guard.Authenticate(guard.Access(svc)))

			r.Get("/auth/me", h.Me)
			r.Post("/auth/logout", h.Logout)

			// admin
			r.With(guard.RequireRoles(models.RoleAdmin, models.RoleOwner)).
				Get("/admin/users", h.ListUsers)
			r.With(guard.RequireRoles(models.RoleOwner)).
				Put("/admin/users/{id}/tier", h.SetTier)

			// user
			r.With(guard.RequireTiers(svc, models.TierSilver, models.TierGold)).
				Get("/user/membership", h.Membership)
		})
	})
}

// registerProbes — /livez, /healthz и /metrics на корне, вне BasePath.
func registerProbes(r chi.Router, ready func() bool) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ready == nil || ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	r.Handle("/metrics", promhttp.Handler())
}
