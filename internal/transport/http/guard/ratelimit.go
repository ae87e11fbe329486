package guard

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sessionkit/auth-api/internal/metrics"
	"github.com/sessionkit/auth-api/internal/pkg/log"
	"github.com/sessionkit/auth-api/internal/ratelimit"
	"github.com/sessionkit/auth-api/internal/transport/http/apierrors"
)

// RateLimit ограничивает маршрут правилом rule. Счётчик ведётся по
// (id пользователя или IP клиента, маршрут); id берётся из Principal,
// если гард стоит после Authenticate. Правило с Limit <= 0 — без ограничений.
func RateLimit(l *ratelimit.Limiter, rule ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rule.Limit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ClientIP(r)
			if p, ok := PrincipalFrom(r.Context()); ok {
				actor = p.ID.String()
			}

			if !allow(w, r, l, rule, ratelimit.CustomKey(actor, routeOf(r))) {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Throttle — глобальные троттлеры: каждое правило считает запросы
// по (IP клиента, маршрут) отдельно; отказ по первому превышенному.
func Throttle(l *ratelimit.Limiter, rules ...ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(rules) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, route := ClientIP(r), routeOf(r)
			for _, rule := range rules {
				if !allow(w, r, l, rule, ratelimit.ThrottleKey(rule.Name, ip, route)) {
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allow учитывает запрос и при отказе сам пишет ответ.
func allow(w http.ResponseWriter, r *http.Request, l *ratelimit.Limiter, rule ratelimit.Rule, key string) bool {
	ctx := r.Context()

	err := l.Allow(ctx, rule, key)
	if err == nil {
		return true
	}

	var throttled *ratelimit.ThrottledError
	if errors.As(err, &throttled) {
		log.From(ctx).Warn("rate_limited", slog.String("rule", rule.Name), slog.String("key", key))
		metrics.RateLimited(rule.Name)
	} else {
		log.From(ctx).Error("rate_limit_store_failed", slog.String("rule", rule.Name), slog.String("err", err.Error()))
	}

	apierrors.WriteError(w, r, err)
	return false
}

// ClientIP — IP клиента из RemoteAddr. За доверенным прокси RemoteAddr
// заранее переписывает chi middleware.RealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// routeOf — шаблон маршрута chi, а если он ещё не известен, путь запроса.
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}

	return r.URL.Path
}
