package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/pkg/log"
	"github.com/sessionkit/auth-api/internal/service"
	"github.com/sessionkit/auth-api/internal/transport/http/apierrors"
)

// UserLookup загружает актуальную запись пользователя.
type UserLookup interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RequireRoles пропускает запрос, если роль из токена входит в roles.
// Без Principal в контексте — 403.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok || !slices.Contains(roles, p.Role) {
				deny(w, r, "role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTiers пропускает запрос, если уровень пользователя входит в tiers.
// Без объявленных уровней гард открыт. Уровня нет в токене, поэтому
// запись пользователя каждый раз читается заново; она же кладётся в
// Principal.User для обработчика.
// Отказ (403): нет Principal, пользователь не найден, уровень не задан
// или не входит в набор. Сбой хранилища — 500.
func RequireTiers(users UserLookup, tiers ...models.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(tiers) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			p, ok := PrincipalFrom(ctx)
			if !ok {
				deny(w, r, "tier")
				return
			}

			user, err := users.UserByID(ctx, p.ID)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					deny(w, r, "tier")
					return
				}

				log.From(ctx).Error("tier_lookup_failed", slog.String("err", err.Error()))
				apierrors.WriteError(w, r, err)
				return
			}

			if user.Tier == nil || !slices.Contains(tiers, *user.Tier) {
				deny(w, r, "tier")
				return
			}

			withUser := *p
			withUser.User = user
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, &withUser)))
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, check string) {
	log.From(r.Context()).Info("access_denied",
		slog.String("check", check),
		slog.String("path", r.URL.Path),
	)
	apierrors.WriteError(w, r, service.ErrForbidden)
}
