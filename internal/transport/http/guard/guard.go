// guard собирает проверки доступа в обычные net/http мидлвары, которые
// навешиваются на маршрут при регистрации:
//
//	r.With(guard.Authenticate(guard.Access(svc)), guard.RequireRoles(models.RoleOwner)).Put(...)
//
// Authenticate извлекает и проверяет учётные данные стратегией и кладёт
// Principal в контекст. Остальные гарды подписи не перепроверяют и
// доверяют уже аутентифицированному Principal.
package guard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/pkg/log"
	"github.com/sessionkit/auth-api/internal/token"
	"github.com/sessionkit/auth-api/internal/transport/http/apierrors"
)

// Имена cookie сессии.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Authenticator — операции сервиса, на которые опираются стратегии.
type Authenticator interface {
	VerifyCredentials(ctx context.Context, identifier, password string) (*models.User, error)
	VerifyToken(ctx context.Context, raw string, kind token.Kind) (*models.TokenPayload, error)
	RotateFromRefresh(ctx context.Context, raw string, claimedID uuid.UUID) (*models.User, error)
}

// Credential — сырые учётные данные, извлечённые из запроса.
// Заполняются либо Identifier и Password, либо Token.
type Credential struct {
	Identifier string
	Password   string
	Token      string
}

// Principal — аутентифицированный субъект запроса.
// User заполнен, если стратегия загружала запись пользователя
// (вход по паролю, обмен refresh-токена) или её догрузил RequireTiers.
type Principal struct {
	models.TokenPayload
	User *models.User
}

// Strategy извлекает учётные данные из запроса и проверяет их.
type Strategy interface {
	Name() string
	Extract(r *http.Request) (Credential, error)
	Verify(ctx context.Context, c Credential) (*Principal, error)
}

type principalKey struct{}

// WithPrincipal кладёт Principal в контекст.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom достаёт Principal из контекста.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Authenticate пропускает запрос дальше только с проверенным Principal.
// Ошибки извлечения и проверки отдаются через apierrors.
func Authenticate(s Strategy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			cred, err := s.Extract(r)
			if err != nil {
				log.From(ctx).Debug("credentials_missing",
					slog.String("strategy", s.Name()),
					slog.String("err", err.Error()),
				)
				apierrors.WriteError(w, r, err)
				return
			}

			p, err := s.Verify(ctx, cred)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx = log.With(ctx, slog.String("user_id", p.ID.String()))
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
		})
	}
}
