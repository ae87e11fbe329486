package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/service"
	"github.com/sessionkit/auth-api/internal/token"
	"github.com/sessionkit/auth-api/internal/transport/http/apierrors"
	"github.com/sessionkit/auth-api/internal/validation"
)

// maxLoginBody — предел тела запроса входа.
const maxLoginBody = 16 << 10

// Local — вход по e-mail/телефону и паролю из JSON-тела.
func Local(a Authenticator) Strategy { return localStrategy{auth: a} }

// Access — access-токен из cookie access_token.
func Access(a Authenticator) Strategy { return accessStrategy{auth: a} }

// Refresh — refresh-токен из cookie refresh_token. Кроме подписи токен
// сверяется с сохранённым хэшем, поэтому ротированный токен отклоняется.
func Refresh(a Authenticator) Strategy { return refreshStrategy{auth: a} }

type localStrategy struct{ auth Authenticator }

func (localStrategy) Name() string { return "local" }

func (localStrategy) Extract(r *http.Request) (Credential, error) {
	const op = "guard.local.Extract"

	var in validation.LoginInput
	dec := json.NewDecoder(io.LimitReader(r.Body, maxLoginBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return Credential{}, fmt.Errorf("%s: %w", op, apierrors.ErrBadRequest)
	}

	identifier, err := validation.Login(in)
	if err != nil {
		return Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	return Credential{Identifier: identifier, Password: in.Password}, nil
}

func (s localStrategy) Verify(ctx context.Context, c Credential) (*Principal, error) {
	user, err := s.auth.VerifyCredentials(ctx, c.Identifier, c.Password)
	if err != nil {
		return nil, err
	}

	return &Principal{TokenPayload: models.PayloadFromUser(user), User: user}, nil
}

type accessStrategy struct{ auth Authenticator }

func (accessStrategy) Name() string { return "access" }

func (accessStrategy) Extract(r *http.Request) (Credential, error) {
	return cookieCredential(r, AccessCookie)
}

func (s accessStrategy) Verify(ctx context.Context, c Credential) (*Principal, error) {
	p, err := s.auth.VerifyToken(ctx, c.Token, token.Access)
	if err != nil {
		return nil, err
	}

	return &Principal{TokenPayload: *p}, nil
}

type refreshStrategy struct{ auth Authenticator }

func (refreshStrategy) Name() string { return "refresh" }

func (refreshStrategy) Extract(r *http.Request) (Credential, error) {
	return cookieCredential(r, RefreshCookie)
}

func (s refreshStrategy) Verify(ctx context.Context, c Credential) (*Principal, error) {
	p, err := s.auth.VerifyToken(ctx, c.Token, token.Refresh)
	if err != nil {
		return nil, err
	}

	user, err := s.auth.RotateFromRefresh(ctx, c.Token, p.ID)
	if err != nil {
		return nil, err
	}

	return &Principal{TokenPayload: *p, User: user}, nil
}

func cookieCredential(r *http.Request, name string) (Credential, error) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return Credential{}, fmt.Errorf("guard.cookie %s: %w", name, service.ErrUnauthorized)
	}

	return Credential{Token: c.Value}, nil
}
