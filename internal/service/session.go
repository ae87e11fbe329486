package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sessionkit/auth-api/internal/metrics"
	"github.com/sessionkit/auth-api/internal/models"
	"github.com/sessionkit/auth-api/internal/pkg/log"
	"github.com/sessionkit/auth-api/internal/pkg/redact"
	"github.com/sessionkit/auth-api/internal/storage"
	"github.com/sessionkit/auth-api/internal/token"
	"github.com/sessionkit/auth-api/internal/validation"
)

// VerifyCredentials ищет пользователя, у которого email ИЛИ телефон
// совпадает с identifier, и сверяет пароль. Отсутствие пользователя,
// отсутствие пароля и несовпадение неразличимы: всё это ErrUnauthorized,
// и в каждом случае выполняется одна проверка argon2id.
// Возвращает пользователя без хэшей; в хранилище ничего не пишет.
func (s *Service) VerifyCredentials(ctx context.Context, identifier, password string) (*models.User, error) {
	const op = "service.session.VerifyCredentials"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("identifier", redact.Identifier(identifier)))

	email, phone := validation.NormalizeIdentifier(identifier)
	user, err := s.storage.UserByIdentifier(ctx, email, phone)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.verifyDummy(password)
			lg.Info("login_failed", slog.String("reason", "user_not_found"))
			metrics.AuthEvent("login", "rejected")
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		lg.Error("login_lookup_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.PasswordHash == nil {
		s.verifyDummy(password)
		lg.Info("login_failed", slog.String("reason", "no_password"))
		metrics.AuthEvent("login", "rejected")
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	ok, err := s.hasher.Verify(*user.PasswordHash, password)
	if err != nil {
		s.verifyDummy(password)
		lg.Warn("password_hash_unreadable", slog.String("user_id", user.ID.String()), slog.String("err", err.Error()))
	}
	if err != nil || !ok {
		lg.Info("login_failed", slog.String("reason", "password_mismatch"))
		metrics.AuthEvent("login", "rejected")
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	return user.Sanitized(), nil
}

// IssueSession выпускает новую пару токенов и безусловно перезаписывает
// сохранённый хэш refresh-токена. Все ранее выданные refresh-токены
// пользователя после этого недействительны.
func (s *Service) IssueSession(ctx context.Context, user *models.User) (*models.Session, error) {
	const op = "service.session.IssueSession"

	sess, err := s.issue(ctx, user, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthEvent("login", "ok")
	return sess, nil
}

// RotateSession выпускает новую пару по результату RotateFromRefresh.
// Хэш заменяется, только если в хранилище всё ещё лежит тот, против
// которого проверялся предъявленный токен; из двух конкурентных ротаций
// одного токена вторая получает ErrUnauthorized.
func (s *Service) RotateSession(ctx context.Context, user *models.User) (*models.Session, error) {
	const op = "service.session.RotateSession"

	if user.RefreshTokenHash == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	sess, err := s.issue(ctx, user, *user.RefreshTokenHash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthEvent("refresh", "ok")
	return sess, nil
}

func (s *Service) issue(ctx context.Context, user *models.User, expectedHash string) (*models.Session, error) {
	lg := log.From(ctx).With(slog.String("user_id", user.ID.String()))

	payload := models.PayloadFromUser(user)

	access, accessExp, err := s.signer.Sign(payload, token.Access)
	if err != nil {
		lg.Error("access_token_sign_failed", slog.String("err", err.Error()))
		return nil, err
	}

	refresh, refreshExp, err := s.signer.Sign(payload, token.Refresh)
	if err != nil {
		lg.Error("refresh_token_sign_failed", slog.String("err", err.Error()))
		return nil, err
	}

	hash, err := s.hasher.Hash(refresh)
	if err != nil {
		lg.Error("refresh_token_hash_failed", slog.String("err", err.Error()))
		return nil, err
	}

	if expectedHash == "" {
		err = s.storage.SetRefreshTokenHash(ctx, user.ID, hash, refreshExp)
	} else {
		err = s.storage.SwapRefreshTokenHash(ctx, user.ID, expectedHash, hash, refreshExp)
	}
	if err != nil {
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_rotation_conflict", slog.String("err", err.Error()))
			metrics.AuthEvent("refresh", "conflict")
			return nil, ErrUnauthorized
		}

		lg.Error("refresh_hash_save_failed", slog.String("err", err.Error()))
		return nil, err
	}

	return &models.Session{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessTTL:        s.signer.TTL(token.Access),
		RefreshTTL:       s.signer.TTL(token.Refresh),
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// RotateFromRefresh сверяет предъявленный refresh-токен с хэшем,
// сохранённым у пользователя claimedID. Любая неудача, включая сбой
// хранилища, превращается в один и тот же ErrUnauthorized.
// Возвращает полную запись пользователя для RotateSession.
func (s *Service) RotateFromRefresh(ctx context.Context, raw string, claimedID uuid.UUID) (*models.User, error) {
	const op = "service.session.RotateFromRefresh"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("user_id", claimedID.String()))

	fail := func(reason string, err error) (*models.User, error) {
		attrs := []any{slog.String("reason", reason)}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
		}
		lg.Info("refresh_rejected", attrs...)
		metrics.AuthEvent("refresh", "rejected")
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	user, err := s.storage.UserByID(ctx, claimedID)
	if err != nil {
		return fail("user_lookup", err)
	}

	if user.RefreshTokenHash == nil {
		return fail("no_stored_hash", nil)
	}

	ok, err := s.hasher.Verify(*user.RefreshTokenHash, raw)
	if err != nil {
		return fail("hash_unreadable", err)
	}
	if !ok {
		return fail("hash_mismatch", nil)
	}

	return user, nil
}

// VerifyToken проверяет подпись и срок токена вида kind.
// Любая ошибка — ErrUnauthorized.
func (s *Service) VerifyToken(ctx context.Context, raw string, kind token.Kind) (*models.TokenPayload, error) {
	const op = "service.session.VerifyToken"

	p, err := s.signer.Verify(raw, kind)
	if err != nil {
		log.From(ctx).Debug("token_rejected",
			slog.String("op", op),
			slog.String("kind", kind.String()),
			slog.String("token", redact.Token()),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	return p, nil
}

// Logout удаляет сохранённый хэш refresh-токена: выданный refresh-токен
// больше не обменивается на новую пару. Access-токен доживает свой TTL.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.session.Logout"

	if err := s.storage.ClearRefreshTokenHash(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthEvent("logout", "ok")
	return nil
}
